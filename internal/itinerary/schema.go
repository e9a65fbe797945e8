// README: Versioned task-type schema registry validated with go-playground/validator.
package itinerary

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxSummaryErrors caps how many schema errors are fed back into a repair prompt.
const MaxSummaryErrors = 6

// SchemaError is one validation failure at a JSON path.
type SchemaError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of validating a document against a task schema.
type ValidationResult struct {
	Valid  bool
	Schema string
	Errors []SchemaError
}

// Summary renders up to MaxSummaryErrors "path: message" lines.
func (r ValidationResult) Summary() string {
	lines := make([]string, 0, MaxSummaryErrors)
	for i, e := range r.Errors {
		if i == MaxSummaryErrors {
			break
		}
		lines = append(lines, fmt.Sprintf("%s: %s", e.Path, e.Message))
	}
	return strings.Join(lines, "\n")
}

// Schema describes the document a task type must produce.
type Schema struct {
	Name    string
	Version int
	// Instructions describe the JSON shape to the model.
	Instructions string
	decode       func([]byte) (any, error)
}

// ID returns the versioned schema identifier, e.g. "itinerary.generate/v2".
func (s Schema) ID() string {
	return fmt.Sprintf("%s/v%d", s.Name, s.Version)
}

// generateDocument is the strict full-itinerary schema.
type generateDocument struct {
	Days      []generateDay `json:"days" validate:"required,min=1,dive"`
	TotalCost *float64      `json:"totalCost" validate:"omitempty,gte=0"`
	Currency  *string       `json:"currency" validate:"omitempty,iso4217"`
	Notes     []string      `json:"notes"`
}

type generateDay struct {
	DayNumber  int                `json:"dayNumber" validate:"gte=0"`
	Date       *string            `json:"date"`
	Activities []activityDocument `json:"activities" validate:"required,min=1,dive"`
}

// previewDocument allows empty days and caps the trip length.
type previewDocument struct {
	Days      []previewDay `json:"days" validate:"required,min=1,max=30,dive"`
	TotalCost *float64     `json:"totalCost" validate:"omitempty,gte=0"`
	Currency  *string      `json:"currency" validate:"omitempty,iso4217"`
	Notes     []string     `json:"notes"`
}

type previewDay struct {
	DayNumber  int                `json:"dayNumber" validate:"gte=0"`
	Date       *string            `json:"date"`
	Activities []activityDocument `json:"activities" validate:"required,dive"`
}

type activityDocument struct {
	Time            *string  `json:"time"`
	Title           string   `json:"title" validate:"required"`
	Description     *string  `json:"description"`
	DurationMinutes *float64 `json:"durationMinutes" validate:"omitempty,gte=0"`
	Cost            *float64 `json:"cost" validate:"omitempty,gte=0"`
	Currency        *string  `json:"currency" validate:"omitempty,iso4217"`
}

const shapeInstructions = `Return a single JSON object with this shape:
{
  "days": [
    {
      "dayNumber": 1,
      "date": "YYYY-MM-DD or null",
      "activities": [
        {
          "time": "HH:MM or null",
          "title": "string (required)",
          "description": "string or null",
          "durationMinutes": number or null,
          "cost": number or null,
          "currency": "ISO-4217 code or null"
        }
      ]
    }
  ],
  "totalCost": number or null,
  "currency": "ISO-4217 code or null",
  "notes": ["string"]
}
Do not include places, coordinates or any "poi" field.`

var registry = map[TaskType]Schema{
	TaskGenerateItinerary: {
		Name:    "itinerary.generate",
		Version: 2,
		Instructions: "You are a travel planner. Build a complete day-by-day itinerary. " +
			"Every day must contain at least one activity.\n" + shapeInstructions,
		decode: decodeInto[generateDocument],
	},
	TaskPreviewItinerary: {
		Name:    "itinerary.preview",
		Version: 2,
		Instructions: "You are a travel planner. Draft a short preview itinerary of at most 30 days. " +
			"Days may be left without activities when unsure.\n" + shapeInstructions,
		decode: decodeInto[previewDocument],
	},
}

// SchemaFor returns the schema registered for t, falling back to the default task schema.
func SchemaFor(t TaskType) Schema {
	if s, ok := registry[t]; ok {
		return s
	}
	return registry[DefaultTaskType]
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

func decodeInto[T any](raw []byte) (any, error) {
	var doc T
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks doc against the schema for taskType. Unknown properties are
// ignored and explicit nulls are accepted for nullable fields.
func Validate(doc any, taskType TaskType) ValidationResult {
	schema := SchemaFor(taskType)
	res := ValidationResult{Schema: schema.ID()}

	raw, err := json.Marshal(doc)
	if err != nil {
		res.Errors = []SchemaError{{Path: "$", Message: "document is not serializable"}}
		return res
	}
	typed, err := schema.decode(raw)
	if err != nil {
		res.Errors = []SchemaError{decodeError(err)}
		return res
	}

	if err := validate.Struct(typed); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			res.Errors = []SchemaError{{Path: "$", Message: err.Error()}}
			return res
		}
		for _, fe := range verrs {
			res.Errors = append(res.Errors, SchemaError{
				Path:    fieldPath(fe.Namespace()),
				Message: fieldMessage(fe),
			})
		}
		return res
	}

	res.Valid = true
	return res
}

// ToItinerary converts a validated document into the public itinerary shape.
func ToItinerary(doc any) (*GeneratedItinerary, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var g GeneratedItinerary
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("decode itinerary: %w", err)
	}
	return &g, nil
}

func decodeError(err error) SchemaError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		path := typeErr.Field
		if path == "" {
			path = "$"
		}
		return SchemaError{
			Path:    path,
			Message: fmt.Sprintf("expected %s, got %s", typeErr.Type.String(), typeErr.Value),
		}
	}
	return SchemaError{Path: "$", Message: err.Error()}
}

// fieldPath drops the Go root type name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "iso4217":
		return "must be an ISO-4217 currency code"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
