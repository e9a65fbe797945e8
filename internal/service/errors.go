package service

import (
	"errors"
	"fmt"

	"wayfarer/internal/itinerary"
)

// ErrProvidersExhausted is the only generation error callers see. It carries
// no provider diagnostics; those go to logs and telemetry.
var ErrProvidersExhausted = errors.New("we couldn't generate an itinerary right now, please try again later")

// AttemptKind classifies why a single provider attempt failed.
type AttemptKind string

const (
	KindTransport        AttemptKind = "transport"
	KindEmptyContent     AttemptKind = "empty_content"
	KindJSONParse        AttemptKind = "json_parse"
	KindSchemaValidation AttemptKind = "schema_validation"
)

// AttemptError is a failed provider attempt. It never leaves the orchestrator.
type AttemptError struct {
	Kind     AttemptKind
	Provider string
	Err      error
	// Validation is set for schema failures.
	Validation *itinerary.ValidationResult
}

func (e *AttemptError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// SchemaErrorCount is the number of validation errors behind a schema failure.
func (e *AttemptError) SchemaErrorCount() int {
	if e == nil || e.Validation == nil {
		return 0
	}
	return len(e.Validation.Errors)
}

// repairable reports whether the same provider gets a repair-prompt retry.
// Parse and schema failures always do; transport and empty-content failures
// only when retryTransport is set.
func (e *AttemptError) repairable(retryTransport bool) bool {
	switch e.Kind {
	case KindJSONParse, KindSchemaValidation:
		return true
	case KindTransport, KindEmptyContent:
		return retryTransport
	default:
		return false
	}
}
