package itinerary

import "strings"

// TaskType is the purpose of a generation request.
type TaskType string

const (
	TaskGenerateItinerary TaskType = "generate_itinerary"
	TaskPreviewItinerary  TaskType = "preview_itinerary"
)

// DefaultTaskType is used for empty, unknown and legacy task types.
const DefaultTaskType = TaskGenerateItinerary

// taskAliases maps legacy values still sent by older clients.
var taskAliases = map[string]TaskType{
	"generate_itinerary": TaskGenerateItinerary,
	"preview_itinerary":  TaskPreviewItinerary,
	"preview":            TaskPreviewItinerary,
	"itinerary_preview":  TaskPreviewItinerary,
	"itinerary":          TaskGenerateItinerary,
	"plan":               TaskGenerateItinerary,
	"generate":           TaskGenerateItinerary,
	"ai_itinerary":       TaskGenerateItinerary,
}

// ResolveTaskType maps any raw value to its canonical task type.
func ResolveTaskType(raw string) TaskType {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "-", "_")
	if t, ok := taskAliases[key]; ok {
		return t
	}
	return DefaultTaskType
}
