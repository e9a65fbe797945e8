// README: One immutable record per orchestration attempt.
package telemetry

import "time"

// Run captures the outcome of one orchestration attempt.
type Run struct {
	ID        string `json:"id"`
	RequestID string `json:"requestId"`
	UserID    string `json:"userId,omitempty"`
	TripID    string `json:"tripId,omitempty"`
	TaskType  string `json:"taskType"`

	PromptHash   string `json:"promptHash"`
	PromptLength int    `json:"promptLength"`

	// Provider is the slot that produced the result or failed last: "primary" or "secondary".
	Provider        string `json:"provider,omitempty"`
	ProviderBackend string `json:"providerBackend,omitempty"`
	FallbackUsed    bool   `json:"fallbackUsed"`

	CacheLocalHit bool `json:"cacheLocalHit"`
	CacheRedisHit bool `json:"cacheRedisHit"`

	TotalMs    int64 `json:"totalMs"`
	ProviderMs int64 `json:"providerMs"`
	ParseMs    int64 `json:"parseMs"`

	JSONValid         bool `json:"jsonValid"`
	JSONRepaired      bool `json:"jsonRepaired"`
	SchemaErrorsCount int  `json:"schemaErrorsCount"`

	DayCount      int `json:"dayCount"`
	ActivityCount int `json:"activityCount"`
	POICount      int `json:"poiCount"`

	ResponseLength int    `json:"responseLength"`
	CurrencyHint   string `json:"currencyHint,omitempty"`
	ErrorMessage   string `json:"errorMessage,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

const (
	// DefaultListLimit is used when a caller passes a non-positive limit.
	DefaultListLimit = 50
	// MaxListLimit caps ListRecent.
	MaxListLimit = 200
)

// ClampLimit bounds a ListRecent limit to [1, MaxListLimit].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
