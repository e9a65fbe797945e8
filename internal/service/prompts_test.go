package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfarer/internal/ai"
	"wayfarer/internal/itinerary"
)

func TestBuildConversation(t *testing.T) {
	schema := itinerary.SchemaFor(itinerary.TaskPreviewItinerary)
	conv := buildConversation(schema, "  3 days in Hue ", "VND")
	require.Len(t, conv, 2)
	assert.Equal(t, ai.RoleSystem, conv[0].Role)
	assert.Equal(t, schema.Instructions, conv[0].Content)
	assert.Equal(t, ai.RoleUser, conv[1].Role)
	assert.Contains(t, conv[1].Content, "3 days in Hue")
	assert.Contains(t, conv[1].Content, "Preferred currency: VND")

	conv = buildConversation(schema, "3 days in Hue", "")
	assert.Equal(t, "3 days in Hue", conv[1].Content)
}

func TestRepairPromptCapsErrorSummary(t *testing.T) {
	var errs []itinerary.SchemaError
	for i := 0; i < 9; i++ {
		errs = append(errs, itinerary.SchemaError{Path: "days", Message: "bad"})
	}
	failure := &AttemptError{Kind: KindSchemaValidation, Validation: &itinerary.ValidationResult{Errors: errs}}

	prompt := repairPrompt("plan it", failure)
	assert.Equal(t, itinerary.MaxSummaryErrors, strings.Count(prompt, "days: bad"))
	assert.Contains(t, prompt, "did not match the required shape")
	assert.Contains(t, prompt, "Return ONLY the JSON object")
}

func TestAttemptErrorRepairable(t *testing.T) {
	assert.True(t, (&AttemptError{Kind: KindJSONParse}).repairable(false))
	assert.True(t, (&AttemptError{Kind: KindSchemaValidation}).repairable(false))
	assert.False(t, (&AttemptError{Kind: KindTransport}).repairable(false))
	assert.False(t, (&AttemptError{Kind: KindEmptyContent}).repairable(false))
	assert.True(t, (&AttemptError{Kind: KindTransport}).repairable(true))
}
