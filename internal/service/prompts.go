package service

import (
	"fmt"
	"strings"

	"wayfarer/internal/ai"
	"wayfarer/internal/itinerary"
)

// buildConversation renders the first attempt: the schema instructions as the
// system turn and the caller's prompt as the user turn.
func buildConversation(schema itinerary.Schema, prompt, currencyHint string) []ai.Turn {
	var user strings.Builder
	user.WriteString(strings.TrimSpace(prompt))
	if currencyHint != "" {
		fmt.Fprintf(&user, "\n\nPreferred currency: %s. Use it for every cost unless the trip clearly uses another.", currencyHint)
	}
	return []ai.Turn{
		{Role: ai.RoleSystem, Content: schema.Instructions},
		{Role: ai.RoleUser, Content: user.String()},
	}
}

// repairConversation keeps the system turn and replaces the user turn with the
// original request plus what went wrong.
func repairConversation(original []ai.Turn, failure *AttemptError) []ai.Turn {
	out := make([]ai.Turn, 0, len(original))
	var request string
	for _, t := range original {
		if t.Role == ai.RoleUser {
			request = t.Content
			continue
		}
		out = append(out, t)
	}
	return append(out, ai.Turn{Role: ai.RoleUser, Content: repairPrompt(request, failure)})
}

func repairPrompt(request string, failure *AttemptError) string {
	var b strings.Builder
	b.WriteString(request)
	b.WriteString("\n\nYour previous answer could not be used: ")
	switch failure.Kind {
	case KindJSONParse:
		b.WriteString("it was not valid JSON.")
	case KindSchemaValidation:
		b.WriteString("it did not match the required shape.")
	case KindEmptyContent:
		b.WriteString("it was empty.")
	default:
		b.WriteString("the request failed.")
	}
	if failure.Validation != nil {
		if summary := failure.Validation.Summary(); summary != "" {
			b.WriteString("\nProblems found:\n")
			b.WriteString(summary)
		}
	}
	b.WriteString("\n\nReturn ONLY the JSON object, with no markdown and no commentary.")
	return b.String()
}
