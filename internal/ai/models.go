package ai

import "strings"

// Role is the speaker of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a provider conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Envelope is the uniform reply shape: {choices:[{message:{content}}]}.
type Envelope struct {
	Choices []Choice `json:"choices"`
}

// Choice is one candidate reply.
type Choice struct {
	Message Message `json:"message"`
}

// Message carries the text of a candidate reply.
type Message struct {
	Role    Role   `json:"role,omitempty"`
	Content string `json:"content"`
}

// NewEnvelope wraps a single assistant reply.
func NewEnvelope(content string) *Envelope {
	return &Envelope{Choices: []Choice{{Message: Message{Role: RoleAssistant, Content: content}}}}
}

// Content returns the first choice's text, or "" when the envelope is empty.
func (e *Envelope) Content() string {
	if e == nil || len(e.Choices) == 0 {
		return ""
	}
	return e.Choices[0].Message.Content
}

// lastUserTurn returns the content of the most recent user turn.
func lastUserTurn(conversation []Turn) string {
	for i := len(conversation) - 1; i >= 0; i-- {
		if conversation[i].Role == RoleUser {
			return conversation[i].Content
		}
	}
	return ""
}

// systemText joins every system turn in order.
func systemText(conversation []Turn) string {
	var parts []string
	for _, t := range conversation {
		if t.Role == RoleSystem && strings.TrimSpace(t.Content) != "" {
			parts = append(parts, t.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}
