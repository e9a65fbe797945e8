package ai

import (
	"context"
)

// Provider is the uniform contract every text-generation backend is wrapped in.
// Implementations map the conversation to their native request shape, call the
// backend under a bounded timeout and decode the reply into an Envelope before
// returning it. Transport and auth errors are returned as-is.
type Provider interface {
	// Name identifies the backend (e.g. "gemini", "openai") in logs and telemetry.
	Name() string

	// Submit sends the conversation and returns the decoded reply.
	Submit(ctx context.Context, conversation []Turn) (*Envelope, error)
}
