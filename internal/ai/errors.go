package ai

import "errors"

// ErrMissingCredentials is returned when a provider is constructed or called without an API key.
var ErrMissingCredentials = errors.New("ai: missing provider credentials")
