package aiusage

import "errors"

// ErrInsufficientTokens is returned when a caller has no generations left for the current month.
var ErrInsufficientTokens = errors.New("insufficient tokens")

// DefaultTokens is the number of generations granted per month when no quota is configured.
const DefaultTokens = 100
