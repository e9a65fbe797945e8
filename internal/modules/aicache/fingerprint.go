package aicache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"wayfarer/internal/itinerary"
)

// KeyNamespace prefixes every itinerary cache key.
const KeyNamespace = "ai:preview:"

// fingerprintInput fixes the field order of the hashed tuple.
type fingerprintInput struct {
	Prompt       string  `json:"prompt"`
	CurrencyHint *string `json:"currencyHint"`
	TaskType     string  `json:"taskType"`
}

// Fingerprint derives the cache key for a generation request. The currency hint
// is normalized to an uppercase ISO code (or dropped) and the task type is
// resolved to its canonical value, so equivalent requests share a key.
func Fingerprint(prompt, currencyHint, taskType string) string {
	in := fingerprintInput{
		Prompt:   prompt,
		TaskType: string(itinerary.ResolveTaskType(taskType)),
	}
	if code := itinerary.NormalizeCurrency(currencyHint); code != "" {
		in.CurrencyHint = &code
	}
	// Marshal of this struct cannot fail.
	raw, _ := json.Marshal(in)
	sum := sha256.Sum256(raw)
	return KeyNamespace + hex.EncodeToString(sum[:])
}

// PromptHash is the hex sha256 of a prompt, stored in telemetry instead of the prompt text.
func PromptHash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
