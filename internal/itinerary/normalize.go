package itinerary

import (
	"math"
	"strconv"
	"strings"
)

// Normalize coerces loosely typed model output into the shape the schema
// validator expects. It never rejects input: values that cannot be coerced
// become nil, and anything structurally wrong is left for validation to report.
//
// A top-level array is treated as the list of days.
func Normalize(doc any) map[string]any {
	var root map[string]any
	switch v := doc.(type) {
	case map[string]any:
		root = v
	case []any:
		root = map[string]any{"days": v}
	default:
		return map[string]any{}
	}

	if _, ok := root["totalCost"]; ok {
		root["totalCost"] = numberOrNil(root["totalCost"])
	}
	root["currency"] = toCurrency(root["currency"])

	notes, hasNotes := root["notes"]
	if !hasNotes || notes == nil {
		if rationale, ok := root["rationale"]; ok {
			notes = rationale
			hasNotes = true
		}
	}
	delete(root, "rationale")
	if hasNotes {
		root["notes"] = toNotes(notes)
	}

	if days, ok := root["days"].([]any); ok {
		for i, d := range days {
			if day, ok := d.(map[string]any); ok {
				days[i] = normalizeDay(day)
			}
		}
	}
	return root
}

func normalizeDay(day map[string]any) map[string]any {
	if n, ok := toNumber(day["dayNumber"]); ok {
		day["dayNumber"] = int(math.Trunc(n))
	} else {
		day["dayNumber"] = 0
	}
	if _, ok := day["date"]; ok {
		day["date"] = trimmedOrNil(day["date"])
	}
	if acts, ok := day["activities"].([]any); ok {
		for i, a := range acts {
			if act, ok := a.(map[string]any); ok {
				acts[i] = normalizeActivity(act)
			}
		}
	}
	return day
}

func normalizeActivity(act map[string]any) map[string]any {
	for _, key := range []string{"time", "description"} {
		if _, ok := act[key]; ok {
			act[key] = trimmedOrNil(act[key])
		}
	}
	if title, ok := act["title"].(string); ok {
		act["title"] = strings.TrimSpace(title)
	}
	for _, key := range []string{"durationMinutes", "cost"} {
		if _, ok := act[key]; ok {
			act[key] = numberOrNil(act[key])
		}
	}
	act["currency"] = toCurrency(act["currency"])
	// Places are resolved downstream; whatever the model claims is discarded.
	act["poi"] = nil
	return act
}

// toNumber parses numeric-looking input into a finite number.
func toNumber(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case string:
		s := strings.TrimSpace(x)
		s = strings.ReplaceAll(s, ",", "")
		s = strings.ReplaceAll(s, "_", "")
		s = strings.ReplaceAll(s, " ", "")
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func numberOrNil(v any) any {
	if f, ok := toNumber(v); ok {
		return f
	}
	return nil
}

func toCurrency(v any) any {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	if code := NormalizeCurrency(s); code != "" {
		return code
	}
	return nil
}

func toNotes(v any) any {
	switch x := v.(type) {
	case string:
		if s := strings.TrimSpace(x); s != "" {
			return []any{s}
		}
		return nil
	case []any:
		out := make([]any, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				continue
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return nil
	}
}

func trimmedOrNil(v any) any {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return s
}
