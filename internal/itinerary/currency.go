package itinerary

import "strings"

// NormalizeCurrency returns the uppercase ISO-4217 code for raw, or "" when
// raw is not one. It accepts exactly what the schema validator accepts.
func NormalizeCurrency(raw string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != 3 {
		return ""
	}
	if err := validate.Var(code, "iso4217"); err != nil {
		return ""
	}
	return code
}

// ApplyCurrencyFallback resolves the itinerary currency as the first valid
// code among the itinerary's own currency and hint, then lets every activity
// without a currency inherit it.
func ApplyCurrencyFallback(g *GeneratedItinerary, hint string) {
	if g == nil {
		return
	}
	resolved := ""
	if g.Currency != nil {
		resolved = NormalizeCurrency(*g.Currency)
	}
	if resolved == "" {
		resolved = NormalizeCurrency(hint)
	}
	g.Currency = nil
	if resolved != "" {
		g.Currency = strPtr(resolved)
	}

	// Without a resolved code, activities keep only their own valid codes.
	for di := range g.Days {
		for ai := range g.Days[di].Activities {
			act := &g.Days[di].Activities[ai]
			if act.Currency != nil {
				if code := NormalizeCurrency(*act.Currency); code != "" {
					act.Currency = strPtr(code)
					continue
				}
			}
			act.Currency = nil
			if resolved != "" {
				act.Currency = strPtr(resolved)
			}
		}
	}
}

// StripPOI clears every activity's POI payload.
func StripPOI(g *GeneratedItinerary) {
	if g == nil {
		return
	}
	for di := range g.Days {
		for ai := range g.Days[di].Activities {
			g.Days[di].Activities[ai].POI = nil
		}
	}
}

func strPtr(s string) *string {
	return &s
}
