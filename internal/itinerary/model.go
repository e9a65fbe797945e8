// README: Generated itinerary shapes returned by the AI orchestration layer.
package itinerary

// GeneratedItinerary is the structured itinerary produced from a text prompt.
type GeneratedItinerary struct {
	Days      []GeneratedDay `json:"days"`
	TotalCost *float64       `json:"totalCost,omitempty"`
	Currency  *string        `json:"currency"`
	Notes     []string       `json:"notes,omitempty"`
}

// GeneratedDay groups the activities planned for one day of the trip.
type GeneratedDay struct {
	DayNumber  int                 `json:"dayNumber"`
	Date       *string             `json:"date,omitempty"`
	Activities []GeneratedActivity `json:"activities"`
}

// GeneratedActivity is a single entry in a day plan.
// POI is always nil when the activity leaves the orchestrator; only the
// enrichment step may populate it.
type GeneratedActivity struct {
	Time            *string      `json:"time,omitempty"`
	Title           string       `json:"title"`
	Description     *string      `json:"description,omitempty"`
	DurationMinutes *float64     `json:"durationMinutes,omitempty"`
	Cost            *float64     `json:"cost,omitempty"`
	Currency        *string      `json:"currency"`
	POI             *POISnapshot `json:"poi"`
}

// POISnapshot is a resolved real-world place attached to an activity.
type POISnapshot struct {
	PlaceID    string   `json:"placeId"`
	Name       string   `json:"name"`
	Address    string   `json:"address"`
	Lat        float64  `json:"lat"`
	Lng        float64  `json:"lng"`
	Rating     *float64 `json:"rating,omitempty"`
	PriceLevel *int     `json:"priceLevel,omitempty"`
	Types      []string `json:"types,omitempty"`
	Hours      []string `json:"hours,omitempty"`
}

// Counts returns the number of days, activities and activities carrying a POI.
func (g *GeneratedItinerary) Counts() (days, activities, pois int) {
	if g == nil {
		return 0, 0, 0
	}
	days = len(g.Days)
	for _, d := range g.Days {
		activities += len(d.Activities)
		for _, a := range d.Activities {
			if a.POI != nil {
				pois++
			}
		}
	}
	return days, activities, pois
}

// Clone returns a deep copy of g.
func (g *GeneratedItinerary) Clone() *GeneratedItinerary {
	if g == nil {
		return nil
	}
	out := &GeneratedItinerary{
		TotalCost: cloneFloat(g.TotalCost),
		Currency:  cloneString(g.Currency),
		Notes:     append([]string(nil), g.Notes...),
	}
	if g.Days != nil {
		out.Days = make([]GeneratedDay, len(g.Days))
	}
	for i, d := range g.Days {
		day := GeneratedDay{DayNumber: d.DayNumber, Date: cloneString(d.Date)}
		if d.Activities != nil {
			day.Activities = make([]GeneratedActivity, len(d.Activities))
		}
		for j, a := range d.Activities {
			day.Activities[j] = GeneratedActivity{
				Time:            cloneString(a.Time),
				Title:           a.Title,
				Description:     cloneString(a.Description),
				DurationMinutes: cloneFloat(a.DurationMinutes),
				Cost:            cloneFloat(a.Cost),
				Currency:        cloneString(a.Currency),
				POI:             a.POI.clone(),
			}
		}
		out.Days[i] = day
	}
	return out
}

func (p *POISnapshot) clone() *POISnapshot {
	if p == nil {
		return nil
	}
	c := *p
	c.Rating = cloneFloat(p.Rating)
	if p.PriceLevel != nil {
		lvl := *p.PriceLevel
		c.PriceLevel = &lvl
	}
	c.Types = append([]string(nil), p.Types...)
	c.Hours = append([]string(nil), p.Hours...)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
