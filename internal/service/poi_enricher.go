package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"wayfarer/internal/itinerary"
	"wayfarer/internal/maps"
)

// PlaceFinder is the point-of-interest lookup collaborator.
type PlaceFinder interface {
	TextSearch(ctx context.Context, q maps.PlaceQuery) ([]maps.PlaceSummary, error)
	GetDetails(ctx context.Context, placeID string) (*maps.PlaceDetails, error)
}

// EnrichOptions scopes one enrichment pass.
type EnrichOptions struct {
	// Destination is resolved once and biases every activity search.
	Destination string
	// MaxPerDay caps resolved activities per day; 0 means uncapped.
	MaxPerDay int
	// WithDetails loads opening hours for each resolved place.
	WithDetails bool
}

// EnrichReport summarises an enrichment pass.
type EnrichReport struct {
	Anchor   *maps.LatLng `json:"anchor,omitempty"`
	Resolved int          `json:"resolved"`
	Skipped  int          `json:"skipped"`
	Failed   int          `json:"failed"`
}

// candidateLimit is how many search results are considered per activity.
const candidateLimit = 3

// POIEnricher attaches best-effort places to generated activities.
type POIEnricher struct {
	places PlaceFinder
	radius uint
}

func NewPOIEnricher(places PlaceFinder, radiusMeters uint) *POIEnricher {
	return &POIEnricher{places: places, radius: radiusMeters}
}

// Enrich walks days in order and resolves one place per activity near the
// destination anchor. A lookup failure leaves that activity's POI nil and
// moves on. Activities beyond the per-day cap keep a nil POI.
func (e *POIEnricher) Enrich(ctx context.Context, g *itinerary.GeneratedItinerary, opts EnrichOptions) (EnrichReport, error) {
	var report EnrichReport
	if g == nil {
		return report, fmt.Errorf("enrich: nil itinerary")
	}
	ctx, span := tracer.Start(ctx, "itinerary.enrich")
	defer span.End()

	destination := strings.TrimSpace(opts.Destination)
	report.Anchor = e.resolveAnchor(ctx, destination)

	for di := range g.Days {
		day := &g.Days[di]
		resolvedToday := 0
		for ai := range day.Activities {
			act := &day.Activities[ai]
			if err := ctx.Err(); err != nil {
				return report, err
			}
			if opts.MaxPerDay > 0 && resolvedToday >= opts.MaxPerDay {
				act.POI = nil
				report.Skipped++
				poiEnrichments.WithLabelValues("capped").Inc()
				continue
			}

			poi, err := e.resolveActivity(ctx, act, destination, report.Anchor, opts.WithDetails)
			if err != nil {
				report.Failed++
				poiEnrichments.WithLabelValues("failed").Inc()
				log.Warn().Err(err).Int("day", day.DayNumber).Str("title", act.Title).Msg("poi enrichment failed; leaving activity unresolved")
				continue
			}
			if poi == nil {
				report.Skipped++
				poiEnrichments.WithLabelValues("not_found").Inc()
				continue
			}
			act.POI = poi
			resolvedToday++
			report.Resolved++
			poiEnrichments.WithLabelValues("resolved").Inc()

			// Without a destination the first resolved place anchors the rest.
			if report.Anchor == nil {
				report.Anchor = &maps.LatLng{Lat: poi.Lat, Lng: poi.Lng}
			}
		}
	}
	return report, nil
}

func (e *POIEnricher) resolveAnchor(ctx context.Context, destination string) *maps.LatLng {
	if destination == "" {
		return nil
	}
	hits, err := e.places.TextSearch(ctx, maps.PlaceQuery{Query: destination, Limit: 1})
	if err != nil {
		log.Warn().Err(err).Str("destination", destination).Msg("destination anchor lookup failed; searching unanchored")
		return nil
	}
	if len(hits) == 0 {
		return nil
	}
	loc := hits[0].Location
	return &loc
}

func (e *POIEnricher) resolveActivity(ctx context.Context, act *itinerary.GeneratedActivity, destination string, anchor *maps.LatLng, withDetails bool) (*itinerary.POISnapshot, error) {
	query := strings.TrimSpace(act.Title)
	if query == "" {
		return nil, nil
	}
	if destination != "" {
		query += ", " + destination
	}
	hits, err := e.places.TextSearch(ctx, maps.PlaceQuery{Query: query, Near: anchor, Radius: e.radius, Limit: candidateLimit})
	if err != nil {
		return nil, err
	}
	// Location bias is only a hint to the API; same-named places elsewhere are dropped.
	if anchor != nil {
		hits = maps.WithinRadius(hits, *anchor, e.searchRadius())
	}
	if len(hits) == 0 {
		return nil, nil
	}

	poi := snapshotFrom(hits[0])
	if withDetails {
		details, err := e.places.GetDetails(ctx, hits[0].PlaceID)
		if err != nil {
			// The summary is still useful without hours.
			log.Warn().Err(err).Str("place_id", hits[0].PlaceID).Msg("place details lookup failed")
		} else {
			poi.Hours = details.Hours
		}
	}
	return poi, nil
}

func (e *POIEnricher) searchRadius() uint {
	if e.radius == 0 || e.radius > maps.MaxSearchRadius {
		return maps.MaxSearchRadius
	}
	return e.radius
}

func snapshotFrom(p maps.PlaceSummary) *itinerary.POISnapshot {
	snap := &itinerary.POISnapshot{
		PlaceID: p.PlaceID,
		Name:    p.Name,
		Address: p.Address,
		Lat:     p.Location.Lat,
		Lng:     p.Location.Lng,
		Types:   p.Types,
	}
	if p.Rating > 0 {
		r := math.Round(float64(p.Rating)*10) / 10
		snap.Rating = &r
	}
	if p.PriceLevel > 0 {
		lvl := p.PriceLevel
		snap.PriceLevel = &lvl
	}
	return snap
}
