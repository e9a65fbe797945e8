// README: Point-of-interest lookups over the Google Places API.
package maps

import (
	"context"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"
)

const (
	// DefaultSearchLimit caps TextSearch results when the query does not.
	DefaultSearchLimit = 5
	// MaxSearchRadius is the largest radius the Places API honours, in meters.
	MaxSearchRadius = 50000
)

// LatLng is a coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PlaceQuery is a ranked text search, optionally biased around Near.
type PlaceQuery struct {
	Query  string
	Near   *LatLng
	Radius uint
	Limit  int
}

// PlaceSummary is one ranked text-search hit.
type PlaceSummary struct {
	PlaceID    string
	Name       string
	Address    string
	Location   LatLng
	Rating     float32
	PriceLevel int
	Types      []string
}

// PlaceDetails is the rich record for a single place.
type PlaceDetails struct {
	PlaceSummary
	Hours   []string
	Website string
}

// placesAPI is the subset of *maps.Client used here.
type placesAPI interface {
	TextSearch(ctx context.Context, r *maps.TextSearchRequest) (maps.PlacesSearchResponse, error)
	PlaceDetails(ctx context.Context, r *maps.PlaceDetailsRequest) (maps.PlaceDetailsResult, error)
}

// PlacesService handles interactions with Google Places API.
type PlacesService struct {
	client   placesAPI
	language string
}

// NewPlacesService creates a new PlacesService with the given API Key.
func NewPlacesService(apiKey string) (*PlacesService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &PlacesService{client: client, language: "en"}, nil
}

// TextSearch returns up to q.Limit places matching q.Query, ranked by the API.
func (s *PlacesService) TextSearch(ctx context.Context, q PlaceQuery) ([]PlaceSummary, error) {
	query := strings.TrimSpace(q.Query)
	if query == "" {
		return nil, fmt.Errorf("places: empty query")
	}
	r := &maps.TextSearchRequest{
		Query:    query,
		Language: s.language,
	}
	if q.Near != nil {
		// A location bias needs a radius.
		radius := q.Radius
		if radius == 0 || radius > MaxSearchRadius {
			radius = MaxSearchRadius
		}
		r.Location = &maps.LatLng{Lat: q.Near.Lat, Lng: q.Near.Lng}
		r.Radius = radius
	}

	resp, err := s.client.TextSearch(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("places api error: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	results := make([]PlaceSummary, 0, min(limit, len(resp.Results)))
	for _, result := range resp.Results {
		if result.PermanentlyClosed || result.PlaceID == "" {
			continue
		}
		results = append(results, summaryFrom(result))
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// GetDetails loads the rich record for placeID.
func (s *PlacesService) GetDetails(ctx context.Context, placeID string) (*PlaceDetails, error) {
	if strings.TrimSpace(placeID) == "" {
		return nil, fmt.Errorf("places: empty place id")
	}
	res, err := s.client.PlaceDetails(ctx, &maps.PlaceDetailsRequest{
		PlaceID:  placeID,
		Language: s.language,
		Fields: []maps.PlaceDetailsFieldMask{
			maps.PlaceDetailsFieldMaskPlaceID,
			maps.PlaceDetailsFieldMaskName,
			maps.PlaceDetailsFieldMaskFormattedAddress,
			maps.PlaceDetailsFieldMaskGeometryLocation,
			maps.PlaceDetailsFieldMaskRatings,
			maps.PlaceDetailsFieldMaskPriceLevel,
			maps.PlaceDetailsFieldMaskTypes,
			maps.PlaceDetailsFieldMaskOpeningHours,
			maps.PlaceDetailsFieldMaskWebsite,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("places api error: %w", err)
	}

	d := &PlaceDetails{
		PlaceSummary: PlaceSummary{
			PlaceID:    res.PlaceID,
			Name:       res.Name,
			Address:    res.FormattedAddress,
			Location:   LatLng{Lat: res.Geometry.Location.Lat, Lng: res.Geometry.Location.Lng},
			Rating:     res.Rating,
			PriceLevel: res.PriceLevel,
			Types:      res.Types,
		},
		Website: res.Website,
	}
	if res.OpeningHours != nil {
		d.Hours = res.OpeningHours.WeekdayText
	}
	if d.PlaceID == "" {
		d.PlaceID = placeID
	}
	return d, nil
}

func summaryFrom(r maps.PlacesSearchResult) PlaceSummary {
	return PlaceSummary{
		PlaceID:    r.PlaceID,
		Name:       r.Name,
		Address:    r.FormattedAddress,
		Location:   LatLng{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
		Rating:     r.Rating,
		PriceLevel: r.PriceLevel,
		Types:      r.Types,
	}
}
