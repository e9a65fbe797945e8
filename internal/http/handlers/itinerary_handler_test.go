// README: Handler tests for itinerary preview, enrichment and run listing.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfarer/internal/http/handlers"
	httpmiddleware "wayfarer/internal/http/middleware"
	"wayfarer/internal/itinerary"
	"wayfarer/internal/modules/aiusage"
	"wayfarer/internal/modules/telemetry"
	"wayfarer/internal/service"
)

type fakeGenerator struct {
	got service.GenerateRequest
	res *service.GenerateResult
	err error
}

func (f *fakeGenerator) Generate(_ context.Context, req service.GenerateRequest) (*service.GenerateResult, error) {
	f.got = req
	return f.res, f.err
}

type fakeEnricher struct {
	opts  service.EnrichOptions
	calls int
}

func (f *fakeEnricher) Enrich(_ context.Context, g *itinerary.GeneratedItinerary, opts service.EnrichOptions) (service.EnrichReport, error) {
	f.calls++
	f.opts = opts
	g.Days[0].Activities[0].POI = &itinerary.POISnapshot{PlaceID: "p1", Name: "Beach"}
	return service.EnrichReport{Resolved: 1}, nil
}

type fakeQuota struct {
	useErr  error
	used    int
	refunds int
}

func (f *fakeQuota) UseToken(context.Context, string) error {
	f.used++
	return f.useErr
}

func (f *fakeQuota) Refund(context.Context, string) error {
	f.refunds++
	return nil
}

func (f *fakeQuota) Remaining(context.Context, string) (int, error) { return 1, nil }

type fakeRuns struct {
	limit int
	runs  []telemetry.Run
	err   error
}

func (f *fakeRuns) ListRecent(_ context.Context, limit int) ([]telemetry.Run, error) {
	f.limit = limit
	return f.runs, f.err
}

func sampleResult() *service.GenerateResult {
	vnd := "VND"
	return &service.GenerateResult{
		RequestID: "req-1",
		TaskType:  itinerary.TaskPreviewItinerary,
		Provider:  service.SlotPrimary,
		Itinerary: &itinerary.GeneratedItinerary{
			Currency: &vnd,
			Days: []itinerary.GeneratedDay{{
				DayNumber:  1,
				Activities: []itinerary.GeneratedActivity{{Title: "My Khe Beach", Currency: &vnd}},
			}},
		},
	}
}

func buildTestRouter(gen handlers.ItineraryGenerator, enricher handlers.ItineraryEnricher, quota aiusage.Quota, runs handlers.RunLister) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(httpmiddleware.RequestID(), httpmiddleware.Auth(nil))
	h := handlers.NewItineraryHandler(gen, enricher, quota, 3)
	r.POST("/api/ai/itinerary/preview", h.Preview)
	r.POST("/api/ai/itinerary/enrich", h.Enrich)
	r.GET("/api/ai/runs", handlers.NewRunsHandler(runs).List)
	return r
}

func doRequest(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(httpmiddleware.RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPreview_Success(t *testing.T) {
	gen := &fakeGenerator{res: sampleResult()}
	quota := &fakeQuota{}
	r := buildTestRouter(gen, nil, quota, nil)

	w := doRequest(r, http.MethodPost, "/api/ai/itinerary/preview", map[string]any{
		"prompt":       "  3-day Da Nang trip, budget 3000000 VND ",
		"currencyHint": "VND",
		"taskType":     "preview_itinerary",
		"tripId":       "trip_42",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, "3-day Da Nang trip, budget 3000000 VND", gen.got.Prompt)
	assert.Equal(t, "req-1", gen.got.RequestID)
	assert.Equal(t, httpmiddleware.AnonymousUID, gen.got.UserID)
	assert.Equal(t, "trip_42", gen.got.TripID)
	assert.Equal(t, 1, quota.used)
	assert.Zero(t, quota.refunds)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "primary", body["provider"])
	assert.NotContains(t, body, "enrichment")
	it := body["itinerary"].(map[string]any)
	act := it["days"].([]any)[0].(map[string]any)["activities"].([]any)[0].(map[string]any)
	assert.Contains(t, act, "poi")
	assert.Nil(t, act["poi"])
}

func TestPreview_BadInput(t *testing.T) {
	quota := &fakeQuota{}
	r := buildTestRouter(&fakeGenerator{res: sampleResult()}, nil, quota, nil)

	for name, body := range map[string]any{
		"missing prompt": map[string]any{"currencyHint": "USD"},
		"blank prompt":   map[string]any{"prompt": "   "},
		"bad trip id":    map[string]any{"prompt": "x", "tripId": "../etc"},
		"bad poi cap":    map[string]any{"prompt": "x", "maxPoiPerDay": -1},
	} {
		w := doRequest(r, http.MethodPost, "/api/ai/itinerary/preview", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}
	assert.Zero(t, quota.used)
}

func TestPreview_ProvidersExhausted(t *testing.T) {
	quota := &fakeQuota{}
	r := buildTestRouter(&fakeGenerator{err: service.ErrProvidersExhausted}, nil, quota, nil)

	w := doRequest(r, http.MethodPost, "/api/ai/itinerary/preview", map[string]any{"prompt": "x"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), service.ErrProvidersExhausted.Error())
	assert.Contains(t, w.Body.String(), "req-1")
	assert.Equal(t, 1, quota.refunds)
}

func TestPreview_QuotaExhausted(t *testing.T) {
	gen := &fakeGenerator{res: sampleResult()}
	r := buildTestRouter(gen, nil, &fakeQuota{useErr: aiusage.ErrInsufficientTokens}, nil)

	w := doRequest(r, http.MethodPost, "/api/ai/itinerary/preview", map[string]any{"prompt": "x"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Empty(t, gen.got.Prompt)
}

func TestPreview_QuotaStoreDown(t *testing.T) {
	r := buildTestRouter(&fakeGenerator{res: sampleResult()}, nil, &fakeQuota{useErr: errors.New("db down")}, nil)
	w := doRequest(r, http.MethodPost, "/api/ai/itinerary/preview", map[string]any{"prompt": "x"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestPreview_ChainsEnrichment(t *testing.T) {
	enricher := &fakeEnricher{}
	r := buildTestRouter(&fakeGenerator{res: sampleResult()}, enricher, nil, nil)

	w := doRequest(r, http.MethodPost, "/api/ai/itinerary/preview", map[string]any{
		"prompt": "x", "enrich": true, "destination": "Da Nang",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, enricher.calls)
	assert.Equal(t, "Da Nang", enricher.opts.Destination)
	assert.Equal(t, 3, enricher.opts.MaxPerDay)
	assert.Contains(t, w.Body.String(), `"placeId":"p1"`)
	assert.Contains(t, w.Body.String(), `"resolved":1`)
}

func TestEnrich(t *testing.T) {
	enricher := &fakeEnricher{}
	r := buildTestRouter(nil, enricher, nil, nil)

	w := doRequest(r, http.MethodPost, "/api/ai/itinerary/enrich", map[string]any{
		"itinerary":    sampleResult().Itinerary,
		"maxPoiPerDay": 0,
		"withDetails":  true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Zero(t, enricher.opts.MaxPerDay)
	assert.True(t, enricher.opts.WithDetails)
	assert.Contains(t, w.Body.String(), `"placeId":"p1"`)

	w = doRequest(r, http.MethodPost, "/api/ai/itinerary/enrich", map[string]any{"itinerary": map[string]any{"days": []any{}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(buildTestRouter(nil, nil, nil, nil), http.MethodPost, "/api/ai/itinerary/enrich", map[string]any{})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRunsList(t *testing.T) {
	runs := &fakeRuns{runs: []telemetry.Run{{RequestID: "r2"}, {RequestID: "r1"}}}
	r := buildTestRouter(nil, nil, nil, runs)

	w := doRequest(r, http.MethodGet, "/api/ai/runs?limit=500", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, telemetry.MaxListLimit, runs.limit)
	assert.Contains(t, w.Body.String(), `"requestId":"r2"`)

	w = doRequest(r, http.MethodGet, "/api/ai/runs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, telemetry.DefaultListLimit, runs.limit)

	w = doRequest(r, http.MethodGet, "/api/ai/runs?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	runs.err = errors.New("db down")
	w = doRequest(r, http.MethodGet, "/api/ai/runs", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
