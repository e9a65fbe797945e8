package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfarer/internal/ai"
	"wayfarer/internal/itinerary"
	"wayfarer/internal/modules/aicache"
	"wayfarer/internal/modules/telemetry"
)

type reply struct {
	content string
	err     error
}

// scriptedProvider answers calls from a script; the last reply repeats.
type scriptedProvider struct {
	name    string
	mu      sync.Mutex
	replies []reply
	calls   [][]ai.Turn
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Submit(_ context.Context, conversation []ai.Turn) (*ai.Envelope, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, conversation)
	r := p.replies[len(p.replies)-1]
	if len(p.calls) <= len(p.replies) {
		r = p.replies[len(p.calls)-1]
	}
	if r.err != nil {
		return nil, r.err
	}
	return ai.NewEnvelope(r.content), nil
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type recorder struct {
	mu   sync.Mutex
	runs []telemetry.Run
}

func (r *recorder) RecordRun(_ context.Context, run telemetry.Run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
}

func (r *recorder) last(t *testing.T) telemetry.Run {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.runs)
	return r.runs[len(r.runs)-1]
}

const validItinerary = `{"days":[{"dayNumber":1,"activities":[{"title":"Walk the old town","cost":"12,000","poi":{"placeId":"fake"}}]}],"currency":null}`

const daNangFenced = "Here you go:\n```json\n" + `{
  "days": [
    {"dayNumber": 1, "activities": [{"time": "09:00", "title": "My Khe Beach", "cost": 0}, {"title": "Han Market", "cost": "150000"}]},
    {"dayNumber": 2, "activities": [{"title": "Marble Mountains", "cost": 40000, "poi": {"placeId": "hallucinated"}}]},
    {"dayNumber": 3, "activities": [{"title": "Ba Na Hills", "cost": 900000, "currency": "vnd"}]}
  ],
  "totalCost": "2,500,000"
}` + "\n```\nEnjoy!"

func newCache() *aicache.Service {
	return aicache.NewService(aicache.NewLocalTier(time.Minute, time.Minute), nil, time.Minute, 0)
}

func TestGenerateDaNangPreviewScenario(t *testing.T) {
	primary := &scriptedProvider{name: "gemini", replies: []reply{{content: daNangFenced}}}
	fallback := &scriptedProvider{name: "openai", replies: []reply{{err: errors.New("unused")}}}
	rec := &recorder{}
	o := NewItineraryOrchestrator(primary, fallback, newCache(), rec, OrchestratorOptions{})

	res, err := o.Generate(context.Background(), GenerateRequest{
		Prompt:       "3-day Da Nang trip, budget 3000000 VND",
		CurrencyHint: "VND",
		TaskType:     "preview_itinerary",
	})
	require.NoError(t, err)
	o.Wait()

	g := res.Itinerary
	require.Len(t, g.Days, 3)
	require.NotNil(t, g.Currency)
	assert.Equal(t, "VND", *g.Currency)
	for _, d := range g.Days {
		for _, a := range d.Activities {
			assert.Nil(t, a.POI)
			require.NotNil(t, a.Currency)
			assert.Equal(t, "VND", *a.Currency)
		}
	}
	require.NotNil(t, g.TotalCost)
	assert.Equal(t, 2500000.0, *g.TotalCost)
	assert.Equal(t, itinerary.TaskPreviewItinerary, res.TaskType)
	assert.Equal(t, SlotPrimary, res.Provider)
	assert.Zero(t, fallback.callCount())

	run := rec.last(t)
	assert.False(t, run.JSONRepaired)
	assert.True(t, run.JSONValid)
	assert.Equal(t, "primary", run.Provider)
	assert.Equal(t, "gemini", run.ProviderBackend)
	assert.False(t, run.FallbackUsed)
	assert.False(t, run.CacheRedisHit)
	assert.False(t, run.CacheLocalHit)
	assert.Equal(t, 3, run.DayCount)
	assert.Equal(t, 4, run.ActivityCount)
	assert.Zero(t, run.POICount)
	assert.Equal(t, "VND", run.CurrencyHint)
	assert.Equal(t, "preview_itinerary", run.TaskType)
}

func TestGenerateFallsBackWhenPrimaryThrows(t *testing.T) {
	primary := &scriptedProvider{name: "gemini", replies: []reply{{err: errors.New("dial tcp: timeout")}}}
	fallback := &scriptedProvider{name: "openai", replies: []reply{{content: validItinerary}}}
	rec := &recorder{}
	o := NewItineraryOrchestrator(primary, fallback, nil, rec, OrchestratorOptions{})

	res, err := o.Generate(context.Background(), GenerateRequest{Prompt: "a day in Hue", CurrencyHint: "usd"})
	require.NoError(t, err)

	// Transport failures skip the repair retry.
	assert.Equal(t, 1, primary.callCount())
	assert.Equal(t, 1, fallback.callCount())
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, SlotSecondary, res.Provider)

	run := rec.last(t)
	assert.True(t, run.FallbackUsed)
	assert.Equal(t, "secondary", run.Provider)
	assert.Equal(t, "openai", run.ProviderBackend)

	// Currency fallback law.
	require.NotNil(t, res.Itinerary.Currency)
	assert.Equal(t, "USD", *res.Itinerary.Currency)
	assert.Equal(t, "USD", *res.Itinerary.Days[0].Activities[0].Currency)
	assert.Nil(t, res.Itinerary.Days[0].Activities[0].POI)
}

func TestGenerateRetriesTransportWhenEnabled(t *testing.T) {
	primary := &scriptedProvider{name: "gemini", replies: []reply{{err: errors.New("503")}, {content: validItinerary}}}
	o := NewItineraryOrchestrator(primary, nil, nil, nil, OrchestratorOptions{RetryTransportErrors: true})

	res, err := o.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, 2, primary.callCount())
	assert.False(t, res.FallbackUsed)
}

func TestGenerateTotalFailure(t *testing.T) {
	primary := &scriptedProvider{name: "gemini", replies: []reply{{content: "I cannot help with that."}}}
	fallback := &scriptedProvider{name: "openai", replies: []reply{{content: `{"notes":"no days here"}`}}}
	rec := &recorder{}
	cache := newCache()
	o := NewItineraryOrchestrator(primary, fallback, cache, rec, OrchestratorOptions{})

	req := GenerateRequest{Prompt: "impossible trip", TaskType: "plan"}
	res, err := o.Generate(context.Background(), req)
	require.ErrorIs(t, err, ErrProvidersExhausted)
	assert.Nil(t, res)
	o.Wait()

	// Each provider gets the original prompt and exactly one repair.
	assert.Equal(t, 2, primary.callCount())
	assert.Equal(t, 2, fallback.callCount())

	run := rec.last(t)
	assert.False(t, run.JSONValid)
	assert.True(t, run.FallbackUsed)
	assert.NotEmpty(t, run.ErrorMessage)
	assert.Positive(t, run.SchemaErrorsCount)
	assert.Zero(t, run.DayCount)

	cached, _ := cache.Lookup(context.Background(), aicache.Fingerprint(req.Prompt, "", req.TaskType))
	assert.Nil(t, cached)
}

func TestGenerateAllProvidersThrow(t *testing.T) {
	boom := reply{err: errors.New("unauthorized")}
	o := NewItineraryOrchestrator(
		&scriptedProvider{name: "gemini", replies: []reply{boom}},
		&scriptedProvider{name: "openai", replies: []reply{boom}},
		nil, nil, OrchestratorOptions{},
	)
	_, err := o.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	require.ErrorIs(t, err, ErrProvidersExhausted)
	assert.NotContains(t, err.Error(), "unauthorized")
}

func TestGenerateRepairPromptCarriesSchemaErrors(t *testing.T) {
	primary := &scriptedProvider{name: "gemini", replies: []reply{
		{content: `{"days":[{"dayNumber":1,"activities":[]}]}`},
		{content: validItinerary},
	}}
	o := NewItineraryOrchestrator(primary, nil, nil, nil, OrchestratorOptions{})

	_, err := o.Generate(context.Background(), GenerateRequest{Prompt: "weekend in Hoi An", TaskType: "generate_itinerary"})
	require.NoError(t, err)
	require.Equal(t, 2, primary.callCount())

	first, second := primary.calls[0], primary.calls[1]
	assert.Equal(t, ai.RoleSystem, second[0].Role)
	assert.Equal(t, first[0].Content, second[0].Content)
	repair := second[len(second)-1].Content
	assert.True(t, strings.HasPrefix(repair, "weekend in Hoi An"))
	assert.Contains(t, repair, "days[0].activities: must contain at least 1 item(s)")
	assert.Contains(t, repair, "Return ONLY the JSON object")
}

func TestGenerateEmptyContentFallsThrough(t *testing.T) {
	primary := &scriptedProvider{name: "gemini", replies: []reply{{content: "   "}}}
	fallback := &scriptedProvider{name: "openai", replies: []reply{{content: validItinerary}}}
	o := NewItineraryOrchestrator(primary, fallback, nil, nil, OrchestratorOptions{})

	res, err := o.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, primary.callCount())
	assert.True(t, res.FallbackUsed)
}

func TestGenerateServesCacheHit(t *testing.T) {
	primary := &scriptedProvider{name: "gemini", replies: []reply{{content: validItinerary}}}
	rec := &recorder{}
	o := NewItineraryOrchestrator(primary, nil, newCache(), rec, OrchestratorOptions{})
	req := GenerateRequest{Prompt: "two days in Hanoi", CurrencyHint: "eur"}

	first, err := o.Generate(context.Background(), req)
	require.NoError(t, err)
	o.Wait()

	// Mutating the returned itinerary must not leak into the cache.
	first.Itinerary.Days[0].Activities[0].POI = &itinerary.POISnapshot{PlaceID: "p"}

	second, err := o.Generate(context.Background(), GenerateRequest{Prompt: "two days in Hanoi", CurrencyHint: " EUR "})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, 1, primary.callCount())
	assert.Nil(t, second.Itinerary.Days[0].Activities[0].POI)
	assert.Equal(t, "EUR", *second.Itinerary.Currency)

	run := rec.last(t)
	assert.True(t, run.CacheLocalHit)
	assert.False(t, run.CacheRedisHit)
	assert.Empty(t, run.Provider)
}

func TestGenerateRepairedJSONIsFlagged(t *testing.T) {
	primary := &scriptedProvider{name: "gemini", replies: []reply{{content: `{"days":[{"dayNumber":1,"activities":[{"title":"Cafe",},]},]`}}}
	rec := &recorder{}
	o := NewItineraryOrchestrator(primary, nil, nil, rec, OrchestratorOptions{})

	_, err := o.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.True(t, rec.last(t).JSONRepaired)
}

func TestGenerateStopsOnCancelledContext(t *testing.T) {
	primary := &scriptedProvider{name: "gemini", replies: []reply{{err: context.Canceled}}}
	fallback := &scriptedProvider{name: "openai", replies: []reply{{content: validItinerary}}}
	o := NewItineraryOrchestrator(primary, fallback, nil, nil, OrchestratorOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.Generate(ctx, GenerateRequest{Prompt: "x"})
	require.ErrorIs(t, err, ErrProvidersExhausted)
	assert.Zero(t, fallback.callCount())
}

func TestGenerateWithoutProviders(t *testing.T) {
	rec := &recorder{}
	o := NewItineraryOrchestrator(nil, nil, nil, rec, OrchestratorOptions{})
	_, err := o.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	require.ErrorIs(t, err, ErrProvidersExhausted)
	assert.Equal(t, "no providers configured", rec.last(t).ErrorMessage)
}

func TestGenerateResultAlwaysValidatesForHint(t *testing.T) {
	cases := []struct {
		name     string
		hint     string
		task     string
		currency *string
	}{
		{name: "iso hint", hint: "VND", task: "preview_itinerary", currency: strPtr("VND")},
		{name: "lowercase hint", hint: "usd", currency: strPtr("USD")},
		{name: "three letters but not iso", hint: "abc"},
		{name: "legacy yuan alias", hint: "RMB"},
		{name: "empty hint", hint: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			primary := &scriptedProvider{name: "gemini", replies: []reply{{content: validItinerary}}}
			o := NewItineraryOrchestrator(primary, nil, nil, nil, OrchestratorOptions{})

			res, err := o.Generate(context.Background(), GenerateRequest{Prompt: "x", CurrencyHint: tc.hint, TaskType: tc.task})
			require.NoError(t, err)
			check := itinerary.Validate(res.Itinerary, res.TaskType)
			assert.True(t, check.Valid, "errors: %v", check.Errors)
			assert.Equal(t, tc.currency, res.Itinerary.Currency)
		})
	}
}

func TestGenerateNonISOModelCurrencyFallsBackToHint(t *testing.T) {
	reply1 := `{"days":[{"dayNumber":1,"activities":[{"title":"Bund walk","currency":"rmb"}]}],"currency":"RMB"}`
	primary := &scriptedProvider{name: "gemini", replies: []reply{{content: reply1}}}
	o := NewItineraryOrchestrator(primary, nil, nil, nil, OrchestratorOptions{})

	res, err := o.Generate(context.Background(), GenerateRequest{Prompt: "Shanghai weekend", CurrencyHint: "CNY"})
	require.NoError(t, err)
	assert.Equal(t, 1, primary.callCount())
	assert.Equal(t, "CNY", *res.Itinerary.Currency)
	assert.Equal(t, "CNY", *res.Itinerary.Days[0].Activities[0].Currency)
}

func TestGenerateCachedEntriesAreRevalidated(t *testing.T) {
	cases := []struct {
		name    string
		cached  string
		wantHit bool
	}{
		{name: "valid entry", cached: validItinerary, wantHit: true},
		{name: "no days", cached: `{"days":[]}`},
		{name: "day without activities", cached: `{"days":[{"dayNumber":1,"activities":[]}]}`},
		{name: "negative cost", cached: `{"days":[{"dayNumber":1,"activities":[{"title":"a","cost":-5}]}]}`},
		{name: "bad activity currency", cached: `{"days":[{"dayNumber":1,"activities":[{"title":"a","currency":"ABC"}]}]}`, wantHit: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			local := aicache.NewLocalTier(time.Minute, time.Minute)
			cache := aicache.NewService(local, nil, time.Minute, 0)
			if tc.cached == validItinerary {
				g := mustItinerary(t, validItinerary)
				raw, err := json.Marshal(g)
				require.NoError(t, err)
				tc.cached = string(raw)
			}
			key := aicache.Fingerprint("x", "", string(itinerary.DefaultTaskType))
			require.NoError(t, local.Set(context.Background(), key, []byte(tc.cached), time.Minute))

			primary := &scriptedProvider{name: "gemini", replies: []reply{{content: validItinerary}}}
			rec := &recorder{}
			o := NewItineraryOrchestrator(primary, nil, cache, rec, OrchestratorOptions{})

			res, err := o.Generate(context.Background(), GenerateRequest{Prompt: "x"})
			require.NoError(t, err)
			o.Wait()

			assert.Equal(t, tc.wantHit, res.CacheHit)
			assert.Equal(t, tc.wantHit, rec.last(t).CacheLocalHit)
			if tc.wantHit {
				assert.Zero(t, primary.callCount())
			} else {
				assert.Equal(t, 1, primary.callCount())
			}
			check := itinerary.Validate(res.Itinerary, res.TaskType)
			assert.True(t, check.Valid, "errors: %v", check.Errors)
		})
	}
}

func mustItinerary(t *testing.T, raw string) *itinerary.GeneratedItinerary {
	t.Helper()
	ex, err := itinerary.ExtractJSON(raw)
	require.NoError(t, err)
	g, err := itinerary.ToItinerary(itinerary.Normalize(ex.Value))
	require.NoError(t, err)
	return g
}

func strPtr(s string) *string { return &s }
