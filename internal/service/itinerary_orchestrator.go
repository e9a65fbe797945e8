// README: Itinerary orchestration: cache lookup, primary attempt with one repair
// retry, fallback attempt with one repair retry, then background cache write and telemetry.
package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"wayfarer/internal/ai"
	"wayfarer/internal/itinerary"
	"wayfarer/internal/modules/aicache"
	"wayfarer/internal/modules/telemetry"
)

const (
	SlotPrimary   = "primary"
	SlotSecondary = "secondary"

	// DefaultBackgroundTimeout bounds a detached cache write.
	DefaultBackgroundTimeout = 5 * time.Second

	previewLimit = 300
)

var tracer = otel.Tracer("wayfarer/internal/service")

// ItineraryCache is the two-tier cache as seen by the orchestrator.
type ItineraryCache interface {
	Lookup(ctx context.Context, key string) (*itinerary.GeneratedItinerary, aicache.Hit)
	Store(ctx context.Context, key string, g *itinerary.GeneratedItinerary)
}

// RunRecorder receives one telemetry record per Generate call. It must not block.
type RunRecorder interface {
	RecordRun(ctx context.Context, run telemetry.Run)
}

// GenerateRequest is one itinerary generation.
type GenerateRequest struct {
	RequestID    string
	UserID       string
	TripID       string
	Prompt       string
	CurrencyHint string
	TaskType     string
}

// GenerateResult is a schema-valid itinerary plus how it was produced.
type GenerateResult struct {
	RequestID    string                        `json:"requestId"`
	TaskType     itinerary.TaskType            `json:"taskType"`
	Itinerary    *itinerary.GeneratedItinerary `json:"itinerary"`
	Provider     string                        `json:"provider,omitempty"`
	FallbackUsed bool                          `json:"fallbackUsed"`
	CacheHit     bool                          `json:"cacheHit"`
}

// OrchestratorOptions tunes retry and background behaviour.
type OrchestratorOptions struct {
	// RetryTransportErrors gives transport and empty-content failures the same
	// repair retry as parse and schema failures. Off by default.
	RetryTransportErrors bool
	BackgroundTimeout    time.Duration
}

type slot struct {
	label    string
	provider ai.Provider
}

// ItineraryOrchestrator turns prompts into validated itineraries.
type ItineraryOrchestrator struct {
	slots          []slot
	cache          ItineraryCache
	recorder       RunRecorder
	retryTransport bool
	bgTimeout      time.Duration
	bg             sync.WaitGroup
	now            func() time.Time
}

// NewItineraryOrchestrator wires the providers in the order they are tried.
// fallback, cache and recorder may be nil.
func NewItineraryOrchestrator(primary, fallback ai.Provider, cache ItineraryCache, recorder RunRecorder, opts OrchestratorOptions) *ItineraryOrchestrator {
	o := &ItineraryOrchestrator{
		cache:          cache,
		recorder:       recorder,
		retryTransport: opts.RetryTransportErrors,
		bgTimeout:      opts.BackgroundTimeout,
		now:            time.Now,
	}
	if o.bgTimeout <= 0 {
		o.bgTimeout = DefaultBackgroundTimeout
	}
	if primary != nil {
		o.slots = append(o.slots, slot{label: SlotPrimary, provider: primary})
	}
	if fallback != nil {
		o.slots = append(o.slots, slot{label: SlotSecondary, provider: fallback})
	}
	return o
}

// attemptStats accumulates measurements across the attempts of one request.
type attemptStats struct {
	providerTime   time.Duration
	parseTime      time.Duration
	responseLength int
	repaired       bool
}

// Generate returns a schema-valid itinerary for req or ErrProvidersExhausted.
// Every activity in the result has a nil POI.
func (o *ItineraryOrchestrator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	start := o.now()
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	taskType := itinerary.ResolveTaskType(req.TaskType)
	hint := itinerary.NormalizeCurrency(req.CurrencyHint)

	ctx, span := tracer.Start(ctx, "itinerary.generate", trace.WithAttributes(
		attribute.String("request_id", req.RequestID),
		attribute.String("task_type", string(taskType)),
		attribute.Int("prompt_length", len(req.Prompt)),
	))
	defer span.End()

	run := telemetry.Run{
		RequestID:    req.RequestID,
		UserID:       req.UserID,
		TripID:       req.TripID,
		TaskType:     string(taskType),
		PromptHash:   aicache.PromptHash(req.Prompt),
		PromptLength: len(req.Prompt),
		CurrencyHint: hint,
	}
	key := aicache.Fingerprint(req.Prompt, hint, string(taskType))

	if cached, hit := o.lookup(ctx, req.RequestID, key, taskType, hint); cached != nil {
		run.CacheLocalHit = hit.Local
		run.CacheRedisHit = hit.Redis
		run.JSONValid = true
		o.finish(ctx, &run, cached, start)
		span.SetAttributes(attribute.Bool("cache_hit", true))
		generationDuration.WithLabelValues("cache_hit").Observe(o.now().Sub(start).Seconds())
		return &GenerateResult{RequestID: req.RequestID, TaskType: taskType, Itinerary: cached, CacheHit: true}, nil
	}

	conversation := buildConversation(itinerary.SchemaFor(taskType), req.Prompt, hint)
	var stats attemptStats
	var lastErr *AttemptError
	schemaErrors := 0

	for i, s := range o.slots {
		if ctx.Err() != nil {
			break
		}
		run.Provider = s.label
		run.ProviderBackend = s.provider.Name()
		run.FallbackUsed = i > 0

		g, err := o.tryProvider(ctx, req.RequestID, s, conversation, taskType, &stats)
		if err != nil {
			lastErr = err
			if n := err.SchemaErrorCount(); n > 0 {
				schemaErrors = n
			}
			continue
		}

		itinerary.StripPOI(g)
		itinerary.ApplyCurrencyFallback(g, hint)
		run.JSONValid = true
		run.JSONRepaired = stats.repaired
		run.SchemaErrorsCount = 0
		o.applyStats(&run, stats)
		o.storeAsync(ctx, key, g.Clone())
		o.finish(ctx, &run, g, start)

		span.SetAttributes(attribute.String("provider", s.label), attribute.Bool("fallback_used", run.FallbackUsed))
		generationDuration.WithLabelValues("ok").Observe(o.now().Sub(start).Seconds())
		return &GenerateResult{
			RequestID:    req.RequestID,
			TaskType:     taskType,
			Itinerary:    g,
			Provider:     s.label,
			FallbackUsed: run.FallbackUsed,
		}, nil
	}

	run.SchemaErrorsCount = schemaErrors
	run.JSONRepaired = stats.repaired
	o.applyStats(&run, stats)
	switch {
	case lastErr != nil:
		run.ErrorMessage = lastErr.Error()
	case ctx.Err() != nil:
		run.ErrorMessage = ctx.Err().Error()
	default:
		run.ErrorMessage = "no providers configured"
	}
	o.finish(ctx, &run, nil, start)

	log.Error().Str("request_id", req.RequestID).Str("task_type", string(taskType)).
		Str("last_error", run.ErrorMessage).Msg("itinerary generation exhausted all providers")
	span.SetStatus(codes.Error, "providers exhausted")
	generationDuration.WithLabelValues("exhausted").Observe(o.now().Sub(start).Seconds())
	return nil, ErrProvidersExhausted
}

// lookup returns a cached itinerary that still validates for taskType after
// POI stripping and currency fallback. Anything else counts as a miss.
func (o *ItineraryOrchestrator) lookup(ctx context.Context, requestID, key string, taskType itinerary.TaskType, hint string) (*itinerary.GeneratedItinerary, aicache.Hit) {
	if o.cache == nil {
		return nil, aicache.Hit{}
	}
	cached, hit := o.cache.Lookup(ctx, key)
	if cached == nil {
		return nil, aicache.Hit{}
	}
	itinerary.StripPOI(cached)
	itinerary.ApplyCurrencyFallback(cached, hint)
	if res := itinerary.Validate(cached, taskType); !res.Valid {
		log.Warn().Str("request_id", requestID).Str("key", key).Str("schema", res.Schema).
			Int("schema_errors", len(res.Errors)).Str("errors", res.Summary()).
			Msg("cached itinerary failed validation; treating as miss")
		return nil, aicache.Hit{}
	}
	return cached, hit
}

// tryProvider runs the original attempt and, when the failure allows it, one
// repair attempt against the same provider.
func (o *ItineraryOrchestrator) tryProvider(ctx context.Context, requestID string, s slot, conversation []ai.Turn, taskType itinerary.TaskType, stats *attemptStats) (*itinerary.GeneratedItinerary, *AttemptError) {
	g, err := o.attempt(ctx, requestID, s, "original", conversation, taskType, stats)
	if err == nil {
		return g, nil
	}
	if !err.repairable(o.retryTransport) || ctx.Err() != nil {
		return nil, err
	}
	return o.attempt(ctx, requestID, s, "repair", repairConversation(conversation, err), taskType, stats)
}

func (o *ItineraryOrchestrator) attempt(ctx context.Context, requestID string, s slot, phase string, conversation []ai.Turn, taskType itinerary.TaskType, stats *attemptStats) (g *itinerary.GeneratedItinerary, aerr *AttemptError) {
	ctx, span := tracer.Start(ctx, "itinerary.attempt", trace.WithAttributes(
		attribute.String("slot", s.label),
		attribute.String("backend", s.provider.Name()),
		attribute.String("phase", phase),
	))
	var content string
	defer func() {
		outcome := "ok"
		if aerr != nil {
			outcome = string(aerr.Kind)
			span.RecordError(aerr)
			span.SetStatus(codes.Error, outcome)
			log.Warn().Err(aerr.Err).
				Str("request_id", requestID).
				Str("provider", s.label).
				Str("backend", s.provider.Name()).
				Str("phase", phase).
				Str("kind", string(aerr.Kind)).
				Int("schema_errors", aerr.SchemaErrorCount()).
				Str("preview", ai.Truncate(content, previewLimit)).
				Msg("provider attempt failed")
		}
		providerAttempts.WithLabelValues(s.label, s.provider.Name(), outcome).Inc()
		span.End()
	}()

	fail := func(kind AttemptKind, err error) *AttemptError {
		return &AttemptError{Kind: kind, Provider: s.label, Err: err}
	}

	callStart := o.now()
	env, err := s.provider.Submit(ctx, conversation)
	stats.providerTime += o.now().Sub(callStart)
	if err != nil {
		return nil, fail(KindTransport, err)
	}
	content = env.Content()
	stats.responseLength = len(content)
	if strings.TrimSpace(content) == "" {
		return nil, fail(KindEmptyContent, nil)
	}

	parseStart := o.now()
	defer func() { stats.parseTime += o.now().Sub(parseStart) }()

	extracted, err := itinerary.ExtractJSON(content)
	if err != nil {
		return nil, fail(KindJSONParse, err)
	}
	doc := itinerary.Normalize(extracted.Value)
	result := itinerary.Validate(doc, taskType)
	if !result.Valid {
		aerr := fail(KindSchemaValidation, nil)
		aerr.Validation = &result
		return nil, aerr
	}
	g, err = itinerary.ToItinerary(doc)
	if err != nil {
		return nil, fail(KindSchemaValidation, err)
	}
	stats.repaired = extracted.Repaired
	return g, nil
}

func (o *ItineraryOrchestrator) applyStats(run *telemetry.Run, stats attemptStats) {
	run.ProviderMs = stats.providerTime.Milliseconds()
	run.ParseMs = stats.parseTime.Milliseconds()
	run.ResponseLength = stats.responseLength
}

func (o *ItineraryOrchestrator) finish(ctx context.Context, run *telemetry.Run, g *itinerary.GeneratedItinerary, start time.Time) {
	run.DayCount, run.ActivityCount, run.POICount = g.Counts()
	run.TotalMs = o.now().Sub(start).Milliseconds()
	if o.recorder != nil {
		o.recorder.RecordRun(ctx, *run)
	}
}

// storeAsync writes g to the cache off the request path. The write outlives
// the request context but not the background timeout.
func (o *ItineraryOrchestrator) storeAsync(ctx context.Context, key string, g *itinerary.GeneratedItinerary) {
	if o.cache == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	o.bg.Add(1)
	go func() {
		defer o.bg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("key", key).Msg("cache write panicked")
			}
		}()
		writeCtx, cancel := context.WithTimeout(bg, o.bgTimeout)
		defer cancel()
		o.cache.Store(writeCtx, key, g)
	}()
}

// Wait blocks until background cache writes have finished.
func (o *ItineraryOrchestrator) Wait() {
	o.bg.Wait()
}
