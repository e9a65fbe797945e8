package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const writeTimeout = 5 * time.Second

// Sink records runs in the background. Recording never blocks the caller and
// its failures are logged and discarded.
type Sink struct {
	store Store
	wg    sync.WaitGroup
	now   func() time.Time
}

func NewSink(store Store) *Sink {
	return &Sink{store: store, now: time.Now}
}

// RecordRun stamps the run with an id and creation time and writes it on a
// background goroutine detached from ctx cancellation.
func (s *Sink) RecordRun(ctx context.Context, run Run) {
	if s == nil || s.store == nil {
		return
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now().UTC()
	}

	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("request_id", run.RequestID).Str("panic", fmt.Sprint(r)).Msg("telemetry write panicked")
			}
		}()
		writeCtx, cancel := context.WithTimeout(bg, writeTimeout)
		defer cancel()
		if err := s.store.Insert(writeCtx, run); err != nil {
			log.Warn().Err(err).Str("request_id", run.RequestID).Msg("telemetry write failed")
		}
	}()
}

// ListRecent returns the newest runs first.
func (s *Sink) ListRecent(ctx context.Context, limit int) ([]Run, error) {
	return s.store.ListRecent(ctx, ClampLimit(limit))
}

// Wait blocks until every pending write has finished.
func (s *Sink) Wait() {
	s.wg.Wait()
}
