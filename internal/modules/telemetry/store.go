// README: Orchestration run store backed by PostgreSQL.
package telemetry

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists orchestration runs.
type Store interface {
	Insert(ctx context.Context, run Run) error
	ListRecent(ctx context.Context, limit int) ([]Run, error)
}

// PostgresStore writes runs to the ai_orchestration_runs table.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, r Run) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ai_orchestration_runs (
			id, request_id, user_id, trip_id, task_type,
			prompt_hash, prompt_length, provider, provider_backend, fallback_used,
			cache_local_hit, cache_redis_hit, total_ms, provider_ms, parse_ms,
			json_valid, json_repaired, schema_errors_count,
			day_count, activity_count, poi_count,
			response_length, currency_hint, error_message, created_at
		) VALUES (
			$1, $2, NULLIF($3, ''), NULLIF($4, ''), $5,
			$6, $7, NULLIF($8, ''), NULLIF($9, ''), $10,
			$11, $12, $13, $14, $15,
			$16, $17, $18,
			$19, $20, $21,
			$22, NULLIF($23, ''), NULLIF($24, ''), $25
		)`,
		r.ID, r.RequestID, r.UserID, r.TripID, r.TaskType,
		r.PromptHash, r.PromptLength, r.Provider, r.ProviderBackend, r.FallbackUsed,
		r.CacheLocalHit, r.CacheRedisHit, r.TotalMs, r.ProviderMs, r.ParseMs,
		r.JSONValid, r.JSONRepaired, r.SchemaErrorsCount,
		r.DayCount, r.ActivityCount, r.POICount,
		r.ResponseLength, r.CurrencyHint, r.ErrorMessage, r.CreatedAt,
	)
	return err
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, request_id, COALESCE(user_id, ''), COALESCE(trip_id, ''), task_type,
		       prompt_hash, prompt_length, COALESCE(provider, ''), COALESCE(provider_backend, ''), fallback_used,
		       cache_local_hit, cache_redis_hit, total_ms, provider_ms, parse_ms,
		       json_valid, json_repaired, schema_errors_count,
		       day_count, activity_count, poi_count,
		       response_length, COALESCE(currency_hint, ''), COALESCE(error_message, ''), created_at
		FROM ai_orchestration_runs
		ORDER BY created_at DESC
		LIMIT $1`, ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(
			&r.ID, &r.RequestID, &r.UserID, &r.TripID, &r.TaskType,
			&r.PromptHash, &r.PromptLength, &r.Provider, &r.ProviderBackend, &r.FallbackUsed,
			&r.CacheLocalHit, &r.CacheRedisHit, &r.TotalMs, &r.ProviderMs, &r.ParseMs,
			&r.JSONValid, &r.JSONRepaired, &r.SchemaErrorsCount,
			&r.DayCount, &r.ActivityCount, &r.POICount,
			&r.ResponseLength, &r.CurrencyHint, &r.ErrorMessage, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// MemoryStore keeps the most recent runs in a bounded ring. Used when no
// database is configured.
type MemoryStore struct {
	mu   sync.Mutex
	runs []Run
	next int
	full bool
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = MaxListLimit
	}
	return &MemoryStore{runs: make([]Run, capacity)}
}

func (s *MemoryStore) Insert(_ context.Context, r Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[s.next] = r
	s.next = (s.next + 1) % len(s.runs)
	if s.next == 0 {
		s.full = true
	}
	return nil
}

// ListRecent returns runs newest first.
func (s *MemoryStore) ListRecent(_ context.Context, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	size := s.next
	if s.full {
		size = len(s.runs)
	}
	limit = ClampLimit(limit)
	if limit > size {
		limit = size
	}
	out := make([]Run, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (s.next - 1 - i + len(s.runs)) % len(s.runs)
		out = append(out, s.runs[idx])
	}
	return out, nil
}
