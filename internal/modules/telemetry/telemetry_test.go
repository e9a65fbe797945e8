package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfarer/internal/infra"
)

func TestClampLimit(t *testing.T) {
	cases := map[int]int{-3: DefaultListLimit, 0: DefaultListLimit, 1: 1, 200: 200, 201: MaxListLimit, 10000: MaxListLimit}
	for in, want := range cases {
		assert.Equal(t, want, ClampLimit(in), "limit %d", in)
	}
}

func TestMemoryStoreNewestFirstAndBounded(t *testing.T) {
	store := NewMemoryStore(3)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, store.Insert(ctx, Run{RequestID: fmt.Sprintf("r%d", i)}))
	}

	runs, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "r5", runs[0].RequestID)
	assert.Equal(t, "r4", runs[1].RequestID)
	assert.Equal(t, "r3", runs[2].RequestID)

	runs, err = store.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "r5", runs[0].RequestID)
}

func TestMemoryStoreEmpty(t *testing.T) {
	runs, err := NewMemoryStore(0).ListRecent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSinkStampsAndSurvivesCancellation(t *testing.T) {
	store := NewMemoryStore(10)
	sink := NewSink(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink.RecordRun(ctx, Run{RequestID: "req-1", TaskType: "preview_itinerary"})
	sink.Wait()

	runs, err := sink.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.NotEmpty(t, runs[0].ID)
	assert.False(t, runs[0].CreatedAt.IsZero())
	assert.Equal(t, "req-1", runs[0].RequestID)
}

type failingStore struct {
	mu    sync.Mutex
	calls int
	panic bool
}

func (f *failingStore) Insert(context.Context, Run) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.panic {
		panic("boom")
	}
	return errors.New("db down")
}

func (f *failingStore) ListRecent(context.Context, int) ([]Run, error) { return nil, nil }

func TestSinkSwallowsStoreFailures(t *testing.T) {
	for _, panics := range []bool{false, true} {
		store := &failingStore{panic: panics}
		sink := NewSink(store)
		assert.NotPanics(t, func() {
			sink.RecordRun(context.Background(), Run{RequestID: "x"})
			sink.Wait()
		})
		assert.Equal(t, 1, store.calls)
	}
}

func TestNilSinkIsNoop(t *testing.T) {
	var sink *Sink
	assert.NotPanics(t, func() { sink.RecordRun(context.Background(), Run{}) })
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("WAYFARER_TEST_DSN")
	if dsn == "" {
		t.Skip("WAYFARER_TEST_DSN not set; skipping DB-backed tests")
	}
	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	root, err := infra.RepoRoot()
	require.NoError(t, err)
	require.NoError(t, infra.ApplyMigrations(ctx, db, filepath.Join(root, "migrations")))
	_, err = db.Exec(ctx, "TRUNCATE TABLE ai_orchestration_runs")
	require.NoError(t, err)

	store := NewPostgresStore(db)
	sink := NewSink(store)
	base := time.Now().UTC().Truncate(time.Millisecond)
	sink.RecordRun(ctx, Run{RequestID: "old", TaskType: "generate_itinerary", PromptHash: "h", CreatedAt: base.Add(-time.Minute)})
	sink.RecordRun(ctx, Run{
		RequestID: "new", TaskType: "preview_itinerary", PromptHash: "h", Provider: "secondary",
		ProviderBackend: "openai", FallbackUsed: true, DayCount: 3, CurrencyHint: "VND", CreatedAt: base,
	})
	sink.Wait()

	runs, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].RequestID)
	assert.Equal(t, "secondary", runs[0].Provider)
	assert.True(t, runs[0].FallbackUsed)
	assert.Equal(t, 3, runs[0].DayCount)
	assert.Equal(t, "VND", runs[0].CurrencyHint)
	assert.Empty(t, runs[1].UserID)
}
