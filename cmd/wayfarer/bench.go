package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const (
	statusPass    = "PASS"
	statusFail    = "FAIL"
	statusPending = "PENDING"
	statusSkip    = "SKIP"

	benchPrompt = "2-day Da Nang trip for two, budget 3000000 VND, beaches and street food"
)

type benchConfig struct {
	BaseURL       string
	Token         string
	DSN           string
	RedisAddr     string
	MigrationsDir string
	Strict        bool
	Timeout       time.Duration
	Concurrency   int
	Duration      time.Duration
}

type benchResult struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type benchCase struct {
	Name string
	Run  func(ctx context.Context, r *benchRunner) benchResult
}

type benchRunner struct {
	cfg   benchConfig
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
}

func benchCmd() *cobra.Command {
	var cfg benchConfig
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run smoke and load checks against a running API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
			defer cancel()

			results := newBenchRunner(cfg).runAll(ctx, cmd.OutOrStdout())
			counts := map[string]int{}
			for _, r := range results {
				counts[r.Status]++
			}
			fmt.Fprintln(cmd.OutOrStdout(), "\n== Summary ==")
			fmt.Fprintf(cmd.OutOrStdout(), "PASS=%d FAIL=%d PENDING=%d SKIP=%d\n",
				counts[statusPass], counts[statusFail], counts[statusPending], counts[statusSkip])

			if counts[statusFail] > 0 || (cfg.Strict && counts[statusPending] > 0) {
				return fmt.Errorf("bench: %d failed, %d pending", counts[statusFail], counts[statusPending])
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "base-url", envOr("WAYFARER_BENCH_BASE_URL", "http://localhost:8080"), "API base URL")
	f.StringVar(&cfg.Token, "token", os.Getenv("WAYFARER_BENCH_TOKEN"), "Bearer token for /api/ai routes")
	f.StringVar(&cfg.DSN, "dsn", os.Getenv("WAYFARER_DB_DSN"), "Postgres DSN for schema checks")
	f.StringVar(&cfg.RedisAddr, "redis", os.Getenv("WAYFARER_REDIS_ADDR"), "Redis address for connectivity check")
	f.StringVar(&cfg.MigrationsDir, "migrations", "migrations", "Migrations directory")
	f.BoolVar(&cfg.Strict, "strict", false, "Treat PENDING as failure")
	f.DurationVar(&cfg.Timeout, "timeout", 3*time.Minute, "Overall timeout")
	f.IntVar(&cfg.Concurrency, "concurrency", 8, "Load test workers")
	f.DurationVar(&cfg.Duration, "duration", 5*time.Second, "Load test duration")
	return cmd
}

func newBenchRunner(cfg benchConfig) *benchRunner {
	return &benchRunner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 90 * time.Second},
	}
}

func (r *benchRunner) runAll(ctx context.Context, out io.Writer) []benchResult {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
			defer db.Close()
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
		defer r.redis.Close()
	}

	cases := r.cases()
	results := make([]benchResult, 0, len(cases))
	for _, tc := range cases {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Fprintf(out, "%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Fprintf(out, " (%s)", res.Latency.Round(time.Millisecond))
		}
		if res.Note != "" {
			fmt.Fprintf(out, " - %s", res.Note)
		}
		fmt.Fprintln(out)
	}
	return results
}

func (r *benchRunner) cases() []benchCase {
	base := r.cfg.BaseURL
	return []benchCase{
		{Name: "Env: Postgres connect", Run: func(ctx context.Context, r *benchRunner) benchResult {
			if r.db == nil {
				return benchResult{Status: statusSkip, Note: "dsn not set"}
			}
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := r.db.Ping(ctx); err != nil {
				return benchResult{Status: statusFail, Note: err.Error()}
			}
			return benchResult{Status: statusPass}
		}},
		{Name: "Env: Redis connect", Run: func(ctx context.Context, r *benchRunner) benchResult {
			if r.redis == nil {
				return benchResult{Status: statusSkip, Note: "redis not set"}
			}
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := r.redis.Ping(ctx).Err(); err != nil {
				return benchResult{Status: statusFail, Note: err.Error()}
			}
			return benchResult{Status: statusPass}
		}},
		{Name: "Migration: tables exist", Run: func(ctx context.Context, r *benchRunner) benchResult {
			if r.db == nil {
				return benchResult{Status: statusSkip, Note: "dsn not set"}
			}
			tables, err := migrationTables(r.cfg.MigrationsDir)
			if err != nil {
				return benchResult{Status: statusFail, Note: err.Error()}
			}
			for _, t := range tables {
				var exists bool
				err := r.db.QueryRow(ctx,
					"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)", t,
				).Scan(&exists)
				if err != nil {
					return benchResult{Status: statusFail, Note: err.Error()}
				}
				if !exists {
					return benchResult{Status: statusFail, Note: "missing table: " + t}
				}
			}
			return benchResult{Status: statusPass, Note: fmt.Sprintf("%d tables", len(tables))}
		}},

		r.httpCase("API: health", http.MethodGet, base+"/health", nil, []int{200}, nil),
		r.httpCase("API: metrics exposed", http.MethodGet, base+"/metrics", nil, []int{200}, nil),

		r.httpCase("Preview: missing prompt -> 400", http.MethodPost, base+"/api/ai/itinerary/preview",
			map[string]any{}, []int{400}, []int{401}),
		r.httpCase("Preview: generate", http.MethodPost, base+"/api/ai/itinerary/preview",
			map[string]any{"prompt": benchPrompt, "currencyHint": "VND"}, []int{200}, []int{401, 429, 502}),
		{Name: "Preview: repeat is served from cache", Run: func(ctx context.Context, r *benchRunner) benchResult {
			var body struct {
				CacheHit bool `json:"cacheHit"`
			}
			start := time.Now()
			status, err := r.doJSON(ctx, http.MethodPost, base+"/api/ai/itinerary/preview",
				map[string]any{"prompt": benchPrompt, "currencyHint": "VND"}, &body)
			if err != nil {
				return benchResult{Status: statusFail, Note: err.Error()}
			}
			if status != http.StatusOK {
				return benchResult{Status: statusPending, Note: fmt.Sprintf("status=%d", status)}
			}
			if !body.CacheHit {
				return benchResult{Status: statusFail, Latency: time.Since(start), Note: "cacheHit=false"}
			}
			return benchResult{Status: statusPass, Latency: time.Since(start)}
		}},

		r.httpCase("Enrich: empty itinerary -> 400", http.MethodPost, base+"/api/ai/itinerary/enrich",
			map[string]any{"itinerary": map[string]any{"days": []any{}}}, []int{400}, []int{401, 503}),
		r.httpCase("Runs: list", http.MethodGet, base+"/api/ai/runs?limit=5", nil, []int{200}, []int{401, 403}),

		{Name: "Perf: health load", Run: func(ctx context.Context, r *benchRunner) benchResult {
			return r.load(ctx, base+"/health")
		}},
	}
}

// httpCase passes on one of pass, is PENDING on one of pending and fails otherwise.
func (r *benchRunner) httpCase(name, method, url string, payload any, pass, pending []int) benchCase {
	return benchCase{Name: name, Run: func(ctx context.Context, r *benchRunner) benchResult {
		start := time.Now()
		status, err := r.doJSON(ctx, method, url, payload, nil)
		latency := time.Since(start)
		if err != nil {
			return benchResult{Status: statusFail, Note: err.Error()}
		}
		note := fmt.Sprintf("status=%d", status)
		switch {
		case slices.Contains(pass, status):
			return benchResult{Status: statusPass, Latency: latency, Note: note}
		case slices.Contains(pending, status):
			return benchResult{Status: statusPending, Latency: latency, Note: note}
		default:
			return benchResult{Status: statusFail, Latency: latency, Note: note}
		}
	}}
}

func (r *benchRunner) doJSON(ctx context.Context, method, url string, payload, out any) (int, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.Token)
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
		return resp.StatusCode, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (r *benchRunner) load(ctx context.Context, url string) benchResult {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				if _, err := r.doJSON(ctx, http.MethodGet, url, nil, nil); err != nil {
					errCount.Add(1)
					continue
				}
				count.Add(1)
			}
		}()
	}
	wg.Wait()

	if count.Load() == 0 {
		return benchResult{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count.Load()) / r.cfg.Duration.Seconds()
	return benchResult{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount.Load())}
}

var createTableRe = regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)

// migrationTables lists the tables created by the *.sql files in dir.
func migrationTables(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	var tables []string
	for _, path := range files {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		for _, m := range createTableRe.FindAllStringSubmatch(string(b), -1) {
			tables = append(tables, m[1])
		}
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("no CREATE TABLE statements under %s", dir)
	}
	return tables, nil
}
