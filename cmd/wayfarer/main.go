// README: Operator CLI: one-off previews, run inspection, migrations and API smoke checks.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"wayfarer/internal/app"
	"wayfarer/internal/config"
	"wayfarer/internal/infra"
	"wayfarer/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:           "wayfarer",
		Short:         "Itinerary generation toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			infra.NewLogger(logLevel, true)
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "Log level (debug, info, warn, error)")

	cmd.AddCommand(previewCmd(), runsCmd(), migrateCmd(), benchCmd())
	return cmd
}

func previewCmd() *cobra.Command {
	var (
		currency    string
		taskType    string
		enrich      bool
		destination string
		maxPerDay   int
	)
	cmd := &cobra.Command{
		Use:   "preview <prompt>",
		Short: "Generate an itinerary from a prompt and print it as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cfg, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			defer a.Drain()

			res, err := a.Orchestrator.Generate(ctx, service.GenerateRequest{
				UserID:       "cli",
				Prompt:       strings.Join(args, " "),
				CurrencyHint: currency,
				TaskType:     taskType,
			})
			if err != nil {
				return err
			}

			out := map[string]any{"result": res}
			if enrich {
				if a.Enricher == nil {
					return errors.New("--enrich needs GOOGLE_MAPS_API_KEY")
				}
				if !cmd.Flags().Changed("max-per-day") {
					maxPerDay = cfg.AI.MaxPOIPerDay
				}
				report, err := a.Enricher.Enrich(ctx, res.Itinerary, service.EnrichOptions{
					Destination: destination,
					MaxPerDay:   maxPerDay,
				})
				if err != nil {
					return err
				}
				out["enrichment"] = report
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&currency, "currency", "", "Preferred ISO-4217 currency")
	cmd.Flags().StringVar(&taskType, "task", "", "Task type (generate_itinerary, preview_itinerary)")
	cmd.Flags().BoolVar(&enrich, "enrich", false, "Attach Google Places POIs to activities")
	cmd.Flags().StringVar(&destination, "destination", "", "Destination used to anchor POI lookups")
	cmd.Flags().IntVar(&maxPerDay, "max-per-day", 0, "Max POIs resolved per day (0 = unlimited)")
	return cmd
}

func runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent orchestration runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cfg, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if cfg.DB.DSN == "" {
				return errors.New("runs needs WAYFARER_DB_DSN")
			}
			runs, err := a.Runs.ListRecent(ctx, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), runs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show")
	return cmd
}

func migrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations to WAYFARER_DB_DSN",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DB.DSN == "" {
				return errors.New("migrate needs WAYFARER_DB_DSN")
			}
			db, err := infra.NewDB(ctx, cfg.DB.DSN)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := infra.ApplyMigrations(ctx, db, dir); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "migrations", "Directory holding *.sql migrations")
	return cmd
}

func buildApp(ctx context.Context) (*app.App, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, cfg, err
	}
	a, err := app.Build(ctx, cfg)
	return a, cfg, err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
