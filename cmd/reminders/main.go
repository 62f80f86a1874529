// Command reminders is the ImmoWächter operations CLI.
//
// Usage:
//
//	immowaechter-reminders sweep
//	immowaechter-reminders sweep --date 2025-01-01 --dry-run
//	immowaechter-reminders risk --property 6f1c2f9e-3b7a-4f44-9d7e-0a2b1c3d4e5f
//	immowaechter-reminders component serviced --id <uuid> --date 2025-03-14
//	immowaechter-reminders eligibility --due 2025-01-08 --today 2025-01-01
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/immowaechter/immowaechter/internal/app"
	"github.com/immowaechter/immowaechter/internal/component"
	"github.com/immowaechter/immowaechter/internal/config"
	"github.com/immowaechter/immowaechter/internal/notifications"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "immowaechter-reminders",
		Short:        "ImmoWächter maintenance reminder CLI",
		SilenceUsage: true,
	}

	root.AddCommand(sweepCmd())
	root.AddCommand(riskCmd())
	root.AddCommand(componentCmd())
	root.AddCommand(eligibilityCmd())
	return root
}

// --------------------------------------------------------------------------
// sweep command
// --------------------------------------------------------------------------

func sweepCmd() *cobra.Command {
	var (
		date   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one reminder sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			today, err := parseOptionalDate(date)
			if err != nil {
				return err
			}
			return withServices(func(ctx context.Context, cfg *config.Config, svc *app.Services) error {
				res, err := svc.Sweeper.Run(ctx, notifications.RunOptions{Today: today, DryRun: dryRun})
				if err != nil {
					return err
				}
				logger.Info("Sweep finished", "summary", res.Summary())
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Reference date YYYY-MM-DD (default: today in TIMEZONE)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Evaluate without sending")
	return cmd
}

// --------------------------------------------------------------------------
// risk command
// --------------------------------------------------------------------------

func riskCmd() *cobra.Command {
	var property string
	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Compute a property's risk score",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(property)
			if err != nil {
				return fmt.Errorf("--property must be a UUID: %w", err)
			}
			return withServices(func(ctx context.Context, cfg *config.Config, svc *app.Services) error {
				a, err := svc.Scorer.Score(ctx, id)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), a)
			})
		},
	}
	cmd.Flags().StringVar(&property, "property", "", "Property UUID")
	_ = cmd.MarkFlagRequired("property")
	return cmd
}

// --------------------------------------------------------------------------
// component command
// --------------------------------------------------------------------------

func componentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "component",
		Short: "Component maintenance records",
	}
	cmd.AddCommand(componentServicedCmd())
	return cmd
}

func componentServicedCmd() *cobra.Command {
	var (
		id   string
		date string
	)
	cmd := &cobra.Command{
		Use:   "serviced",
		Short: "Record a performed service and recompute the next due date",
		RunE: func(cmd *cobra.Command, args []string) error {
			componentID, err := uuid.Parse(id)
			if err != nil {
				return fmt.Errorf("--id must be a UUID: %w", err)
			}
			performed, err := parseOptionalDate(date)
			if err != nil {
				return err
			}
			return withServices(func(ctx context.Context, cfg *config.Config, svc *app.Services) error {
				if performed.IsZero() {
					performed = component.Today(time.Now(), cfg.Location())
				}
				res, err := svc.Store.RecordService(ctx, componentID, performed)
				if err != nil {
					return err
				}
				logger.Info("Service recorded", "component_id", componentID)
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Component UUID")
	cmd.Flags().StringVar(&date, "date", "", "Service date YYYY-MM-DD (default: today)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

// --------------------------------------------------------------------------
// eligibility command
// --------------------------------------------------------------------------

func eligibilityCmd() *cobra.Command {
	var due, today string
	cmd := &cobra.Command{
		Use:   "eligibility",
		Short: "Check whether a reminder fires for a due date (no database)",
		RunE: func(cmd *cobra.Command, args []string) error {
			dueDate, err := time.Parse(time.DateOnly, due)
			if err != nil {
				return fmt.Errorf("--due: %w", err)
			}
			ref, err := parseOptionalDate(today)
			if err != nil {
				return err
			}
			if ref.IsZero() {
				loc, err := config.LoadLocation()
				if err != nil {
					return err
				}
				ref = component.Today(time.Now(), loc)
			}
			return writeJSON(cmd.OutOrStdout(), notifications.Evaluate(dueDate, ref))
		},
	}
	cmd.Flags().StringVar(&due, "due", "", "Next due date YYYY-MM-DD")
	cmd.Flags().StringVar(&today, "today", "", "Reference date YYYY-MM-DD (default: today in TIMEZONE)")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func withServices(fn func(ctx context.Context, cfg *config.Config, svc *app.Services) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	svc, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	return fn(ctx, cfg, svc)
}

func parseOptionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
