package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pauljones0/gapfinder/internal/app"
	"github.com/pauljones0/gapfinder/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "gapfinder",
	Short:         "Search competitor tools, complaints and market gaps",
	Long:          "A CLI over the gapfinder search engine and its offline cache.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("format", "table", "Output format: json, table")
	rootCmd.PersistentFlags().Bool("offline", false, "Use the cached dataset only and queue actions without delivering them")
}

// loadApp reads configuration and builds the components, honouring --offline.
func loadApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	offline, _ := cmd.Flags().GetBool("offline")
	return app.New(cmd.Context(), cfg, !offline)
}

// withData runs fn once the store holds a snapshot: the cached one, refreshed
// from the dataset source unless --offline is set.
func withData(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	warmed := a.Refresher.Warm(ctx)
	offline, _ := cmd.Flags().GetBool("offline")
	if !offline || !warmed {
		if res, err := a.Refresher.Refresh(ctx); err != nil {
			slog.Warn("Dataset refresh failed", "error", err, "serving", res.Source)
		}
	}
	return fn(ctx, a)
}

// withCache runs fn against the cache layer without touching the dataset.
func withCache(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}
