package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pauljones0/gapfinder/internal/app"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache, queue and connectivity status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd, func(ctx context.Context, a *app.App) error {
			st := a.Cache.Status(ctx)
			return output(cmd, st, func() { printStatusTable(cmd.OutOrStdout(), st) })
		})
	},
}

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Deliver queued actions to the sync endpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd, func(ctx context.Context, a *app.App) error {
			if !a.Cache.Online() {
				return fmt.Errorf("cannot flush while --offline is set")
			}
			res, err := a.Cache.Flush(ctx)
			if err != nil {
				return fmt.Errorf("flush interrupted: %w", err)
			}
			return output(cmd, res, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "delivered %d, retried %d, dropped %d, remaining %d\n",
					res.Delivered, res.Retried, res.Dropped, res.Remaining)
			})
		})
	},
}

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Drop the cached dataset and search history, keeping preferences and queued actions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd, func(ctx context.Context, a *app.App) error {
			a.Cache.ClearCache(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent searches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd, func(ctx context.Context, a *app.App) error {
			h := a.Cache.History(ctx)
			return output(cmd, h, func() {
				for _, e := range h {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", e.SearchedAt.Local().Format("2006-01-02 15:04"), e.Query)
				}
			})
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd, flushCmd, clearCacheCmd, historyCmd)
}
