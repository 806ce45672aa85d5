package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pauljones0/gapfinder/internal/app"
	"github.com/pauljones0/gapfinder/internal/models"
	"github.com/pauljones0/gapfinder/internal/search"
)

type strategy func(e *search.Engine, query string, f models.Filters) ([]models.SearchResult, error)

func newSearchCmd(use, short string, pick strategy) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " [query]",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			f := filtersFromFlags(cmd)
			return withData(cmd, func(ctx context.Context, a *app.App) error {
				results, err := pick(a.Engine, query, f)
				if err != nil {
					return fmt.Errorf("%s failed: %w", use, err)
				}
				a.Cache.AddHistory(ctx, query)
				return output(cmd, results, func() { printResultsTable(cmd.OutOrStdout(), results) })
			})
		},
	}
	addFilterFlags(cmd)
	return cmd
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("category", nil, "Keep tools in these categories")
	cmd.Flags().StringSlice("price", nil, "Price brackets: free, under-10, 10-50, 50-100, over-100")
	cmd.Flags().StringSlice("difficulty", nil, "Gap difficulties: easy, medium, hard")
	cmd.Flags().StringSlice("potential", nil, "Gap potentials: low, medium, high, very high")
}

func filtersFromFlags(cmd *cobra.Command) models.Filters {
	var f models.Filters
	f.Categories, _ = cmd.Flags().GetStringSlice("category")
	prices, _ := cmd.Flags().GetStringSlice("price")
	for _, p := range prices {
		f.PriceRanges = append(f.PriceRanges, models.PriceBracket(strings.ToLower(p)))
	}
	diffs, _ := cmd.Flags().GetStringSlice("difficulty")
	for _, d := range diffs {
		f.Difficulties = append(f.Difficulties, models.Difficulty(strings.ToLower(d)))
	}
	pots, _ := cmd.Flags().GetStringSlice("potential")
	for _, p := range pots {
		f.Potentials = append(f.Potentials, models.Potential(strings.ToLower(p)))
	}
	return f
}

var smartCmd = &cobra.Command{
	Use:   "smart [query]",
	Short: "Run every strategy and summarise the results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		f := filtersFromFlags(cmd)
		return withData(cmd, func(ctx context.Context, a *app.App) error {
			resp, err := a.Engine.SmartSearch(ctx, query, f)
			if err != nil {
				return fmt.Errorf("smart search failed: %w", err)
			}
			a.Cache.AddHistory(ctx, query)
			return output(cmd, resp, func() { printSmartTable(cmd.OutOrStdout(), resp) })
		})
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest [partial]",
	Short: "Suggest completions for a partial query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withData(cmd, func(ctx context.Context, a *app.App) error {
			sugg, err := a.Engine.Suggestions(args[0])
			if err != nil {
				return err
			}
			return output(cmd, sugg, func() { printSuggestionsTable(cmd.OutOrStdout(), sugg) })
		})
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List dataset categories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withData(cmd, func(ctx context.Context, a *app.App) error {
			cats, err := a.Engine.Categories()
			if err != nil {
				return err
			}
			return output(cmd, cats, func() {
				for _, c := range cats {
					fmt.Fprintln(cmd.OutOrStdout(), c)
				}
			})
		})
	},
}

var popularCmd = &cobra.Command{
	Use:   "popular",
	Short: "List tools by community votes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withData(cmd, func(ctx context.Context, a *app.App) error {
			tools, err := a.Engine.PopularTools(limit)
			if err != nil {
				return err
			}
			return output(cmd, tools, func() { printToolsTable(cmd.OutOrStdout(), tools) })
		})
	},
}

func init() {
	rootCmd.AddCommand(
		newSearchCmd("search", "Fuzzy search tools by name, keywords, aliases and more", (*search.Engine).Search),
		newSearchCmd("problems", "Find tools whose users complain about a problem", (*search.Engine).SearchByProblem),
		newSearchCmd("opportunities", "Find tools with industry gaps matching a query", (*search.Engine).SearchByOpportunity),
		smartCmd,
		suggestCmd,
		categoriesCmd,
		popularCmd,
	)
	addFilterFlags(smartCmd)
	popularCmd.Flags().Int("limit", 10, "Number of tools to list")
}
