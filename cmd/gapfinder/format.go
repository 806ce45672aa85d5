package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/pauljones0/gapfinder/internal/models"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#86AAEC")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#50FA7B"))
)

// output writes v as indented JSON, or calls printTable for --format table.
func output(cmd *cobra.Command, v any, printTable func()) error {
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "table", "":
		printTable()
		return nil
	default:
		return fmt.Errorf("unknown format %q: want json or table", format)
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func printResultsTable(w io.Writer, results []models.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No matches.")
		return
	}
	t := newTable("#", "Tool", "Category", "Pricing", "Score", "Match", "Matched")
	for i, r := range results {
		t.Row(
			strconv.Itoa(i+1),
			r.Tool.Name,
			r.Tool.Category,
			truncate(r.Tool.Pricing, 20),
			strconv.FormatFloat(r.Score, 'f', 2, 64),
			string(r.MatchType),
			truncate(strings.Join(r.MatchedKeywords, ", "), 40),
		)
	}
	fmt.Fprintln(w, t.Render())
}

func printToolsTable(w io.Writer, tools []models.ToolRecord) {
	t := newTable("#", "Tool", "Category", "Pricing", "Votes")
	for i, tool := range tools {
		t.Row(strconv.Itoa(i+1), tool.Name, tool.Category, truncate(tool.Pricing, 20), strconv.Itoa(tool.CommunityVotes))
	}
	fmt.Fprintln(w, t.Render())
}

func printSuggestionsTable(w io.Writer, sugg []models.SearchSuggestion) {
	if len(sugg) == 0 {
		fmt.Fprintln(w, "No suggestions.")
		return
	}
	t := newTable("Suggestion", "Type", "Count")
	for _, s := range sugg {
		count := ""
		if s.Count > 0 {
			count = strconv.Itoa(s.Count)
		}
		t.Row(truncate(s.Text, 60), string(s.Type), count)
	}
	fmt.Fprintln(w, t.Render())
}

func printSmartTable(w io.Writer, resp *models.SmartSearchResponse) {
	sections := []struct {
		title   string
		results []models.SearchResult
	}{
		{"Direct matches", resp.DirectMatches},
		{"Problem-based matches", resp.ProblemBasedMatches},
		{"Opportunity-based matches", resp.OpportunityBasedMatches},
	}
	for _, s := range sections {
		fmt.Fprintln(w, sectionStyle.Render(s.title))
		printResultsTable(w, s.results)
	}

	if len(resp.SimilarTools) > 0 {
		fmt.Fprintln(w, sectionStyle.Render("Similar tools"))
		t := newTable("Tool", "Similar to", "Pricing", "Known")
		for _, st := range resp.SimilarTools {
			known := "no"
			if st.Resolved {
				known = "yes"
			}
			t.Row(st.Tool.Name, st.SourceID, truncate(st.Tool.Pricing, 20), known)
		}
		fmt.Fprintln(w, t.Render())
	}

	in := resp.Insights
	fmt.Fprintln(w, sectionStyle.Render("Insights"))
	fmt.Fprintf(w, "  distinct tools:  %d\n", in.DistinctTools)
	fmt.Fprintf(w, "  average votes:   %.1f\n", in.AverageVotes)
	if in.TopProblem != "" {
		fmt.Fprintf(w, "  top problem:     %s\n", in.TopProblem)
	}
	if in.TopOpportunity != "" {
		fmt.Fprintf(w, "  top opportunity: %s\n", in.TopOpportunity)
	}
	cats := make([]string, 0, len(in.CategoryBreakdown))
	for c := range in.CategoryBreakdown {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		fmt.Fprintf(w, "  %-16s %d\n", c+":", in.CategoryBreakdown[c])
	}
}

func printStatusTable(w io.Writer, st models.OfflineStatus) {
	lastSync := "never"
	if !st.LastSync.IsZero() {
		lastSync = st.LastSync.Local().Format("2006-01-02 15:04:05")
	}
	t := newTable("Field", "Value").
		Row("online", strconv.FormatBool(st.IsOnline)).
		Row("degraded", strconv.FormatBool(st.Degraded)).
		Row("last sync", lastSync).
		Row("cached records", strconv.Itoa(st.CachedRecordCount)).
		Row("queued actions", strconv.Itoa(st.QueuedActionCount)).
		Row("storage", fmt.Sprintf("%.2f / %.0f MB", st.StorageUsedMB, st.StorageLimitMB))
	fmt.Fprintln(w, t.Render())
}
