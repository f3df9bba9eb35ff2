// Package cli provides output helpers for the command line interface.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/quantel/ohlcvrag/internal/models"
)

// OutputFormat is the format for result output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteQueryResult writes a query result to w in the given format.
func WriteQueryResult(w io.Writer, result *models.QueryResult, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	default:
		writeQueryResultText(w, result)
		return nil
	}
}

func writeQueryResultText(w io.Writer, result *models.QueryResult) {
	fmt.Fprintf(w, "\n%s\n", result.Answer)
	fmt.Fprintf(w, "\nConfidence: %.2f", result.Confidence)
	if result.FromCache {
		fmt.Fprint(w, " (cached)")
	}
	fmt.Fprintf(w, " | Type: %s | %dms\n", result.QueryType, result.Elapsed.Milliseconds())
	if result.NoData {
		fmt.Fprintln(w, "\nNo indexed data matched this query.")
		return
	}
	if len(result.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for i, src := range result.Sources {
			writeSource(w, i+1, src)
		}
	}
}

func writeSource(w io.Writer, rank int, src models.RetrievedChunk) {
	c := src.Chunk
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "%d. %s | %s | Relevance: %.2f\n", rank, c.Ticker, c.Period(), src.RelevanceScore)
	if trend, ok := c.Metadata[models.MetaTrend].(string); ok {
		fmt.Fprintf(w, "   Trend: %s\n", trend)
	}
	fmt.Fprintf(w, "   %s\n", TruncateWords(c.Summary, 30))
}

// WriteAnalysisResult writes an analysis result to w in the given format.
func WriteAnalysisResult(w io.Writer, result *models.AnalysisResult, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	default:
		writeAnalysisResultText(w, result)
		return nil
	}
}

func writeAnalysisResultText(w io.Writer, result *models.AnalysisResult) {
	fmt.Fprintf(w, "\n=== %s analysis ===\n", result.AnalysisType)
	if len(result.Tickers) > 0 {
		fmt.Fprintf(w, "Tickers: %s\n", strings.Join(result.Tickers, ", "))
	}
	if !result.PeriodStart.IsZero() {
		fmt.Fprintf(w, "Period: %s to %s\n",
			result.PeriodStart.Format("2006-01-02"), result.PeriodEnd.Format("2006-01-02"))
	}
	if len(result.Findings) > 0 {
		fmt.Fprintln(w, "\nFindings:")
		for k, v := range result.Findings {
			fmt.Fprintf(w, "  %s: %v\n", k, v)
		}
	}
	fmt.Fprintf(w, "\n%s\n", result.Analysis)
	if len(result.Recommendations) > 0 {
		fmt.Fprintln(w, "\nRecommendations:")
		for _, r := range result.Recommendations {
			fmt.Fprintf(w, "  - %s\n", r)
		}
	}
	if len(result.RiskFactors) > 0 {
		fmt.Fprintln(w, "\nRisk factors:")
		for _, r := range result.RiskFactors {
			fmt.Fprintf(w, "  - %s\n", r)
		}
	}
	fmt.Fprintf(w, "\nConfidence: %.2f | %dms\n", result.Confidence, result.Elapsed.Milliseconds())
}

// PrintQueryResult prints a query result to stdout in text format.
func PrintQueryResult(result *models.QueryResult) {
	_ = WriteQueryResult(os.Stdout, result, OutputText)
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
