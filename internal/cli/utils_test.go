package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/quantel/ohlcvrag/internal/models"
)

func sampleQueryResult() *models.QueryResult {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	return &models.QueryResult{
		ID:        "res-1",
		Query:     "what happened to AAPL",
		QueryType: models.QueryGeneral,
		Answer:    "AAPL rallied strongly through January.",
		Sources: []models.RetrievedChunk{
			{
				Chunk: &models.Chunk{
					ID:        models.ChunkID("AAPL", start, end),
					Ticker:    "AAPL",
					StartDate: start,
					EndDate:   end,
					Summary:   "Price advanced steadily with rising volume",
					Metadata: map[string]interface{}{
						models.MetaTrend: models.TrendUptrend,
					},
				},
				RelevanceScore: 0.91,
			},
		},
		Confidence: 0.8,
		Elapsed:    42 * time.Millisecond,
	}
}

func TestWriteQueryResult_JSON(t *testing.T) {
	result := sampleQueryResult()
	var buf bytes.Buffer
	if err := WriteQueryResult(&buf, result, OutputJSON); err != nil {
		t.Fatalf("WriteQueryResult(json): %v", err)
	}
	var decoded models.QueryResult
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Answer != result.Answer || decoded.Confidence != result.Confidence {
		t.Errorf("decoded answer=%q confidence=%v, want %q %v",
			decoded.Answer, decoded.Confidence, result.Answer, result.Confidence)
	}
	if len(decoded.Sources) != 1 || decoded.Sources[0].Chunk.Ticker != "AAPL" {
		t.Errorf("decoded sources: want one AAPL chunk, got %+v", decoded.Sources)
	}
}

func TestWriteQueryResult_text(t *testing.T) {
	result := sampleQueryResult()
	var buf bytes.Buffer
	if err := WriteQueryResult(&buf, result, OutputText); err != nil {
		t.Fatalf("WriteQueryResult(text): %v", err)
	}
	out := buf.String()
	for _, sub := range []string{
		"AAPL rallied strongly",
		"Confidence: 0.80",
		"Type: general",
		"42ms",
		"Sources:",
		"1. AAPL | 2024-01-02 to 2024-01-31 | Relevance: 0.91",
		"Trend: uptrend",
		"Price advanced steadily",
	} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
	if strings.Contains(out, "(cached)") {
		t.Errorf("uncached result should not be marked cached:\n%s", out)
	}
}

func TestWriteQueryResult_textCached(t *testing.T) {
	result := sampleQueryResult()
	result.FromCache = true
	var buf bytes.Buffer
	if err := WriteQueryResult(&buf, result, OutputText); err != nil {
		t.Fatalf("WriteQueryResult(text): %v", err)
	}
	if !strings.Contains(buf.String(), "(cached)") {
		t.Errorf("cached result should be marked cached:\n%s", buf.String())
	}
}

func TestWriteQueryResult_textNoData(t *testing.T) {
	result := &models.QueryResult{
		QueryType:  models.QueryGeneral,
		Answer:     "No relevant data found for your query.",
		NoData:     true,
		Confidence: 0,
	}
	var buf bytes.Buffer
	if err := WriteQueryResult(&buf, result, OutputText); err != nil {
		t.Fatalf("WriteQueryResult(text): %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "No indexed data matched this query.") {
		t.Errorf("expected no-data notice in output:\n%s", out)
	}
	if strings.Contains(out, "Sources:") {
		t.Errorf("no-data result should not list sources:\n%s", out)
	}
}

func TestWriteQueryResult_unknownFormatTreatedAsText(t *testing.T) {
	var buf bytes.Buffer
	err := WriteQueryResult(&buf, sampleQueryResult(), OutputFormat("unknown"))
	if err != nil {
		t.Fatalf("WriteQueryResult(unknown): %v", err)
	}
	if !strings.Contains(buf.String(), "Confidence:") {
		t.Errorf("unknown format should fall back to text; got %q", buf.String())
	}
}

func TestWriteAnalysisResult_text(t *testing.T) {
	result := &models.AnalysisResult{
		AnalysisType: "trend",
		Tickers:      []string{"AAPL"},
		PeriodStart:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		PeriodEnd:    time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC),
		Findings: map[string]interface{}{
			"primary_trend": "uptrend",
		},
		Recommendations: []string{"Watch for continuation above resistance"},
		RiskFactors:     []string{"RSI above 70 suggests overbought conditions"},
		Analysis:        "The stock shows a sustained uptrend.",
		Confidence:      0.75,
		Elapsed:         17 * time.Millisecond,
	}
	var buf bytes.Buffer
	if err := WriteAnalysisResult(&buf, result, OutputText); err != nil {
		t.Fatalf("WriteAnalysisResult(text): %v", err)
	}
	out := buf.String()
	for _, sub := range []string{
		"=== trend analysis ===",
		"Tickers: AAPL",
		"Period: 2024-01-02 to 2024-03-29",
		"primary_trend: uptrend",
		"sustained uptrend",
		"Watch for continuation",
		"overbought conditions",
		"Confidence: 0.75",
		"17ms",
	} {
		if !strings.Contains(out, sub) {
			t.Errorf("analysis output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteAnalysisResult_JSON(t *testing.T) {
	result := &models.AnalysisResult{
		AnalysisType: "pattern",
		Analysis:     "Found two matching windows.",
		Findings:     map[string]interface{}{"matching_windows": 2},
		Confidence:   0.6,
	}
	var buf bytes.Buffer
	if err := WriteAnalysisResult(&buf, result, OutputJSON); err != nil {
		t.Fatalf("WriteAnalysisResult(json): %v", err)
	}
	var decoded models.AnalysisResult
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.AnalysisType != "pattern" || decoded.Analysis != result.Analysis {
		t.Errorf("decoded analysis_type=%q analysis=%q, want pattern / %q",
			decoded.AnalysisType, decoded.Analysis, result.Analysis)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		s      string
		maxLen int
		want   string
	}{
		{"empty", "", 5, ""},
		{"short", "hi", 5, "hi"},
		{"exact", "hello", 5, "hello"},
		{"long", "hello world", 5, "hello..."},
		{"maxLen zero", "ab", 0, "ab"},
		{"maxLen negative", "ab", -1, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.s, tt.maxLen)
			if got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		maxWords int
		want     string
	}{
		{"empty", "", 3, ""},
		{"few words", "one two", 3, "one two"},
		{"exact", "one two three", 3, "one two three"},
		{"more", "one two three four", 3, "one two three..."},
		{"single long", "word", 1, "word"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateWords(tt.s, tt.maxWords)
			if got != tt.want {
				t.Errorf("TruncateWords(%q, %d) = %q, want %q", tt.s, tt.maxWords, got, tt.want)
			}
		})
	}
}

func TestPrintQueryResult(t *testing.T) {
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() {
		os.Stdout = oldStdout
		_ = w.Close()
	}()
	PrintQueryResult(sampleQueryResult())
	_ = w.Close()
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	if !strings.Contains(buf.String(), "Confidence: 0.80") {
		t.Errorf("PrintQueryResult should write to stdout; got %q", buf.String())
	}
}
