package models

import "time"

// RetrievedChunk is one retrieval hit: a chunk reference with its relevance.
type RetrievedChunk struct {
	Chunk          *Chunk                 `json:"chunk"`
	Metadata       map[string]interface{} `json:"metadata"`
	RelevanceScore float64                `json:"relevance_score"`
}

// QueryResult is the outcome of one orchestrator invocation. Immutable, not
// persisted across calls.
type QueryResult struct {
	ID         string           `json:"id"`
	Query      string           `json:"query"`
	QueryType  QueryType        `json:"query_type"`
	Answer     string           `json:"answer"`
	Sources    []RetrievedChunk `json:"sources"`
	Confidence float64          `json:"confidence"`
	// NoData is set when the answer was generated without any retrieved
	// context, distinguishing "no data matched" from a pipeline failure.
	NoData      bool          `json:"no_data,omitempty"`
	Elapsed     time.Duration `json:"elapsed"`
	FromCache   bool          `json:"from_cache,omitempty"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// AnalysisResult is the outcome of the non-query analyze path. It shares the
// retrieval and formatting machinery with QueryResult.
type AnalysisResult struct {
	AnalysisType    string                 `json:"analysis_type"`
	Tickers         []string               `json:"tickers,omitempty"`
	PeriodStart     time.Time              `json:"period_start,omitempty"`
	PeriodEnd       time.Time              `json:"period_end,omitempty"`
	Findings        map[string]interface{} `json:"findings"`
	Recommendations []string               `json:"recommendations,omitempty"`
	RiskFactors     []string               `json:"risk_factors,omitempty"`
	Analysis        string                 `json:"analysis"`
	Sources         []RetrievedChunk       `json:"sources"`
	Confidence      float64                `json:"confidence"`
	Elapsed         time.Duration          `json:"elapsed"`
}
