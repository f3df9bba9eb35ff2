package models

import (
	"fmt"
	"strings"
)

// QueryType classifies user intent; it selects the prompt template.
type QueryType string

const (
	QueryGeneral    QueryType = "general"
	QueryPattern    QueryType = "pattern"
	QueryComparison QueryType = "comparison"
	QueryPrediction QueryType = "prediction"
	QueryTechnical  QueryType = "technical"
)

// ParseQueryType parses s into a QueryType. Unknown or empty values fall back
// to QueryGeneral; ok reports whether s named a known type.
func ParseQueryType(s string) (qt QueryType, ok bool) {
	switch QueryType(strings.ToLower(strings.TrimSpace(s))) {
	case QueryGeneral:
		return QueryGeneral, true
	case QueryPattern:
		return QueryPattern, true
	case QueryComparison:
		return QueryComparison, true
	case QueryPrediction:
		return QueryPrediction, true
	case QueryTechnical:
		return QueryTechnical, true
	default:
		return QueryGeneral, false
	}
}

// Pattern labels recognized by pattern retrieval.
const (
	PatternUptrend       = "uptrend"
	PatternDowntrend     = "downtrend"
	PatternBreakout      = "breakout"
	PatternReversal      = "reversal"
	PatternConsolidation = "consolidation"
)

// QueryRequest is one orchestrator invocation.
type QueryRequest struct {
	Query string `json:"query"`
	// TypeHint, when set, takes precedence over keyword classification.
	TypeHint string `json:"type,omitempty"`
	Ticker   string `json:"ticker,omitempty"`
	NResults int    `json:"n_results,omitempty"`
	// BypassCache skips the response cache for this invocation.
	BypassCache bool `json:"bypass_cache,omitempty"`
}

// Validate normalizes the request and rejects empty queries.
func (r *QueryRequest) Validate() error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return &ValidationError{Field: "query", Reason: "cannot be empty"}
	}
	if r.NResults < 0 {
		return &ValidationError{Field: "n_results", Reason: fmt.Sprintf("must be non-negative, got %d", r.NResults)}
	}
	return nil
}
