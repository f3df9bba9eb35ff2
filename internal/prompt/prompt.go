// Package prompt renders LLM prompts per query type. Templates use
// text/template with a fixed parameter set so unknown query types can fall
// back to the general template without losing placeholders.
package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/quantel/ohlcvrag/internal/models"
)

// Params feeds a template. Context and Query are always set; the remaining
// fields matter only to specific templates.
type Params struct {
	Context string
	Query   string
	// PatternType names the candlestick or trend pattern for pattern queries.
	PatternType string
	// Tickers lists the symbols under comparison.
	Tickers []string
	// Ticker is the single symbol for prediction queries.
	Ticker string
	// Indicator names the indicator in focus for technical queries.
	Indicator string
}

var templates = map[models.QueryType]string{
	models.QueryGeneral: `You are a financial analyst assistant specializing in technical analysis of OHLCV data.

Based on the following retrieved OHLCV data and technical indicators:

{{.Context}}

Please answer the following question:
{{.Query}}

Provide a detailed analysis including:
1. Key observations from the data
2. Relevant patterns or trends
3. Technical indicator insights
4. Potential implications for traders
5. Risk considerations if applicable

Base your answer strictly on the provided data.`,

	models.QueryPattern: `Analyze the following OHLCV data for pattern identification:

{{.Context}}

Pattern to identify: {{.PatternType}}

Provide:
1. Confirmation of pattern presence
2. Pattern strength (weak/moderate/strong)
3. Supporting indicators
4. Entry/exit points if applicable
5. Risk/reward considerations`,

	models.QueryComparison: `Compare the following stocks based on their OHLCV data:

{{.Context}}

Stocks to compare: {{join .Tickers ", "}}

Provide:
1. Performance comparison
2. Volatility analysis
3. Volume patterns
4. Trend strength comparison
5. Technical setup evaluation`,

	models.QueryPrediction: `Based on the historical OHLCV data and technical indicators:

{{.Context}}

Ticker: {{.Ticker}}

Provide:
1. Current market structure analysis
2. Support and resistance levels
3. Probable scenarios
4. Risk factors
5. Technical direction indicators

NOTE: This is technical analysis only, not financial advice.`,

	models.QueryTechnical: `Perform technical analysis on the following OHLCV data:

{{.Context}}

Focus on: {{.Indicator}}

Provide:
1. Indicator values and interpretation
2. Signal strength
3. Convergence/divergence patterns
4. Historical comparison
5. Trading implications`,
}

// Manager holds the parsed templates.
type Manager struct {
	parsed map[models.QueryType]*template.Template
}

// NewManager parses the built-in templates. Parsing happens once at startup
// so render errors can only come from template execution, not syntax.
func NewManager() (*Manager, error) {
	funcs := template.FuncMap{"join": strings.Join}
	parsed := make(map[models.QueryType]*template.Template, len(templates))
	for qt, text := range templates {
		t, err := template.New(string(qt)).Funcs(funcs).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", qt, err)
		}
		parsed[qt] = t
	}
	return &Manager{parsed: parsed}, nil
}

// Render fills the template for queryType with p. Unknown types render the
// general template.
func (m *Manager) Render(queryType models.QueryType, p Params) (string, error) {
	t, ok := m.parsed[queryType]
	if !ok {
		t = m.parsed[models.QueryGeneral]
	}
	if p.PatternType == "" {
		p.PatternType = "general"
	}
	if p.Indicator == "" {
		p.Indicator = "all available indicators"
	}
	var b strings.Builder
	if err := t.Execute(&b, p); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", queryType, err)
	}
	return b.String(), nil
}
