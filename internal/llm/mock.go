package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockClient returns a deterministic canned analysis without any network
// call. Useful for tests and for running the pipeline end to end before an
// API key is configured.
type MockClient struct {
	model string

	mu      sync.Mutex
	calls   int
	prompts []string

	// Response overrides the generated answer when set.
	Response string
	// Err, when set, is returned from every Generate call.
	Err error
}

func NewMockClient(model string) *MockClient {
	if model == "" {
		model = "mock"
	}
	return &MockClient{model: model}
}

func (m *MockClient) Model() string { return m.model }

// Calls returns how many times Generate ran.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastPrompt returns the most recent prompt, or "".
func (m *MockClient) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

func (m *MockClient) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	if m.Response != "" {
		return m.Response, nil
	}

	// Echo enough structure for the response evaluator to score it as a
	// complete analysis.
	var b strings.Builder
	b.WriteString("Analysis based on the provided OHLCV data:\n")
	b.WriteString("1. Key observations: the retrieved windows show the price action and trend described in the sources.\n")
	b.WriteString("2. Trend assessment: the dominant trend and indicator readings are consistent across the period.\n")
	b.WriteString("3. Indicator insights: RSI and moving average relationships support the observed direction.\n")
	fmt.Fprintf(&b, "Prompt length was %d characters.", len(prompt))
	return b.String(), nil
}
