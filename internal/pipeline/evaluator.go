package pipeline

import (
	"strings"

	"github.com/quantel/ohlcvrag/pkg/utils"
)

// evaluation scores a generated answer. All components and the final
// confidence live in [0,1].
type evaluation struct {
	Confidence   float64
	Relevance    float64
	Completeness float64
	Issues       []string
}

// completenessMarkers indicate a structured analysis rather than a one-line
// reply.
var completenessMarkers = []string{"1.", "2.", "analysis", "trend", "indicator"}

// evaluate scores an answer against its query. Length sets a base score,
// query-term overlap measures relevance, and structure markers measure
// completeness; confidence blends the three 0.3/0.4/0.3.
func evaluate(answer, query string) evaluation {
	ev := evaluation{}

	base := 0.8
	switch {
	case len(answer) < 50:
		base = 0.3
		ev.Issues = append(ev.Issues, "answer too short")
	case len(answer) > 5000:
		base = 0.7
		ev.Issues = append(ev.Issues, "answer too long")
	}

	answerLower := strings.ToLower(answer)
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) > 0 {
		matched := 0
		for _, term := range terms {
			if strings.Contains(answerLower, term) {
				matched++
			}
		}
		ev.Relevance = utils.Clamp01(float64(matched) / float64(len(terms)))
	}

	found := 0
	for _, marker := range completenessMarkers {
		if strings.Contains(answerLower, marker) {
			found++
		}
	}
	ev.Completeness = utils.Clamp01(float64(found) / float64(len(completenessMarkers)))

	ev.Confidence = utils.Clamp01(base*0.3 + ev.Relevance*0.4 + ev.Completeness*0.3)
	return ev
}
