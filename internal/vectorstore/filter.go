package vectorstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/quantel/ohlcvrag/internal/models"
)

// Comparison operators accepted by Condition.Op.
const (
	OpEq = "=="
	OpGt = ">"
	OpLt = "<"
	OpGe = ">="
	OpLe = "<="
)

// Condition constrains a single metadata field. Numeric operators compare the
// field as float64; == also accepts strings.
type Condition struct {
	Field string
	Op    string
	Value interface{}
}

// DateRange selects chunks whose period overlaps [Start, End].
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Filter is a conjunction of conditions plus an optional period overlap test
// against start_date and end_date metadata.
type Filter struct {
	Conditions []Condition
	Overlap    *DateRange
}

// Validate checks the operators up front so a bad filter fails before any
// index work happens.
func (f *Filter) Validate() error {
	if f == nil {
		return nil
	}
	for _, c := range f.Conditions {
		switch c.Op {
		case OpEq, OpGt, OpLt, OpGe, OpLe:
		default:
			return &models.ValidationError{Field: "filter", Reason: fmt.Sprintf("unknown operator %q", c.Op)}
		}
		if c.Field == "" {
			return &models.ValidationError{Field: "filter", Reason: "empty field name"}
		}
	}
	return nil
}

// Match reports whether the metadata satisfies every condition. A missing
// field fails the condition rather than erroring.
func (f *Filter) Match(meta map[string]interface{}) (bool, error) {
	if f == nil {
		return true, nil
	}
	for _, c := range f.Conditions {
		ok, err := c.match(meta)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	if f.Overlap != nil {
		if !overlaps(meta, f.Overlap) {
			return false, nil
		}
	}
	return true, nil
}

func (c Condition) match(meta map[string]interface{}) (bool, error) {
	raw, ok := meta[c.Field]
	if !ok {
		return false, nil
	}

	if c.Op == OpEq {
		if ws, ok := c.Value.(string); ok {
			vs, ok := raw.(string)
			return ok && vs == ws, nil
		}
	}

	v, vok := asFloat(raw)
	w, wok := asFloat(c.Value)
	if !vok || !wok {
		if c.Op == OpEq {
			return raw == c.Value, nil
		}
		return false, &models.ValidationError{
			Field:  "filter",
			Reason: fmt.Sprintf("operator %q needs numeric values for field %q", c.Op, c.Field),
		}
	}

	switch c.Op {
	case OpEq:
		return v == w, nil
	case OpGt:
		return v > w, nil
	case OpLt:
		return v < w, nil
	case OpGe:
		return v >= w, nil
	case OpLe:
		return v <= w, nil
	}
	return false, &models.ValidationError{Field: "filter", Reason: fmt.Sprintf("unknown operator %q", c.Op)}
}

// overlaps tests [chunk.start, chunk.end] against the requested range using
// the date strings written by the chunk builder.
func overlaps(meta map[string]interface{}, r *DateRange) bool {
	start, ok1 := metaDate(meta, models.MetaStartDate)
	end, ok2 := metaDate(meta, models.MetaEndDate)
	if !ok1 || !ok2 {
		return false
	}
	return !start.After(r.End) && !end.Before(r.Start)
}

func metaDate(meta map[string]interface{}, key string) (time.Time, bool) {
	s, ok := meta[key].(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func asFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}
