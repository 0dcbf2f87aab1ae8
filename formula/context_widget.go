package formula

import (
	"strings"

	"github.com/mb0/xelf/cor"

	"github.com/daqhub/metriq/entry"
)

// collectionContext evaluates a widget computed-field expression against a
// single dataset alias bound to its loaded entries (§4.8). Unlike
// entryContext, it has no schema registry: LoadedEntry attributes are
// already flattened by the loader.
type collectionContext struct {
	alias   string
	entries []entry.LoadedEntry
}

// NewCollectionContext returns a Context evaluating widget expressions
// where alias resolves to the "this collection" handle over entries.
func NewCollectionContext(alias string, entries []entry.LoadedEntry) Context {
	return &collectionContext{alias: alias, entries: entries}
}

func (c *collectionContext) Field(name string) (Value, error) {
	if name == c.alias {
		return LoadedListValue(c.entries), nil
	}
	return Null, nil
}

// Navigate implements `alias.field`: a flat list of numeric coercions of
// attributes[field] across the collection, dropping non-numeric values
// silently (§4.8, §9 open question 4).
func (c *collectionContext) Navigate(base Value, name string) (Value, error) {
	if base.Kind != KindLoadedList {
		return Null, nil
	}
	out := make([]float64, 0, len(base.Loaded))
	for _, e := range base.Loaded {
		n, ok := coerceNumber(e.Attributes[name])
		if !ok {
			continue
		}
		out = append(out, n)
	}
	return NumListValue(out), nil
}

// Aggregate yields 0 for an empty list rather than erroring: widget
// expressions run over datasets that are routinely empty (§4.5).
func (c *collectionContext) Aggregate(name string, arg Value) (Value, error) {
	return aggregate(name, arg, false)
}

// TimeOf implements `alias.time(base)`: a list whose i-th entry is the sum
// of entries[i]'s time_values over keys equal to or prefixed by base+"/"
// (§4.8).
func (c *collectionContext) TimeOf(base Value, token string) (Value, error) {
	if base.Kind != KindLoadedList {
		return Null, nil
	}
	out := make([]float64, len(base.Loaded))
	for i, e := range base.Loaded {
		out[i] = sumTimeValues(e.TimeValues, token)
	}
	return NumListValue(out), nil
}

// Where is not part of the widget grammar (§6.5); calling it is a usage
// error rather than a silent no-op.
func (c *collectionContext) Where(base Value, vector, prefix string) (Value, error) {
	return Null, cor.Errorf("where() is not supported in widget expressions")
}

// CheckArithmeticOperand rejects any collection-shaped operand: widget
// arithmetic is only permitted on scalars, after sum/avg/min/max/count
// (§4.8 "Arithmetic between collection-shaped intermediates is disallowed").
func (c *collectionContext) CheckArithmeticOperand(v Value) error {
	if v.IsList() {
		return cor.Errorf("arithmetic on a collection-shaped value is not permitted; aggregate it with sum/avg/min/max/count first")
	}
	return nil
}

func sumTimeValues(values map[string]int64, token string) float64 {
	var sum int64
	for k, v := range values {
		if k == token || strings.HasPrefix(k, token+"/") {
			sum += v
		}
	}
	return float64(sum)
}

func coerceNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
