package widget

import (
	"context"
	"math"

	"github.com/mb0/xelf/cor"

	"github.com/daqhub/metriq/entry"
	"github.com/daqhub/metriq/formula"
)

// FieldResult is one computed field's outcome: isolated so a single
// field's error (division by zero, bad expression) never aborts its
// siblings (§6.6).
type FieldResult struct {
	Label string
	Value float64
	Err   error
}

// Execute resolves w's dataset via loader and evaluates every computed
// field against it, isolating per-field errors. A loader failure aborts
// the whole widget, since no dataset means no field can be evaluated.
func Execute(ctx context.Context, w *Widget, loader entry.WidgetLoader, params entry.LoadParams) (string, []FieldResult, error) {
	entries, err := loader.LoadEntriesForWidget(ctx, w.DefCode, params)
	if err != nil {
		return w.Name, nil, err
	}
	fc := formula.NewCollectionContext(w.Alias, entries)

	results := make([]FieldResult, 0, len(w.Fields))
	for _, f := range w.Fields {
		results = append(results, evalField(fc, f))
	}
	return w.Name, results, nil
}

func evalField(ctx formula.Context, f ComputedField) FieldResult {
	expr, err := formula.Parse(f.Expr)
	if err != nil {
		return FieldResult{Label: f.Label, Err: err}
	}
	v, err := formula.Eval(expr, ctx)
	if err != nil {
		return FieldResult{Label: f.Label, Err: err}
	}
	if v.Kind != formula.KindNum {
		return FieldResult{Label: f.Label, Err: cor.Errorf("field %q did not evaluate to a number", f.Label)}
	}
	n := v.Num
	if f.Type == "int" {
		n = math.Floor(n)
	}
	return FieldResult{Label: f.Label, Value: n}
}
