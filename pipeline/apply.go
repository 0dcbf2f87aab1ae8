package pipeline

import (
	"github.com/daqhub/metriq/entry"
	"github.com/daqhub/metriq/formula"
	"github.com/daqhub/metriq/schema"
)

// ApplyFormulas evaluates every formula field on every metric node in the
// tree, depth-first, post instance-resolution (§4.6). Hierarchy-only
// formulas are skipped here: PopulateFromSubdivision already wrote them.
func ApplyFormulas(state *entry.PipelineState) error {
	return applyNode(state, state.Root)
}

func applyNode(state *entry.PipelineState, node *entry.ResolvedEntry) error {
	if node.IsMetric() {
		def, _ := state.Ctx.Registry.Definition(node.Entry.DefinitionID)
		for _, f := range state.Ctx.Registry.FieldsByMetric(def.ID) {
			if f.InputMode != schema.Formula {
				continue
			}
			if _, _, ok := f.IsHierarchyOnly(); ok {
				continue // pre-materialized by PopulateFromSubdivision (§4.2)
			}
			if err := applyFormulaField(state, node, f); err != nil {
				return err
			}
		}
	}
	for _, c := range node.Children {
		if err := applyNode(state, c); err != nil {
			return err
		}
	}
	return nil
}

func applyFormulaField(state *entry.PipelineState, node *entry.ResolvedEntry, f *schema.Field) error {
	expr, err := formula.Parse(f.Formula)
	if err != nil {
		return &FormulaError{Field: f, Formula: f.Formula, Message: err.Error()}
	}
	ctx := formula.NewEntryContext(state.Ctx.Registry, state.Vectors, state.Root, node)
	result, err := formula.Eval(expr, ctx)
	if err != nil {
		return &FormulaError{Field: f, Formula: f.Formula, Message: err.Error()}
	}

	base, ok := state.Ctx.Registry.Definition(f.BaseDefinitionID)
	if !ok {
		return &FormulaError{Field: f, Formula: f.Formula, Message: "unknown base definition"}
	}
	if base.Kind != schema.KindAttribute {
		// Metric-valued formula fields are rejected: a formula result is
		// always written into an attribute child.
		return &FormulaError{Field: f, Formula: f.Formula, Message: "formula field must resolve to an attribute"}
	}

	existing := node.ChildrenByField(f)
	var target *entry.ResolvedEntry
	if len(existing) > 0 {
		target = existing[0]
	} else {
		target = &entry.ResolvedEntry{
			Entry: entry.Entry{
				ID:           state.IDs.Formula(),
				DefinitionID: base.ID,
				Timestamp:    node.Entry.Timestamp,
				Subdivision:  node.Entry.Subdivision,
			},
			Attribute: &entry.AttributeValue{FieldID: f.ID},
			Field:     f,
		}
		node.AddChild(target)
	}

	return writeFormulaResult(target.Attribute, base.Datatype, result, f)
}

func writeFormulaResult(val *entry.AttributeValue, dt schema.Datatype, v formula.Value, f *schema.Field) error {
	if v.IsNull() {
		val.ValueInt = nil
		val.ValueFloat = nil
		val.ValueString = nil
		val.ValueBool = nil
		val.ValueTimestamp = nil
		val.ValueHierarchy = nil
		return nil
	}
	switch dt {
	case schema.Int:
		if v.Kind != formula.KindNum {
			return &FormulaError{Field: f, Message: "formula result is not numeric"}
		}
		return val.SetValue(schema.Int, int64(v.Num))
	case schema.Float:
		if v.Kind != formula.KindNum {
			return &FormulaError{Field: f, Message: "formula result is not numeric"}
		}
		return val.SetValue(schema.Float, v.Num)
	case schema.Bool:
		if v.Kind != formula.KindBool {
			return &FormulaError{Field: f, Message: "formula result is not boolean"}
		}
		return val.SetValue(schema.Bool, v.Bool)
	case schema.String, schema.Hierarchy:
		switch v.Kind {
		case formula.KindStr:
			return val.SetValue(dt, v.Str)
		case formula.KindNum:
			return &FormulaError{Field: f, Message: "formula result is numeric but field expects a string"}
		}
		return &FormulaError{Field: f, Message: "formula result is not a string"}
	default:
		return &FormulaError{Field: f, Message: "formula fields cannot resolve to a timestamp"}
	}
}
