package pipeline

import (
	"github.com/daqhub/metriq/entry"
	"github.com/daqhub/metriq/schema"
)

// PopulateFromSubdivision pre-materializes the values of formula fields
// whose body is a hierarchy-only form (§4.2). It walks the tree
// depth-first and, for each metric node, each of its metric's fields in
// declaration order.
func PopulateFromSubdivision(state *entry.PipelineState) error {
	return populateNode(state, state.Root)
}

func populateNode(state *entry.PipelineState, node *entry.ResolvedEntry) error {
	if node.IsMetric() {
		def, _ := state.Ctx.Registry.Definition(node.Entry.DefinitionID)
		for _, f := range state.Ctx.Registry.FieldsByMetric(def.ID) {
			if f.InputMode != schema.Formula {
				continue
			}
			vector, idx, ok := f.IsHierarchyOnly()
			if !ok {
				continue
			}
			if err := applyHierarchyField(state, node, f, vector, idx); err != nil {
				return err
			}
		}
	}
	for _, c := range node.Children {
		if err := populateNode(state, c); err != nil {
			return err
		}
	}
	return nil
}

func applyHierarchyField(state *entry.PipelineState, node *entry.ResolvedEntry, f *schema.Field, vector string, idx int) error {
	v, ok := state.Vectors.At(vector, idx)
	if !ok {
		return &SubdivisionError{
			Field:      f,
			Formula:    f.Formula,
			Index:      idx,
			VectorLen:  state.Vectors.Len(vector),
			VectorName: vector,
		}
	}

	base, ok := state.Ctx.Registry.Definition(f.BaseDefinitionID)
	if !ok {
		return &FormulaError{Field: f, Message: "unknown base definition"}
	}

	existing := node.ChildrenByField(f)
	var target *entry.ResolvedEntry
	if len(existing) > 0 && existing[0].IsAttribute() {
		target = existing[0]
	} else {
		target = &entry.ResolvedEntry{
			Entry: entry.Entry{
				ID:           state.IDs.Hierarchy(),
				DefinitionID: base.ID,
				Timestamp:    node.Entry.Timestamp,
				Subdivision:  node.Entry.Subdivision,
			},
			Attribute: &entry.AttributeValue{FieldID: f.ID},
			Field:     f,
		}
		node.AddChild(target)
	}

	if base.Kind == schema.KindAttribute {
		return setTypedHierarchyValue(target.Attribute, base.Datatype, v, f)
	}
	// base is a Metric: stash the string in value_string, §4.4 resolves it.
	target.Attribute.ValueInt = nil
	target.Attribute.ValueFloat = nil
	target.Attribute.ValueBool = nil
	target.Attribute.ValueTimestamp = nil
	target.Attribute.ValueHierarchy = nil
	s := v
	target.Attribute.ValueString = &s
	return nil
}

func setTypedHierarchyValue(val *entry.AttributeValue, dt schema.Datatype, v string, f *schema.Field) error {
	switch dt {
	case schema.String, schema.Hierarchy:
		return val.SetValue(dt, v)
	default:
		return &FormulaError{Field: f, Message: "hierarchy vectors are strings; field's datatype is " + dt.String()}
	}
}
