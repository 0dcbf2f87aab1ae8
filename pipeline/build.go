package pipeline

import (
	"time"

	"github.com/mb0/xelf/cor"

	"github.com/daqhub/metriq/entry"
	"github.com/daqhub/metriq/schema"
)

// Build turns a MetricEntryInput into a ResolvedEntry root, assigning
// provisional ids left-to-right, depth-first, and normalizing every
// descendant's timestamp to the root's local-midnight (spec §4.1).
func Build(reg *schema.Registry, ids *entry.IDAllocator, in *entry.MetricEntryInput) (*entry.ResolvedEntry, error) {
	ts := entry.NormalizeTimestamp(in.Timestamp)
	return buildNode(reg, ids, in, nil, ts)
}

// buildNode constructs the subtree for in, tagging the resulting root node
// with the given field slot (nil for the overall root or legacy children).
func buildNode(reg *schema.Registry, ids *entry.IDAllocator, in *entry.MetricEntryInput, field *schema.Field, ts time.Time) (*entry.ResolvedEntry, error) {
	def, ok := reg.DefinitionByCode(in.DefinitionCode)
	if !ok {
		return nil, &FormulaError{Formula: in.DefinitionCode, Message: "unknown definition"}
	}
	node := &entry.ResolvedEntry{
		Entry: entry.Entry{
			ID:           ids.Builder(),
			DefinitionID: def.ID,
			Timestamp:    ts,
			Subdivision:  in.Subdivision,
			Comments:     in.Comments,
		},
		Field: field,
	}
	if def.Kind == schema.KindMetric {
		node.Metric = &entry.MetricMarker{}
	} else {
		node.Attribute = &entry.AttributeValue{}
	}

	for _, fi := range in.Fields {
		f, ok := reg.FieldByName(def.ID, fi.FieldName)
		if !ok {
			return nil, &FormulaError{Formula: fi.FieldName, Message: "unknown field"}
		}
		base, ok := reg.Definition(f.BaseDefinitionID)
		if !ok {
			return nil, &FormulaError{Field: f, Message: "unknown base definition"}
		}
		for _, av := range fi.Values {
			child, err := buildValueChild(reg, ids, f, base, av, node, ts)
			if err != nil {
				return nil, err
			}
			node.AddChild(child)
		}
	}

	for _, nested := range in.Children {
		child, err := buildNode(reg, ids, nested, nil, ts)
		if err != nil {
			return nil, err
		}
		node.AddChild(child)
	}

	return node, nil
}

// buildValueChild builds one child for a single AttributeValueInput, per
// the three cases of §4.1: an attribute value, a nested metric subtree, or
// a metric identifier placeholder.
func buildValueChild(reg *schema.Registry, ids *entry.IDAllocator, f *schema.Field, base *schema.Definition, av entry.AttributeValueInput, parent *entry.ResolvedEntry, parentTS time.Time) (*entry.ResolvedEntry, error) {
	sub := parent.Entry.Subdivision
	if av.Subdivision != nil {
		sub = *av.Subdivision
	}

	if base.Kind == schema.KindAttribute {
		val := &entry.AttributeValue{FieldID: f.ID}
		switch {
		case av.ValueInt != nil:
			val.ValueInt = av.ValueInt
		case av.ValueFloat != nil:
			val.ValueFloat = av.ValueFloat
		case av.ValueString != nil:
			val.ValueString = av.ValueString
		case av.ValueBool != nil:
			val.ValueBool = av.ValueBool
		case av.ValueTimestamp != nil:
			val.ValueTimestamp = av.ValueTimestamp
		case av.ValueHierarchy != nil:
			val.ValueHierarchy = av.ValueHierarchy
		default:
			return nil, &FormulaError{Field: f, Message: "attribute value input carries no typed value"}
		}
		return &entry.ResolvedEntry{
			Entry: entry.Entry{
				ID:           ids.Builder(),
				DefinitionID: base.ID,
				Timestamp:    parentTS,
				Subdivision:  sub,
			},
			Attribute: val,
			Field:     f,
		}, nil
	}

	// base.Kind == schema.KindMetric
	if av.Nested != nil {
		child, err := buildNode(reg, ids, av.Nested, f, parentTS)
		if err != nil {
			return nil, err
		}
		return child, nil
	}

	scalar := av.Scalar()
	if scalar == nil {
		return nil, &FormulaError{Field: f, Message: "metric field value carries neither nested entry nor identifier"}
	}
	val := &entry.AttributeValue{FieldID: f.ID}
	switch s := scalar.(type) {
	case int64:
		val.ValueInt = &s
	case string:
		val.ValueString = &s
	default:
		return nil, cor.Errorf("field %q: unexpected identifier type %T", f.Name, scalar)
	}
	return &entry.ResolvedEntry{
		Entry: entry.Entry{
			ID:           ids.Builder(),
			DefinitionID: base.ID,
			Timestamp:    parentTS,
			Subdivision:  sub,
		},
		Attribute: val,
		Field:     f,
	}, nil
}
