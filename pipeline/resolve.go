package pipeline

import (
	"context"

	"github.com/daqhub/metriq/entry"
	"github.com/daqhub/metriq/schema"
)

// ConvertToInstances resolves every metric-typed field child that still
// carries a placeholder identifier (set by the builder or the hierarchy
// populator) against the oracle, splicing in the matching existing subtree.
// Zero or more than one match is a hard failure (§4.4).
func ConvertToInstances(ctx context.Context, state *entry.PipelineState) error {
	return resolveNode(ctx, state, state.Root)
}

func resolveNode(ctx context.Context, state *entry.PipelineState, node *entry.ResolvedEntry) error {
	if node.IsMetric() {
		def, _ := state.Ctx.Registry.Definition(node.Entry.DefinitionID)
		for _, f := range state.Ctx.Registry.FieldsByMetric(def.ID) {
			base, ok := state.Ctx.Registry.Definition(f.BaseDefinitionID)
			if !ok || base.Kind != schema.KindMetric {
				continue
			}
			for _, child := range node.ChildrenByField(f) {
				if !child.IsAttribute() {
					continue // already a resolved or freshly-built metric subtree
				}
				if err := resolvePlaceholder(ctx, state, node, child, base); err != nil {
					return err
				}
			}
		}
	}
	// Recurse over the (possibly just-replaced) children.
	for _, c := range node.Children {
		if err := resolveNode(ctx, state, c); err != nil {
			return err
		}
	}
	return nil
}

// resolvePlaceholder replaces child (an attribute-shaped identifier
// placeholder occupying field f, whose base is the metric base) with the
// spliced oracle match. Any match count other than exactly one fails the
// whole run (§4.4, §7 INSTANCE_RESOLUTION_ERROR).
func resolvePlaceholder(ctx context.Context, state *entry.PipelineState, parent, child *entry.ResolvedEntry, base *schema.Definition) error {
	ident := child.Attribute.Scalar()
	if ident == nil {
		return &FormulaError{Field: child.Field, Message: "metric field placeholder carries no identifier"}
	}

	matches, err := state.Ctx.Oracle.FindByPrimaryIdentifier(ctx, base, ident)
	if err != nil {
		return err
	}
	switch len(matches) {
	case 0:
		return &InstanceResolutionError{
			Field:            child.Field,
			MetricDefinition: base,
			IdentifierValue:  ident,
			MatchCount:       0,
		}
	case 1:
		return spliceMatch(parent, child, matches[0])
	default:
		return &InstanceResolutionError{
			Field:            child.Field,
			MetricDefinition: base,
			IdentifierValue:  ident,
			MatchCount:       len(matches),
		}
	}
}

// spliceMatch replaces child in parent's Children in place with a clone of
// match: the field slot, position and provisional id are kept, while the
// rest of the entry, the specialization and the descendants come from the
// oracle (§4.4 "exactly one match").
func spliceMatch(parent, child *entry.ResolvedEntry, match *entry.ResolvedEntry) error {
	spliced := match.Clone()
	spliced.Field = child.Field
	spliced.Entry.ID = child.Entry.ID
	spliced.SetParent(parent)
	for i, c := range parent.Children {
		if c == child {
			parent.Children[i] = spliced
			return nil
		}
	}
	return &FormulaError{Field: child.Field, Message: "placeholder child not found among parent's children"}
}
