package pipeline

import (
	"github.com/daqhub/metriq/entry"
)

// ValidateCardinality checks, for every metric node, that each of its
// fields' populated child count falls within that field's cardinality
// bound (§4.7). It is the last stage before a run is accepted, and the
// only stage that can still reject an otherwise fully resolved tree.
func ValidateCardinality(state *entry.PipelineState) error {
	return validateNode(state, state.Root)
}

func validateNode(state *entry.PipelineState, node *entry.ResolvedEntry) error {
	if node.IsMetric() {
		def, _ := state.Ctx.Registry.Definition(node.Entry.DefinitionID)
		for _, f := range state.Ctx.Registry.FieldsByMetric(def.ID) {
			count := len(node.ChildrenByField(f))
			if !f.Cardinality.InRange(count) {
				return &CardinalityError{
					Field:     f,
					FieldName: f.Name,
					Expected:  f.Cardinality,
					Actual:    count,
				}
			}
		}
	}
	for _, c := range node.Children {
		if err := validateNode(state, c); err != nil {
			return err
		}
	}
	return nil
}
