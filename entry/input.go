package entry

import "time"

// MetricEntryInput is the user-facing, recursive input shape the tree
// builder (§4.1) consumes. It is produced by an adapter — the single-line
// parser or the timing-block parser (§4.3).
type MetricEntryInput struct {
	DefinitionCode string
	Timestamp      time.Time
	Subdivision    string
	Comments       string
	Fields         []FieldInput

	// Children is the legacy top-level nested-metric list (§4.1): parsers
	// SHOULD prefer field-inlined metric children instead.
	Children []*MetricEntryInput
}

// FieldInput carries the raw values supplied for one field slot.
type FieldInput struct {
	FieldName string
	Values    []AttributeValueInput
}

// AttributeValueInput is one value within a FieldInput. Exactly one of the
// scalar pointers or Nested may be set; Subdivision overrides the parent's
// subdivision for this one value, when set.
type AttributeValueInput struct {
	ValueInt       *int64
	ValueFloat     *float64
	ValueString    *string
	ValueBool      *bool
	ValueTimestamp *time.Time
	ValueHierarchy *string

	Nested      *MetricEntryInput
	Subdivision *string
}

// Scalar returns the populated scalar value (int64 or string only, per the
// identifier placeholder contract of §4.1), or nil.
func (v AttributeValueInput) Scalar() interface{} {
	switch {
	case v.ValueInt != nil:
		return *v.ValueInt
	case v.ValueString != nil:
		return *v.ValueString
	}
	return nil
}
