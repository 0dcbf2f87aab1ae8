// Package entry defines the pipeline's working tree: Entry, its two
// specializations, and the ResolvedEntry node that bundles them together
// with field-slot and child information (spec §3).
package entry

import (
	"strings"
	"time"

	"github.com/daqhub/metriq/schema"
)

// Kind mirrors schema.Kind for the entry's variant.
type Kind byte

const (
	KindMetric Kind = iota
	KindAttribute
)

// Entry is the base node shared by metric and attribute entries.
type Entry struct {
	ID           int64
	DefinitionID int64
	ParentID     int64 // 0 means no parent
	Timestamp    time.Time
	Subdivision  string
	Comments     string
}

// MetricMarker tags an Entry as representing a metric instance. It carries
// no data of its own; its presence is the marker (spec §3 invariant 1).
type MetricMarker struct{}

// AttributeValue holds exactly one populated typed column, selected by
// priority int, float, string, bool, timestamp, hierarchy (§9 "Attribute
// column selection").
type AttributeValue struct {
	FieldID        int64
	ValueInt       *int64
	ValueFloat     *float64
	ValueString    *string
	ValueBool      *bool
	ValueTimestamp *time.Time
	ValueHierarchy *string
}

// Datatype reports which column is populated, matching schema.Datatype's
// priority order.
func (a *AttributeValue) Datatype() (schema.Datatype, bool) {
	switch {
	case a.ValueInt != nil:
		return schema.Int, true
	case a.ValueFloat != nil:
		return schema.Float, true
	case a.ValueString != nil:
		return schema.String, true
	case a.ValueBool != nil:
		return schema.Bool, true
	case a.ValueTimestamp != nil:
		return schema.Timestamp, true
	case a.ValueHierarchy != nil:
		return schema.Hierarchy, true
	}
	return 0, false
}

// SetValue clears all columns and sets the one matching dt.
func (a *AttributeValue) SetValue(dt schema.Datatype, v interface{}) error {
	a.ValueInt = nil
	a.ValueFloat = nil
	a.ValueString = nil
	a.ValueBool = nil
	a.ValueTimestamp = nil
	a.ValueHierarchy = nil
	switch dt {
	case schema.Int:
		n := v.(int64)
		a.ValueInt = &n
	case schema.Float:
		f := v.(float64)
		a.ValueFloat = &f
	case schema.String:
		s := v.(string)
		a.ValueString = &s
	case schema.Bool:
		b := v.(bool)
		a.ValueBool = &b
	case schema.Timestamp:
		t := v.(time.Time)
		a.ValueTimestamp = &t
	case schema.Hierarchy:
		s := v.(string)
		a.ValueHierarchy = &s
	}
	return nil
}

// Scalar returns the populated value as an interface{}, or nil.
func (a *AttributeValue) Scalar() interface{} {
	switch {
	case a.ValueInt != nil:
		return *a.ValueInt
	case a.ValueFloat != nil:
		return *a.ValueFloat
	case a.ValueString != nil:
		return *a.ValueString
	case a.ValueBool != nil:
		return *a.ValueBool
	case a.ValueTimestamp != nil:
		return *a.ValueTimestamp
	case a.ValueHierarchy != nil:
		return *a.ValueHierarchy
	}
	return nil
}

// ResolvedEntry is a node of the pipeline's working tree (spec §3).
type ResolvedEntry struct {
	Entry     Entry
	Metric    *MetricMarker   // mutually exclusive with Attribute
	Attribute *AttributeValue // mutually exclusive with Metric

	// Field is the field slot this node occupies in its parent's Children,
	// or nil when it is the root or a legacy top-level child (§4.1).
	Field *schema.Field

	Children []*ResolvedEntry

	parent *ResolvedEntry
}

// Parent returns the node's parent in the working tree, or nil for the root.
func (r *ResolvedEntry) Parent() *ResolvedEntry { return r.parent }

// SetParent installs p as r's parent and keeps Entry.ParentID in sync,
// satisfying spec §3 invariant 3.
func (r *ResolvedEntry) SetParent(p *ResolvedEntry) {
	r.parent = p
	if p != nil {
		r.Entry.ParentID = p.Entry.ID
	} else {
		r.Entry.ParentID = 0
	}
}

// AddChild appends child with parent linkage established.
func (r *ResolvedEntry) AddChild(child *ResolvedEntry) {
	child.SetParent(r)
	r.Children = append(r.Children, child)
}

// ChildrenByField returns the children occupying the given field slot, in
// tree order.
func (r *ResolvedEntry) ChildrenByField(f *schema.Field) []*ResolvedEntry {
	if f == nil {
		return nil
	}
	var out []*ResolvedEntry
	for _, c := range r.Children {
		if c.Field != nil && c.Field.ID == f.ID {
			out = append(out, c)
		}
	}
	return out
}

// IsMetric reports whether r represents a metric instance.
func (r *ResolvedEntry) IsMetric() bool { return r.Metric != nil }

// IsAttribute reports whether r represents an attribute value.
func (r *ResolvedEntry) IsAttribute() bool { return r.Attribute != nil }

// Clone produces a structural, deep copy of the subtree rooted at r, with
// no shared child slices or pointers — used by the instance resolver (§4.4,
// §9 "Cyclic references") so spliced oracle subtrees are never aliased.
func (r *ResolvedEntry) Clone() *ResolvedEntry {
	if r == nil {
		return nil
	}
	n := &ResolvedEntry{Entry: r.Entry, Field: r.Field}
	if r.Metric != nil {
		m := *r.Metric
		n.Metric = &m
	}
	if r.Attribute != nil {
		a := *r.Attribute
		n.Attribute = &a
	}
	for _, c := range r.Children {
		n.AddChild(c.Clone())
	}
	return n
}

// NormalizeTimestamp truncates t to local-midnight, as required for entry
// roots (§4.1).
func NormalizeTimestamp(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SplitPath splits a "/"-separated hierarchy string into tokens, dropping
// empty trailing tokens only (§3 "subdivision").
func SplitPath(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "/")
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// JoinPath renders tokens back into a "/"-joined string.
func JoinPath(tokens []string) string { return strings.Join(tokens, "/") }
