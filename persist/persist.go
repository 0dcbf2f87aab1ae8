// Package persist flattens a resolved entry tree into the three logical
// tables the pipeline's output maps onto (§6.1: entries, metric_entries,
// attribute_entries) and defines the Inserter boundary a concrete store
// (persist/pgxstore) implements.
package persist

import (
	"context"
	"time"

	"github.com/daqhub/metriq/entry"
)

// EntryRow is one row of the entries table: the base fields shared by
// every node regardless of kind. ID is provisional (a pre-order sequence
// number) until an Inserter maps it to a physical id.
type EntryRow struct {
	ID          int64
	UserID      string
	Definition  int64
	ParentEntry int64 // 0 means no parent
	Timestamp   time.Time
	Subdivision string
	Comments    string
}

// MetricEntryRow is one row of the metric_entries table: it marks its
// EntryRow as a metric instance and carries no columns of its own.
type MetricEntryRow struct {
	Entry int64
}

// AttributeEntryRow is one row of the attribute_entries table: it marks
// its EntryRow as an attribute value and carries exactly one populated
// value column, per §3 invariant 2.
type AttributeEntryRow struct {
	Entry          int64
	Field          int64
	ValueInt       *int64
	ValueFloat     *float64
	ValueString    *string
	ValueBool      *bool
	ValueTimestamp *time.Time
	ValueHierarchy *string
}

// Flatten walks root in depth-first pre-order, assigning each node a
// provisional id in visit order, and splits it into the three row slices
// an Inserter writes. Pre-order guarantees a node's parent row always
// precedes it, so an Inserter building a provisional-to-physical id map
// incrementally never needs a row it hasn't seen yet.
func Flatten(userID string, root *entry.ResolvedEntry) ([]EntryRow, []MetricEntryRow, []AttributeEntryRow) {
	var entries []EntryRow
	var metrics []MetricEntryRow
	var attrs []AttributeEntryRow

	var provisional int64
	var walk func(node *entry.ResolvedEntry, parentID int64)
	walk = func(node *entry.ResolvedEntry, parentID int64) {
		provisional++
		id := provisional
		entries = append(entries, EntryRow{
			ID:          id,
			UserID:      userID,
			Definition:  node.Entry.DefinitionID,
			ParentEntry: parentID,
			Timestamp:   node.Entry.Timestamp,
			Subdivision: node.Entry.Subdivision,
			Comments:    node.Entry.Comments,
		})
		switch {
		case node.IsMetric():
			metrics = append(metrics, MetricEntryRow{Entry: id})
		case node.IsAttribute():
			av := node.Attribute
			field := int64(0)
			if node.Field != nil {
				field = node.Field.ID
			}
			attrs = append(attrs, AttributeEntryRow{
				Entry:          id,
				Field:          field,
				ValueInt:       av.ValueInt,
				ValueFloat:     av.ValueFloat,
				ValueString:    av.ValueString,
				ValueBool:      av.ValueBool,
				ValueTimestamp: av.ValueTimestamp,
				ValueHierarchy: av.ValueHierarchy,
			})
		}
		for _, c := range node.Children {
			walk(c, id)
		}
	}
	walk(root, 0)
	return entries, metrics, attrs
}

// Inserter writes a flattened tree to durable storage and reports the
// mapping from each row's provisional id to its physical id, so a caller
// can look up the root's final identity afterward.
type Inserter interface {
	Insert(ctx context.Context, entries []EntryRow, metrics []MetricEntryRow, attrs []AttributeEntryRow) (idMap map[int64]int64, err error)
}
