package persist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daqhub/metriq/entry"
	"github.com/daqhub/metriq/schema"
)

func ptrStr(s string) *string { return &s }
func ptrInt(n int64) *int64   { return &n }

func TestFlattenPreOrderAssignsIDsAndParents(t *testing.T) {
	ts := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	root := &entry.ResolvedEntry{
		Entry:  entry.Entry{DefinitionID: 1, Timestamp: ts, Subdivision: "TFG"},
		Metric: &entry.MetricMarker{},
	}
	child1 := &entry.ResolvedEntry{
		Entry:     entry.Entry{DefinitionID: 2},
		Attribute: &entry.AttributeValue{ValueString: ptrStr("Dune")},
		Field:     &schema.Field{ID: 10},
	}
	child2 := &entry.ResolvedEntry{
		Entry:  entry.Entry{DefinitionID: 3},
		Metric: &entry.MetricMarker{},
	}
	grandchild := &entry.ResolvedEntry{
		Entry:     entry.Entry{DefinitionID: 4, Subdivision: "t"},
		Attribute: &entry.AttributeValue{ValueInt: ptrInt(30)},
		Field:     &schema.Field{ID: 20},
	}
	child2.AddChild(grandchild)
	root.AddChild(child1)
	root.AddChild(child2)

	entries, metrics, attrs := Flatten("user-1", root)

	require.Len(t, entries, 4)
	// pre-order: root, child1, child2, grandchild
	assert.Equal(t, int64(1), entries[0].ID)
	assert.Equal(t, int64(0), entries[0].ParentEntry)
	assert.Equal(t, "user-1", entries[0].UserID)

	assert.Equal(t, int64(2), entries[1].ID)
	assert.Equal(t, int64(1), entries[1].ParentEntry)

	assert.Equal(t, int64(3), entries[2].ID)
	assert.Equal(t, int64(1), entries[2].ParentEntry)

	assert.Equal(t, int64(4), entries[3].ID)
	assert.Equal(t, int64(3), entries[3].ParentEntry)
	assert.Equal(t, "t", entries[3].Subdivision)

	require.Len(t, metrics, 2)
	assert.Equal(t, int64(1), metrics[0].Entry)
	assert.Equal(t, int64(3), metrics[1].Entry)

	require.Len(t, attrs, 2)
	assert.Equal(t, int64(2), attrs[0].Entry)
	assert.Equal(t, int64(10), attrs[0].Field)
	require.NotNil(t, attrs[0].ValueString)
	assert.Equal(t, "Dune", *attrs[0].ValueString)

	assert.Equal(t, int64(4), attrs[1].Entry)
	assert.Equal(t, int64(20), attrs[1].Field)
	require.NotNil(t, attrs[1].ValueInt)
	assert.Equal(t, int64(30), *attrs[1].ValueInt)
}

func TestFlattenAttributeRowWithNilFieldUsesZero(t *testing.T) {
	root := &entry.ResolvedEntry{
		Entry:     entry.Entry{DefinitionID: 1},
		Attribute: &entry.AttributeValue{ValueBool: boolPtr(true)},
	}
	_, _, attrs := Flatten("user-1", root)
	require.Len(t, attrs, 1)
	assert.Equal(t, int64(0), attrs[0].Field)
	require.NotNil(t, attrs[0].ValueBool)
	assert.True(t, *attrs[0].ValueBool)
}

func boolPtr(b bool) *bool { return &b }
