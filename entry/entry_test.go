package entry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daqhub/metriq/schema"
)

func TestAttributeValueScalarPriority(t *testing.T) {
	n := int64(7)
	f := 1.5
	a := &AttributeValue{ValueInt: &n, ValueFloat: &f}
	dt, ok := a.Datatype()
	require.True(t, ok)
	assert.Equal(t, schema.Int, dt)
	assert.Equal(t, int64(7), a.Scalar())
}

func TestAttributeValueSetValueClearsOtherColumns(t *testing.T) {
	a := &AttributeValue{}
	require.NoError(t, a.SetValue(schema.String, "paper"))
	require.NotNil(t, a.ValueString)
	assert.Equal(t, "paper", *a.ValueString)

	require.NoError(t, a.SetValue(schema.Int, int64(3)))
	assert.Nil(t, a.ValueString)
	require.NotNil(t, a.ValueInt)
	assert.Equal(t, int64(3), *a.ValueInt)
}

func TestResolvedEntryTreeLinkage(t *testing.T) {
	root := &ResolvedEntry{Entry: Entry{ID: 1}}
	child := &ResolvedEntry{Entry: Entry{ID: 2}}
	root.AddChild(child)
	require.Equal(t, root, child.Parent())
	assert.Equal(t, int64(1), child.Entry.ParentID)

	child.SetParent(nil)
	assert.Equal(t, int64(0), child.Entry.ParentID)
	assert.Nil(t, child.Parent())
}

func TestResolvedEntryChildrenByField(t *testing.T) {
	root := &ResolvedEntry{Entry: Entry{ID: 1}}
	// two children occupy the same field slot, simulating a multi-valued
	// attribute field like time_type (§4.3).
	f := &schema.Field{ID: 10}
	c1 := &ResolvedEntry{Entry: Entry{ID: 2}, Field: f}
	c2 := &ResolvedEntry{Entry: Entry{ID: 3}, Field: f}
	other := &ResolvedEntry{Entry: Entry{ID: 4}}
	root.AddChild(c1)
	root.AddChild(c2)
	root.AddChild(other)

	got := root.ChildrenByField(f)
	assert.Equal(t, []*ResolvedEntry{c1, c2}, got)
	assert.Nil(t, root.ChildrenByField(nil))
}

func TestResolvedEntryClonesStructurallyWithoutAliasing(t *testing.T) {
	root := &ResolvedEntry{Entry: Entry{ID: 1}, Metric: &MetricMarker{}}
	n := int64(5)
	root.AddChild(&ResolvedEntry{Entry: Entry{ID: 2}, Attribute: &AttributeValue{ValueInt: &n}})

	clone := root.Clone()
	require.Len(t, clone.Children, 1)
	assert.NotSame(t, root.Children[0], clone.Children[0])
	assert.NotSame(t, root.Children[0].Attribute, clone.Children[0].Attribute)
	assert.Equal(t, *root.Children[0].Attribute.ValueInt, *clone.Children[0].Attribute.ValueInt)
	assert.True(t, clone.IsMetric())
}

func TestNormalizeTimestampTruncatesToMidnight(t *testing.T) {
	in := time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)
	out := NormalizeTimestamp(in)
	assert.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), out)
}

func TestSplitAndJoinPath(t *testing.T) {
	assert.Equal(t, []string{"research", "paper"}, SplitPath("research/paper"))
	assert.Nil(t, SplitPath(""))
	assert.Equal(t, "research/paper", JoinPath([]string{"research", "paper"}))
}
