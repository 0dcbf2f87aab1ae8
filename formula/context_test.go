package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daqhub/metriq/entry"
	"github.com/daqhub/metriq/schema"
)

func buildEntryContextRegistry() (*schema.Registry, *schema.Definition, *schema.Definition) {
	strDef := &schema.Definition{ID: 1, Code: "STR", Kind: schema.KindAttribute, Datatype: schema.String}
	intDef := &schema.Definition{ID: 2, Code: "INT", Kind: schema.KindAttribute, Datatype: schema.Int}
	timDef := &schema.Definition{ID: 3, Code: "TIM", Kind: schema.KindMetric}
	estDef := &schema.Definition{ID: 4, Code: "EST", Kind: schema.KindMetric}

	timeType := &schema.Field{ID: 10, MetricID: 3, Name: "time_type", BaseDefinitionID: 2}
	duration := &schema.Field{ID: 11, MetricID: 3, Name: "duration", BaseDefinitionID: 2}
	project := &schema.Field{ID: 20, MetricID: 4, Name: "project", BaseDefinitionID: 1}
	tim := &schema.Field{ID: 21, MetricID: 4, Name: "tim", BaseDefinitionID: 3}

	reg := schema.NewRegistry(
		[]*schema.Definition{strDef, intDef, timDef, estDef},
		[]*schema.Field{timeType, duration, project, tim},
	)
	return reg, timDef, estDef
}

func ptrInt(n int64) *int64 { return &n }
func ptrStr(s string) *string { return &s }

func buildTimNode(id int64, subdivisionByLetter map[string]int64, durationVal int64, fieldTimeType, fieldDuration *schema.Field) *entry.ResolvedEntry {
	tim := &entry.ResolvedEntry{Entry: entry.Entry{ID: id, DefinitionID: 3}, Metric: &entry.MetricMarker{}}
	var child int64 = id * 100
	for letter, v := range subdivisionByLetter {
		child++
		tim.AddChild(&entry.ResolvedEntry{
			Entry:     entry.Entry{ID: child, DefinitionID: 2, Subdivision: letter},
			Attribute: &entry.AttributeValue{ValueInt: ptrInt(v)},
			Field:     fieldTimeType,
		})
	}
	tim.AddChild(&entry.ResolvedEntry{
		Entry:     entry.Entry{ID: id*100 + 90, DefinitionID: 2},
		Attribute: &entry.AttributeValue{ValueInt: ptrInt(durationVal)},
		Field:     fieldDuration,
	})
	return tim
}

func TestEntryContextFieldSelf(t *testing.T) {
	reg, timDef, _ := buildEntryContextRegistry()
	_ = timDef
	tim := buildTimNode(1, map[string]int64{"t": 30}, 60, &schema.Field{ID: 10, MetricID: 3, Name: "time_type", BaseDefinitionID: 2}, &schema.Field{ID: 11, MetricID: 3, Name: "duration", BaseDefinitionID: 2})
	ctx := NewEntryContext(reg, entry.Vectors{}, tim, tim)

	v, err := ctx.Field("self")
	require.NoError(t, err)
	assert.Equal(t, KindEntryRef, v.Kind)
	assert.Same(t, tim, v.Entry)
}

func TestEntryContextFieldParentNullAtRoot(t *testing.T) {
	reg, _, _ := buildEntryContextRegistry()
	root := &entry.ResolvedEntry{Entry: entry.Entry{ID: 1, DefinitionID: 4}, Metric: &entry.MetricMarker{}}
	ctx := NewEntryContext(reg, entry.Vectors{}, root, root)

	v, err := ctx.Field("parent")
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestEntryContextFieldParentResolvesToParentNode(t *testing.T) {
	reg, _, estDef := buildEntryContextRegistry()
	_ = estDef
	root := &entry.ResolvedEntry{Entry: entry.Entry{ID: 1, DefinitionID: 4}, Metric: &entry.MetricMarker{}}
	timField := &schema.Field{ID: 21, MetricID: 4, Name: "tim", BaseDefinitionID: 3}
	tim := &entry.ResolvedEntry{Entry: entry.Entry{ID: 2, DefinitionID: 3}, Metric: &entry.MetricMarker{}, Field: timField}
	root.AddChild(tim)

	ctx := NewEntryContext(reg, entry.Vectors{}, root, tim)
	v, err := ctx.Field("parent")
	require.NoError(t, err)
	require.Equal(t, KindEntryRef, v.Kind)
	assert.Same(t, root, v.Entry)
}

func TestEntryContextFieldVectorNames(t *testing.T) {
	reg, _, _ := buildEntryContextRegistry()
	root := &entry.ResolvedEntry{Entry: entry.Entry{ID: 1, DefinitionID: 4}, Metric: &entry.MetricMarker{}}
	vecs := entry.Vectors{Division: []string{"EST"}, Subdivision: []string{"TFG", "research"}, Path: []string{"EST", "TFG", "research"}}
	ctx := NewEntryContext(reg, vecs, root, root)

	v, err := ctx.Field("subdivision")
	require.NoError(t, err)
	assert.Equal(t, KindStrList, v.Kind)
	assert.Equal(t, []string{"TFG", "research"}, v.StrList)
}

func TestEntryContextFieldNavigatesScalarAttribute(t *testing.T) {
	reg, _, estDef := buildEntryContextRegistry()
	_ = estDef
	projectField := &schema.Field{ID: 20, MetricID: 4, Name: "project", BaseDefinitionID: 1}
	root := &entry.ResolvedEntry{Entry: entry.Entry{ID: 1, DefinitionID: 4}, Metric: &entry.MetricMarker{}}
	root.AddChild(&entry.ResolvedEntry{
		Entry:     entry.Entry{ID: 2, DefinitionID: 1},
		Attribute: &entry.AttributeValue{ValueString: ptrStr("paper")},
		Field:     projectField,
	})
	ctx := NewEntryContext(reg, entry.Vectors{}, root, root)

	v, err := ctx.Field("project")
	require.NoError(t, err)
	assert.Equal(t, KindStr, v.Kind)
	assert.Equal(t, "paper", v.Str)
}

func TestEntryContextFieldMissingFieldIsNull(t *testing.T) {
	reg, _, _ := buildEntryContextRegistry()
	root := &entry.ResolvedEntry{Entry: entry.Entry{ID: 1, DefinitionID: 4}, Metric: &entry.MetricMarker{}}
	ctx := NewEntryContext(reg, entry.Vectors{}, root, root)

	v, err := ctx.Field("project")
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestEntryContextTimeOfSumsMatchingAndPrefixedSubdivisions(t *testing.T) {
	reg, _, _ := buildEntryContextRegistry()
	timeTypeField := &schema.Field{ID: 10, MetricID: 3, Name: "time_type", BaseDefinitionID: 2}
	tim := &entry.ResolvedEntry{Entry: entry.Entry{ID: 1, DefinitionID: 3}, Metric: &entry.MetricMarker{}}
	tim.AddChild(&entry.ResolvedEntry{
		Entry:     entry.Entry{ID: 2, DefinitionID: 2, Subdivision: "m"},
		Attribute: &entry.AttributeValue{ValueInt: ptrInt(5)},
		Field:     timeTypeField,
	})
	tim.AddChild(&entry.ResolvedEntry{
		Entry:     entry.Entry{ID: 3, DefinitionID: 2, Subdivision: "m/thk"},
		Attribute: &entry.AttributeValue{ValueInt: ptrInt(15)},
		Field:     timeTypeField,
	})
	tim.AddChild(&entry.ResolvedEntry{
		Entry:     entry.Entry{ID: 4, DefinitionID: 2, Subdivision: "t"},
		Attribute: &entry.AttributeValue{ValueInt: ptrInt(30)},
		Field:     timeTypeField,
	})

	ctx := NewEntryContext(reg, entry.Vectors{}, tim, tim)
	v, err := ctx.TimeOf(EntryRefValue(tim), "m")
	require.NoError(t, err)
	assert.Equal(t, KindNum, v.Kind)
	assert.Equal(t, float64(20), v.Num)
}

func TestEntryContextTimeOfZeroWhenNoMatch(t *testing.T) {
	reg, _, _ := buildEntryContextRegistry()
	tim := &entry.ResolvedEntry{Entry: entry.Entry{ID: 1, DefinitionID: 3}, Metric: &entry.MetricMarker{}}
	ctx := NewEntryContext(reg, entry.Vectors{}, tim, tim)
	v, err := ctx.TimeOf(EntryRefValue(tim), "t")
	require.NoError(t, err)
	assert.Equal(t, float64(0), v.Num)
}

func TestEntryContextWhereFiltersBySubdivisionPrefix(t *testing.T) {
	reg, _, _ := buildEntryContextRegistry()
	a := &entry.ResolvedEntry{Entry: entry.Entry{ID: 1, DefinitionID: 3, Subdivision: "TFG/research"}, Metric: &entry.MetricMarker{}}
	b := &entry.ResolvedEntry{Entry: entry.Entry{ID: 2, DefinitionID: 3, Subdivision: "TFG/dev"}, Metric: &entry.MetricMarker{}}
	c := &entry.ResolvedEntry{Entry: entry.Entry{ID: 3, DefinitionID: 3, Subdivision: "OPS/oncall"}, Metric: &entry.MetricMarker{}}

	ctx := NewEntryContext(reg, entry.Vectors{}, a, a)
	v, err := ctx.Where(EntryRefListValue([]*entry.ResolvedEntry{a, b, c}), "subdivision", "TFG")
	require.NoError(t, err)
	require.Equal(t, KindEntryRefList, v.Kind)
	require.Len(t, v.Entries, 2)
	assert.Same(t, a, v.Entries[0])
	assert.Same(t, b, v.Entries[1])
}

func TestEntryContextAggregateErrorsOnEmptyList(t *testing.T) {
	reg, _, _ := buildEntryContextRegistry()
	root := &entry.ResolvedEntry{Entry: entry.Entry{ID: 1, DefinitionID: 4}, Metric: &entry.MetricMarker{}}
	ctx := NewEntryContext(reg, entry.Vectors{}, root, root)

	_, err := ctx.Aggregate("avg", NumListValue(nil))
	assert.Error(t, err)
}

func TestEntryContextCheckArithmeticOperandAlwaysAllowsLists(t *testing.T) {
	reg, _, _ := buildEntryContextRegistry()
	root := &entry.ResolvedEntry{Entry: entry.Entry{ID: 1, DefinitionID: 4}, Metric: &entry.MetricMarker{}}
	ctx := NewEntryContext(reg, entry.Vectors{}, root, root)
	assert.NoError(t, ctx.CheckArithmeticOperand(NumListValue([]float64{1, 2, 3})))
}
