package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildRegistry() *Registry {
	intDef := &Definition{ID: 1, Code: "INT", Kind: KindAttribute, Datatype: Int}
	timDef := &Definition{ID: 2, Code: "TIM", Kind: KindMetric}
	estDef := &Definition{ID: 3, Code: "EST", Kind: KindMetric}
	advField := &Field{ID: 10, MetricID: 3, Name: "adv", BaseDefinitionID: 1, Cardinality: Cardinality{Min: 0, Max: 1}}
	timField := &Field{ID: 11, MetricID: 3, Name: "tim", BaseDefinitionID: 2, Cardinality: Cardinality{Min: 0, Max: 1}}
	return NewRegistry([]*Definition{intDef, timDef, estDef}, []*Field{advField, timField})
}

func TestRegistryLookups(t *testing.T) {
	reg := buildRegistry()
	def, ok := reg.DefinitionByCode("EST")
	require.True(t, ok)
	f, ok := reg.FieldByName(def.ID, "adv")
	require.True(t, ok)
	assert.Equal(t, "adv", f.Name)
	_, ok = reg.FieldByName(def.ID, "missing")
	assert.False(t, ok)
}

func TestIsTimingCapable(t *testing.T) {
	reg := buildRegistry()
	est, _ := reg.DefinitionByCode("EST")
	assert.True(t, reg.IsTimingCapable(est))

	tim, _ := reg.DefinitionByCode("TIM")
	assert.False(t, reg.IsTimingCapable(tim))
}

func TestCardinalityInRange(t *testing.T) {
	c := Cardinality{Min: 1, Max: 3}
	assert.False(t, c.InRange(0))
	assert.True(t, c.InRange(1))
	assert.True(t, c.InRange(3))
	assert.False(t, c.InRange(4))

	unbounded := Cardinality{Min: 0, Max: 0}
	assert.True(t, unbounded.Unbounded())
	assert.True(t, unbounded.InRange(1000))
}

func TestFieldValidateFormulaRequiresBody(t *testing.T) {
	f := &Field{Name: "gross_productivity", InputMode: Formula, Cardinality: Cardinality{Max: 1}}
	assert.Error(t, f.Validate())

	f.Formula = "self.tim.time(\"t\") / self.tim.duration"
	assert.NoError(t, f.Validate())
}

func TestFieldValidateFormulaRequiresMaxOne(t *testing.T) {
	f := &Field{Name: "bad", InputMode: Formula, Formula: "division[0]", Cardinality: Cardinality{Max: 0}}
	assert.Error(t, f.Validate())
}

func TestIsHierarchyOnly(t *testing.T) {
	f := &Field{InputMode: Formula, Formula: "subdivision[0]"}
	vector, idx, ok := f.IsHierarchyOnly()
	require.True(t, ok)
	assert.Equal(t, "subdivision", vector)
	assert.Equal(t, 0, idx)

	f2 := &Field{InputMode: Formula, Formula: "self.tim.duration"}
	_, _, ok = f2.IsHierarchyOnly()
	assert.False(t, ok)
}

func TestParentChainOutermostFirst(t *testing.T) {
	reg := NewRegistry([]*Definition{
		{ID: 1, Code: "ROOT"},
		{ID: 2, Code: "MID", ParentDefinitionID: 1},
		{ID: 3, Code: "LEAF", ParentDefinitionID: 2},
	}, nil)
	leaf, _ := reg.Definition(3)
	assert.Equal(t, []string{"ROOT", "MID", "LEAF"}, reg.ParentChain(leaf))
}

func TestPrimaryIdentifierField(t *testing.T) {
	reg := NewRegistry([]*Definition{
		{ID: 1, Code: "EST", Kind: KindMetric, PrimaryIdentifierFieldID: 10},
	}, []*Field{
		{ID: 10, MetricID: 1, Name: "code"},
	})
	est, _ := reg.Definition(1)
	f, ok := reg.PrimaryIdentifierField(est)
	require.True(t, ok)
	assert.Equal(t, "code", f.Name)
}
