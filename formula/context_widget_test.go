package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daqhub/metriq/entry"
)

func loadedScenario5() []entry.LoadedEntry {
	return []entry.LoadedEntry{
		{
			TimeValues: map[string]int64{"t": 45, "m": 10, "n": 5},
			Attributes: map[string]interface{}{"duration": int64(60)},
		},
		{
			TimeValues: map[string]int64{"t": 50, "m": 25, "n": 5, "p": 10},
			Attributes: map[string]interface{}{"duration": int64(90)},
		},
		{
			TimeValues: map[string]int64{"t": 70, "m": 15, "n": 5},
			Attributes: map[string]interface{}{"duration": int64(90)},
		},
	}
}

func TestWidgetProductivityScenario5(t *testing.T) {
	ctx := NewCollectionContext("tims", loadedScenario5())
	expr, err := Parse(`sum(tims.time("t")) / sum(tims.duration)`)
	require.NoError(t, err)
	v, err := Eval(expr, ctx)
	require.NoError(t, err)
	require.Equal(t, KindNum, v.Kind)
	assert.InDelta(t, 0.6875, v.Num, 1e-9)
}

func TestWidgetProductiveTimeScenario5(t *testing.T) {
	ctx := NewCollectionContext("tims", loadedScenario5())
	expr, err := Parse(`sum(tims.time("t"))`)
	require.NoError(t, err)
	v, err := Eval(expr, ctx)
	require.NoError(t, err)
	assert.Equal(t, NumValue(165), v)
}

func TestWidgetEmptyCollectionYieldsZero(t *testing.T) {
	ctx := NewCollectionContext("tims", nil)
	expr, err := Parse(`sum(tims.time("t"))`)
	require.NoError(t, err)
	v, err := Eval(expr, ctx)
	require.NoError(t, err)
	assert.Equal(t, NumValue(0), v)
}

func TestWidgetRejectsArithmeticOnCollection(t *testing.T) {
	ctx := NewCollectionContext("tims", loadedScenario5())
	expr, err := Parse(`tims.time("t") / tims.duration`)
	require.NoError(t, err)
	_, err = Eval(expr, ctx)
	assert.Error(t, err)
}

func TestWidgetAggregateOfEmptyDatasetYieldsZero(t *testing.T) {
	ctx := NewCollectionContext("tims", nil)
	for _, src := range []string{`sum(tims.time("t"))`, `avg(tims.duration)`, `min(tims.duration)`, `max(tims.duration)`, `count(tims.duration)`} {
		expr, err := Parse(src)
		require.NoError(t, err, src)
		v, err := Eval(expr, ctx)
		require.NoError(t, err, src)
		assert.Equal(t, NumValue(0), v, src)
	}
}

func TestWidgetFieldDropsNonNumeric(t *testing.T) {
	ctx := NewCollectionContext("tims", []entry.LoadedEntry{
		{Attributes: map[string]interface{}{"project": "paper", "adv": int64(7)}},
		{Attributes: map[string]interface{}{"project": "pen"}},
	})
	expr, err := Parse(`sum(tims.adv)`)
	require.NoError(t, err)
	v, err := Eval(expr, ctx)
	require.NoError(t, err)
	assert.Equal(t, NumValue(7), v)
}
