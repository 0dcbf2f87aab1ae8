package formula

import (
	"github.com/daqhub/metriq/entry"
)

// ValueKind tags the variant a Value currently holds (§6.4 closed value set).
type ValueKind byte

const (
	KindNull ValueKind = iota
	KindNum
	KindStr
	KindBool
	KindNumList
	KindStrList
	KindBoolList
	KindEntryRef
	KindEntryRefList
	KindLoadedList
)

// Value is the closed sum type every formula and widget expression
// evaluates to. Exactly the fields matching Kind are meaningful.
type Value struct {
	Kind     ValueKind
	Num      float64
	Str      string
	Bool     bool
	NumList  []float64
	StrList  []string
	BoolList []bool
	Entry    *entry.ResolvedEntry
	Entries  []*entry.ResolvedEntry
	Loaded   []entry.LoadedEntry
}

// Null is the canonical absent value.
var Null = Value{Kind: KindNull}

func NumValue(n float64) Value   { return Value{Kind: KindNum, Num: n} }
func StrValue(s string) Value    { return Value{Kind: KindStr, Str: s} }
func BoolValue(b bool) Value     { return Value{Kind: KindBool, Bool: b} }
func NumListValue(v []float64) Value  { return Value{Kind: KindNumList, NumList: v} }
func StrListValue(v []string) Value   { return Value{Kind: KindStrList, StrList: v} }
func BoolListValue(v []bool) Value    { return Value{Kind: KindBoolList, BoolList: v} }
func EntryRefValue(e *entry.ResolvedEntry) Value { return Value{Kind: KindEntryRef, Entry: e} }
func EntryRefListValue(es []*entry.ResolvedEntry) Value {
	return Value{Kind: KindEntryRefList, Entries: es}
}

// LoadedListValue wraps a widget dataset's loaded entries as the "this
// collection" handle a bound alias resolves to (§4.8).
func LoadedListValue(es []entry.LoadedEntry) Value { return Value{Kind: KindLoadedList, Loaded: es} }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// IsList reports whether v holds any of the collection-shaped variants.
func (v Value) IsList() bool {
	switch v.Kind {
	case KindNumList, KindStrList, KindBoolList, KindEntryRefList, KindLoadedList:
		return true
	}
	return false
}

// Len returns the element count of a list value, or 1 for a scalar, 0 for null.
func (v Value) Len() int {
	switch v.Kind {
	case KindNull:
		return 0
	case KindNumList:
		return len(v.NumList)
	case KindStrList:
		return len(v.StrList)
	case KindBoolList:
		return len(v.BoolList)
	case KindEntryRefList:
		return len(v.Entries)
	case KindLoadedList:
		return len(v.Loaded)
	}
	return 1
}
