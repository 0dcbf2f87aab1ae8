package formula

import (
	"github.com/daqhub/metriq/entry"
	"github.com/daqhub/metriq/schema"
)

// Context abstracts over the two evaluation settings a formula expression
// can run in: a single entry's field slots during entry-mode formula
// application (§4.6), or a widget's loaded entry collection during
// collection-mode widget execution (§4.8, §6.3).
type Context interface {
	// Field resolves a bare identifier: one of the reserved context
	// identifiers (self, parent, root, division, subdivision, path), or a
	// field name navigated from the implicit current entry/entries.
	Field(name string) (Value, error)

	// Navigate performs `.name` field access from a base value that is
	// itself an entry reference or a list of entry references.
	Navigate(base Value, name string) (Value, error)

	// Aggregate reduces a list-shaped value with one of the reserved
	// aggregation function names (sum, avg, min, max, count).
	Aggregate(name string, arg Value) (Value, error)

	// TimeOf resolves the reserved .time(token) method call against base (an
	// entry reference or list of entry references), per §8 invariant 4.
	TimeOf(base Value, token string) (Value, error)

	// Where resolves the reserved .where(vector in "prefix") method call
	// against base, filtering it down to the elements whose named vector
	// has the given prefix.
	Where(base Value, vector, prefix string) (Value, error)

	// CheckArithmeticOperand validates v as an operand of a binary or
	// unary arithmetic operator, before broadcasting. Entry-formula
	// contexts allow list operands (§6.4 list broadcasting); the widget
	// context rejects collection-shaped operands outright (§4.8).
	CheckArithmeticOperand(v Value) error
}

// entryContext evaluates a formula against a single ResolvedEntry, as used
// by the formula applier (§4.6).
type entryContext struct {
	reg     *schema.Registry
	vectors entry.Vectors
	root    *entry.ResolvedEntry
	self    *entry.ResolvedEntry
}

// NewEntryContext returns a Context evaluating formulas for self, a node of
// the tree rooted at root, whose owning pipeline run precomputed vectors.
func NewEntryContext(reg *schema.Registry, vectors entry.Vectors, root, self *entry.ResolvedEntry) Context {
	return &entryContext{reg: reg, vectors: vectors, root: root, self: self}
}

func (c *entryContext) Field(name string) (Value, error) {
	switch name {
	case "self":
		return EntryRefValue(c.self), nil
	case "parent":
		if p := c.self.Parent(); p != nil {
			return EntryRefValue(p), nil
		}
		return Null, nil
	case "root":
		return EntryRefValue(c.root), nil
	}
	if v, ok := vectorByName(c.vectors, name); ok {
		return StrListValue(v), nil
	}
	def, ok := c.reg.Definition(c.self.Entry.DefinitionID)
	if !ok {
		return Null, nil
	}
	f, ok := c.reg.FieldByName(def.ID, name)
	if !ok {
		return Null, nil
	}
	return fieldValue(c.reg, c.self, f), nil
}

func (c *entryContext) Navigate(base Value, name string) (Value, error) {
	switch base.Kind {
	case KindEntryRef:
		if base.Entry == nil {
			return Null, nil
		}
		def, ok := c.reg.Definition(base.Entry.Entry.DefinitionID)
		if !ok {
			return Null, nil
		}
		f, ok := c.reg.FieldByName(def.ID, name)
		if !ok {
			return Null, nil
		}
		return fieldValue(c.reg, base.Entry, f), nil
	case KindEntryRefList:
		var nums []float64
		allNum := true
		for _, e := range base.Entries {
			def, ok := c.reg.Definition(e.Entry.DefinitionID)
			if !ok {
				allNum = false
				continue
			}
			f, ok := c.reg.FieldByName(def.ID, name)
			if !ok {
				allNum = false
				continue
			}
			v := fieldValue(c.reg, e, f)
			if v.Kind != KindNum {
				allNum = false
				continue
			}
			nums = append(nums, v.Num)
		}
		if allNum {
			return NumListValue(nums), nil
		}
		return Null, nil
	default:
		return Null, nil
	}
}

// Aggregate errors on an empty list: entry formulas have no "yield zero"
// fallback (§4.5).
func (c *entryContext) Aggregate(name string, arg Value) (Value, error) {
	return aggregate(name, arg, true)
}

// CheckArithmeticOperand allows list operands unconditionally: entry
// formulas broadcast scalar-list and list-list arithmetic (§6.4).
func (c *entryContext) CheckArithmeticOperand(v Value) error { return nil }

// TimeOf implements §8 invariant 4: the sum of value_int over base's
// "time_type"-field children whose subdivision equals token or starts with
// token+"/", zero when that set is empty.
func (c *entryContext) TimeOf(base Value, token string) (Value, error) {
	switch base.Kind {
	case KindEntryRef:
		return NumValue(sumTimeType(c.reg, base.Entry, token)), nil
	case KindEntryRefList:
		out := make([]float64, len(base.Entries))
		for i, e := range base.Entries {
			out[i] = sumTimeType(c.reg, e, token)
		}
		return NumListValue(out), nil
	}
	return Null, nil
}

// Where filters base (an entry reference or list) down to the elements
// whose named vector — computed per-entry from the schema parent chain and
// its own subdivision — has the given "/"-separated prefix.
func (c *entryContext) Where(base Value, vector, prefix string) (Value, error) {
	switch base.Kind {
	case KindEntryRef:
		if entryMatchesWhere(c.reg, base.Entry, vector, prefix) {
			return base, nil
		}
		return EntryRefListValue(nil), nil
	case KindEntryRefList:
		var out []*entry.ResolvedEntry
		for _, e := range base.Entries {
			if entryMatchesWhere(c.reg, e, vector, prefix) {
				out = append(out, e)
			}
		}
		return EntryRefListValue(out), nil
	}
	return Null, nil
}

func vectorByName(vecs entry.Vectors, name string) ([]string, bool) {
	switch name {
	case "division":
		return vecs.Division, true
	case "subdivision":
		return vecs.Subdivision, true
	case "path":
		return vecs.Path, true
	}
	return nil, false
}

// fieldValue implements §4.5 "Field navigation": if every collected child
// carries an attribute specialization, returns the list of typed values
// (length-1 collapses to scalar); if every child carries a metric marker,
// returns the list of entry references (length-1 collapses); mixed or
// missing collections yield null.
func fieldValue(reg *schema.Registry, self *entry.ResolvedEntry, f *schema.Field) Value {
	children := self.ChildrenByField(f)
	if len(children) == 0 {
		return Null
	}
	allAttr, allMetric := true, true
	for _, c := range children {
		if !c.IsAttribute() {
			allAttr = false
		}
		if !c.IsMetric() {
			allMetric = false
		}
	}
	switch {
	case allAttr:
		if len(children) == 1 {
			return scalarOf(children[0])
		}
		return collapseAttributeList(children)
	case allMetric:
		if len(children) == 1 {
			return EntryRefValue(children[0])
		}
		refs := make([]*entry.ResolvedEntry, len(children))
		copy(refs, children)
		return EntryRefListValue(refs)
	default:
		return Null
	}
}

// collapseAttributeList renders a >1-length homogeneous attribute
// collection as the matching typed list, or null if the children's
// populated columns aren't uniform.
func collapseAttributeList(children []*entry.ResolvedEntry) Value {
	first := scalarOf(children[0])
	switch first.Kind {
	case KindNum:
		out := make([]float64, 0, len(children))
		for _, c := range children {
			v := scalarOf(c)
			if v.Kind != KindNum {
				return Null
			}
			out = append(out, v.Num)
		}
		return NumListValue(out)
	case KindStr:
		out := make([]string, 0, len(children))
		for _, c := range children {
			v := scalarOf(c)
			if v.Kind != KindStr {
				return Null
			}
			out = append(out, v.Str)
		}
		return StrListValue(out)
	case KindBool:
		out := make([]bool, 0, len(children))
		for _, c := range children {
			v := scalarOf(c)
			if v.Kind != KindBool {
				return Null
			}
			out = append(out, v.Bool)
		}
		return BoolListValue(out)
	}
	return Null
}

func scalarOf(e *entry.ResolvedEntry) Value {
	if e.IsMetric() {
		return EntryRefValue(e)
	}
	if e.Attribute == nil {
		return Null
	}
	switch {
	case e.Attribute.ValueInt != nil:
		return NumValue(float64(*e.Attribute.ValueInt))
	case e.Attribute.ValueFloat != nil:
		return NumValue(*e.Attribute.ValueFloat)
	case e.Attribute.ValueString != nil:
		return StrValue(*e.Attribute.ValueString)
	case e.Attribute.ValueBool != nil:
		return BoolValue(*e.Attribute.ValueBool)
	case e.Attribute.ValueHierarchy != nil:
		return StrValue(*e.Attribute.ValueHierarchy)
	case e.Attribute.ValueTimestamp != nil:
		return StrValue(e.Attribute.ValueTimestamp.Format("2006-01-02"))
	}
	return Null
}

// sumTimeType sums value_int over of's "time_type"-field children whose
// subdivision equals token or starts with token+"/".
func sumTimeType(reg *schema.Registry, of *entry.ResolvedEntry, token string) float64 {
	def, ok := reg.Definition(of.Entry.DefinitionID)
	if !ok {
		return 0
	}
	f, ok := reg.FieldByName(def.ID, "time_type")
	if !ok {
		return 0
	}
	var sum float64
	for _, c := range of.ChildrenByField(f) {
		if c.Attribute == nil || c.Attribute.ValueInt == nil {
			continue
		}
		sub := c.Entry.Subdivision
		if sub == token || (len(sub) > len(token) && sub[:len(token)+1] == token+"/") {
			sum += float64(*c.Attribute.ValueInt)
		}
	}
	return sum
}

func entryMatchesWhere(reg *schema.Registry, e *entry.ResolvedEntry, vector, prefix string) bool {
	var vec []string
	switch vector {
	case "division":
		if def, ok := reg.Definition(e.Entry.DefinitionID); ok {
			vec = reg.ParentChain(def)
		}
	case "subdivision":
		vec = entry.SplitPath(e.Entry.Subdivision)
	case "path":
		if def, ok := reg.Definition(e.Entry.DefinitionID); ok {
			vec = append(reg.ParentChain(def), entry.SplitPath(e.Entry.Subdivision)...)
		}
	default:
		return false
	}
	return hasPrefixVector(vec, prefix)
}

func hasPrefixVector(vec []string, prefix string) bool {
	parts := entry.SplitPath(prefix)
	if len(parts) > len(vec) {
		return false
	}
	for i, p := range parts {
		if vec[i] != p {
			return false
		}
	}
	return true
}
