package formula

import (
	"math"

	"github.com/mb0/xelf/cor"
)

// Eval walks expr against ctx, implementing arithmetic broadcasting,
// aggregation, field navigation, where() filtering, time(base), and
// hierarchy-vector indexing (§6.4).
func Eval(expr Expr, ctx Context) (Value, error) {
	switch e := expr.(type) {
	case NumberLit:
		return NumValue(e.Value), nil
	case StringLit:
		return StrValue(e.Value), nil
	case Ident:
		return evalIdent(e, ctx)
	case UnaryExpr:
		return evalUnary(e, ctx)
	case BinaryExpr:
		return evalBinary(e, ctx)
	case FieldAccess:
		return evalFieldAccess(e, ctx)
	case IndexExpr:
		return evalIndex(e, ctx)
	case CallExpr:
		return evalCall(e, ctx)
	case MethodCallExpr:
		return evalMethodCall(e, ctx)
	}
	return Null, cor.Errorf("unsupported expression node %T", expr)
}

func evalIdent(e Ident, ctx Context) (Value, error) {
	return ctx.Field(e.Name)
}

func evalUnary(e UnaryExpr, ctx Context) (Value, error) {
	v, err := Eval(e.Operand, ctx)
	if err != nil {
		return Null, err
	}
	if err := ctx.CheckArithmeticOperand(v); err != nil {
		return Null, err
	}
	return mapNumeric(v, func(n float64) float64 { return -n })
}

func evalBinary(e BinaryExpr, ctx Context) (Value, error) {
	l, err := Eval(e.Left, ctx)
	if err != nil {
		return Null, err
	}
	r, err := Eval(e.Right, ctx)
	if err != nil {
		return Null, err
	}
	if err := ctx.CheckArithmeticOperand(l); err != nil {
		return Null, err
	}
	if err := ctx.CheckArithmeticOperand(r); err != nil {
		return Null, err
	}
	return broadcast(e.Op, l, r)
}

func evalFieldAccess(e FieldAccess, ctx Context) (Value, error) {
	base, err := Eval(e.Base, ctx)
	if err != nil {
		return Null, err
	}
	if base.Kind == KindStrList {
		// Field access on a vector is meaningless outside indexing; treat
		// as a navigation miss.
		return Null, nil
	}
	return ctx.Navigate(base, e.Name)
}

func evalIndex(e IndexExpr, ctx Context) (Value, error) {
	base, err := Eval(e.Base, ctx)
	if err != nil {
		return Null, err
	}
	idxVal, err := Eval(e.Index, ctx)
	if err != nil {
		return Null, err
	}
	if idxVal.Kind != KindNum {
		return Null, cor.Errorf("index must be numeric")
	}
	i := int(idxVal.Num)
	switch base.Kind {
	case KindStrList:
		if i < 0 || i >= len(base.StrList) {
			return Null, cor.Errorf("index %d out of range for vector of length %d", i, len(base.StrList))
		}
		return StrValue(base.StrList[i]), nil
	case KindNumList:
		if i < 0 || i >= len(base.NumList) {
			return Null, cor.Errorf("index %d out of range", i)
		}
		return NumValue(base.NumList[i]), nil
	case KindEntryRefList:
		if i < 0 || i >= len(base.Entries) {
			return Null, cor.Errorf("index %d out of range", i)
		}
		return EntryRefValue(base.Entries[i]), nil
	}
	return Null, nil
}

// evalCall handles the reserved bare function names: sum, avg, min, max,
// count (§6.4 "Reserved function names").
func evalCall(e CallExpr, ctx Context) (Value, error) {
	id, ok := e.Callee.(Ident)
	if !ok {
		return Null, cor.Errorf("call target must be a bare name")
	}
	switch id.Name {
	case "sum", "avg", "min", "max", "count":
		if len(e.Args) != 1 {
			return Null, cor.Errorf("%s() requires exactly one argument", id.Name)
		}
		arg, err := Eval(e.Args[0], ctx)
		if err != nil {
			return Null, err
		}
		return ctx.Aggregate(id.Name, arg)
	}
	return Null, cor.Errorf("unknown function %q", id.Name)
}

// evalMethodCall handles the reserved method-call names on entries: where
// and time (§6.4 "Reserved method-call names on entries").
func evalMethodCall(e MethodCallExpr, ctx Context) (Value, error) {
	base, err := Eval(e.Base, ctx)
	if err != nil {
		return Null, err
	}
	switch e.Name {
	case "time":
		if len(e.Args) != 1 {
			return Null, cor.Errorf("time() takes exactly one argument")
		}
		tokVal, err := Eval(e.Args[0], ctx)
		if err != nil {
			return Null, err
		}
		if tokVal.Kind != KindStr {
			return Null, cor.Errorf("time() argument must be a string base token")
		}
		return ctx.TimeOf(base, tokVal.Str)
	case "where":
		if len(e.Args) != 2 {
			return Null, cor.Errorf("where() takes a vector and a string prefix")
		}
		vec, ok := e.Args[0].(Ident)
		if !ok {
			return Null, cor.Errorf("where() vector must be a bare name")
		}
		prefix, ok := e.Args[1].(StringLit)
		if !ok {
			return Null, cor.Errorf("where() prefix must be a string literal")
		}
		return ctx.Where(base, vec.Name, prefix.Value)
	}
	return Null, cor.Errorf("unknown method %q", e.Name)
}

// aggregate reduces a value to a scalar using one of the five aggregation
// functions (§4.8). It accepts num-lists and bare numeric scalars; any
// other value is rejected, except by count, which returns its element count.
// emptyIsError selects the caller's empty-list policy: an entry-formula
// context errors on an empty list, a widget context yields 0 (§4.5
// "Aggregations": "empty list is an error in entry context and yields 0 in
// widget context").
func aggregate(name string, v Value, emptyIsError bool) (Value, error) {
	nums, ok := numericElements(v)
	if !ok {
		if name == "count" {
			return NumValue(float64(v.Len())), nil
		}
		return Null, cor.Errorf("%s() requires a numeric list", name)
	}
	if len(nums) == 0 && name != "count" {
		if emptyIsError {
			return Null, cor.Errorf("%s() of an empty list is an error in this context", name)
		}
		return NumValue(0), nil
	}
	switch name {
	case "count":
		return NumValue(float64(len(nums))), nil
	case "sum":
		var s float64
		for _, n := range nums {
			s += n
		}
		return NumValue(s), nil
	case "avg":
		var s float64
		for _, n := range nums {
			s += n
		}
		return NumValue(s / float64(len(nums))), nil
	case "min":
		m := nums[0]
		for _, n := range nums[1:] {
			m = math.Min(m, n)
		}
		return NumValue(m), nil
	case "max":
		m := nums[0]
		for _, n := range nums[1:] {
			m = math.Max(m, n)
		}
		return NumValue(m), nil
	}
	return Null, cor.Errorf("unknown aggregation %q", name)
}

func numericElements(v Value) ([]float64, bool) {
	switch v.Kind {
	case KindNumList:
		return v.NumList, true
	case KindNum:
		return []float64{v.Num}, true
	}
	return nil, false
}

// mapNumeric applies fn elementwise across a scalar or num-list value.
func mapNumeric(v Value, fn func(float64) float64) (Value, error) {
	switch v.Kind {
	case KindNum:
		return NumValue(fn(v.Num)), nil
	case KindNumList:
		out := make([]float64, len(v.NumList))
		for i, n := range v.NumList {
			out[i] = fn(n)
		}
		return NumListValue(out), nil
	case KindNull:
		return Null, nil
	}
	return Null, cor.Errorf("expected a numeric value")
}

// broadcast applies op across l and r, broadcasting a scalar against a list
// elementwise, or combining two equal-length lists pairwise (§6.4).
func broadcast(op string, l, r Value) (Value, error) {
	if l.IsNull() || r.IsNull() {
		return Null, nil
	}
	lIsList := l.Kind == KindNumList
	rIsList := r.Kind == KindNumList
	switch {
	case !lIsList && !rIsList:
		ln, ok1 := asNum(l)
		rn, ok2 := asNum(r)
		if !ok1 || !ok2 {
			return Null, cor.Errorf("operator %q requires numeric operands", op)
		}
		n, err := numericOp(op, ln, rn)
		if err != nil {
			return Null, err
		}
		return NumValue(n), nil
	case lIsList && !rIsList:
		rn, ok := asNum(r)
		if !ok {
			return Null, cor.Errorf("operator %q requires numeric operands", op)
		}
		out := make([]float64, len(l.NumList))
		for i, n := range l.NumList {
			v, err := numericOp(op, n, rn)
			if err != nil {
				return Null, err
			}
			out[i] = v
		}
		return NumListValue(out), nil
	case !lIsList && rIsList:
		ln, ok := asNum(l)
		if !ok {
			return Null, cor.Errorf("operator %q requires numeric operands", op)
		}
		out := make([]float64, len(r.NumList))
		for i, n := range r.NumList {
			v, err := numericOp(op, ln, n)
			if err != nil {
				return Null, err
			}
			out[i] = v
		}
		return NumListValue(out), nil
	default:
		if len(l.NumList) != len(r.NumList) {
			return Null, cor.Errorf("operator %q: mismatched list lengths %d and %d", op, len(l.NumList), len(r.NumList))
		}
		out := make([]float64, len(l.NumList))
		for i := range l.NumList {
			v, err := numericOp(op, l.NumList[i], r.NumList[i])
			if err != nil {
				return Null, err
			}
			out[i] = v
		}
		return NumListValue(out), nil
	}
}

func asNum(v Value) (float64, bool) {
	if v.Kind == KindNum {
		return v.Num, true
	}
	return 0, false
}

// numericOp applies op to a and b, failing on division or modulo by zero
// (§6.4 "Division and modulo by zero fail").
func numericOp(op string, a, b float64) (float64, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return 0, cor.Errorf("division by zero")
		}
		return a / b, nil
	case "//":
		if b == 0 {
			return 0, cor.Errorf("division by zero")
		}
		return math.Floor(a / b), nil
	case "%":
		if b == 0 {
			return 0, cor.Errorf("modulo by zero")
		}
		return math.Mod(a, b), nil
	case "^":
		return math.Pow(a, b), nil
	}
	return 0, cor.Errorf("unsupported operator %q", op)
}
