package compiler

import (
	"math"
	"strconv"

	"fixshade/pkg/ir"
)

// constValue is a folded scalar constant. Int holds the value for Int, UInt
// and Bool kinds, already wrapped to 32 bits; F holds Float values.
type constValue struct {
	Kind ScalarKind
	Int  int64
	F    float64
}

func intConst(v int64) constValue     { return constValue{Kind: Int, Int: int64(int32(v))} }
func uintConst(v int64) constValue    { return constValue{Kind: UInt, Int: int64(uint32(v))} }
func floatConst(f float64) constValue { return constValue{Kind: Float, F: f} }
func boolConst(b bool) constValue {
	if b {
		return constValue{Kind: Bool, Int: 1}
	}
	return constValue{Kind: Bool}
}

func (c constValue) String() string {
	switch c.Kind {
	case Float:
		return strconv.FormatFloat(c.F, 'g', -1, 64)
	case Bool:
		return strconv.FormatBool(c.Int != 0)
	case UInt:
		return strconv.FormatInt(c.Int, 10) + "u"
	}
	return strconv.FormatInt(c.Int, 10)
}

func (c constValue) asFloat() float64 {
	if c.Kind == Float {
		return c.F
	}
	return float64(c.Int)
}

// convert changes c to kind k with the same rules as a constructor call.
func (c constValue) convert(k ScalarKind) constValue {
	if c.Kind == k {
		return c
	}
	switch k {
	case Float:
		return floatConst(c.asFloat())
	case Int:
		if c.Kind == Float {
			return intConst(int64(math.Trunc(c.F)))
		}
		return intConst(c.Int)
	case UInt:
		if c.Kind == Float {
			if c.F < 0 {
				return uintConst(0)
			}
			return uintConst(int64(c.F))
		}
		return uintConst(c.Int)
	case Bool:
		if c.Kind == Float {
			return boolConst(c.F != 0)
		}
		return boolConst(c.Int != 0)
	}
	return c
}

// emit materialises c as one IR word.
func (c constValue) emit(b *ir.Builder) ir.Value {
	if c.Kind == Float {
		return b.FConst(c.F)
	}
	return b.IConst(c.Int)
}

// constFolder evaluates scalar constant expressions: literals, const names
// and operators over them.
type constFolder struct {
	lookup func(string) (*Symbol, bool)
}

// intValue folds e to an integer, for array sizes and indices.
func (f constFolder) intValue(e Expr) (int64, bool) {
	c, ok := f.fold(e)
	if !ok || (c.Kind != Int && c.Kind != UInt) {
		return 0, false
	}
	return c.Int, true
}

func (f constFolder) fold(e Expr) (constValue, bool) {
	switch n := e.(type) {
	case *IntLiteral:
		if n.Unsigned {
			return uintConst(n.Value), true
		}
		return intConst(n.Value), true

	case *FloatLiteral:
		return floatConst(n.Value), true

	case *BoolLiteral:
		return boolConst(n.Value), true

	case *VarRef:
		if f.lookup == nil {
			return constValue{}, false
		}
		sym, ok := f.lookup(n.Name)
		if !ok || sym.Storage != StorageConst {
			return constValue{}, false
		}
		return sym.Value, true

	case *UnaryExpr:
		v, ok := f.fold(n.Right)
		if !ok {
			return constValue{}, false
		}
		switch n.Op {
		case PLUS:
			return v, v.Kind != Bool
		case MINUS:
			switch v.Kind {
			case Float:
				return floatConst(-v.F), true
			case Int:
				return intConst(-v.Int), true
			case UInt:
				return uintConst(-v.Int), true
			}
		case NOT:
			if v.Kind == Bool {
				return boolConst(v.Int == 0), true
			}
		case TILDE:
			switch v.Kind {
			case Int:
				return intConst(^v.Int), true
			case UInt:
				return uintConst(^v.Int), true
			}
		}
		return constValue{}, false

	case *BinaryExpr:
		l, ok := f.fold(n.Left)
		if !ok {
			return constValue{}, false
		}
		r, ok := f.fold(n.Right)
		if !ok {
			return constValue{}, false
		}
		return foldBinary(n.Op, l, r)

	case *LogicalExpr:
		l, ok := f.fold(n.Left)
		if !ok || l.Kind != Bool {
			return constValue{}, false
		}
		r, ok := f.fold(n.Right)
		if !ok || r.Kind != Bool {
			return constValue{}, false
		}
		switch n.Op {
		case AND_LOGICAL:
			return boolConst(l.Int != 0 && r.Int != 0), true
		case OR_LOGICAL:
			return boolConst(l.Int != 0 || r.Int != 0), true
		case XOR_LOGICAL:
			return boolConst((l.Int != 0) != (r.Int != 0)), true
		}
		return constValue{}, false

	case *TernaryExpr:
		c, ok := f.fold(n.Cond)
		if !ok || c.Kind != Bool {
			return constValue{}, false
		}
		a, ok := f.fold(n.Then)
		if !ok {
			return constValue{}, false
		}
		b, ok := f.fold(n.Else)
		if !ok || a.Kind != b.Kind {
			return constValue{}, false
		}
		if c.Int != 0 {
			return a, true
		}
		return b, true

	case *ConstructorExpr:
		t, ok := builtinTypes[n.Type.Base]
		if !ok || !t.IsScalar() || len(n.Type.Dims) > 0 || len(n.Args) != 1 {
			return constValue{}, false
		}
		v, ok := f.fold(n.Args[0])
		if !ok {
			return constValue{}, false
		}
		return v.convert(t.Scalar), true
	}
	return constValue{}, false
}

func foldBinary(op TokenType, l, r constValue) (constValue, bool) {
	if l.Kind == Bool || r.Kind == Bool {
		if l.Kind != r.Kind {
			return constValue{}, false
		}
		switch op {
		case EQUALS:
			return boolConst(l.Int == r.Int), true
		case NOT_EQ:
			return boolConst(l.Int != r.Int), true
		}
		return constValue{}, false
	}

	// Implicit promotion: int/uint → float, int → uint.
	if l.Kind != r.Kind {
		switch {
		case l.Kind == Float:
			r = r.convert(Float)
		case r.Kind == Float:
			l = l.convert(Float)
		case l.Kind == UInt:
			r = r.convert(UInt)
		default:
			l = l.convert(UInt)
		}
	}

	if l.Kind == Float {
		a, b := l.F, r.F
		switch op {
		case PLUS:
			return floatConst(a + b), true
		case MINUS:
			return floatConst(a - b), true
		case STAR:
			return floatConst(a * b), true
		case SLASH:
			if b == 0 {
				return floatConst(0), true
			}
			return floatConst(a / b), true
		case PERCENT:
			if b == 0 {
				return floatConst(0), true
			}
			return floatConst(a - b*math.Trunc(a/b)), true
		case EQUALS:
			return boolConst(a == b), true
		case NOT_EQ:
			return boolConst(a != b), true
		case LESS:
			return boolConst(a < b), true
		case GREATER:
			return boolConst(a > b), true
		case LESS_EQ:
			return boolConst(a <= b), true
		case GREATER_EQ:
			return boolConst(a >= b), true
		}
		return constValue{}, false
	}

	mk := intConst
	if l.Kind == UInt {
		mk = uintConst
	}
	a, b := l.Int, r.Int
	switch op {
	case PLUS:
		return mk(a + b), true
	case MINUS:
		return mk(a - b), true
	case STAR:
		return mk(a * b), true
	case SLASH:
		if b == 0 {
			return mk(0), true
		}
		return mk(a / b), true
	case PERCENT:
		if b == 0 {
			return mk(0), true
		}
		return mk(a % b), true
	case AND:
		return mk(a & b), true
	case PIPE:
		return mk(a | b), true
	case CARET:
		return mk(a ^ b), true
	case SHL_OP:
		return mk(a << (uint64(b) & 31)), true
	case SHR_OP:
		if l.Kind == UInt {
			return mk(a >> (uint64(b) & 31)), true
		}
		return mk(int64(int32(a) >> (uint64(b) & 31))), true
	case EQUALS:
		return boolConst(a == b), true
	case NOT_EQ:
		return boolConst(a != b), true
	case LESS:
		return boolConst(a < b), true
	case GREATER:
		return boolConst(a > b), true
	case LESS_EQ:
		return boolConst(a <= b), true
	case GREATER_EQ:
		return boolConst(a >= b), true
	}
	return constValue{}, false
}
