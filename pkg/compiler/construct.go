package compiler

import (
	"fmt"

	"fixshade/pkg/ir"
)

// rvalue is an evaluated expression: its type and one word per primitive
// component, arrays flattened element by element.
type rvalue struct {
	T    Type
	Vals []ir.Value
}

// convertWord converts one primitive from kind from to kind to.
func (g *funcGen) convertWord(v ir.Value, from, to ScalarKind) ir.Value {
	if from == to {
		return v
	}
	switch to {
	case Float:
		if from == UInt {
			return g.b.Unary(ir.OpUToF, v)
		}
		return g.b.Unary(ir.OpIToF, v)
	case Int:
		if from == Float {
			return g.b.Unary(ir.OpFToI, v)
		}
		return v
	case UInt:
		if from == Float {
			return g.b.Unary(ir.OpFToU, v)
		}
		return v
	case Bool:
		return g.b.ICmp(ir.PredNE, v, g.b.IConst(0))
	}
	return v
}

// convertKind changes the component kind of a scalar or vector.
func (g *funcGen) convertKind(rv rvalue, k ScalarKind) rvalue {
	if rv.T.Scalar == k || rv.T.IsMatrix() || rv.T.IsArray() {
		return rv
	}
	out := make([]ir.Value, len(rv.Vals))
	for i, v := range rv.Vals {
		out[i] = g.convertWord(v, rv.T.Scalar, k)
	}
	return rvalue{T: rv.T.WithKind(k), Vals: out}
}

// implicitKind reports whether a value of kind from may silently become
// kind to: int and uint widen to float, int becomes uint.
func implicitKind(from, to ScalarKind) bool {
	if from == to {
		return true
	}
	switch to {
	case Float:
		return from == Int || from == UInt
	case UInt:
		return from == Int
	}
	return false
}

// coerce applies the implicit conversions of assignment, initialization,
// argument passing and return to rv so it has type t.
func (g *funcGen) coerce(rv rvalue, t Type, op string, pos ir.Pos) (rvalue, error) {
	if rv.T.Equal(t) {
		return rv, nil
	}
	if (rv.T.IsScalar() || rv.T.IsVector()) && rv.T.SameShape(t) && implicitKind(rv.T.Scalar, t.Scalar) {
		return g.convertKind(rv, t.Scalar), nil
	}
	return rvalue{}, typeErr(pos, op, t, rv.T)
}

// construct builds a value of type t from constructor arguments.
func (g *funcGen) construct(t Type, args []Expr, pos ir.Pos) (rvalue, error) {
	op := t.String() + " constructor"
	if t.IsVoid() {
		return rvalue{}, typeErr(pos, op, "value type", t)
	}
	if t.IsArray() {
		return g.constructArray(t, args, pos)
	}

	vals := make([]rvalue, len(args))
	for i, a := range args {
		rv, err := g.genExpr(a)
		if err != nil {
			return rvalue{}, err
		}
		if rv.T.IsVoid() || rv.T.IsArray() {
			return rvalue{}, typeErr(exprPos(a), op, "scalar, vector or matrix argument", rv.T)
		}
		vals[i] = rv
	}
	if len(vals) == 0 {
		return rvalue{}, typeErr(pos, op, "at least one argument", 0)
	}

	k := t.ComponentKind()
	if t.IsScalar() {
		if len(vals) != 1 {
			return rvalue{}, typeErr(pos, op, "1 argument", len(vals))
		}
		return rvalue{T: t, Vals: []ir.Value{g.convertWord(vals[0].Vals[0], vals[0].T.ComponentKind(), k)}}, nil
	}

	n := t.ComponentCount()
	if len(vals) == 1 && vals[0].T.IsScalar() {
		w := g.convertWord(vals[0].Vals[0], vals[0].T.Scalar, k)
		out := make([]ir.Value, n)
		if t.IsVector() {
			for i := range out {
				out[i] = w
			}
			return rvalue{T: t, Vals: out}, nil
		}
		zero := g.b.FConst(0)
		for c := 0; c < t.Cols; c++ {
			for r := 0; r < t.Rows; r++ {
				if c == r {
					out[c*t.Rows+r] = w
				} else {
					out[c*t.Rows+r] = zero
				}
			}
		}
		return rvalue{T: t, Vals: out}, nil
	}

	out := make([]ir.Value, 0, n)
	for _, rv := range vals {
		from := rv.T.ComponentKind()
		for _, v := range rv.Vals {
			out = append(out, g.convertWord(v, from, k))
		}
	}
	if len(out) != n {
		return rvalue{}, typeErr(pos, op, fmt.Sprintf("%d components", n), len(out))
	}
	return rvalue{T: t, Vals: out}, nil
}

// constructArray handles T[N](e0, e1, ...): one argument per element.
func (g *funcGen) constructArray(t Type, args []Expr, pos ir.Pos) (rvalue, error) {
	op := t.String() + " constructor"
	if len(args) != t.Size {
		return rvalue{}, typeErr(pos, op, fmt.Sprintf("%d elements", t.Size), len(args))
	}
	out := make([]ir.Value, 0, t.ComponentCount())
	for _, a := range args {
		rv, err := g.genExpr(a)
		if err != nil {
			return rvalue{}, err
		}
		rv, err = g.coerce(rv, *t.Elem, op, exprPos(a))
		if err != nil {
			return rvalue{}, err
		}
		out = append(out, rv.Vals...)
	}
	return rvalue{T: t, Vals: out}, nil
}

// genInitValue evaluates the initializer of a slot-backed declaration.
// A brace list for a vector or matrix acts like a constructor.
func (g *funcGen) genInitValue(t Type, init Expr) (rvalue, error) {
	if list, ok := init.(*InitializerList); ok {
		if t.IsScalar() && len(list.Elements) != 1 {
			return rvalue{}, typeErr(list.Pos, "initializer for "+t.String(), "1 element", len(list.Elements))
		}
		if t.IsScalar() {
			init = list.Elements[0]
		} else {
			return g.construct(t, list.Elements, list.Pos)
		}
	}
	rv, err := g.genExpr(init)
	if err != nil {
		return rvalue{}, err
	}
	return g.coerce(rv, t, "initializer for "+t.String(), exprPos(init))
}

// initBlock stores the initial value of an array held at ptr+base. A brace
// list may be shorter than the array; the remaining elements are zeroed.
func (g *funcGen) initBlock(ptr ir.Value, base int, t Type, init Expr) error {
	if init == nil {
		g.zeroFill(ptr, base, base+t.ElementByteSize())
		return nil
	}

	list, ok := init.(*InitializerList)
	if !ok {
		rv, err := g.genExpr(init)
		if err != nil {
			return err
		}
		rv, err = g.coerce(rv, t, "initializer for "+t.String(), exprPos(init))
		if err != nil {
			return err
		}
		g.storeWords(ptr, base, rv.Vals)
		return nil
	}

	if !t.IsArray() {
		rv, err := g.genInitValue(t, list)
		if err != nil {
			return err
		}
		g.storeWords(ptr, base, rv.Vals)
		return nil
	}

	if len(list.Elements) > t.Size {
		return typeErr(list.Pos, "initializer for "+t.String(),
			fmt.Sprintf("at most %d elements", t.Size), len(list.Elements))
	}
	stride := t.Stride()
	for i, el := range list.Elements {
		if err := g.initBlock(ptr, base+i*stride, *t.Elem, el); err != nil {
			return err
		}
	}
	g.zeroFill(ptr, base+len(list.Elements)*stride, base+t.Size*stride)
	return nil
}

func (g *funcGen) storeWords(ptr ir.Value, base int, vals []ir.Value) {
	for i, v := range vals {
		g.b.Store(ptr, g.b.IConst(int64(base+i*WordSize)), v)
	}
}

// unrollLimit is the largest zero-fill emitted as straight-line stores;
// longer runs use a loop.
const unrollLimit = 16

// zeroFill clears bytes [from, to) of the block at ptr.
func (g *funcGen) zeroFill(ptr ir.Value, from, to int) {
	words := (to - from) / WordSize
	if words <= 0 {
		return
	}
	zero := g.b.IConst(0)
	if words <= unrollLimit {
		for off := from; off < to; off += WordSize {
			g.b.Store(ptr, g.b.IConst(int64(off)), zero)
		}
		return
	}

	// off = from; do { store; off += 4 } while off < to
	cur := g.b.Slot()
	g.b.WriteSlot(cur, g.b.IConst(int64(from)))
	top := g.b.NewLabel()
	g.b.Label(top)
	off := g.b.ReadSlot(cur)
	g.b.Store(ptr, off, zero)
	next := g.b.Binary(ir.OpAdd, off, g.b.IConst(WordSize))
	g.b.WriteSlot(cur, next)
	done := g.b.ICmp(ir.PredSGE, next, g.b.IConst(int64(to)))
	g.b.Jz(done, top)
}

// spill copies rv to anonymous storage so it can be narrowed like a
// variable.
func (g *funcGen) spill(rv rvalue) *Variable {
	sym := &Symbol{Type: rv.T}
	if rv.T.IsArray() {
		sym.Storage = StorageBlock
		sym.Ptr = g.b.Alloca(rv.T.ElementByteSize())
		g.storeWords(sym.Ptr, 0, rv.Vals)
		return &Variable{Sym: sym}
	}
	sym.Storage = StorageSlots
	sym.Slots = make([]ir.Slot, len(rv.Vals))
	for i, v := range rv.Vals {
		sym.Slots[i] = g.b.Slot()
		g.b.WriteSlot(sym.Slots[i], v)
	}
	return &Variable{Sym: sym}
}
