package compiler

import (
	"fmt"
	"strings"

	"fixshade/pkg/ir"
)

// LValue is a resolved storage location. Read yields one word per
// primitive component of Type; Write takes the same number of words.
// Whatever could fail (type checks, constant ranges) failed during
// resolution, so Read and Write only emit code.
type LValue interface {
	Type() Type
	Read(g *funcGen) []ir.Value
	Write(g *funcGen, vals []ir.Value)
}

// Variable is a named symbol as a whole.
type Variable struct {
	Sym *Symbol
}

func (v *Variable) Type() Type { return v.Sym.Type }

// word reads flat word i of the symbol.
func (v *Variable) word(g *funcGen, i int) ir.Value {
	switch v.Sym.Storage {
	case StorageSlots:
		return g.b.ReadSlot(v.Sym.Slots[i])
	case StorageBlock:
		return g.b.Load(v.Sym.Ptr, g.b.IConst(int64(i*WordSize)))
	}
	return v.Sym.Value.emit(g.b)
}

func (v *Variable) setWord(g *funcGen, i int, val ir.Value) {
	switch v.Sym.Storage {
	case StorageSlots:
		g.b.WriteSlot(v.Sym.Slots[i], val)
	case StorageBlock:
		g.b.Store(v.Sym.Ptr, g.b.IConst(int64(i*WordSize)), val)
	default:
		panic("compiler: write to constant " + v.Sym.Name)
	}
}

func (v *Variable) Read(g *funcGen) []ir.Value {
	n := v.Sym.Type.ComponentCount()
	out := make([]ir.Value, n)
	for i := range out {
		out[i] = v.word(g, i)
	}
	return out
}

func (v *Variable) Write(g *funcGen, vals []ir.Value) {
	for i, val := range vals {
		v.setWord(g, i, val)
	}
}

// Component is a selection of words out of a slot-backed vector or matrix.
//
// Cand[e] lists the base words element e may refer to. With a single
// candidate the selection is static. Otherwise Sel is a runtime selector
// (already bounds checked) and element e is Cand[e][Sel].
type Component struct {
	Base *Variable
	T    Type
	Cand [][]int
	Sel  ir.Value
}

func (c *Component) Type() Type { return c.T }

func (c *Component) Read(g *funcGen) []ir.Value {
	out := make([]ir.Value, len(c.Cand))
	for e, cand := range c.Cand {
		r := c.Base.word(g, cand[0])
		for s := 1; s < len(cand); s++ {
			hit := g.b.ICmp(ir.PredEQ, c.Sel, g.b.IConst(int64(s)))
			r = g.b.Select(hit, c.Base.word(g, cand[s]), r)
		}
		out[e] = r
	}
	return out
}

// Write stores vals[e] into the selected word. With a runtime selector
// every candidate is rewritten with either the new or its old value.
func (c *Component) Write(g *funcGen, vals []ir.Value) {
	for e, cand := range c.Cand {
		if len(cand) == 1 {
			c.Base.setWord(g, cand[0], vals[e])
			continue
		}
		for s, w := range cand {
			hit := g.b.ICmp(ir.PredEQ, c.Sel, g.b.IConst(int64(s)))
			c.Base.setWord(g, w, g.b.Select(hit, vals[e], c.Base.word(g, w)))
		}
	}
}

// MatrixColumn is one column of a slot-backed matrix, chosen by a constant
// Col or by a checked runtime selector Sel.
type MatrixColumn struct {
	Base *Variable
	Col  int
	Sel  ir.Value
}

func (m *MatrixColumn) Type() Type { return m.Base.Type().ColumnType() }

// component expresses the column as a Component so swizzles and row
// indices narrow it the same way as a vector.
func (m *MatrixColumn) component() *Component {
	t := m.Base.Type()
	cand := make([][]int, t.Rows)
	for r := range cand {
		if m.Sel == 0 {
			cand[r] = []int{m.Col*t.Rows + r}
			continue
		}
		cand[r] = make([]int, t.Cols)
		for c := range cand[r] {
			cand[r][c] = c*t.Rows + r
		}
	}
	return &Component{Base: m.Base, T: m.Type(), Cand: cand, Sel: m.Sel}
}

func (m *MatrixColumn) Read(g *funcGen) []ir.Value { return m.component().Read(g) }

func (m *MatrixColumn) Write(g *funcGen, vals []ir.Value) { m.component().Write(g, vals) }

// ArrayElement is a region inside an array block: Ptr + Off + DynOff,
// holding a value of type T. DynOff is a runtime byte offset (0 for
// none) built from already checked indices. Comps, when set, picks words
// of the element for a swizzle, relative to the element start. With Sel
// set the element is the single scalar word Comps[Sel].
type ArrayElement struct {
	Ptr    ir.Value
	T      Type
	Off    int
	DynOff ir.Value
	Comps  []int
	Sel    ir.Value
}

func (a *ArrayElement) Type() Type { return a.T }

func (a *ArrayElement) words() []int {
	if a.Comps != nil {
		return a.Comps
	}
	ws := make([]int, a.T.ComponentCount())
	for i := range ws {
		ws[i] = i
	}
	return ws
}

func (a *ArrayElement) offset(g *funcGen, word int) ir.Value {
	off := int64(a.Off + word*WordSize)
	if a.DynOff == 0 {
		return g.b.IConst(off)
	}
	if off == 0 {
		return a.DynOff
	}
	return g.b.Binary(ir.OpAdd, a.DynOff, g.b.IConst(off))
}

func (a *ArrayElement) Read(g *funcGen) []ir.Value {
	if a.Sel != 0 {
		r := g.b.Load(a.Ptr, a.offset(g, a.Comps[0]))
		for s := 1; s < len(a.Comps); s++ {
			hit := g.b.ICmp(ir.PredEQ, a.Sel, g.b.IConst(int64(s)))
			r = g.b.Select(hit, g.b.Load(a.Ptr, a.offset(g, a.Comps[s])), r)
		}
		return []ir.Value{r}
	}
	ws := a.words()
	out := make([]ir.Value, len(ws))
	for i, w := range ws {
		out[i] = g.b.Load(a.Ptr, a.offset(g, w))
	}
	return out
}

// Write with a runtime selector rewrites every candidate word, each with
// either the new value or its old one.
func (a *ArrayElement) Write(g *funcGen, vals []ir.Value) {
	if a.Sel != 0 {
		for s, w := range a.Comps {
			off := a.offset(g, w)
			hit := g.b.ICmp(ir.PredEQ, a.Sel, g.b.IConst(int64(s)))
			g.b.Store(a.Ptr, off, g.b.Select(hit, vals[0], g.b.Load(a.Ptr, off)))
		}
		return
	}
	for i, w := range a.words() {
		g.b.Store(a.Ptr, a.offset(g, w), vals[i])
	}
}

// resolveLValue narrows a reference expression into an LValue, one rule
// per subscript or swizzle from the innermost name outward. With write set
// the result must be assignable. For reads, a base that is not a variable
// is evaluated and spilled to temporary storage first.
func (g *funcGen) resolveLValue(e Expr, write bool) (LValue, error) {
	switch n := e.(type) {
	case *VarRef:
		sym, ok := g.syms.Lookup(n.Name)
		if !ok {
			return nil, typeErr(n.Pos, "reference to '"+n.Name+"'", "declared variable", "undeclared name")
		}
		if write && (sym.ReadOnly || sym.Storage == StorageConst) {
			return nil, typeErr(n.Pos, "assignment", "writable variable", "const '"+n.Name+"'")
		}
		return &Variable{Sym: sym}, nil

	case *MemberExpr:
		base, err := g.resolveLValue(n.Left, write)
		if err != nil {
			return nil, err
		}
		return narrowSwizzle(base, n.Member, write, n.Pos)

	case *IndexExpr:
		base, err := g.resolveLValue(n.Left, write)
		if err != nil {
			return nil, err
		}
		return g.narrowIndex(base, n.Index, n.Pos)
	}

	if write {
		return nil, typeErr(exprPos(e), "assignment", "assignable expression", e)
	}
	rv, err := g.genExpr(e)
	if err != nil {
		return nil, err
	}
	return g.spill(rv), nil
}

var swizzleSets = [...]string{"xyzw", "rgba", "stpq"}

// parseSwizzle maps a selector such as "zyx" to component indices of a
// vector of arity n.
func parseSwizzle(name string, n int, write bool, pos ir.Pos) ([]int, error) {
	op := "swizzle ." + name
	if len(name) == 0 || len(name) > 4 {
		return nil, typeErr(pos, op, "1 to 4 components", len(name))
	}
	set := ""
	for _, s := range swizzleSets {
		if strings.IndexByte(s, name[0]) >= 0 {
			set = s
			break
		}
	}
	if set == "" {
		return nil, typeErr(pos, op, "components from xyzw, rgba or stpq", fmt.Sprintf("%q", name[0]))
	}
	idx := make([]int, len(name))
	seen := 0
	for i := 0; i < len(name); i++ {
		k := strings.IndexByte(set, name[i])
		if k < 0 {
			return nil, typeErr(pos, op, "components from one set ("+set+")", fmt.Sprintf("%q", name[i]))
		}
		if k >= n {
			return nil, typeErr(pos, op, fmt.Sprintf("component of a %d-component vector", n), fmt.Sprintf("%q", name[i]))
		}
		if write && seen&(1<<k) != 0 {
			return nil, typeErr(pos, op, "distinct components in assignment target", "repeated "+fmt.Sprintf("%q", name[i]))
		}
		seen |= 1 << k
		idx[i] = k
	}
	return idx, nil
}

func narrowSwizzle(base LValue, name string, write bool, pos ir.Pos) (LValue, error) {
	t := base.Type()
	if !t.IsVector() {
		return nil, typeErr(pos, "swizzle ."+name, "vector", t)
	}
	idx, err := parseSwizzle(name, t.N, write, pos)
	if err != nil {
		return nil, err
	}
	rt := shapeOf(t.Scalar, len(idx))

	switch lv := base.(type) {
	case *Variable:
		cand := make([][]int, len(idx))
		for e, k := range idx {
			cand[e] = []int{k}
		}
		return &Component{Base: lv, T: rt, Cand: cand}, nil
	case *Component:
		return lv.pick(idx, rt), nil
	case *MatrixColumn:
		return lv.component().pick(idx, rt), nil
	case *ArrayElement:
		ws := lv.words()
		comps := make([]int, len(idx))
		for e, k := range idx {
			comps[e] = ws[k]
		}
		return &ArrayElement{Ptr: lv.Ptr, T: rt, Off: lv.Off, DynOff: lv.DynOff, Comps: comps}, nil
	}
	return nil, typeErr(pos, "swizzle ."+name, "vector", t)
}

// pick composes a further static selection onto c.
func (c *Component) pick(idx []int, t Type) *Component {
	cand := make([][]int, len(idx))
	for e, k := range idx {
		cand[e] = c.Cand[k]
	}
	return &Component{Base: c.Base, T: t, Cand: cand, Sel: c.Sel}
}

// index is a subscript after evaluation: either a constant already range
// checked, or a runtime value with its bounds check emitted.
type index struct {
	static int
	dyn    ir.Value
}

// evalIndex evaluates a subscript against a dimension of length limit.
func (g *funcGen) evalIndex(e Expr, limit int, what Type, pos ir.Pos) (index, error) {
	if c, ok := g.fold().fold(e); ok {
		if c.Kind != Int && c.Kind != UInt {
			return index{}, typeErr(exprPos(e), "index", "int or uint", c.Kind)
		}
		v := c.Int
		if v < 0 || v >= int64(limit) {
			return index{}, typeErr(exprPos(e), "index into "+what.String(),
				fmt.Sprintf("constant index in [0, %d)", limit), v)
		}
		return index{static: int(v)}, nil
	}

	rv, err := g.genExpr(e)
	if err != nil {
		return index{}, err
	}
	if !rv.T.IsScalar() || (rv.T.Scalar != Int && rv.T.Scalar != UInt) {
		return index{}, typeErr(exprPos(e), "index", "int or uint", rv.T)
	}
	k := rv.Vals[0]
	save := g.b.Pos()
	g.b.SetPos(pos)
	// An unsigned compare also catches negative ints.
	out := g.b.ICmp(ir.PredUGE, k, g.b.IConst(int64(limit)))
	g.b.Trap(out, ir.FaultIndexOutOfBounds)
	g.b.SetPos(save)
	return index{dyn: k}, nil
}

// scaled returns idx*stride as a runtime byte offset, added to prev.
func (g *funcGen) scaled(prev ir.Value, idx ir.Value, stride int) ir.Value {
	off := idx
	if stride != 1 {
		off = g.b.Binary(ir.OpMul, idx, g.b.IConst(int64(stride)))
	}
	if prev == 0 {
		return off
	}
	return g.b.Binary(ir.OpAdd, prev, off)
}

func (g *funcGen) narrowIndex(base LValue, ie Expr, pos ir.Pos) (LValue, error) {
	t := base.Type()
	var limit int
	switch t.Kind {
	case KindVector:
		limit = t.N
	case KindMatrix:
		limit = t.Cols
	case KindArray:
		limit = t.Size
	default:
		return nil, typeErr(pos, "index", "array, vector or matrix", t)
	}
	idx, err := g.evalIndex(ie, limit, t, pos)
	if err != nil {
		return nil, err
	}

	switch lv := base.(type) {
	case *Variable:
		switch t.Kind {
		case KindVector:
			return (&Component{Base: lv, T: t, Cand: identityCand(t.N)}).index(g, idx, t.N), nil
		case KindMatrix:
			if idx.dyn != 0 {
				return &MatrixColumn{Base: lv, Sel: idx.dyn}, nil
			}
			return &MatrixColumn{Base: lv, Col: idx.static}, nil
		case KindArray:
			el := &ArrayElement{Ptr: lv.Sym.Ptr, T: *t.Elem}
			return el.advance(g, idx, t.Stride()), nil
		}

	case *Component:
		return lv.index(g, idx, t.N), nil

	case *MatrixColumn:
		return lv.component().index(g, idx, t.N), nil

	case *ArrayElement:
		switch t.Kind {
		case KindArray:
			el := &ArrayElement{Ptr: lv.Ptr, T: *t.Elem, Off: lv.Off, DynOff: lv.DynOff}
			return el.advance(g, idx, t.Stride()), nil
		case KindMatrix:
			el := &ArrayElement{Ptr: lv.Ptr, T: t.ColumnType(), Off: lv.Off, DynOff: lv.DynOff}
			return el.advance(g, idx, t.Rows*WordSize), nil
		case KindVector:
			ws := lv.words()
			st := ScalarType(t.Scalar)
			if idx.dyn == 0 {
				return &ArrayElement{Ptr: lv.Ptr, T: st, Off: lv.Off, DynOff: lv.DynOff, Comps: []int{ws[idx.static]}}, nil
			}
			step, ok := evenStep(ws)
			if !ok {
				return &ArrayElement{Ptr: lv.Ptr, T: st, Off: lv.Off, DynOff: lv.DynOff, Comps: ws, Sel: idx.dyn}, nil
			}
			el := &ArrayElement{Ptr: lv.Ptr, T: st, Off: lv.Off + ws[0]*WordSize, DynOff: lv.DynOff}
			if step == 0 {
				return el, nil
			}
			el.DynOff = g.scaled(lv.DynOff, idx.dyn, step*WordSize)
			return el, nil
		}
	}
	return nil, typeErr(pos, "index", "array, vector or matrix", t)
}

func identityCand(n int) [][]int {
	cand := make([][]int, n)
	for i := range cand {
		cand[i] = []int{i}
	}
	return cand
}

// index selects one element of the n-element component c. A runtime
// index on an already runtime-selected component combines both selectors
// into one: sel' = sel*n + idx.
func (c *Component) index(g *funcGen, idx index, n int) *Component {
	st := ScalarType(c.T.Scalar)
	if idx.dyn == 0 {
		return &Component{Base: c.Base, T: st, Cand: [][]int{c.Cand[idx.static]}, Sel: c.Sel}
	}
	if c.Sel == 0 {
		cand := make([]int, n)
		for j := range cand {
			cand[j] = c.Cand[j][0]
		}
		return &Component{Base: c.Base, T: st, Cand: [][]int{cand}, Sel: idx.dyn}
	}
	m := len(c.Cand[0])
	cand := make([]int, m*n)
	for s := 0; s < m; s++ {
		for j := 0; j < n; j++ {
			cand[s*n+j] = c.Cand[j][s]
		}
	}
	sel := g.b.Binary(ir.OpAdd, g.b.Binary(ir.OpMul, c.Sel, g.b.IConst(int64(n))), idx.dyn)
	return &Component{Base: c.Base, T: st, Cand: [][]int{cand}, Sel: sel}
}

// advance moves a by idx elements of stride bytes.
func (a *ArrayElement) advance(g *funcGen, idx index, stride int) *ArrayElement {
	if idx.dyn == 0 {
		a.Off += idx.static * stride
		return a
	}
	a.DynOff = g.scaled(a.DynOff, idx.dyn, stride)
	return a
}

// evenStep reports the common difference of ws, if it has one.
func evenStep(ws []int) (int, bool) {
	if len(ws) < 2 {
		return 0, true
	}
	d := ws[1] - ws[0]
	for i := 2; i < len(ws); i++ {
		if ws[i]-ws[i-1] != d {
			return 0, false
		}
	}
	return d, true
}
