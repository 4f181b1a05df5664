package compiler

import (
	"fmt"

	"fixshade/pkg/ir"
)

// promote brings the component kinds of two numeric operands together:
// int and uint widen to float, int becomes uint.
func (g *funcGen) promote(l, r rvalue) (rvalue, rvalue) {
	lk, rk := l.T.ComponentKind(), r.T.ComponentKind()
	if lk == rk {
		return l, r
	}
	switch {
	case lk == Float:
		r = g.convertKind(r, Float)
	case rk == Float:
		l = g.convertKind(l, Float)
	case lk == UInt:
		r = g.convertKind(r, UInt)
	case rk == UInt:
		l = g.convertKind(l, UInt)
	}
	return l, r
}

// broadcast lines up two operands for an elementwise operator. Equal
// shapes pair word by word; a scalar operand repeats against the other.
func broadcast(op string, l, r rvalue, pos ir.Pos) (Type, []ir.Value, []ir.Value, error) {
	switch {
	case l.T.SameShape(r.T):
		return l.T, l.Vals, r.Vals, nil
	case l.T.IsScalar():
		return r.T, repeat(l.Vals[0], len(r.Vals)), r.Vals, nil
	case r.T.IsScalar():
		return l.T, l.Vals, repeat(r.Vals[0], len(l.Vals)), nil
	}
	return Type{}, nil, nil, typeErr(pos, "operator "+op, "operands of the same shape or a scalar", l.T.String()+" and "+r.T.String())
}

func repeat(v ir.Value, n int) []ir.Value {
	out := make([]ir.Value, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func (g *funcGen) elementwise(ws1, ws2 []ir.Value, f func(a, b ir.Value) ir.Value) []ir.Value {
	out := make([]ir.Value, len(ws1))
	for i := range ws1 {
		out[i] = f(ws1[i], ws2[i])
	}
	return out
}

// arithOp picks the instruction for an arithmetic operator on kind k.
func arithOp(op TokenType, k ScalarKind) ir.Op {
	switch op {
	case PLUS:
		return ir.OpAdd
	case MINUS:
		return ir.OpSub
	case STAR:
		if k == Float {
			return ir.OpFMul
		}
		return ir.OpMul
	case SLASH:
		switch k {
		case Float:
			return ir.OpFDiv
		case UInt:
			return ir.OpUDiv
		}
		return ir.OpDiv
	case PERCENT:
		switch k {
		case Float:
			return ir.OpFRem
		case UInt:
			return ir.OpURem
		}
		return ir.OpRem
	case AND:
		return ir.OpAnd
	case PIPE:
		return ir.OpOr
	case CARET:
		return ir.OpXor
	case SHL_OP:
		return ir.OpShl
	case SHR_OP:
		if k == UInt {
			return ir.OpUShr
		}
		return ir.OpShr
	}
	return ir.OpNop
}

// relPred picks the compare predicate for a relational operator.
func relPred(op TokenType, k ScalarKind) ir.Pred {
	unsigned := k == UInt
	switch op {
	case LESS:
		if unsigned {
			return ir.PredULT
		}
		return ir.PredSLT
	case LESS_EQ:
		if unsigned {
			return ir.PredULE
		}
		return ir.PredSLE
	case GREATER:
		if unsigned {
			return ir.PredUGT
		}
		return ir.PredSGT
	case GREATER_EQ:
		if unsigned {
			return ir.PredUGE
		}
		return ir.PredSGE
	case NOT_EQ:
		return ir.PredNE
	}
	return ir.PredEQ
}

// genBinaryOp applies a binary operator to two evaluated operands.
func (g *funcGen) genBinaryOp(op TokenType, l, r rvalue, pos ir.Pos) (rvalue, error) {
	sym := op.symbol()
	switch op {
	case EQUALS, NOT_EQ:
		return g.genEquality(op, l, r, pos)

	case PLUS, MINUS, STAR, SLASH, PERCENT:
		if !l.T.IsNumeric() || !r.T.IsNumeric() {
			return rvalue{}, typeErr(pos, "operator "+sym, "numeric operands", l.T.String()+" and "+r.T.String())
		}
		l, r = g.promote(l, r)
		if op == STAR && l.T.IsMatrix() && (r.T.IsMatrix() || r.T.IsVector()) {
			return g.genMatMul(l, r, pos)
		}
		t, a, b, err := broadcast(sym, l, r, pos)
		if err != nil {
			return rvalue{}, err
		}
		code := arithOp(op, t.ComponentKind())
		return rvalue{T: t, Vals: g.elementwise(a, b, func(x, y ir.Value) ir.Value {
			return g.b.Binary(code, x, y)
		})}, nil

	case AND, PIPE, CARET:
		if !l.T.IsInteger() || !r.T.IsInteger() {
			return rvalue{}, typeErr(pos, "operator "+sym, "int or uint operands", l.T.String()+" and "+r.T.String())
		}
		l, r = g.promote(l, r)
		t, a, b, err := broadcast(sym, l, r, pos)
		if err != nil {
			return rvalue{}, err
		}
		code := arithOp(op, t.Scalar)
		return rvalue{T: t, Vals: g.elementwise(a, b, func(x, y ir.Value) ir.Value {
			return g.b.Binary(code, x, y)
		})}, nil

	case SHL_OP, SHR_OP:
		if !l.T.IsInteger() || !r.T.IsInteger() {
			return rvalue{}, typeErr(pos, "operator "+sym, "int or uint operands", l.T.String()+" and "+r.T.String())
		}
		// The result has the left operand's type; the shift count may be
		// of either integer kind.
		if !r.T.IsScalar() && !r.T.SameShape(l.T) {
			return rvalue{}, typeErr(pos, "operator "+sym, "scalar or same-shape shift count", r.T)
		}
		counts := r.Vals
		if r.T.IsScalar() {
			counts = repeat(r.Vals[0], len(l.Vals))
		}
		code := arithOp(op, l.T.Scalar)
		return rvalue{T: l.T, Vals: g.elementwise(l.Vals, counts, func(x, y ir.Value) ir.Value {
			return g.b.Binary(code, x, y)
		})}, nil

	case LESS, GREATER, LESS_EQ, GREATER_EQ:
		if !(l.T.IsScalar() || l.T.IsVector()) || !(r.T.IsScalar() || r.T.IsVector()) ||
			!l.T.IsNumeric() || !r.T.IsNumeric() {
			return rvalue{}, typeErr(pos, "operator "+sym, "numeric scalar or vector operands", l.T.String()+" and "+r.T.String())
		}
		l, r = g.promote(l, r)
		t, a, b, err := broadcast(sym, l, r, pos)
		if err != nil {
			return rvalue{}, err
		}
		pred := relPred(op, t.Scalar)
		return rvalue{T: t.WithKind(Bool), Vals: g.elementwise(a, b, func(x, y ir.Value) ir.Value {
			return g.b.ICmp(pred, x, y)
		})}, nil
	}
	return rvalue{}, typeErr(pos, "operator "+sym, "binary operator", "unsupported")
}

// genEquality compares two values of any type and reduces to one bool:
// == holds when every component matches, != when any differs.
func (g *funcGen) genEquality(op TokenType, l, r rvalue, pos ir.Pos) (rvalue, error) {
	sym := op.symbol()
	if l.T.IsVoid() || r.T.IsVoid() {
		return rvalue{}, typeErr(pos, "operator "+sym, "value operands", l.T.String()+" and "+r.T.String())
	}
	if l.T.IsNumeric() && r.T.IsNumeric() {
		l, r = g.promote(l, r)
	}
	if l.T.IsArray() || r.T.IsArray() {
		if !l.T.Equal(r.T) {
			return rvalue{}, typeErr(pos, "operator "+sym, "arrays of the same type", l.T.String()+" and "+r.T.String())
		}
	} else if l.T.ComponentKind() != r.T.ComponentKind() {
		return rvalue{}, typeErr(pos, "operator "+sym, "operands of the same kind", l.T.String()+" and "+r.T.String())
	}
	_, a, b, err := broadcast(sym, l, r, pos)
	if err != nil {
		return rvalue{}, err
	}

	pred, reduce := ir.PredEQ, ir.OpBAnd
	if op == NOT_EQ {
		pred, reduce = ir.PredNE, ir.OpBOr
	}
	acc := g.b.ICmp(pred, a[0], b[0])
	for i := 1; i < len(a); i++ {
		acc = g.b.Binary(reduce, acc, g.b.ICmp(pred, a[i], b[i]))
	}
	return rvalue{T: BoolType, Vals: []ir.Value{acc}}, nil
}

// genMatMul is the linear algebra product of Matrix*Matrix and
// Matrix*Vector. Column-major: element (c, r) of a is a.Vals[c*rows+r].
func (g *funcGen) genMatMul(l, r rvalue, pos ir.Pos) (rvalue, error) {
	a := l.T
	inner := r.T.N
	outCols := 1
	if r.T.IsMatrix() {
		inner = r.T.Rows
		outCols = r.T.Cols
	}
	if a.Cols != inner {
		return rvalue{}, typeErr(pos, "operator *", fmt.Sprintf("right operand with %d rows for %s", a.Cols, a), r.T)
	}

	out := make([]ir.Value, 0, outCols*a.Rows)
	for c := 0; c < outCols; c++ {
		for row := 0; row < a.Rows; row++ {
			var acc ir.Value
			for k := 0; k < a.Cols; k++ {
				p := g.b.Binary(ir.OpFMul, l.Vals[k*a.Rows+row], r.Vals[c*inner+k])
				if acc == 0 {
					acc = p
				} else {
					acc = g.b.Binary(ir.OpAdd, acc, p)
				}
			}
			out = append(out, acc)
		}
	}
	if r.T.IsVector() {
		return rvalue{T: VectorType(Float, a.Rows), Vals: out}, nil
	}
	return rvalue{T: MatrixType(outCols, a.Rows), Vals: out}, nil
}

// genUnary evaluates -x, +x, !x and ~x.
func (g *funcGen) genUnary(e *UnaryExpr) (rvalue, error) {
	if e.Op == PLUS_PLUS || e.Op == MINUS_MINUS {
		return g.genIncDec(e.Right, e.Op == PLUS_PLUS, true, e.Pos)
	}
	rv, err := g.genExpr(e.Right)
	if err != nil {
		return rvalue{}, err
	}
	sym := e.Op.symbol()
	switch e.Op {
	case PLUS:
		if !rv.T.IsNumeric() {
			return rvalue{}, typeErr(e.Pos, "unary "+sym, "numeric operand", rv.T)
		}
		return rv, nil
	case MINUS:
		if !rv.T.IsNumeric() {
			return rvalue{}, typeErr(e.Pos, "unary "+sym, "numeric operand", rv.T)
		}
		return g.mapWords(rv, ir.OpNeg), nil
	case NOT:
		if !rv.T.IsBool() {
			return rvalue{}, typeErr(e.Pos, "unary "+sym, "bool operand", rv.T)
		}
		return g.mapWords(rv, ir.OpBNot), nil
	case TILDE:
		if !rv.T.IsInteger() {
			return rvalue{}, typeErr(e.Pos, "unary "+sym, "int or uint operand", rv.T)
		}
		return g.mapWords(rv, ir.OpNot), nil
	}
	return rvalue{}, typeErr(e.Pos, "unary "+sym, "unary operator", "unsupported")
}

func (g *funcGen) mapWords(rv rvalue, op ir.Op) rvalue {
	out := make([]ir.Value, len(rv.Vals))
	for i, v := range rv.Vals {
		out[i] = g.b.Unary(op, v)
	}
	return rvalue{T: rv.T, Vals: out}
}

// genIncDec implements ++ and -- through the target's LValue. The prefix
// form evaluates to the updated value, the postfix form to the original.
func (g *funcGen) genIncDec(target Expr, inc, prefix bool, pos ir.Pos) (rvalue, error) {
	op := "--"
	if inc {
		op = "++"
	}
	lv, err := g.resolveLValue(target, true)
	if err != nil {
		return rvalue{}, err
	}
	t := lv.Type()
	if !t.IsNumeric() {
		return rvalue{}, typeErr(pos, "operator "+op, "numeric target", t)
	}
	var one ir.Value
	if t.ComponentKind() == Float {
		one = g.b.FConst(1)
	} else {
		one = g.b.IConst(1)
	}
	code := ir.OpSub
	if inc {
		code = ir.OpAdd
	}
	old := lv.Read(g)
	updated := make([]ir.Value, len(old))
	for i, v := range old {
		updated[i] = g.b.Binary(code, v, one)
	}
	lv.Write(g, updated)
	if prefix {
		return rvalue{T: t, Vals: updated}, nil
	}
	return rvalue{T: t, Vals: old}, nil
}

var compoundOps = map[TokenType]TokenType{
	PLUS_ASSIGN:    PLUS,
	MINUS_ASSIGN:   MINUS,
	STAR_ASSIGN:    STAR,
	SLASH_ASSIGN:   SLASH,
	PERCENT_ASSIGN: PERCENT,
}

// genAssign handles = and the compound assignments. The expression's value
// is what was written.
func (g *funcGen) genAssign(e *AssignExpr) (rvalue, error) {
	lv, err := g.resolveLValue(e.Left, true)
	if err != nil {
		return rvalue{}, err
	}
	t := lv.Type()
	op := "assignment to " + e.Left.String()

	var rv rvalue
	if e.Op == ASSIGN {
		rv, err = g.genExpr(e.Value)
		if err != nil {
			return rvalue{}, err
		}
	} else {
		bop, ok := compoundOps[e.Op]
		if !ok {
			return rvalue{}, typeErr(e.Pos, op, "assignment operator", e.Op.symbol())
		}
		cur := rvalue{T: t, Vals: lv.Read(g)}
		rhs, err := g.genExpr(e.Value)
		if err != nil {
			return rvalue{}, err
		}
		rv, err = g.genBinaryOp(bop, cur, rhs, e.Pos)
		if err != nil {
			return rvalue{}, err
		}
	}
	rv, err = g.coerce(rv, t, op, e.Pos)
	if err != nil {
		return rvalue{}, err
	}
	lv.Write(g, rv.Vals)
	return rv, nil
}

// genLogical evaluates &&, || and ^^. A scalar && or || skips its right
// operand once the left one decides the result; vectors combine
// elementwise.
func (g *funcGen) genLogical(e *LogicalExpr) (rvalue, error) {
	sym := e.Op.symbol()
	l, err := g.genExpr(e.Left)
	if err != nil {
		return rvalue{}, err
	}
	if !l.T.IsBool() {
		return rvalue{}, typeErr(exprPos(e.Left), "operator "+sym, "bool operand", l.T)
	}

	if l.T.IsScalar() && e.Op != XOR_LOGICAL {
		tmp := g.b.Slot()
		g.b.WriteSlot(tmp, l.Vals[0])
		done := g.b.NewLabel()
		test := l.Vals[0]
		if e.Op == OR_LOGICAL {
			test = g.b.Unary(ir.OpBNot, test)
		}
		g.b.Jz(test, done)
		r, err := g.genExpr(e.Right)
		if err != nil {
			return rvalue{}, err
		}
		if !r.T.Equal(BoolType) {
			return rvalue{}, typeErr(exprPos(e.Right), "operator "+sym, "bool operand", r.T)
		}
		g.b.WriteSlot(tmp, r.Vals[0])
		g.b.Label(done)
		return rvalue{T: BoolType, Vals: []ir.Value{g.b.ReadSlot(tmp)}}, nil
	}

	r, err := g.genExpr(e.Right)
	if err != nil {
		return rvalue{}, err
	}
	if !r.T.IsBool() {
		return rvalue{}, typeErr(exprPos(e.Right), "operator "+sym, "bool operand", r.T)
	}
	t, a, b, err := broadcast(sym, l, r, e.Pos)
	if err != nil {
		return rvalue{}, err
	}
	code := ir.OpBAnd
	switch e.Op {
	case OR_LOGICAL:
		code = ir.OpBOr
	case XOR_LOGICAL:
		code = ir.OpBXor
	}
	return rvalue{T: t, Vals: g.elementwise(a, b, func(x, y ir.Value) ir.Value {
		return g.b.Binary(code, x, y)
	})}, nil
}

// genTernary evaluates only the chosen arm. Both arms write the result to
// temporary slots; the else arm is converted to the then arm's type.
func (g *funcGen) genTernary(e *TernaryExpr) (rvalue, error) {
	c, err := g.genExpr(e.Cond)
	if err != nil {
		return rvalue{}, err
	}
	if !c.T.Equal(BoolType) {
		return rvalue{}, typeErr(exprPos(e.Cond), "?: condition", "bool", c.T)
	}
	elseL, end := g.b.NewLabel(), g.b.NewLabel()
	g.b.Jz(c.Vals[0], elseL)

	a, err := g.genExpr(e.Then)
	if err != nil {
		return rvalue{}, err
	}
	if a.T.IsVoid() {
		return rvalue{}, typeErr(exprPos(e.Then), "?: branch", "value", a.T)
	}
	tmp := make([]ir.Slot, len(a.Vals))
	for i, v := range a.Vals {
		tmp[i] = g.b.Slot()
		g.b.WriteSlot(tmp[i], v)
	}
	g.b.Jmp(end)

	g.b.Label(elseL)
	b, err := g.genExpr(e.Else)
	if err != nil {
		return rvalue{}, err
	}
	b, err = g.coerce(b, a.T, "?: branches", e.Pos)
	if err != nil {
		return rvalue{}, err
	}
	for i, v := range b.Vals {
		g.b.WriteSlot(tmp[i], v)
	}
	g.b.Label(end)

	out := make([]ir.Value, len(tmp))
	for i, s := range tmp {
		out[i] = g.b.ReadSlot(s)
	}
	return rvalue{T: a.T, Vals: out}, nil
}
