package compiler

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"fixshade/pkg/ir"
)

type loopLabels struct {
	brk  string
	cont string
}

// funcGen is the code generation context of one function body. Nothing in
// it is shared with other functions except the read-only globals and
// signatures behind syms.
type funcGen struct {
	b     *ir.Builder
	syms  *SymbolTable
	sig   *FuncSig
	loops []loopLabels
	errs  ErrorList
}

func (g *funcGen) fold() constFolder { return constFolder{lookup: g.syms.Lookup} }

func (g *funcGen) report(err error) {
	if err != nil {
		g.errs = append(g.errs, err)
	}
}

// at attaches p to the instructions emitted until the returned func runs.
func (g *funcGen) at(p ir.Pos) func() {
	if p.Line == 0 {
		return func() {}
	}
	prev := g.b.Pos()
	g.b.SetPos(p)
	return func() { g.b.SetPos(prev) }
}

// genExpr evaluates e and returns its words.
func (g *funcGen) genExpr(e Expr) (rvalue, error) {
	defer g.at(exprPos(e))()

	switch n := e.(type) {
	case *IntLiteral:
		if n.Unsigned {
			return rvalue{T: UIntType, Vals: []ir.Value{uintConst(n.Value).emit(g.b)}}, nil
		}
		return rvalue{T: IntType, Vals: []ir.Value{intConst(n.Value).emit(g.b)}}, nil

	case *FloatLiteral:
		return rvalue{T: FloatType, Vals: []ir.Value{g.b.FConst(n.Value)}}, nil

	case *BoolLiteral:
		return rvalue{T: BoolType, Vals: []ir.Value{boolConst(n.Value).emit(g.b)}}, nil

	case *VarRef, *MemberExpr, *IndexExpr:
		lv, err := g.resolveLValue(e, false)
		if err != nil {
			return rvalue{}, err
		}
		return rvalue{T: lv.Type(), Vals: lv.Read(g)}, nil

	case *UnaryExpr:
		return g.genUnary(n)

	case *PostfixExpr:
		return g.genIncDec(n.Left, n.Op == PLUS_PLUS, false, n.Pos)

	case *BinaryExpr:
		l, err := g.genExpr(n.Left)
		if err != nil {
			return rvalue{}, err
		}
		r, err := g.genExpr(n.Right)
		if err != nil {
			return rvalue{}, err
		}
		return g.genBinaryOp(n.Op, l, r, n.Pos)

	case *LogicalExpr:
		return g.genLogical(n)

	case *AssignExpr:
		return g.genAssign(n)

	case *TernaryExpr:
		return g.genTernary(n)

	case *FunctionCall:
		return g.genCall(n)

	case *ConstructorExpr:
		t, err := resolveType(n.Type, &InitializerList{Elements: n.Args}, g.fold().intValue)
		if err != nil {
			return rvalue{}, err
		}
		return g.construct(t, n.Args, n.Pos)

	case *InitializerList:
		return rvalue{}, typeErr(n.Pos, "initializer list", "declaration initializer", "use inside an expression")
	}
	return rvalue{}, typeErr(exprPos(e), "expression", "supported expression", fmt.Sprintf("%T", e))
}

func (g *funcGen) genCall(n *FunctionCall) (rvalue, error) {
	op := "call to '" + n.Name + "'"
	sig, ok := g.syms.Func(n.Name)
	if !ok {
		return rvalue{}, typeErr(n.Pos, op, "declared function", "undeclared name")
	}
	if len(n.Args) != len(sig.Params) {
		return rvalue{}, typeErr(n.Pos, op, fmt.Sprintf("%d arguments", len(sig.Params)), len(n.Args))
	}
	var words []ir.Value
	for i, a := range n.Args {
		rv, err := g.genExpr(a)
		if err != nil {
			return rvalue{}, err
		}
		rv, err = g.coerce(rv, sig.Params[i], fmt.Sprintf("argument %d of '%s'", i+1, n.Name), exprPos(a))
		if err != nil {
			return rvalue{}, err
		}
		words = append(words, rv.Vals...)
	}
	res := g.b.Call(n.Name, words, sig.Result.ComponentCount())
	return rvalue{T: sig.Result, Vals: res}, nil
}

// genCond evaluates a statement condition, which must be a bool scalar.
func (g *funcGen) genCond(e Expr, what string) (ir.Value, error) {
	rv, err := g.genExpr(e)
	if err != nil {
		return 0, err
	}
	if !rv.T.Equal(BoolType) {
		return 0, typeErr(exprPos(e), what+" condition", "bool", rv.T)
	}
	return rv.Vals[0], nil
}

func (g *funcGen) zeroWords(n int) []ir.Value {
	if n == 0 {
		return nil
	}
	return repeat(g.b.IConst(0), n)
}

// genVarDecl allocates storage for a local and initializes it. Arrays get
// a block, everything else one slot per component; a const scalar with a
// foldable initializer gets no storage at all. Locals without an
// initializer start out zeroed.
func (g *funcGen) genVarDecl(d *VariableDecl) error {
	defer g.at(d.Pos)()
	t, err := resolveType(d.Type, d.Init, g.fold().intValue)
	if err != nil {
		return err
	}
	op := "declaration of '" + d.Name + "'"
	if t.IsVoid() {
		return typeErr(d.Pos, op, "value type", t)
	}
	sym := &Symbol{Name: d.Name, Type: t, ReadOnly: d.Const, Pos: d.Pos}

	if d.Const && t.IsScalar() {
		if c, ok := g.fold().fold(d.Init); ok {
			if !implicitKind(c.Kind, t.Scalar) {
				return typeErr(exprPos(d.Init), "initializer for "+t.String(), t, c.Kind)
			}
			sym.Storage = StorageConst
			sym.Value = c.convert(t.Scalar)
			return g.syms.Define(sym)
		}
	}

	if t.IsArray() {
		sym.Storage = StorageBlock
		sym.Ptr = g.b.Alloca(t.ElementByteSize())
		if err := g.initBlock(sym.Ptr, 0, t, d.Init); err != nil {
			return err
		}
		return g.syms.Define(sym)
	}

	vals := g.zeroWords(t.ComponentCount())
	if d.Init != nil {
		rv, err := g.genInitValue(t, d.Init)
		if err != nil {
			return err
		}
		vals = rv.Vals
	}
	sym.Storage = StorageSlots
	sym.Slots = make([]ir.Slot, len(vals))
	for i, v := range vals {
		sym.Slots[i] = g.b.Slot()
		g.b.WriteSlot(sym.Slots[i], v)
	}
	return g.syms.Define(sym)
}

// genStmt emits s. Failures are recorded and generation resumes with the
// next statement.
func (g *funcGen) genStmt(s Stmt) {
	switch n := s.(type) {
	case nil:

	case *VariableDecl:
		g.report(g.genVarDecl(n))

	case *DeclGroup:
		for _, d := range n.Decls {
			g.report(g.genVarDecl(d))
		}

	case *ExprStmt:
		_, err := g.genExpr(n.Expr)
		g.report(err)

	case *BlockStmt:
		g.syms.EnterScope()
		for _, st := range n.Stmts {
			g.genStmt(st)
		}
		g.syms.ExitScope()

	case *IfStmt:
		c, err := g.genCond(n.Condition, "if")
		if err != nil {
			g.report(err)
			return
		}
		elseL := g.b.NewLabel()
		g.b.Jz(c, elseL)
		g.genScoped(n.Body)
		if n.ElseBody == nil {
			g.b.Label(elseL)
			return
		}
		end := g.b.NewLabel()
		g.b.Jmp(end)
		g.b.Label(elseL)
		g.genScoped(n.ElseBody)
		g.b.Label(end)

	case *WhileStmt:
		top, end := g.b.NewLabel(), g.b.NewLabel()
		g.b.Label(top)
		c, err := g.genCond(n.Condition, "while")
		if err != nil {
			g.report(err)
			return
		}
		g.b.Jz(c, end)
		g.loops = append(g.loops, loopLabels{brk: end, cont: top})
		g.genScoped(n.Body)
		g.loops = g.loops[:len(g.loops)-1]
		g.b.Jmp(top)
		g.b.Label(end)

	case *ForStmt:
		g.syms.EnterScope()
		defer g.syms.ExitScope()
		g.genStmt(n.Init)
		top, post, end := g.b.NewLabel(), g.b.NewLabel(), g.b.NewLabel()
		g.b.Label(top)
		if n.Cond != nil {
			c, err := g.genCond(n.Cond, "for")
			if err != nil {
				g.report(err)
				return
			}
			g.b.Jz(c, end)
		}
		g.loops = append(g.loops, loopLabels{brk: end, cont: post})
		g.genScoped(n.Body)
		g.loops = g.loops[:len(g.loops)-1]
		g.b.Label(post)
		if n.Post != nil {
			_, err := g.genExpr(n.Post)
			g.report(err)
		}
		g.b.Jmp(top)
		g.b.Label(end)

	case *BreakStmt:
		if len(g.loops) == 0 {
			g.report(typeErr(n.Pos, "break", "enclosing loop", "none"))
			return
		}
		g.b.Jmp(g.loops[len(g.loops)-1].brk)

	case *ContinueStmt:
		if len(g.loops) == 0 {
			g.report(typeErr(n.Pos, "continue", "enclosing loop", "none"))
			return
		}
		g.b.Jmp(g.loops[len(g.loops)-1].cont)

	case *ReturnStmt:
		g.report(g.genReturn(n))

	case *FunctionDecl:
		g.report(typeErr(n.Pos, "function '"+n.Name+"'", "top-level definition", "nested definition"))

	default:
		g.report(fmt.Errorf("unsupported statement %T", s))
	}
}

// genScoped emits the body of an if or loop in its own scope.
func (g *funcGen) genScoped(s Stmt) {
	if _, ok := s.(*BlockStmt); ok {
		g.genStmt(s)
		return
	}
	g.syms.EnterScope()
	g.genStmt(s)
	g.syms.ExitScope()
}

func (g *funcGen) genReturn(n *ReturnStmt) error {
	defer g.at(n.Pos)()
	want := g.sig.Result
	if n.Expr == nil {
		if !want.IsVoid() {
			return typeErr(n.Pos, "return", want, "no value")
		}
		g.b.Ret(nil)
		return nil
	}
	rv, err := g.genExpr(n.Expr)
	if err != nil {
		return err
	}
	if want.IsVoid() {
		return typeErr(n.Pos, "return", "no value in void function", rv.T)
	}
	rv, err = g.coerce(rv, want, "return", exprPos(n.Expr))
	if err != nil {
		return err
	}
	g.b.Ret(rv.Vals)
	return nil
}

// genFunction lowers one function body.
func genFunction(sig *FuncSig, syms *SymbolTable) (*ir.Func, ErrorList) {
	d := sig.Decl
	g := &funcGen{
		b:    ir.NewBuilder(sig.Name, sig.ParamWords(), sig.Result.ComponentCount()),
		syms: syms.ForFunction(),
		sig:  sig,
	}
	g.b.SetPos(d.Pos)

	word := 0
	for i, p := range d.Params {
		t := sig.Params[i]
		sym := &Symbol{Name: p.Name, Type: t, Storage: StorageSlots, Pos: p.Pos}
		sym.Slots = make([]ir.Slot, t.ComponentCount())
		for j := range sym.Slots {
			sym.Slots[j] = g.b.Slot()
			g.b.WriteSlot(sym.Slots[j], g.b.Param(word))
			word++
		}
		g.report(g.syms.Define(sym))
	}

	// The body shares the parameters' scope.
	for _, st := range d.Body.Stmts {
		g.genStmt(st)
	}

	if !g.b.Terminated() {
		// Falling off the end of a non-void function returns zeros.
		g.b.Ret(g.zeroWords(sig.Result.ComponentCount()))
	}
	return g.b.Finish(), g.errs
}

// declareGlobal folds a top-level const declaration into the table.
func declareGlobal(d *VariableDecl, syms *SymbolTable) error {
	fold := constFolder{lookup: syms.Lookup}
	t, err := resolveType(d.Type, d.Init, fold.intValue)
	if err != nil {
		return err
	}
	op := "global '" + d.Name + "'"
	if !t.IsScalar() {
		return typeErr(d.Pos, op, "scalar const", t)
	}
	c, ok := fold.fold(d.Init)
	if !ok {
		return typeErr(exprPos(d.Init), op, "constant expression", d.Init)
	}
	if !implicitKind(c.Kind, t.Scalar) {
		return typeErr(exprPos(d.Init), op, t, c.Kind)
	}
	return syms.Define(&Symbol{
		Name:     d.Name,
		Type:     t,
		Storage:  StorageConst,
		Value:    c.convert(t.Scalar),
		ReadOnly: true,
		Pos:      d.Pos,
	})
}

// declareFunc resolves a function signature.
func declareFunc(f *FunctionDecl, syms *SymbolTable) error {
	fold := constFolder{lookup: syms.Lookup}
	res, err := resolveType(f.ReturnType, nil, fold.intValue)
	if err != nil {
		return err
	}
	if res.IsArray() {
		return typeErr(f.ReturnType.Pos, "return type of '"+f.Name+"'", "non-array type", res)
	}
	sig := &FuncSig{Name: f.Name, Result: res, Decl: f}
	for _, p := range f.Params {
		t, err := resolveType(p.Type, nil, fold.intValue)
		if err != nil {
			return err
		}
		if t.IsVoid() || t.IsArray() {
			return typeErr(p.Pos, "parameter '"+p.Name+"'", "scalar, vector or matrix type", t)
		}
		sig.Params = append(sig.Params, t)
	}
	return syms.DefineFunc(sig)
}

// Generate lowers a parsed program. Globals and signatures are declared in
// one sequential pass; the bodies are then generated concurrently, each
// against its own scope stack. All diagnostics are returned together as
// an ErrorList.
func Generate(stmts []Stmt, syms *SymbolTable) (*ir.Program, error) {
	var errs ErrorList
	var decls []*FunctionDecl
	for _, s := range stmts {
		switch n := s.(type) {
		case *VariableDecl:
			errs = append(errs, declareGlobal(n, syms))
		case *DeclGroup:
			for _, d := range n.Decls {
				errs = append(errs, declareGlobal(d, syms))
			}
		case *FunctionDecl:
			if err := declareFunc(n, syms); err != nil {
				errs = append(errs, err)
				continue
			}
			decls = append(decls, n)
		default:
			errs = append(errs, fmt.Errorf("unexpected top-level statement %s", s))
		}
	}
	errs = compact(errs)
	errs = append(errs, checkRecursion(decls)...)

	funcs := make([]*ir.Func, len(decls))
	funcErrs := make([]ErrorList, len(decls))
	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, d := range decls {
		sig, _ := syms.Func(d.Name)
		eg.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("internal error generating %s: %v", d.Name, r)
				}
			}()
			funcs[i], funcErrs[i] = genFunction(sig, syms)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, fe := range funcErrs {
		errs = append(errs, fe...)
	}
	errs.sortByPos()
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return &ir.Program{Funcs: funcs}, nil
}

func compact(errs ErrorList) ErrorList {
	out := errs[:0]
	for _, e := range errs {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}
