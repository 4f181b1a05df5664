package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"fixshade/pkg/ir"
)

//  Expression nodes

// Expr is implemented by every node that produces a value.
type Expr interface {
	exprNode()
	position() ir.Pos
	String() string
}

func exprPos(e Expr) ir.Pos {
	if e == nil {
		return ir.Pos{}
	}
	return e.position()
}

// IntLiteral is an integer constant.
//
//	int x = 10;
//	        ^^  IntLiteral{Value: 10}
//	uint y = 10u;
//	         ^^^  IntLiteral{Value: 10, Unsigned: true}
type IntLiteral struct {
	Value    int64
	Unsigned bool
	Pos      ir.Pos
}

func (*IntLiteral) exprNode()          {}
func (l *IntLiteral) position() ir.Pos { return l.Pos }
func (l *IntLiteral) String() string {
	if l.Unsigned {
		return fmt.Sprintf("%du", l.Value)
	}
	return fmt.Sprintf("%d", l.Value)
}

// FloatLiteral is a float constant such as 1.5 or .25.
type FloatLiteral struct {
	Value float64
	Pos   ir.Pos
}

func (*FloatLiteral) exprNode()          {}
func (l *FloatLiteral) position() ir.Pos { return l.Pos }
func (l *FloatLiteral) String() string {
	s := strconv.FormatFloat(l.Value, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// BoolLiteral is true or false.
type BoolLiteral struct {
	Value bool
	Pos   ir.Pos
}

func (*BoolLiteral) exprNode()          {}
func (l *BoolLiteral) position() ir.Pos { return l.Pos }
func (l *BoolLiteral) String() string   { return strconv.FormatBool(l.Value) }

// InitializerList represents { expr, expr, ... }
type InitializerList struct {
	Elements []Expr
	Pos      ir.Pos
}

func (*InitializerList) exprNode()          {}
func (l *InitializerList) position() ir.Pos { return l.Pos }
func (l *InitializerList) String() string {
	parts := make([]string, len(l.Elements))
	for i, e := range l.Elements {
		parts[i] = e.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// VarRef is a read of a named variable.
//
//	return x;
//	       ^  VarRef{Name: "x"}
type VarRef struct {
	Name string
	Pos  ir.Pos
}

func (*VarRef) exprNode()          {}
func (v *VarRef) position() ir.Pos { return v.Pos }
func (v *VarRef) String() string   { return v.Name }

// BinaryExpr represents a binary operation: Left Op Right.
//
//	x + 1
//	^ ^ ^
//	| | |
//	| | Right
//	| Op
//	Left
type BinaryExpr struct {
	Op    TokenType
	Left  Expr
	Right Expr
	Pos   ir.Pos
}

func (*BinaryExpr) exprNode()          {}
func (b *BinaryExpr) position() ir.Pos { return b.Pos }
func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op.symbol(), b.Right)
}

// LogicalExpr represents Left && Right, Left || Right or Left ^^ Right.
// It is separate from BinaryExpr so scalar && and || can short-circuit.
type LogicalExpr struct {
	Op    TokenType
	Left  Expr
	Right Expr
	Pos   ir.Pos
}

func (*LogicalExpr) exprNode()          {}
func (l *LogicalExpr) position() ir.Pos { return l.Pos }
func (l *LogicalExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", l.Left, l.Op.symbol(), l.Right)
}

// UnaryExpr represents a prefix operator: -x, !b, ~i, ++x, --x.
type UnaryExpr struct {
	Op    TokenType
	Right Expr
	Pos   ir.Pos
}

func (*UnaryExpr) exprNode()          {}
func (u *UnaryExpr) position() ir.Pos { return u.Pos }
func (u *UnaryExpr) String() string   { return fmt.Sprintf("(%s%s)", u.Op.symbol(), u.Right) }

// PostfixExpr represents Left++ or Left--
type PostfixExpr struct {
	Op   TokenType
	Left Expr
	Pos  ir.Pos
}

func (*PostfixExpr) exprNode()          {}
func (p *PostfixExpr) position() ir.Pos { return p.Pos }
func (p *PostfixExpr) String() string   { return fmt.Sprintf("(%s%s)", p.Left, p.Op.symbol()) }

// AssignExpr represents Left = Value and the compound forms. Assignment is
// an expression whose value is what was written.
type AssignExpr struct {
	Op    TokenType // ASSIGN, PLUS_ASSIGN, ...
	Left  Expr
	Value Expr
	Pos   ir.Pos
}

func (*AssignExpr) exprNode()          {}
func (a *AssignExpr) position() ir.Pos { return a.Pos }
func (a *AssignExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", a.Left, a.Op.symbol(), a.Value)
}

// TernaryExpr represents Cond ? Then : Else
type TernaryExpr struct {
	Cond Expr
	Then Expr
	Else Expr
	Pos  ir.Pos
}

func (*TernaryExpr) exprNode()          {}
func (t *TernaryExpr) position() ir.Pos { return t.Pos }
func (t *TernaryExpr) String() string {
	return fmt.Sprintf("(%s ? %s : %s)", t.Cond, t.Then, t.Else)
}

// FunctionCall represents name(args) for a user function.
type FunctionCall struct {
	Name string
	Args []Expr
	Pos  ir.Pos
}

func (*FunctionCall) exprNode()          {}
func (c *FunctionCall) position() ir.Pos { return c.Pos }
func (c *FunctionCall) String() string {
	return fmt.Sprintf("%s(%s)", c.Name, joinExprs(c.Args))
}

// ConstructorExpr represents a type used as a function: vec3(1.0),
// mat2(a, b), float(i), float[3](a, b, c).
type ConstructorExpr struct {
	Type *TypeSpec
	Args []Expr
	Pos  ir.Pos
}

func (*ConstructorExpr) exprNode()          {}
func (c *ConstructorExpr) position() ir.Pos { return c.Pos }
func (c *ConstructorExpr) String() string {
	return fmt.Sprintf("%s(%s)", c.Type, joinExprs(c.Args))
}

// IndexExpr represents Left[Index]. Chained subscripts nest: a[i][j] is
// IndexExpr{Left: IndexExpr{Left: a, Index: i}, Index: j}.
type IndexExpr struct {
	Left  Expr
	Index Expr
	Pos   ir.Pos
}

func (*IndexExpr) exprNode()          {}
func (e *IndexExpr) position() ir.Pos { return e.Pos }
func (e *IndexExpr) String() string   { return fmt.Sprintf("%s[%s]", e.Left, e.Index) }

// MemberExpr represents Left.Member (a swizzle).
type MemberExpr struct {
	Left   Expr
	Member string
	Pos    ir.Pos
}

func (*MemberExpr) exprNode()          {}
func (e *MemberExpr) position() ir.Pos { return e.Pos }
func (e *MemberExpr) String() string   { return fmt.Sprintf("%s.%s", e.Left, e.Member) }

func joinExprs(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// TypeSpec is a type as written: a base type name plus zero or more array
// dimensions, outermost first. A nil dimension is unsized ("[]").
type TypeSpec struct {
	Base string
	Dims []Expr
	Pos  ir.Pos
}

func (s *TypeSpec) String() string {
	var sb strings.Builder
	sb.WriteString(s.Base)
	for _, d := range s.Dims {
		if d == nil {
			sb.WriteString("[]")
		} else {
			fmt.Fprintf(&sb, "[%s]", d)
		}
	}
	return sb.String()
}

//  Statement nodes

// Stmt is implemented by every node that does not produce a value.
type Stmt interface {
	stmtNode()
	String() string
}

// VariableDecl represents  float name[3] = expr;
type VariableDecl struct {
	Type  *TypeSpec
	Name  string
	Init  Expr // may be nil
	Const bool
	Pos   ir.Pos
}

func (*VariableDecl) stmtNode() {}
func (d *VariableDecl) String() string {
	prefix := ""
	if d.Const {
		prefix = "const "
	}
	if d.Init == nil {
		return fmt.Sprintf("VariableDecl(%s%s %s)", prefix, d.Type, d.Name)
	}
	return fmt.Sprintf("VariableDecl(%s%s %s = %s)", prefix, d.Type, d.Name, d.Init)
}

// DeclGroup holds the declarators of  float a, b = 1.0, c[2];
// They share the enclosing scope.
type DeclGroup struct {
	Decls []*VariableDecl
}

func (*DeclGroup) stmtNode() {}
func (g *DeclGroup) String() string {
	parts := make([]string, len(g.Decls))
	for i, d := range g.Decls {
		parts[i] = d.String()
	}
	return "DeclGroup(" + strings.Join(parts, ", ") + ")"
}

// ReturnStmt represents  return expr;
type ReturnStmt struct {
	Expr Expr // nil for a bare return
	Pos  ir.Pos
}

func (*ReturnStmt) stmtNode() {}
func (r *ReturnStmt) String() string {
	if r.Expr == nil {
		return "ReturnStmt()"
	}
	return fmt.Sprintf("ReturnStmt(%s)", r.Expr)
}

// BlockStmt represents { statement; ... }
type BlockStmt struct {
	Stmts []Stmt
}

func (*BlockStmt) stmtNode() {}
func (b *BlockStmt) String() string {
	return fmt.Sprintf("BlockStmt(len=%d)", len(b.Stmts))
}

// IfStmt represents if (cond) body [else elseBody]
type IfStmt struct {
	Condition Expr
	Body      Stmt
	ElseBody  Stmt // may be nil
}

func (*IfStmt) stmtNode() {}
func (i *IfStmt) String() string {
	if i.ElseBody != nil {
		return fmt.Sprintf("IfStmt(if %s then %s else %s)", i.Condition, i.Body, i.ElseBody)
	}
	return fmt.Sprintf("IfStmt(if %s then %s)", i.Condition, i.Body)
}

// WhileStmt represents while (cond) body
type WhileStmt struct {
	Condition Expr
	Body      Stmt
}

func (*WhileStmt) stmtNode() {}
func (w *WhileStmt) String() string {
	return fmt.Sprintf("WhileStmt(while %s do %s)", w.Condition, w.Body)
}

// ForStmt represents for (init; cond; post) body
type ForStmt struct {
	Init Stmt // may be nil
	Cond Expr // may be nil
	Post Expr // may be nil
	Body Stmt
}

func (*ForStmt) stmtNode() {}
func (f *ForStmt) String() string {
	return fmt.Sprintf("ForStmt(init=%v, cond=%v, post=%v, body=%s)", f.Init, f.Cond, f.Post, f.Body)
}

// Param is one function parameter.
type Param struct {
	Type *TypeSpec
	Name string
	Pos  ir.Pos
}

// FunctionDecl represents  vec4 name(vec2 uv, float t) { body }
type FunctionDecl struct {
	Name       string
	ReturnType *TypeSpec
	Params     []Param
	Body       *BlockStmt
	Pos        ir.Pos
}

func (*FunctionDecl) stmtNode() {}
func (f *FunctionDecl) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Type.String() + " " + p.Name
	}
	return fmt.Sprintf("FunctionDecl(%s %s(%s), body=%s)", f.ReturnType, f.Name, strings.Join(params, ", "), f.Body)
}

// ExprStmt represents an expression evaluated for its side effects.
type ExprStmt struct {
	Expr Expr
}

func (*ExprStmt) stmtNode() {}
func (e *ExprStmt) String() string {
	return fmt.Sprintf("ExprStmt(%s)", e.Expr)
}

// BreakStmt represents break;
type BreakStmt struct{ Pos ir.Pos }

func (*BreakStmt) stmtNode()        {}
func (s *BreakStmt) String() string { return "BreakStmt" }

// ContinueStmt represents continue;
type ContinueStmt struct{ Pos ir.Pos }

func (*ContinueStmt) stmtNode()        {}
func (s *ContinueStmt) String() string { return "ContinueStmt" }
