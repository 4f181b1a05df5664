package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"fixshade/pkg/ir"
)

// Parser consumes the flat token slice produced by the Lexer and builds an AST.
//
// Grammar:
//
//	program     = (functionDecl | constDecl)* EOF
//	functionDecl = typeSpec IDENTIFIER "(" params? ")" block
//	params      = "void" | param ("," param)*
//	param       = "const"? typeSpec IDENTIFIER dims?
//	statement   = block | if | while | for | return | break | continue
//	            | declaration | expression ";" | ";"
//	declaration = "const"? typeSpec declarator ("," declarator)* ";"
//	declarator  = IDENTIFIER dims? ("=" (initList | assignment))?
//	typeSpec    = TYPE_NAME dims?
//	dims        = ("[" expression? "]")+
//	expression  = assignment
//	assignment  = ternary (("=" | "+=" | "-=" | "*=" | "/=" | "%=") assignment)?
//	ternary     = logical_or ("?" expression ":" assignment)?
//	logical_or  = logical_xor ("||" logical_xor)*
//	logical_xor = logical_and ("^^" logical_and)*
//	logical_and = bitwise_or ("&&" bitwise_or)*
//	bitwise_or  = bitwise_xor ("|" bitwise_xor)*
//	bitwise_xor = bitwise_and ("^" bitwise_and)*
//	bitwise_and = equality ("&" equality)*
//	equality    = relational (("=="|"!=") relational)*
//	relational  = shift (("<"|">"|"<="|">=") shift)*
//	shift       = additive (("<<"|">>") additive)*
//	additive    = multiplicative (("+" | "-") multiplicative)*
//	multiplicative = unary (("*" | "/" | "%") unary)*
//	unary       = ("-" | "+" | "!" | "~" | "++" | "--") unary | postfix
//	postfix     = primary ("[" expression "]" | "." IDENTIFIER | "++" | "--")*
//	primary     = literal | IDENTIFIER ("(" args ")")? | typeSpec "(" args ")"
//	            | "(" expression ")"
type Parser struct {
	tokens      []Token
	pos         int
	sourceLines []string
	origins     LineMap
}

func NewParser(tokens []Token, rawSource string) *Parser {
	return &Parser{tokens: tokens, sourceLines: strings.Split(rawSource, "\n")}
}

// fmtError wraps an error message with the source line where the token appears.
func (p *Parser) fmtError(tok Token, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	lineIdx := tok.Line - 1 // Lines are 1-based

	snippet := "<source unavailable>"
	if lineIdx >= 0 && lineIdx < len(p.sourceLines) {
		snippet = strings.TrimSpace(p.sourceLines[lineIdx])
	}

	where := p.origins.Pos(ir.Pos{Line: tok.Line}).Where()
	return fmt.Errorf("%s: %s\n  |> %s", where, msg, snippet)
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos]
}

// peekAt returns the token at the given offset from the current position.
func (p *Parser) peekAt(offset int) Token {
	if p.pos+offset >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos+offset]
}

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// expect consumes the current token if it matches tt, otherwise returns an error.
func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.advance()
	if tok.Type != tt {
		return tok, p.fmtError(tok, "expected %s, got %s (%q)", tt, tok.Type, tok.Lexeme)
	}
	return tok, nil
}

// parseExpression is the entry point for expression parsing.
func (p *Parser) parseExpression() (Expr, error) {
	return p.parseAssignment()
}

func isAssignOp(tt TokenType) bool {
	switch tt {
	case ASSIGN, PLUS_ASSIGN, MINUS_ASSIGN, STAR_ASSIGN, SLASH_ASSIGN, PERCENT_ASSIGN:
		return true
	}
	return false
}

// parseAssignment handles = and the compound forms (right-associative).
func (p *Parser) parseAssignment() (Expr, error) {
	left, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if !isAssignOp(p.peek().Type) {
		return left, nil
	}
	opTok := p.advance()
	value, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	return &AssignExpr{Op: opTok.Type, Left: left, Value: value, Pos: opTok.Pos()}, nil
}

// parseTernary handles cond ? a : b
func (p *Parser) parseTernary() (Expr, error) {
	cond, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	if p.peek().Type != QUESTION {
		return cond, nil
	}
	q := p.advance()
	then, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(COLON); err != nil {
		return nil, err
	}
	els, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	return &TernaryExpr{Cond: cond, Then: then, Else: els, Pos: q.Pos()}, nil
}

// parseLeftAssoc parses operand (op operand)* for any of ops, building
// nodes with mk.
func (p *Parser) parseLeftAssoc(operand func() (Expr, error), mk func(Token, Expr, Expr) Expr, ops ...TokenType) (Expr, error) {
	expr, err := operand()
	if err != nil {
		return nil, err
	}
	for {
		tt := p.peek().Type
		matched := false
		for _, op := range ops {
			if tt == op {
				matched = true
				break
			}
		}
		if !matched {
			return expr, nil
		}
		opTok := p.advance()
		right, err := operand()
		if err != nil {
			return nil, err
		}
		expr = mk(opTok, expr, right)
	}
}

func binary(op Token, l, r Expr) Expr {
	return &BinaryExpr{Op: op.Type, Left: l, Right: r, Pos: op.Pos()}
}

func logical(op Token, l, r Expr) Expr {
	return &LogicalExpr{Op: op.Type, Left: l, Right: r, Pos: op.Pos()}
}

// parseLogicalOr handles ||
func (p *Parser) parseLogicalOr() (Expr, error) {
	return p.parseLeftAssoc(p.parseLogicalXor, logical, OR_LOGICAL)
}

// parseLogicalXor handles ^^
func (p *Parser) parseLogicalXor() (Expr, error) {
	return p.parseLeftAssoc(p.parseLogicalAnd, logical, XOR_LOGICAL)
}

// parseLogicalAnd handles &&
func (p *Parser) parseLogicalAnd() (Expr, error) {
	return p.parseLeftAssoc(p.parseBitwiseOr, logical, AND_LOGICAL)
}

func (p *Parser) parseBitwiseOr() (Expr, error) {
	return p.parseLeftAssoc(p.parseBitwiseXor, binary, PIPE)
}

func (p *Parser) parseBitwiseXor() (Expr, error) {
	return p.parseLeftAssoc(p.parseBitwiseAnd, binary, CARET)
}

func (p *Parser) parseBitwiseAnd() (Expr, error) {
	return p.parseLeftAssoc(p.parseEquality, binary, AND)
}

// parseEquality handles == and !=
func (p *Parser) parseEquality() (Expr, error) {
	return p.parseLeftAssoc(p.parseRelational, binary, EQUALS, NOT_EQ)
}

// parseRelational handles < > <= >=
func (p *Parser) parseRelational() (Expr, error) {
	return p.parseLeftAssoc(p.parseShift, binary, LESS, GREATER, LESS_EQ, GREATER_EQ)
}

// parseShift handles << and >>
func (p *Parser) parseShift() (Expr, error) {
	return p.parseLeftAssoc(p.parseAdditive, binary, SHL_OP, SHR_OP)
}

// parseAdditive handles + and -
func (p *Parser) parseAdditive() (Expr, error) {
	return p.parseLeftAssoc(p.parseMultiplicative, binary, PLUS, MINUS)
}

// parseMultiplicative handles * / %
func (p *Parser) parseMultiplicative() (Expr, error) {
	return p.parseLeftAssoc(p.parseUnary, binary, STAR, SLASH, PERCENT)
}

// parseUnary handles prefix operators - + ! ~ ++ --
func (p *Parser) parseUnary() (Expr, error) {
	switch p.peek().Type {
	case MINUS, PLUS, NOT, TILDE, PLUS_PLUS, MINUS_MINUS:
		opTok := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: opTok.Type, Right: right, Pos: opTok.Pos()}, nil
	}
	return p.parsePostfix()
}

// parsePostfix handles subscripts, swizzles and postfix ++/--.
func (p *Parser) parsePostfix() (Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch p.peek().Type {
		case LBRACKET:
			open := p.advance()
			idx, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RBRACKET); err != nil {
				return nil, err
			}
			expr = &IndexExpr{Left: expr, Index: idx, Pos: open.Pos()}

		case DOT:
			dot := p.advance()
			member, err := p.expect(IDENTIFIER)
			if err != nil {
				return nil, err
			}
			expr = &MemberExpr{Left: expr, Member: member.Lexeme, Pos: dot.Pos()}

		case PLUS_PLUS, MINUS_MINUS:
			opTok := p.advance()
			expr = &PostfixExpr{Op: opTok.Type, Left: expr, Pos: opTok.Pos()}

		default:
			return expr, nil
		}
	}
}

// parseCallArgs parses a comma-separated argument list; the opening '(' has
// been consumed and the closing ')' is consumed here.
func (p *Parser) parseCallArgs() ([]Expr, error) {
	var args []Expr
	if p.peek().Type == RPAREN {
		p.advance()
		return args, nil
	}
	// f(void) is an empty argument list.
	if p.peek().Type == TYPE_NAME && p.peek().Lexeme == "void" && p.peekAt(1).Type == RPAREN {
		p.advance()
		p.advance()
		return args, nil
	}
	for {
		arg, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.peek().Type != COMMA {
			break
		}
		p.advance()
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case INTEGER, UNSIGNED_LIT:
		p.advance()
		v, err := strconv.ParseUint(tok.Lexeme, 0, 64)
		if err != nil || v > 0xFFFFFFFF {
			return nil, p.fmtError(tok, "integer literal %s out of range", tok.Lexeme)
		}
		return &IntLiteral{Value: int64(v), Unsigned: tok.Type == UNSIGNED_LIT, Pos: tok.Pos()}, nil

	case FLOAT_LIT:
		p.advance()
		v, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			return nil, p.fmtError(tok, "invalid float literal %s", tok.Lexeme)
		}
		return &FloatLiteral{Value: v, Pos: tok.Pos()}, nil

	case TRUE, FALSE:
		p.advance()
		return &BoolLiteral{Value: tok.Type == TRUE, Pos: tok.Pos()}, nil

	case IDENTIFIER:
		p.advance()
		if p.peek().Type == LPAREN {
			p.advance()
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			return &FunctionCall{Name: tok.Lexeme, Args: args, Pos: tok.Pos()}, nil
		}
		return &VarRef{Name: tok.Lexeme, Pos: tok.Pos()}, nil

	case TYPE_NAME:
		spec, err := p.parseTypeSpec()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(LPAREN); err != nil {
			return nil, err
		}
		args, err := p.parseCallArgs()
		if err != nil {
			return nil, err
		}
		return &ConstructorExpr{Type: spec, Args: args, Pos: tok.Pos()}, nil

	case LPAREN:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return expr, nil
	}

	p.advance()
	return nil, p.fmtError(tok, "unexpected token %s (%q) in expression", tok.Type, tok.Lexeme)
}

// parseInitializerList parses { elem, elem, ... } with nested lists allowed.
// A trailing comma is accepted.
func (p *Parser) parseInitializerList() (*InitializerList, error) {
	open, err := p.expect(LBRACE)
	if err != nil {
		return nil, err
	}
	list := &InitializerList{Pos: open.Pos()}
	for p.peek().Type != RBRACE {
		var elem Expr
		if p.peek().Type == LBRACE {
			elem, err = p.parseInitializerList()
		} else {
			elem, err = p.parseAssignment()
		}
		if err != nil {
			return nil, err
		}
		list.Elements = append(list.Elements, elem)
		if p.peek().Type != COMMA {
			break
		}
		p.advance()
	}
	if _, err := p.expect(RBRACE); err != nil {
		return nil, err
	}
	return list, nil
}

// parseDims parses zero or more [size] groups. An empty group yields a nil
// entry (unsized).
func (p *Parser) parseDims() ([]Expr, error) {
	var dims []Expr
	for p.peek().Type == LBRACKET {
		p.advance()
		if p.peek().Type == RBRACKET {
			p.advance()
			dims = append(dims, nil)
			continue
		}
		size, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RBRACKET); err != nil {
			return nil, err
		}
		dims = append(dims, size)
	}
	return dims, nil
}

// parseTypeSpec parses TYPE_NAME followed by optional dimensions.
func (p *Parser) parseTypeSpec() (*TypeSpec, error) {
	tok, err := p.expect(TYPE_NAME)
	if err != nil {
		return nil, err
	}
	dims, err := p.parseDims()
	if err != nil {
		return nil, err
	}
	return &TypeSpec{Base: tok.Lexeme, Dims: dims, Pos: tok.Pos()}, nil
}

// isDeclStart reports whether the tokens at the current position begin a
// declaration rather than an expression such as vec3(1.0).x or float[2](a, b).
func (p *Parser) isDeclStart() bool {
	if p.peek().Type == CONST {
		return true
	}
	if p.peek().Type != TYPE_NAME {
		return false
	}
	i := 1
	depth := 0
	for {
		tt := p.peekAt(i).Type
		switch {
		case tt == LBRACKET:
			depth++
		case tt == RBRACKET:
			depth--
		case tt == EOF:
			return false
		case depth == 0:
			return tt == IDENTIFIER
		}
		i++
	}
}

// parseVarDecl parses a declaration statement with one or more declarators.
func (p *Parser) parseVarDecl() (Stmt, error) {
	isConst := false
	if p.peek().Type == CONST {
		p.advance()
		isConst = true
	}
	spec, err := p.parseTypeSpec()
	if err != nil {
		return nil, err
	}

	var decls []*VariableDecl
	for {
		nameTok, err := p.expect(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		dims, err := p.parseDims()
		if err != nil {
			return nil, err
		}
		// float[2] a[3] is an array of 3 float[2]; the declarator's
		// dimensions are outermost.
		declSpec := &TypeSpec{Base: spec.Base, Pos: spec.Pos}
		declSpec.Dims = append(append(declSpec.Dims, dims...), spec.Dims...)

		decl := &VariableDecl{Type: declSpec, Name: nameTok.Lexeme, Const: isConst, Pos: nameTok.Pos()}
		if p.peek().Type == ASSIGN {
			p.advance()
			if p.peek().Type == LBRACE {
				decl.Init, err = p.parseInitializerList()
			} else {
				decl.Init, err = p.parseAssignment()
			}
			if err != nil {
				return nil, err
			}
		} else if isConst {
			return nil, p.fmtError(nameTok, "const variable '%s' requires an initializer", nameTok.Lexeme)
		}
		decls = append(decls, decl)

		if p.peek().Type != COMMA {
			break
		}
		p.advance()
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	if len(decls) == 1 {
		return decls[0], nil
	}
	return &DeclGroup{Decls: decls}, nil
}

// parseReturn parses return [expr];  The RETURN token has been consumed.
func (p *Parser) parseReturn(ret Token) (Stmt, error) {
	stmt := &ReturnStmt{Pos: ret.Pos()}
	if p.peek().Type != SEMICOLON {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Expr = expr
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return stmt, nil
}

// parseBlock parses statements up to the closing '}'. The '{' has been consumed.
func (p *Parser) parseBlock() (*BlockStmt, error) {
	var stmts []Stmt
	for p.peek().Type != RBRACE {
		if p.peek().Type == EOF {
			return nil, p.fmtError(p.peek(), "unexpected end of input, expected '}'")
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	p.advance() // consume }
	return &BlockStmt{Stmts: stmts}, nil
}

func (p *Parser) parseParenCondition() (Expr, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return cond, nil
}

// parseIf parses if (cond) stmt [else stmt]. The IF token has been consumed.
func (p *Parser) parseIf() (Stmt, error) {
	cond, err := p.parseParenCondition()
	if err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	stmt := &IfStmt{Condition: cond, Body: body}
	if p.peek().Type == ELSE {
		p.advance()
		stmt.ElseBody, err = p.parseStatement()
		if err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

// parseWhile parses while (cond) stmt. The WHILE token has been consumed.
func (p *Parser) parseWhile() (Stmt, error) {
	cond, err := p.parseParenCondition()
	if err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Condition: cond, Body: body}, nil
}

// parseForStmt parses for ( init; cond; post ) body
func (p *Parser) parseForStmt() (Stmt, error) {
	if _, err := p.expect(FOR); err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}

	var init Stmt
	if p.peek().Type == SEMICOLON {
		p.advance()
	} else if p.isDeclStart() {
		var err error
		init, err = p.parseVarDecl()
		if err != nil {
			return nil, err
		}
	} else {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		init = &ExprStmt{Expr: expr}
	}

	var cond Expr
	if p.peek().Type != SEMICOLON {
		var err error
		cond, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}

	var post Expr
	if p.peek().Type != RPAREN {
		var err error
		post, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}

	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}

	return &ForStmt{Init: init, Cond: cond, Post: post, Body: body}, nil
}

// parseStatement dispatches to the correct sub-parser based on the leading token.
func (p *Parser) parseStatement() (Stmt, error) {
	tok := p.peek()
	switch tok.Type {

	case LBRACE:
		p.advance()
		return p.parseBlock()

	case IF:
		p.advance()
		return p.parseIf()

	case WHILE:
		p.advance()
		return p.parseWhile()

	case FOR:
		return p.parseForStmt()

	case BREAK:
		p.advance()
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return &BreakStmt{Pos: tok.Pos()}, nil

	case CONTINUE:
		p.advance()
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return &ContinueStmt{Pos: tok.Pos()}, nil

	case RETURN:
		p.advance()
		return p.parseReturn(tok)

	case SEMICOLON:
		p.advance()
		return nil, nil

	case EOF:
		return nil, p.fmtError(tok, "unexpected end of input")
	}

	if p.isDeclStart() {
		return p.parseVarDecl()
	}

	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &ExprStmt{Expr: expr}, nil
}

// parseFunctionDecl parses  T name(params) { ... }
func (p *Parser) parseFunctionDecl() (Stmt, error) {
	retSpec, err := p.parseTypeSpec()
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}

	var params []Param
	if p.peek().Type == TYPE_NAME && p.peek().Lexeme == "void" && p.peekAt(1).Type == RPAREN {
		p.advance()
	} else if p.peek().Type != RPAREN {
		for {
			if p.peek().Type == CONST {
				p.advance()
			}
			if p.peek().Type != TYPE_NAME {
				return nil, p.fmtError(p.peek(), "expected parameter type, got %s (%q)", p.peek().Type, p.peek().Lexeme)
			}
			spec, err := p.parseTypeSpec()
			if err != nil {
				return nil, err
			}
			paramName, err := p.expect(IDENTIFIER)
			if err != nil {
				return nil, err
			}
			dims, err := p.parseDims()
			if err != nil {
				return nil, err
			}
			spec.Dims = append(dims, spec.Dims...)
			params = append(params, Param{Type: spec, Name: paramName.Lexeme, Pos: paramName.Pos()})

			if p.peek().Type != COMMA {
				break
			}
			p.advance()
		}
	}

	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	return &FunctionDecl{Name: nameTok.Lexeme, ReturnType: retSpec, Params: params, Body: body, Pos: nameTok.Pos()}, nil
}

// isFunctionStart reports whether the tokens at the current position begin
// a function definition:  TYPE_NAME dims? IDENTIFIER "(".
func (p *Parser) isFunctionStart() bool {
	if p.peek().Type != TYPE_NAME {
		return false
	}
	i := 1
	for p.peekAt(i).Type == LBRACKET {
		for p.peekAt(i).Type != RBRACKET && p.peekAt(i).Type != EOF {
			i++
		}
		i++
	}
	return p.peekAt(i).Type == IDENTIFIER && p.peekAt(i+1).Type == LPAREN
}

// Parse enforces that only function definitions and const declarations
// appear at the top level.
func Parse(tokens []Token, rawSource string) ([]Stmt, error) {
	return ParseMapped(tokens, rawSource, nil)
}

// ParseMapped is Parse over preprocessed text, reporting errors at the
// lines origins gives.
func ParseMapped(tokens []Token, rawSource string, origins LineMap) ([]Stmt, error) {
	p := NewParser(tokens, rawSource)
	p.origins = origins
	var stmts []Stmt
	for p.peek().Type != EOF {
		if p.peek().Type == SEMICOLON {
			p.advance()
			continue
		}

		if p.isFunctionStart() {
			f, err := p.parseFunctionDecl()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, f)
			continue
		}

		if p.peek().Type == CONST {
			v, err := p.parseVarDecl()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, v)
			continue
		}

		tok := p.peek()
		if tok.Type == TYPE_NAME {
			return nil, p.fmtError(tok, "global variables must be const")
		}
		return nil, p.fmtError(tok, "executable statement %q found outside of function body", tok.Lexeme)
	}
	return stmts, nil
}
