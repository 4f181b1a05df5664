package compiler

import (
	"fmt"
	"unicode"
)

// keywords maps source text to its keyword TokenType.
var keywords = map[string]TokenType{
	"if":       IF,
	"else":     ELSE,
	"while":    WHILE,
	"for":      FOR,
	"return":   RETURN,
	"break":    BREAK,
	"continue": CONTINUE,
	"const":    CONST,
	"true":     TRUE,
	"false":    FALSE,
}

// qualifiers are accepted and dropped; they carry no meaning on this target.
var qualifiers = map[string]bool{
	"in":      true,
	"highp":   true,
	"mediump": true,
	"lowp":    true,
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src       []rune
	pos       int // index of the next rune to consume
	line      int // current 1-based source line
	lineStart int // index of the first rune of the current line
}

func newLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), pos: 0, line: 1}
}

// peek returns the rune at the current position without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// peek2 returns the rune one position ahead of the current position.
func (l *Lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

func (l *Lexer) col() int { return l.pos - l.lineStart + 1 }

// advance consumes one rune and returns it.
func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.lineStart = l.pos
	}
	return r
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) && unicode.IsSpace(l.peek()) {
		l.advance()
	}
}

// skipLineComment discards everything from the current position to end-of-line.
// The opening "//" must already have been consumed.
func (l *Lexer) skipLineComment() {
	for l.pos < len(l.src) && l.peek() != '\n' {
		l.advance()
	}
}

// skipBlockComment discards everything up to and including the closing "*/".
// The opening "/*" must already have been consumed.
func (l *Lexer) skipBlockComment() error {
	startLine := l.line
	for l.pos < len(l.src) {
		if l.peek() == '*' && l.peek2() == '/' {
			l.advance() // *
			l.advance() // /
			return nil
		}
		l.advance()
	}
	return fmt.Errorf("unterminated block comment (opened on line %d)", startLine)
}

// scanIdent collects a full identifier, keyword or type name.
// The first character (letter or '_') must still be at l.peek().
func (l *Lexer) scanIdent() Token {
	line, col := l.line, l.col()
	start := l.pos
	for l.pos < len(l.src) {
		r := l.peek()
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		l.advance()
	}
	lexeme := string(l.src[start:l.pos])
	tt := IDENTIFIER
	if kw, ok := keywords[lexeme]; ok {
		tt = kw
	} else if _, ok := builtinTypes[lexeme]; ok {
		tt = TYPE_NAME
	}
	return Token{Type: tt, Lexeme: lexeme, Line: line, Col: col}
}

func isHexDigit(r rune) bool {
	return unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// scanNumber collects an integer or float literal. Integers may be hex and
// carry a u/U suffix; floats may have a fraction, an exponent and an f/F
// suffix. The first character (digit or '.') must still be at l.peek().
func (l *Lexer) scanNumber() (Token, error) {
	line, col := l.line, l.col()
	start := l.pos

	if l.peek() == '0' && (l.peek2() == 'x' || l.peek2() == 'X') {
		l.advance() // consume '0'
		l.advance() // consume 'x'
		digits := l.pos
		for l.pos < len(l.src) && isHexDigit(l.peek()) {
			l.advance()
		}
		if l.pos == digits {
			return Token{}, fmt.Errorf("malformed hex literal on line %d", line)
		}
		numEnd := l.pos
		if l.peek() == 'u' || l.peek() == 'U' {
			l.advance()
			return Token{Type: UNSIGNED_LIT, Lexeme: string(l.src[start:numEnd]), Line: line, Col: col}, nil
		}
		return Token{Type: INTEGER, Lexeme: string(l.src[start:l.pos]), Line: line, Col: col}, nil
	}

	isFloat := false
	for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
		l.advance()
	}
	if l.peek() == '.' {
		isFloat = true
		l.advance()
		for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
			l.advance()
		}
	}
	if l.peek() == 'e' || l.peek() == 'E' {
		isFloat = true
		l.advance()
		if l.peek() == '+' || l.peek() == '-' {
			l.advance()
		}
		if !unicode.IsDigit(l.peek()) {
			return Token{}, fmt.Errorf("malformed exponent in float literal on line %d", line)
		}
		for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
			l.advance()
		}
	}
	numEnd := l.pos

	if isFloat {
		if l.peek() == 'f' || l.peek() == 'F' {
			l.advance()
		}
		return Token{Type: FLOAT_LIT, Lexeme: string(l.src[start:numEnd]), Line: line, Col: col}, nil
	}
	if l.peek() == 'u' || l.peek() == 'U' {
		l.advance()
		return Token{Type: UNSIGNED_LIT, Lexeme: string(l.src[start:numEnd]), Line: line, Col: col}, nil
	}
	return Token{Type: INTEGER, Lexeme: string(l.src[start:numEnd]), Line: line, Col: col}, nil
}

// nextToken skips whitespace/comments and returns the next Token.
func (l *Lexer) nextToken() (Token, error) {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.src) {
			return Token{Type: EOF, Lexeme: "", Line: l.line, Col: l.col()}, nil
		}
		if l.peek() == '/' && l.peek2() == '/' {
			l.advance()
			l.advance()
			l.skipLineComment()
			continue
		}
		if l.peek() == '/' && l.peek2() == '*' {
			l.advance()
			l.advance()
			if err := l.skipBlockComment(); err != nil {
				return Token{}, err
			}
			continue
		}
		break
	}

	ch := l.peek()
	line, col := l.line, l.col()

	if unicode.IsLetter(ch) || ch == '_' {
		tok := l.scanIdent()
		if qualifiers[tok.Lexeme] {
			return l.nextToken()
		}
		return tok, nil
	}
	if unicode.IsDigit(ch) || (ch == '.' && unicode.IsDigit(l.peek2())) {
		return l.scanNumber()
	}

	tok := func(tt TokenType, lexeme string) (Token, error) {
		return Token{Type: tt, Lexeme: lexeme, Line: line, Col: col}, nil
	}
	// twoChar consumes a second rune when it matches next.
	twoChar := func(next rune, tt TokenType, lexeme string) (Token, bool) {
		if l.peek() == next {
			l.advance()
			return Token{Type: tt, Lexeme: lexeme, Line: line, Col: col}, true
		}
		return Token{}, false
	}

	l.advance() // consume the character before the switch
	switch ch {
	case '{':
		return tok(LBRACE, "{")
	case '}':
		return tok(RBRACE, "}")
	case '(':
		return tok(LPAREN, "(")
	case ')':
		return tok(RPAREN, ")")
	case '[':
		return tok(LBRACKET, "[")
	case ']':
		return tok(RBRACKET, "]")
	case '.':
		return tok(DOT, ".")
	case ';':
		return tok(SEMICOLON, ";")
	case ',':
		return tok(COMMA, ",")
	case ':':
		return tok(COLON, ":")
	case '?':
		return tok(QUESTION, "?")

	case '+':
		if t, ok := twoChar('+', PLUS_PLUS, "++"); ok {
			return t, nil
		}
		if t, ok := twoChar('=', PLUS_ASSIGN, "+="); ok {
			return t, nil
		}
		return tok(PLUS, "+")
	case '-':
		if t, ok := twoChar('-', MINUS_MINUS, "--"); ok {
			return t, nil
		}
		if t, ok := twoChar('=', MINUS_ASSIGN, "-="); ok {
			return t, nil
		}
		return tok(MINUS, "-")
	case '*':
		if t, ok := twoChar('=', STAR_ASSIGN, "*="); ok {
			return t, nil
		}
		return tok(STAR, "*")
	case '/':
		if t, ok := twoChar('=', SLASH_ASSIGN, "/="); ok {
			return t, nil
		}
		return tok(SLASH, "/")
	case '%':
		if t, ok := twoChar('=', PERCENT_ASSIGN, "%="); ok {
			return t, nil
		}
		return tok(PERCENT, "%")
	case '&':
		if t, ok := twoChar('&', AND_LOGICAL, "&&"); ok {
			return t, nil
		}
		return tok(AND, "&")
	case '|':
		if t, ok := twoChar('|', OR_LOGICAL, "||"); ok {
			return t, nil
		}
		return tok(PIPE, "|")
	case '^':
		if t, ok := twoChar('^', XOR_LOGICAL, "^^"); ok {
			return t, nil
		}
		return tok(CARET, "^")
	case '~':
		return tok(TILDE, "~")
	case '!':
		if t, ok := twoChar('=', NOT_EQ, "!="); ok {
			return t, nil
		}
		return tok(NOT, "!")
	case '<':
		if t, ok := twoChar('=', LESS_EQ, "<="); ok {
			return t, nil
		}
		if t, ok := twoChar('<', SHL_OP, "<<"); ok {
			return t, nil
		}
		return tok(LESS, "<")
	case '>':
		if t, ok := twoChar('=', GREATER_EQ, ">="); ok {
			return t, nil
		}
		if t, ok := twoChar('>', SHR_OP, ">>"); ok {
			return t, nil
		}
		return tok(GREATER, ">")
	case '=':
		if t, ok := twoChar('=', EQUALS, "=="); ok {
			return t, nil
		}
		return tok(ASSIGN, "=")
	default:
		return Token{}, fmt.Errorf("unexpected character %q on line %d", ch, line)
	}
}

// Lex tokenises src and returns all tokens including the final EOF token.
// It returns a non-nil error on the first illegal character or unterminated comment.
func Lex(src string) ([]Token, error) {
	l := newLexer(src)
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}
