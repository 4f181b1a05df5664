package compiler

import (
	"reflect"
	"testing"
)

type tokSketch struct {
	Type   TokenType
	Lexeme string
}

func sketch(toks []Token) []tokSketch {
	out := make([]tokSketch, len(toks))
	for i, t := range toks {
		out[i] = tokSketch{t.Type, t.Lexeme}
	}
	return out
}

func TestLex(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []tokSketch
		wantErr  bool
	}{
		{
			name:     "Empty",
			input:    "",
			expected: []tokSketch{{EOF, ""}},
		},
		{
			name:  "Basic Tokens",
			input: "+ - * / & = == != < > ; , { } ( ) [ ] . ? :",
			expected: []tokSketch{
				{PLUS, "+"}, {MINUS, "-"}, {STAR, "*"}, {SLASH, "/"}, {AND, "&"},
				{ASSIGN, "="}, {EQUALS, "=="}, {NOT_EQ, "!="}, {LESS, "<"}, {GREATER, ">"},
				{SEMICOLON, ";"}, {COMMA, ","}, {LBRACE, "{"}, {RBRACE, "}"},
				{LPAREN, "("}, {RPAREN, ")"}, {LBRACKET, "["}, {RBRACKET, "]"},
				{DOT, "."}, {QUESTION, "?"}, {COLON, ":"}, {EOF, ""},
			},
		},
		{
			name:  "Keywords, Types and Identifiers",
			input: "const float if else while for return uv _tmp vec3 mat2x3 bvec4",
			expected: []tokSketch{
				{CONST, "const"}, {TYPE_NAME, "float"}, {IF, "if"}, {ELSE, "else"},
				{WHILE, "while"}, {FOR, "for"}, {RETURN, "return"},
				{IDENTIFIER, "uv"}, {IDENTIFIER, "_tmp"},
				{TYPE_NAME, "vec3"}, {TYPE_NAME, "mat2x3"}, {TYPE_NAME, "bvec4"}, {EOF, ""},
			},
		},
		{
			name:  "Qualifiers are dropped",
			input: "in highp vec2 p",
			expected: []tokSketch{
				{TYPE_NAME, "vec2"}, {IDENTIFIER, "p"}, {EOF, ""},
			},
		},
		{
			name:  "Integers",
			input: "123 0 0x1A 0Xff 7u 0x10U",
			expected: []tokSketch{
				{INTEGER, "123"}, {INTEGER, "0"}, {INTEGER, "0x1A"}, {INTEGER, "0Xff"},
				{UNSIGNED_LIT, "7"}, {UNSIGNED_LIT, "0x10"}, {EOF, ""},
			},
		},
		{
			name:  "Floats",
			input: "1.5 .25 3. 1e3 2.5E-2 4.0f",
			expected: []tokSketch{
				{FLOAT_LIT, "1.5"}, {FLOAT_LIT, ".25"}, {FLOAT_LIT, "3."}, {FLOAT_LIT, "1e3"},
				{FLOAT_LIT, "2.5E-2"}, {FLOAT_LIT, "4.0"}, {EOF, ""},
			},
		},
		{
			name:  "Swizzle is not a float",
			input: "v.xy",
			expected: []tokSketch{
				{IDENTIFIER, "v"}, {DOT, "."}, {IDENTIFIER, "xy"}, {EOF, ""},
			},
		},
		{
			name:  "Comments",
			input: "x // comment\n y /* block */ z",
			expected: []tokSketch{
				{IDENTIFIER, "x"}, {IDENTIFIER, "y"}, {IDENTIFIER, "z"}, {EOF, ""},
			},
		},
		{
			name:  "Bitwise and Shift Operators",
			input: "| ^ ~ % << >>",
			expected: []tokSketch{
				{PIPE, "|"}, {CARET, "^"}, {TILDE, "~"}, {PERCENT, "%"},
				{SHL_OP, "<<"}, {SHR_OP, ">>"}, {EOF, ""},
			},
		},
		{
			name:  "Logical Operators",
			input: "&& || ^^ !",
			expected: []tokSketch{
				{AND_LOGICAL, "&&"}, {OR_LOGICAL, "||"}, {XOR_LOGICAL, "^^"}, {NOT, "!"}, {EOF, ""},
			},
		},
		{
			name:  "Assignment Operators",
			input: "+= -= *= /= %= ++ -- <= >=",
			expected: []tokSketch{
				{PLUS_ASSIGN, "+="}, {MINUS_ASSIGN, "-="}, {STAR_ASSIGN, "*="},
				{SLASH_ASSIGN, "/="}, {PERCENT_ASSIGN, "%="}, {PLUS_PLUS, "++"},
				{MINUS_MINUS, "--"}, {LESS_EQ, "<="}, {GREATER_EQ, ">="}, {EOF, ""},
			},
		},
		{name: "Unterminated Block Comment", input: "/* start", wantErr: true},
		{name: "Unexpected Character", input: "@", wantErr: true},
		{name: "Malformed Hex", input: "0x", wantErr: true},
		{name: "Malformed Exponent", input: "1e+", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Lex(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got tokens %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lex failed: %v", err)
			}
			if !reflect.DeepEqual(sketch(got), tt.expected) {
				t.Errorf("tokens mismatch\n got: %v\nwant: %v", sketch(got), tt.expected)
			}
		})
	}
}

func TestLexPositions(t *testing.T) {
	toks, err := Lex("float x;\n  x = 1.0;")
	if err != nil {
		t.Fatalf("Lex failed: %v", err)
	}
	want := []struct{ line, col int }{
		{1, 1}, {1, 7}, {1, 8},
		{2, 3}, {2, 5}, {2, 7}, {2, 10},
	}
	for i, w := range want {
		if toks[i].Line != w.line || toks[i].Col != w.col {
			t.Errorf("token %d %q: expected %d:%d, got %d:%d", i, toks[i].Lexeme, w.line, w.col, toks[i].Line, toks[i].Col)
		}
	}
	if p := toks[3].Pos(); p.Line != 2 || p.Col != 3 {
		t.Errorf("Pos(): expected 2:3, got %s", p)
	}
}
