package compiler

import (
	"strings"
	"testing"
)

func parseSource(t *testing.T, src string) []Stmt {
	t.Helper()
	toks, err := Lex(src)
	if err != nil {
		t.Fatalf("Lex failed: %v", err)
	}
	stmts, err := Parse(toks, src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return stmts
}

// parseBody wraps src in a function and returns the statements of its body.
func parseBody(t *testing.T, src string) []Stmt {
	t.Helper()
	stmts := parseSource(t, "void main() {\n"+src+"\n}")
	if len(stmts) != 1 {
		t.Fatalf("expected 1 top-level statement, got %d", len(stmts))
	}
	f, ok := stmts[0].(*FunctionDecl)
	if !ok {
		t.Fatalf("expected *FunctionDecl, got %T", stmts[0])
	}
	return f.Body.Stmts
}

// TestParse compares the printed form of each parsed statement.
func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "Variable Declaration",
			input:    "float x = 1.5;",
			expected: []string{"VariableDecl(float x = 1.5)"},
		},
		{
			name:     "Uninitialized Vector",
			input:    "vec3 v;",
			expected: []string{"VariableDecl(vec3 v)"},
		},
		{
			name:     "Declaration Group",
			input:    "int a = 1, b, c = 3u;",
			expected: []string{"DeclGroup(VariableDecl(int a = 1), VariableDecl(int b), VariableDecl(int c = 3u))"},
		},
		{
			name:     "Declarator Dimensions Are Outermost",
			input:    "float[2] m[3];",
			expected: []string{"VariableDecl(float[3][2] m)"},
		},
		{
			name:     "Unsized Array With Initializer List",
			input:    "float a[] = {1.0, 2.0, {3}};",
			expected: []string{"VariableDecl(float[] a = {1.0, 2.0, {3}})"},
		},
		{
			name:     "Constructors",
			input:    "vec4 c = vec4(uv, 0.0, 1.0);",
			expected: []string{"VariableDecl(vec4 c = vec4(uv, 0.0, 1.0))"},
		},
		{
			name:     "Array Constructor Expression",
			input:    "float[2](a, b)[i];",
			expected: []string{"ExprStmt(float[2](a, b)[i])"},
		},
		{
			name:     "Constructor Swizzle Is An Expression",
			input:    "vec3(1.0).x;",
			expected: []string{"ExprStmt(vec3(1.0).x)"},
		},
		{
			name:     "Precedence",
			input:    "x = a + b * c - d;",
			expected: []string{"ExprStmt((x = ((a + (b * c)) - d)))"},
		},
		{
			name:     "Parentheses",
			input:    "x = (a + b) * c;",
			expected: []string{"ExprStmt((x = ((a + b) * c)))"},
		},
		{
			name:     "Bitwise And Shift",
			input:    "x = a | b & c << 2;",
			expected: []string{"ExprStmt((x = (a | (b & (c << 2)))))"},
		},
		{
			name:     "Logical",
			input:    "b = p || q && !r ^^ s;",
			expected: []string{"ExprStmt((b = (p || ((q && (!r)) ^^ s))))"},
		},
		{
			name:     "Relational And Equality",
			input:    "b = a < 1 == c >= 2;",
			expected: []string{"ExprStmt((b = ((a < 1) == (c >= 2))))"},
		},
		{
			name:     "Assignment Is Right Associative",
			input:    "a = b += 2;",
			expected: []string{"ExprStmt((a = (b += 2)))"},
		},
		{
			name:     "Ternary",
			input:    "y = c ? 1.0 : k > 0 ? 2.0 : 3.0;",
			expected: []string{"ExprStmt((y = (c ? 1.0 : ((k > 0) ? 2.0 : 3.0))))"},
		},
		{
			name:     "Index And Swizzle Chains",
			input:    "m[1].yx = a[i][j].zw;",
			expected: []string{"ExprStmt((m[1].yx = a[i][j].zw))"},
		},
		{
			name:     "Unary And Postfix",
			input:    "x = -y++ + ~--z;",
			expected: []string{"ExprStmt((x = ((-(y++)) + (~(--z)))))"},
		},
		{
			name:     "Function Call",
			input:    "r = f(1, v.x, g(void));",
			expected: []string{"ExprStmt((r = f(1, v.x, g())))"},
		},
		{
			name:  "Control Flow",
			input: "if (a) { x = 1; } else y = 2;\nwhile (b) x++;\nfor (int i = 0; i < 4; i++) { }",
			expected: []string{
				"IfStmt(if a then BlockStmt(len=1) else ExprStmt((y = 2)))",
				"WhileStmt(while b do ExprStmt((x++)))",
				"ForStmt(init=VariableDecl(int i = 0), cond=(i < 4), post=(i++), body=BlockStmt(len=0))",
			},
		},
		{
			name:     "Empty For Clauses",
			input:    "for (;;) break;",
			expected: []string{"ForStmt(init=<nil>, cond=<nil>, post=<nil>, body=BreakStmt)"},
		},
		{
			name:     "Return",
			input:    "return;\nreturn v * 2.0;",
			expected: []string{"ReturnStmt()", "ReturnStmt((v * 2.0))"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmts := parseBody(t, tt.input)
			if len(stmts) != len(tt.expected) {
				t.Fatalf("expected %d statements, got %d: %v", len(tt.expected), len(stmts), stmts)
			}
			for i, s := range stmts {
				if got := s.String(); got != tt.expected[i] {
					t.Errorf("statement %d:\n got: %s\nwant: %s", i, got, tt.expected[i])
				}
			}
		})
	}
}

func TestParseTopLevel(t *testing.T) {
	src := `
const float PI = 3.14159;
const int N = 4, M = N * 2;

vec4 shade(vec2 uv, float t, float w[3]) {
    return vec4(uv, t, w[0]);
}

void main(void) { ; }
`
	stmts := parseSource(t, src)
	want := []string{
		"VariableDecl(const float PI = 3.14159)",
		"DeclGroup(VariableDecl(const int N = 4), VariableDecl(const int M = (N * 2)))",
		"FunctionDecl(vec4 shade(vec2 uv, float t, float[3] w), body=BlockStmt(len=1))",
		"FunctionDecl(void main(), body=BlockStmt(len=0))",
	}
	if len(stmts) != len(want) {
		t.Fatalf("expected %d statements, got %d", len(want), len(stmts))
	}
	for i, s := range stmts {
		if got := s.String(); got != want[i] {
			t.Errorf("statement %d:\n got: %s\nwant: %s", i, got, want[i])
		}
	}
}

func TestParsePositions(t *testing.T) {
	stmts := parseBody(t, "  x = v[i].y;")
	assign := stmts[0].(*ExprStmt).Expr.(*AssignExpr)
	if assign.Pos.Line != 2 || assign.Pos.Col != 5 {
		t.Errorf("assignment: expected 2:5, got %s", assign.Pos)
	}
	member := assign.Value.(*MemberExpr)
	if member.Pos.Col != 11 {
		t.Errorf("swizzle: expected col 11, got %s", member.Pos)
	}
	index := member.Left.(*IndexExpr)
	if index.Pos.Col != 8 {
		t.Errorf("index: expected col 8, got %s", index.Pos)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"Global Variable", "float x = 1.0;", "global variables must be const"},
		{"Statement Outside Function", "x = 1;", "executable statement \"x\" found outside of function body"},
		{"Const Without Initializer", "void main() { const float k; }", "const variable 'k' requires an initializer"},
		{"Missing Semicolon", "void main() { x = 1 }", "line 1"},
		{"Unclosed Block", "void main() { x = 1;", "unexpected end of input"},
		{"Bad Expression", "void main() { x = ; }", "unexpected token"},
		{"Integer Out Of Range", "void main() { int x = 4294967296; }", "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := Lex(tt.input)
			if err != nil {
				t.Fatalf("Lex failed: %v", err)
			}
			_, err = Parse(toks, tt.input)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}
