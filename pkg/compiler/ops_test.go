package compiler

import (
	"strings"
	"testing"
)

func TestOperators(t *testing.T) {
	tests := []struct {
		name string
		body string
		want float64
	}{
		// elementwise arithmetic
		{"Vector Product", "vec3 v = vec3(1.0, 2.0, 3.0) * vec3(4.0, 5.0, 6.0); return v.x + v.y + v.z;", 32},
		{"Vector Plus Scalar", "vec3 v = vec3(1.0, 2.0, 3.0) + 1.0; return v.x * 100.0 + v.y * 10.0 + v.z;", 234},
		{"Scalar Minus Vector", "vec2 v = 10.0 - vec2(1.0, 2.0); return v.x * 10.0 + v.y;", 98},
		{"Int Vector Division", "ivec2 v = ivec2(9, -9) / 2; return float(v.x * 10 + v.y);", 36},
		{"Vector Remainder", "vec2 v = vec2(5.5, 7.0) % 2.0; return v.x * 10.0 + v.y;", 16},
		{"Mixed Kinds Promote", "vec2 v = ivec2(1, 2) + vec2(0.5); return v.x + v.y;", 4},
		{"Matrix Times Scalar", "mat2 m = mat2(1.0, 2.0, 3.0, 4.0) * 2.0; return m[1][1];", 8},
		{"Matrix Minus Matrix", "mat2 m = mat2(5.0) - mat2(1.0, 2.0, 3.0, 4.0); return m[0][0] * 10.0 - m[0][1];", 42},
		{"Matrix Division", "mat2 m = mat2(2.0, 4.0, 6.0, 8.0) / mat2(2.0, 2.0, 2.0, 2.0); return m[1][1] + m[0][1];", 6},
		{"Negate Vector", "vec2 v = -vec2(1.0, -2.0); return v.x * 10.0 + v.y;", -8},
		{"Negate Matrix", "mat2 m = -mat2(1.0); return m[0][0] + m[1][1];", -2},
		{"Unary Plus", "vec2 v = +vec2(1.0, 2.0); return v.y;", 2},

		// linear algebra
		{"Matrix Product", "mat2 a = mat2(1.0, 2.0, 3.0, 4.0); mat2 b = mat2(5.0, 6.0, 7.0, 8.0); mat2 c = a * b; return c[1][0];", 31},
		{"Matrix Product Column", "mat2 a = mat2(1.0, 2.0, 3.0, 4.0); mat2 b = mat2(5.0, 6.0, 7.0, 8.0); mat2 c = a * b; return c[0].x * 100.0 + c[0].y;", 2334},
		{"Matrix Vector", "mat2x3 m = mat2x3(1.0, 2.0, 3.0, 4.0, 5.0, 6.0); vec3 v = m * vec2(1.0, 10.0); return v.x + v.y + v.z;", 156},
		{"Non Square Product", "mat3x2 a = mat3x2(1.0); mat2x3 b = mat2x3(1.0); mat2 c = a * b; return c[0][0] + c[1][1] + c[0][1];", 2},
		{"Identity", "mat3 r = mat3(0.0, 1.0, 0.0, -1.0, 0.0, 0.0, 0.0, 0.0, 1.0); vec3 v = mat3(1.0) * r * vec3(1.0, 2.0, 3.0); return v.x * 100.0 + v.y * 10.0 + v.z;", -187},
		{"Rotation Twice", "mat2 r = mat2(0.0, 1.0, -1.0, 0.0); mat2 h = r * r; return h[0][0] + h[1][1] * 10.0;", -11},

		// relational, logical
		{"Vector Less", "bvec3 b = vec3(1.0, 5.0, 3.0) < vec3(2.0); return float(int(b.x) + int(b.y) * 10 + int(b.z) * 100);", 1},
		{"Vector Logical", "bvec2 b = bvec2(true, false) || bvec2(false, false); bvec2 n = !b; return float(int(b.x) * 10 + int(n.y));", 11},
		{"Vector Xor", "bvec2 b = bvec2(true, true) ^^ bvec2(true, false); return float(int(b.x) * 10 + int(b.y));", 1},
		{"Unsigned Compare", "uint a = 0u - 1u; return float(a > 1u);", 1},
		{"Signed Compare", "int a = 0 - 1; return float(a > 1);", 0},

		// equality
		{"Vector Equal", "return float(vec3(1.0, 2.0, 3.0) == vec3(1.0, 2.0, 3.0));", 1},
		{"Vector Not Equal One Component", "return float(vec3(1.0, 2.0, 3.0) != vec3(1.0, 2.0, 4.0));", 1},
		{"Vector Equal Scalar", "return float(vec2(1.0) == 1.0) + float(vec2(1.0, 2.0) == 1.0);", 1},
		{"Equality Promotes", "return float(ivec2(1, 2) == vec2(1.0, 2.0));", 1},
		{"Matrix Equal", "mat2 a = mat2(1.0); mat2 b = mat2(vec2(1.0, 0.0), vec2(0.0, 1.0)); return float(a == b) + float(a != b);", 1},
		{"Bool Vector Equal", "return float(bvec2(true, false) == bvec2(1.0, 0.0));", 1},
		{"Array Equal", "float a[2] = {1.0, 2.0}; float b[2] = float[2](1.0, 2.0); return float(a == b);", 1},

		// bitwise, shifts
		{"Ivec Shift", "ivec2 v = ivec2(1, 3) << 2; return float(v.x + v.y);", 16},
		{"Arithmetic Shift", "return float(-16 >> 2);", -4},
		{"Logical Shift", "uint u = 0u - 16u; return float(u >> 28);", 15},
		{"Per Component Shift", "ivec2 v = ivec2(1, 1) << ivec2(1, 2); return float(v.x * 10 + v.y);", 24},
		{"Uvec And", "uvec2 v = uvec2(12u, 10u) & 6u; return float(v.x * 10u + v.y);", 42},
		{"Ivec Complement", "ivec2 v = ~ivec2(0, 5); return float(v.x * 10 + v.y);", -16},
		{"Int Uint Mix", "uint u = 3u | 4; return float(u);", 7},

		// increment, decrement
		{"Prefix Increment", "int x = 5; int y = ++x; return float(x * 10 + y);", 66},
		{"Postfix Decrement", "int x = 5; int y = x--; return float(x * 10 + y);", 45},
		{"Vector Postfix", "vec2 v = vec2(1.0, 2.0); vec2 old = v++; return old.x + old.y + v.x + v.y;", 8},
		{"Matrix Prefix", "mat2 m = mat2(1.0); ++m; return m[0][0] + m[0][1];", 3},
		{"Float Decrement", "float f = 0.5; f--; --f; return f;", -1.5},
		{"Swizzle Increment", "vec3 v = vec3(1.0); v.zx++; return v.x + v.y * 10.0 + v.z * 100.0;", 212},

		// compound assignment
		{"Vector Scaled", "vec3 v = vec3(1.0, 2.0, 3.0); v *= 2.0; return v.z;", 6},
		{"Swizzle Compound", "vec4 v = vec4(1.0); v.xy += vec2(1.0, 2.0); return v.x + v.y + v.z;", 6},
		{"Matrix Compound Product", "mat2 m = mat2(0.0, 1.0, -1.0, 0.0); m *= m; return m[0][0] + m[1][1] + m[0][1];", -2},
		{"Vector Times Matrix Column", "mat2 m = mat2(1.0, 2.0, 3.0, 4.0); m[0] *= m[1]; return m[0][0] + m[0][1];", 11},
		{"Compound Value", "int x = 2; int y = (x += 3) * 2; return float(y);", 10},
		{"Compound Widens Right Operand", "float f = 1.0; f += 2; return f;", 3},
		{"Compound Divide Int", "int x = 7; x /= 2; x %= 2; return float(x);", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runFloat(t, tt.body); !near(got, tt.want) {
				t.Errorf("expected %g, got %g", tt.want, got)
			}
		})
	}
}

// Only the selected arm of ?: and the deciding operands of && and || run.
func TestShortCircuit(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int32
	}{
		{"And Skips", "int n = 0; bool b = false && (n++ > 0); return n;", 0},
		{"And Runs", "int n = 0; bool b = true && (n++ > 0); return n;", 1},
		{"Or Skips", "int n = 0; bool b = true || (n++ > 0); return n;", 0},
		{"Or Runs", "int n = 0; bool b = false || (n++ > 0); return n;", 1},
		{"Xor Runs Both", "int n = 0; bool b = true ^^ (n++ > 0); return n;", 1},
		{"Ternary Then", "int n = 0; int m = 0; int r = true ? n++ : m++; return n * 10 + m;", 10},
		{"Ternary Else", "int n = 0; int m = 0; int r = false ? n++ : m++; return n * 10 + m;", 1},
		{"Ternary Vector", "vec2 v = 1 > 2 ? vec2(1.0) : vec2(2.0, 3.0); return int(v.x + v.y);", 5},
		{"Ternary Widens Else", "float f = true ? 1.5 : 2; return int(f * 2.0);", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runInt(t, tt.body); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestOperatorErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		op       string
		expected string
	}{
		{"Vector Shape Mismatch", "vec3 v = vec3(1.0) + vec2(1.0);", "operator +", "operands of the same shape or a scalar"},
		{"Vector Times Matrix", "vec2 v = vec2(1.0) * mat2(1.0);", "operator *", "operands of the same shape or a scalar"},
		{"Matrix Inner Dimension", "mat2 m = mat2(1.0) * mat3(1.0);", "operator *", "right operand with 2 rows for mat2"},
		{"Matrix Vector Dimension", "vec2 v = mat2(1.0) * vec3(1.0);", "operator *", "right operand with 2 rows for mat2"},
		{"Bool Arithmetic", "bool b = true + false;", "operator +", "numeric operands"},
		{"Array Arithmetic", "float a[2]; float b[2]; a = a + b;", "operator +", "numeric operands"},
		{"Float Bitwise", "float f = 1.0 & 2.0;", "operator &", "int or uint operands"},
		{"Float Shift", "float f = 1.0 << 2;", "operator <<", "int or uint operands"},
		{"Shift Count Shape", "ivec2 v = ivec2(1) << ivec3(1);", "operator <<", "scalar or same-shape shift count"},
		{"Matrix Relational", "bool b = mat2(1.0) < mat2(2.0);", "operator <", "numeric scalar or vector operands"},
		{"Bool Relational", "bool b = true < false;", "operator <", "numeric scalar or vector operands"},
		{"Equality Kinds", "bool b = true == 1;", "operator ==", "operands of the same kind"},
		{"Array Equality Types", "float a[2]; float b[3]; bool e = a == b;", "operator ==", "arrays of the same type"},
		{"Negate Bool", "bool b = -true;", "unary -", "numeric operand"},
		{"Not Float", "bool b = !1.0;", "unary !", "bool operand"},
		{"Complement Float", "float f = ~1.0;", "unary ~", "int or uint operand"},
		{"Logical Float", "bool b = 1.0 && true;", "operator &&", "bool operand"},
		{"Logical Right Vector", "bool b = true && bvec2(true);", "operator &&", "bool operand"},
		{"Increment Bool", "bool b; b++;", "operator ++", "numeric target"},
		{"Increment Array", "float a[2]; a++;", "operator ++", "numeric target"},
		{"Compound Narrowing", "int x = 5; x += 1.5;", "assignment to x", "int"},
		{"Assign Shape", "vec3 v; v.xy = vec3(1.0);", "assignment to v.xy", "vec2"},
		{"Ternary Condition", "float f = 1 ? 1.0 : 2.0;", "?: condition", "bool"},
		{"Ternary Branches", "float f = true ? 1 : 2.0;", "?: branches", "int"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := compileError(t, "float main() {\n"+tt.body+"\nreturn 0.0;\n}")
			if te.Op != tt.op {
				t.Errorf("op: expected %q, got %q", tt.op, te.Op)
			}
			if !strings.Contains(te.Expected, tt.expected) {
				t.Errorf("expected: want %q, got %q", tt.expected, te.Expected)
			}
			if te.Pos.Line != 2 {
				t.Errorf("expected error on line 2, got %s", te.Pos)
			}
		})
	}
}
