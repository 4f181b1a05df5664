package compiler

import (
	"errors"
	"strings"
	"testing"
)

func dims(sizes ...int) []Expr {
	out := make([]Expr, len(sizes))
	for i, n := range sizes {
		if n > 0 {
			out[i] = &IntLiteral{Value: int64(n)}
		}
	}
	return out
}

// parseExpr parses src as the only expression statement of a function body.
func parseExpr(t *testing.T, src string) Expr {
	t.Helper()
	stmts := parseBody(t, src+";")
	es, ok := stmts[0].(*ExprStmt)
	if !ok {
		t.Fatalf("expected *ExprStmt, got %T", stmts[0])
	}
	return es.Expr
}

func TestResolveType(t *testing.T) {
	eval := constFolder{}.intValue
	tests := []struct {
		name       string
		spec       *TypeSpec
		init       string
		want       string
		components int
		bytes      int
		stride     int
	}{
		{name: "Scalar", spec: &TypeSpec{Base: "uint"}, want: "uint", components: 1, bytes: 4},
		{name: "Vector", spec: &TypeSpec{Base: "bvec3"}, want: "bvec3", components: 3, bytes: 12},
		{name: "Square Matrix", spec: &TypeSpec{Base: "mat3x3"}, want: "mat3", components: 9, bytes: 36},
		{name: "Non-square Matrix", spec: &TypeSpec{Base: "mat2x3"}, want: "mat2x3", components: 6, bytes: 24},
		{name: "Array", spec: &TypeSpec{Base: "vec2", Dims: dims(5)}, want: "vec2[5]", components: 10, bytes: 40, stride: 8},
		{name: "Nested Array", spec: &TypeSpec{Base: "float", Dims: dims(3, 2)}, want: "float[3][2]", components: 6, bytes: 24, stride: 8},
		{name: "Unsized From List", spec: &TypeSpec{Base: "int", Dims: dims(0)}, init: "{1, 2, 3}", want: "int[3]", components: 3, bytes: 12, stride: 4},
		{name: "Unsized Nested", spec: &TypeSpec{Base: "float", Dims: dims(0, 0)}, init: "{{1.0, 2.0}, {3.0, 4.0}, {5.0}}", want: "float[3][2]", components: 6, bytes: 24, stride: 8},
		{name: "Unsized From Constructor", spec: &TypeSpec{Base: "vec3", Dims: dims(0)}, init: "vec3[](a, b)", want: "vec3[2]", components: 6, bytes: 24, stride: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var init Expr
			switch {
			case strings.HasPrefix(tt.init, "{"):
				init = parseBody(t, "float tmp[] = "+tt.init+";")[0].(*VariableDecl).Init
			case tt.init != "":
				init = parseExpr(t, "x = "+tt.init).(*AssignExpr).Value
			}
			got, err := resolveType(tt.spec, init, eval)
			if err != nil {
				t.Fatalf("resolveType failed: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("type: expected %s, got %s", tt.want, got)
			}
			if got.ComponentCount() != tt.components {
				t.Errorf("components: expected %d, got %d", tt.components, got.ComponentCount())
			}
			if got.ElementByteSize() != tt.bytes {
				t.Errorf("bytes: expected %d, got %d", tt.bytes, got.ElementByteSize())
			}
			if got.Stride() != tt.stride {
				t.Errorf("stride: expected %d, got %d", tt.stride, got.Stride())
			}
		})
	}
}

func TestResolveTypeErrors(t *testing.T) {
	eval := constFolder{}.intValue
	tests := []struct {
		name string
		spec *TypeSpec
		init Expr
		want string
	}{
		{"Unknown Type", &TypeSpec{Base: "sampler2D"}, nil, "type: expected type name, got sampler2D"},
		{"Void Array", &TypeSpec{Base: "void", Dims: dims(2)}, nil, "non-void element type"},
		{"Zero Size", &TypeSpec{Base: "float", Dims: []Expr{&IntLiteral{Value: 0}}}, nil, "positive size"},
		{"Non-constant Size", &TypeSpec{Base: "float", Dims: []Expr{&VarRef{Name: "n"}}}, nil, "integer constant expression, got n"},
		{"Float Size", &TypeSpec{Base: "float", Dims: []Expr{&FloatLiteral{Value: 2}}}, nil, "integer constant expression"},
		{"Unsized Without Initializer", &TypeSpec{Base: "float", Dims: dims(0)}, nil, "got no initializer"},
		{"Unsized From Scalar", &TypeSpec{Base: "float", Dims: dims(0)}, &VarRef{Name: "v"}, "initializer list for unsized array"},
		{"Unsized Empty List", &TypeSpec{Base: "float", Dims: dims(0)}, &InitializerList{}, "non-empty initializer"},
		{"Too Many Bytes", &TypeSpec{Base: "float", Dims: dims(1 << 30)}, nil, "array size: expected at most 2147483647 bytes, got 1073741824 elements of 4 bytes"},
		{"Too Many Bytes Nested", &TypeSpec{Base: "vec4", Dims: dims(65536, 65536)}, nil, "array size: expected at most 2147483647 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolveType(tt.spec, tt.init, eval)
			var te *TypeError
			if !errors.As(err, &te) {
				t.Fatalf("expected *TypeError, got %v", err)
			}
			if !strings.Contains(te.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %q", tt.want, te.Error())
			}
		})
	}
}

// The largest array whose byte offsets fit a word still resolves.
func TestResolveTypeSizeLimit(t *testing.T) {
	eval := constFolder{}.intValue
	got, err := resolveType(&TypeSpec{Base: "float", Dims: dims(MaxArrayBytes / WordSize)}, nil, eval)
	if err != nil {
		t.Fatalf("resolveType failed: %v", err)
	}
	if got.ElementByteSize() != MaxArrayBytes/WordSize*WordSize {
		t.Errorf("unexpected size %d", got.ElementByteSize())
	}

	te := compileError(t, "float main() {\nfloat a[1073741824];\nreturn a[0];\n}")
	if te.Op != "array size" || te.Pos.Line != 2 {
		t.Errorf("expected an array size error on line 2, got %v", te)
	}
}

func TestTypeRelations(t *testing.T) {
	v3 := VectorType(Float, 3)
	if !v3.Equal(VectorType(Float, 3)) || v3.Equal(VectorType(Int, 3)) {
		t.Error("vector equality")
	}
	if !v3.SameShape(VectorType(Bool, 3)) || v3.SameShape(VectorType(Float, 2)) {
		t.Error("vector shape")
	}
	if !ArrayType(v3, 2).Equal(ArrayType(VectorType(Float, 3), 2)) || ArrayType(v3, 2).Equal(ArrayType(v3, 3)) {
		t.Error("array equality")
	}
	if MatrixType(2, 3).Equal(MatrixType(3, 2)) {
		t.Error("mat2x3 equal to mat3x2")
	}
	if got := MatrixType(4, 2).ColumnType(); !got.Equal(VectorType(Float, 2)) {
		t.Errorf("mat4x2 column: expected vec2, got %s", got)
	}
	if got := VectorType(Int, 4).WithKind(Bool); got.String() != "bvec4" {
		t.Errorf("WithKind: expected bvec4, got %s", got)
	}
	if got := ArrayType(ArrayType(UIntType, 2), 3).ComponentKind(); got != UInt {
		t.Errorf("ComponentKind: expected uint, got %s", got)
	}
	if !MatrixType(2, 2).IsNumeric() || BoolType.IsNumeric() || !VectorType(UInt, 2).IsInteger() || !VectorType(Bool, 2).IsBool() {
		t.Error("type classes")
	}
}

func TestConstFold(t *testing.T) {
	globals := NewSymbolTable()
	if err := globals.Define(constSym("N", 4)); err != nil {
		t.Fatal(err)
	}
	f := constFolder{lookup: globals.Lookup}

	tests := []struct {
		expr string
		want string
	}{
		{"1 + 2 * 3", "7"},
		{"-7 / 2", "-3"},
		{"-7 % 3", "-1"},
		{"5 / 0", "0"},
		{"1.5 * 2", "3"},
		{"7.5 % 2.0", "1.5"},
		{"5u - 6u", "4294967295u"},
		{"~0u", "4294967295u"},
		{"1 << 33", "2"},
		{"-8 >> 1", "-4"},
		{"0x80000000u >> 4", "134217728u"},
		{"int(2.9)", "2"},
		{"int(-2.9)", "-2"},
		{"uint(-1.0)", "0u"},
		{"float(3)", "3"},
		{"bool(2)", "true"},
		{"true && !false", "true"},
		{"true ^^ true", "false"},
		{"1 == 1u", "true"},
		{"2 > 1 ? 1.0 : 2.0", "1"},
		{"N * 2 + 1", "9"},
		{"2147483647 + 1", "-2147483648"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, ok := f.fold(parseExpr(t, tt.expr))
			if !ok {
				t.Fatalf("%s did not fold", tt.expr)
			}
			if got.String() != tt.want {
				t.Errorf("%s: expected %s, got %s", tt.expr, tt.want, got)
			}
		})
	}

	for _, expr := range []string{"x + 1", "1 + true", "-true", "true ? 1 : 2.0", "vec2(1.0)", "f(1)", "1 < 2 && 3"} {
		t.Run("NotConstant/"+expr, func(t *testing.T) {
			if v, ok := f.fold(parseExpr(t, expr)); ok {
				t.Errorf("%s folded to %s", expr, v)
			}
		})
	}

	if _, ok := f.intValue(parseExpr(t, "2.0")); ok {
		t.Error("intValue accepted a float")
	}
}
