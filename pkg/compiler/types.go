package compiler

import (
	"fmt"
	"math"
	"strings"
)

// WordSize is the byte width of every primitive on the target.
const WordSize = 4

// MaxArrayBytes bounds an array's total size so every byte offset into it
// fits a 32-bit word.
const MaxArrayBytes = math.MaxInt32

// ScalarKind is the component kind of scalars and vectors.
type ScalarKind uint8

const (
	Float ScalarKind = iota
	Int
	UInt
	Bool
)

func (k ScalarKind) String() string {
	switch k {
	case Float:
		return "float"
	case Int:
		return "int"
	case UInt:
		return "uint"
	case Bool:
		return "bool"
	}
	return fmt.Sprintf("ScalarKind(%d)", int(k))
}

// vectorPrefix is the GLSL prefix for vectors of each kind ("" for float).
func (k ScalarKind) vectorPrefix() string {
	switch k {
	case Int:
		return "i"
	case UInt:
		return "u"
	case Bool:
		return "b"
	}
	return ""
}

// TypeKind discriminates the Type union.
type TypeKind uint8

const (
	KindVoid TypeKind = iota
	KindScalar
	KindVector
	KindMatrix
	KindArray
)

// Type is the closed union Scalar | Vector | Matrix | Array (plus Void for
// function results). Only the fields belonging to Kind are meaningful.
//
// Matrices are column-major: Cols columns, each a vector of Rows floats.
type Type struct {
	Kind   TypeKind
	Scalar ScalarKind // Scalar, Vector (Float for Matrix)
	N      int        // Vector arity
	Cols   int        // Matrix
	Rows   int        // Matrix
	Elem   *Type      // Array
	Size   int        // Array

	elemBytes int // Array: cached byte size of one element
}

var (
	VoidType  = Type{Kind: KindVoid}
	FloatType = ScalarType(Float)
	IntType   = ScalarType(Int)
	UIntType  = ScalarType(UInt)
	BoolType  = ScalarType(Bool)
)

func ScalarType(k ScalarKind) Type { return Type{Kind: KindScalar, Scalar: k} }

func VectorType(k ScalarKind, n int) Type {
	if n < 2 || n > 4 {
		panic(fmt.Sprintf("compiler: vector arity %d", n))
	}
	return Type{Kind: KindVector, Scalar: k, N: n}
}

func MatrixType(cols, rows int) Type {
	if cols < 2 || cols > 4 || rows < 2 || rows > 4 {
		panic(fmt.Sprintf("compiler: matrix %dx%d", cols, rows))
	}
	return Type{Kind: KindMatrix, Scalar: Float, Cols: cols, Rows: rows}
}

// ArrayType wraps elem in an array of size elements and caches the element
// byte size.
func ArrayType(elem Type, size int) Type {
	e := elem
	return Type{Kind: KindArray, Elem: &e, Size: size, elemBytes: e.ElementByteSize()}
}

// builtinTypes maps every type keyword to its Type.
var builtinTypes = func() map[string]Type {
	m := map[string]Type{
		"void":  VoidType,
		"float": FloatType,
		"int":   IntType,
		"uint":  UIntType,
		"bool":  BoolType,
	}
	for _, k := range []ScalarKind{Float, Int, UInt, Bool} {
		for n := 2; n <= 4; n++ {
			m[fmt.Sprintf("%svec%d", k.vectorPrefix(), n)] = VectorType(k, n)
		}
	}
	for c := 2; c <= 4; c++ {
		m[fmt.Sprintf("mat%d", c)] = MatrixType(c, c)
		for r := 2; r <= 4; r++ {
			m[fmt.Sprintf("mat%dx%d", c, r)] = MatrixType(c, r)
		}
	}
	return m
}()

func (t Type) IsVoid() bool   { return t.Kind == KindVoid }
func (t Type) IsScalar() bool { return t.Kind == KindScalar }
func (t Type) IsVector() bool { return t.Kind == KindVector }
func (t Type) IsMatrix() bool { return t.Kind == KindMatrix }
func (t Type) IsArray() bool  { return t.Kind == KindArray }

// IsNumeric reports whether t is built from float, int or uint components
// (arrays excluded).
func (t Type) IsNumeric() bool {
	switch t.Kind {
	case KindScalar, KindVector:
		return t.Scalar != Bool
	case KindMatrix:
		return true
	}
	return false
}

// IsInteger reports whether t is an int/uint scalar or vector.
func (t Type) IsInteger() bool {
	return (t.Kind == KindScalar || t.Kind == KindVector) && (t.Scalar == Int || t.Scalar == UInt)
}

// IsBool reports whether t is a bool scalar or vector.
func (t Type) IsBool() bool {
	return (t.Kind == KindScalar || t.Kind == KindVector) && t.Scalar == Bool
}

// ComponentCount is the number of primitive words the type flattens to.
// For arrays it counts every word of every element.
func (t Type) ComponentCount() int {
	switch t.Kind {
	case KindScalar:
		return 1
	case KindVector:
		return t.N
	case KindMatrix:
		return t.Cols * t.Rows
	case KindArray:
		return t.Size * t.Elem.ComponentCount()
	}
	return 0
}

// ElementByteSize is the number of bytes a value of type t occupies inside
// an array block.
func (t Type) ElementByteSize() int {
	switch t.Kind {
	case KindScalar:
		return WordSize
	case KindVector:
		return t.N * WordSize
	case KindMatrix:
		return t.Rows * t.Cols * WordSize
	case KindArray:
		if t.elemBytes == 0 {
			return t.Elem.ElementByteSize() * t.Size
		}
		return t.elemBytes * t.Size
	}
	return 0
}

// Stride is the byte distance between consecutive elements of an array.
func (t Type) Stride() int {
	if t.Kind != KindArray {
		return 0
	}
	if t.elemBytes == 0 {
		return t.Elem.ElementByteSize()
	}
	return t.elemBytes
}

// ComponentKind is the kind of every primitive in t. Arrays report their
// innermost element's kind.
func (t Type) ComponentKind() ScalarKind {
	if t.Kind == KindArray {
		return t.Elem.ComponentKind()
	}
	return t.Scalar
}

// ColumnType is the vector type of one matrix column.
func (t Type) ColumnType() Type { return VectorType(Float, t.Rows) }

// WithKind returns a scalar or vector of the same shape as t with
// components of kind k.
func (t Type) WithKind(k ScalarKind) Type {
	switch t.Kind {
	case KindScalar:
		return ScalarType(k)
	case KindVector:
		return VectorType(k, t.N)
	}
	return t
}

// shapeOf returns a scalar or vector type of kind k with n components.
func shapeOf(k ScalarKind, n int) Type {
	if n == 1 {
		return ScalarType(k)
	}
	return VectorType(k, n)
}

// Equal reports structural equality.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindVoid:
		return true
	case KindScalar:
		return t.Scalar == o.Scalar
	case KindVector:
		return t.Scalar == o.Scalar && t.N == o.N
	case KindMatrix:
		return t.Cols == o.Cols && t.Rows == o.Rows
	case KindArray:
		return t.Size == o.Size && t.Elem.Equal(*o.Elem)
	}
	return false
}

// SameShape reports whether t and o have the same shape, ignoring the
// component kind.
func (t Type) SameShape(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindVector:
		return t.N == o.N
	case KindMatrix:
		return t.Cols == o.Cols && t.Rows == o.Rows
	case KindArray:
		return t.Size == o.Size && t.Elem.Equal(*o.Elem)
	}
	return true
}

func (t Type) String() string {
	switch t.Kind {
	case KindVoid:
		return "void"
	case KindScalar:
		return t.Scalar.String()
	case KindVector:
		return fmt.Sprintf("%svec%d", t.Scalar.vectorPrefix(), t.N)
	case KindMatrix:
		if t.Cols == t.Rows {
			return fmt.Sprintf("mat%d", t.Cols)
		}
		return fmt.Sprintf("mat%dx%d", t.Cols, t.Rows)
	case KindArray:
		var dims strings.Builder
		e := t
		for e.Kind == KindArray {
			fmt.Fprintf(&dims, "[%d]", e.Size)
			e = *e.Elem
		}
		return e.String() + dims.String()
	}
	return "?"
}

// constEvaluator folds an expression to an integer constant, reporting
// false when it is not one.
type constEvaluator func(Expr) (int64, bool)

// resolveType turns a type specifier into a Type. Dimensions are resolved
// outermost-first; an unsized dimension takes its length from init, which
// must then be an initializer list or an array-valued constructor.
func resolveType(spec *TypeSpec, init Expr, eval constEvaluator) (Type, error) {
	base, ok := builtinTypes[spec.Base]
	if !ok {
		return Type{}, &TypeError{Op: "type", Expected: "type name", Actual: spec.Base, Pos: spec.Pos}
	}
	if len(spec.Dims) == 0 {
		return base, nil
	}
	if base.IsVoid() {
		return Type{}, &TypeError{Op: "array declaration", Expected: "non-void element type", Actual: "void", Pos: spec.Pos}
	}

	sizes := make([]int, len(spec.Dims))
	for i, d := range spec.Dims {
		if d == nil {
			n, err := inferredDim(init, i, spec)
			if err != nil {
				return Type{}, err
			}
			sizes[i] = n
			continue
		}
		v, ok := eval(d)
		if !ok {
			return Type{}, &TypeError{Op: "array size", Expected: "integer constant expression", Actual: d.String(), Pos: exprPos(d)}
		}
		if v <= 0 {
			return Type{}, &TypeError{Op: "array size", Expected: "positive size", Actual: fmt.Sprint(v), Pos: exprPos(d)}
		}
		if v > MaxArrayBytes {
			return Type{}, &TypeError{Op: "array size", Expected: fmt.Sprintf("at most %d bytes", MaxArrayBytes), Actual: fmt.Sprint(v), Pos: exprPos(d)}
		}
		sizes[i] = int(v)
	}

	t := base
	for i := len(sizes) - 1; i >= 0; i-- {
		if int64(sizes[i]) > MaxArrayBytes/int64(t.ElementByteSize()) {
			pos := spec.Pos
			if spec.Dims[i] != nil {
				pos = exprPos(spec.Dims[i])
			}
			return Type{}, &TypeError{Op: "array size", Expected: fmt.Sprintf("at most %d bytes", MaxArrayBytes),
				Actual: fmt.Sprintf("%d elements of %d bytes", sizes[i], t.ElementByteSize()), Pos: pos}
		}
		t = ArrayType(t, sizes[i])
	}
	return t, nil
}

// inferredDim finds the length of dimension dim from the initializer. Inner
// dimensions follow the first element at each level.
func inferredDim(init Expr, dim int, spec *TypeSpec) (int, error) {
	cur := init
	for level := 0; ; level++ {
		var n int
		var first Expr
		switch e := cur.(type) {
		case *InitializerList:
			n = len(e.Elements)
			if n > 0 {
				first = e.Elements[0]
			}
		case *ConstructorExpr:
			if len(e.Type.Dims) == 0 {
				return 0, unsizedError(spec, init)
			}
			n = len(e.Args)
			if n > 0 {
				first = e.Args[0]
			}
		default:
			return 0, unsizedError(spec, init)
		}
		if level == dim {
			if n == 0 {
				return 0, &TypeError{Op: "array size", Expected: "non-empty initializer", Actual: "{}", Pos: spec.Pos}
			}
			return n, nil
		}
		if first == nil {
			return 0, unsizedError(spec, init)
		}
		cur = first
	}
}

func unsizedError(spec *TypeSpec, init Expr) error {
	actual := "no initializer"
	if init != nil {
		actual = init.String()
	}
	return &TypeError{Op: "array size", Expected: "initializer list for unsized array", Actual: actual, Pos: spec.Pos}
}
