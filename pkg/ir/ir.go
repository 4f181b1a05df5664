// Package ir defines the primitive instruction stream the shader compiler
// hands to a backend. The vocabulary is deliberately small: named slots for
// scalar storage, fixed-size blocks plus load/store for arrays, constants,
// integer compares, boolean logic and a conditional trap. Arithmetic,
// conversion and control-flow opcodes complete the set needed to run a
// function body.
//
// Pipeline: shader source → compiler.Compile → ir.Program → emu.Machine
package ir

import "fmt"

// Op identifies an instruction.
type Op uint8

const (
	OpNop Op = iota

	// Storage
	OpSlot   // allocate-named-slot            slot sN
	OpRSlot  // read-named-slot                %d = rslot sN
	OpWSlot  // write-named-slot               wslot sN, %a
	OpAlloca // allocate-fixed-size-block      %d = alloca IMM
	OpLoad   // load(pointer, byte_offset)     %d = load %ptr, %off
	OpStore  // store(pointer, byte_offset, v) store %ptr, %off, %v

	// Constants
	OpIConst // %d = iconst IMM
	OpFConst // %d = fconst F   (Q16.16 on the target)

	// Compare / boolean
	OpICmp // %d = icmp.PRED %a, %b
	OpBAnd
	OpBOr
	OpBXor
	OpBNot
	OpTrap // trap %cond, CODE

	// Integer arithmetic
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpUDiv
	OpRem
	OpURem
	OpNeg
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpUShr
	OpNot

	// Fixed-point arithmetic (add/sub/neg share the integer forms)
	OpFMul
	OpFDiv
	OpFRem

	// Conversions
	OpIToF
	OpUToF
	OpFToI
	OpFToU

	OpSelect // %d = select %cond, %t, %f

	// Control flow
	OpLabel
	OpJmp
	OpJz
	OpCall
	OpRet
)

var opNames = [...]string{
	OpNop:    "nop",
	OpSlot:   "slot",
	OpRSlot:  "rslot",
	OpWSlot:  "wslot",
	OpAlloca: "alloca",
	OpLoad:   "load",
	OpStore:  "store",
	OpIConst: "iconst",
	OpFConst: "fconst",
	OpICmp:   "icmp",
	OpBAnd:   "band",
	OpBOr:    "bor",
	OpBXor:   "bxor",
	OpBNot:   "bnot",
	OpTrap:   "trap",
	OpAdd:    "add",
	OpSub:    "sub",
	OpMul:    "mul",
	OpDiv:    "div",
	OpUDiv:   "udiv",
	OpRem:    "rem",
	OpURem:   "urem",
	OpNeg:    "neg",
	OpAnd:    "and",
	OpOr:     "or",
	OpXor:    "xor",
	OpShl:    "shl",
	OpShr:    "shr",
	OpUShr:   "ushr",
	OpNot:    "not",
	OpFMul:   "fmul",
	OpFDiv:   "fdiv",
	OpFRem:   "frem",
	OpIToF:   "itof",
	OpUToF:   "utof",
	OpFToI:   "ftoi",
	OpFToU:   "ftou",
	OpSelect: "select",
	OpLabel:  "label",
	OpJmp:    "jmp",
	OpJz:     "jz",
	OpCall:   "call",
	OpRet:    "ret",
}

func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// OpByName maps a mnemonic back to its opcode.
func OpByName(name string) (Op, bool) {
	for i, n := range opNames {
		if n == name {
			return Op(i), true
		}
	}
	return OpNop, false
}

// IsBinary reports whether op takes two value operands and defines one result.
func (op Op) IsBinary() bool {
	switch op {
	case OpBAnd, OpBOr, OpBXor,
		OpAdd, OpSub, OpMul, OpDiv, OpUDiv, OpRem, OpURem,
		OpAnd, OpOr, OpXor, OpShl, OpShr, OpUShr,
		OpFMul, OpFDiv, OpFRem:
		return true
	}
	return false
}

// IsUnary reports whether op takes one value operand and defines one result.
func (op Op) IsUnary() bool {
	switch op {
	case OpBNot, OpNeg, OpNot, OpIToF, OpUToF, OpFToI, OpFToU:
		return true
	}
	return false
}

// Pred is the predicate of an integer compare.
type Pred uint8

const (
	PredEQ Pred = iota
	PredNE
	PredSLT
	PredSLE
	PredSGT
	PredSGE
	PredULT
	PredULE
	PredUGT
	PredUGE
)

var predNames = [...]string{"eq", "ne", "slt", "sle", "sgt", "sge", "ult", "ule", "ugt", "uge"}

func (p Pred) String() string {
	if int(p) < len(predNames) {
		return predNames[p]
	}
	return fmt.Sprintf("Pred(%d)", int(p))
}

// PredByName maps a predicate suffix ("slt", "uge", ...) to its Pred.
func PredByName(name string) (Pred, bool) {
	for i, n := range predNames {
		if n == name {
			return Pred(i), true
		}
	}
	return 0, false
}

// FaultCode identifies why a trap fired.
type FaultCode uint16

const (
	FaultNone FaultCode = iota
	// FaultIndexOutOfBounds is raised by the bounds check in front of a
	// runtime-indexed array or vector access.
	FaultIndexOutOfBounds
)

func (c FaultCode) String() string {
	switch c {
	case FaultNone:
		return "none"
	case FaultIndexOutOfBounds:
		return "array index out of bounds"
	}
	return fmt.Sprintf("fault %d", int(c))
}

// Pos is a 1-based source position. The zero Pos means "unknown". File is
// empty for the main source and names the included file otherwise.
type Pos struct {
	File string
	Line int
	Col  int
}

func (p Pos) String() string {
	if p.File != "" {
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Where renders the line for messages: "line 4" or "lib/noise.inc line 4".
func (p Pos) Where() string {
	if p.File != "" {
		return fmt.Sprintf("%s line %d", p.File, p.Line)
	}
	return fmt.Sprintf("line %d", p.Line)
}

// Value names a virtual register. Value 0 is never defined.
type Value int32

func (v Value) String() string { return fmt.Sprintf("%%%d", int32(v)) }

// Slot names a primitive storage slot of the current function.
type Slot int32

func (s Slot) String() string { return fmt.Sprintf("s%d", int32(s)) }

// Instr is a single instruction. Which fields are meaningful depends on Op.
type Instr struct {
	Op    Op
	Dst   Value
	A     Value
	B     Value
	C     Value
	Slot  Slot
	Imm   int64
	F     float64
	Pred  Pred
	Fault FaultCode
	Label string

	Callee string
	Args   []Value // call arguments, return values
	Dsts   []Value // call results

	Pos Pos
}

// Func is the lowered body of one shader function.
//
// On entry Values 1..NumParams hold the arguments in declaration order,
// one word per primitive component.
type Func struct {
	Name       string
	NumParams  int
	NumResults int
	NumValues  int
	NumSlots   int
	Instrs     []Instr
}

// Program is a set of lowered functions.
type Program struct {
	Funcs []*Func
}

// Lookup returns the function called name.
func (p *Program) Lookup(name string) (*Func, bool) {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}
