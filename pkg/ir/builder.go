package ir

import "fmt"

// Builder appends instructions to a function under construction.
//
// Slot and block allocations are collected in a separate prologue so that a
// declaration inside a loop body never allocates more than once per
// activation.
type Builder struct {
	fn         *Func
	prologue   []Instr
	body       []Instr
	pos        Pos
	nextLabel  int
	terminated bool
}

// NewBuilder starts a function that takes nparams argument words and
// returns nresults result words.
func NewBuilder(name string, nparams, nresults int) *Builder {
	return &Builder{
		fn: &Func{
			Name:       name,
			NumParams:  nparams,
			NumResults: nresults,
			NumValues:  nparams,
		},
	}
}

// Name returns the name of the function being built.
func (b *Builder) Name() string { return b.fn.Name }

// Param returns the value holding argument word i.
func (b *Builder) Param(i int) Value {
	if i < 0 || i >= b.fn.NumParams {
		panic(fmt.Sprintf("ir: param %d out of range", i))
	}
	return Value(i + 1)
}

// SetPos sets the source position attached to subsequent instructions.
func (b *Builder) SetPos(p Pos) { b.pos = p }

// Pos returns the current source position.
func (b *Builder) Pos() Pos { return b.pos }

func (b *Builder) newValue() Value {
	b.fn.NumValues++
	return Value(b.fn.NumValues)
}

func (b *Builder) emit(in Instr) {
	in.Pos = b.pos
	b.body = append(b.body, in)
	b.terminated = in.Op == OpRet || in.Op == OpJmp
}

// Terminated reports whether the last emitted instruction ends the block
// (ret or jmp) so falling through is impossible.
func (b *Builder) Terminated() bool { return b.terminated }

// Slot allocates a new named primitive slot.
func (b *Builder) Slot() Slot {
	s := Slot(b.fn.NumSlots)
	b.fn.NumSlots++
	b.prologue = append(b.prologue, Instr{Op: OpSlot, Slot: s, Pos: b.pos})
	return s
}

// ReadSlot reads a named slot.
func (b *Builder) ReadSlot(s Slot) Value {
	d := b.newValue()
	b.emit(Instr{Op: OpRSlot, Dst: d, Slot: s})
	return d
}

// WriteSlot writes v to a named slot.
func (b *Builder) WriteSlot(s Slot, v Value) {
	b.emit(Instr{Op: OpWSlot, Slot: s, A: v})
}

// Alloca allocates a fixed-size block of the given byte length and returns
// its base pointer. The block lives until the function returns.
func (b *Builder) Alloca(bytes int) Value {
	d := b.newValue()
	b.prologue = append(b.prologue, Instr{Op: OpAlloca, Dst: d, Imm: int64(bytes), Pos: b.pos})
	return d
}

// Load reads one word at ptr+off.
func (b *Builder) Load(ptr, off Value) Value {
	d := b.newValue()
	b.emit(Instr{Op: OpLoad, Dst: d, A: ptr, B: off})
	return d
}

// Store writes v to ptr+off.
func (b *Builder) Store(ptr, off, v Value) {
	b.emit(Instr{Op: OpStore, A: ptr, B: off, C: v})
}

// IConst materialises an integer constant.
func (b *Builder) IConst(v int64) Value {
	d := b.newValue()
	b.emit(Instr{Op: OpIConst, Dst: d, Imm: v})
	return d
}

// FConst materialises a float constant.
func (b *Builder) FConst(f float64) Value {
	d := b.newValue()
	b.emit(Instr{Op: OpFConst, Dst: d, F: f})
	return d
}

// ICmp compares two words.
func (b *Builder) ICmp(p Pred, x, y Value) Value {
	d := b.newValue()
	b.emit(Instr{Op: OpICmp, Dst: d, Pred: p, A: x, B: y})
	return d
}

// Binary emits a two-operand instruction.
func (b *Builder) Binary(op Op, x, y Value) Value {
	if !op.IsBinary() {
		panic(fmt.Sprintf("ir: %s is not a binary op", op))
	}
	d := b.newValue()
	b.emit(Instr{Op: op, Dst: d, A: x, B: y})
	return d
}

// Unary emits a one-operand instruction.
func (b *Builder) Unary(op Op, x Value) Value {
	if !op.IsUnary() {
		panic(fmt.Sprintf("ir: %s is not a unary op", op))
	}
	d := b.newValue()
	b.emit(Instr{Op: op, Dst: d, A: x})
	return d
}

// Select picks t when cond is non-zero, f otherwise.
func (b *Builder) Select(cond, t, f Value) Value {
	d := b.newValue()
	b.emit(Instr{Op: OpSelect, Dst: d, A: cond, B: t, C: f})
	return d
}

// Trap aborts execution with code when cond is non-zero.
func (b *Builder) Trap(cond Value, code FaultCode) {
	b.emit(Instr{Op: OpTrap, A: cond, Fault: code})
}

// NewLabel reserves a fresh label name.
func (b *Builder) NewLabel() string {
	l := fmt.Sprintf("L%d", b.nextLabel)
	b.nextLabel++
	return l
}

// Label places a label at the current position.
func (b *Builder) Label(l string) {
	b.emit(Instr{Op: OpLabel, Label: l})
}

// Jmp jumps unconditionally.
func (b *Builder) Jmp(l string) {
	b.emit(Instr{Op: OpJmp, Label: l})
}

// Jz jumps when cond is zero.
func (b *Builder) Jz(cond Value, l string) {
	b.emit(Instr{Op: OpJz, A: cond, Label: l})
}

// Call invokes callee and returns nres result words.
func (b *Builder) Call(callee string, args []Value, nres int) []Value {
	dsts := make([]Value, nres)
	for i := range dsts {
		dsts[i] = b.newValue()
	}
	b.emit(Instr{Op: OpCall, Callee: callee, Args: append([]Value(nil), args...), Dsts: dsts})
	return dsts
}

// Ret returns vals to the caller.
func (b *Builder) Ret(vals []Value) {
	b.emit(Instr{Op: OpRet, Args: append([]Value(nil), vals...)})
}

// Finish joins prologue and body and returns the function. The builder must
// not be used afterwards.
func (b *Builder) Finish() *Func {
	instrs := make([]Instr, 0, len(b.prologue)+len(b.body))
	instrs = append(instrs, b.prologue...)
	instrs = append(instrs, b.body...)
	b.fn.Instrs = instrs
	fn := b.fn
	b.fn = nil
	return fn
}
