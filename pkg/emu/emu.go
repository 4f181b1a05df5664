// Package emu executes an ir.Program on a software model of the fixed-point
// target: 32-bit words, Q16.16 floats, and a byte-addressed stack memory from
// which each activation carves its array blocks.
package emu

import (
	"fmt"

	"fixshade/pkg/ir"
)

// MemorySize is the size of the emulated stack memory in bytes.
const MemorySize = 65536

// DefaultStepLimit bounds a single Run so a runaway loop cannot hang the host.
const DefaultStepLimit = 1 << 24

// DefaultMaxDepth bounds the call stack.
const DefaultMaxDepth = 64

// Host-side faults. They never come from a trap instruction and are kept
// apart from the codes the compiler emits.
const (
	FaultStepLimit ir.FaultCode = 0x100 + iota
	FaultStackOverflow
	FaultMemory
	FaultUnknownFunction
	FaultArity
)

// Fault is returned when execution stops abnormally.
type Fault struct {
	Code   ir.FaultCode
	Func   string
	Pos    ir.Pos
	Detail string
}

func (f *Fault) Error() string {
	msg := faultText(f.Code)
	if f.Detail != "" {
		msg += ": " + f.Detail
	}
	if f.Pos.Line > 0 {
		return fmt.Sprintf("%s: %s (in %s)", f.Pos.Where(), msg, f.Func)
	}
	if f.Func != "" {
		return fmt.Sprintf("%s (in %s)", msg, f.Func)
	}
	return msg
}

func faultText(c ir.FaultCode) string {
	switch c {
	case FaultStepLimit:
		return "step limit exceeded"
	case FaultStackOverflow:
		return "stack overflow"
	case FaultMemory:
		return "memory access violation"
	case FaultUnknownFunction:
		return "unknown function"
	case FaultArity:
		return "argument count mismatch"
	}
	return c.String()
}

type frame struct {
	fn    *ir.Func
	code  *compiled
	pc    int
	vals  []int32
	slots []int32
	base  int        // SP on entry; blocks above it are released on return
	dsts  []ir.Value // caller registers receiving the results
}

type compiled struct {
	fn     *ir.Func
	labels map[string]int
}

// Machine is the emulator state.
type Machine struct {
	Memory [MemorySize]byte

	// SP is the next free byte of block memory.
	SP int

	StepLimit int64
	MaxDepth  int
	Steps     int64

	Halted bool

	funcs   map[string]*compiled
	frames  []*frame
	results []int32
	fault   *Fault
}

// NewMachine prepares prog for execution.
func NewMachine(prog *ir.Program) (*Machine, error) {
	m := &Machine{
		StepLimit: DefaultStepLimit,
		MaxDepth:  DefaultMaxDepth,
		funcs:     make(map[string]*compiled),
		Halted:    true,
	}
	for _, f := range prog.Funcs {
		c := &compiled{fn: f, labels: make(map[string]int)}
		for i, in := range f.Instrs {
			if in.Op == ir.OpLabel {
				if _, dup := c.labels[in.Label]; dup {
					return nil, fmt.Errorf("func %s: duplicate label %q", f.Name, in.Label)
				}
				c.labels[in.Label] = i
			}
		}
		for _, in := range f.Instrs {
			if in.Op == ir.OpJmp || in.Op == ir.OpJz {
				if _, ok := c.labels[in.Label]; !ok {
					return nil, fmt.Errorf("func %s: undefined label %q", f.Name, in.Label)
				}
			}
		}
		m.funcs[f.Name] = c
	}
	return m, nil
}

// Start resets the machine and enters fn with args as its parameter words.
func (m *Machine) Start(fn string, args []int32) error {
	m.frames = m.frames[:0]
	m.results = nil
	m.fault = nil
	m.Steps = 0
	m.SP = 0
	m.Halted = false
	if err := m.push(fn, args, nil); err != nil {
		m.Halted = true
		return err
	}
	return nil
}

func (m *Machine) push(name string, args []int32, dsts []ir.Value) *Fault {
	c, ok := m.funcs[name]
	if !ok {
		return m.stop(&Fault{Code: FaultUnknownFunction, Detail: name})
	}
	if len(args) != c.fn.NumParams {
		return m.stop(&Fault{Code: FaultArity, Func: name,
			Detail: fmt.Sprintf("want %d words, got %d", c.fn.NumParams, len(args))})
	}
	if m.MaxDepth > 0 && len(m.frames) >= m.MaxDepth {
		return m.stop(&Fault{Code: FaultStackOverflow, Func: name})
	}
	fr := &frame{
		fn:    c.fn,
		code:  c,
		vals:  make([]int32, c.fn.NumValues+1),
		slots: make([]int32, c.fn.NumSlots),
		base:  m.SP,
		dsts:  dsts,
	}
	copy(fr.vals[1:], args)
	m.frames = append(m.frames, fr)
	return nil
}

func (m *Machine) stop(f *Fault) *Fault {
	m.fault = f
	m.Halted = true
	return f
}

// Fault returns the fault that stopped the machine, if any.
func (m *Machine) Fault() *Fault { return m.fault }

// Results returns the words returned by the entry function once halted.
func (m *Machine) Results() []int32 { return m.results }

// Run steps until the entry function returns or a fault occurs.
func (m *Machine) Run() error {
	for !m.Halted {
		m.Step()
	}
	if m.fault != nil {
		return m.fault
	}
	return nil
}

// Call runs fn to completion and returns its result words.
func (m *Machine) Call(fn string, args ...int32) ([]int32, error) {
	if err := m.Start(fn, args); err != nil {
		return nil, err
	}
	if err := m.Run(); err != nil {
		return nil, err
	}
	return m.Results(), nil
}

func (m *Machine) alloca(fr *frame, size int) (int32, *Fault) {
	size = (size + 3) &^ 3
	if m.SP+size > len(m.Memory) {
		return 0, &Fault{Code: FaultStackOverflow, Func: fr.fn.Name,
			Detail: fmt.Sprintf("block of %d bytes", size)}
	}
	addr := m.SP
	// Fresh blocks start zeroed regardless of what a previous activation left.
	clear(m.Memory[addr : addr+size])
	m.SP += size
	return int32(addr), nil
}

func (m *Machine) checkAddr(addr int64) bool {
	return addr >= 0 && addr+4 <= int64(len(m.Memory))
}

// Read32 reads a little-endian word from memory.
func (m *Machine) Read32(addr int) int32 {
	return int32(uint32(m.Memory[addr]) | uint32(m.Memory[addr+1])<<8 |
		uint32(m.Memory[addr+2])<<16 | uint32(m.Memory[addr+3])<<24)
}

// Write32 writes a little-endian word to memory.
func (m *Machine) Write32(addr int, v int32) {
	u := uint32(v)
	m.Memory[addr] = byte(u)
	m.Memory[addr+1] = byte(u >> 8)
	m.Memory[addr+2] = byte(u >> 16)
	m.Memory[addr+3] = byte(u >> 24)
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// Step executes one instruction of the innermost frame.
func (m *Machine) Step() {
	if m.Halted {
		return
	}
	if m.StepLimit > 0 && m.Steps >= m.StepLimit {
		fr := m.frames[len(m.frames)-1]
		m.stop(&Fault{Code: FaultStepLimit, Func: fr.fn.Name})
		return
	}
	m.Steps++

	fr := m.frames[len(m.frames)-1]
	if fr.pc >= len(fr.fn.Instrs) {
		// Falling off the end behaves like a bare ret.
		m.ret(fr, nil)
		return
	}
	in := &fr.fn.Instrs[fr.pc]
	fr.pc++
	v := fr.vals

	switch in.Op {
	case ir.OpNop, ir.OpLabel, ir.OpSlot:
		// Slots are preallocated per frame.

	case ir.OpRSlot:
		v[in.Dst] = fr.slots[in.Slot]

	case ir.OpWSlot:
		fr.slots[in.Slot] = v[in.A]

	case ir.OpAlloca:
		addr, f := m.alloca(fr, int(in.Imm))
		if f != nil {
			f.Pos = in.Pos
			m.stop(f)
			return
		}
		v[in.Dst] = addr

	case ir.OpLoad:
		addr := int64(v[in.A]) + int64(v[in.B])
		if !m.checkAddr(addr) {
			m.stop(&Fault{Code: FaultMemory, Func: fr.fn.Name, Pos: in.Pos,
				Detail: fmt.Sprintf("load at 0x%X", addr)})
			return
		}
		v[in.Dst] = m.Read32(int(addr))

	case ir.OpStore:
		addr := int64(v[in.A]) + int64(v[in.B])
		if !m.checkAddr(addr) {
			m.stop(&Fault{Code: FaultMemory, Func: fr.fn.Name, Pos: in.Pos,
				Detail: fmt.Sprintf("store at 0x%X", addr)})
			return
		}
		m.Write32(int(addr), v[in.C])

	case ir.OpIConst:
		v[in.Dst] = int32(in.Imm)

	case ir.OpFConst:
		v[in.Dst] = ir.FixedFromFloat(in.F)

	case ir.OpICmp:
		v[in.Dst] = compare(in.Pred, v[in.A], v[in.B])

	case ir.OpBAnd:
		v[in.Dst] = b2i(v[in.A] != 0 && v[in.B] != 0)
	case ir.OpBOr:
		v[in.Dst] = b2i(v[in.A] != 0 || v[in.B] != 0)
	case ir.OpBXor:
		v[in.Dst] = b2i((v[in.A] != 0) != (v[in.B] != 0))
	case ir.OpBNot:
		v[in.Dst] = b2i(v[in.A] == 0)

	case ir.OpTrap:
		if v[in.A] != 0 {
			m.stop(&Fault{Code: in.Fault, Func: fr.fn.Name, Pos: in.Pos})
			return
		}

	case ir.OpAdd:
		v[in.Dst] = v[in.A] + v[in.B]
	case ir.OpSub:
		v[in.Dst] = v[in.A] - v[in.B]
	case ir.OpMul:
		v[in.Dst] = v[in.A] * v[in.B]
	case ir.OpDiv:
		if v[in.B] == 0 {
			v[in.Dst] = 0
		} else {
			v[in.Dst] = v[in.A] / v[in.B]
		}
	case ir.OpUDiv:
		if v[in.B] == 0 {
			v[in.Dst] = 0
		} else {
			v[in.Dst] = int32(uint32(v[in.A]) / uint32(v[in.B]))
		}
	case ir.OpRem, ir.OpFRem:
		if v[in.B] == 0 {
			v[in.Dst] = 0
		} else {
			v[in.Dst] = v[in.A] % v[in.B]
		}
	case ir.OpURem:
		if v[in.B] == 0 {
			v[in.Dst] = 0
		} else {
			v[in.Dst] = int32(uint32(v[in.A]) % uint32(v[in.B]))
		}
	case ir.OpNeg:
		v[in.Dst] = -v[in.A]
	case ir.OpAnd:
		v[in.Dst] = v[in.A] & v[in.B]
	case ir.OpOr:
		v[in.Dst] = v[in.A] | v[in.B]
	case ir.OpXor:
		v[in.Dst] = v[in.A] ^ v[in.B]
	case ir.OpShl:
		v[in.Dst] = v[in.A] << (uint32(v[in.B]) & 31)
	case ir.OpShr:
		v[in.Dst] = v[in.A] >> (uint32(v[in.B]) & 31)
	case ir.OpUShr:
		v[in.Dst] = int32(uint32(v[in.A]) >> (uint32(v[in.B]) & 31))
	case ir.OpNot:
		v[in.Dst] = ^v[in.A]

	case ir.OpFMul:
		v[in.Dst] = int32((int64(v[in.A]) * int64(v[in.B])) >> ir.FracBits)
	case ir.OpFDiv:
		if v[in.B] == 0 {
			v[in.Dst] = 0
		} else {
			v[in.Dst] = int32((int64(v[in.A]) << ir.FracBits) / int64(v[in.B]))
		}

	case ir.OpIToF:
		v[in.Dst] = v[in.A] << ir.FracBits
	case ir.OpUToF:
		v[in.Dst] = int32(uint32(v[in.A]) << ir.FracBits)
	case ir.OpFToI:
		v[in.Dst] = v[in.A] / ir.One
	case ir.OpFToU:
		if v[in.A] < 0 {
			v[in.Dst] = 0
		} else {
			v[in.Dst] = v[in.A] >> ir.FracBits
		}

	case ir.OpSelect:
		if v[in.A] != 0 {
			v[in.Dst] = v[in.B]
		} else {
			v[in.Dst] = v[in.C]
		}

	case ir.OpJmp:
		fr.pc = fr.code.labels[in.Label]

	case ir.OpJz:
		if v[in.A] == 0 {
			fr.pc = fr.code.labels[in.Label]
		}

	case ir.OpCall:
		args := make([]int32, len(in.Args))
		for i, a := range in.Args {
			args[i] = v[a]
		}
		if f := m.push(in.Callee, args, in.Dsts); f != nil {
			f.Pos = in.Pos
			if f.Func == "" {
				f.Func = fr.fn.Name
			}
		}

	case ir.OpRet:
		vals := make([]int32, len(in.Args))
		for i, a := range in.Args {
			vals[i] = v[a]
		}
		m.ret(fr, vals)

	default:
		m.stop(&Fault{Code: FaultMemory, Func: fr.fn.Name, Pos: in.Pos,
			Detail: fmt.Sprintf("unknown opcode %s", in.Op)})
	}
}

func (m *Machine) ret(fr *frame, vals []int32) {
	m.SP = fr.base
	m.frames = m.frames[:len(m.frames)-1]
	if len(m.frames) == 0 {
		m.results = vals
		m.Halted = true
		return
	}
	caller := m.frames[len(m.frames)-1]
	for i, d := range fr.dsts {
		if i < len(vals) {
			caller.vals[d] = vals[i]
		} else {
			caller.vals[d] = 0
		}
	}
}

func compare(p ir.Pred, a, b int32) int32 {
	switch p {
	case ir.PredEQ:
		return b2i(a == b)
	case ir.PredNE:
		return b2i(a != b)
	case ir.PredSLT:
		return b2i(a < b)
	case ir.PredSLE:
		return b2i(a <= b)
	case ir.PredSGT:
		return b2i(a > b)
	case ir.PredSGE:
		return b2i(a >= b)
	case ir.PredULT:
		return b2i(uint32(a) < uint32(b))
	case ir.PredULE:
		return b2i(uint32(a) <= uint32(b))
	case ir.PredUGT:
		return b2i(uint32(a) > uint32(b))
	case ir.PredUGE:
		return b2i(uint32(a) >= uint32(b))
	}
	return 0
}
