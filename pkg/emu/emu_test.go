package emu

import (
	"errors"
	"testing"

	"fixshade/pkg/asm"
	"fixshade/pkg/ir"
)

func load(t *testing.T, src string) *Machine {
	t.Helper()
	prog, err := asm.Assemble(src)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	m, err := NewMachine(prog)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	return m
}

func TestIntegerArithmetic(t *testing.T) {
	tests := []struct {
		op   string
		a, b int32
		want int32
	}{
		{"add", 7, 5, 12},
		{"sub", 7, 5, 2},
		{"mul", -7, 5, -35},
		{"div", -7, 2, -3},
		{"div", 7, 0, 0},
		{"rem", -7, 2, -1},
		{"rem", 7, 0, 0},
		{"udiv", -2, 2, 0x7FFFFFFF},
		{"urem", 7, 4, 3},
		{"and", 12, 10, 8},
		{"or", 12, 10, 14},
		{"xor", 12, 10, 6},
		{"shl", 1, 33, 2},
		{"shr", -8, 1, -4},
		{"ushr", -8, 28, 15},
	}
	for _, tc := range tests {
		t.Run(tc.op, func(t *testing.T) {
			m := load(t, "func f(2) 1 {\n %3 = "+tc.op+" %1, %2\n ret %3\n}")
			res, err := m.Call("f", tc.a, tc.b)
			if err != nil {
				t.Fatalf("Call: %v", err)
			}
			if res[0] != tc.want {
				t.Errorf("%d %s %d = %d, want %d", tc.a, tc.op, tc.b, res[0], tc.want)
			}
		})
	}
}

func TestFixedPoint(t *testing.T) {
	f := ir.FixedFromFloat
	tests := []struct {
		op   string
		a, b int32
		want int32
	}{
		{"fmul", f(1.5), f(2), f(3)},
		{"fmul", f(-0.5), f(0.5), f(-0.25)},
		{"fdiv", f(3), f(2), f(1.5)},
		{"fdiv", f(1), 0, 0},
		{"frem", f(5.5), f(2), f(1.5)},
		{"frem", f(-5.5), f(2), f(-1.5)},
	}
	for _, tc := range tests {
		t.Run(tc.op, func(t *testing.T) {
			m := load(t, "func f(2) 1 {\n %3 = "+tc.op+" %1, %2\n ret %3\n}")
			res, err := m.Call("f", tc.a, tc.b)
			if err != nil {
				t.Fatalf("Call: %v", err)
			}
			if res[0] != tc.want {
				t.Errorf("%v %s %v = %v, want %v", ir.FixedToFloat(tc.a), tc.op,
					ir.FixedToFloat(tc.b), ir.FixedToFloat(res[0]), ir.FixedToFloat(tc.want))
			}
		})
	}
}

func TestConversions(t *testing.T) {
	tests := []struct {
		op   string
		in   int32
		want int32
	}{
		{"itof", 3, 3 << 16},
		{"itof", -2, -2 << 16},
		{"ftoi", ir.FixedFromFloat(2.75), 2},
		{"ftoi", ir.FixedFromFloat(-2.75), -2},
		{"ftou", ir.FixedFromFloat(-1), 0},
		{"ftou", ir.FixedFromFloat(7.9), 7},
		{"neg", 5, -5},
		{"not", 0, -1},
		{"bnot", 0, 1},
		{"bnot", 4, 0},
	}
	for _, tc := range tests {
		m := load(t, "func f(1) 1 {\n %2 = "+tc.op+" %1\n ret %2\n}")
		res, err := m.Call("f", tc.in)
		if err != nil {
			t.Fatalf("%s: %v", tc.op, err)
		}
		if res[0] != tc.want {
			t.Errorf("%s(%d) = %d, want %d", tc.op, tc.in, res[0], tc.want)
		}
	}
}

func TestCompare(t *testing.T) {
	m := load(t, `
func f(2) 4 {
    %3 = icmp.slt %1, %2
    %4 = icmp.ult %1, %2
    %5 = icmp.eq %1, %2
    %6 = icmp.uge %1, %2
    ret %3, %4, %5, %6
}`)
	res, err := m.Call("f", -1, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []int32{1, 0, 0, 1}
	for i := range want {
		if res[i] != want[i] {
			t.Errorf("result %d = %d, want %d", i, res[i], want[i])
		}
	}
}

func TestLoopAndSlots(t *testing.T) {
	// sum = 0; for i = 0; i < n; i++ { sum += i }
	m := load(t, `
func sum(1) 1 {
    slot s0
    slot s1
    %2 = iconst 0
    wslot s0, %2
    wslot s1, %2
L0:
    %3 = rslot s1
    %4 = icmp.slt %3, %1
    jz %4, L1
    %5 = rslot s0
    %6 = add %5, %3
    wslot s0, %6
    %7 = iconst 1
    %8 = add %3, %7
    wslot s1, %8
    jmp L0
L1:
    %9 = rslot s0
    ret %9
}`)
	res, err := m.Call("sum", 10)
	if err != nil {
		t.Fatal(err)
	}
	if res[0] != 45 {
		t.Errorf("sum(10) = %d, want 45", res[0])
	}
}

func TestBlocksAreZeroedAndReleased(t *testing.T) {
	m := load(t, `
func main(0) 2 {
    %1, %2 = call fill()
    %3, %4 = call fill()
    ret %1, %3
}

func fill(0) 2 {
    %1 = alloca 8
    %2 = iconst 4
    %3 = load %1, %2
    %4 = iconst 99
    store %1, %2, %4
    ret %3, %4
}`)
	res, err := m.Call("main")
	if err != nil {
		t.Fatal(err)
	}
	if res[0] != 0 || res[1] != 0 {
		t.Errorf("fresh block read %v, want zeros", res)
	}
	if m.SP != 0 {
		t.Errorf("SP = %d after return, want 0", m.SP)
	}
}

func TestTrapFault(t *testing.T) {
	m := load(t, `
func f(1) 1 {
    %2 = iconst 4
    %3 = icmp.uge %1, %2
    trap %3, 1 @12:9
    ret %1
}`)
	if res, err := m.Call("f", 3); err != nil || res[0] != 3 {
		t.Fatalf("in-range call = %v, %v", res, err)
	}

	_, err := m.Call("f", 4)
	var f *Fault
	if !errors.As(err, &f) {
		t.Fatalf("expected *Fault, got %v", err)
	}
	if f.Code != ir.FaultIndexOutOfBounds {
		t.Errorf("code = %v", f.Code)
	}
	if f.Pos.Line != 12 || f.Pos.Col != 9 || f.Func != "f" {
		t.Errorf("fault = %+v", f)
	}
	if got := f.Error(); got != "line 12: array index out of bounds (in f)" {
		t.Errorf("Error() = %q", got)
	}

	// Negative indices wrap to huge unsigned values.
	if _, err := m.Call("f", -1); err == nil {
		t.Error("expected fault for -1")
	}
}

func TestHostFaults(t *testing.T) {
	t.Run("step limit", func(t *testing.T) {
		m := load(t, "func f(0) 0 {\nL0:\n jmp L0\n}")
		m.StepLimit = 100
		_, err := m.Call("f")
		var f *Fault
		if !errors.As(err, &f) || f.Code != FaultStepLimit {
			t.Fatalf("err = %v", err)
		}
	})
	t.Run("recursion depth", func(t *testing.T) {
		m := load(t, "func f(0) 0 {\n call f()\n ret\n}")
		_, err := m.Call("f")
		var f *Fault
		if !errors.As(err, &f) || f.Code != FaultStackOverflow {
			t.Fatalf("err = %v", err)
		}
	})
	t.Run("unknown function", func(t *testing.T) {
		m := load(t, "func f(0) 0 {\n ret\n}")
		if _, err := m.Call("g"); err == nil {
			t.Fatal("expected error")
		}
	})
	t.Run("arity", func(t *testing.T) {
		m := load(t, "func f(2) 0 {\n ret\n}")
		_, err := m.Call("f", 1)
		var f *Fault
		if !errors.As(err, &f) || f.Code != FaultArity {
			t.Fatalf("err = %v", err)
		}
	})
	t.Run("bad address", func(t *testing.T) {
		m := load(t, "func f(1) 1 {\n %2 = load %1, %1\n ret %2\n}")
		_, err := m.Call("f", 40000)
		var f *Fault
		if !errors.As(err, &f) || f.Code != FaultMemory {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestStepByStep(t *testing.T) {
	m := load(t, "func f(0) 1 {\n %1 = iconst 1\n %2 = iconst 2\n %3 = add %1, %2\n ret %3\n}")
	if err := m.Start("f", nil); err != nil {
		t.Fatal(err)
	}
	steps := 0
	for !m.Halted {
		m.Step()
		steps++
	}
	if steps != 4 {
		t.Errorf("steps = %d, want 4", steps)
	}
	if m.Results()[0] != 3 {
		t.Errorf("result = %d", m.Results()[0])
	}
}
