package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// String renders the instruction in listing syntax, e.g. "%4 = load %1, %3".
func (in Instr) String() string {
	switch {
	case in.Op == OpSlot:
		return fmt.Sprintf("slot %s", in.Slot)
	case in.Op == OpRSlot:
		return fmt.Sprintf("%s = rslot %s", in.Dst, in.Slot)
	case in.Op == OpWSlot:
		return fmt.Sprintf("wslot %s, %s", in.Slot, in.A)
	case in.Op == OpAlloca:
		return fmt.Sprintf("%s = alloca %d", in.Dst, in.Imm)
	case in.Op == OpLoad:
		return fmt.Sprintf("%s = load %s, %s", in.Dst, in.A, in.B)
	case in.Op == OpStore:
		return fmt.Sprintf("store %s, %s, %s", in.A, in.B, in.C)
	case in.Op == OpIConst:
		return fmt.Sprintf("%s = iconst %d", in.Dst, in.Imm)
	case in.Op == OpFConst:
		return fmt.Sprintf("%s = fconst %s", in.Dst, strconv.FormatFloat(in.F, 'g', -1, 64))
	case in.Op == OpICmp:
		return fmt.Sprintf("%s = icmp.%s %s, %s", in.Dst, in.Pred, in.A, in.B)
	case in.Op.IsBinary():
		return fmt.Sprintf("%s = %s %s, %s", in.Dst, in.Op, in.A, in.B)
	case in.Op.IsUnary():
		return fmt.Sprintf("%s = %s %s", in.Dst, in.Op, in.A)
	case in.Op == OpSelect:
		return fmt.Sprintf("%s = select %s, %s, %s", in.Dst, in.A, in.B, in.C)
	case in.Op == OpTrap:
		return fmt.Sprintf("trap %s, %d @%s", in.A, in.Fault, in.Pos)
	case in.Op == OpLabel:
		return in.Label + ":"
	case in.Op == OpJmp:
		return "jmp " + in.Label
	case in.Op == OpJz:
		return fmt.Sprintf("jz %s, %s", in.A, in.Label)
	case in.Op == OpCall:
		call := fmt.Sprintf("call %s(%s)", in.Callee, joinValues(in.Args))
		if len(in.Dsts) == 0 {
			return call
		}
		return joinValues(in.Dsts) + " = " + call
	case in.Op == OpRet:
		if len(in.Args) == 0 {
			return "ret"
		}
		return "ret " + joinValues(in.Args)
	}
	return in.Op.String()
}

func joinValues(vals []Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

// String renders the function as a listing that pkg/asm can read back.
func (f *Func) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "func %s(%d) %d {\n", f.Name, f.NumParams, f.NumResults)
	for _, in := range f.Instrs {
		if in.Op == OpLabel {
			fmt.Fprintf(&sb, "%s\n", in)
			continue
		}
		fmt.Fprintf(&sb, "    %s\n", in)
	}
	sb.WriteString("}\n")
	return sb.String()
}

// String renders every function of the program.
func (p *Program) String() string {
	var sb strings.Builder
	for i, f := range p.Funcs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(f.String())
	}
	return sb.String()
}
