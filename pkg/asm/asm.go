// Package asm reads the textual IR listing produced by ir.Program.String
// back into an ir.Program, so hand-written or saved listings can be run on
// the emulator.
package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"fixshade/pkg/ir"
)

type Assembler struct {
	labels map[string]bool
}

type parsedLine struct {
	lineNo   int
	label    string
	dsts     []string
	mnemonic string
	operands []string
}

func NewAssembler() *Assembler {
	return &Assembler{labels: make(map[string]bool)}
}

// Assemble parses a complete listing.
func Assemble(code string) (*ir.Program, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) (*ir.Program, error) {
	lines := strings.Split(code, "\n")
	prog := &ir.Program{}

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(stripComments(lines[i]))
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "func ") {
			return nil, fmt.Errorf("expected func header on line %d", i+1)
		}
		end := i + 1
		for end < len(lines) && strings.TrimSpace(stripComments(lines[end])) != "}" {
			end++
		}
		if end == len(lines) {
			return nil, fmt.Errorf("unterminated func starting on line %d", i+1)
		}
		fn, err := a.assembleFunc(lines, i, end)
		if err != nil {
			return nil, err
		}
		if _, dup := prog.Lookup(fn.Name); dup {
			return nil, fmt.Errorf("duplicate func '%s' on line %d", fn.Name, i+1)
		}
		prog.Funcs = append(prog.Funcs, fn)
		i = end
	}
	return prog, nil
}

// assembleFunc handles lines[start] (the header) through lines[end] (the
// closing brace). Labels are function-local, so they are collected in a
// first pass over the body before any jump is resolved.
func (a *Assembler) assembleFunc(lines []string, start, end int) (*ir.Func, error) {
	fn, err := parseHeader(lines[start], start+1)
	if err != nil {
		return nil, err
	}

	clear(a.labels)
	var body []parsedLine
	for i := start + 1; i < end; i++ {
		p, err := parseLine(lines[i], i+1)
		if err != nil {
			return nil, err
		}
		if p.label != "" {
			if a.labels[p.label] {
				return nil, fmt.Errorf("duplicate label '%s' on line %d", p.label, p.lineNo)
			}
			a.labels[p.label] = true
		}
		if p.label != "" || p.mnemonic != "" {
			body = append(body, p)
		}
	}

	for _, p := range body {
		in, err := a.encode(p)
		if err != nil {
			return nil, err
		}
		fn.Instrs = append(fn.Instrs, in)
		noteValue(fn, in.Dst, in.A, in.B, in.C)
		noteValue(fn, in.Args...)
		noteValue(fn, in.Dsts...)
		if in.Op == ir.OpSlot || in.Op == ir.OpRSlot || in.Op == ir.OpWSlot {
			if int(in.Slot)+1 > fn.NumSlots {
				fn.NumSlots = int(in.Slot) + 1
			}
		}
	}
	return fn, nil
}

func noteValue(fn *ir.Func, vals ...ir.Value) {
	for _, v := range vals {
		if int(v) > fn.NumValues {
			fn.NumValues = int(v)
		}
	}
}

func parseHeader(raw string, lineNo int) (*ir.Func, error) {
	line := strings.TrimSpace(stripComments(raw))
	line = strings.TrimPrefix(line, "func ")
	if !strings.HasSuffix(line, "{") {
		return nil, fmt.Errorf("func header must end with '{' on line %d", lineNo)
	}
	line = strings.TrimSpace(strings.TrimSuffix(line, "{"))
	open := strings.IndexByte(line, '(')
	closing := strings.IndexByte(line, ')')
	if open <= 0 || closing < open {
		return nil, fmt.Errorf("invalid func header on line %d", lineNo)
	}
	name := strings.TrimSpace(line[:open])
	if !isIdentifier(name) {
		return nil, fmt.Errorf("invalid func name '%s' on line %d", name, lineNo)
	}
	nparams, err := strconv.Atoi(strings.TrimSpace(line[open+1 : closing]))
	if err != nil || nparams < 0 {
		return nil, fmt.Errorf("invalid param count on line %d", lineNo)
	}
	nresults, err := strconv.Atoi(strings.TrimSpace(line[closing+1:]))
	if err != nil || nresults < 0 {
		return nil, fmt.Errorf("invalid result count on line %d", lineNo)
	}
	return &ir.Func{Name: name, NumParams: nparams, NumResults: nresults, NumValues: nparams}, nil
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	if strings.HasSuffix(line, ":") && !strings.ContainsAny(line, " \t") {
		lbl := strings.TrimSuffix(line, ":")
		if !isIdentifier(lbl) {
			return p, fmt.Errorf("invalid label '%s' on line %d", lbl, lineNo)
		}
		p.label = lbl
		return p, nil
	}

	if eq := strings.Index(line, "="); eq >= 0 {
		for _, d := range strings.Split(line[:eq], ",") {
			d = strings.TrimSpace(d)
			if d == "" {
				return p, fmt.Errorf("missing destination on line %d", lineNo)
			}
			p.dsts = append(p.dsts, d)
		}
		line = strings.TrimSpace(line[eq+1:])
	}

	fields := strings.Fields(normalizeInstructionText(line))
	if len(fields) == 0 {
		return p, fmt.Errorf("missing instruction on line %d", lineNo)
	}
	p.mnemonic = strings.ToLower(fields[0])
	p.operands = fields[1:]
	return p, nil
}

func stripComments(line string) string {
	semicolon := strings.Index(line, ";")
	doubleSlash := strings.Index(line, "//")

	cut := -1
	if semicolon >= 0 {
		cut = semicolon
	}
	if doubleSlash >= 0 && (cut == -1 || doubleSlash < cut) {
		cut = doubleSlash
	}
	if cut >= 0 {
		return line[:cut]
	}
	return line
}

func normalizeInstructionText(line string) string {
	replacer := strings.NewReplacer(",", " ", "(", " ", ")", " ")
	return replacer.Replace(line)
}

func (a *Assembler) encode(p parsedLine) (ir.Instr, error) {
	if p.label != "" {
		return ir.Instr{Op: ir.OpLabel, Label: p.label}, nil
	}

	mnemonic := p.mnemonic
	var pred ir.Pred
	if strings.HasPrefix(mnemonic, "icmp.") {
		var ok bool
		pred, ok = ir.PredByName(strings.TrimPrefix(mnemonic, "icmp."))
		if !ok {
			return ir.Instr{}, fmt.Errorf("unknown predicate '%s' on line %d", mnemonic, p.lineNo)
		}
		mnemonic = "icmp"
	}
	op, ok := ir.OpByName(mnemonic)
	if !ok || op == ir.OpLabel || op == ir.OpNop {
		return ir.Instr{}, fmt.Errorf("unknown instruction on line %d: %s", p.lineNo, p.mnemonic)
	}

	in := ir.Instr{Op: op, Pred: pred}
	ops := p.operands
	var err error

	want := func(ndst, nops int) error {
		if len(p.dsts) != ndst {
			return fmt.Errorf("%s expects %d destination(s) on line %d", mnemonic, ndst, p.lineNo)
		}
		if len(ops) != nops {
			return fmt.Errorf("%s expects %d operand(s) on line %d", mnemonic, nops, p.lineNo)
		}
		return nil
	}
	dst := func() (ir.Value, error) { return parseValue(p.dsts[0], p.lineNo) }

	switch {
	case op == ir.OpSlot:
		if err = want(0, 1); err != nil {
			return in, err
		}
		in.Slot, err = parseSlot(ops[0], p.lineNo)

	case op == ir.OpRSlot:
		if err = want(1, 1); err != nil {
			return in, err
		}
		if in.Dst, err = dst(); err != nil {
			return in, err
		}
		in.Slot, err = parseSlot(ops[0], p.lineNo)

	case op == ir.OpWSlot:
		if err = want(0, 2); err != nil {
			return in, err
		}
		if in.Slot, err = parseSlot(ops[0], p.lineNo); err != nil {
			return in, err
		}
		in.A, err = parseValue(ops[1], p.lineNo)

	case op == ir.OpAlloca || op == ir.OpIConst:
		if err = want(1, 1); err != nil {
			return in, err
		}
		if in.Dst, err = dst(); err != nil {
			return in, err
		}
		in.Imm, err = parseImmediate(ops[0], p.lineNo)

	case op == ir.OpFConst:
		if err = want(1, 1); err != nil {
			return in, err
		}
		if in.Dst, err = dst(); err != nil {
			return in, err
		}
		in.F, err = strconv.ParseFloat(ops[0], 64)
		if err != nil {
			return in, fmt.Errorf("invalid float '%s' on line %d", ops[0], p.lineNo)
		}

	case op == ir.OpLoad || op == ir.OpICmp || op.IsBinary():
		if err = want(1, 2); err != nil {
			return in, err
		}
		if in.Dst, err = dst(); err != nil {
			return in, err
		}
		if in.A, err = parseValue(ops[0], p.lineNo); err != nil {
			return in, err
		}
		in.B, err = parseValue(ops[1], p.lineNo)

	case op.IsUnary():
		if err = want(1, 1); err != nil {
			return in, err
		}
		if in.Dst, err = dst(); err != nil {
			return in, err
		}
		in.A, err = parseValue(ops[0], p.lineNo)

	case op == ir.OpStore || op == ir.OpSelect:
		ndst := 0
		if op == ir.OpSelect {
			ndst = 1
		}
		if err = want(ndst, 3); err != nil {
			return in, err
		}
		if ndst == 1 {
			if in.Dst, err = dst(); err != nil {
				return in, err
			}
		}
		vals, err := parseValues(ops, p.lineNo)
		if err != nil {
			return in, err
		}
		in.A, in.B, in.C = vals[0], vals[1], vals[2]

	case op == ir.OpTrap:
		if len(ops) == 3 && strings.HasPrefix(ops[2], "@") {
			if in.Pos, err = parsePos(ops[2], p.lineNo); err != nil {
				return in, err
			}
			ops = ops[:2]
		}
		if err = want(0, 2); err != nil {
			return in, err
		}
		if in.A, err = parseValue(ops[0], p.lineNo); err != nil {
			return in, err
		}
		code, err := parseImmediate(ops[1], p.lineNo)
		if err != nil {
			return in, err
		}
		in.Fault = ir.FaultCode(code)

	case op == ir.OpJmp:
		if err = want(0, 1); err != nil {
			return in, err
		}
		in.Label, err = a.resolveLabel(ops[0], p.lineNo)

	case op == ir.OpJz:
		if err = want(0, 2); err != nil {
			return in, err
		}
		if in.A, err = parseValue(ops[0], p.lineNo); err != nil {
			return in, err
		}
		in.Label, err = a.resolveLabel(ops[1], p.lineNo)

	case op == ir.OpCall:
		if len(ops) < 1 || !isIdentifier(ops[0]) {
			return in, fmt.Errorf("call expects a callee on line %d", p.lineNo)
		}
		in.Callee = ops[0]
		if in.Args, err = parseValues(ops[1:], p.lineNo); err != nil {
			return in, err
		}
		in.Dsts, err = parseValues(p.dsts, p.lineNo)

	case op == ir.OpRet:
		if len(p.dsts) != 0 {
			return in, fmt.Errorf("ret takes no destination on line %d", p.lineNo)
		}
		in.Args, err = parseValues(ops, p.lineNo)

	default:
		err = fmt.Errorf("unknown instruction on line %d: %s", p.lineNo, p.mnemonic)
	}
	return in, err
}

func (a *Assembler) resolveLabel(token string, lineNo int) (string, error) {
	if !a.labels[token] {
		if isIdentifier(token) {
			return "", fmt.Errorf("undefined label '%s' on line %d", token, lineNo)
		}
		return "", fmt.Errorf("invalid label '%s' on line %d", token, lineNo)
	}
	return token, nil
}

func parseValue(token string, lineNo int) (ir.Value, error) {
	if !strings.HasPrefix(token, "%") {
		return 0, fmt.Errorf("invalid value '%s' on line %d", token, lineNo)
	}
	n, err := strconv.ParseInt(token[1:], 10, 32)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid value '%s' on line %d", token, lineNo)
	}
	return ir.Value(n), nil
}

func parseValues(tokens []string, lineNo int) ([]ir.Value, error) {
	vals := make([]ir.Value, 0, len(tokens))
	for _, t := range tokens {
		v, err := parseValue(t, lineNo)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

func parseSlot(token string, lineNo int) (ir.Slot, error) {
	if !strings.HasPrefix(token, "s") {
		return 0, fmt.Errorf("invalid slot '%s' on line %d", token, lineNo)
	}
	n, err := strconv.ParseInt(token[1:], 10, 32)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid slot '%s' on line %d", token, lineNo)
	}
	return ir.Slot(n), nil
}

func parseImmediate(token string, lineNo int) (int64, error) {
	v, err := strconv.ParseInt(token, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid immediate '%s' on line %d", token, lineNo)
	}
	return v, nil
}

// parsePos reads "@line:col" or "@file:line:col".
func parsePos(token string, lineNo int) (ir.Pos, error) {
	rest := strings.TrimPrefix(token, "@")
	i := strings.LastIndexByte(rest, ':')
	if i < 0 {
		return ir.Pos{}, fmt.Errorf("invalid position '%s' on line %d", token, lineNo)
	}
	rest, col := rest[:i], rest[i+1:]
	file, line := "", rest
	if j := strings.LastIndexByte(rest, ':'); j >= 0 {
		file, line = rest[:j], rest[j+1:]
	}
	l, err1 := strconv.Atoi(line)
	c, err2 := strconv.Atoi(col)
	if err1 != nil || err2 != nil {
		return ir.Pos{}, fmt.Errorf("invalid position '%s' on line %d", token, lineNo)
	}
	return ir.Pos{File: file, Line: l, Col: c}, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}
