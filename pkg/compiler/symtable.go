package compiler

import (
	"fmt"
	"sort"
	"strings"

	"fixshade/pkg/ir"
)

// StorageKind says where a symbol's value lives.
type StorageKind int

const (
	// StorageSlots: one named primitive slot per component (scalars,
	// vectors, matrices).
	StorageSlots StorageKind = iota
	// StorageBlock: a fixed-size memory block behind a base pointer (arrays).
	StorageBlock
	// StorageConst: a folded compile-time constant; no storage at all.
	StorageConst
)

func (k StorageKind) String() string {
	switch k {
	case StorageSlots:
		return "slots"
	case StorageBlock:
		return "block"
	case StorageConst:
		return "const"
	}
	return fmt.Sprintf("StorageKind(%d)", int(k))
}

type Symbol struct {
	Name     string
	Type     Type
	Storage  StorageKind
	Slots    []ir.Slot  // StorageSlots
	Ptr      ir.Value   // StorageBlock
	Value    constValue // StorageConst
	ReadOnly bool       // const-qualified; rejects assignment
	Pos      ir.Pos
}

// FuncSig is a function's signature, known to every function body before
// any of them is generated.
type FuncSig struct {
	Name   string
	Params []Type
	Result Type
	Decl   *FunctionDecl
}

// ParamWords is the number of argument words the function takes.
func (f *FuncSig) ParamWords() int {
	n := 0
	for _, p := range f.Params {
		n += p.ComponentCount()
	}
	return n
}

// SymbolTable maps names to symbols. Globals and function signatures are
// filled in a single sequential pass and are read-only afterwards; each
// function body works on its own table from ForFunction so bodies can be
// generated concurrently.
type SymbolTable struct {
	globals map[string]*Symbol
	funcs   map[string]*FuncSig

	// Stack of local scopes. Each scope maps name -> Symbol.
	locals []map[string]*Symbol
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		globals: make(map[string]*Symbol),
		funcs:   make(map[string]*FuncSig),
	}
}

// ForFunction returns a table sharing this table's globals and functions
// with a fresh function-level scope.
func (s *SymbolTable) ForFunction() *SymbolTable {
	return &SymbolTable{
		globals: s.globals,
		funcs:   s.funcs,
		locals:  []map[string]*Symbol{make(map[string]*Symbol)},
	}
}

func (s *SymbolTable) EnterScope() {
	if len(s.locals) == 0 {
		panic("EnterScope called outside function")
	}
	s.locals = append(s.locals, make(map[string]*Symbol))
}

func (s *SymbolTable) ExitScope() {
	if len(s.locals) > 0 {
		s.locals = s.locals[:len(s.locals)-1]
	}
}

// Define adds sym to the innermost scope (or the globals outside a
// function). Redeclaring a name in the same scope is an error; shadowing an
// outer one is not.
func (s *SymbolTable) Define(sym *Symbol) error {
	scope := s.globals
	if len(s.locals) > 0 {
		scope = s.locals[len(s.locals)-1]
	}
	if prev, ok := scope[sym.Name]; ok {
		return typeErr(sym.Pos, "declaration of '"+sym.Name+"'",
			"unique name in scope", fmt.Sprintf("redeclaration (previous at line %d)", prev.Pos.Line))
	}
	if _, ok := s.funcs[sym.Name]; ok && len(s.locals) == 0 {
		return typeErr(sym.Pos, "declaration of '"+sym.Name+"'", "unique name", "function of the same name")
	}
	scope[sym.Name] = sym
	return nil
}

// DefineFunc records a function signature.
func (s *SymbolTable) DefineFunc(sig *FuncSig) error {
	if _, ok := s.funcs[sig.Name]; ok {
		return typeErr(sig.Decl.Pos, "function '"+sig.Name+"'", "single definition", "redefinition")
	}
	if _, ok := s.globals[sig.Name]; ok {
		return typeErr(sig.Decl.Pos, "function '"+sig.Name+"'", "unique name", "global of the same name")
	}
	s.funcs[sig.Name] = sig
	return nil
}

// Func returns the signature of the function called name.
func (s *SymbolTable) Func(name string) (*FuncSig, bool) {
	f, ok := s.funcs[name]
	return f, ok
}

// Lookup returns the symbol and whether it was found.
func (s *SymbolTable) Lookup(name string) (*Symbol, bool) {
	// Search locals from top of stack down
	for i := len(s.locals) - 1; i >= 0; i-- {
		if sym, ok := s.locals[i][name]; ok {
			return sym, true
		}
	}

	sym, ok := s.globals[name]
	return sym, ok
}

// inFunction returns true if we are inside a function.
func (s *SymbolTable) inFunction() bool {
	return len(s.locals) > 0
}

func describeSymbol(sym *Symbol) string {
	switch sym.Storage {
	case StorageSlots:
		slots := make([]string, len(sym.Slots))
		for i, sl := range sym.Slots {
			slots[i] = sl.String()
		}
		return fmt.Sprintf("%s slots[%s]", sym.Type, strings.Join(slots, " "))
	case StorageBlock:
		return fmt.Sprintf("%s block %s (%d bytes)", sym.Type, sym.Ptr, sym.Type.ElementByteSize())
	case StorageConst:
		return fmt.Sprintf("%s const %s", sym.Type, sym.Value)
	}
	return sym.Type.String()
}

// String returns a deterministically ordered dump of the table.
func (s *SymbolTable) String() string {
	var sb strings.Builder
	if len(s.globals) > 0 {
		sb.WriteString("Globals:\n")
		names := make([]string, 0, len(s.globals))
		for name := range s.globals {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&sb, "  %-20s  %s\n", name, describeSymbol(s.globals[name]))
		}
	} else {
		sb.WriteString("Globals: (empty)\n")
	}

	if len(s.funcs) > 0 {
		sb.WriteString("Functions:\n")
		names := make([]string, 0, len(s.funcs))
		for name := range s.funcs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			f := s.funcs[name]
			params := make([]string, len(f.Params))
			for i, p := range f.Params {
				params[i] = p.String()
			}
			fmt.Fprintf(&sb, "  %-20s  %s(%s)\n", name, f.Result, strings.Join(params, ", "))
		}
	}

	if len(s.locals) > 0 {
		sb.WriteString("Locals (Active Stack):\n")
		for i, scope := range s.locals {
			fmt.Fprintf(&sb, "  Scope %d:\n", i)
			names := make([]string, 0, len(scope))
			for name := range scope {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(&sb, "    %-20s  %s\n", name, describeSymbol(scope[name]))
			}
		}
	}
	return sb.String()
}
