package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"fixshade/pkg/ir"
)

// Compile runs the whole pipeline over shader source: preprocess, lex,
// parse, then generate. baseDir resolves #include paths. A failed
// generation returns an ErrorList holding every diagnostic.
func Compile(src string, baseDir string) (*ir.Program, error) {
	return CompileFrom(src, baseDir, nil)
}

// CompileFrom is Compile with includes read from files. Positions in the
// result and in diagnostics refer to the file and line they were written
// on, not to the preprocessed text.
func CompileFrom(src, dir string, files Sources) (*ir.Program, error) {
	src, lines, err := PreprocessMapped(src, dir, files)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}

	tokens, err := Lex(src)
	if err != nil {
		return nil, fmt.Errorf("lex: %w", err)
	}

	stmts, err := ParseMapped(tokens, src, lines)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	prog, err := Generate(stmts, NewSymbolTable())
	if err != nil {
		var list ErrorList
		if errors.As(err, &list) {
			for _, e := range list {
				if te, ok := e.(*TypeError); ok {
					te.Pos = lines.Pos(te.Pos)
				}
			}
		}
		return nil, err
	}
	for _, fn := range prog.Funcs {
		for i := range fn.Instrs {
			fn.Instrs[i].Pos = lines.Pos(fn.Instrs[i].Pos)
		}
	}
	return prog, nil
}

// CompileFile compiles the shader at path, resolving includes next to it.
func CompileFile(path string) (*ir.Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Compile(string(src), filepath.Dir(path))
}
