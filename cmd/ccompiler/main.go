package main

import (
	"fmt"
	"os"
	"path"

	"fixshade/pkg/compiler"
	"fixshade/pkg/project"
	"fixshade/pkg/vfs"
)

const testSource = `const int N = 3;
float main() {
	float a[N] = {1.0, 2.0};
	vec2 v = vec2(a[0], a[1]);
	v.yx += 1.0;
	return v.x;
}
`

func main() {
	src := testSource
	dir := "."
	var files compiler.Sources = vfs.NewTree()
	if len(os.Args) > 1 {
		p, err := project.Open(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		if src, err = p.Source(); err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		dir = path.Dir(p.Name)
		files = p.Tree
	}

	var err error
	src, err = compiler.PreprocessFrom(src, dir, files)
	if err != nil {
		fmt.Fprintln(os.Stderr, "preprocess error:", err)
		os.Exit(1)
	}

	fmt.Printf("Source:\n%s\n", src)

	tokens, err := compiler.Lex(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "lex error:", err)
		os.Exit(1)
	}

	fmt.Printf("Tokens (%d)\n", len(tokens))
	for _, tok := range tokens {
		fmt.Println(" ", tok)
	}
	fmt.Println()

	stmts, err := compiler.Parse(tokens, src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse error:", err)
		os.Exit(1)
	}

	fmt.Println("AST")
	for _, s := range stmts {
		fmt.Println(" ", s)
	}
	fmt.Println()

	syms := compiler.NewSymbolTable()
	prog, err := compiler.Generate(stmts, syms)
	if err != nil {
		fmt.Fprintln(os.Stderr, "codegen error:", err)
		os.Exit(1)
	}

	fmt.Println("Generated IR")
	fmt.Print(prog)
	fmt.Println()
	fmt.Print(syms)
}
