package main

import (
	"testing"

	"fixshade/pkg/asm"
	"fixshade/pkg/compiler"
	"fixshade/pkg/emu"
	"fixshade/pkg/ir"
)

// Every stage by hand: lex, parse, generate, print the listing, assemble it
// again and run the result.
func TestCompilerAndEmulator(t *testing.T) {
	source := `
int fib(int n) {
    int a = 0;
    int b = 1;
    for (int i = 0; i < n; i++) {
        int t = a + b;
        a = b;
        b = t;
    }
    return a;
}

int main() {
    int seq[7];
    for (int i = 0; i < 7; i++) {
        seq[i] = fib(i);
    }
    return seq[6];
}
`

	tokens, err := compiler.Lex(source)
	if err != nil {
		t.Fatalf("Lexing failed: %v", err)
	}

	ast, err := compiler.Parse(tokens, source)
	if err != nil {
		t.Fatalf("Parsing failed: %v", err)
	}

	syms := compiler.NewSymbolTable()
	prog, err := compiler.Generate(ast, syms)
	if err != nil {
		t.Fatalf("Code generation failed: %v", err)
	}

	listing := prog.String()
	t.Logf("Generated IR:\n%s", listing)

	reassembled, err := asm.Assemble(listing)
	if err != nil {
		t.Fatalf("Assembly failed: %v", err)
	}
	if reassembled.String() != listing {
		t.Errorf("listing did not survive a round trip:\n%s", reassembled)
	}

	for _, p := range []*ir.Program{prog, reassembled} {
		vm, err := emu.NewMachine(p)
		if err != nil {
			t.Fatalf("NewMachine failed: %v", err)
		}
		res, err := vm.Call("main")
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		// 0, 1, 1, 2, 3, 5, 8
		if res[0] != 8 {
			t.Errorf("Expected 8, got %d", res[0])
		}
		// Every block released on return
		if vm.SP != 0 {
			t.Errorf("Expected SP to be 0, got %d", vm.SP)
		}
		if !vm.Halted || vm.Fault() != nil {
			t.Errorf("machine not cleanly halted: %v", vm.Fault())
		}
	}
}

// A small vertex transform: rotate, scale and translate a point array,
// then read one point back through a runtime index.
func TestTransformPipeline(t *testing.T) {
	source := `
mat3 transform(float s, vec2 offset) {
    mat3 m = mat3(s);
    m[2] = vec3(offset, 1.0);
    return m;
}

vec2 main(int which) {
    vec2 pts[3] = {vec2(1.0, 0.0), vec2(0.0, 1.0)};
    mat2 rot = mat2(0.0, 1.0, -1.0, 0.0);
    mat3 t = transform(2.0, vec2(0.5, -0.5));
    for (int i = 0; i < 3; i++) {
        vec3 p = t * vec3(rot * pts[i], 1.0);
        pts[i] = p.xy;
    }
    return pts[which];
}
`
	prog, err := compiler.Compile(source, ".")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	vm, err := emu.NewMachine(prog)
	if err != nil {
		t.Fatal(err)
	}

	want := [][2]float64{
		{0.5, 1.5},   // (1,0) -> (0,1) -> (0,2) + offset
		{-1.5, -0.5}, // (0,1) -> (-1,0) -> (-2,0) + offset
		{0.5, -0.5},  // zero-filled element
	}
	for i, w := range want {
		res, err := vm.Call("main", int32(i))
		if err != nil {
			t.Fatalf("main(%d) failed: %v", i, err)
		}
		x, y := ir.FixedToFloat(res[0]), ir.FixedToFloat(res[1])
		if x != w[0] || y != w[1] {
			t.Errorf("main(%d) = (%g, %g), want (%g, %g)", i, x, y, w[0], w[1])
		}
	}

	if _, err := vm.Call("main", 3); err == nil {
		t.Error("expected a bounds fault for point 3")
	}
}
