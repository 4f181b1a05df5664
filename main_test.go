package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"fixshade/pkg/bundle"
	"fixshade/pkg/config"
	"fixshade/pkg/ir"
)

const plasmaSrc = `#include "lib/wave.inc"
vec4 main(vec2 uv, float t) {
	float w = wave(uv.x + t);
	return vec4(w, uv.y, 1.0 - w, 1.0);
}`

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "lib"), 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"plasma.glsl":  plasmaSrc,
		"lib/wave.inc": "float wave(float x) { return x - float(int(x)); }",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, filepath.FromSlash(name)), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return filepath.Join(dir, "plasma.glsl")
}

func TestLoadInputKinds(t *testing.T) {
	src := writeProject(t)

	b, err := loadInput(src, "main")
	if err != nil {
		t.Fatalf("loadInput(.glsl) failed: %v", err)
	}
	if b.Entry != "main" || b.Sources == nil {
		t.Fatalf("bundle from source = entry %q, sources %v", b.Entry, b.Sources)
	}
	if names := b.Sources.List(); !reflect.DeepEqual(names, []string{"lib/wave.inc", "plasma.glsl"}) {
		t.Errorf("sources = %v", names)
	}

	// The same program through a listing file.
	irPath := filepath.Join(t.TempDir(), "plasma.ir")
	if err := os.WriteFile(irPath, []byte(b.Program.String()), 0644); err != nil {
		t.Fatal(err)
	}
	fromIR, err := loadInput(irPath, "main")
	if err != nil {
		t.Fatalf("loadInput(.ir) failed: %v", err)
	}
	if fromIR.Program.String() != b.Program.String() || fromIR.Sources != nil {
		t.Error("listing did not load the same program")
	}

	// And through a bundle.
	fsbPath := filepath.Join(t.TempDir(), "plasma.fsb")
	if err := b.WriteFile(fsbPath); err != nil {
		t.Fatal(err)
	}
	fromBundle, err := loadInput(fsbPath, "ignored")
	if err != nil {
		t.Fatalf("loadInput(.fsb) failed: %v", err)
	}
	if fromBundle.Entry != "main" {
		t.Errorf("bundle entry = %q", fromBundle.Entry)
	}

	// An entry the program lacks is left unset.
	other, err := loadInput(src, "nope")
	if err != nil {
		t.Fatal(err)
	}
	if other.Entry != "" {
		t.Errorf("entry = %q, want empty", other.Entry)
	}
}

func TestLoadInputErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.glsl")
	os.WriteFile(bad, []byte("int main() {\nreturn 1.5;\n}"), 0644)
	if _, err := loadInput(bad, "main"); err == nil {
		t.Error("expected a compile error")
	}

	badIR := filepath.Join(dir, "bad.ir")
	os.WriteFile(badIR, []byte("not a listing"), 0644)
	if _, err := loadInput(badIR, "main"); err == nil {
		t.Error("expected an assembly error")
	}

	if _, err := loadInput(filepath.Join(dir, "missing.fsb"), "main"); err == nil {
		t.Error("expected a read error")
	}
}

func TestRunEntry(t *testing.T) {
	b, err := loadInput(writeProject(t), "main")
	if err != nil {
		t.Fatal(err)
	}
	args := []int32{ir.FixedFromFloat(0.25), ir.FixedFromFloat(0.5), ir.FixedFromFloat(1.5)}
	if err := runEntry(b.Program, "main", args, 10_000); err != nil {
		t.Errorf("runEntry failed: %v", err)
	}
	if err := runEntry(b.Program, "main", args[:1], 10_000); err == nil {
		t.Error("expected an arity fault")
	}
	if err := runEntry(b.Program, "main", args, 3); err == nil {
		t.Error("expected the step limit to stop the run")
	}
}

func TestRenderPNG(t *testing.T) {
	b, err := loadInput(writeProject(t), "main")
	if err != nil {
		t.Fatal(err)
	}
	opts := config.DefaultOptions()
	opts.Width, opts.Height, opts.Scale = 8, 4, 2
	opts.Quantize = true

	out := filepath.Join(t.TempDir(), "frame.png")
	if err := renderPNG(b.Program, "main", opts, 0.5, out); err != nil {
		t.Fatalf("renderPNG failed: %v", err)
	}
	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		t.Errorf("PNG not written: %v", err)
	}

	if err := renderPNG(b.Program, "wave", opts, 0, out); err == nil {
		t.Error("expected wave to be rejected as a pixel entry point")
	}
}

func TestBundleFromCLIRoundTrip(t *testing.T) {
	b, err := loadInput(writeProject(t), "main")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "out.fsb")
	if err := b.WriteFile(path); err != nil {
		t.Fatal(err)
	}
	back, err := bundle.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	params, results, err := back.Signature("main")
	if err != nil || params != 3 || results != 4 {
		t.Errorf("Signature(main) = %d, %d, %v", params, results, err)
	}
}
