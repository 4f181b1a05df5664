package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "fixshade.json")

	content := `{
		"entry": "plasma",
		"width": 32,
		"quantize": true,
		"maxSteps": 5000
	}`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Entry == nil || *cfg.Entry != "plasma" {
		t.Errorf("Entry: got %v, want plasma", cfg.Entry)
	}
	if cfg.Width == nil || *cfg.Width != 32 {
		t.Errorf("Width: got %v, want 32", cfg.Width)
	}
	if cfg.Height != nil {
		t.Errorf("Height: got %v, want nil", cfg.Height)
	}

	opts := cfg.ToOptions()
	want := DefaultOptions()
	want.Entry = "plasma"
	want.Width = 32
	want.Quantize = true
	want.MaxSteps = 5000
	if opts != want {
		t.Errorf("ToOptions = %+v, want %+v", opts, want)
	}
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixshade.json")
	if err := os.WriteFile(path, []byte(`{"width": "wide"}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected an error for a string width")
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadSearchesParents(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "shaders", "fx")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ".fixshaderc"), []byte(`{"fps": 12}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, path, err := Load(nested)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if path != filepath.Join(root, ".fixshaderc") {
		t.Errorf("path = %q", path)
	}
	if cfg.ToOptions().FPS != 12 {
		t.Errorf("FPS = %d, want 12", cfg.ToOptions().FPS)
	}

	// A closer fixshade.json wins.
	if err := os.WriteFile(filepath.Join(nested, "fixshade.json"), []byte(`{"fps": 24}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, _, err = Load(nested)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ToOptions().FPS != 24 {
		t.Errorf("FPS = %d, want 24", cfg.ToOptions().FPS)
	}
}

func TestNilConfig(t *testing.T) {
	var cfg *Config
	if cfg.ToOptions() != DefaultOptions() {
		t.Error("nil config should give the defaults")
	}
	scale := 2
	if got := cfg.Merge(MergeOptions{Scale: &scale}).Scale; got != 2 {
		t.Errorf("Scale = %d, want 2", got)
	}
}

func TestMerge(t *testing.T) {
	entry := "file"
	width := 16
	cfg := &Config{Entry: &entry, Width: &width}

	cliEntry := "flag"
	quantize := false
	steps := int64(10)
	opts := cfg.Merge(MergeOptions{Entry: &cliEntry, Quantize: &quantize, MaxSteps: &steps})

	if opts.Entry != "flag" {
		t.Errorf("Entry = %q, want the flag value", opts.Entry)
	}
	if opts.Width != 16 {
		t.Errorf("Width = %d, want the file value", opts.Width)
	}
	if opts.Height != DefaultOptions().Height {
		t.Errorf("Height = %d, want the default", opts.Height)
	}
	if opts.MaxSteps != 10 || opts.Quantize {
		t.Errorf("MaxSteps = %d, Quantize = %v", opts.MaxSteps, opts.Quantize)
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultOptions().Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}

	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{"Empty Entry", func(o *Options) { o.Entry = "" }},
		{"Zero Width", func(o *Options) { o.Width = 0 }},
		{"Huge Height", func(o *Options) { o.Height = 4096 }},
		{"Zero Scale", func(o *Options) { o.Scale = 0 }},
		{"Zero Steps", func(o *Options) { o.MaxSteps = 0 }},
		{"Zero FPS", func(o *Options) { o.FPS = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.modify(&o)
			if err := o.Validate(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestFromFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("entry", "main", "")
	fs.Int("width", 64, "")
	fs.Int("height", 64, "")
	fs.Int64("max-steps", 100, "")
	fs.Bool("quantize", false, "")
	fs.Bool("verbose", false, "")
	if err := fs.Parse([]string{"-entry", "glow", "-height", "12", "-quantize", "-verbose"}); err != nil {
		t.Fatal(err)
	}

	m := FromFlags(fs)
	if m.Entry == nil || *m.Entry != "glow" {
		t.Errorf("Entry = %v", m.Entry)
	}
	if m.Height == nil || *m.Height != 12 {
		t.Errorf("Height = %v", m.Height)
	}
	if m.Quantize == nil || !*m.Quantize {
		t.Errorf("Quantize = %v", m.Quantize)
	}
	if m.Width != nil || m.MaxSteps != nil {
		t.Error("flags left at their defaults should not override")
	}

	width := 20
	opts := (&Config{Width: &width}).Merge(m)
	if opts.Width != 20 || opts.Height != 12 || opts.Entry != "glow" {
		t.Errorf("merged = %+v", opts)
	}
}
