// Package config loads project settings from a JSON file named fixshade.json
// (or .fixshaderc), searched for in the shader's directory and its parents.
// Command-line flags override anything the file sets.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

// Config mirrors the file. Unset fields keep their defaults.
type Config struct {
	// Entry is the function run per pixel or by -run.
	Entry *string `json:"entry,omitempty"`

	// Width and Height are the frame size in pixels.
	Width  *int `json:"width,omitempty"`
	Height *int `json:"height,omitempty"`

	// Scale is the preview and PNG upscale factor.
	Scale *int `json:"scale,omitempty"`

	// MaxSteps bounds one entry-point run on the emulator.
	MaxSteps *int64 `json:"maxSteps,omitempty"`

	FPS *int `json:"fps,omitempty"`

	// Quantize shows frames through RGB565, like the LED panel.
	Quantize *bool `json:"quantize,omitempty"`
}

// Options are the resolved settings.
type Options struct {
	Entry    string
	Width    int
	Height   int
	Scale    int
	MaxSteps int64
	FPS      int
	Quantize bool
}

func DefaultOptions() Options {
	return Options{
		Entry:    "main",
		Width:    64,
		Height:   64,
		Scale:    8,
		MaxSteps: 1_000_000,
		FPS:      30,
	}
}

// ConfigFileNames are searched in order of preference.
var ConfigFileNames = []string{
	"fixshade.json",
	".fixshaderc",
}

// Load searches startDir and its parents for a config file. It returns a
// nil Config when there is none.
func Load(startDir string) (*Config, string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, "", err
	}
	for {
		for _, name := range ConfigFileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				cfg, err := LoadFile(path)
				return cfg, path, err
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, "", nil
		}
		dir = parent
	}
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// ToOptions fills unset fields from DefaultOptions. A nil Config yields the
// defaults.
func (c *Config) ToOptions() Options {
	opts := DefaultOptions()
	if c == nil {
		return opts
	}

	if c.Entry != nil {
		opts.Entry = *c.Entry
	}
	if c.Width != nil {
		opts.Width = *c.Width
	}
	if c.Height != nil {
		opts.Height = *c.Height
	}
	if c.Scale != nil {
		opts.Scale = *c.Scale
	}
	if c.MaxSteps != nil {
		opts.MaxSteps = *c.MaxSteps
	}
	if c.FPS != nil {
		opts.FPS = *c.FPS
	}
	if c.Quantize != nil {
		opts.Quantize = *c.Quantize
	}
	return opts
}

// MergeOptions carries command-line values; nil means the flag was not given.
type MergeOptions struct {
	Entry    *string
	Width    *int
	Height   *int
	Scale    *int
	MaxSteps *int64
	FPS      *int
	Quantize *bool
}

// Merge applies cli on top of the file's settings.
func (c *Config) Merge(cli MergeOptions) Options {
	opts := c.ToOptions()

	if cli.Entry != nil {
		opts.Entry = *cli.Entry
	}
	if cli.Width != nil {
		opts.Width = *cli.Width
	}
	if cli.Height != nil {
		opts.Height = *cli.Height
	}
	if cli.Scale != nil {
		opts.Scale = *cli.Scale
	}
	if cli.MaxSteps != nil {
		opts.MaxSteps = *cli.MaxSteps
	}
	if cli.FPS != nil {
		opts.FPS = *cli.FPS
	}
	if cli.Quantize != nil {
		opts.Quantize = *cli.Quantize
	}
	return opts
}

// FromFlags collects the settings flags given explicitly on fs. Flags are
// matched by name: entry, width, height, scale, max-steps, fps, quantize.
func FromFlags(fs *flag.FlagSet) MergeOptions {
	var m MergeOptions
	fs.Visit(func(f *flag.Flag) {
		getter, ok := f.Value.(flag.Getter)
		if !ok {
			return
		}
		switch v := getter.Get().(type) {
		case string:
			if f.Name == "entry" {
				m.Entry = &v
			}
		case int:
			switch f.Name {
			case "width":
				m.Width = &v
			case "height":
				m.Height = &v
			case "scale":
				m.Scale = &v
			case "fps":
				m.FPS = &v
			}
		case int64:
			if f.Name == "max-steps" {
				m.MaxSteps = &v
			}
		case bool:
			if f.Name == "quantize" {
				m.Quantize = &v
			}
		}
	})
	return m
}

// Validate rejects settings the renderer and preview cannot use.
func (o Options) Validate() error {
	switch {
	case o.Entry == "":
		return fmt.Errorf("entry point name is empty")
	case o.Width < 1 || o.Width > 1024 || o.Height < 1 || o.Height > 1024:
		return fmt.Errorf("frame size %dx%d outside 1..1024", o.Width, o.Height)
	case o.Scale < 1 || o.Scale > 32:
		return fmt.Errorf("scale %d outside 1..32", o.Scale)
	case o.MaxSteps < 1:
		return fmt.Errorf("max steps must be positive, got %d", o.MaxSteps)
	case o.FPS < 1 || o.FPS > 240:
		return fmt.Errorf("fps %d outside 1..240", o.FPS)
	}
	return nil
}
