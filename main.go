//go:build !js

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"fixshade/pkg/asm"
	"fixshade/pkg/bundle"
	"fixshade/pkg/config"
	"fixshade/pkg/emu"
	"fixshade/pkg/ir"
	"fixshade/pkg/project"
	"fixshade/pkg/render"
	"fixshade/pkg/utils"
)

func main() {
	inPath := flag.String("in", "", "input shader (.glsl), IR listing (.ir) or bundle (.fsb)")
	outPath := flag.String("out", "", "output bundle path (default: input with .fsb extension)")
	runProgram := flag.Bool("run", false, "run the entry point of the compiled input")
	runBinPath := flag.String("run-bin", "", "run the entry point of an existing bundle")
	showIR := flag.Bool("show-ir", false, "print the IR listing")
	pngPath := flag.String("png", "", "render one frame of the entry point to a PNG file")
	argList := flag.String("args", "", "comma-separated entry arguments; values containing '.' are fixed-point")
	frameTime := flag.Float64("t", 0, "frame time for (vec2, float) entry points")
	flag.String("entry", "main", "entry point name")
	flag.Int("width", 64, "frame width")
	flag.Int("height", 64, "frame height")
	flag.Int("scale", 8, "PNG upscale factor")
	flag.Int64("max-steps", 1_000_000, "step limit per entry-point run")
	flag.Bool("quantize", false, "round rendered colors through RGB565")
	flag.Parse()

	if *runProgram && *runBinPath != "" {
		fmt.Fprintln(os.Stderr, "use either -run or -run-bin, not both")
		os.Exit(2)
	}
	if *inPath == "" && *runBinPath == "" {
		fmt.Fprintln(os.Stderr, "nothing to do: provide -in to compile, -run to run the result, or -run-bin <file> to run an existing bundle")
		flag.Usage()
		os.Exit(2)
	}

	configDir := filepath.Dir(*runBinPath)
	if *inPath != "" {
		configDir = filepath.Dir(*inPath)
	}
	cfg, cfgPath, err := config.Load(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %q: %v\n", cfgPath, err)
		os.Exit(1)
	}
	opts := cfg.Merge(config.FromFlags(flag.CommandLine))
	if err := opts.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid settings: %v\n", err)
		os.Exit(2)
	}

	var b *bundle.Bundle
	if *inPath != "" {
		b, err = loadInput(*inPath, opts.Entry)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", *inPath, err)
			os.Exit(1)
		}

		output := *outPath
		if output == "" && !strings.HasSuffix(*inPath, ".fsb") {
			output = utils.WithExt(*inPath, ".fsb")
		}
		if output != "" {
			if err := b.WriteFile(output); err != nil {
				fmt.Fprintf(os.Stderr, "failed to write bundle %q: %v\n", output, err)
				os.Exit(1)
			}
			fmt.Printf("compiled %d functions -> %s\n", len(b.Program.Funcs), output)
		}
	}

	if *runBinPath != "" {
		b, err = bundle.ReadFile(*runBinPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read bundle %q: %v\n", *runBinPath, err)
			os.Exit(1)
		}
	}

	entry := opts.Entry
	if !flagSet(flag.CommandLine, "entry") && b.Entry != "" {
		entry = b.Entry
	}

	if *showIR {
		fmt.Print(b.Program)
	}

	if *runProgram || *runBinPath != "" {
		args, err := utils.ParseWords(*argList)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad -args: %v\n", err)
			os.Exit(2)
		}
		if err := runEntry(b.Program, entry, args, opts.MaxSteps); err != nil {
			fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
			os.Exit(1)
		}
	}

	if *pngPath != "" {
		if err := renderPNG(b.Program, entry, opts, *frameTime, *pngPath); err != nil {
			fmt.Fprintf(os.Stderr, "render failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("rendered %dx%d at t=%g -> %s\n", opts.Width, opts.Height, *frameTime, *pngPath)
	}
}

// loadInput builds a bundle from a shader, a listing or an existing bundle.
func loadInput(path, entry string) (*bundle.Bundle, error) {
	switch filepath.Ext(path) {
	case ".fsb":
		return bundle.ReadFile(path)
	case ".ir":
		listing, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		prog, err := asm.Assemble(string(listing))
		if err != nil {
			return nil, fmt.Errorf("assembly failed: %w", err)
		}
		return newBundle(prog, entry, nil), nil
	}

	p, err := project.Open(path)
	if err != nil {
		return nil, err
	}
	prog, err := p.Compile()
	if err != nil {
		return nil, fmt.Errorf("compilation failed: %w", err)
	}
	return newBundle(prog, entry, p), nil
}

func newBundle(prog *ir.Program, entry string, p *project.Project) *bundle.Bundle {
	b := &bundle.Bundle{Program: prog}
	if _, ok := prog.Lookup(entry); ok {
		b.Entry = entry
	}
	if p != nil {
		b.Sources = p.Tree
	}
	return b
}

func runEntry(prog *ir.Program, entry string, args []int32, maxSteps int64) error {
	m, err := emu.NewMachine(prog)
	if err != nil {
		return err
	}
	m.StepLimit = maxSteps

	res, err := m.Call(entry, args...)
	if err != nil {
		return err
	}

	fixed := make([]string, len(res))
	for i, w := range res {
		fixed[i] = strconv.FormatFloat(ir.FixedToFloat(w), 'g', 6, 64)
	}
	fmt.Printf("run complete (%s): steps=%d words=%v fixed=[%s]\n", entry, m.Steps, res, strings.Join(fixed, " "))
	return nil
}

func renderPNG(prog *ir.Program, entry string, opts config.Options, t float64, path string) error {
	r, err := render.New(prog, entry, opts.Width, opts.Height)
	if err != nil {
		return err
	}
	r.StepLimit = opts.MaxSteps
	img, err := r.Frame(context.Background(), t)
	if err != nil {
		return err
	}
	if opts.Quantize {
		render.Quantize565(img)
	}
	return render.SavePNG(render.Upscale(img, opts.Scale), path)
}

func flagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
