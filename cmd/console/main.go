package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"fixshade/pkg/config"
	"fixshade/pkg/emu"
	"fixshade/pkg/ir"
	"fixshade/pkg/project"
	"fixshade/pkg/render"
	"fixshade/pkg/utils"
)

// startSourceWatcher polls the project directory every interval while stop
// is open and calls onChange after each edit it picks up.
func startSourceWatcher(p *project.Project, interval time.Duration, stop <-chan struct{}, onChange func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			changed, err := p.Reload()
			if err != nil {
				log.Printf("reload failed: %v", err)
				continue
			}
			if changed {
				onChange()
			}
		case <-stop:
			return
		}
	}
}

// session compiles and runs one project, printing what it finds.
type session struct {
	p       *project.Project
	opts    config.Options
	args    []int32
	pixel   *[2]int
	t       float64
	showIR  bool
	verbose bool
}

func (s *session) run() error {
	start := time.Now()
	prog, err := s.p.Compile()
	if err != nil {
		return fmt.Errorf("compilation failed: %w", err)
	}
	if s.verbose {
		fmt.Printf("compiled %s: %d functions in %v\n", s.p.Name, len(prog.Funcs), time.Since(start).Round(time.Microsecond))
	}
	if s.showIR {
		fmt.Print(prog)
	}

	if s.pixel != nil {
		r, err := render.New(prog, s.opts.Entry, s.opts.Width, s.opts.Height)
		if err != nil {
			return err
		}
		r.StepLimit = s.opts.MaxSteps
		c, words, err := r.Pixel(s.pixel[0], s.pixel[1], s.t)
		if err != nil {
			return err
		}
		fmt.Printf("pixel (%d, %d) t=%g: words=%v rgba=%v\n", s.pixel[0], s.pixel[1], s.t, words, c)
		return nil
	}

	m, err := emu.NewMachine(prog)
	if err != nil {
		return err
	}
	m.StepLimit = s.opts.MaxSteps
	res, err := m.Call(s.opts.Entry, s.args...)
	if err != nil {
		return err
	}
	fmt.Printf("%s -> %v (fixed %s) in %d steps\n", s.opts.Entry, res, formatFixed(res), m.Steps)
	return nil
}

func formatFixed(words []int32) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = strconv.FormatFloat(ir.FixedToFloat(w), 'g', 6, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func parsePixel(s string) (*[2]int, error) {
	if s == "" {
		return nil, nil
	}
	var x, y int
	if _, err := fmt.Sscanf(s, "%d,%d", &x, &y); err != nil {
		return nil, fmt.Errorf("bad -pixel %q: want x,y", s)
	}
	return &[2]int{x, y}, nil
}

func main() {
	showIR := flag.Bool("show-ir", false, "print the IR listing")
	watch := flag.Bool("watch", false, "recompile and rerun whenever a source file changes")
	interval := flag.Duration("interval", 500*time.Millisecond, "poll interval for -watch")
	argList := flag.String("args", "", "comma-separated entry arguments (fixed-point when they contain '.')")
	pixel := flag.String("pixel", "", "evaluate the entry point as a pixel shader at x,y")
	frameTime := flag.Float64("t", 0, "frame time for -pixel")
	verbose := flag.Bool("v", false, "log compile timing")
	flag.String("entry", "main", "entry point name")
	flag.Int("width", 64, "frame width for -pixel")
	flag.Int("height", 64, "frame height for -pixel")
	flag.Int64("max-steps", 1_000_000, "step limit per run")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("usage: console [flags] <shader.glsl>")
	}

	p, err := project.Open(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to open project: %v", err)
	}
	opts := p.Config.Merge(config.FromFlags(flag.CommandLine))
	if err := opts.Validate(); err != nil {
		log.Fatalf("Invalid settings: %v", err)
	}

	s := &session{p: p, opts: opts, t: *frameTime, showIR: *showIR, verbose: *verbose}
	if s.args, err = utils.ParseWords(*argList); err != nil {
		log.Fatalf("Bad -args: %v", err)
	}
	if s.pixel, err = parsePixel(*pixel); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Compiling source file:", p.Path)
	if err := s.run(); err != nil {
		if !*watch {
			log.Fatal(err)
		}
		log.Print(err)
	}
	if !*watch {
		return
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stopSignals()

	stopWatcher := make(chan struct{})
	go startSourceWatcher(p, *interval, stopWatcher, func() {
		fmt.Println("change detected, recompiling", p.Name)
		if err := s.run(); err != nil {
			log.Print(err)
		}
	})

	<-ctx.Done()
	close(stopWatcher)
}
