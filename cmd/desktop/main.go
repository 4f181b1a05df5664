package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"fixshade/pkg/config"
	"fixshade/pkg/grid"
	"fixshade/pkg/project"
	"fixshade/pkg/render"
	"fixshade/pkg/utils"
)

// Debug font cell size.
const (
	charWidth  = 6
	charHeight = 16
)

// preview owns everything the window shows apart from ebiten itself.
type preview struct {
	p    *project.Project
	opts config.Options

	r      *render.Renderer
	frame  *image.RGBA
	t      float64
	paused bool

	status string
	shots  int
}

func newPreview(p *project.Project, opts config.Options) *preview {
	pv := &preview{p: p, opts: opts}
	pv.rebuild()
	pv.render()
	return pv
}

// rebuild recompiles the project. On failure the last good renderer stays
// and the error is shown instead.
func (pv *preview) rebuild() {
	prog, err := pv.p.Compile()
	if err != nil {
		pv.status = err.Error()
		return
	}
	r, err := render.New(prog, pv.opts.Entry, pv.opts.Width, pv.opts.Height)
	if err != nil {
		pv.status = err.Error()
		return
	}
	r.StepLimit = pv.opts.MaxSteps
	pv.r = r
	pv.status = ""
}

func (pv *preview) render() {
	if pv.r == nil {
		return
	}
	img, err := pv.r.Frame(context.Background(), pv.t)
	if err != nil {
		pv.status = err.Error()
		return
	}
	if pv.opts.Quantize {
		render.Quantize565(img)
	}
	pv.frame = img
}

// tick advances the clock by one frame unless paused.
func (pv *preview) tick() {
	if pv.paused {
		return
	}
	pv.step()
}

func (pv *preview) step() {
	pv.t += 1 / float64(pv.opts.FPS)
	if pv.r != nil && pv.r.UsesTime() {
		pv.render()
	}
}

// reload rebuilds when the sources changed on disk.
func (pv *preview) reload() {
	changed, err := pv.p.Reload()
	if err != nil {
		pv.status = err.Error()
		return
	}
	if changed {
		pv.rebuild()
		pv.render()
	}
}

func (pv *preview) toggleQuantize() {
	pv.opts.Quantize = !pv.opts.Quantize
	pv.render()
}

// screenshot saves the current frame upscaled next to the main file.
func (pv *preview) screenshot() (string, error) {
	if pv.frame == nil {
		return "", fmt.Errorf("nothing rendered yet")
	}
	pv.shots++
	name := utils.WithExt(pv.p.Path, fmt.Sprintf("-%03d.png", pv.shots))
	if err := render.SavePNG(render.Upscale(pv.frame, pv.opts.Scale), name); err != nil {
		return "", err
	}
	return name, nil
}

// overlay is the text drawn over the frame.
func (pv *preview) overlay() string {
	if pv.status != "" {
		return pv.status
	}
	s := fmt.Sprintf("%s t=%.2f", pv.p.Name, pv.t)
	if pv.paused {
		s += " [paused]"
	}
	if pv.opts.Quantize {
		s += " 565"
	}
	return s
}

type Game struct {
	pv       *preview
	frameImg *ebiten.Image
	ticks    int
}

func (g *Game) Update() error {
	pv := g.pv
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		pv.paused = !pv.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyRight) {
		pv.step()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyQ) {
		pv.toggleQuantize()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyS) {
		if name, err := pv.screenshot(); err != nil {
			log.Printf("screenshot failed: %v", err)
		} else {
			log.Printf("saved %s", name)
		}
	}

	// Poll the sources once a second, or right away on R.
	g.ticks++
	if inpututil.IsKeyJustPressed(ebiten.KeyR) || g.ticks%pv.opts.FPS == 0 {
		pv.reload()
	}

	pv.tick()
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	pv := g.pv
	if pv.frame != nil {
		if g.frameImg == nil {
			g.frameImg = ebiten.NewImage(pv.opts.Width, pv.opts.Height)
		}
		g.frameImg.WritePixels(pv.frame.Pix)

		op := &ebiten.DrawImageOptions{}
		op.GeoM.Scale(float64(pv.opts.Scale), float64(pv.opts.Scale))
		screen.DrawImage(g.frameImg, op)
	}

	cols := pv.opts.Width * pv.opts.Scale / charWidth
	for i, ch := range []rune(pv.overlay()) {
		x, y := grid.GetGridCoords(i, cols)
		ebitenutil.DebugPrintAt(screen, string(ch), x*charWidth, y*charHeight)
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.pv.opts.Width * g.pv.opts.Scale, g.pv.opts.Height * g.pv.opts.Scale
}

func main() {
	flag.String("entry", "main", "entry point name")
	flag.Int("width", 64, "frame width")
	flag.Int("height", 64, "frame height")
	flag.Int("scale", 8, "window pixels per frame pixel")
	flag.Int64("max-steps", 1_000_000, "step limit per pixel")
	flag.Int("fps", 30, "frames per second")
	flag.Bool("quantize", false, "round colors through RGB565")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("usage: desktop [flags] <shader.glsl>")
	}

	p, err := project.Open(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to open project: %v", err)
	}
	opts := p.Config.Merge(config.FromFlags(flag.CommandLine))
	if err := opts.Validate(); err != nil {
		log.Fatalf("Invalid settings: %v", err)
	}

	start := time.Now()
	pv := newPreview(p, opts)
	if pv.r == nil {
		log.Fatalf("Compilation failed: %s", pv.status)
	}
	log.Printf("first frame in %v", time.Since(start).Round(time.Millisecond))

	ebiten.SetTPS(opts.FPS)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(opts.Width*opts.Scale, opts.Height*opts.Scale)
	ebiten.SetWindowTitle("fixshade - " + p.Name)

	if err := ebiten.RunGame(&Game{pv: pv}); err != nil {
		log.Fatal(err)
	}
}
