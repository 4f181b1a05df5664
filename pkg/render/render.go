// Package render evaluates a compiled shader entry point once per pixel and
// turns the returned color words into images.
//
// The entry point receives the pixel's normalized coordinate as a vec2 and,
// optionally, the frame time as a float. It returns a vec3 or vec4 color
// with components in [0, 1].
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"runtime"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"fixshade/pkg/emu"
	"fixshade/pkg/grid"
	"fixshade/pkg/ir"
)

// Renderer draws frames of one entry point.
type Renderer struct {
	Program *ir.Program
	Entry   string
	Width   int
	Height  int

	// StepLimit bounds each pixel's run; zero keeps the emulator default.
	StepLimit int64
	// Workers caps the goroutines per frame; zero means GOMAXPROCS.
	Workers int

	withTime bool
	alpha    bool
}

// New checks that entry has a pixel shader's shape: (vec2) or (vec2, float)
// in, vec3 or vec4 out.
func New(prog *ir.Program, entry string, width, height int) (*Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	fn, ok := prog.Lookup(entry)
	if !ok {
		return nil, fmt.Errorf("entry point %q not found", entry)
	}
	r := &Renderer{Program: prog, Entry: entry, Width: width, Height: height}
	switch fn.NumParams {
	case 2:
	case 3:
		r.withTime = true
	default:
		return nil, fmt.Errorf("entry point %q takes %d words; want vec2 uv or (vec2 uv, float t)", entry, fn.NumParams)
	}
	switch fn.NumResults {
	case 3:
	case 4:
		r.alpha = true
	default:
		return nil, fmt.Errorf("entry point %q returns %d words; want vec3 or vec4", entry, fn.NumResults)
	}
	return r, nil
}

// UsesTime reports whether the entry point reads the frame time.
func (r *Renderer) UsesTime() bool { return r.withTime }

// Frame renders one frame at time t. Pixels are split into contiguous runs,
// each evaluated on its own machine. The first fault cancels the frame and
// is returned with the pixel it happened at.
func (r *Renderer) Frame(ctx context.Context, t float64) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	total := r.Width * r.Height

	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > r.Height {
		workers = r.Height
	}
	chunk := (total + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < total; start += chunk {
		end := min(start+chunk, total)
		g.Go(func() error {
			return r.span(ctx, img, start, end, t)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return img, nil
}

func (r *Renderer) span(ctx context.Context, img *image.RGBA, start, end int, t float64) error {
	m, err := emu.NewMachine(r.Program)
	if err != nil {
		return err
	}
	if r.StepLimit > 0 {
		m.StepLimit = r.StepLimit
	}

	args := make([]int32, 2, 3)
	if r.withTime {
		args = append(args, ir.FixedFromFloat(t))
	}

	for i := start; i < end; i++ {
		x, y := grid.GetGridCoords(i, r.Width)
		if i == start || x == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		u, v := grid.UV(x, y, r.Width, r.Height)
		args[0], args[1] = ir.FixedFromFloat(u), ir.FixedFromFloat(v)

		words, err := m.Call(r.Entry, args...)
		if err != nil {
			return fmt.Errorf("pixel (%d, %d): %w", x, y, err)
		}
		img.SetRGBA(x, y, ToRGBA(words, r.alpha))
	}
	return nil
}

// Pixel evaluates a single pixel, for probing a shader from the console.
func (r *Renderer) Pixel(x, y int, t float64) (color.RGBA, []int32, error) {
	m, err := emu.NewMachine(r.Program)
	if err != nil {
		return color.RGBA{}, nil, err
	}
	if r.StepLimit > 0 {
		m.StepLimit = r.StepLimit
	}
	u, v := grid.UV(x, y, r.Width, r.Height)
	args := []int32{ir.FixedFromFloat(u), ir.FixedFromFloat(v)}
	if r.withTime {
		args = append(args, ir.FixedFromFloat(t))
	}
	words, err := m.Call(r.Entry, args...)
	if err != nil {
		return color.RGBA{}, nil, err
	}
	return ToRGBA(words, r.alpha), words, nil
}

// ToRGBA converts fixed-point color words to 8-bit channels, clamping each
// to [0, 1]. Without alpha the color is opaque.
func ToRGBA(words []int32, alpha bool) color.RGBA {
	c := color.RGBA{
		R: channel(words[0]),
		G: channel(words[1]),
		B: channel(words[2]),
		A: 0xFF,
	}
	if alpha && len(words) > 3 {
		c.A = channel(words[3])
	}
	return c
}

func channel(w int32) uint8 {
	f := ir.FixedToFloat(w)
	if f <= 0 || math.IsNaN(f) {
		return 0
	}
	if f >= 1 {
		return 0xFF
	}
	return uint8(math.Round(f * 255))
}

// ToRGB565 packs c the way an RGB565 LED panel stores it.
func ToRGB565(c color.RGBA) uint16 {
	return uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
}

// FromRGB565 expands a panel color back to 8-bit channels.
func FromRGB565(val uint16) color.RGBA {
	r5 := byte((val >> 11) & 0x1F)
	g6 := byte((val >> 5) & 0x3F)
	b5 := byte(val & 0x1F)
	return color.RGBA{
		R: (r5 << 3) | (r5 >> 2),
		G: (g6 << 2) | (g6 >> 4),
		B: (b5 << 3) | (b5 >> 2),
		A: 0xFF,
	}
}

// Quantize565 rounds every pixel of img through RGB565 in place, showing
// the frame as the panel would.
func Quantize565(img *image.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetRGBA(x, y, FromRGB565(ToRGB565(img.RGBAAt(x, y))))
		}
	}
}

// Encode565 returns the frame as little-endian RGB565 words, row by row.
func Encode565(img *image.RGBA) []byte {
	b := img.Bounds()
	out := make([]byte, 0, b.Dx()*b.Dy()*2)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := ToRGB565(img.RGBAAt(x, y))
			out = append(out, byte(v), byte(v>>8))
		}
	}
	return out
}

// Upscale enlarges img by an integer factor without smoothing.
func Upscale(img image.Image, scale int) *image.RGBA {
	if scale < 1 {
		scale = 1
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// SavePNG encodes img as a PNG and writes it to filename.
func SavePNG(img image.Image, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
