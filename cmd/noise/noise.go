package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/gogpu/interop"
	"github.com/gogpu/interop/internal/demo"
	"github.com/gogpu/interop/kernels"
)

const (
	defaultFactor = 60
	factorStep    = 2
	sweepLow      = 20
	sweepHigh     = 100
	maxFactor     = 200
)

type noise struct {
	env *demo.Env
	img *image.RGBA

	factor int32
	incr   int32

	in, out *interop.SharedBuffer
	kern    *kernels.Fitted
}

func newNoise(env *demo.Env) (demo.Program, error) {
	cfg := env.Config
	var img *image.RGBA
	if cfg.Input != "" {
		var err error
		if img, err = readBMP(cfg.Input); err != nil {
			return nil, err
		}
	} else {
		w, h := cfg.Width, cfg.Height
		if cfg.Size > 0 {
			w, h = cfg.Size, cfg.Size
		}
		img = gradient(w, h)
	}
	return &noise{env: env, img: img, factor: defaultFactor, incr: factorStep}, nil
}

func readBMP(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("noise: input: %w", err)
	}
	defer f.Close()
	src, err := bmp.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("noise: decode %s: %w", path, err)
	}
	img := image.NewRGBA(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))
	draw.Draw(img, img.Bounds(), src, src.Bounds().Min, draw.Src)
	return img, nil
}

func writeBMP(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("noise: output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return bmp.Encode(f, img)
}

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

// sweep advances the animated factor, turning at the ends of the sweep.
func sweep(factor, incr int32) (int32, int32) {
	switch {
	case factor >= sweepHigh:
		incr = -factorStep
	case factor <= sweepLow:
		incr = factorStep
	}
	return factor + incr, incr
}

func (p *noise) Setup(ctx context.Context, s *interop.Session) error {
	var err error
	p.in, err = s.Pool.Allocate(ctx, interop.SizeSpec{Label: "input", Size: len(p.img.Pix), Init: p.img.Pix})
	if err != nil {
		return err
	}
	p.out, err = s.Pool.Allocate(ctx, interop.SizeSpec{Label: "output", Size: len(p.img.Pix)})
	if err != nil {
		return err
	}
	p.kern, err = kernels.Build(s, "gaussian_transform", kernels.Ladder{Domain: p.domain})
	return err
}

// domain covers the image with rows of group work-items, each writing two
// neighbouring pixels of a row.
func (p *noise) domain(group int) interop.WorkDomain {
	u := kernels.Unroll("gaussian_transform")
	w, h := p.img.Rect.Dx(), p.img.Rect.Dy()
	return interop.WorkDomain{Dims: 2, Global: [3]int{(w + u - 1) / u, h, 1}, Local: [3]int{group, 1, 1}}
}

func (p *noise) Step(ctx context.Context, s *interop.Session) error {
	if p.env.State != nil && p.env.State().Animated {
		p.factor, p.incr = sweep(p.factor, p.incr)
	}
	err := s.Dispatcher.SetArgs(p.kern.Kernel,
		interop.In(p.in),
		interop.Out(p.out),
		interop.Int32(p.factor),
		interop.Uint32(uint32(p.img.Rect.Dx())))
	if err != nil {
		return err
	}
	return s.Dispatcher.Dispatch(ctx, p.kern.Kernel, p.kern.Domain)
}

func (p *noise) Draw(*interop.Session) error {
	pix, err := p.out.DrawBytes()
	if err != nil {
		return err
	}
	return p.env.Surface.DrawTexture(pix, p.img.Rect.Dx(), p.img.Rect.Dy())
}

func (p *noise) Info() []string {
	return []string{
		p.env.Overlay.Sprintf("Image: %dx%d", p.img.Rect.Dx(), p.img.Rect.Dy()),
		p.env.Overlay.Sprintf("Noise factor: %d", p.factor),
	}
}

func (p *noise) Adjust(delta int) string {
	p.factor = min(max(p.factor+int32(delta*factorStep), 0), maxFactor)
	return p.env.Overlay.Sprintf("Noise factor = %d", p.factor)
}

// Finish writes the last output image when -output is set.
func (p *noise) Finish(_ context.Context, _ *interop.Session) error {
	path := p.env.Config.Output
	if path == "" {
		return nil
	}
	pix, err := p.out.DrawBytes()
	if err != nil {
		return err
	}
	img := &image.RGBA{Pix: pix, Stride: 4 * p.img.Rect.Dx(), Rect: p.img.Rect}
	return writeBMP(path, img)
}
