package main

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"math/rand/v2"

	"github.com/gogpu/interop"
	"github.com/gogpu/interop/internal/demo"
	"github.com/gogpu/interop/kernels"
)

const (
	defaultSamples = 128 * 128
	maxPlotted     = 1024
	initialRange   = 10
	updateRange    = 100
)

var spectrumColor = color.RGBA{R: 140, G: 255, B: 140, A: 255}

type fft struct {
	env *demo.Env
	n   int
	rng *rand.Rand

	// Input of the last transform.
	re, im []float32

	real, imag *interop.SharedBuffer
	kern       *kernels.Fitted
	computed   bool
}

func newFFT(env *demo.Env) (demo.Program, error) {
	n := env.Config.Size
	if n == 0 {
		n = defaultSamples
	}
	// Blocks shrink with the work-group; the largest divides them all.
	block := kernels.Entries["kfft"].Group[0]
	n = (n + block - 1) / block * block
	p := &fft{env: env, n: n, rng: rand.New(rand.NewPCG(7, uint64(n)))}
	p.re, p.im = p.random(initialRange), p.random(initialRange)
	return p, nil
}

func (p *fft) random(scale float32) []float32 {
	v := make([]float32, p.n)
	for i := range v {
		v[i] = p.rng.Float32() * scale
	}
	return v
}

func (p *fft) Setup(ctx context.Context, s *interop.Session) error {
	var err error
	if p.real, err = s.Pool.Allocate(ctx, interop.SizeSpec{Label: "real", Size: 4 * p.n, Init: demo.Floats(p.re)}); err != nil {
		return err
	}
	if p.imag, err = s.Pool.Allocate(ctx, interop.SizeSpec{Label: "imag", Size: 4 * p.n, Init: demo.Floats(p.im)}); err != nil {
		return err
	}
	p.computed = false
	p.kern, err = kernels.Build(s, "kfft", kernels.Ladder{
		Domain: func(group int) interop.WorkDomain {
			return interop.NewDomain1D(p.n, kernels.Unroll("kfft"), group)
		},
	})
	return err
}

// Step refills the samples and transforms them in place.
func (p *fft) Step(ctx context.Context, s *interop.Session) error {
	p.computed = false
	p.re, p.im = p.random(updateRange), p.random(updateRange)
	if err := s.Pool.Push(ctx, p.real, demo.Floats(p.re)); err != nil {
		return err
	}
	if err := s.Pool.Push(ctx, p.imag, demo.Floats(p.im)); err != nil {
		return err
	}
	if err := s.Dispatcher.SetArgs(p.kern.Kernel, interop.InOut(p.real), interop.InOut(p.imag)); err != nil {
		return err
	}
	if err := s.Dispatcher.Dispatch(ctx, p.kern.Kernel, p.kern.Domain); err != nil {
		return err
	}
	p.computed = true
	return nil
}

func (p *fft) spectrum() ([]float32, []float32, error) {
	re, err := p.real.DrawBytes()
	if err != nil {
		return nil, nil, err
	}
	im, err := p.imag.DrawBytes()
	if err != nil {
		return nil, nil, err
	}
	return demo.ToFloats(re), demo.ToFloats(im), nil
}

func (p *fft) Draw(*interop.Session) error {
	re, im, err := p.spectrum()
	if err != nil {
		return err
	}
	mag := make([]float32, min(p.n, maxPlotted))
	for i := range mag {
		mag[i] = float32(math.Hypot(float64(re[i]), float64(im[i])))
	}
	p.env.Surface.DrawSeries(mag, spectrumColor)
	return nil
}

func (p *fft) Info() []string {
	return []string{p.env.Overlay.Sprintf("Samples: %d in blocks of %d", p.n, p.kern.Group)}
}

// Finish checks the last spectrum against a host transform of its input.
func (p *fft) Finish(context.Context, *interop.Session) error {
	if !p.computed {
		return nil
	}
	re, im, err := p.spectrum()
	if err != nil {
		return err
	}
	// One work-group transforms one block.
	block := p.kern.Group
	wantRe, wantIm := blockDFT(p.re, p.im, block)
	for base := 0; base < p.n; base += block {
		var norm float64
		for i := base; i < base+block; i++ {
			norm += math.Abs(float64(p.re[i])) + math.Abs(float64(p.im[i]))
		}
		tol := 1e-4 * max(norm, 1)
		for i := base; i < base+block; i++ {
			if math.Abs(float64(re[i])-wantRe[i]) > tol || math.Abs(float64(im[i])-wantIm[i]) > tol {
				return fmt.Errorf("fft: bin %d = (%v, %v), want (%.4f, %.4f)", i, re[i], im[i], wantRe[i], wantIm[i])
			}
		}
	}
	return nil
}

// blockDFT transforms consecutive blocks of n samples.
func blockDFT(re, im []float32, n int) ([]float64, []float64) {
	outRe := make([]float64, len(re))
	outIm := make([]float64, len(im))
	for base := 0; base+n <= len(re); base += n {
		for k := range n {
			var sr, si float64
			for t := range n {
				angle := -2 * math.Pi * float64((k*t)%n) / float64(n)
				c, s := math.Cos(angle), math.Sin(angle)
				x, y := float64(re[base+t]), float64(im[base+t])
				sr += x*c - y*s
				si += x*s + y*c
			}
			outRe[base+k], outIm[base+k] = sr, si
		}
	}
	return outRe, outIm
}
