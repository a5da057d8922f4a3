package main

import (
	"context"
	"fmt"
	"image/color"
	"math/rand/v2"

	"github.com/gogpu/interop"
	"github.com/gogpu/interop/internal/demo"
	"github.com/gogpu/interop/kernels"
)

const defaultLength = 1024

var sumColor = color.RGBA{R: 120, G: 200, B: 255, A: 255}

type vecadd struct {
	env *demo.Env
	n   int
	rng *rand.Rand

	a, b     []float32
	bufA     *interop.SharedBuffer
	bufB     *interop.SharedBuffer
	bufC     *interop.SharedBuffer
	kern     *kernels.Fitted
	computed bool
}

func newVecAdd(env *demo.Env) (demo.Program, error) {
	n := env.Config.Size
	if n == 0 {
		n = defaultLength
	}
	p := &vecadd{env: env, n: n, rng: rand.New(rand.NewPCG(5, uint64(n)))}
	p.a, p.b = p.random(), p.random()
	return p, nil
}

func (p *vecadd) random() []float32 {
	v := make([]float32, p.n)
	for i := range v {
		v[i] = p.rng.Float32()
	}
	return v
}

func (p *vecadd) Setup(ctx context.Context, s *interop.Session) error {
	var err error
	if p.bufA, err = s.Pool.Allocate(ctx, interop.SizeSpec{Label: "a", Size: 4 * p.n, Init: demo.Floats(p.a)}); err != nil {
		return err
	}
	if p.bufB, err = s.Pool.Allocate(ctx, interop.SizeSpec{Label: "b", Size: 4 * p.n, Init: demo.Floats(p.b)}); err != nil {
		return err
	}
	if p.bufC, err = s.Pool.Allocate(ctx, interop.SizeSpec{Label: "c", Size: 4 * p.n}); err != nil {
		return err
	}
	p.computed = false
	p.kern, err = kernels.Build(s, "vecadd", kernels.Ladder{
		Domain: func(group int) interop.WorkDomain {
			return interop.NewDomain1D(p.n, kernels.Unroll("vecadd"), group)
		},
	})
	return err
}

func (p *vecadd) Step(ctx context.Context, s *interop.Session) error {
	p.computed = false
	if p.env.State != nil && p.env.State().Animated {
		p.a, p.b = p.random(), p.random()
		if err := s.Pool.Push(ctx, p.bufA, demo.Floats(p.a)); err != nil {
			return err
		}
		if err := s.Pool.Push(ctx, p.bufB, demo.Floats(p.b)); err != nil {
			return err
		}
	}
	err := s.Dispatcher.SetArgs(p.kern.Kernel, interop.In(p.bufA), interop.In(p.bufB), interop.Out(p.bufC), interop.Uint32(uint32(p.n)))
	if err != nil {
		return err
	}
	if err := s.Dispatcher.Dispatch(ctx, p.kern.Kernel, p.kern.Domain); err != nil {
		return err
	}
	p.computed = true
	return nil
}

func (p *vecadd) Draw(*interop.Session) error {
	data, err := p.bufC.DrawBytes()
	if err != nil {
		return err
	}
	p.env.Surface.DrawSeries(demo.ToFloats(data), sumColor)
	return nil
}

func (p *vecadd) Info() []string {
	return []string{
		p.env.Overlay.Sprintf("Elements: %d", p.n),
		p.env.Overlay.Sprintf("Work-group: %d", p.kern.Group),
	}
}

func (p *vecadd) Finish(context.Context, *interop.Session) error {
	if !p.computed {
		return nil
	}
	data, err := p.bufC.DrawBytes()
	if err != nil {
		return err
	}
	for i, got := range demo.ToFloats(data) {
		if want := p.a[i] + p.b[i]; got != want {
			return fmt.Errorf("vecadd: c[%d] = %v, want %v", i, got, want)
		}
	}
	return nil
}
