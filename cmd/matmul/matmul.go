package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/gogpu/interop"
	"github.com/gogpu/interop/internal/demo"
	"github.com/gogpu/interop/kernels"
)

const (
	defaultSize = 512
	vectorSize  = 4
	tolerance   = 1e-3
)

type matmul struct {
	env *demo.Env
	n   int
	lds bool
	rng *rand.Rand

	a, b []float32 // host copies of the last inputs

	bufA, bufB, bufC *interop.SharedBuffer
	kern             *kernels.Fitted
	computed         bool
}

func newMatMul(env *demo.Env) (demo.Program, error) {
	n := env.Config.Size
	if n == 0 {
		n = defaultSize
	}
	// Every block of every ladder rung must tile the matrix.
	unit := kernels.Entries["mmmKernel"].Group[0] * vectorSize
	n = (n + unit - 1) / unit * unit
	p := &matmul{
		env: env,
		n:   n,
		lds: env.Config.LDS,
		rng: rand.New(rand.NewPCG(3, uint64(n))),
	}
	p.a, p.b = p.random(), p.random()
	return p, nil
}

func (p *matmul) random() []float32 {
	m := make([]float32, p.n*p.n)
	for i := range m {
		m[i] = p.rng.Float32()
	}
	return m
}

func (p *matmul) entry() string {
	if p.lds {
		return "mmmKernel_local"
	}
	return "mmmKernel"
}

// localBytes is the scratch the local-memory kernel asks for per group.
func localBytes(block int) int { return 2 * block * block * 4 }

func (p *matmul) Setup(ctx context.Context, s *interop.Session) error {
	size := 4 * p.n * p.n
	var err error
	if p.bufA, err = s.Pool.Allocate(ctx, interop.SizeSpec{Label: "A", Size: size, Init: demo.Floats(p.a)}); err != nil {
		return err
	}
	if p.bufB, err = s.Pool.Allocate(ctx, interop.SizeSpec{Label: "B", Size: size, Init: demo.Floats(p.b)}); err != nil {
		return err
	}
	if p.bufC, err = s.Pool.Allocate(ctx, interop.SizeSpec{Label: "C", Size: size}); err != nil {
		return err
	}
	p.computed = false
	l := kernels.Ladder{
		Domain: func(block int) interop.WorkDomain {
			return interop.NewDomain2D(p.n, p.n, kernels.Unroll(p.entry()), block)
		},
		Defines: func(block int) map[string]string {
			return map[string]string{"TILE": strconv.Itoa(vectorSize * block * block)}
		},
	}
	if p.lds {
		l.Local = localBytes
	}
	p.kern, err = kernels.Build(s, p.entry(), l)
	return err
}

func (p *matmul) Step(ctx context.Context, s *interop.Session) error {
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
	last := interop.Uint32(uint32(p.n))
	if p.lds {
		last = interop.Local(localBytes(p.kern.Group))
	}
	err := s.Dispatcher.SetArgs(p.kern.Kernel,
		interop.In(p.bufA),
		interop.In(p.bufB),
		interop.Out(p.bufC),
		interop.Uint32(uint32(p.n)),
		last)
	if err != nil {
		return err
	}
	if err := s.Dispatcher.Dispatch(ctx, p.kern.Kernel, p.kern.Domain); err != nil {
		return err
	}
	p.computed = true
	return nil
}

func (p *matmul) Draw(*interop.Session) error {
	data, err := p.bufC.DrawBytes()
	if err != nil {
		return err
	}
	return p.env.Surface.DrawGrid(demo.ToFloats(data), p.n, p.n)
}

func (p *matmul) Info() []string {
	return []string{
		p.env.Overlay.Sprintf("Matrix: %dx%d", p.n, p.n),
		p.env.Overlay.Sprintf("Kernel: %s, block %d", p.entry(), p.kern.Group),
	}
}

// Finish checks the last product against the host reference.
func (p *matmul) Finish(context.Context, *interop.Session) error {
	if !p.computed {
		return nil
	}
	data, err := p.bufC.DrawBytes()
	if err != nil {
		return err
	}
	got := demo.ToFloats(data)
	want := reference(p.a, p.b, p.n)
	for i := range want {
		if !demo.Near(got[i], want[i], tolerance) {
			return fmt.Errorf("matmul: C[%d][%d] = %v, want %v", i/p.n, i%p.n, got[i], want[i])
		}
	}
	interop.Logger().Info("matmul: verified", "n", p.n)
	return nil
}

// reference multiplies row-major n x n matrices.
func reference(a, b []float32, n int) []float32 {
	c := make([]float32, n*n)
	for r := range n {
		row := c[r*n : (r+1)*n]
		for k := range n {
			av := a[r*n+k]
			for col, bv := range b[k*n : (k+1)*n] {
				row[col] += av * bv
			}
		}
	}
	return c
}
