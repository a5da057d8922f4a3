package main

import (
	"context"
	"image/color"
	"math/rand/v2"

	"github.com/gogpu/interop"
	"github.com/gogpu/interop/internal/demo"
	"github.com/gogpu/interop/kernels"
	"github.com/gogpu/interop/surface"
)

const (
	defaultBodies = 1024
	deltaTime     = 0.005
	epsSqr        = 500
)

var (
	bodyView  = surface.View{CenterX: 25, CenterY: 30, Extent: 40}
	bodyColor = color.RGBA{R: 255, G: 220, B: 140, A: 255}
)

// nbody keeps positions and velocities in double buffers. Each step reads
// the current pair and writes the next; the pool swaps them afterwards.
type nbody struct {
	env  *demo.Env
	n    int
	seed uint64

	pos, vel *interop.DoubleBuffer
	kern     *kernels.Fitted
}

func newNBody(env *demo.Env) (demo.Program, error) {
	n := env.Config.Size
	if n == 0 {
		n = defaultBodies
	}
	// The kernel walks the bodies in whole tiles, and every smaller rung
	// of the ladder divides the largest.
	tile := kernels.Entries["nbody_sim"].Group[0]
	n = (n + tile - 1) / tile * tile
	return &nbody{env: env, n: n, seed: 1}, nil
}

// initialBodies scatters n bodies in the cube [3, 50]^3 with masses in
// [1, 1000], carried in w.
func initialBodies(n int, rng *rand.Rand) []float32 {
	pos := make([]float32, 4*n)
	for i := range n {
		for j := range 3 {
			pos[4*i+j] = 3 + rng.Float32()*47
		}
		pos[4*i+3] = 1 + rng.Float32()*999
	}
	return pos
}

func (p *nbody) Setup(ctx context.Context, s *interop.Session) error {
	rng := rand.New(rand.NewPCG(p.seed, uint64(p.n)))
	init := demo.Floats(initialBodies(p.n, rng))

	var err error
	p.pos, err = s.Pool.AllocateDouble(ctx, interop.SizeSpec{Label: "pos", Size: len(init), Init: init})
	if err != nil {
		return err
	}
	p.vel, err = s.Pool.AllocateDouble(ctx, interop.SizeSpec{Label: "vel", Size: len(init), Private: true})
	if err != nil {
		return err
	}
	p.kern, err = kernels.Build(s, "nbody_sim", kernels.Ladder{
		Domain: func(group int) interop.WorkDomain {
			return interop.NewDomain1D(p.n, kernels.Unroll("nbody_sim"), group)
		},
	})
	return err
}

func (p *nbody) Step(ctx context.Context, s *interop.Session) error {
	err := s.Dispatcher.SetArgs(p.kern.Kernel,
		interop.In(p.pos.Current()),
		interop.In(p.vel.Current()),
		interop.Uint32(uint32(p.n)),
		interop.Float32(deltaTime),
		interop.Float32(epsSqr),
		interop.Out(p.pos.Next()),
		interop.Out(p.vel.Next()))
	if err != nil {
		return err
	}
	return s.Dispatcher.Dispatch(ctx, p.kern.Kernel, p.kern.Domain)
}

func (p *nbody) Draw(*interop.Session) error {
	data, err := p.pos.Current().DrawBytes()
	if err != nil {
		return err
	}
	return p.env.Surface.DrawPoints(data, 4, bodyView, bodyColor)
}

func (p *nbody) Info() []string {
	return []string{
		p.env.Overlay.Sprintf("Bodies: %d", p.n),
		p.env.Overlay.Sprintf("Tile: %d", p.kern.Group),
	}
}
