// Package demotest runs demo programs on the software backend with the
// session kept open, so tests can read their buffers between frames.
package demotest

import (
	"context"
	"fmt"
	"testing"

	"github.com/gogpu/interop"
	"github.com/gogpu/interop/backend/software"
	"github.com/gogpu/interop/internal/demo"
	"github.com/gogpu/interop/kernels"
	"github.com/gogpu/interop/overlay"
	"github.com/gogpu/interop/surface"
)

// Config returns a small cpu configuration.
func Config() demo.Config {
	cfg := demo.Default()
	cfg.Device = "cpu"
	cfg.Width, cfg.Height = 64, 64
	cfg.FullscreenWidth, cfg.FullscreenHeight = 160, 120
	cfg.Workers = 2
	return cfg
}

// SmallDevice registers a software backend whose work-groups hold at most
// maxGroup items and returns its name. It is removed when the test ends.
func SmallDevice(tb testing.TB, maxGroup int) string {
	tb.Helper()
	name := fmt.Sprintf("software-%d", maxGroup)
	limits := software.DefaultLimits
	limits.MaxWorkGroupSize = maxGroup
	interop.RegisterBackend(name, func() interop.Backend {
		return software.New(software.WithWorkers(2), software.WithLimits(limits))
	})
	tb.Cleanup(func() { interop.UnregisterBackend(name) })
	return name
}

// Rig is a running program.
type Rig struct {
	Env        *demo.Env
	Program    demo.Program
	Controller *interop.FrameController
}

// New creates the program with newProgram and starts it. Everything is
// torn down when the test ends.
func New(tb testing.TB, cfg demo.Config, newProgram demo.NewFunc) *Rig {
	tb.Helper()
	if err := cfg.Validate(); err != nil {
		tb.Fatal(err)
	}
	backend, err := demo.OpenBackend(cfg)
	if err != nil {
		tb.Fatal(err)
	}
	surf := surface.NewHeadless(cfg.Width, cfg.Height)
	over, err := overlay.New(overlay.DefaultSize, cfg.Printer())
	if err != nil {
		tb.Fatal(err)
	}
	env := &demo.Env{Config: cfg, Surface: surf, Overlay: over}
	prog, err := newProgram(env)
	if err != nil {
		tb.Fatalf("new program: %v", err)
	}

	bind := func() (*interop.ComputeContext, error) {
		return interop.Bind(backend, interop.BindOptions{
			Class:       cfg.Class(),
			DeviceIndex: cfg.DeviceIndex,
			Mode:        cfg.Mode(),
			Surface:     surf,
		})
	}
	fc := interop.NewFrameController(surf, bind, kernels.Default(), prog)
	env.State = fc.State
	tb.Cleanup(func() {
		if err := fc.Close(); err != nil {
			tb.Errorf("close: %v", err)
		}
		_ = over.Close()
		_ = surf.Close()
	})
	if err := fc.Start(context.Background()); err != nil {
		tb.Fatalf("start: %v", err)
	}
	return &Rig{Env: env, Program: prog, Controller: fc}
}

// Session returns the live session.
func (r *Rig) Session() *interop.Session { return r.Controller.Session() }

// Step runs n frames that each recompute.
func (r *Rig) Step(tb testing.TB, n int) {
	tb.Helper()
	for range n {
		r.Controller.MarkDirty()
		if err := r.Controller.Redraw(context.Background()); err != nil {
			tb.Fatalf("frame %d: %v", r.Controller.State().FrameCount, err)
		}
	}
}

// Finish runs the program's end-of-run work, if it has any.
func (r *Rig) Finish(tb testing.TB) {
	tb.Helper()
	fin, ok := r.Program.(demo.Finisher)
	if !ok {
		return
	}
	if err := fin.Finish(context.Background(), r.Session()); err != nil {
		tb.Fatalf("finish: %v", err)
	}
}

// Floats returns the draw-side contents of b as float32 values.
func Floats(tb testing.TB, b *interop.SharedBuffer) []float32 {
	tb.Helper()
	data, err := b.DrawBytes()
	if err != nil {
		tb.Fatal(err)
	}
	return demo.ToFloats(data)
}
