package demo

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gogpu/gpucontext"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/gogpu/interop"
	"github.com/gogpu/interop/backend/software"
	"github.com/gogpu/interop/backend/wgpu"
	"github.com/gogpu/interop/kernels"
	"github.com/gogpu/interop/overlay"
	"github.com/gogpu/interop/stats"
	"github.com/gogpu/interop/surface"
)

// AnimateHint is shown while the animation is paused.
const AnimateHint = "Press space to animate"

// Background is the clear colour of every frame.
var Background = color.RGBA{A: 255}

// Env is what a program builds its scene with.
type Env struct {
	Config  Config
	Surface *surface.Headless
	Overlay *overlay.Overlay

	// State reports the frame controller's state. It is set before the
	// first Setup.
	State func() interop.FrameState
}

// Program is the payload of one demo.
type Program interface {
	interop.Scene
	// Info returns the program's lines of the info overlay.
	Info() []string
}

// Adjuster is a program with a parameter the + and - keys change. Adjust
// returns the status line to show.
type Adjuster interface {
	Adjust(delta int) string
}

// Finisher is a program with work to do after the last frame, such as
// writing its output or checking results.
type Finisher interface {
	Finish(ctx context.Context, s *interop.Session) error
}

// NewFunc creates a program.
type NewFunc func(env *Env) (Program, error)

// app drives one program. It is the scene the frame controller animates:
// the program's frame with the overlay on top.
type app struct {
	env  *Env
	prog Program
	rec  *stats.Recorder
	fc   *interop.FrameController

	status     string
	quit       bool
	fullscreen bool
	frameErr   error
}

var _ interop.Scene = (*app)(nil)

func (a *app) Setup(ctx context.Context, s *interop.Session) error {
	return a.prog.Setup(ctx, s)
}

func (a *app) Step(ctx context.Context, s *interop.Session) error {
	return a.prog.Step(ctx, s)
}

func (a *app) Draw(s *interop.Session) error {
	a.env.Surface.Clear(Background)
	if err := a.prog.Draw(s); err != nil {
		return err
	}
	a.env.Overlay.SetInfo(a.infoLines(s)...)
	a.env.Overlay.SetStats(a.rec.Line())
	a.env.Overlay.Draw(a.env.Surface.Back())
	return nil
}

func (a *app) infoLines(s *interop.Session) []string {
	lines := append([]string(nil), a.prog.Info()...)
	info := s.Context.Device().Info()
	lines = append(lines, a.env.Overlay.Sprintf("%s: %s (%s)", s.Context.Class(), info.Name, s.Context.Mode()))
	if a.status != "" {
		lines = append(lines, a.status)
	}
	if !a.fc.State().Animated {
		lines = append(lines, AnimateHint)
	}
	return lines
}

func (a *app) onKey(key gpucontext.Key, mods gpucontext.Modifiers) {
	action := KeyAction(key, mods)
	interop.Logger().Debug("demo: key", "key", int(key), "action", action.String())
	switch action {
	case ActionQuit:
		a.quit = true
		return
	case ActionToggleAnimate:
		a.status = fmt.Sprintf("Animated = %t", a.fc.ToggleAnimated())
		a.env.Overlay.ShowInfo = true
	case ActionToggleInfo:
		a.env.Overlay.ToggleInfo()
	case ActionToggleStats:
		a.env.Overlay.ToggleStats()
	case ActionIncrease, ActionDecrease:
		if adj, ok := a.prog.(Adjuster); ok {
			delta := 1
			if action == ActionDecrease {
				delta = -1
			}
			a.status = adj.Adjust(delta)
		}
	case ActionFullscreen:
		a.fullscreen = !a.fullscreen
		cfg := a.env.Config
		if a.fullscreen {
			a.env.Surface.Resize(cfg.FullscreenWidth, cfg.FullscreenHeight)
		} else {
			a.env.Surface.Resize(cfg.Width, cfg.Height)
		}
	}
	a.fc.MarkDirty()
}

// OpenBackend returns the compute backend cfg asks for.
func OpenBackend(cfg Config) (interop.Backend, error) {
	name := cfg.Backend
	if name == "" && cfg.Class() == interop.ClassCPU {
		name = interop.BackendSoftware
	}
	switch name {
	case interop.BackendSoftware:
		return software.New(software.WithWorkers(cfg.Workers)), nil
	case interop.BackendWGPU:
		power, err := cfg.power()
		if err != nil {
			return nil, err
		}
		opts := []wgpu.Option{wgpu.WithPowerPreference(power)}
		if cfg.Fallback {
			opts = append(opts, wgpu.WithFallbackAdapter())
		}
		return wgpu.New(opts...), nil
	case "":
		if b := interop.DefaultBackend(); b != nil {
			return b, nil
		}
		return nil, fmt.Errorf("demo: no compute backend registered: %w", interop.ErrDeviceNotFound)
	}
	if b := interop.GetBackend(name); b != nil {
		return b, nil
	}
	return nil, fmt.Errorf("demo: unknown backend %q (have %v): %w", name, interop.AvailableBackends(), interop.ErrDeviceNotFound)
}

func loader(cfg Config) interop.SourceLoader {
	if cfg.KernelDir == "" {
		return kernels.Default()
	}
	return kernels.OSDir(cfg.KernelDir)
}

// Run runs program until cfg.Frames frames are drawn, a quit key, or ctx
// is cancelled. A summary is printed to stdout.
func Run(ctx context.Context, cfg Config, program string, newProgram NewFunc, stdout io.Writer) (err error) {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}
	keys, _ := ParseKeys(cfg.Keys)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	backend, err := OpenBackend(cfg)
	if err != nil {
		return err
	}

	surf, err := surface.Open(cfg.Surface, cfg.Width, cfg.Height)
	if err != nil {
		return err
	}
	defer surf.Close()

	over, err := overlay.New(overlay.DefaultSize, cfg.Printer())
	if err != nil {
		return err
	}
	defer over.Close()

	recOpts := []stats.Option{stats.WithInterval(cfg.StatsInterval)}
	if cfg.StatsFile != "" {
		f, ferr := os.OpenFile(cfg.StatsFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if ferr != nil {
			return fmt.Errorf("demo: stats file: %w", ferr)
		}
		defer func() { err = errors.Join(err, f.Close()) }()
		recOpts = append(recOpts, stats.WithOutput(f))
	}
	sinks := stats.Tee{}
	if cfg.MetricsAddr != "" {
		col := stats.NewCollector(program)
		reg := prometheus.NewRegistry()
		reg.MustRegister(col,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		addr, err := stats.Serve(ctx, cfg.MetricsAddr, reg)
		if err != nil {
			return err
		}
		interop.Logger().Info("demo: serving metrics", "addr", addr.String())
		recOpts = append(recOpts, stats.WithReportFunc(col.Report))
		sinks = append(sinks, col)
	}
	rec := stats.NewRecorder(recOpts...)
	sinks = append(sinks, rec)

	env := &Env{Config: cfg, Surface: surf, Overlay: over}
	prog, err := newProgram(env)
	if err != nil {
		return err
	}
	a := &app{env: env, prog: prog, rec: rec}

	bind := func() (*interop.ComputeContext, error) {
		return interop.Bind(backend, interop.BindOptions{
			Class:       cfg.Class(),
			DeviceIndex: cfg.DeviceIndex,
			Mode:        cfg.Mode(),
			Surface:     surf,
			WaitTimeout: cfg.Timeout(),
		})
	}
	a.fc = interop.NewFrameController(surf, bind, loader(cfg), a,
		interop.WithFailurePolicy(cfg.Policy()),
		interop.WithStats(sinks))
	env.State = a.fc.State
	defer func() { err = errors.Join(err, a.fc.Close()) }()

	interop.Logger().Info("demo: start", "program", program, "backend", backend.Name(),
		"class", cfg.Class().String(), "mode", cfg.Mode().String(), "width", cfg.Width, "height", cfg.Height)
	if err := a.fc.Start(ctx); err != nil {
		return err
	}
	a.fc.SetAnimated(cfg.Animate)
	a.fc.Attach(ctx, func(err error) {
		if a.frameErr == nil {
			a.frameErr = err
		}
	})
	surf.OnKeyPress(a.onKey)

	for frame := 0; cfg.Frames == 0 || frame < cfg.Frames; frame++ {
		if frame < len(keys) && keys[frame].Key != gpucontext.KeyUnknown {
			surf.PressKey(keys[frame].Key, keys[frame].Mods)
		}
		if a.quit || ctx.Err() != nil {
			break
		}
		surf.Redraw()
		if a.frameErr != nil {
			return a.frameErr
		}
	}

	if fin, ok := prog.(Finisher); ok {
		if err := fin.Finish(context.WithoutCancel(ctx), a.fc.Session()); err != nil {
			return err
		}
	}

	st := a.fc.State()
	p := cfg.Printer()
	p.Fprintf(stdout, "%s: %d frames, %d dispatches, %d restarts\n", program, st.FrameCount, st.DispatchCount, a.fc.Restarts())
	if line := rec.Line(); line != "" {
		fmt.Fprintln(stdout, line)
	}
	return nil
}

// Main parses the command line, runs program and exits. Setup and frame
// failures print a diagnostic and exit with status 1.
func Main(program string, newProgram NewFunc) {
	cfg, err := ParseArgs(program, os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", program, err)
		os.Exit(2)
	}
	if cfg.DumpConfig {
		if err := cfg.WriteTOML(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", program, err)
			os.Exit(1)
		}
		return
	}
	if cfg.Verbose {
		interop.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = Run(ctx, cfg, program, newProgram, os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", program, err)
		os.Exit(1)
	}
}
