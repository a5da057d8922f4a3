package interop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Phase is a state of the frame controller.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseAcquiring
	PhaseDispatching
	PhaseReleasing
	PhaseDrawing
	PhasePresented
)

var phaseNames = [...]string{"idle", "acquiring", "dispatching", "releasing", "drawing", "presented"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// FrameState is the per-frame bookkeeping. Only the frame controller
// mutates it, once per presented frame.
type FrameState struct {
	FrameCount    uint64
	DispatchCount uint64
	Elapsed       time.Duration // accumulated frame time
	Animated      bool
	NeedsUpdate   bool // forces one recompute while not animating
}

// FailurePolicy decides what a failed frame does.
type FailurePolicy uint8

const (
	// FailFatal aborts the frame and returns a *FrameError. The harness
	// terminates the process.
	FailFatal FailurePolicy = iota
	// FailSkipFrame logs the failure, hands every buffer back to the draw
	// side and keeps the previous contents on screen.
	FailSkipFrame
)

func (p FailurePolicy) String() string {
	if p == FailSkipFrame {
		return "skip"
	}
	return "fatal"
}

// ParseFailurePolicy parses "fatal" or "skip".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fatal":
		return FailFatal, nil
	case "skip", "skip-frame":
		return FailSkipFrame, nil
	}
	return FailFatal, fmt.Errorf("interop: unknown failure policy %q", s)
}

// Session groups the objects that live for one binding: the context, its
// resource pool and its dispatcher. A full restart replaces the session.
type Session struct {
	Context    *ComputeContext
	Pool       *ResourcePool
	Dispatcher *Dispatcher
}

// NewSession wraps a bound context.
func NewSession(c *ComputeContext, loader SourceLoader) *Session {
	return &Session{
		Context:    c,
		Pool:       NewResourcePool(c),
		Dispatcher: NewDispatcher(c, loader),
	}
}

// Close destroys the pool and closes the context.
func (s *Session) Close() error {
	s.Pool.Close()
	return s.Context.Close()
}

// Scene is the payload a frame controller animates.
type Scene interface {
	// Setup builds kernels and allocates buffers for a fresh session.
	Setup(ctx context.Context, s *Session) error
	// Step runs one simulation step. Every buffer of the pool is owned by
	// the compute side while it runs.
	Step(ctx context.Context, s *Session) error
	// Draw renders the draw-side buffers onto the surface.
	Draw(s *Session) error
}

// Binder produces a bound compute context. It is called at start and on
// every full restart.
type Binder func() (*ComputeContext, error)

// FrameSample describes one presented frame.
type FrameSample struct {
	Frame      uint64
	Dispatched bool
	Compute    time.Duration // acquire through release
	Total      time.Duration
	Mode       InteropMode
	Class      DeviceClass
}

// StatsSink receives one sample per presented frame.
type StatsSink interface {
	Observe(FrameSample)
}

// FrameOption configures a FrameController.
type FrameOption func(*FrameController)

// WithFailurePolicy sets the failure policy. The default is FailFatal.
func WithFailurePolicy(p FailurePolicy) FrameOption {
	return func(f *FrameController) { f.policy = p }
}

// WithStats sets the stats sink.
func WithStats(s StatsSink) FrameOption {
	return func(f *FrameController) { f.stats = s }
}

// WithRestartThreshold sets the area growth factor past which a resize
// triggers a full restart. The default is 2.
func WithRestartThreshold(factor float64) FrameOption {
	return func(f *FrameController) {
		if factor > 0 {
			f.threshold = factor
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) FrameOption {
	return func(f *FrameController) { f.now = now }
}

// FrameController runs the animation loop, one frame per redraw:
//
//	Idle -> Acquiring -> Dispatching -> Releasing -> Drawing -> Presented -> Idle
//
// A frame recomputes only while animated or after MarkDirty; otherwise it
// goes straight to Drawing with the previous buffer contents. After a
// successful step every double buffer of the pool swaps.
//
// A FrameController is driven from a single goroutine.
type FrameController struct {
	surface Surface
	bind    Binder
	loader  SourceLoader
	scene   Scene

	policy    FailurePolicy
	stats     StatsSink
	threshold float64
	now       func() time.Time

	session  *Session
	state    FrameState
	phase    Phase
	width    int
	height   int
	restarts int
	closed   bool
}

// NewFrameController returns a controller that draws scene onto s.
func NewFrameController(s Surface, bind Binder, loader SourceLoader, scene Scene, opts ...FrameOption) *FrameController {
	f := &FrameController{
		surface:   s,
		bind:      bind,
		loader:    loader,
		scene:     scene,
		threshold: 2,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Start binds the first session and sets the scene up. The first frame
// always recomputes.
func (f *FrameController) Start(ctx context.Context) error {
	if f.closed {
		return ErrClosed
	}
	if f.session != nil {
		return nil
	}
	f.width, f.height = f.surface.Size()
	if err := f.open(ctx); err != nil {
		return err
	}
	f.state.NeedsUpdate = true
	return nil
}

func (f *FrameController) open(ctx context.Context) error {
	c, err := f.bind()
	if err != nil {
		return err
	}
	s := NewSession(c, f.loader)
	if err := f.scene.Setup(ctx, s); err != nil {
		if cerr := s.Close(); cerr != nil {
			slogger().Warn("interop: session close after failed setup", "err", cerr)
		}
		return err
	}
	f.session = s
	return nil
}

// Attach registers the controller's redraw and resize handlers on the
// surface. Errors from callbacks are passed to onErr.
func (f *FrameController) Attach(ctx context.Context, onErr func(error)) {
	report := func(err error) {
		if err != nil && onErr != nil {
			onErr(err)
		}
	}
	f.surface.OnRedraw(func() { report(f.Redraw(ctx)) })
	f.surface.OnResize(func(w, h int) { report(f.Resize(ctx, w, h)) })
}

// Redraw runs one frame.
func (f *FrameController) Redraw(ctx context.Context) error {
	if f.closed {
		return ErrClosed
	}
	if f.session == nil {
		if err := f.Start(ctx); err != nil {
			return err
		}
	}
	defer func() { f.phase = PhaseIdle }()

	start := f.now()
	f.state.FrameCount++
	sample := FrameSample{
		Frame: f.state.FrameCount,
		Mode:  f.session.Context.Mode(),
		Class: f.session.Context.Class(),
	}

	if f.state.Animated || f.state.NeedsUpdate {
		phase, err := f.compute(ctx)
		if err != nil {
			return f.fail(ctx, phase, err)
		}
		sample.Dispatched = true
		sample.Compute = f.now().Sub(start)
	}

	f.phase = PhaseDrawing
	if err := f.scene.Draw(f.session); err != nil {
		return f.fail(ctx, PhaseDrawing, err)
	}
	if err := f.surface.SwapBuffers(); err != nil {
		return f.fail(ctx, PhaseDrawing, err)
	}
	f.phase = PhasePresented

	sample.Total = f.now().Sub(start)
	f.state.Elapsed += sample.Total
	if f.stats != nil {
		f.stats.Observe(sample)
	}
	return nil
}

// compute runs Acquiring, Dispatching and Releasing. It returns the phase
// that failed.
func (f *FrameController) compute(ctx context.Context) (Phase, error) {
	s := f.session

	f.phase = PhaseAcquiring
	if err := s.Pool.PushPending(ctx); err != nil {
		return PhaseAcquiring, err
	}
	if err := s.Pool.AcquireAll(ctx); err != nil {
		return PhaseAcquiring, err
	}

	f.phase = PhaseDispatching
	f.state.NeedsUpdate = false
	before := s.Dispatcher.Count()
	if err := f.scene.Step(ctx, s); err != nil {
		return PhaseDispatching, err
	}
	f.state.DispatchCount += s.Dispatcher.Count() - before
	s.Pool.SwapAll()

	f.phase = PhaseReleasing
	if err := s.Pool.ReleaseAll(ctx); err != nil {
		return PhaseReleasing, err
	}
	return PhaseReleasing, nil
}

func (f *FrameController) fail(ctx context.Context, phase Phase, err error) error {
	ferr := &FrameError{Phase: phase, Frame: f.state.FrameCount, Err: err}
	if f.policy == FailSkipFrame {
		slogger().Warn("interop: frame skipped", "frame", ferr.Frame, "phase", phase.String(), "err", err)
		if rerr := f.session.Pool.Recover(ctx); rerr != nil {
			slogger().Warn("interop: recovery failed", "frame", ferr.Frame, "err", rerr)
		}
		return nil
	}
	slogger().Error("interop: frame failed", "frame", ferr.Frame, "phase", phase.String(), "err", err)
	return ferr
}

// Resize records the new surface size and forces a recompute. When the
// area grows past the restart threshold the session is torn down and
// rebuilt from a fresh binding.
func (f *FrameController) Resize(ctx context.Context, width, height int) error {
	if f.closed {
		return ErrClosed
	}
	oldArea := float64(f.width) * float64(f.height)
	newArea := float64(width) * float64(height)
	f.width, f.height = width, height
	f.state.NeedsUpdate = true

	if f.session == nil || oldArea <= 0 || newArea <= f.threshold*oldArea {
		return nil
	}

	slogger().Info("interop: full restart", "width", width, "height", height, "growth", newArea/oldArea)
	err := f.session.Close()
	f.session = nil
	if err != nil {
		slogger().Warn("interop: close during restart", "err", err)
	}
	if err := f.open(ctx); err != nil {
		return fmt.Errorf("interop: restart after resize to %dx%d: %w", width, height, err)
	}
	f.restarts++
	return nil
}

// SetAnimated turns continuous recompute on or off.
func (f *FrameController) SetAnimated(on bool) { f.state.Animated = on }

// ToggleAnimated flips continuous recompute and returns the new value.
func (f *FrameController) ToggleAnimated() bool {
	f.state.Animated = !f.state.Animated
	return f.state.Animated
}

// MarkDirty forces a recompute on the next frame.
func (f *FrameController) MarkDirty() { f.state.NeedsUpdate = true }

// State returns a copy of the frame state.
func (f *FrameController) State() FrameState { return f.state }

// Phase returns the current phase.
func (f *FrameController) Phase() Phase { return f.phase }

// Session returns the live session, nil before Start or after Close.
func (f *FrameController) Session() *Session { return f.session }

// Restarts returns the number of full restarts.
func (f *FrameController) Restarts() int { return f.restarts }

// Close tears the session down. The surface is not closed.
func (f *FrameController) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if f.session == nil {
		return nil
	}
	err := f.session.Close()
	f.session = nil
	if err != nil && !errors.Is(err, ErrClosed) {
		return err
	}
	return nil
}
