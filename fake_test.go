package interop

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// Fakes for the device contract. Commands complete synchronously unless a
// test makes them hang or lag; tests inspect the recorded calls.

type fakeBackend struct {
	name      string
	platforms []Platform
	err       error
}

func (b *fakeBackend) Name() string                   { return b.name }
func (b *fakeBackend) Platforms() ([]Platform, error) { return b.platforms, b.err }

type fakePlatform struct {
	name string
	// interop[display] lists the interop-capable devices of that display.
	interop [][]*fakeDevice
	devices []*fakeDevice
	tried   []int
}

func (p *fakePlatform) Name() string  { return p.name }
func (p *fakePlatform) Displays() int { return len(p.interop) }

func (p *fakePlatform) Devices(class DeviceClass) ([]Device, error) {
	var out []Device
	for _, d := range p.devices {
		if class.Matches(d.info.Type) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (p *fakePlatform) InteropDevices(_ Surface, display int, class DeviceClass) ([]Device, error) {
	p.tried = append(p.tried, display)
	var out []Device
	for _, d := range p.interop[display] {
		if class.Matches(d.info.Type) {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeKernelDef struct {
	info KernelWorkGroupInfo
	run  func(args []KernelArg, global [3]int)
}

type fakeDevice struct {
	info     DeviceInfo
	limits   Limits
	interop  bool
	kernels  map[string]fakeKernelDef
	buildErr error
	queueErr error

	released bool
	queue    *fakeQueue
	mems     []*fakeMemory
}

func newFakeDevice(name string, t gputypes.DeviceType) *fakeDevice {
	return &fakeDevice{
		info: DeviceInfo{Name: name, Vendor: "fake", Platform: "fake", Type: t},
		limits: Limits{
			MaxWorkGroupSize: 256,
			MaxWorkItemSizes: [3]int{256, 256, 64},
			LocalMemSize:     16384,
			MaxBufferSize:    1 << 28,
		},
		kernels: map[string]fakeKernelDef{
			"identity": {run: copyKernel},
		},
	}
}

// copyKernel copies argument 0 into argument 1.
func copyKernel(args []KernelArg, _ [3]int) {
	src := args[0].Memory.(*fakeMemory)
	dst := args[1].Memory.(*fakeMemory)
	copy(dst.data, src.data)
}

func (d *fakeDevice) Info() DeviceInfo               { return d.info }
func (d *fakeDevice) Limits() Limits                 { return d.limits }
func (d *fakeDevice) SupportsInterop(s Surface) bool { return d.interop }
func (d *fakeDevice) Release()                       { d.released = true }
func (d *fakeDevice) liveMemories() (n int) {
	for _, m := range d.mems {
		if !m.released {
			n++
		}
	}
	return n
}

func (d *fakeDevice) NewQueue() (Queue, error) {
	if d.queueErr != nil {
		return nil, d.queueErr
	}
	d.queue = &fakeQueue{dev: d}
	return d.queue, nil
}

func (d *fakeDevice) NewMemory(label string, size int, flags MemFlags) (Memory, error) {
	m := &fakeMemory{label: label, data: make([]byte, size), flags: flags}
	d.mems = append(d.mems, m)
	return m, nil
}

func (d *fakeDevice) BuildProgram(name, source, options string) (BuiltProgram, error) {
	if d.buildErr != nil {
		return nil, d.buildErr
	}
	return &fakeProgram{dev: d, name: name, options: options}, nil
}

type fakeMemory struct {
	label    string
	data     []byte
	flags    MemFlags
	released bool
}

func (m *fakeMemory) Size() int     { return len(m.data) }
func (m *fakeMemory) Release()      { m.released = true }
func (m *fakeMemory) Bytes() []byte { return m.data }

type fakeProgram struct {
	dev      *fakeDevice
	name     string
	options  string
	released bool
}

func (p *fakeProgram) Kernel(entry string) (Kernel, error) {
	def, ok := p.dev.kernels[entry]
	if !ok {
		return nil, &CompileError{Source: p.name, Entry: entry, Log: "no such entry point"}
	}
	return &fakeKernel{name: entry, def: def}, nil
}

func (p *fakeProgram) Release() { p.released = true }

type fakeKernel struct {
	name     string
	def      fakeKernelDef
	args     []KernelArg
	released bool
}

func (k *fakeKernel) Name() string                       { return k.name }
func (k *fakeKernel) WorkGroupInfo() KernelWorkGroupInfo { return k.def.info }
func (k *fakeKernel) Release()                           { k.released = true }

func (k *fakeKernel) SetArg(i int, a KernelArg) error {
	for len(k.args) <= i {
		k.args = append(k.args, KernelArg{})
	}
	k.args[i] = a
	return nil
}

type fakeEvent struct{ err error }

func (e fakeEvent) Status() EventStatus {
	if e.err != nil {
		return EventFailed
	}
	return EventComplete
}

func (e fakeEvent) Wait(context.Context) error { return e.err }

// blockingEvent never completes.
type blockingEvent struct{}

func (blockingEvent) Status() EventStatus { return EventRunning }
func (blockingEvent) Wait(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// lateEvent is a read that lands in dst only when complete is called,
// after any wait on it has given up.
type lateEvent struct {
	dst, src []byte
}

func (*lateEvent) Status() EventStatus { return EventRunning }
func (*lateEvent) Wait(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
func (e *lateEvent) complete() { copy(e.dst, e.src) }

type fakeQueue struct {
	dev *fakeDevice

	enqueued []string
	acquires int
	releases int
	writes   int
	reads    int
	finished int

	enqueueErr error
	readErr    error
	hang       bool
	slowReads  bool
	late       []*lateEvent
	released   bool
}

func (q *fakeQueue) WriteBuffer(m Memory, off int, data []byte) (Event, error) {
	q.writes++
	copy(m.(*fakeMemory).data[off:], data)
	return fakeEvent{}, nil
}

func (q *fakeQueue) ReadBuffer(m Memory, off int, dst []byte) (Event, error) {
	if q.readErr != nil {
		return nil, q.readErr
	}
	q.reads++
	if q.slowReads {
		ev := &lateEvent{dst: dst, src: bytes.Clone(m.(*fakeMemory).data[off:])}
		q.late = append(q.late, ev)
		return ev, nil
	}
	copy(dst, m.(*fakeMemory).data[off:])
	return fakeEvent{}, nil
}

func (q *fakeQueue) AcquireShared(mems []Memory) (Event, error) {
	q.acquires++
	return fakeEvent{}, nil
}

func (q *fakeQueue) ReleaseShared(mems []Memory) (Event, error) {
	q.releases++
	return fakeEvent{}, nil
}

func (q *fakeQueue) Enqueue(k Kernel, global, local [3]int) (Event, error) {
	if q.enqueueErr != nil {
		return nil, q.enqueueErr
	}
	fk := k.(*fakeKernel)
	q.enqueued = append(q.enqueued, fk.name)
	if q.hang {
		return blockingEvent{}, nil
	}
	if fk.def.run != nil {
		fk.def.run(fk.args, global)
	}
	return fakeEvent{}, nil
}

func (q *fakeQueue) Flush() error  { return nil }
func (q *fakeQueue) Finish() error { q.finished++; return nil }
func (q *fakeQueue) Release()      { q.released = true }

type fakeSurface struct {
	w, h     int
	swaps    int
	swapErr  error
	closed   bool
	onResize func(int, int)
	onRedraw func()
}

func (s *fakeSurface) Size() (int, int)           { return s.w, s.h }
func (s *fakeSurface) OnResize(fn func(int, int)) { s.onResize = fn }
func (s *fakeSurface) OnRedraw(fn func())         { s.onRedraw = fn }
func (s *fakeSurface) Close() error               { s.closed = true; return nil }

func (s *fakeSurface) SwapBuffers() error {
	if s.swapErr != nil {
		return s.swapErr
	}
	s.swaps++
	return nil
}

type mapLoader map[string]string

func (l mapLoader) Load(name string) (KernelSource, error) {
	text, ok := l[name]
	if !ok {
		return KernelSource{}, &FileLoadError{Name: name, Err: errors.New("file does not exist")}
	}
	return KernelSource{Name: name, Text: text}, nil
}

var testLoader = mapLoader{"Identity_Kernels.wgsl": "identity"}

// bindFake binds a fresh CPU device in the given mode.
func bindFake(mode InteropMode) (*ComputeContext, *fakeDevice, error) {
	dev := newFakeDevice("fake cpu", gputypes.DeviceTypeCPU)
	plat := &fakePlatform{name: "fake", devices: []*fakeDevice{dev}}
	if mode != ModeCopy {
		plat.interop = [][]*fakeDevice{{dev}}
	}
	c, err := Bind(&fakeBackend{name: "fake", platforms: []Platform{plat}}, BindOptions{
		Class:       ClassCPU,
		DeviceIndex: -1,
		Mode:        mode,
		Surface:     &fakeSurface{w: 64, h: 64},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("bind %s: %w", mode, err)
	}
	return c, dev, nil
}
