package software

import (
	"fmt"
	"runtime"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/interop"
	"github.com/gogpu/interop/kernels"
)

// PlatformName is the name of the single software platform.
const PlatformName = "Go Software"

// DefaultLimits are the limits of a software device.
var DefaultLimits = interop.Limits{
	MaxWorkGroupSize: 1024,
	MaxWorkItemSizes: [3]int{1024, 1024, 64},
	LocalMemSize:     32 << 10,
	MaxBufferSize:    1 << 30,
}

func init() {
	interop.RegisterBackend(interop.BackendSoftware, func() interop.Backend {
		return New()
	})
}

// Option configures a Backend.
type Option func(*Backend)

// WithWorkers sets the number of goroutines that run work-groups.
// Zero means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(b *Backend) { b.workers = n }
}

// WithLimits overrides the device limits.
func WithLimits(l interop.Limits) Option {
	return func(b *Backend) { b.limits = l }
}

// WithoutInterop makes the device refuse every surface, forcing copy mode.
func WithoutInterop() Option {
	return func(b *Backend) { b.noInterop = true }
}

// Backend runs kernels on the CPU. It offers one platform with one
// device of type CPU.
type Backend struct {
	workers   int
	limits    interop.Limits
	noInterop bool
}

// New returns a software backend.
func New(opts ...Option) *Backend {
	b := &Backend{limits: DefaultLimits}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return interop.BackendSoftware }

// Platforms returns the software platform.
func (b *Backend) Platforms() ([]interop.Platform, error) {
	return []interop.Platform{&platform{b: b}}, nil
}

type platform struct {
	b *Backend
}

func (p *platform) Name() string  { return PlatformName }
func (p *platform) Displays() int { return 1 }

func (p *platform) Devices(class interop.DeviceClass) ([]interop.Device, error) {
	if !class.Matches(gputypes.DeviceTypeCPU) {
		return nil, nil
	}
	return []interop.Device{newDevice(p.b)}, nil
}

func (p *platform) InteropDevices(s interop.Surface, display int, class interop.DeviceClass) ([]interop.Device, error) {
	if display != 0 || !class.Matches(gputypes.DeviceTypeCPU) {
		return nil, nil
	}
	d := newDevice(p.b)
	if !d.SupportsInterop(s) {
		d.Release()
		return nil, nil
	}
	return []interop.Device{d}, nil
}

type device struct {
	b    *Backend
	pool *groupPool
}

func newDevice(b *Backend) *device {
	return &device{b: b, pool: newGroupPool(b.workers)}
}

func (d *device) Info() interop.DeviceInfo {
	return interop.DeviceInfo{
		Name:     fmt.Sprintf("Go %s/%s (%d workers)", runtime.GOOS, runtime.GOARCH, d.pool.Workers()),
		Vendor:   "gogpu",
		Platform: PlatformName,
		Type:     gputypes.DeviceTypeCPU,
	}
}

func (d *device) Limits() interop.Limits { return d.b.limits }

// SupportsInterop reports whether s rasterizes from host memory.
func (d *device) SupportsInterop(s interop.Surface) bool {
	if d.b.noInterop {
		return false
	}
	hs, ok := s.(interop.HostSurface)
	return ok && hs.HostAccessible()
}

func (d *device) NewQueue() (interop.Queue, error) {
	return newQueue(d), nil
}

func (d *device) NewMemory(label string, size int, flags interop.MemFlags) (interop.Memory, error) {
	if size <= 0 || int64(size) > d.b.limits.MaxBufferSize {
		return nil, fmt.Errorf("software: allocate %s: size %d outside (0, %d]", label, size, d.b.limits.MaxBufferSize)
	}
	return &memory{label: label, data: make([]byte, size), flags: flags}, nil
}

func (d *device) BuildProgram(name, source, options string) (interop.BuiltProgram, error) {
	p, err := kernels.Compile(name, source, options)
	if err != nil {
		return nil, err
	}
	return &program{d: d, p: p}, nil
}

func (d *device) Release() { d.pool.close() }
