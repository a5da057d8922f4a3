package wgpu

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	gpu "github.com/gogpu/wgpu"

	"github.com/gogpu/interop"
	"github.com/gogpu/interop/kernels"
)

// DeviceSurface is implemented by surfaces whose rasterizer draws with a
// WebGPU device. Compute buffers of that same device can be bound by the
// rasterizer directly, so shared mode needs no copies.
type DeviceSurface interface {
	interop.Surface
	DeviceProvider() gpucontext.DeviceProvider
}

type device struct {
	gpu    *gpu.Device
	info   interop.DeviceInfo
	limits interop.Limits

	// Set when the device was created here and must be released here.
	instance *gpu.Instance
	adapter  *gpu.Adapter
	owned    bool

	provider gpucontext.DeviceProvider
}

func (d *device) Info() interop.DeviceInfo { return d.info }
func (d *device) Limits() interop.Limits   { return d.limits }

// SupportsInterop reports whether s draws with this very device.
func (d *device) SupportsInterop(s interop.Surface) bool {
	ds, ok := s.(DeviceSurface)
	if !ok || ds.DeviceProvider() == nil {
		return false
	}
	other, ok := ds.DeviceProvider().Device().(*gpu.Device)
	return ok && other == d.gpu
}

func (d *device) NewQueue() (interop.Queue, error) {
	q := d.gpu.Queue()
	if q == nil {
		return nil, fmt.Errorf("wgpu: device has no queue")
	}
	return &queue{d: d, q: q}, nil
}

func (d *device) NewMemory(label string, size int, flags interop.MemFlags) (interop.Memory, error) {
	if size <= 0 || int64(size) > d.limits.MaxBufferSize {
		return nil, fmt.Errorf("wgpu: allocate %s: size %d outside (0, %d]", label, size, d.limits.MaxBufferSize)
	}
	buf, err := d.gpu.CreateBuffer(&gpu.BufferDescriptor{
		Label: label,
		Size:  align4(uint64(size)),
		Usage: bufferUsage(flags),
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: allocate %s: %w", label, err)
	}
	return &memory{label: label, buf: buf, size: size, flags: flags}, nil
}

// BuildProgram preprocesses and validates source, then creates the shader
// module from the preprocessed text.
func (d *device) BuildProgram(name, source, options string) (interop.BuiltProgram, error) {
	p, err := kernels.Compile(name, source, options)
	if err != nil {
		return nil, err
	}
	module, err := d.gpu.CreateShaderModule(&gpu.ShaderModuleDescriptor{
		Label: name,
		WGSL:  p.Source,
	})
	if err != nil {
		return nil, &interop.CompileError{Source: name, Log: err.Error()}
	}
	return &program{d: d, p: p, module: module}, nil
}

func (d *device) Release() {
	if !d.owned {
		return
	}
	d.owned = false
	d.gpu.Release()
	d.adapter.Release()
	d.instance.Release()
}

// memory is a storage buffer. Shared allocations are also usable as vertex
// data by a rasterizer on the same device.
type memory struct {
	label    string
	buf      *gpu.Buffer
	size     int
	flags    interop.MemFlags
	acquired bool
	released bool
}

func (m *memory) Size() int { return m.size }

// Buffer returns the device buffer, for rasterizers that bind it directly.
func (m *memory) Buffer() *gpu.Buffer { return m.buf }

func (m *memory) Release() {
	if m.released {
		return
	}
	m.released = true
	m.buf.Release()
}

// DeviceBuffer returns the WebGPU buffer behind m, or nil when m was not
// allocated by this backend.
func DeviceBuffer(m interop.Memory) *gpu.Buffer {
	if mem, ok := m.(*memory); ok {
		return mem.buf
	}
	return nil
}

func asMemory(m interop.Memory) (*memory, error) {
	mem, ok := m.(*memory)
	if !ok {
		return nil, fmt.Errorf("wgpu: %T is not a WebGPU allocation", m)
	}
	if mem.released {
		return nil, fmt.Errorf("wgpu: %s used after release", mem.label)
	}
	return mem, nil
}

func bufferUsage(flags interop.MemFlags) gpu.BufferUsage {
	u := gpu.BufferUsageStorage | gpu.BufferUsageUniform | gpu.BufferUsageCopyDst | gpu.BufferUsageCopySrc
	if flags&interop.MemShared != 0 {
		u |= gpu.BufferUsageVertex
	}
	return u
}

// align4 rounds n up to the 4-byte granularity of buffer copies.
func align4(n uint64) uint64 { return (n + 3) &^ 3 }
