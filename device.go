package interop

import (
	"context"
	"strings"

	"github.com/gogpu/gputypes"
)

// DeviceClass selects compute devices by kind.
type DeviceClass uint8

const (
	// ClassAny matches every device.
	ClassAny DeviceClass = iota
	// ClassCPU matches software and CPU devices.
	ClassCPU
	// ClassGPU matches integrated, discrete and virtual GPUs.
	ClassGPU
)

// String returns the short class name used in diagnostics and stats.
func (c DeviceClass) String() string {
	switch c {
	case ClassCPU:
		return "CPU"
	case ClassGPU:
		return "GPU"
	default:
		return "ANY"
	}
}

// Matches reports whether a device of type t belongs to the class.
func (c DeviceClass) Matches(t gputypes.DeviceType) bool {
	switch c {
	case ClassCPU:
		return t == gputypes.DeviceTypeCPU
	case ClassGPU:
		return t == gputypes.DeviceTypeDiscreteGPU ||
			t == gputypes.DeviceTypeIntegratedGPU ||
			t == gputypes.DeviceTypeVirtualGPU
	default:
		return true
	}
}

// ParseDeviceClass scans command-line tokens for the substrings "cpu" and
// "gpu". The last matching token wins; with no match the fallback is returned.
func ParseDeviceClass(args []string, fallback DeviceClass) DeviceClass {
	class := fallback
	for _, a := range args {
		switch {
		case strings.Contains(a, "cpu"):
			class = ClassCPU
		case strings.Contains(a, "gpu"):
			class = ClassGPU
		}
	}
	return class
}

// DeviceInfo describes a compute device.
type DeviceInfo struct {
	Name     string
	Vendor   string
	Platform string
	Type     gputypes.DeviceType
}

// Limits is the compute-relevant subset of device limits.
type Limits struct {
	// MaxWorkGroupSize is the maximum number of work-items in one group.
	MaxWorkGroupSize int
	// MaxWorkItemSizes bounds each dimension of a work-group.
	MaxWorkItemSizes [3]int
	// LocalMemSize is the local (workgroup-shared) memory per group in bytes.
	LocalMemSize int
	// MaxBufferSize is the largest single allocation in bytes.
	MaxBufferSize int64
}

// LimitsFromGPU converts WebGPU limits.
func LimitsFromGPU(l gputypes.Limits) Limits {
	return Limits{
		MaxWorkGroupSize: int(l.MaxComputeInvocationsPerWorkgroup),
		MaxWorkItemSizes: [3]int{
			int(l.MaxComputeWorkgroupSizeX),
			int(l.MaxComputeWorkgroupSizeY),
			int(l.MaxComputeWorkgroupSizeZ),
		},
		LocalMemSize:  int(l.MaxComputeWorkgroupStorageSize),
		MaxBufferSize: int64(l.MaxBufferSize),
	}
}

// MemFlags describes how a device allocation is used.
type MemFlags uint8

const (
	// MemReadWrite is a plain compute buffer.
	MemReadWrite MemFlags = 0
	// MemShared requests an allocation the draw side can alias directly.
	MemShared MemFlags = 1
)

// Device is a compute device provided by a backend.
type Device interface {
	Info() DeviceInfo
	Limits() Limits

	// SupportsInterop reports whether memory of this device can be aliased
	// by the rasterizer behind s.
	SupportsInterop(s Surface) bool

	NewQueue() (Queue, error)
	NewMemory(label string, size int, flags MemFlags) (Memory, error)

	// BuildProgram compiles source. A compile failure is a *CompileError.
	BuildProgram(name, source, options string) (BuiltProgram, error)

	Release()
}

// Memory is a device allocation.
type Memory interface {
	Size() int
	Release()
}

// HostMemory is implemented by memory the host can address directly.
// Shared-mode buffers on host-aliased devices expose it to the draw side.
type HostMemory interface {
	Memory
	Bytes() []byte
}

// BuiltProgram is a kernel program compiled by a device.
type BuiltProgram interface {
	Kernel(entry string) (Kernel, error)
	Release()
}

// KernelWorkGroupInfo reports per-kernel execution limits.
type KernelWorkGroupInfo struct {
	// MaxWorkGroupSize is the kernel-specific ceiling, at most the device one.
	MaxWorkGroupSize int
	// CompileWorkGroupSize is the work-group shape fixed at build time.
	// All zero when the kernel accepts any shape.
	CompileWorkGroupSize [3]int
	// LocalMemUsed is local memory the kernel reserves statically.
	LocalMemUsed int
}

// KernelArg is a single bound kernel argument. Exactly one of Memory,
// Scalar or LocalSize is set.
type KernelArg struct {
	Memory    Memory
	Scalar    []byte
	LocalSize int
}

// Kernel is a compiled entry point.
type Kernel interface {
	Name() string
	WorkGroupInfo() KernelWorkGroupInfo
	SetArg(index int, arg KernelArg) error
	Release()
}

// EventStatus is the execution state of a queued command.
type EventStatus uint8

const (
	EventQueued EventStatus = iota
	EventRunning
	EventComplete
	EventFailed
)

// Event tracks completion of a queued command.
type Event interface {
	Status() EventStatus
	// Wait blocks until the command completes or ctx is done.
	Wait(ctx context.Context) error
}

// Queue is an in-order command queue.
type Queue interface {
	WriteBuffer(m Memory, offset int, data []byte) (Event, error)
	// ReadBuffer may write dst until the returned event completes, even
	// after a Wait on it has given up.
	ReadBuffer(m Memory, offset int, dst []byte) (Event, error)

	// AcquireShared transfers shared allocations to the compute side once
	// pending draw work that touches them is complete.
	AcquireShared(mems []Memory) (Event, error)
	// ReleaseShared hands shared allocations back to the draw side.
	ReleaseShared(mems []Memory) (Event, error)

	Enqueue(k Kernel, global, local [3]int) (Event, error)

	Flush() error
	Finish() error
	Release()
}
