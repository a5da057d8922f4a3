package interop

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// KernelSource is kernel program text loaded by a SourceLoader.
type KernelSource struct {
	Name  string
	Text  string
	Flags string // build options stored next to the source
}

// SourceLoader resolves a kernel source identifier, typically a fixed file
// name, to its text. A missing source is a *FileLoadError.
type SourceLoader interface {
	Load(name string) (KernelSource, error)
}

// Access describes how a kernel uses a buffer argument.
type Access uint8

const (
	AccessRead Access = 1 << iota
	AccessWrite
	AccessReadWrite = AccessRead | AccessWrite
)

type argKind uint8

const (
	argBuffer argKind = iota
	argScalar
	argLocal
)

// Arg is one kernel argument: a buffer, a scalar, or a local memory
// reservation.
type Arg struct {
	kind   argKind
	buf    *SharedBuffer
	access Access
	scalar []byte
	local  int
}

// In binds a buffer the kernel only reads.
func In(b *SharedBuffer) Arg { return Arg{kind: argBuffer, buf: b, access: AccessRead} }

// Out binds a buffer the kernel writes.
func Out(b *SharedBuffer) Arg { return Arg{kind: argBuffer, buf: b, access: AccessWrite} }

// InOut binds a buffer the kernel reads and writes.
func InOut(b *SharedBuffer) Arg { return Arg{kind: argBuffer, buf: b, access: AccessReadWrite} }

// Uint32 binds a 32-bit unsigned scalar.
func Uint32(v uint32) Arg {
	return Arg{kind: argScalar, scalar: binary.LittleEndian.AppendUint32(nil, v)}
}

// Int32 binds a 32-bit signed scalar.
func Int32(v int32) Arg { return Uint32(uint32(v)) }

// Float32 binds a 32-bit float scalar.
func Float32(v float32) Arg { return Uint32(math.Float32bits(v)) }

// Local reserves n bytes of local memory.
func Local(n int) Arg { return Arg{kind: argLocal, local: n} }

// Program is a built kernel program owned by a context.
type Program struct {
	name   string
	p      BuiltProgram
	handle *scoped
}

// Name returns the source identifier.
func (p *Program) Name() string { return p.name }

// Release releases the program. Kernels created from it stay valid until
// they are released or the context closes.
func (p *Program) Release() { p.handle.Release() }

// BoundKernel is a kernel entry point with its bound arguments.
type BoundKernel struct {
	name    string
	k       Kernel
	info    KernelWorkGroupInfo
	args    []Arg
	local   int
	handle  *scoped
	program *Program
}

// Name returns the entry point name.
func (k *BoundKernel) Name() string { return k.name }

// Info returns the kernel work-group information.
func (k *BoundKernel) Info() KernelWorkGroupInfo { return k.info }

// Program returns the program the kernel was created from.
func (k *BoundKernel) Program() *Program { return k.program }

// Backend returns the backend kernel.
func (k *BoundKernel) Backend() Kernel { return k.k }

// Release releases the kernel.
func (k *BoundKernel) Release() { k.handle.Release() }

// Dispatcher builds programs, binds kernel arguments and enqueues work over
// a WorkDomain. It counts successful dispatches.
type Dispatcher struct {
	c      *ComputeContext
	loader SourceLoader
	count  uint64
}

// NewDispatcher returns a dispatcher for c that loads sources via loader.
func NewDispatcher(c *ComputeContext, loader SourceLoader) *Dispatcher {
	return &Dispatcher{c: c, loader: loader}
}

// Count returns the number of successful dispatches.
func (d *Dispatcher) Count() uint64 { return d.count }

// Build loads sourceID and compiles it with buildFlags plus any flags
// stored alongside the source.
func (d *Dispatcher) Build(sourceID, buildFlags string) (*Program, error) {
	if d.c.closed {
		return nil, ErrClosed
	}
	src, err := d.loader.Load(sourceID)
	if err != nil {
		var fe *FileLoadError
		if errors.As(err, &fe) {
			return nil, err
		}
		return nil, &FileLoadError{Name: sourceID, Err: err}
	}
	opts := strings.TrimSpace(buildFlags + " " + src.Flags)

	bp, err := d.c.device.BuildProgram(src.Name, src.Text, opts)
	if err != nil {
		var ce *CompileError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, deviceErr("BuildProgram", CodeBuildFailure, err)
	}
	p := &Program{name: src.Name, p: bp}
	p.handle = d.c.track("program "+src.Name, bp.Release)
	slogger().Debug("interop: program built", "source", src.Name, "options", opts)
	return p, nil
}

// CreateKernel creates the kernel for entry. A kernel whose static local
// memory exceeds the device's is rejected with ErrInsufficientLocalMemory.
func (d *Dispatcher) CreateKernel(p *Program, entry string) (*BoundKernel, error) {
	if d.c.closed || p.handle.done {
		return nil, ErrClosed
	}
	bk, err := p.p.Kernel(entry)
	if err != nil {
		var ce *CompileError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, deviceErr("CreateKernel", CodeInvalidValue, err)
	}
	info := bk.WorkGroupInfo()
	if err := CheckLocalMemory(0, d.c.device.Limits(), info); err != nil {
		bk.Release()
		return nil, fmt.Errorf("interop: kernel %s: %w", entry, err)
	}
	k := &BoundKernel{name: entry, k: bk, info: info, program: p}
	k.handle = d.c.track("kernel "+entry, bk.Release)
	return k, nil
}

// GroupLimits returns the work-group limits that apply to k.
func (d *Dispatcher) GroupLimits(k *BoundKernel) GroupLimits {
	return GroupLimitsFor(d.c.device.Limits(), k.info)
}

// SetArgs binds args to k in order.
func (d *Dispatcher) SetArgs(k *BoundKernel, args ...Arg) error {
	if k.handle.done {
		return fmt.Errorf("interop: kernel %s: %w", k.name, ErrClosed)
	}
	local := 0
	for i, a := range args {
		var ka KernelArg
		switch a.kind {
		case argBuffer:
			if a.buf == nil || a.buf.freed {
				return fmt.Errorf("interop: kernel %s arg %d: %w", k.name, i, ErrClosed)
			}
			ka.Memory = a.buf.mem
		case argScalar:
			ka.Scalar = a.scalar
		case argLocal:
			ka.LocalSize = a.local
			local += a.local
		}
		if err := k.k.SetArg(i, ka); err != nil {
			return deviceErr(fmt.Sprintf("SetKernelArg(%s, %d)", k.name, i), CodeInvalidKernelArgs, err)
		}
	}
	k.args = append(k.args[:0], args...)
	k.local = local
	return nil
}

// Dispatch enqueues k over dom and waits for it to complete.
//
// Local memory and the work-group shape are checked before anything is
// enqueued. Every buffer argument must be owned by the compute side.
func (d *Dispatcher) Dispatch(ctx context.Context, k *BoundKernel, dom WorkDomain) error {
	if d.c.closed || k.handle.done {
		return ErrClosed
	}
	limits := d.c.device.Limits()
	if err := CheckLocalMemory(k.local, limits, k.info); err != nil {
		return fmt.Errorf("interop: dispatch %s: %w", k.name, err)
	}
	if err := dom.Validate(GroupLimitsFor(limits, k.info)); err != nil {
		return fmt.Errorf("interop: dispatch %s: %w", k.name, err)
	}
	for i, a := range k.args {
		if a.kind != argBuffer {
			continue
		}
		if a.buf.freed {
			return fmt.Errorf("interop: dispatch %s arg %d: %w", k.name, i, ErrClosed)
		}
		if a.buf.owner != OwnerCompute {
			return fmt.Errorf("interop: dispatch %s arg %d (%s) not acquired: %w", k.name, i, a.buf.label, ErrOwnership)
		}
	}

	ev, err := d.c.queue.Enqueue(k.k, dom.Global, dom.Local)
	if err != nil {
		return deviceErr("EnqueueNDRangeKernel", CodeInvalidOperation, err)
	}
	if err := d.c.queue.Flush(); err != nil {
		return deviceErr("Flush", CodeUnknown, err)
	}
	if err := d.c.wait(ctx, "EnqueueNDRangeKernel", ev); err != nil {
		return err
	}

	for _, a := range k.args {
		if a.kind == argBuffer && a.access&AccessWrite != 0 {
			a.buf.dirty = true
		}
	}
	d.count++
	slogger().Debug("interop: dispatched", "kernel", k.name, "domain", dom.String(), "count", d.count)
	return nil
}
