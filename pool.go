package interop

import (
	"context"
	"fmt"
)

// SizeSpec describes a buffer to allocate.
type SizeSpec struct {
	Label string
	Size  int

	// Init is the initial content. In shared mode it is uploaded at
	// allocation; in copy mode it is pushed before the first dispatch.
	Init []byte

	// Private buffers never cross to the draw side (velocities, scratch).
	Private bool
}

// ResourcePool owns the shared buffers of one compute context and moves
// their ownership between the compute and draw sides.
//
// The pool checks the hand-off protocol at run time: acquiring a buffer the
// compute side already owns, or releasing one it does not, fails with
// ErrOwnership and leaves every buffer untouched.
type ResourcePool struct {
	c       *ComputeContext
	buffers []*SharedBuffer
	doubles []*DoubleBuffer
	closed  bool
}

// NewResourcePool returns an empty pool bound to c.
func NewResourcePool(c *ComputeContext) *ResourcePool {
	return &ResourcePool{c: c}
}

// Context returns the owning context.
func (p *ResourcePool) Context() *ComputeContext { return p.c }

// Buffers returns every live buffer in allocation order.
func (p *ResourcePool) Buffers() []*SharedBuffer {
	out := make([]*SharedBuffer, 0, len(p.buffers))
	for _, b := range p.buffers {
		if !b.freed {
			out = append(out, b)
		}
	}
	return out
}

// Doubles returns the double buffers allocated from the pool.
func (p *ResourcePool) Doubles() []*DoubleBuffer { return p.doubles }

// Allocate creates a buffer owned by the draw side.
func (p *ResourcePool) Allocate(ctx context.Context, spec SizeSpec) (*SharedBuffer, error) {
	if p.closed || p.c.closed {
		return nil, ErrClosed
	}
	if spec.Size <= 0 {
		return nil, fmt.Errorf("interop: allocate %s: invalid size %d", spec.Label, spec.Size)
	}
	if len(spec.Init) > spec.Size {
		return nil, fmt.Errorf("interop: allocate %s: %d initial bytes exceed size %d", spec.Label, len(spec.Init), spec.Size)
	}

	flags := MemReadWrite
	if !spec.Private {
		flags = p.c.strategy.MemFlags()
	}
	mem, err := p.c.device.NewMemory(spec.Label, spec.Size, flags)
	if err != nil {
		return nil, deviceErr("CreateBuffer", CodeOutOfResources, err)
	}

	b := &SharedBuffer{
		label:   spec.Label,
		size:    spec.Size,
		visible: !spec.Private,
		mem:     mem,
	}
	b.handle = p.c.track("buffer "+spec.Label, func() {
		b.freed = true
		mem.Release()
	})
	if b.visible && p.c.strategy.Mode() == ModeCopy {
		b.mirror = make([]byte, spec.Size)
	}
	p.buffers = append(p.buffers, b)

	if len(spec.Init) > 0 {
		if p.c.strategy.Mode() == ModeCopy {
			b.pending = append([]byte(nil), spec.Init...)
			if b.mirror != nil {
				copy(b.mirror, spec.Init)
			}
		} else if err := p.c.strategy.Push(ctx, p.c, b, spec.Init); err != nil {
			b.handle.Release()
			return nil, err
		}
	}

	slogger().Debug("interop: buffer allocated",
		"label", spec.Label, "size", spec.Size, "visible", b.visible, "mode", p.c.strategy.Mode().String())
	return b, nil
}

// AllocateDouble creates a current/next pair, both initialized from spec.
func (p *ResourcePool) AllocateDouble(ctx context.Context, spec SizeSpec) (*DoubleBuffer, error) {
	var d DoubleBuffer
	for i := range d.bufs {
		s := spec
		s.Label = fmt.Sprintf("%s[%d]", spec.Label, i)
		b, err := p.Allocate(ctx, s)
		if err != nil {
			if i == 1 {
				_ = p.Destroy(d.bufs[0])
			}
			return nil, err
		}
		d.bufs[i] = b
	}
	p.doubles = append(p.doubles, &d)
	return &d, nil
}

// Acquire transfers bufs to the compute side, blocking until pending draw
// work on them has finished. In copy mode no device work is done.
func (p *ResourcePool) Acquire(ctx context.Context, bufs ...*SharedBuffer) error {
	for _, b := range bufs {
		if err := p.check(b, OwnerDraw, "acquire"); err != nil {
			return err
		}
	}
	if err := p.c.strategy.Acquire(ctx, p.c, bufs); err != nil {
		return err
	}
	for _, b := range bufs {
		b.owner = OwnerCompute
	}
	return nil
}

// Release hands bufs back to the draw side. In copy mode every visible
// buffer written since it was acquired is read back first; the read-back
// completes before Release returns.
func (p *ResourcePool) Release(ctx context.Context, bufs ...*SharedBuffer) error {
	for _, b := range bufs {
		if err := p.check(b, OwnerCompute, "release"); err != nil {
			return err
		}
	}
	for _, b := range bufs {
		if b.dirty && b.visible {
			if err := p.c.strategy.Pull(ctx, p.c, b); err != nil {
				return err
			}
		}
	}
	if err := p.c.strategy.Release(ctx, p.c, bufs); err != nil {
		return err
	}
	for _, b := range bufs {
		b.owner = OwnerDraw
		b.dirty = false
	}
	return nil
}

// Push uploads data into b. The compute side must own b, except before the
// first dispatch when nothing else can be touching it.
func (p *ResourcePool) Push(ctx context.Context, b *SharedBuffer, data []byte) error {
	if b.freed {
		return fmt.Errorf("interop: push %s: %w", b.label, ErrClosed)
	}
	b.pending = nil
	return p.c.strategy.Push(ctx, p.c, b, data)
}

// Pull refreshes the draw-side view of b.
func (p *ResourcePool) Pull(ctx context.Context, b *SharedBuffer) error {
	if b.freed {
		return fmt.Errorf("interop: pull %s: %w", b.label, ErrClosed)
	}
	return p.c.strategy.Pull(ctx, p.c, b)
}

// PushPending uploads initial contents that have not reached compute memory
// yet. In copy mode this is the first-frame upload; afterwards the data
// lives in compute memory and nothing is pending.
func (p *ResourcePool) PushPending(ctx context.Context) error {
	for _, b := range p.buffers {
		if b.freed || b.pending == nil {
			continue
		}
		if err := p.Push(ctx, b, b.pending); err != nil {
			return err
		}
	}
	return nil
}

// Destroy releases b. Destroying a buffer twice is a no-op.
func (p *ResourcePool) Destroy(b *SharedBuffer) error {
	if b == nil || b.freed {
		return nil
	}
	if b.owner == OwnerCompute {
		return fmt.Errorf("interop: destroy %s while compute-owned: %w", b.label, ErrOwnership)
	}
	b.handle.Release()
	return nil
}

// AcquireAll acquires every live buffer.
func (p *ResourcePool) AcquireAll(ctx context.Context) error {
	return p.Acquire(ctx, p.Buffers()...)
}

// ReleaseAll releases every live buffer.
func (p *ResourcePool) ReleaseAll(ctx context.Context) error {
	return p.Release(ctx, p.Buffers()...)
}

// SwapAll swaps every double buffer.
func (p *ResourcePool) SwapAll() {
	for _, d := range p.doubles {
		d.Swap()
	}
}

// Recover returns every compute-owned buffer to the draw side after a
// failed step, without reading anything back. Copy-mode mirrors keep the
// previous frame's contents.
func (p *ResourcePool) Recover(ctx context.Context) error {
	var owned []*SharedBuffer
	for _, b := range p.Buffers() {
		if b.owner == OwnerCompute {
			owned = append(owned, b)
		}
	}
	if len(owned) == 0 {
		return nil
	}
	if err := p.c.queue.Finish(); err != nil {
		slogger().Warn("interop: finish during recovery failed", "err", err)
	}
	err := p.c.strategy.Release(ctx, p.c, owned)
	for _, b := range owned {
		b.owner = OwnerDraw
		b.dirty = false
	}
	return err
}

// Close destroys every buffer. The context keeps running.
func (p *ResourcePool) Close() {
	if p.closed {
		return
	}
	p.closed = true
	for i := len(p.buffers) - 1; i >= 0; i-- {
		p.buffers[i].handle.Release()
	}
	p.buffers = nil
	p.doubles = nil
}

func (p *ResourcePool) check(b *SharedBuffer, want Owner, op string) error {
	if b == nil {
		return fmt.Errorf("interop: %s nil buffer", op)
	}
	if b.freed {
		return fmt.Errorf("interop: %s %s: %w", op, b.label, ErrClosed)
	}
	if b.owner != want {
		return fmt.Errorf("interop: %s %s owned by %s: %w", op, b.label, b.owner, ErrOwnership)
	}
	return nil
}
