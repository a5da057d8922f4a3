package interop

import (
	"context"
	"fmt"
)

// InteropStrategy moves buffer ownership between the compute and draw
// sides. It is selected once, at binding time.
//
// The strategies perform the device work only. Ownership bookkeeping and
// protocol checks live in ResourcePool.
type InteropStrategy interface {
	Mode() InteropMode

	// MemFlags returns the allocation flags for a draw-visible buffer.
	MemFlags() MemFlags

	// Acquire makes bufs safe for compute access.
	Acquire(ctx context.Context, c *ComputeContext, bufs []*SharedBuffer) error

	// Release makes bufs safe for draw access. It returns only after the
	// device has finished with them.
	Release(ctx context.Context, c *ComputeContext, bufs []*SharedBuffer) error

	// Push uploads host data into the compute allocation and waits.
	Push(ctx context.Context, c *ComputeContext, b *SharedBuffer, data []byte) error

	// Pull refreshes the draw-side view of b from compute memory and waits.
	Pull(ctx context.Context, c *ComputeContext, b *SharedBuffer) error
}

// SharedContextStrategy aliases compute and draw memory. Acquire and
// Release are barriers on the compute queue; each is flushed and waited on
// before the rasterizer may proceed.
type SharedContextStrategy struct{}

func (SharedContextStrategy) Mode() InteropMode  { return ModeShared }
func (SharedContextStrategy) MemFlags() MemFlags { return MemShared }

func (SharedContextStrategy) Acquire(ctx context.Context, c *ComputeContext, bufs []*SharedBuffer) error {
	mems := memories(bufs)
	if len(mems) == 0 {
		return nil
	}
	ev, err := c.queue.AcquireShared(mems)
	if err != nil {
		return deviceErr("EnqueueAcquireGLObjects", CodeInvalidOperation, err)
	}
	if err := c.queue.Flush(); err != nil {
		return deviceErr("Flush", CodeUnknown, err)
	}
	return c.wait(ctx, "EnqueueAcquireGLObjects", ev)
}

func (SharedContextStrategy) Release(ctx context.Context, c *ComputeContext, bufs []*SharedBuffer) error {
	mems := memories(bufs)
	if len(mems) == 0 {
		return nil
	}
	ev, err := c.queue.ReleaseShared(mems)
	if err != nil {
		return deviceErr("EnqueueReleaseGLObjects", CodeInvalidOperation, err)
	}
	if err := c.queue.Flush(); err != nil {
		return deviceErr("Flush", CodeUnknown, err)
	}
	return c.wait(ctx, "EnqueueReleaseGLObjects", ev)
}

func (SharedContextStrategy) Push(ctx context.Context, c *ComputeContext, b *SharedBuffer, data []byte) error {
	return writeAndWait(ctx, c, b, data)
}

// Pull is a no-op: the draw side reads the shared allocation itself.
func (SharedContextStrategy) Pull(context.Context, *ComputeContext, *SharedBuffer) error {
	return nil
}

// CopyStrategy keeps separate compute and host allocations. Acquire and
// Release do no device work; data crosses only through Push and Pull.
type CopyStrategy struct{}

func (CopyStrategy) Mode() InteropMode  { return ModeCopy }
func (CopyStrategy) MemFlags() MemFlags { return MemReadWrite }

func (CopyStrategy) Acquire(context.Context, *ComputeContext, []*SharedBuffer) error { return nil }
func (CopyStrategy) Release(context.Context, *ComputeContext, []*SharedBuffer) error { return nil }

func (CopyStrategy) Push(ctx context.Context, c *ComputeContext, b *SharedBuffer, data []byte) error {
	if err := writeAndWait(ctx, c, b, data); err != nil {
		return err
	}
	if b.mirror != nil {
		copy(b.mirror, data)
	}
	return nil
}

func (CopyStrategy) Pull(ctx context.Context, c *ComputeContext, b *SharedBuffer) error {
	if b.mirror == nil {
		return nil
	}
	// The mirror only changes once the read has completed.
	staging := b.staging
	if len(staging) != len(b.mirror) {
		staging = make([]byte, len(b.mirror))
	}
	b.staging = nil
	ev, err := c.queue.ReadBuffer(b.mem, 0, staging)
	if err != nil {
		return fmt.Errorf("interop: read %s: %w: %w", b.label, ErrBufferMapFailure, deviceErr("EnqueueReadBuffer", CodeMapFailure, err))
	}
	if err := c.wait(ctx, "EnqueueReadBuffer", ev); err != nil {
		return fmt.Errorf("interop: read %s: %w: %w", b.label, ErrBufferMapFailure, err)
	}
	copy(b.mirror, staging)
	b.staging = staging
	return nil
}

func writeAndWait(ctx context.Context, c *ComputeContext, b *SharedBuffer, data []byte) error {
	if len(data) > b.size {
		return fmt.Errorf("interop: write %d bytes into %s of %d bytes: %w", len(data), b.label, b.size, ErrBufferMapFailure)
	}
	ev, err := c.queue.WriteBuffer(b.mem, 0, data)
	if err != nil {
		return fmt.Errorf("interop: write %s: %w: %w", b.label, ErrBufferMapFailure, deviceErr("EnqueueWriteBuffer", CodeMapFailure, err))
	}
	if err := c.queue.Flush(); err != nil {
		return deviceErr("Flush", CodeUnknown, err)
	}
	return c.wait(ctx, "EnqueueWriteBuffer", ev)
}

// memories returns the device allocations of the draw-visible buffers.
func memories(bufs []*SharedBuffer) []Memory {
	mems := make([]Memory, 0, len(bufs))
	for _, b := range bufs {
		if b.visible {
			mems = append(mems, b.mem)
		}
	}
	return mems
}
