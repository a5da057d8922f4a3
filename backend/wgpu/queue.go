package wgpu

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	gpu "github.com/gogpu/wgpu"

	"github.com/gogpu/interop"
)

// event completes when the device has finished the submitted work. The
// wait runs once, on the first Wait, and may finish with a follow-up
// such as copying mapped data out or releasing transient objects.
type event struct {
	status atomic.Uint32
	once   sync.Once
	done   chan struct{}
	err    error
	run    func(ctx context.Context) error
}

func newEvent(run func(ctx context.Context) error) *event {
	return &event{done: make(chan struct{}), run: run}
}

func (e *event) Status() interop.EventStatus { return interop.EventStatus(e.status.Load()) }

func (e *event) Wait(ctx context.Context) error {
	e.once.Do(func() {
		e.status.Store(uint32(interop.EventRunning))
		go func() {
			// The device wait is not cancellable; ctx only bounds the caller.
			err := e.run(context.WithoutCancel(ctx))
			e.err = err
			if err != nil {
				e.status.Store(uint32(interop.EventFailed))
			} else {
				e.status.Store(uint32(interop.EventComplete))
			}
			close(e.done)
		}()
	})
	select {
	case <-e.done:
		return e.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type queue struct {
	d *device
	q *gpu.Queue
}

func (q *queue) idle(context.Context) error { return q.d.gpu.WaitIdle() }

func (q *queue) WriteBuffer(m interop.Memory, offset int, data []byte) (interop.Event, error) {
	mem, err := asMemory(m)
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset%4 != 0 || offset+len(data) > mem.size {
		return nil, fmt.Errorf("wgpu: write %s: range [%d, %d) invalid for %d bytes", mem.label, offset, offset+len(data), mem.size)
	}
	padded := data
	if n := align4(uint64(len(data))); n != uint64(len(data)) {
		padded = make([]byte, n)
		copy(padded, data)
	}
	if err := q.q.WriteBuffer(mem.buf, uint64(offset), padded); err != nil {
		return nil, fmt.Errorf("wgpu: write %s: %w", mem.label, err)
	}
	return newEvent(q.idle), nil
}

// ReadBuffer copies the range into a staging buffer and maps it when the
// event is waited on. dst is filled before Wait returns.
func (q *queue) ReadBuffer(m interop.Memory, offset int, dst []byte) (interop.Event, error) {
	mem, err := asMemory(m)
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset%4 != 0 || offset+len(dst) > mem.size {
		return nil, fmt.Errorf("wgpu: read %s: range [%d, %d) invalid for %d bytes", mem.label, offset, offset+len(dst), mem.size)
	}
	size := align4(uint64(len(dst)))
	staging, err := q.d.gpu.CreateBuffer(&gpu.BufferDescriptor{
		Label: mem.label + ".staging",
		Size:  size,
		Usage: gpu.BufferUsageMapRead | gpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: read %s: staging: %w", mem.label, err)
	}

	enc, err := q.d.gpu.CreateCommandEncoder(&gpu.CommandEncoderDescriptor{Label: "read " + mem.label})
	if err != nil {
		staging.Release()
		return nil, err
	}
	enc.CopyBufferToBuffer(mem.buf, uint64(offset), staging, 0, size)
	cb, err := enc.Finish()
	if err != nil {
		staging.Release()
		return nil, err
	}
	if _, err := q.q.Submit(cb); err != nil {
		staging.Release()
		return nil, fmt.Errorf("wgpu: read %s: submit: %w", mem.label, err)
	}

	return newEvent(func(ctx context.Context) error {
		defer staging.Release()
		if err := staging.Map(ctx, gpu.MapModeRead, 0, size); err != nil {
			return fmt.Errorf("map %s: %w", mem.label, err)
		}
		rng, err := staging.MappedRange(0, size)
		if err != nil {
			_ = staging.Unmap()
			return fmt.Errorf("map %s: %w", mem.label, err)
		}
		copy(dst, rng.Bytes())
		return staging.Unmap()
	}), nil
}

// AcquireShared waits for work already submitted on the device, which
// includes the rasterizer's use of the buffers.
func (q *queue) AcquireShared(mems []interop.Memory) (interop.Event, error) {
	shared, err := sharedMemories(mems)
	if err != nil {
		return nil, err
	}
	for _, m := range shared {
		if m.acquired {
			return nil, fmt.Errorf("wgpu: %s already acquired", m.label)
		}
	}
	for _, m := range shared {
		m.acquired = true
	}
	return newEvent(q.idle), nil
}

func (q *queue) ReleaseShared(mems []interop.Memory) (interop.Event, error) {
	shared, err := sharedMemories(mems)
	if err != nil {
		return nil, err
	}
	for _, m := range shared {
		if !m.acquired {
			return nil, fmt.Errorf("wgpu: %s not acquired", m.label)
		}
	}
	for _, m := range shared {
		m.acquired = false
	}
	return newEvent(q.idle), nil
}

func sharedMemories(mems []interop.Memory) ([]*memory, error) {
	out := make([]*memory, len(mems))
	for i, m := range mems {
		mem, err := asMemory(m)
		if err != nil {
			return nil, err
		}
		if mem.flags&interop.MemShared == 0 {
			return nil, fmt.Errorf("wgpu: %s was not allocated for sharing", mem.label)
		}
		out[i] = mem
	}
	return out, nil
}

func (q *queue) Enqueue(k interop.Kernel, global, local [3]int) (interop.Event, error) {
	kern, ok := k.(*kernel)
	if !ok {
		return nil, fmt.Errorf("wgpu: %T is not a WebGPU kernel", k)
	}
	for d := range 3 {
		if max(local[d], 1) != kern.info.Workgroup[d] {
			return nil, fmt.Errorf("wgpu: %s: local size %v, compiled for %v", kern.name, local, kern.info.Workgroup)
		}
	}
	groups, err := groupCount(global, local)
	if err != nil {
		return nil, err
	}

	bg, uniforms, err := kern.bindGroup(q.q)
	if err != nil {
		return nil, err
	}
	cleanup := func() {
		bg.Release()
		for _, u := range uniforms {
			u.Release()
		}
	}

	enc, err := q.d.gpu.CreateCommandEncoder(&gpu.CommandEncoderDescriptor{Label: kern.name})
	if err != nil {
		cleanup()
		return nil, err
	}
	pass, err := enc.BeginComputePass(&gpu.ComputePassDescriptor{Label: kern.name})
	if err != nil {
		cleanup()
		return nil, err
	}
	pass.SetPipeline(kern.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(groups[0], groups[1], groups[2])
	if err := pass.End(); err != nil {
		cleanup()
		return nil, fmt.Errorf("wgpu: %s: end pass: %w", kern.name, err)
	}
	cb, err := enc.Finish()
	if err != nil {
		cleanup()
		return nil, err
	}
	if _, err := q.q.Submit(cb); err != nil {
		cleanup()
		return nil, fmt.Errorf("wgpu: %s: submit: %w", kern.name, err)
	}

	return newEvent(func(ctx context.Context) error {
		defer cleanup()
		return q.idle(ctx)
	}), nil
}

// Flush is a no-op: Submit already hands work to the device.
func (q *queue) Flush() error { return nil }

func (q *queue) Finish() error { return q.d.gpu.WaitIdle() }

// Release is a no-op; the queue belongs to the device.
func (q *queue) Release() {}
