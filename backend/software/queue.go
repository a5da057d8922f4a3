package software

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/interop"
)

var errQueueReleased = errors.New("software: queue released")

// event completes when its command has run.
type event struct {
	status atomic.Uint32
	done   chan struct{}
	err    error
}

func newEvent() *event {
	return &event{done: make(chan struct{})}
}

func (e *event) Status() interop.EventStatus { return interop.EventStatus(e.status.Load()) }

func (e *event) Wait(ctx context.Context) error {
	select {
	case <-e.done:
		return e.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *event) finish(err error) {
	e.err = err
	if err != nil {
		e.status.Store(uint32(interop.EventFailed))
	} else {
		e.status.Store(uint32(interop.EventComplete))
	}
	close(e.done)
}

type command struct {
	name string
	run  func() error
	ev   *event
}

// queue runs commands in submission order on one goroutine. Kernels fan
// out their work-groups to the device pool.
type queue struct {
	d *device

	mu       sync.Mutex
	cmds     chan command
	released bool
	stopped  chan struct{}
}

func newQueue(d *device) *queue {
	q := &queue{
		d:       d,
		cmds:    make(chan command, 64),
		stopped: make(chan struct{}),
	}
	go q.loop()
	return q
}

func (q *queue) loop() {
	defer close(q.stopped)
	for c := range q.cmds {
		c.ev.status.Store(uint32(interop.EventRunning))
		err := c.run()
		if err != nil {
			err = fmt.Errorf("software: %s: %w", c.name, err)
		}
		c.ev.finish(err)
	}
}

func (q *queue) submit(name string, run func() error) (interop.Event, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.released {
		return nil, errQueueReleased
	}
	ev := newEvent()
	q.cmds <- command{name: name, run: run, ev: ev}
	return ev, nil
}

func (q *queue) WriteBuffer(m interop.Memory, offset int, data []byte) (interop.Event, error) {
	mem, err := asMemory(m)
	if err != nil {
		return nil, err
	}
	if err := checkRange(mem, offset, len(data)); err != nil {
		return nil, err
	}
	snapshot := append([]byte(nil), data...)
	return q.submit("write "+mem.label, func() error {
		copy(mem.data[offset:], snapshot)
		return nil
	})
}

func (q *queue) ReadBuffer(m interop.Memory, offset int, dst []byte) (interop.Event, error) {
	mem, err := asMemory(m)
	if err != nil {
		return nil, err
	}
	if err := checkRange(mem, offset, len(dst)); err != nil {
		return nil, err
	}
	return q.submit("read "+mem.label, func() error {
		copy(dst, mem.data[offset:])
		return nil
	})
}

func (q *queue) AcquireShared(mems []interop.Memory) (interop.Event, error) {
	shared, err := sharedMemories(mems)
	if err != nil {
		return nil, err
	}
	return q.submit("acquire", func() error {
		for _, m := range shared {
			if m.acquired {
				return fmt.Errorf("%s already acquired", m.label)
			}
		}
		for _, m := range shared {
			m.acquired = true
		}
		return nil
	})
}

func (q *queue) ReleaseShared(mems []interop.Memory) (interop.Event, error) {
	shared, err := sharedMemories(mems)
	if err != nil {
		return nil, err
	}
	return q.submit("release", func() error {
		for _, m := range shared {
			if !m.acquired {
				return fmt.Errorf("%s not acquired", m.label)
			}
		}
		for _, m := range shared {
			m.acquired = false
		}
		return nil
	})
}

func sharedMemories(mems []interop.Memory) ([]*memory, error) {
	out := make([]*memory, len(mems))
	for i, m := range mems {
		mem, err := asMemory(m)
		if err != nil {
			return nil, err
		}
		if mem.flags&interop.MemShared == 0 {
			return nil, fmt.Errorf("software: %s was not allocated for sharing", mem.label)
		}
		out[i] = mem
	}
	return out, nil
}

func (q *queue) Enqueue(k interop.Kernel, global, local [3]int) (interop.Event, error) {
	kern, ok := k.(*kernel)
	if !ok {
		return nil, fmt.Errorf("software: %T is not a software kernel", k)
	}
	inv, err := kern.launch(global, local)
	if err != nil {
		return nil, err
	}
	return q.submit("kernel "+kern.name, func() error {
		return q.execute(kern, inv)
	})
}

// execute runs one work-group per pool task.
func (q *queue) execute(k *kernel, inv launch) error {
	for _, a := range inv.args {
		if a.mem != nil && a.mem.flags&interop.MemShared != 0 && !a.mem.acquired {
			return fmt.Errorf("%s touches %s without acquiring it", k.name, a.mem.label)
		}
	}
	n := inv.groups[0] * inv.groups[1] * inv.groups[2]
	ok := q.d.pool.run(n, func(i int) {
		g := inv.group(i)
		k.fn(&g)
	})
	if !ok {
		return errors.New("device released during dispatch")
	}
	return nil
}

// Flush is a no-op: commands start as soon as they are submitted.
func (q *queue) Flush() error { return nil }

func (q *queue) Finish() error {
	ev, err := q.submit("finish", func() error { return nil })
	if err != nil {
		return err
	}
	return ev.Wait(context.Background())
}

// Release drains the queue and stops its goroutine.
func (q *queue) Release() {
	q.mu.Lock()
	if q.released {
		q.mu.Unlock()
		return
	}
	q.released = true
	close(q.cmds)
	q.mu.Unlock()
	<-q.stopped
}
