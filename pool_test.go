package interop

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"
)

func TestAllocateModes(t *testing.T) {
	ctx := context.Background()
	init := []byte{1, 2, 3, 4}

	t.Run("shared", func(t *testing.T) {
		c, dev, err := bindFake(ModeShared)
		if err != nil {
			t.Fatal(err)
		}
		defer c.Close()
		p := NewResourcePool(c)
		b, err := p.Allocate(ctx, SizeSpec{Label: "pos", Size: 8, Init: init})
		if err != nil {
			t.Fatal(err)
		}
		m := dev.mems[0]
		if m.flags != MemShared {
			t.Errorf("flags = %v, want MemShared", m.flags)
		}
		if !bytes.Equal(m.data[:4], init) {
			t.Errorf("initial data not uploaded: %v", m.data)
		}
		view, err := b.DrawBytes()
		if err != nil {
			t.Fatal(err)
		}
		if &view[0] != &m.data[0] {
			t.Error("shared-mode draw view does not alias compute memory")
		}
	})

	t.Run("copy", func(t *testing.T) {
		c, dev, err := bindFake(ModeCopy)
		if err != nil {
			t.Fatal(err)
		}
		defer c.Close()
		p := NewResourcePool(c)
		b, err := p.Allocate(ctx, SizeSpec{Label: "pos", Size: 8, Init: init})
		if err != nil {
			t.Fatal(err)
		}
		m := dev.mems[0]
		if m.flags != MemReadWrite {
			t.Errorf("flags = %v, want MemReadWrite", m.flags)
		}
		if dev.queue.writes != 0 {
			t.Errorf("copy mode uploaded at allocation (%d writes)", dev.queue.writes)
		}
		if err := p.PushPending(ctx); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(m.data[:4], init) {
			t.Errorf("pending data not pushed: %v", m.data)
		}
		if err := p.PushPending(ctx); err != nil {
			t.Fatal(err)
		}
		if dev.queue.writes != 1 {
			t.Errorf("writes = %d, want 1 (push happens once)", dev.queue.writes)
		}
		view, _ := b.DrawBytes()
		if !bytes.Equal(view[:4], init) {
			t.Errorf("mirror = %v", view)
		}
	})

	t.Run("private", func(t *testing.T) {
		c, dev, err := bindFake(ModeShared)
		if err != nil {
			t.Fatal(err)
		}
		defer c.Close()
		p := NewResourcePool(c)
		b, err := p.Allocate(ctx, SizeSpec{Label: "vel", Size: 8, Private: true})
		if err != nil {
			t.Fatal(err)
		}
		if b.Visible() || dev.mems[0].flags != MemReadWrite {
			t.Error("private buffer allocated as shared")
		}
	})

	t.Run("invalid", func(t *testing.T) {
		c, _, err := bindFake(ModeCopy)
		if err != nil {
			t.Fatal(err)
		}
		defer c.Close()
		p := NewResourcePool(c)
		if _, err := p.Allocate(ctx, SizeSpec{Label: "x"}); err == nil {
			t.Error("zero size accepted")
		}
		if _, err := p.Allocate(ctx, SizeSpec{Label: "x", Size: 2, Init: init}); err == nil {
			t.Error("oversized init accepted")
		}
	})
}

func TestOwnershipErrors(t *testing.T) {
	ctx := context.Background()
	c, dev, err := bindFake(ModeShared)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	p := NewResourcePool(c)
	a, _ := p.Allocate(ctx, SizeSpec{Label: "a", Size: 4})
	b, _ := p.Allocate(ctx, SizeSpec{Label: "b", Size: 4})

	if err := p.Release(ctx, a); !errors.Is(err, ErrOwnership) {
		t.Errorf("release before acquire = %v, want ErrOwnership", err)
	}
	if err := p.Acquire(ctx, a); err != nil {
		t.Fatal(err)
	}
	if _, err := a.DrawBytes(); !errors.Is(err, ErrOwnership) {
		t.Errorf("draw access while compute-owned = %v, want ErrOwnership", err)
	}
	if err := p.Destroy(a); !errors.Is(err, ErrOwnership) {
		t.Errorf("destroy while compute-owned = %v, want ErrOwnership", err)
	}

	// A batch with one bad buffer changes nothing.
	acquires := dev.queue.acquires
	if err := p.Acquire(ctx, b, a); !errors.Is(err, ErrOwnership) {
		t.Errorf("double acquire = %v, want ErrOwnership", err)
	}
	if b.Owner() != OwnerDraw {
		t.Error("failed batch acquire changed ownership of b")
	}
	if dev.queue.acquires != acquires {
		t.Error("failed batch acquire reached the queue")
	}

	if err := p.Release(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := p.Destroy(a); err != nil {
		t.Fatal(err)
	}
	if err := p.Destroy(a); err != nil {
		t.Errorf("second destroy = %v", err)
	}
	if err := p.Acquire(ctx, a); !errors.Is(err, ErrClosed) {
		t.Errorf("acquire destroyed = %v, want ErrClosed", err)
	}
	if len(p.Buffers()) != 1 {
		t.Errorf("Buffers() = %d, want 1", len(p.Buffers()))
	}
}

// TestOwnershipProperty drives random acquire, dispatch, release and draw
// operations and checks the pool against a two-state model.
func TestOwnershipProperty(t *testing.T) {
	ctx := context.Background()
	for _, mode := range []InteropMode{ModeShared, ModeCopy} {
		t.Run(mode.String(), func(t *testing.T) {
			c, _, err := bindFake(mode)
			if err != nil {
				t.Fatal(err)
			}
			defer c.Close()
			p := NewResourcePool(c)
			d := NewDispatcher(c, testLoader)
			buf, _ := p.AllocateDouble(ctx, SizeSpec{Label: "data", Size: 16})
			prog, err := d.Build("Identity_Kernels.wgsl", "")
			if err != nil {
				t.Fatal(err)
			}
			k, err := d.CreateKernel(prog, "identity")
			if err != nil {
				t.Fatal(err)
			}
			dom := NewDomain1D(4, 1, 4)

			rng := rand.New(rand.NewPCG(7, uint64(mode)))
			compute := false
			for step := range 5000 {
				op := rng.IntN(4)
				var err error
				switch op {
				case 0:
					err = p.AcquireAll(ctx)
				case 1:
					_ = d.SetArgs(k, In(buf.Current()), Out(buf.Next()))
					err = d.Dispatch(ctx, k, dom)
				case 2:
					err = p.ReleaseAll(ctx)
				case 3:
					_, err = buf.Current().DrawBytes()
				}

				wantOK := map[int]bool{0: !compute, 1: compute, 2: compute, 3: !compute}[op]
				if wantOK && err != nil {
					t.Fatalf("step %d op %d: unexpected error %v", step, op, err)
				}
				if !wantOK && !errors.Is(err, ErrOwnership) {
					t.Fatalf("step %d op %d: error %v, want ErrOwnership", step, op, err)
				}
				switch {
				case op == 0 && wantOK:
					compute = true
				case op == 2 && wantOK:
					compute = false
				}
				for _, b := range p.Buffers() {
					if (b.Owner() == OwnerCompute) != compute {
						t.Fatalf("step %d: %s owner %s, model compute=%v", step, b.Label(), b.Owner(), compute)
					}
				}
			}
		})
	}
}

func TestCopyModeRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, dev, err := bindFake(ModeCopy)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	src := make([]byte, 4096)
	rng := rand.New(rand.NewPCG(3, 4))
	for i := range src {
		src[i] = byte(rng.UintN(256))
	}

	p := NewResourcePool(c)
	in, _ := p.Allocate(ctx, SizeSpec{Label: "in", Size: len(src), Init: src})
	out, _ := p.Allocate(ctx, SizeSpec{Label: "out", Size: len(src)})
	d := NewDispatcher(c, testLoader)
	prog, _ := d.Build("Identity_Kernels.wgsl", "")
	k, _ := d.CreateKernel(prog, "identity")

	if err := p.PushPending(ctx); err != nil {
		t.Fatal(err)
	}
	if err := p.AcquireAll(ctx); err != nil {
		t.Fatal(err)
	}
	if err := d.SetArgs(k, In(in), Out(out)); err != nil {
		t.Fatal(err)
	}
	if err := d.Dispatch(ctx, k, NewDomain1D(len(src)/4, 1, 64)); err != nil {
		t.Fatal(err)
	}
	if err := p.ReleaseAll(ctx); err != nil {
		t.Fatal(err)
	}
	if dev.queue.reads != 1 {
		t.Errorf("reads = %d, want 1 (only the written buffer)", dev.queue.reads)
	}
	got, err := out.DrawBytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, src) {
		t.Error("round trip did not reproduce the input")
	}
}

func TestReleaseReadBackFailure(t *testing.T) {
	ctx := context.Background()
	c, dev, err := bindFake(ModeCopy)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	p := NewResourcePool(c)
	b, _ := p.Allocate(ctx, SizeSpec{Label: "out", Size: 4})
	_ = p.AcquireAll(ctx)
	b.dirty = true
	dev.queue.readErr = errors.New("map failed")

	if err := p.ReleaseAll(ctx); !errors.Is(err, ErrBufferMapFailure) {
		t.Fatalf("ReleaseAll() = %v, want ErrBufferMapFailure", err)
	}
	if err := p.Recover(ctx); err != nil {
		t.Fatal(err)
	}
	if b.Owner() != OwnerDraw {
		t.Error("Recover did not return ownership")
	}
}

func TestReadBackTimeoutKeepsMirror(t *testing.T) {
	ctx := context.Background()
	c, dev, err := bindFake(ModeCopy)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	c.timeout = 10 * time.Millisecond

	old := []byte{1, 2, 3, 4}
	p := NewResourcePool(c)
	b, _ := p.Allocate(ctx, SizeSpec{Label: "out", Size: 4, Init: old})
	if err := p.PushPending(ctx); err != nil {
		t.Fatal(err)
	}
	_ = p.AcquireAll(ctx)
	copy(b.mem.(*fakeMemory).data, []byte{9, 9, 9, 9})
	b.dirty = true
	dev.queue.slowReads = true

	if err := p.ReleaseAll(ctx); !errors.Is(err, ErrTimeout) {
		t.Fatalf("ReleaseAll() = %v, want ErrTimeout", err)
	}
	if err := p.Recover(ctx); err != nil {
		t.Fatal(err)
	}
	if len(dev.queue.late) != 1 {
		t.Fatalf("%d reads in flight, want 1", len(dev.queue.late))
	}
	// The device finishes the abandoned read after the draw side has
	// taken the buffer back.
	dev.queue.late[0].complete()
	got, err := b.DrawBytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, old) {
		t.Errorf("mirror = %v after a late read, want %v", got, old)
	}

	// The next read-back that completes is delivered.
	dev.queue.slowReads = false
	_ = p.AcquireAll(ctx)
	b.dirty = true
	if err := p.ReleaseAll(ctx); err != nil {
		t.Fatal(err)
	}
	if got, _ := b.DrawBytes(); !bytes.Equal(got, []byte{9, 9, 9, 9}) {
		t.Errorf("mirror = %v, want the device contents", got)
	}
}

func TestDoubleBuffer(t *testing.T) {
	ctx := context.Background()
	c, _, err := bindFake(ModeCopy)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	p := NewResourcePool(c)
	d, err := p.AllocateDouble(ctx, SizeSpec{Label: "pos", Size: 4})
	if err != nil {
		t.Fatal(err)
	}
	if d.Buffer(0).Label() != "pos[0]" || d.Buffer(1).Label() != "pos[1]" {
		t.Errorf("labels = %s, %s", d.Buffer(0).Label(), d.Buffer(1).Label())
	}
	first := d.Current()
	d.Swap()
	if d.Index() != 1 || d.Next() != first {
		t.Error("Swap did not exchange roles")
	}
}

func TestPoolClose(t *testing.T) {
	ctx := context.Background()
	c, dev, err := bindFake(ModeShared)
	if err != nil {
		t.Fatal(err)
	}
	p := NewResourcePool(c)
	_, _ = p.AllocateDouble(ctx, SizeSpec{Label: "pos", Size: 4})
	p.Close()
	if n := dev.liveMemories(); n != 0 {
		t.Errorf("live memories after Close = %d", n)
	}
	if _, err := p.Allocate(ctx, SizeSpec{Label: "x", Size: 4}); !errors.Is(err, ErrClosed) {
		t.Errorf("Allocate after Close = %v, want ErrClosed", err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if c.Live() != 0 {
		t.Errorf("Live() = %d after context close", c.Live())
	}
}
