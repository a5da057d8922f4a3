package interop

import "fmt"

// Owner identifies the side allowed to touch a SharedBuffer's bytes.
type Owner uint8

const (
	// OwnerDraw is the rasterizer side. Buffers start here.
	OwnerDraw Owner = iota
	// OwnerCompute is the compute side, between acquire and release.
	OwnerCompute
)

func (o Owner) String() string {
	if o == OwnerCompute {
		return "compute"
	}
	return "draw"
}

// SharedBuffer is a memory region owned by either the compute side or the
// draw side at any instant, never both.
//
// In shared-context mode the draw side aliases the compute allocation. In
// copy mode a draw-visible buffer carries a host mirror that is refreshed by
// a read-back after each dispatch that writes it.
type SharedBuffer struct {
	label   string
	size    int
	visible bool

	mem    Memory
	mirror []byte
	// staging receives copy-mode read-backs. It is dropped when a read
	// does not complete, leaving it to the late writer.
	staging []byte

	owner   Owner
	dirty   bool
	pending []byte
	handle  *scoped
	freed   bool
}

// Label returns the buffer label.
func (b *SharedBuffer) Label() string { return b.label }

// Size returns the size in bytes.
func (b *SharedBuffer) Size() int { return b.size }

// Owner returns the side that currently owns the buffer.
func (b *SharedBuffer) Owner() Owner { return b.owner }

// Visible reports whether the draw side consumes the buffer.
func (b *SharedBuffer) Visible() bool { return b.visible }

// Memory returns the compute-side allocation. In shared mode the draw side
// binds it directly (for example as a vertex buffer).
func (b *SharedBuffer) Memory() Memory { return b.mem }

// Destroyed reports whether the buffer has been released.
func (b *SharedBuffer) Destroyed() bool { return b.freed }

// DrawBytes returns the host view the draw side reads: the mirror in copy
// mode, the aliased allocation in shared mode when the device is host
// addressable, nil otherwise. It fails while the compute side owns the
// buffer.
func (b *SharedBuffer) DrawBytes() ([]byte, error) {
	if b.freed {
		return nil, fmt.Errorf("interop: %s: %w", b.label, ErrClosed)
	}
	if b.owner != OwnerDraw {
		return nil, fmt.Errorf("interop: draw access to %s while compute-owned: %w", b.label, ErrOwnership)
	}
	if b.mirror != nil {
		return b.mirror, nil
	}
	if hm, ok := b.mem.(HostMemory); ok {
		return hm.Bytes(), nil
	}
	return nil, nil
}

// DoubleBuffer is a current/next pair. A dispatch reads current and writes
// next; Swap exchanges the roles.
type DoubleBuffer struct {
	bufs [2]*SharedBuffer
	cur  int
}

// Current returns the buffer the next dispatch reads.
func (d *DoubleBuffer) Current() *SharedBuffer { return d.bufs[d.cur] }

// Next returns the buffer the next dispatch writes.
func (d *DoubleBuffer) Next() *SharedBuffer { return d.bufs[1-d.cur] }

// Index returns the index of the current buffer, 0 or 1.
func (d *DoubleBuffer) Index() int { return d.cur }

// Buffer returns buffer i.
func (d *DoubleBuffer) Buffer(i int) *SharedBuffer { return d.bufs[i&1] }

// Swap makes next current.
func (d *DoubleBuffer) Swap() { d.cur = 1 - d.cur }
