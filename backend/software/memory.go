package software

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/gogpu/interop"
)

// memory is a device allocation in host memory. Shared allocations are
// handed to the rasterizer as the same bytes.
type memory struct {
	label    string
	data     []byte
	flags    interop.MemFlags
	acquired bool // owned by the queue; only touched from the queue goroutine
	released atomic.Bool
}

func (m *memory) Size() int      { return len(m.data) }
func (m *memory) Bytes() []byte  { return m.data }
func (m *memory) Release()       { m.released.Store(true) }
func (m *memory) String() string { return fmt.Sprintf("memory(%s, %d bytes)", m.label, len(m.data)) }

// words returns the number of whole 32-bit elements.
func (m *memory) words() int { return len(m.data) / 4 }

func (m *memory) u32(i int) uint32 { return binary.LittleEndian.Uint32(m.data[4*i:]) }

func (m *memory) setU32(i int, v uint32) { binary.LittleEndian.PutUint32(m.data[4*i:], v) }

func (m *memory) f32(i int) float32 { return math.Float32frombits(m.u32(i)) }

func (m *memory) setF32(i int, v float32) { m.setU32(i, math.Float32bits(v)) }

// vec4 reads the i-th vec4<f32>.
func (m *memory) vec4(i int) [4]float32 {
	return [4]float32{m.f32(4 * i), m.f32(4*i + 1), m.f32(4*i + 2), m.f32(4*i + 3)}
}

func (m *memory) setVec4(i int, v [4]float32) {
	for c := range v {
		m.setF32(4*i+c, v[c])
	}
}

func asMemory(m interop.Memory) (*memory, error) {
	mem, ok := m.(*memory)
	if !ok {
		return nil, fmt.Errorf("software: %T is not a software allocation", m)
	}
	if mem.released.Load() {
		return nil, fmt.Errorf("software: %s used after release", mem.label)
	}
	return mem, nil
}

func checkRange(m *memory, offset, n int) error {
	if offset < 0 || n < 0 || offset+n > len(m.data) {
		return fmt.Errorf("software: %s: range [%d, %d) outside %d bytes", m.label, offset, offset+n, len(m.data))
	}
	return nil
}
