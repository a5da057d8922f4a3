package software

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/gogpu/interop"
	"github.com/gogpu/interop/kernels"
)

// maxArgs bounds kernel argument indices.
const maxArgs = 16

type program struct {
	d *device
	p *kernels.Program
}

// Kernel returns the entry point. The WGSL is validated and reflected; the
// body that runs is the Go port registered for the entry name.
func (p *program) Kernel(entry string) (interop.Kernel, error) {
	info, err := p.p.Entry(entry)
	if err != nil {
		return nil, err
	}
	fn, ok := builtins[entry]
	if !ok {
		return nil, &interop.CompileError{
			Source: p.p.Name,
			Entry:  entry,
			Log:    fmt.Sprintf("no software implementation of %q (have %v)", entry, Builtins()),
		}
	}
	return &kernel{
		name:     entry,
		info:     info,
		fn:       fn,
		args:     make([]interop.KernelArg, maxArgs),
		maxGroup: p.d.b.limits.MaxWorkGroupSize,
	}, nil
}

func (p *program) Release() {}

// Builtins returns the entry names the software device can run.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type kernel struct {
	name     string
	info     kernels.EntryInfo
	fn       func(*group)
	args     []interop.KernelArg
	maxGroup int
}

func (k *kernel) Name() string { return k.name }

func (k *kernel) WorkGroupInfo() interop.KernelWorkGroupInfo {
	return k.info.WorkGroupInfo(k.maxGroup)
}

// SetArg binds argument index. Indices with a binding take a buffer, or a
// scalar for uniforms; any other index may only reserve local memory.
func (k *kernel) SetArg(index int, a interop.KernelArg) error {
	if index < 0 || index >= maxArgs {
		return fmt.Errorf("software: %s: argument %d out of range", k.name, index)
	}
	b, bound := k.info.Binding(index)
	switch {
	case !bound:
		if a.LocalSize <= 0 {
			return fmt.Errorf("software: %s: argument %d has no binding", k.name, index)
		}
	case b.Kind == kernels.BindUniform:
		if a.Scalar == nil && a.Memory == nil {
			return fmt.Errorf("software: %s: uniform %s needs a value", k.name, b.Name)
		}
		if a.Scalar != nil && len(a.Scalar) < int(b.Size) {
			return fmt.Errorf("software: %s: uniform %s needs %d bytes, got %d", k.name, b.Name, b.Size, len(a.Scalar))
		}
	default:
		if a.Memory == nil {
			return fmt.Errorf("software: %s: %s binding %s needs a buffer", k.name, b.Kind, b.Name)
		}
		if _, err := asMemory(a.Memory); err != nil {
			return err
		}
	}
	k.args[index] = a
	return nil
}

func (k *kernel) Release() {}

// launch is a kernel invocation with its arguments captured at enqueue
// time.
type launch struct {
	args   []arg
	local  [3]int
	groups [3]int
}

type arg struct {
	mem    *memory
	scalar []byte
}

func (k *kernel) launch(global, local [3]int) (launch, error) {
	var l launch
	for d := range 3 {
		g, s := max(global[d], 1), max(local[d], 1)
		if s != k.info.Workgroup[d] {
			return l, fmt.Errorf("software: %s: local size %v, compiled for %v", k.name, local, k.info.Workgroup)
		}
		if g%s != 0 {
			return l, fmt.Errorf("software: %s: global size %v not a multiple of %v", k.name, global, local)
		}
		l.local[d] = s
		l.groups[d] = g / s
	}

	l.args = make([]arg, maxArgs)
	for _, b := range k.info.Bindings {
		a := k.args[b.Index]
		switch {
		case a.Scalar != nil:
			l.args[b.Index].scalar = append([]byte(nil), a.Scalar...)
		case a.Memory != nil:
			mem, err := asMemory(a.Memory)
			if err != nil {
				return l, err
			}
			l.args[b.Index].mem = mem
		default:
			return l, fmt.Errorf("software: %s: argument %d (%s) not set", k.name, b.Index, b.Name)
		}
	}
	return l, nil
}

// group returns the i-th work-group in x-major order.
func (l launch) group(i int) group {
	x := i % l.groups[0]
	y := (i / l.groups[0]) % l.groups[1]
	z := i / (l.groups[0] * l.groups[1])
	return group{id: [3]int{x, y, z}, size: l.local, count: l.groups, args: l.args}
}

// group is one work-group as seen by a kernel body. Work-items of a group
// run in sequence, so barriers become phase boundaries in the body.
type group struct {
	id    [3]int
	size  [3]int
	count [3]int
	args  []arg
}

func (g *group) mem(i int) *memory { return g.args[i].mem }

func (g *group) uniform(i int) uint32 {
	a := g.args[i]
	if a.scalar != nil {
		return binary.LittleEndian.Uint32(a.scalar)
	}
	return a.mem.u32(0)
}

func (g *group) u32(i int) uint32  { return g.uniform(i) }
func (g *group) i32(i int) int32   { return int32(g.uniform(i)) }
func (g *group) f32(i int) float32 { return math.Float32frombits(g.uniform(i)) }

// each calls fn for every work-item with its global and local ids.
func (g *group) each(fn func(gid, lid [3]int)) {
	for z := range g.size[2] {
		for y := range g.size[1] {
			for x := range g.size[0] {
				lid := [3]int{x, y, z}
				gid := [3]int{
					g.id[0]*g.size[0] + x,
					g.id[1]*g.size[1] + y,
					g.id[2]*g.size[2] + z,
				}
				fn(gid, lid)
			}
		}
	}
}
