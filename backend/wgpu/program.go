package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	gpu "github.com/gogpu/wgpu"

	"github.com/gogpu/interop"
	"github.com/gogpu/interop/kernels"
)

// uniformAlign is the size scalar uniforms are padded to.
const uniformAlign = 16

type program struct {
	d      *device
	p      *kernels.Program
	module *gpu.ShaderModule
}

func (p *program) Kernel(entry string) (interop.Kernel, error) {
	info, err := p.p.Entry(entry)
	if err != nil {
		return nil, err
	}

	bgl, err := p.d.gpu.CreateBindGroupLayout(&gpu.BindGroupLayoutDescriptor{
		Label:   entry,
		Entries: layoutEntries(info),
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: %s: bind group layout: %w", entry, err)
	}
	pl, err := p.d.gpu.CreatePipelineLayout(&gpu.PipelineLayoutDescriptor{
		Label:            entry,
		BindGroupLayouts: []*gpu.BindGroupLayout{bgl},
	})
	if err != nil {
		bgl.Release()
		return nil, fmt.Errorf("wgpu: %s: pipeline layout: %w", entry, err)
	}
	pipeline, err := p.d.gpu.CreateComputePipeline(&gpu.ComputePipelineDescriptor{
		Label:      entry,
		Layout:     pl,
		Module:     p.module,
		EntryPoint: entry,
	})
	if err != nil {
		pl.Release()
		bgl.Release()
		return nil, &interop.CompileError{Source: p.p.Name, Entry: entry, Log: err.Error()}
	}

	return &kernel{
		d:        p.d,
		name:     entry,
		info:     info,
		bgl:      bgl,
		pl:       pl,
		pipeline: pipeline,
		args:     make(map[int]interop.KernelArg),
	}, nil
}

func (p *program) Release() { p.module.Release() }

// layoutEntries maps reflected bindings to a bind group layout.
func layoutEntries(info kernels.EntryInfo) []gpu.BindGroupLayoutEntry {
	entries := make([]gpu.BindGroupLayoutEntry, len(info.Bindings))
	for i, b := range info.Bindings {
		t := gputypes.BufferBindingTypeStorage
		switch b.Kind {
		case kernels.BindReadOnly:
			t = gputypes.BufferBindingTypeReadOnlyStorage
		case kernels.BindUniform:
			t = gputypes.BufferBindingTypeUniform
		}
		entries[i] = gpu.BindGroupLayoutEntry{
			Binding:    b.Index,
			Visibility: gpu.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: t},
		}
	}
	return entries
}

// padUniform copies a scalar into a uniform-sized block.
func padUniform(b []byte) []byte {
	n := max(uniformAlign, (len(b)+uniformAlign-1)/uniformAlign*uniformAlign)
	out := make([]byte, n)
	copy(out, b)
	return out
}

type kernel struct {
	d        *device
	name     string
	info     kernels.EntryInfo
	bgl      *gpu.BindGroupLayout
	pl       *gpu.PipelineLayout
	pipeline *gpu.ComputePipeline
	args     map[int]interop.KernelArg
}

func (k *kernel) Name() string { return k.name }

func (k *kernel) WorkGroupInfo() interop.KernelWorkGroupInfo {
	return k.info.WorkGroupInfo(k.d.limits.MaxWorkGroupSize)
}

// SetArg records an argument. Local-memory arguments have no binding; the
// memory they reserve is checked by the caller and the kernel declares its
// workgroup arrays statically.
func (k *kernel) SetArg(index int, a interop.KernelArg) error {
	b, bound := k.info.Binding(index)
	switch {
	case !bound:
		if a.LocalSize <= 0 {
			return fmt.Errorf("wgpu: %s: argument %d has no binding", k.name, index)
		}
	case b.Kind == kernels.BindUniform:
		if a.Scalar == nil && a.Memory == nil {
			return fmt.Errorf("wgpu: %s: uniform %s needs a value", k.name, b.Name)
		}
	default:
		if a.Memory == nil {
			return fmt.Errorf("wgpu: %s: %s binding %s needs a buffer", k.name, b.Kind, b.Name)
		}
		if _, err := asMemory(a.Memory); err != nil {
			return err
		}
	}
	k.args[index] = a
	return nil
}

func (k *kernel) Release() {
	k.pipeline.Release()
	k.pl.Release()
	k.bgl.Release()
}

// bindGroup creates the bind group for the current arguments. Scalars are
// uploaded into fresh uniform buffers that the caller releases with the
// group once the dispatch has completed.
func (k *kernel) bindGroup(q *gpu.Queue) (*gpu.BindGroup, []*gpu.Buffer, error) {
	var uniforms []*gpu.Buffer
	release := func() {
		for _, u := range uniforms {
			u.Release()
		}
	}

	entries := make([]gpu.BindGroupEntry, 0, len(k.info.Bindings))
	for _, b := range k.info.Bindings {
		a, ok := k.args[int(b.Index)]
		if !ok {
			release()
			return nil, nil, fmt.Errorf("wgpu: %s: argument %d (%s) not set", k.name, b.Index, b.Name)
		}
		if a.Scalar != nil {
			data := padUniform(a.Scalar)
			u, err := k.d.gpu.CreateBuffer(&gpu.BufferDescriptor{
				Label: k.name + "." + b.Name,
				Size:  uint64(len(data)),
				Usage: gpu.BufferUsageUniform | gpu.BufferUsageCopyDst,
			})
			if err != nil {
				release()
				return nil, nil, fmt.Errorf("wgpu: %s: uniform %s: %w", k.name, b.Name, err)
			}
			uniforms = append(uniforms, u)
			if err := q.WriteBuffer(u, 0, data); err != nil {
				release()
				return nil, nil, fmt.Errorf("wgpu: %s: uniform %s: %w", k.name, b.Name, err)
			}
			entries = append(entries, gpu.BindGroupEntry{Binding: b.Index, Buffer: u, Size: uint64(len(data))})
			continue
		}
		mem, err := asMemory(a.Memory)
		if err != nil {
			release()
			return nil, nil, err
		}
		entries = append(entries, gpu.BindGroupEntry{Binding: b.Index, Buffer: mem.buf, Size: mem.buf.Size()})
	}

	bg, err := k.d.gpu.CreateBindGroup(&gpu.BindGroupDescriptor{
		Label:   k.name,
		Layout:  k.bgl,
		Entries: entries,
	})
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("wgpu: %s: bind group: %w", k.name, err)
	}
	return bg, uniforms, nil
}

// groupCount converts a global/local extent to work-group counts.
func groupCount(global, local [3]int) ([3]uint32, error) {
	var n [3]uint32
	for d := range 3 {
		g, l := max(global[d], 1), max(local[d], 1)
		if g%l != 0 {
			return n, fmt.Errorf("wgpu: global size %v not a multiple of %v", global, local)
		}
		n[d] = uint32(g / l)
	}
	return n, nil
}
