package kernels

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"

	"github.com/gogpu/interop"
)

// BindingKind is the kind of a kernel argument binding.
type BindingKind uint8

const (
	// BindStorage is a read-write storage buffer.
	BindStorage BindingKind = iota
	// BindReadOnly is a read-only storage buffer.
	BindReadOnly
	// BindUniform is a uniform scalar or struct.
	BindUniform
)

func (k BindingKind) String() string {
	switch k {
	case BindReadOnly:
		return "read-only-storage"
	case BindUniform:
		return "uniform"
	default:
		return "storage"
	}
}

// Binding is one @group(0) resource an entry point uses. The binding
// index is the kernel argument position.
type Binding struct {
	Index uint32
	Name  string
	Kind  BindingKind
	// Size is the static size of a uniform, zero for runtime arrays.
	Size uint32
}

// EntryInfo describes a compute entry point.
type EntryInfo struct {
	Name string
	// Workgroup is the @workgroup_size the entry was compiled with.
	Workgroup [3]int
	// WorkgroupBytes is the workgroup-address-space memory the entry uses.
	WorkgroupBytes int
	Bindings       []Binding
}

// WorkGroupInfo converts the entry to the kernel limits the dispatcher
// checks.
func (e EntryInfo) WorkGroupInfo(maxGroup int) interop.KernelWorkGroupInfo {
	return interop.KernelWorkGroupInfo{
		MaxWorkGroupSize:     maxGroup,
		CompileWorkGroupSize: e.Workgroup,
		LocalMemUsed:         e.WorkgroupBytes,
	}
}

// Binding returns the binding at index.
func (e EntryInfo) Binding(index int) (Binding, bool) {
	for _, b := range e.Bindings {
		if int(b.Index) == index {
			return b, true
		}
	}
	return Binding{}, false
}

// Program is a preprocessed and reflected kernel source.
type Program struct {
	Name    string
	Source  string // after preprocessing
	Defines map[string]string
	Module  *ir.Module
	Entries map[string]EntryInfo
}

// Entry returns the named compute entry point, or a *interop.CompileError
// when the program has none.
func (p *Program) Entry(name string) (EntryInfo, error) {
	e, ok := p.Entries[name]
	if !ok {
		return EntryInfo{}, &interop.CompileError{
			Source: p.Name,
			Entry:  name,
			Log:    fmt.Sprintf("no compute entry point %q (have %s)", name, strings.Join(p.EntryNames(), ", ")),
		}
	}
	return e, nil
}

// EntryNames returns the entry point names in sorted order.
func (p *Program) EntryNames() []string {
	names := make([]string, 0, len(p.Entries))
	for n := range p.Entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Compile preprocesses src with options, then parses, lowers and validates
// it with naga. Any failure is a *interop.CompileError carrying the log.
func Compile(name, src, options string) (*Program, error) {
	opts, err := ParseOptions(options)
	if err != nil {
		return nil, &interop.CompileError{Source: name, Log: err.Error()}
	}
	if len(opts.Ignored) > 0 {
		interop.Logger().Debug("kernels: ignoring build options", "source", name, "options", opts.Ignored)
	}
	text, defs, err := Preprocess(src, opts)
	if err != nil {
		return nil, &interop.CompileError{Source: name, Log: err.Error()}
	}

	ast, err := naga.Parse(text)
	if err != nil {
		return nil, &interop.CompileError{Source: name, Log: err.Error()}
	}
	module, err := naga.LowerWithSource(ast, text)
	if err != nil {
		return nil, &interop.CompileError{Source: name, Log: err.Error()}
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return nil, &interop.CompileError{Source: name, Log: err.Error()}
	}
	if len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, v := range verrs {
			msgs[i] = v.Error()
		}
		return nil, &interop.CompileError{Source: name, Log: strings.Join(msgs, "\n")}
	}

	p := &Program{
		Name:    name,
		Source:  text,
		Defines: defs,
		Module:  module,
		Entries: make(map[string]EntryInfo),
	}
	for i := range module.EntryPoints {
		ep := &module.EntryPoints[i]
		if ep.Stage != ir.StageCompute {
			continue
		}
		p.Entries[ep.Name] = reflectEntry(module, ep)
	}
	if len(p.Entries) == 0 {
		return nil, &interop.CompileError{Source: name, Log: "no compute entry points"}
	}
	return p, nil
}

func reflectEntry(m *ir.Module, ep *ir.EntryPoint) EntryInfo {
	info := EntryInfo{
		Name: ep.Name,
		Workgroup: [3]int{
			int(max(ep.Workgroup[0], 1)),
			int(max(ep.Workgroup[1], 1)),
			int(max(ep.Workgroup[2], 1)),
		},
	}

	used := make([]bool, len(m.GlobalVariables))
	mark := func(f *ir.Function) {
		for _, e := range f.Expressions {
			if gv, ok := e.Kind.(ir.ExprGlobalVariable); ok && int(gv.Variable) < len(used) {
				used[gv.Variable] = true
			}
		}
	}
	mark(&ep.Function)
	// Helper functions are not traced through calls; their globals count
	// for every entry point.
	for i := range m.Functions {
		mark(&m.Functions[i])
	}

	for i, gv := range m.GlobalVariables {
		if !used[i] {
			continue
		}
		switch gv.Space {
		case ir.SpaceWorkGroup:
			info.WorkgroupBytes += int(ir.TypeSize(m, gv.Type))
		case ir.SpaceStorage, ir.SpaceUniform:
			if gv.Binding == nil || gv.Binding.Group != 0 {
				continue
			}
			b := Binding{Index: gv.Binding.Binding, Name: gv.Name, Kind: BindStorage}
			switch {
			case gv.Space == ir.SpaceUniform:
				b.Kind = BindUniform
				b.Size = ir.TypeSize(m, gv.Type)
			case gv.Access == ir.StorageRead:
				b.Kind = BindReadOnly
			}
			info.Bindings = append(info.Bindings, b)
		}
	}
	sort.Slice(info.Bindings, func(i, j int) bool { return info.Bindings[i].Index < info.Bindings[j].Index })
	return info
}
