package wgpu

import (
	"bytes"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	gpu "github.com/gogpu/wgpu"

	"github.com/gogpu/interop"
	"github.com/gogpu/interop/kernels"
)

func TestLayoutEntries(t *testing.T) {
	src, err := kernels.Default().Load(kernels.VecAddFile)
	if err != nil {
		t.Fatal(err)
	}
	p, err := kernels.Compile(src.Name, src.Text, "")
	if err != nil {
		t.Fatal(err)
	}
	info, err := p.Entry("vecadd")
	if err != nil {
		t.Fatal(err)
	}

	want := []gputypes.BufferBindingType{
		gputypes.BufferBindingTypeReadOnlyStorage,
		gputypes.BufferBindingTypeReadOnlyStorage,
		gputypes.BufferBindingTypeStorage,
		gputypes.BufferBindingTypeUniform,
	}
	entries := layoutEntries(info)
	if len(entries) != len(want) {
		t.Fatalf("len(entries) = %d, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Binding != uint32(i) {
			t.Errorf("entries[%d].Binding = %d", i, e.Binding)
		}
		if e.Visibility != gpu.ShaderStageCompute {
			t.Errorf("entries[%d].Visibility = %v", i, e.Visibility)
		}
		if e.Buffer == nil || e.Buffer.Type != want[i] {
			t.Errorf("entries[%d].Buffer = %+v, want %s", i, e.Buffer, want[i])
		}
	}
}

func TestPadUniform(t *testing.T) {
	tests := []struct {
		in   []byte
		size int
	}{
		{[]byte{1, 2, 3, 4}, 16},
		{make([]byte, 16), 16},
		{make([]byte, 17), 32},
	}
	for _, tt := range tests {
		got := padUniform(tt.in)
		if len(got) != tt.size {
			t.Errorf("padUniform(%d bytes) = %d bytes, want %d", len(tt.in), len(got), tt.size)
		}
		if !bytes.Equal(got[:len(tt.in)], tt.in) {
			t.Errorf("padUniform(%v) lost data", tt.in)
		}
	}
}

func TestAlign4(t *testing.T) {
	for in, want := range map[uint64]uint64{0: 0, 1: 4, 4: 4, 5: 8, 4095: 4096} {
		if got := align4(in); got != want {
			t.Errorf("align4(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestGroupCount(t *testing.T) {
	tests := []struct {
		global, local [3]int
		want          [3]uint32
		err           bool
	}{
		{[3]int{1024, 1, 1}, [3]int{128, 1, 1}, [3]uint32{8, 1, 1}, false},
		{[3]int{64, 32, 1}, [3]int{8, 8, 1}, [3]uint32{8, 4, 1}, false},
		{[3]int{100, 0, 0}, [3]int{50, 0, 0}, [3]uint32{2, 1, 1}, false},
		{[3]int{100, 1, 1}, [3]int{64, 1, 1}, [3]uint32{}, true},
	}
	for _, tt := range tests {
		got, err := groupCount(tt.global, tt.local)
		if (err != nil) != tt.err {
			t.Errorf("groupCount(%v, %v) error = %v", tt.global, tt.local, err)
			continue
		}
		if !tt.err && got != tt.want {
			t.Errorf("groupCount(%v, %v) = %v, want %v", tt.global, tt.local, got, tt.want)
		}
	}
}

func TestBufferUsage(t *testing.T) {
	plain := bufferUsage(interop.MemReadWrite)
	if plain&gpu.BufferUsageStorage == 0 || plain&gpu.BufferUsageCopySrc == 0 || plain&gpu.BufferUsageCopyDst == 0 {
		t.Errorf("plain usage %v lacks storage or copy", plain)
	}
	if plain&gpu.BufferUsageVertex != 0 {
		t.Error("plain allocation has vertex usage")
	}
	if bufferUsage(interop.MemShared)&gpu.BufferUsageVertex == 0 {
		t.Error("shared allocation lacks vertex usage")
	}
}

func TestDeviceInfo(t *testing.T) {
	info := deviceInfo(gputypes.AdapterInfo{
		Name:       "Test GPU",
		Vendor:     "gogpu",
		DeviceType: gputypes.DeviceTypeDiscreteGPU,
		Backend:    gputypes.BackendVulkan,
	})
	if info.Name != "Test GPU" || info.Platform != "WebGPU/"+gputypes.BackendVulkan.String() {
		t.Errorf("deviceInfo() = %+v", info)
	}
	if !interop.ClassGPU.Matches(info.Type) || interop.ClassCPU.Matches(info.Type) {
		t.Errorf("type %s classified wrongly", info.Type)
	}
}

func TestAdapterType(t *testing.T) {
	tests := []struct {
		in   gpucontext.AdapterType
		want interop.DeviceClass
	}{
		{gpucontext.AdapterTypeDiscrete, interop.ClassGPU},
		{gpucontext.AdapterTypeIntegrated, interop.ClassGPU},
		{gpucontext.AdapterTypeSoftware, interop.ClassCPU},
	}
	for _, tt := range tests {
		if !tt.want.Matches(adapterType(tt.in)) {
			t.Errorf("adapterType(%s) = %s, not %s", tt.in, adapterType(tt.in), tt.want)
		}
	}
	if got := adapterType(gpucontext.AdapterTypeUnknown); got != gputypes.DeviceTypeOther {
		t.Errorf("adapterType(unknown) = %s", got)
	}
}

type plainSurface struct{}

func (plainSurface) Size() (int, int)        { return 1, 1 }
func (plainSurface) SwapBuffers() error      { return nil }
func (plainSurface) OnResize(func(int, int)) {}
func (plainSurface) OnRedraw(func())         {}
func (plainSurface) Close() error            { return nil }

type providerSurface struct {
	plainSurface
	p gpucontext.DeviceProvider
}

func (s providerSurface) DeviceProvider() gpucontext.DeviceProvider { return s.p }

type fakeProvider struct{ dev any }

func (p fakeProvider) Device() gpucontext.Device             { return p.dev }
func (p fakeProvider) Queue() gpucontext.Queue               { return nil }
func (p fakeProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatUndefined }
func (p fakeProvider) Adapter() gpucontext.Adapter           { return nil }
func (p fakeProvider) AdapterInfo() gpucontext.AdapterInfo   { return gpucontext.AdapterInfo{} }

func TestSupportsInterop(t *testing.T) {
	d := &device{gpu: new(gpu.Device)}
	if d.SupportsInterop(plainSurface{}) {
		t.Error("plain surface reported as interop-capable")
	}
	if d.SupportsInterop(providerSurface{p: fakeProvider{dev: new(gpu.Device)}}) {
		t.Error("surface on another device reported as interop-capable")
	}
	if !d.SupportsInterop(providerSurface{p: fakeProvider{dev: d.gpu}}) {
		t.Error("surface on the same device not interop-capable")
	}
}

func TestInteropDevicesWithoutProvider(t *testing.T) {
	p := &platform{b: New()}
	devs, err := p.InteropDevices(plainSurface{}, 0, interop.ClassAny)
	if err != nil || len(devs) != 0 {
		t.Errorf("InteropDevices(plain) = %v, %v", devs, err)
	}
	if _, err := fromProvider(fakeProvider{dev: "not a device"}); err == nil {
		t.Error("fromProvider accepted a foreign device")
	}
}

func TestBackendOptions(t *testing.T) {
	b := New(WithPowerPreference(gputypes.PowerPreferenceLowPower), WithFallbackAdapter())
	if b.power != gputypes.PowerPreferenceLowPower || !b.fallback {
		t.Errorf("options not applied: %+v", b)
	}
	if b.Name() != interop.BackendWGPU {
		t.Errorf("Name() = %q", b.Name())
	}
	ps, err := b.Platforms()
	if err != nil || len(ps) != 1 || ps[0].Name() != PlatformName || ps[0].Displays() != 1 {
		t.Errorf("Platforms() = %v, %v", ps, err)
	}
}
