package wgpu

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	gpu "github.com/gogpu/wgpu"

	"github.com/gogpu/interop"
)

// PlatformName is the name of the WebGPU platform.
const PlatformName = "WebGPU"

// Option configures a Backend.
type Option func(*Backend)

// WithPowerPreference selects the adapter by power preference.
func WithPowerPreference(p gputypes.PowerPreference) Option {
	return func(b *Backend) { b.power = p }
}

// WithFallbackAdapter forces the software fallback adapter.
func WithFallbackAdapter() Option {
	return func(b *Backend) { b.fallback = true }
}

// WithProvider makes the backend hand out the device of an existing
// context, such as a gogpu application, instead of creating its own.
func WithProvider(p gpucontext.DeviceProvider) Option {
	return func(b *Backend) { b.provider = p }
}

// Backend runs kernels on a WebGPU device. It offers one platform whose
// devices are the adapters the instance selects.
type Backend struct {
	power    gputypes.PowerPreference
	fallback bool
	provider gpucontext.DeviceProvider
}

// New returns a WebGPU backend.
func New(opts ...Option) *Backend {
	b := &Backend{power: gputypes.PowerPreferenceHighPerformance}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return interop.BackendWGPU }

// Platforms returns the WebGPU platform.
func (b *Backend) Platforms() ([]interop.Platform, error) {
	return []interop.Platform{&platform{b: b}}, nil
}

type platform struct {
	b *Backend
}

func (p *platform) Name() string  { return PlatformName }
func (p *platform) Displays() int { return 1 }

func (p *platform) Devices(class interop.DeviceClass) ([]interop.Device, error) {
	d, err := p.open()
	if err != nil {
		return nil, err
	}
	if !class.Matches(d.info.Type) {
		d.Release()
		return nil, nil
	}
	return []interop.Device{d}, nil
}

// InteropDevices returns the device the surface draws with, if any.
func (p *platform) InteropDevices(s interop.Surface, display int, class interop.DeviceClass) ([]interop.Device, error) {
	if display != 0 {
		return nil, nil
	}
	ds, ok := s.(DeviceSurface)
	if !ok || ds.DeviceProvider() == nil {
		return nil, nil
	}
	d, err := fromProvider(ds.DeviceProvider())
	if err != nil {
		return nil, err
	}
	if !class.Matches(d.info.Type) || !d.SupportsInterop(s) {
		d.Release()
		return nil, nil
	}
	return []interop.Device{d}, nil
}

func (p *platform) open() (*device, error) {
	if p.b.provider != nil {
		return fromProvider(p.b.provider)
	}

	instance, err := gpu.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}
	adapter, err := instance.RequestAdapter(&gpu.RequestAdapterOptions{
		PowerPreference:      p.b.power,
		ForceFallbackAdapter: p.b.fallback,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("wgpu: request adapter: %w", err)
	}
	dev, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("wgpu: request device: %w", err)
	}

	return &device{
		gpu:      dev,
		info:     deviceInfo(adapter.Info()),
		limits:   interop.LimitsFromGPU(dev.Limits()),
		instance: instance,
		adapter:  adapter,
		owned:    true,
	}, nil
}

// fromProvider wraps the device of an external context. The device stays
// owned by the provider.
func fromProvider(p gpucontext.DeviceProvider) (*device, error) {
	dev, ok := p.Device().(*gpu.Device)
	if !ok || dev == nil {
		return nil, fmt.Errorf("wgpu: provider device is %T, want *wgpu.Device", p.Device())
	}
	info := interop.DeviceInfo{
		Name:     p.AdapterInfo().Name,
		Platform: PlatformName,
		Type:     adapterType(p.AdapterInfo().Type),
	}
	if a, ok := p.Adapter().(*gpu.Adapter); ok && a != nil {
		info = deviceInfo(a.Info())
	}
	return &device{
		gpu:      dev,
		info:     info,
		limits:   interop.LimitsFromGPU(dev.Limits()),
		provider: p,
	}, nil
}

func deviceInfo(a gputypes.AdapterInfo) interop.DeviceInfo {
	return interop.DeviceInfo{
		Name:     a.Name,
		Vendor:   a.Vendor,
		Platform: PlatformName + "/" + a.Backend.String(),
		Type:     a.DeviceType,
	}
}

func adapterType(t gpucontext.AdapterType) gputypes.DeviceType {
	switch t {
	case gpucontext.AdapterTypeDiscrete:
		return gputypes.DeviceTypeDiscreteGPU
	case gpucontext.AdapterTypeIntegrated:
		return gputypes.DeviceTypeIntegratedGPU
	case gpucontext.AdapterTypeSoftware:
		return gputypes.DeviceTypeCPU
	default:
		return gputypes.DeviceTypeOther
	}
}
