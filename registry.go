package interop

import (
	"github.com/gogpu/gpucontext"
)

// Backend names.
const (
	BackendWGPU     = "wgpu"
	BackendSoftware = "software"
)

// Platform groups the devices of one compute implementation.
type Platform interface {
	Name() string

	// Devices returns every device of the class. Devices the caller does not
	// keep must be released.
	Devices(class DeviceClass) ([]Device, error)

	// Displays returns the number of displays to search for interop.
	Displays() int

	// InteropDevices returns devices of the class that can share memory with
	// the rasterizer behind s on the given display.
	InteropDevices(s Surface, display int, class DeviceClass) ([]Device, error)
}

// Backend enumerates platforms. It is the device enumerator the binding
// consumes.
type Backend interface {
	Name() string
	Platforms() ([]Platform, error)
}

// backends holds registered backend factories. First available wins:
// wgpu drives real GPUs, software is the fallback.
var backends = gpucontext.NewRegistry[Backend](
	gpucontext.WithPriority(BackendWGPU, BackendSoftware),
)

// RegisterBackend registers a backend factory under name.
// This is typically called from init() functions in backend packages.
// A backend with the same name is replaced.
func RegisterBackend(name string, factory func() Backend) {
	backends.Register(name, factory)
}

// UnregisterBackend removes a backend. Useful for testing.
func UnregisterBackend(name string) {
	backends.Unregister(name)
}

// AvailableBackends returns the registered backend names.
func AvailableBackends() []string {
	return backends.Available()
}

// GetBackend returns a backend instance by name, or nil if none is registered.
func GetBackend(name string) Backend {
	return backends.Get(name)
}

// DefaultBackend returns the highest-priority registered backend, or nil.
func DefaultBackend() Backend {
	return backends.Best()
}
