package interop

// Surface is the window-system collaborator the core draws into.
// A rasterizer-capable surface must exist before a context is bound.
type Surface interface {
	// Size returns the drawable size in pixels.
	Size() (width, height int)

	// SwapBuffers presents the back buffer.
	SwapBuffers() error

	// OnResize registers the resize callback.
	OnResize(func(width, height int))

	// OnRedraw registers the redraw callback.
	OnRedraw(func())

	Close() error
}

// SurfaceFactory creates a surface of the given size.
type SurfaceFactory func(width, height int) (Surface, error)

// HostSurface is implemented by surfaces whose rasterizer reads host
// memory. Devices that compute in host memory can share buffers with it.
type HostSurface interface {
	Surface
	HostAccessible() bool
}
