// Package software is a compute backend that runs kernels on the CPU.
//
// The backend registers itself under interop.BackendSoftware when the
// package is imported:
//
//	import _ "github.com/gogpu/interop/backend/software"
//
// It exposes one platform with one device of type CPU. Programs are
// checked and reflected from their WGSL source with naga, then executed by
// Go ports of each entry point. Work-groups are spread over a worker pool;
// commands run in submission order on a per-queue goroutine.
//
// Allocations live in host memory, so a surface that rasterizes from host
// memory (interop.HostSurface) can alias them directly and the device
// reports interop support for it.
package software
