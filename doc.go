// Package interop drives compute kernels whose results feed a rasterizer,
// one frame at a time.
//
// # Overview
//
// A compute device writes buffers that the draw side then reads, for
// example particle positions rendered as points or a filtered image shown
// as a texture. The package owns the protocol that moves each buffer
// between the two sides without races, stalls or leaks.
//
// # Quick Start
//
//	import (
//		"github.com/gogpu/interop"
//		"github.com/gogpu/interop/kernels"
//		_ "github.com/gogpu/interop/backend/software"
//	)
//
//	bind := func() (*interop.ComputeContext, error) {
//		return interop.Bind(interop.DefaultBackend(), interop.BindOptions{
//			Class:   interop.ClassCPU,
//			Surface: surf,
//		})
//	}
//	fc := interop.NewFrameController(surf, bind, kernels.Default(), scene)
//	fc.SetAnimated(true)
//	if err := fc.Redraw(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// # Binding
//
// Bind selects a device from a Backend. With interop requested it searches
// every display of every platform for a device that can alias memory with
// the current surface; otherwise, or when none is found in ModeAuto, it
// binds any device of the requested class in copy mode. The chosen
// InteropStrategy is fixed for the life of the ComputeContext.
//
// # Ownership
//
// A SharedBuffer is owned by the draw side or the compute side, never both.
// ResourcePool.Acquire and ResourcePool.Release move ownership and fail with
// ErrOwnership when the protocol is broken. In shared mode they are queue
// barriers that are flushed and waited on. In copy mode acquire is free and
// release reads back every buffer written since the acquire.
//
// # Frames
//
// FrameController runs acquire, dispatch, release, draw and present once
// per redraw. A frame recomputes only while animated or after MarkDirty.
// Double buffers swap after each successful step, so the draw side always
// sees the buffer written last. Growing the surface area past the restart
// threshold tears everything down and binds again.
//
// # Backends
//
// Backends register themselves on import:
//   - backend/wgpu: GPUs through gogpu/wgpu (build tag nogpu removes it)
//   - backend/software: a CPU device that runs work-groups on a worker pool
//
// # Logging
//
// The package is silent by default. SetLogger installs a *slog.Logger that
// all sub-packages share.
package interop

// Version is the current version of the module.
const Version = "0.1.0"
