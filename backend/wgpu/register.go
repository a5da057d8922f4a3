//go:build !nogpu

package wgpu

import (
	"github.com/gogpu/interop"

	// Vulkan, Metal, DX12, GLES and the software HAL.
	_ "github.com/gogpu/wgpu/hal/allbackends"
)

func init() {
	interop.RegisterBackend(interop.BackendWGPU, func() interop.Backend {
		return New()
	})
}
