// Package wgpu is a compute backend on github.com/gogpu/wgpu.
//
// Importing the package registers the backend under interop.BackendWGPU,
// together with every HAL backend wgpu ships (build with -tags nogpu to
// leave both out):
//
//	import _ "github.com/gogpu/interop/backend/wgpu"
//
// Each device owns its instance, adapter and device unless the backend was
// created WithProvider, in which case the device of an existing gpucontext
// provider is used and left to its owner.
//
// Kernels are WGSL. A program is preprocessed and reflected by package
// kernels, then compiled into a shader module; every entry point gets a
// bind group layout built from its reflected bindings. Kernel argument i
// is @binding(i). Scalars are uploaded into 16-byte uniform buffers per
// dispatch. Local-memory arguments bind nothing: workgroup arrays are sized
// by build defines.
//
// Reads go through a staging buffer that is mapped when the returned event
// is waited on.
//
// # Interop
//
// A surface that draws with the same WebGPU device (DeviceSurface) can bind
// compute buffers directly. For such surfaces the device reports interop
// support and shared allocations gain vertex usage; DeviceBuffer returns
// the buffer to bind. Any other surface gets copy mode.
package wgpu
