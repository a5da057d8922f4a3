package interop

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrDeviceNotFound is returned when no device matches the requested class.
	ErrDeviceNotFound = errors.New("interop: no matching compute device")

	// ErrInteropUnsupported is returned when shared-context interop was
	// requested but no device can alias memory with the current surface.
	ErrInteropUnsupported = errors.New("interop: shared-context interop unsupported")

	// ErrCompile matches every *CompileError.
	ErrCompile = errors.New("interop: kernel build failed")

	// ErrUnsupportedWorkSize is returned when no block on the ladder fits the
	// device and kernel work-group limits.
	ErrUnsupportedWorkSize = errors.New("interop: unsupported work-group size")

	// ErrInsufficientLocalMemory is returned when a kernel needs more local
	// memory than the device has left after the kernel's own usage.
	ErrInsufficientLocalMemory = errors.New("interop: insufficient local memory")

	// ErrBufferMapFailure is returned when a read-back or upload fails.
	ErrBufferMapFailure = errors.New("interop: buffer map failure")

	// ErrOwnership is returned when a buffer is acquired twice, released twice,
	// or read by the draw side while the compute side owns it.
	ErrOwnership = errors.New("interop: buffer ownership violation")

	// ErrTimeout is returned when a device wait exceeds the configured timeout.
	ErrTimeout = errors.New("interop: device wait timed out")

	// ErrClosed is returned when using a released context, pool or kernel.
	ErrClosed = errors.New("interop: use of closed object")
)

// CompileError carries the build log of a failed kernel program.
// It is fatal to the configuration that requested the build, not to the
// process; callers may retry with different build flags.
type CompileError struct {
	Source string // kernel source file name
	Entry  string // entry point, empty when the whole program failed
	Log    string // compiler output
}

func (e *CompileError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("interop: build %s (entry %s) failed:\n%s", e.Source, e.Entry, e.Log)
	}
	return fmt.Sprintf("interop: build %s failed:\n%s", e.Source, e.Log)
}

// Is reports whether target is ErrCompile.
func (e *CompileError) Is(target error) bool { return target == ErrCompile }

// FileLoadError reports a kernel source file that could not be read.
type FileLoadError struct {
	Name string
	Err  error
}

func (e *FileLoadError) Error() string {
	return fmt.Sprintf("interop: failed to load kernel file %s: %v", e.Name, e.Err)
}

func (e *FileLoadError) Unwrap() error { return e.Err }

// Device error codes reported by backends.
const (
	CodeDeviceNotFound    = -1
	CodeOutOfResources    = -5
	CodeMapFailure        = -12
	CodeBuildFailure      = -11
	CodeInvalidValue      = -30
	CodeInvalidKernelArgs = -52
	CodeInvalidWorkGroup  = -54
	CodeInvalidOperation  = -59
	CodeDeviceLost        = -9999
	CodeUnknown           = -1000
)

// DeviceError names the device call that failed and its numeric code.
type DeviceError struct {
	Call string
	Code int
	Err  error
}

func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("interop: %s failed (error %d): %v", e.Call, e.Code, e.Err)
	}
	return fmt.Sprintf("interop: %s failed (error %d)", e.Call, e.Code)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// FrameError is returned by the frame controller when a frame fails.
type FrameError struct {
	Phase Phase
	Frame uint64
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("interop: frame %d failed in %s: %v", e.Frame, e.Phase, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// deviceErr wraps err as a DeviceError unless it already is one.
func deviceErr(call string, code int, err error) error {
	if err == nil {
		return nil
	}
	var de *DeviceError
	if errors.As(err, &de) {
		return err
	}
	return &DeviceError{Call: call, Code: code, Err: err}
}
