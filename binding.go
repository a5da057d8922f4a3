package interop

import (
	"fmt"
	"strings"
	"time"
)

// InteropMode selects how compute results reach the rasterizer.
type InteropMode uint8

const (
	// ModeAuto tries shared-context interop and falls back to copying.
	ModeAuto InteropMode = iota
	// ModeShared requires shared-context interop.
	ModeShared
	// ModeCopy always copies through host memory.
	ModeCopy
)

// String returns the label used in stats output.
func (m InteropMode) String() string {
	switch m {
	case ModeShared:
		return "attached"
	case ModeCopy:
		return "copying"
	default:
		return "auto"
	}
}

// ParseInteropMode parses "auto", "shared" or "copy".
func ParseInteropMode(s string) (InteropMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "shared", "attached", "interop":
		return ModeShared, nil
	case "copy", "copying":
		return ModeCopy, nil
	}
	return ModeAuto, fmt.Errorf("interop: unknown interop mode %q", s)
}

// BindOptions configures Bind.
type BindOptions struct {
	// Class is the requested device class.
	Class DeviceClass

	// DeviceIndex picks among matching devices; negative means the first.
	DeviceIndex int

	// Mode is the requested interop mode.
	Mode InteropMode

	// Surface is the active rasterizer surface.
	Surface Surface

	// CreateSurface makes an auxiliary surface when Surface is nil, so a
	// compatible rasterizer context exists before any window is shown.
	CreateSurface SurfaceFactory

	// WaitTimeout bounds every device wait. Zero waits indefinitely.
	WaitTimeout time.Duration
}

// Bind selects a device from the backend and returns a ready compute
// context.
//
// With interop requested, every display of every platform is tried in turn
// until one yields a device that can alias memory with the current surface.
// The device is taken from the display that succeeded. When no display
// yields one, ModeShared fails with ErrInteropUnsupported and ModeAuto falls
// back to copy mode on any device of the requested class.
func Bind(b Backend, opts BindOptions) (*ComputeContext, error) {
	if b == nil {
		return nil, fmt.Errorf("interop: bind %s device: no backend: %w", opts.Class, ErrDeviceNotFound)
	}
	platforms, err := b.Platforms()
	if err != nil {
		return nil, deviceErr("GetPlatformIDs", CodeDeviceNotFound, err)
	}
	if len(platforms) == 0 {
		return nil, fmt.Errorf("interop: bind %s device on %s: no platforms: %w", opts.Class, b.Name(), ErrDeviceNotFound)
	}

	c := &ComputeContext{
		class:   opts.Class,
		surface: opts.Surface,
		timeout: opts.WaitTimeout,
	}
	if c.surface == nil && opts.CreateSurface != nil {
		aux, err := opts.CreateSurface(1, 1)
		if err != nil {
			return nil, fmt.Errorf("interop: create auxiliary surface: %w", err)
		}
		c.aux = aux
	}

	fail := func(err error) (*ComputeContext, error) {
		if c.aux != nil {
			_ = c.aux.Close()
		}
		return nil, err
	}

	var dev Device
	fallback := "none"
	if opts.Mode != ModeCopy && c.Surface() != nil {
		dev, err = findInteropDevice(platforms, c.Surface(), opts)
		if err != nil {
			return fail(err)
		}
		if dev == nil {
			if opts.Mode == ModeShared {
				return fail(fmt.Errorf("interop: bind %s device with shared context: %w", opts.Class, ErrInteropUnsupported))
			}
			fallback = "copy"
			slogger().Warn("interop: no interop-capable device, falling back to copy mode",
				"class", opts.Class.String())
		}
	} else if opts.Mode == ModeShared {
		return fail(fmt.Errorf("interop: bind %s device with shared context: no surface: %w", opts.Class, ErrInteropUnsupported))
	}

	if dev != nil {
		c.strategy = SharedContextStrategy{}
	} else {
		dev, err = pickDevice(platforms, opts)
		if err != nil {
			return fail(fmt.Errorf("interop: bind %s device (fallback %s): %w", opts.Class, fallback, err))
		}
		c.strategy = CopyStrategy{}
	}
	c.device = dev

	q, err := dev.NewQueue()
	if err != nil {
		dev.Release()
		return fail(deviceErr("CreateCommandQueue", CodeOutOfResources, err))
	}
	c.queue = q

	info := dev.Info()
	slogger().Info("interop: device bound",
		"name", info.Name,
		"platform", info.Platform,
		"type", info.Type.String(),
		"mode", c.strategy.Mode().String())
	return c, nil
}

// findInteropDevice walks displays until one yields an interop-capable device.
// It returns nil, nil when every display was exhausted.
func findInteropDevice(platforms []Platform, s Surface, opts BindOptions) (Device, error) {
	for _, p := range platforms {
		for display := 0; display < p.Displays(); display++ {
			devs, err := p.InteropDevices(s, display, opts.Class)
			if err != nil {
				slogger().Debug("interop: display rejected", "platform", p.Name(), "display", display, "err", err)
				continue
			}
			if len(devs) == 0 {
				continue
			}
			idx := 0
			if opts.DeviceIndex >= 0 {
				if opts.DeviceIndex >= len(devs) {
					releaseDevices(devs, -1)
					continue
				}
				idx = opts.DeviceIndex
			}
			releaseDevices(devs, idx)
			slogger().Debug("interop: interop device found", "platform", p.Name(), "display", display)
			return devs[idx], nil
		}
	}
	return nil, nil
}

// pickDevice returns the DeviceIndex-th device of the class across all
// platforms.
func pickDevice(platforms []Platform, opts BindOptions) (Device, error) {
	var all []Device
	for _, p := range platforms {
		devs, err := p.Devices(opts.Class)
		if err != nil {
			slogger().Debug("interop: enumerate failed", "platform", p.Name(), "err", err)
			continue
		}
		all = append(all, devs...)
	}
	if len(all) == 0 {
		return nil, ErrDeviceNotFound
	}
	idx := 0
	if opts.DeviceIndex >= 0 {
		if opts.DeviceIndex >= len(all) {
			releaseDevices(all, -1)
			return nil, fmt.Errorf("device index %d of %d: %w", opts.DeviceIndex, len(all), ErrDeviceNotFound)
		}
		idx = opts.DeviceIndex
	}
	releaseDevices(all, idx)
	return all[idx], nil
}

// releaseDevices releases every device except keep.
func releaseDevices(devs []Device, keep int) {
	for i, d := range devs {
		if i != keep {
			d.Release()
		}
	}
}
