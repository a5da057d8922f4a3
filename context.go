package interop

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ComputeContext owns a bound device, its command queue, the interop
// strategy selected at binding time, and every device object created
// through it. Close releases all of them.
//
// A ComputeContext is driven from a single host goroutine.
type ComputeContext struct {
	device   Device
	queue    Queue
	strategy InteropStrategy
	class    DeviceClass
	surface  Surface
	aux      Surface
	timeout  time.Duration

	res    scope
	closed bool
}

// Device returns the bound device.
func (c *ComputeContext) Device() Device { return c.device }

// Queue returns the command queue.
func (c *ComputeContext) Queue() Queue { return c.queue }

// Strategy returns the interop strategy.
func (c *ComputeContext) Strategy() InteropStrategy { return c.strategy }

// Mode returns the interop mode in effect.
func (c *ComputeContext) Mode() InteropMode { return c.strategy.Mode() }

// Class returns the device class that was requested.
func (c *ComputeContext) Class() DeviceClass { return c.class }

// Surface returns the surface the context is bound to. It is the auxiliary
// surface when none was supplied.
func (c *ComputeContext) Surface() Surface {
	if c.surface != nil {
		return c.surface
	}
	return c.aux
}

// Limits returns the device limits.
func (c *ComputeContext) Limits() Limits { return c.device.Limits() }

// Live returns the number of tracked device objects still alive.
func (c *ComputeContext) Live() int { return c.res.live() }

// Closed reports whether Close has been called.
func (c *ComputeContext) Closed() bool { return c.closed }

func (c *ComputeContext) track(name string, release func()) *scoped {
	return c.res.add(name, release)
}

// wait blocks until ev completes, bounded by the context timeout.
func (c *ComputeContext) wait(ctx context.Context, call string, ev Event) error {
	if ev == nil {
		return nil
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := ev.Wait(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("interop: %s: %w", call, ErrTimeout)
		}
		return deviceErr(call, CodeUnknown, err)
	}
	return nil
}

// Finish blocks until all queued commands have completed.
func (c *ComputeContext) Finish() error {
	if c.closed {
		return ErrClosed
	}
	return deviceErr("Finish", CodeUnknown, c.queue.Finish())
}

// Close drains the queue and releases every tracked object, the queue, the
// device and the auxiliary surface. Close is idempotent.
func (c *ComputeContext) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if c.queue != nil {
		if err := c.queue.Finish(); err != nil {
			errs = append(errs, deviceErr("Finish", CodeUnknown, err))
		}
	}
	c.res.releaseAll()
	if c.queue != nil {
		c.queue.Release()
	}
	if c.device != nil {
		c.device.Release()
	}
	if c.aux != nil {
		if err := c.aux.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
