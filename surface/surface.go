// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"fmt"
	"image"
	"slices"
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/interop"
)

// Option configures a Headless surface.
type Option func(*Headless)

// WithTarget uploads every presented frame to t. The texture must have the
// surface size; after a resize the caller replaces it with SetTarget.
func WithTarget(t gpucontext.TextureUpdater) Option {
	return func(s *Headless) { s.target = t }
}

// WithoutHostAccess hides the host buffers from compute devices, which
// forces copy-mode interop on host devices.
func WithoutHostAccess() Option {
	return func(s *Headless) { s.noHost = true }
}

// Headless is an offscreen double-buffered RGBA surface.
//
// Headless is safe for concurrent use, but callbacks run on the goroutine
// that triggers them (Redraw, Resize, PressKey) and must not call back into
// the registration methods.
type Headless struct {
	// Pointer and IME events never occur offscreen.
	gpucontext.NullEventSource

	mu     sync.Mutex
	front  *image.RGBA
	back   *image.RGBA
	target gpucontext.TextureUpdater
	noHost bool
	frames uint64
	closed bool

	redraw     func()
	resize     []func(int, int)
	keyPress   []func(gpucontext.Key, gpucontext.Modifiers)
	keyRelease []func(gpucontext.Key, gpucontext.Modifiers)
	textInput  []func(string)
	focus      []func(bool)
}

var (
	_ interop.Surface        = (*Headless)(nil)
	_ interop.HostSurface    = (*Headless)(nil)
	_ gpucontext.EventSource = (*Headless)(nil)
)

// NewHeadless creates a headless surface. Non-positive dimensions are
// clamped to 1.
func NewHeadless(width, height int, opts ...Option) *Headless {
	width, height = max(width, 1), max(height, 1)
	s := &Headless{
		front: image.NewRGBA(image.Rect(0, 0, width, height)),
		back:  image.NewRGBA(image.Rect(0, 0, width, height)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Size returns the drawable size in pixels.
func (s *Headless) Size() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.back.Bounds()
	return b.Dx(), b.Dy()
}

// HostAccessible reports whether compute devices working in host memory
// may share buffers with this surface.
func (s *Headless) HostAccessible() bool { return !s.noHost }

// SetTarget replaces the upload target. A nil target stops uploads.
func (s *Headless) SetTarget(t gpucontext.TextureUpdater) {
	s.mu.Lock()
	s.target = t
	s.mu.Unlock()
}

// SwapBuffers presents the back buffer. The new back buffer starts with
// the contents of the frame just presented.
func (s *Headless) SwapBuffers() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return interop.ErrClosed
	}
	s.front, s.back = s.back, s.front
	copy(s.back.Pix, s.front.Pix)
	s.frames++
	if s.target != nil {
		if err := s.target.UpdateData(s.front.Pix); err != nil {
			return fmt.Errorf("surface: upload frame %d: %w", s.frames, err)
		}
	}
	return nil
}

// Frames returns the number of presented frames.
func (s *Headless) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Snapshot returns a copy of the presented frame.
func (s *Headless) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	img := image.NewRGBA(s.front.Bounds())
	copy(img.Pix, s.front.Pix)
	return img
}

// Resize reallocates both buffers and notifies the resize handlers. The
// contents are cleared.
func (s *Headless) Resize(width, height int) {
	width, height = max(width, 1), max(height, 1)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.front = image.NewRGBA(image.Rect(0, 0, width, height))
	s.back = image.NewRGBA(image.Rect(0, 0, width, height))
	handlers := slices.Clone(s.resize)
	s.mu.Unlock()

	for _, fn := range handlers {
		fn(width, height)
	}
}

// Close releases the buffers. Close is idempotent.
func (s *Headless) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.redraw = nil
	s.target = nil
	return nil
}
