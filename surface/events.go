// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"slices"

	"github.com/gogpu/gpucontext"
)

// OnRedraw registers the redraw callback, replacing the previous one.
func (s *Headless) OnRedraw(fn func()) {
	s.mu.Lock()
	s.redraw = fn
	s.mu.Unlock()
}

// OnResize registers a resize callback.
func (s *Headless) OnResize(fn func(width, height int)) {
	s.mu.Lock()
	s.resize = append(s.resize, fn)
	s.mu.Unlock()
}

// OnKeyPress registers a key press callback.
func (s *Headless) OnKeyPress(fn func(key gpucontext.Key, mods gpucontext.Modifiers)) {
	s.mu.Lock()
	s.keyPress = append(s.keyPress, fn)
	s.mu.Unlock()
}

// OnKeyRelease registers a key release callback.
func (s *Headless) OnKeyRelease(fn func(key gpucontext.Key, mods gpucontext.Modifiers)) {
	s.mu.Lock()
	s.keyRelease = append(s.keyRelease, fn)
	s.mu.Unlock()
}

// OnTextInput registers a text input callback.
func (s *Headless) OnTextInput(fn func(text string)) {
	s.mu.Lock()
	s.textInput = append(s.textInput, fn)
	s.mu.Unlock()
}

// OnFocus registers a focus callback.
func (s *Headless) OnFocus(fn func(focused bool)) {
	s.mu.Lock()
	s.focus = append(s.focus, fn)
	s.mu.Unlock()
}

// Redraw runs the redraw callback once. It reports whether one was
// registered and the surface is open.
func (s *Headless) Redraw() bool {
	s.mu.Lock()
	fn := s.redraw
	closed := s.closed
	s.mu.Unlock()
	if fn == nil || closed {
		return false
	}
	fn()
	return true
}

// PressKey delivers a key press followed by its release. Printable keys
// also produce text input.
func (s *Headless) PressKey(key gpucontext.Key, mods gpucontext.Modifiers) {
	s.mu.Lock()
	press := slices.Clone(s.keyPress)
	release := slices.Clone(s.keyRelease)
	text := slices.Clone(s.textInput)
	s.mu.Unlock()

	for _, fn := range press {
		fn(key, mods)
	}
	if r, ok := keyRune(key, mods); ok {
		for _, fn := range text {
			fn(string(r))
		}
	}
	for _, fn := range release {
		fn(key, mods)
	}
}

// SetFocus delivers a focus change.
func (s *Headless) SetFocus(focused bool) {
	s.mu.Lock()
	handlers := slices.Clone(s.focus)
	s.mu.Unlock()
	for _, fn := range handlers {
		fn(focused)
	}
}

// keyRune maps the printable keys of a US layout.
func keyRune(key gpucontext.Key, mods gpucontext.Modifiers) (rune, bool) {
	shift := mods&gpucontext.ModShift != 0
	switch {
	case key >= gpucontext.KeyA && key <= gpucontext.KeyZ:
		r := 'a' + rune(key-gpucontext.KeyA)
		if shift {
			r -= 'a' - 'A'
		}
		return r, true
	case key >= gpucontext.Key0 && key <= gpucontext.Key9:
		return '0' + rune(key-gpucontext.Key0), true
	}
	switch key {
	case gpucontext.KeySpace:
		return ' ', true
	case gpucontext.KeyMinus, gpucontext.KeyNumpadSubtract:
		return '-', true
	case gpucontext.KeyEqual:
		if shift {
			return '+', true
		}
		return '=', true
	case gpucontext.KeyNumpadAdd:
		return '+', true
	}
	return 0, false
}
