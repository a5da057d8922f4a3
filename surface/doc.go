// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package surface provides the window/event collaborator the frame
// controller draws into.
//
// Headless is an offscreen double-buffered RGBA surface. Drawing goes to
// the back buffer and SwapBuffers presents it. It implements
// interop.Surface, interop.HostSurface and gpucontext.EventSource, so the
// same harness code that would run inside a window runs in tests and in
// batch benchmark jobs:
//
//	s := surface.NewHeadless(800, 600)
//	defer s.Close()
//
//	s.OnRedraw(func() {
//	    s.Clear(color.Black)
//	    s.DrawPoints(positions, 4, surface.View{Extent: 50}, color.White)
//	    _ = s.SwapBuffers()
//	})
//	s.Redraw()
//
// A presented frame can be uploaded to a gpucontext.TextureUpdater, such
// as a gogpu texture, with WithTarget.
//
// # Kinds
//
// The harness opens its surface by kind name, so a configuration file can
// pick one:
//
//	s, err := surface.Open("offscreen", 800, 600)
//
// "headless" (the default) lets host compute devices share its buffers;
// "offscreen" hides them, which forces copy-mode interop. Register adds
// further kinds.
package surface
