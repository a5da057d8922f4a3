// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// View maps simulation coordinates to pixels. The square of half-side
// Extent around Center fills the shorter side of the surface, with y
// pointing up.
type View struct {
	CenterX, CenterY float32
	Extent           float32

	// PointSize is the side of a plotted point in pixels. Zero means 1.
	PointSize int
}

func (v View) project(x, y float32, w, h int) (int, int) {
	ext := v.Extent
	if ext <= 0 {
		ext = 1
	}
	half := float32(min(w, h)) / 2
	px := float32(w)/2 + (x-v.CenterX)/ext*half
	py := float32(h)/2 - (y-v.CenterY)/ext*half
	return int(math.Floor(float64(px))), int(math.Floor(float64(py)))
}

// Back returns the back buffer. It is valid until the next Resize and
// must only be touched from the drawing goroutine.
func (s *Headless) Back() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.back
}

// Clear fills the back buffer with c.
func (s *Headless) Clear(c color.Color) {
	back := s.Back()
	draw.Draw(back, back.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// DrawPoints plots vertices read from a little-endian float32 vertex
// buffer. stride is the number of floats per vertex; the first two are x
// and y. Points outside the surface are skipped.
func (s *Headless) DrawPoints(vertices []byte, stride int, v View, c color.Color) error {
	if stride < 2 {
		return fmt.Errorf("surface: vertex stride %d, need at least 2", stride)
	}
	if len(vertices)%(stride*4) != 0 {
		return fmt.Errorf("surface: %d vertex bytes not a multiple of stride %d", len(vertices), stride)
	}
	back := s.Back()
	b := back.Bounds()
	col := color.RGBAModel.Convert(c).(color.RGBA)
	size := max(v.PointSize, 1)

	for off := 0; off < len(vertices); off += stride * 4 {
		x := math.Float32frombits(binary.LittleEndian.Uint32(vertices[off:]))
		y := math.Float32frombits(binary.LittleEndian.Uint32(vertices[off+4:]))
		px, py := v.project(x, y, b.Dx(), b.Dy())
		r := image.Rect(px-size/2, py-size/2, px-size/2+size, py-size/2+size).Intersect(b)
		for yy := r.Min.Y; yy < r.Max.Y; yy++ {
			for xx := r.Min.X; xx < r.Max.X; xx++ {
				back.SetRGBA(xx, yy, col)
			}
		}
	}
	return nil
}

// DrawTexture scales an RGBA texture of the given size over the whole back
// buffer.
func (s *Headless) DrawTexture(pix []byte, width, height int) error {
	if width <= 0 || height <= 0 || len(pix) < width*height*4 {
		return fmt.Errorf("surface: texture %dx%d with %d bytes", width, height, len(pix))
	}
	src := &image.RGBA{Pix: pix, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}
	back := s.Back()
	if back.Bounds() == src.Rect {
		copy(back.Pix, src.Pix)
		return nil
	}
	draw.ApproxBiLinear.Scale(back, back.Bounds(), src, src.Rect, draw.Src, nil)
	return nil
}

// DrawGrid shows a row-major matrix of values as a grey-scale image
// normalised to its range, scaled to the back buffer.
func (s *Headless) DrawGrid(values []float32, cols, rows int) error {
	if cols <= 0 || rows <= 0 || len(values) < cols*rows {
		return fmt.Errorf("surface: grid %dx%d with %d values", cols, rows, len(values))
	}
	lo, hi := valueRange(values[:cols*rows])
	img := image.NewGray(image.Rect(0, 0, cols, rows))
	for i, v := range values[:cols*rows] {
		img.Pix[i] = normalise(v, lo, hi)
	}
	back := s.Back()
	draw.NearestNeighbor.Scale(back, back.Bounds(), img, img.Rect, draw.Src, nil)
	return nil
}

// DrawSeries plots values as a polyline across the width of the back
// buffer, scaled to their range.
func (s *Headless) DrawSeries(values []float32, c color.Color) {
	if len(values) == 0 {
		return
	}
	back := s.Back()
	b := back.Bounds()
	col := color.RGBAModel.Convert(c).(color.RGBA)
	lo, hi := valueRange(values)

	point := func(i int) (int, int) {
		x := 0
		if len(values) > 1 {
			x = i * (b.Dx() - 1) / (len(values) - 1)
		}
		y := b.Dy() - 1 - int(normalise(values[i], lo, hi))*(b.Dy()-1)/255
		return x, y
	}
	x0, y0 := point(0)
	back.SetRGBA(x0, y0, col)
	for i := 1; i < len(values); i++ {
		x1, y1 := point(i)
		line(back, x0, y0, x1, y1, col)
		x0, y0 = x1, y1
	}
}

func valueRange(values []float32) (lo, hi float32) {
	lo, hi = float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range values {
		if v != v {
			continue
		}
		lo, hi = min(lo, v), max(hi, v)
	}
	return lo, hi
}

func normalise(v, lo, hi float32) uint8 {
	if !(hi > lo) || v != v {
		return 0
	}
	t := (v - lo) / (hi - lo)
	return uint8(min(max(t, 0), 1) * 255)
}

// line draws with Bresenham's algorithm.
func line(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		img.SetRGBA(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
