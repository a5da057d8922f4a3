package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/go-text/typesetting/di"
	gtfont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	textlang "golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Defaults of the on-screen text.
var (
	DefaultOffset    = image.Pt(25, 25)
	DefaultShadow    = color.RGBA{A: 255}
	DefaultHighlight = color.RGBA{R: 230, G: 230, B: 230, A: 255}
)

// DefaultSize is the text size in pixels.
const DefaultSize = 14

// Overlay draws the info and stats text over a frame. Each line is drawn
// twice: a shadow one pixel down and right, then the highlight.
//
// An Overlay is not safe for concurrent use.
type Overlay struct {
	Offset    image.Point
	Shadow    color.Color
	Highlight color.Color

	ShowInfo  bool
	ShowStats bool

	printer *message.Printer
	face    font.Face
	size    float64

	shapeFont *gtfont.Font
	shaper    shaping.HarfbuzzShaper

	info  []string
	stats string
}

var (
	goFontOnce sync.Once
	goFont     *opentype.Font
	goShape    *gtfont.Font
	goFontErr  error
)

func loadGoFont() (*opentype.Font, *gtfont.Font, error) {
	goFontOnce.Do(func() {
		goFont, goFontErr = opentype.Parse(goregular.TTF)
		if goFontErr != nil {
			return
		}
		var f *gtfont.Face
		f, goFontErr = gtfont.ParseTTF(bytes.NewReader(goregular.TTF))
		if goFontErr == nil {
			goShape = f.Font
		}
	})
	return goFont, goShape, goFontErr
}

// New returns an overlay drawing Go Regular at size pixels. Numbers in
// formatted lines are grouped for p's language; a nil p uses English.
func New(size float64, p *message.Printer) (*Overlay, error) {
	if size <= 0 {
		size = DefaultSize
	}
	otf, shape, err := loadGoFont()
	if err != nil {
		return nil, fmt.Errorf("overlay: load font: %w", err)
	}
	face, err := opentype.NewFace(otf, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("overlay: face: %w", err)
	}
	if p == nil {
		p = message.NewPrinter(textlang.English)
	}
	return &Overlay{
		Offset:    DefaultOffset,
		Shadow:    DefaultShadow,
		Highlight: DefaultHighlight,
		ShowInfo:  true,
		ShowStats: true,
		printer:   p,
		face:      face,
		size:      size,
		shapeFont: shape,
	}, nil
}

// Sprintf formats with the overlay's locale.
func (o *Overlay) Sprintf(format string, args ...any) string {
	return o.printer.Sprintf(format, args...)
}

// SetInfo replaces the info lines.
func (o *Overlay) SetInfo(lines ...string) { o.info = lines }

// SetStats replaces the stats line. Empty hides it.
func (o *Overlay) SetStats(line string) { o.stats = line }

// Stats returns the current stats line.
func (o *Overlay) Stats() string { return o.stats }

// ToggleInfo flips the info lines.
func (o *Overlay) ToggleInfo() bool {
	o.ShowInfo = !o.ShowInfo
	return o.ShowInfo
}

// ToggleStats flips the stats line.
func (o *Overlay) ToggleStats() bool {
	o.ShowStats = !o.ShowStats
	return o.ShowStats
}

// Lines returns the lines Draw would render.
func (o *Overlay) Lines() []string {
	var lines []string
	if o.ShowInfo {
		lines = append(lines, o.info...)
	}
	if o.ShowStats && o.stats != "" {
		lines = append(lines, o.stats)
	}
	return lines
}

// Measure returns the advance width and line height of s in pixels,
// shaped with HarfBuzz.
func (o *Overlay) Measure(s string) (width, height int) {
	runes := []rune(s)
	out := o.shaper.Shape(shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: di.DirectionLTR,
		Face:      gtfont.NewFace(o.shapeFont),
		Size:      fixed.Int26_6(o.size * 64),
		Script:    language.Latin,
		Language:  language.NewLanguage("en"),
	})
	return out.Advance.Ceil(), out.LineBounds.LineThickness().Ceil()
}

// Bounds returns the rectangle the visible lines cover, shadow included.
func (o *Overlay) Bounds() image.Rectangle {
	lines := o.Lines()
	if len(lines) == 0 {
		return image.Rectangle{}
	}
	lh := o.lineHeight()
	w := 0
	for _, l := range lines {
		lw, _ := o.Measure(l)
		w = max(w, lw)
	}
	return image.Rect(o.Offset.X, o.Offset.Y, o.Offset.X+w+1, o.Offset.Y+lh*len(lines)+1)
}

func (o *Overlay) lineHeight() int {
	return o.face.Metrics().Height.Ceil()
}

// Draw renders the visible lines onto dst.
func (o *Overlay) Draw(dst draw.Image) {
	lines := o.Lines()
	if len(lines) == 0 {
		return
	}
	ascent := o.face.Metrics().Ascent.Ceil()
	lh := o.lineHeight()
	for i, l := range lines {
		x := o.Offset.X
		y := o.Offset.Y + ascent + i*lh
		o.drawString(dst, l, x+1, y+1, o.Shadow)
		o.drawString(dst, l, x, y, o.Highlight)
	}
}

func (o *Overlay) drawString(dst draw.Image, s string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: o.face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// Close releases the font face.
func (o *Overlay) Close() error { return o.face.Close() }
