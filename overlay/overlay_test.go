package overlay

import (
	"image"
	"image/color"
	"testing"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func newOverlay(t *testing.T) *Overlay {
	t.Helper()
	o, err := New(0, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func TestSprintfGroupsNumbers(t *testing.T) {
	o := newOverlay(t)
	if got := o.Sprintf("Bodies: %d", 16384); got != "Bodies: 16,384" {
		t.Errorf("Sprintf() = %q", got)
	}
	de, err := New(12, message.NewPrinter(language.German))
	if err != nil {
		t.Fatal(err)
	}
	defer de.Close()
	if got := de.Sprintf("%d", 16384); got != "16.384" {
		t.Errorf("German Sprintf() = %q", got)
	}
}

func TestLinesAndToggles(t *testing.T) {
	o := newOverlay(t)
	o.SetInfo("Animated = true", "Press space to animate")
	o.SetStats("[CPU] Compute: 1.00 ms")

	tests := []struct {
		info, stats bool
		want        int
	}{
		{true, true, 3},
		{false, true, 1},
		{false, false, 0},
		{true, false, 2},
	}
	for _, tt := range tests {
		o.ShowInfo, o.ShowStats = tt.info, tt.stats
		if got := len(o.Lines()); got != tt.want {
			t.Errorf("info=%v stats=%v: %d lines, want %d", tt.info, tt.stats, got, tt.want)
		}
	}

	if o.ToggleInfo() != false || o.ToggleStats() != true {
		t.Error("toggles did not flip")
	}
	o.SetStats("")
	if got := len(o.Lines()); got != 0 {
		t.Errorf("empty stats still shown: %d lines", got)
	}
}

func TestMeasure(t *testing.T) {
	o := newOverlay(t)
	w1, h := o.Measure("i")
	w2, _ := o.Measure("iiii")
	wide, _ := o.Measure("WWWW")
	if w1 <= 0 || h <= 0 {
		t.Fatalf("Measure(i) = %d, %d", w1, h)
	}
	if w2 <= w1 || wide <= w2 {
		t.Errorf("widths not increasing: i=%d iiii=%d WWWW=%d", w1, w2, wide)
	}
	if w, _ := o.Measure(""); w != 0 {
		t.Errorf("Measure(\"\") width = %d", w)
	}
}

func TestDraw(t *testing.T) {
	o := newOverlay(t)
	o.SetInfo("Gaussian noise")
	dst := image.NewRGBA(image.Rect(0, 0, 200, 60))

	b := o.Bounds()
	if b.Min != DefaultOffset || b.Dx() <= 1 || b.Dy() <= 1 {
		t.Fatalf("Bounds() = %v", b)
	}

	o.Draw(dst)
	var shadow, highlight int
	for y := 0; y < 60; y++ {
		for x := 0; x < 200; x++ {
			c := dst.RGBAAt(x, y)
			if c.A == 0 {
				continue
			}
			// Hinted advances may round past the shaped width.
			if y < b.Min.Y-2 || y > b.Max.Y+2 || x < b.Min.X-2 || x > b.Max.X+10 {
				t.Fatalf("pixel %d,%d outside %v", x, y, b)
			}
			switch {
			case c.R > 128:
				highlight++
			default:
				shadow++
			}
		}
	}
	if highlight == 0 || shadow == 0 {
		t.Errorf("highlight=%d shadow=%d pixels", highlight, shadow)
	}

	o.ShowInfo = false
	clear(dst.Pix)
	o.Draw(dst)
	if dst.RGBAAt(30, 35) != (color.RGBA{}) {
		t.Error("hidden overlay drew")
	}
	if !o.Bounds().Empty() {
		t.Error("hidden overlay has bounds")
	}
}
