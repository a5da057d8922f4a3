package main

import (
	"context"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/gogpu/interop/internal/demo"
	"github.com/gogpu/interop/internal/demotest"
)

func TestBlockDFT(t *testing.T) {
	// An impulse transforms to a flat spectrum; a constant to a DC spike.
	re := make([]float32, 8)
	im := make([]float32, 8)
	re[0] = 1
	for i := 4; i < 8; i++ {
		re[i] = 2
	}
	gotRe, gotIm := blockDFT(re, im, 4)
	want := []float64{1, 1, 1, 1, 8, 0, 0, 0}
	for i := range want {
		if math.Abs(gotRe[i]-want[i]) > 1e-9 || math.Abs(gotIm[i]) > 1e-9 {
			t.Errorf("bin %d = (%v, %v), want (%v, 0)", i, gotRe[i], gotIm[i], want[i])
		}
	}
}

func TestSampleCount(t *testing.T) {
	for _, tt := range []struct{ size, want int }{{0, defaultSamples}, {64, 64}, {100, 128}} {
		cfg := demotest.Config()
		cfg.Size = tt.size
		p, _ := newFFT(&demo.Env{Config: cfg})
		if got := p.(*fft).n; got != tt.want {
			t.Errorf("size %d: n = %d, want %d", tt.size, got, tt.want)
		}
	}
}

func TestTransform(t *testing.T) {
	for _, mode := range []string{"shared", "copy"} {
		t.Run(mode, func(t *testing.T) {
			cfg := demotest.Config()
			cfg.Interop = mode
			cfg.Size = 256
			rig := demotest.New(t, cfg, newFFT)
			p := rig.Program.(*fft)

			rig.Step(t, 1)
			for _, v := range p.re {
				if v < 0 || v >= updateRange {
					t.Fatalf("sample %v outside [0, %d)", v, updateRange)
				}
			}
			rig.Finish(t)
			rig.Step(t, 2)
			rig.Finish(t)
		})
	}
}

func TestFinishDetectsMismatch(t *testing.T) {
	cfg := demotest.Config()
	cfg.Size = 64
	rig := demotest.New(t, cfg, newFFT)
	p := rig.Program.(*fft)
	rig.Step(t, 1)
	p.re[3] += 50
	if err := p.Finish(context.Background(), rig.Session()); err == nil {
		t.Error("Finish accepted a wrong spectrum")
	}
}

func TestRun(t *testing.T) {
	cfg := demotest.Config()
	cfg.Size = 1024
	cfg.Frames = 3
	cfg.Animate = true
	var out strings.Builder
	if err := demo.Run(context.Background(), cfg, "fft", newFFT, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "fft: 3 frames, 3 dispatches, 0 restarts") {
		t.Errorf("summary = %q", out.String())
	}
}

func TestSmallDevice(t *testing.T) {
	for _, maxGroup := range []int{32, 8} {
		t.Run(strconv.Itoa(maxGroup), func(t *testing.T) {
			cfg := demotest.Config()
			cfg.Backend = demotest.SmallDevice(t, maxGroup)
			cfg.Size = 256
			rig := demotest.New(t, cfg, newFFT)
			p := rig.Program.(*fft)
			if p.kern.Group != maxGroup {
				t.Errorf("block = %d, want %d", p.kern.Group, maxGroup)
			}
			rig.Step(t, 1)
			rig.Finish(t)
		})
	}
}
