package interop

import (
	"errors"
	"math/rand/v2"
	"testing"
)

func TestNewDomain(t *testing.T) {
	d := NewDomain1D(1024, 1, 128)
	if d.Global != [3]int{1024, 1, 1} || d.Local != [3]int{128, 1, 1} {
		t.Errorf("NewDomain1D = %v", d)
	}

	// 4x4 unrolled matmul over 64x32 output.
	d = NewDomain2D(64, 32, 4, 8)
	if d.Global != [3]int{16, 8, 1} || d.Local != [3]int{8, 8, 1} {
		t.Errorf("NewDomain2D = %v", d)
	}
	if got := d.Groups(); got != [3]int{2, 1, 1} {
		t.Errorf("Groups() = %v, want [2 1 1]", got)
	}
}

func TestFitLadder(t *testing.T) {
	tests := []struct {
		name   string
		dom    WorkDomain
		lim    GroupLimits
		global [3]int
		local  [3]int
		err    bool
	}{
		{
			name:   "1D fits",
			dom:    NewDomain1D(1024, 1, 128),
			lim:    GroupLimits{MaxWorkGroupSize: 256},
			global: [3]int{1024, 1, 1},
			local:  [3]int{128, 1, 1},
		},
		{
			name:   "1D halves",
			dom:    NewDomain1D(1000, 1, 128),
			lim:    GroupLimits{MaxWorkGroupSize: 48},
			global: [3]int{1024, 1, 1},
			local:  [3]int{32, 1, 1},
		},
		{
			name:   "2D 8x8 to 4x4",
			dom:    NewDomain2D(64, 64, 4, 8),
			lim:    GroupLimits{MaxWorkGroupSize: 32},
			global: [3]int{16, 16, 1},
			local:  [3]int{4, 4, 1},
		},
		{
			name:   "2D per-dimension limit",
			dom:    NewDomain2D(64, 64, 1, 8),
			lim:    GroupLimits{MaxWorkGroupSize: 256, MaxWorkItemSizes: [3]int{256, 4, 1}},
			global: [3]int{64, 64, 1},
			local:  [3]int{4, 4, 1},
		},
		{
			name: "2D below smallest block",
			dom:  NewDomain2D(64, 64, 1, 8),
			lim:  GroupLimits{MaxWorkGroupSize: 8},
			err:  true,
		},
		{
			name:   "fixed shape",
			dom:    NewDomain1D(100, 1, 1),
			lim:    GroupLimits{MaxWorkGroupSize: 256, Fixed: [3]int{64, 1, 1}},
			global: [3]int{128, 1, 1},
			local:  [3]int{64, 1, 1},
		},
		{
			name: "fixed shape too large",
			dom:  NewDomain1D(100, 1, 1),
			lim:  GroupLimits{MaxWorkGroupSize: 32, Fixed: [3]int{64, 1, 1}},
			err:  true,
		},
		{
			name: "bad dims",
			dom:  WorkDomain{Dims: 4},
			err:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.dom.Fit(tt.lim)
			if tt.err {
				if !errors.Is(err, ErrUnsupportedWorkSize) {
					t.Fatalf("Fit() error = %v, want ErrUnsupportedWorkSize", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fit() error = %v", err)
			}
			if got.Global != tt.global || got.Local != tt.local {
				t.Errorf("Fit() = %v, want global %v local %v", got, tt.global, tt.local)
			}
			if err := got.Validate(tt.lim); err != nil {
				t.Errorf("Validate(Fit()) = %v", err)
			}
		})
	}
}

func TestFitProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 2000 {
		dims := 1 + rng.IntN(2)
		var dom WorkDomain
		if dims == 1 {
			dom = NewDomain1D(1+rng.IntN(1<<16), 1+rng.IntN(4), 1<<rng.IntN(10))
		} else {
			dom = NewDomain2D(1+rng.IntN(4096), 1+rng.IntN(4096), 1+rng.IntN(4), 1<<rng.IntN(5))
		}
		lim := GroupLimits{
			MaxWorkGroupSize: 1 << rng.IntN(11),
			MaxWorkItemSizes: [3]int{1 << rng.IntN(11), 1 << rng.IntN(11), 64},
		}
		got, err := dom.Fit(lim)
		if err != nil {
			if !errors.Is(err, ErrUnsupportedWorkSize) {
				t.Fatalf("Fit(%v, %+v) error = %v", dom, lim, err)
			}
			continue
		}
		if got.GroupItems() > lim.MaxWorkGroupSize {
			t.Fatalf("Fit(%v, %+v) local %v exceeds max group", dom, lim, got.Local)
		}
		for i := range 3 {
			if got.Global[i]%got.Local[i] != 0 {
				t.Fatalf("Fit(%v) global %v not a multiple of local %v", dom, got.Global, got.Local)
			}
			if got.Global[i] < dom.Global[i] {
				t.Fatalf("Fit(%v) shrank global to %v", dom, got.Global)
			}
		}
	}
}

func TestValidate(t *testing.T) {
	lim := GroupLimits{MaxWorkGroupSize: 128}
	tests := []struct {
		name string
		dom  WorkDomain
		ok   bool
	}{
		{"ok", WorkDomain{Dims: 1, Global: [3]int{1024, 1, 1}, Local: [3]int{128, 1, 1}}, true},
		{"not multiple", WorkDomain{Dims: 1, Global: [3]int{1000, 1, 1}, Local: [3]int{128, 1, 1}}, false},
		{"too large", WorkDomain{Dims: 1, Global: [3]int{1024, 1, 1}, Local: [3]int{256, 1, 1}}, false},
		{"empty", WorkDomain{Dims: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.dom.Validate(lim)
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestGroupLimitsFor(t *testing.T) {
	l := Limits{MaxWorkGroupSize: 256, MaxWorkItemSizes: [3]int{256, 256, 64}}
	got := GroupLimitsFor(l, KernelWorkGroupInfo{MaxWorkGroupSize: 64})
	if got.MaxWorkGroupSize != 64 {
		t.Errorf("MaxWorkGroupSize = %d, want 64", got.MaxWorkGroupSize)
	}
	got = GroupLimitsFor(l, KernelWorkGroupInfo{})
	if got.MaxWorkGroupSize != 256 {
		t.Errorf("MaxWorkGroupSize = %d, want 256", got.MaxWorkGroupSize)
	}
}

func TestCheckLocalMemory(t *testing.T) {
	l := Limits{LocalMemSize: 16384}
	if err := CheckLocalMemory(8192, l, KernelWorkGroupInfo{LocalMemUsed: 8192}); err != nil {
		t.Errorf("exact fit: %v", err)
	}
	err := CheckLocalMemory(8193, l, KernelWorkGroupInfo{LocalMemUsed: 8192})
	if !errors.Is(err, ErrInsufficientLocalMemory) {
		t.Errorf("overflow: %v, want ErrInsufficientLocalMemory", err)
	}
}
