package kernels_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/interop"
	"github.com/gogpu/interop/backend/software"
	"github.com/gogpu/interop/kernels"
	"github.com/gogpu/interop/surface"
)

func session(t *testing.T, limits interop.Limits) *interop.Session {
	t.Helper()
	surf := surface.NewHeadless(16, 16)
	t.Cleanup(func() { _ = surf.Close() })
	c, err := interop.Bind(software.New(software.WithLimits(limits)), interop.BindOptions{
		Class:       interop.ClassCPU,
		DeviceIndex: -1,
		Surface:     surf,
	})
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	s := interop.NewSession(c, kernels.Default())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func limitsWithGroup(maxGroup int) interop.Limits {
	l := software.DefaultLimits
	l.MaxWorkGroupSize = maxGroup
	return l
}

func vecAddLadder(n int) kernels.Ladder {
	return kernels.Ladder{
		Domain: func(group int) interop.WorkDomain { return interop.NewDomain1D(n, 1, group) },
	}
}

func TestRungs(t *testing.T) {
	tests := []struct {
		entry string
		want  []int
	}{
		{"vecadd", []int{128, 64, 32, 16, 8, 4, 2, 1}},
		{"kfft", []int{64, 32, 16, 8, 4, 2, 1}},
		{"mmmKernel", []int{8, 4}},
	}
	for _, tt := range tests {
		if got := kernels.Entries[tt.entry].Rungs(); !slices.Equal(got, tt.want) {
			t.Errorf("Rungs(%s) = %v, want %v", tt.entry, got, tt.want)
		}
	}
}

func TestBuildStepsDown(t *testing.T) {
	tests := []struct {
		maxGroup, want int
	}{
		{1024, 128},
		{64, 64},
		{48, 32},
		{1, 1},
	}
	for _, tt := range tests {
		s := session(t, limitsWithGroup(tt.maxGroup))
		f, err := kernels.Build(s, "vecadd", vecAddLadder(1024))
		if err != nil {
			t.Fatalf("max %d: Build() error = %v", tt.maxGroup, err)
		}
		if f.Group != tt.want {
			t.Errorf("max %d: group = %d, want %d", tt.maxGroup, f.Group, tt.want)
		}
		if got := f.Kernel.Info().CompileWorkGroupSize; got != [3]int{tt.want, 1, 1} {
			t.Errorf("max %d: compiled group = %v", tt.maxGroup, got)
		}
		if f.Domain.Local[0] != tt.want || f.Domain.Global[0] != 1024 {
			t.Errorf("max %d: domain %s", tt.maxGroup, f.Domain)
		}
		if err := f.Domain.Validate(s.Dispatcher.GroupLimits(f.Kernel)); err != nil {
			t.Errorf("max %d: %v", tt.maxGroup, err)
		}
	}
}

func TestBuildLocalMemory(t *testing.T) {
	l := software.DefaultLimits
	l.LocalMemSize = 4096
	s := session(t, l)
	ladder := vecAddLadder(256)
	ladder.Local = func(group int) int { return 64 * group }
	f, err := kernels.Build(s, "vecadd", ladder)
	if err != nil {
		t.Fatal(err)
	}
	if f.Group != 64 {
		t.Errorf("group = %d, want 64", f.Group)
	}
}

func TestBuildNothingFits(t *testing.T) {
	s := session(t, limitsWithGroup(8))
	live := s.Context.Live()
	_, err := kernels.Build(s, "mmmKernel", kernels.Ladder{
		Domain: func(block int) interop.WorkDomain { return interop.NewDomain2D(64, 64, 4, block) },
	})
	if !errors.Is(err, interop.ErrUnsupportedWorkSize) {
		t.Fatalf("Build() error = %v, want ErrUnsupportedWorkSize", err)
	}
	if got := s.Context.Live(); got != live {
		t.Errorf("live objects = %d, want %d", got, live)
	}
}

func TestBuildUnknownEntry(t *testing.T) {
	s := session(t, software.DefaultLimits)
	_, err := kernels.Build(s, "missing", kernels.Ladder{})
	if !errors.Is(err, interop.ErrCompile) {
		t.Errorf("Build() error = %v, want ErrCompile", err)
	}
}
