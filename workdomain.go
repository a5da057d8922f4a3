package interop

import "fmt"

// WorkDomain is the shape of one dispatch.
type WorkDomain struct {
	Dims   int
	Global [3]int
	Local  [3]int
}

// GroupLimits bounds the local extent of a dispatch.
type GroupLimits struct {
	// MaxWorkGroupSize is the smaller of the device and kernel ceilings.
	MaxWorkGroupSize int
	// MaxWorkItemSizes bounds each dimension; zero entries are unbounded.
	MaxWorkItemSizes [3]int
	// Fixed is a work-group shape the kernel was compiled for, or all zero.
	Fixed [3]int
}

// GroupLimitsFor combines device and kernel limits.
func GroupLimitsFor(l Limits, info KernelWorkGroupInfo) GroupLimits {
	maxGroup := l.MaxWorkGroupSize
	if info.MaxWorkGroupSize > 0 && (maxGroup <= 0 || info.MaxWorkGroupSize < maxGroup) {
		maxGroup = info.MaxWorkGroupSize
	}
	return GroupLimits{
		MaxWorkGroupSize: maxGroup,
		MaxWorkItemSizes: l.MaxWorkItemSizes,
		Fixed:            info.CompileWorkGroupSize,
	}
}

// minBlock is the last rung of the sizing ladder per dimensionality.
// Square 2D blocks stop at 4x4; 1D groups may shrink to a single item.
var minBlock = [4]int{1, 1, 4, 4}

// NewDomain1D derives a 1D domain from n data elements, with each work-item
// processing unroll elements, in groups of group items.
func NewDomain1D(n, unroll, group int) WorkDomain {
	if unroll < 1 {
		unroll = 1
	}
	return WorkDomain{
		Dims:   1,
		Global: [3]int{ceilDiv(n, unroll), 1, 1},
		Local:  [3]int{group, 1, 1},
	}
}

// NewDomain2D derives a 2D domain from a width x height data extent, with
// each work-item processing an unroll x unroll tile, in block x block groups.
func NewDomain2D(width, height, unroll, block int) WorkDomain {
	if unroll < 1 {
		unroll = 1
	}
	return WorkDomain{
		Dims:   2,
		Global: [3]int{ceilDiv(width, unroll), ceilDiv(height, unroll), 1},
		Local:  [3]int{block, block, 1},
	}
}

// Items returns the number of work-items in the domain.
func (d WorkDomain) Items() int { return d.Global[0] * d.Global[1] * d.Global[2] }

// GroupItems returns the number of work-items in one group.
func (d WorkDomain) GroupItems() int { return d.Local[0] * d.Local[1] * d.Local[2] }

// Groups returns the number of groups per dimension.
func (d WorkDomain) Groups() [3]int {
	var g [3]int
	for i := range g {
		g[i] = ceilDiv(d.Global[i], max(d.Local[i], 1))
	}
	return g
}

func (d WorkDomain) String() string {
	switch d.Dims {
	case 1:
		return fmt.Sprintf("global=%d local=%d", d.Global[0], d.Local[0])
	case 2:
		return fmt.Sprintf("global=%dx%d local=%dx%d", d.Global[0], d.Global[1], d.Local[0], d.Local[1])
	}
	return fmt.Sprintf("global=%v local=%v", d.Global, d.Local)
}

// Fit clamps the local extent to lim and rounds the global extent up to a
// multiple of it.
//
// A kernel compiled for a fixed shape gets exactly that shape. Otherwise the
// local extent steps down a ladder, halving every active dimension, until
// it fits both the group ceiling and the per-dimension limits. Falling off
// the ladder is ErrUnsupportedWorkSize.
func (d WorkDomain) Fit(lim GroupLimits) (WorkDomain, error) {
	if d.Dims < 1 || d.Dims > 3 {
		return d, fmt.Errorf("interop: %d-dimensional domain: %w", d.Dims, ErrUnsupportedWorkSize)
	}
	out := d
	for i := d.Dims; i < 3; i++ {
		out.Global[i], out.Local[i] = 1, 1
	}

	if lim.Fixed != [3]int{} {
		for i := range 3 {
			out.Local[i] = max(lim.Fixed[i], 1)
		}
		if !fits(out.Local, lim) {
			return d, fmt.Errorf("interop: compiled group %v exceeds limits (max %d, items %v): %w",
				lim.Fixed, lim.MaxWorkGroupSize, lim.MaxWorkItemSizes, ErrUnsupportedWorkSize)
		}
	} else {
		for i := range d.Dims {
			if out.Local[i] < 1 {
				return d, fmt.Errorf("interop: local extent %v: %w", d.Local, ErrUnsupportedWorkSize)
			}
		}
		floor := minBlock[d.Dims]
		for !fits(out.Local, lim) {
			next := out.Local
			shrunk := false
			for i := range d.Dims {
				if next[i]/2 >= floor {
					next[i] /= 2
					shrunk = true
				}
			}
			if !shrunk {
				return d, fmt.Errorf("interop: no group from %v fits (max %d, items %v): %w",
					d.Local, lim.MaxWorkGroupSize, lim.MaxWorkItemSizes, ErrUnsupportedWorkSize)
			}
			out.Local = next
		}
	}

	for i := range 3 {
		out.Global[i] = ceilDiv(max(out.Global[i], 1), out.Local[i]) * out.Local[i]
	}
	return out, nil
}

// Validate checks d against lim without adjusting it.
func (d WorkDomain) Validate(lim GroupLimits) error {
	for i := range 3 {
		if d.Local[i] < 1 || d.Global[i] < 1 {
			return fmt.Errorf("interop: empty extent in %s: %w", d, ErrUnsupportedWorkSize)
		}
		if d.Global[i]%d.Local[i] != 0 {
			return fmt.Errorf("interop: %s: global not a multiple of local: %w", d, ErrUnsupportedWorkSize)
		}
	}
	if lim.Fixed != [3]int{} {
		for i := range 3 {
			if d.Local[i] != max(lim.Fixed[i], 1) {
				return fmt.Errorf("interop: %s: kernel compiled for %v: %w", d, lim.Fixed, ErrUnsupportedWorkSize)
			}
		}
	}
	if !fits(d.Local, lim) {
		return fmt.Errorf("interop: %s exceeds limits (max %d, items %v): %w",
			d, lim.MaxWorkGroupSize, lim.MaxWorkItemSizes, ErrUnsupportedWorkSize)
	}
	return nil
}

// CheckLocalMemory reports ErrInsufficientLocalMemory when needed exceeds
// what the device has left after the kernel's own usage.
func CheckLocalMemory(needed int, l Limits, info KernelWorkGroupInfo) error {
	available := l.LocalMemSize - info.LocalMemUsed
	if needed > available {
		return fmt.Errorf("interop: need %d bytes of local memory, %d available (%d device, %d used by kernel): %w",
			needed, available, l.LocalMemSize, info.LocalMemUsed, ErrInsufficientLocalMemory)
	}
	return nil
}

func fits(local [3]int, lim GroupLimits) bool {
	if lim.MaxWorkGroupSize > 0 && local[0]*local[1]*local[2] > lim.MaxWorkGroupSize {
		return false
	}
	for i := range 3 {
		if lim.MaxWorkItemSizes[i] > 0 && local[i] > lim.MaxWorkItemSizes[i] {
			return false
		}
	}
	return true
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}
