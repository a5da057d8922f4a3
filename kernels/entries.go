package kernels

// Entry documents one kernel entry point.
type Entry struct {
	File string
	Name string

	// Unroll is how many data elements one work-item processes per
	// dimension. The global domain is the data extent divided by it.
	Unroll int

	// Group is the preferred work-group extent per active dimension,
	// before the sizing ladder is applied.
	Group [2]int

	// Define is the build define that carries the work-group size.
	Define string
}

// Entries lists every kernel entry point:
//
//	identity            1D  one u32 per item                 unroll 1
//	vecadd              1D  one float per item               unroll 1
//	nbody_sim           1D  one body per item                unroll 1
//	kfft                1D  one complex bin per item         unroll 1
//	gaussian_transform  2D  two pixels per item along x      unroll 2 (x only)
//	mmmKernel           2D  a 4x4 block of C per item        unroll 4
//	mmmKernel_local     2D  a 4x4 block of C per item        unroll 4
var Entries = map[string]Entry{
	"identity":           {File: IdentityFile, Name: "identity", Unroll: 1, Group: [2]int{64, 1}, Define: "GROUP_SIZE"},
	"vecadd":             {File: VecAddFile, Name: "vecadd", Unroll: 1, Group: [2]int{128, 1}, Define: "GROUP_SIZE"},
	"nbody_sim":          {File: NBodyFile, Name: "nbody_sim", Unroll: 1, Group: [2]int{128, 1}, Define: "GROUP_SIZE"},
	"kfft":               {File: FFTFile, Name: "kfft", Unroll: 1, Group: [2]int{64, 1}, Define: "GROUP_SIZE"},
	"gaussian_transform": {File: NoiseFile, Name: "gaussian_transform", Unroll: 2, Group: [2]int{64, 1}, Define: "GROUP_SIZE"},
	"mmmKernel":          {File: MatMulFile, Name: "mmmKernel", Unroll: 4, Group: [2]int{8, 8}, Define: "BLOCK"},
	"mmmKernel_local":    {File: MatMulFile, Name: "mmmKernel_local", Unroll: 4, Group: [2]int{8, 8}, Define: "BLOCK"},
}

// Unroll returns the unroll factor of entry, 1 for unknown entries.
func Unroll(entry string) int {
	if e, ok := Entries[entry]; ok {
		return e.Unroll
	}
	return 1
}
