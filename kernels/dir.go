package kernels

import (
	"embed"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/gogpu/interop"
)

// Kernel source file names. Each program loads its source by one of these
// fixed names, relative to the kernel directory.
const (
	IdentityFile = "Identity_Kernels.wgsl"
	VecAddFile   = "VecAdd_Kernels.wgsl"
	NBodyFile    = "NBody_Kernels.wgsl"
	FFTFile      = "FFT_Kernels.wgsl"
	NoiseFile    = "GaussianNoiseGL_Kernels.wgsl"
	MatMulFile   = "MatrixMultiplication_Kernels.wgsl"
)

// FlagsSuffix names the optional build-options file stored next to a
// kernel source: NBody_Kernels.wgsl.flags.
const FlagsSuffix = ".flags"

//go:embed *.wgsl
var embedded embed.FS

// FS returns the kernel sources built into the binary.
func FS() fs.FS { return embedded }

// Dir loads kernel sources from a file system.
type Dir struct {
	fsys fs.FS
}

// NewDir returns a loader over fsys.
func NewDir(fsys fs.FS) *Dir { return &Dir{fsys: fsys} }

// OSDir returns a loader over a directory on disk.
func OSDir(path string) *Dir { return NewDir(os.DirFS(path)) }

// Default returns a loader over the built-in sources.
func Default() *Dir { return NewDir(embedded) }

// Load reads name and, if present, name+FlagsSuffix. A missing or
// unreadable source is a *interop.FileLoadError.
func (d *Dir) Load(name string) (interop.KernelSource, error) {
	text, err := fs.ReadFile(d.fsys, name)
	if err != nil {
		return interop.KernelSource{}, &interop.FileLoadError{Name: name, Err: err}
	}
	src := interop.KernelSource{Name: name, Text: string(text)}

	flags, err := fs.ReadFile(d.fsys, name+FlagsSuffix)
	switch {
	case err == nil:
		src.Flags = strings.Join(strings.Fields(string(flags)), " ")
	case !errors.Is(err, fs.ErrNotExist):
		return interop.KernelSource{}, &interop.FileLoadError{Name: name + FlagsSuffix, Err: err}
	}
	return src, nil
}
