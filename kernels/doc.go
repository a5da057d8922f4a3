// Package kernels holds the WGSL compute kernels of the demo programs and
// the tooling around them.
//
// Sources are loaded by fixed file name through a Dir, either from the
// copies embedded in the binary or from a directory on disk. A source may
// declare defaults with
//
//	//!define GROUP_SIZE 128
//
// which -D NAME=VALUE build options override. Compile substitutes the
// defines, then parses and validates the result with naga and reflects
// every compute entry point: its @workgroup_size, its workgroup memory and
// its @group(0) bindings. Binding indices are kernel argument positions.
package kernels
