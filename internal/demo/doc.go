// Package demo is the harness shared by the benchmark programs under cmd/.
//
// A program supplies a Program (an interop.Scene with info lines) and
// calls Main. The harness parses the command line and the optional TOML
// file, binds a compute context to a headless surface, and redraws until
// the frame budget is spent or a quit key arrives. It also maps keys to
// actions, draws the overlay and reports stats:
//
//	func main() {
//	    demo.Main("nbody", newNBody)
//	}
//
// Bare tokens on the command line select the device class (cpu, gpu) and
// the local-memory kernel variant (lds). -keys scripts key presses, one
// per frame, so interactive behaviour can be replayed in batch runs.
package demo
