// Command nbody animates a gravitational N-body system. Each step runs on
// the selected compute device; the positions are drawn as points.
//
// Usage:
//
//	nbody [cpu|gpu] [flags]
//
// Space starts the animation, i and s toggle the overlays, q quits.
package main

import "github.com/gogpu/interop/internal/demo"

func main() {
	demo.Main("nbody", newNBody)
}
