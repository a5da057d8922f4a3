// Command noise adds Gaussian noise to an image on the selected compute
// device and shows the result as a texture.
//
// Usage:
//
//	noise [cpu|gpu] [-input in.bmp] [-output out.bmp] [flags]
//
// Without -input a gradient of the window size is used. + and - change the
// noise factor; while animated it sweeps between 20 and 100.
package main

import "github.com/gogpu/interop/internal/demo"

func main() {
	demo.Main("noise", newNoise)
}
