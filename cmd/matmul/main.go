// Command matmul multiplies two random square matrices on the selected
// compute device and shows the product as a grey-scale image.
//
// Usage:
//
//	matmul [cpu|gpu] [lds] [flags]
//
// With lds the kernel stages tiles of A in local memory. While animated
// both inputs are refilled every frame. The last product is checked
// against a reference computed on the host before exiting.
package main

import "github.com/gogpu/interop/internal/demo"

func main() {
	demo.Main("matmul", newMatMul)
}
