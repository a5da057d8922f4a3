// Command vecadd adds two random vectors on the selected compute device
// and plots the sum.
//
// Usage:
//
//	vecadd [cpu|gpu] [-size n] [flags]
//
// While animated both inputs are refilled every frame. The last sum is
// checked on the host before exiting.
package main

import "github.com/gogpu/interop/internal/demo"

func main() {
	demo.Main("vecadd", newVecAdd)
}
