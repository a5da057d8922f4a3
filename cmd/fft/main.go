// Command fft transforms blocks of random complex samples on the selected
// compute device and plots the magnitude spectrum.
//
// Usage:
//
//	fft [cpu|gpu] [-size n] [flags]
//
// Every computed frame refills the samples before the in-place transform.
// The last spectrum is checked on the host before exiting.
package main

import "github.com/gogpu/interop/internal/demo"

func main() {
	demo.Main("fft", newFFT)
}
