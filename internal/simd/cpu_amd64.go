//go:build amd64

package simd

import "golang.org/x/sys/cpu"

// On AMD64 the SWAR word-at-a-time scanner reliably beats the byte loop
// regardless of extension level, but we still gate it on the CPU feature
// dispatch the teacher's scanner used for its AVX2/AVX512 selection so a
// future assembly implementation can slot into the same init() hook.
func init() {
	if cpu.X86.HasAVX2 || cpu.X86.HasAVX512F || cpu.X86.HasSSE42 {
		scanImpl = scanSWAR
	} else {
		scanImpl = scanGeneric
	}
}

// HasAVX2 reports whether the CPU advertises AVX2.
func HasAVX2() bool { return cpu.X86.HasAVX2 }
