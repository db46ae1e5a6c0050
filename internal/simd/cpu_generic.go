//go:build !amd64

package simd

func init() {
	scanImpl = scanSWAR
}

// HasAVX2 returns false on non-AMD64 platforms.
func HasAVX2() bool { return false }
