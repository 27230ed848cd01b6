//go:build unix

package buffer

import (
	"golang.org/x/sys/unix"
)

// mapAnonymous creates a readable and writable anonymous MAP_SHARED mapping
// of nBytes bytes.
func mapAnonymous(nBytes int) ([]byte, error) {
	return unix.Mmap(-1, 0, nBytes, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED|unix.MAP_ANON)
}

func unmap(mem []byte) error { return unix.Munmap(mem) }

func pageSize() int { return unix.Getpagesize() }
