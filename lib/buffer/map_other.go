//go:build !unix

package buffer

// Platforms without mmap get ordinary heap memory. The regions behave the same
// within one process, but cannot be shared with another one.

func mapAnonymous(nBytes int) ([]byte, error) { return make([]byte, nBytes), nil }

func unmap(mem []byte) error { return nil }

func pageSize() int { return 4096 }
