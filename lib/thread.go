package lib

/* thread.go contains functions useful for multi-threading. */

import (
	"fmt"
	"runtime"
)

// SetThreads sets the number of threads the Go runtime may use. n = -1 uses
// every core.
func SetThreads(n int) error {
	if n == -1 {
		n = runtime.NumCPU()
	}
	if n > runtime.NumCPU() {
		return fmt.Errorf("%d threads requested, but your system only has "+
			"%d cores. If you want hoomdtf to use every core, set "+
			"Threads = -1.", n, runtime.NumCPU())
	} else if n <= 0 {
		return fmt.Errorf("%d threads requested.", n)
	}

	runtime.GOMAXPROCS(n)
	return nil
}
