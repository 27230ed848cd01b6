/*package error contains the error types returned by the buffer, snapshot and
controller packages, along with simple functions for reporting fatal errors
from the hoomd-tf command line tool.

Library code never exits: it returns one of the typed errors below (usually
wrapped with fmt.Errorf's %w verb) and lets the caller decide. Only the main
package calls External and Internal.
*/
package error

import (
	"errors"
	"fmt"
	"log"
	"os"
	"runtime/debug"
)

var (
	// ErrClosed is returned by operations on a controller or lock that has
	// already been shut down.
	ErrClosed = errors.New("hoomd-tf: use of closed object")
	// ErrFaulted is returned by every Step call after an allocation failure.
	ErrFaulted = errors.New("hoomd-tf: controller is faulted")
	// ErrHandoffTimeout is returned when the external engine does not signal
	// completion within the configured timeout.
	ErrHandoffTimeout = errors.New("hoomd-tf: timed out waiting for engine")
)

// AllocationError is returned when a memory-map request cannot be satisfied.
// It is fatal to the current step and is never retried automatically.
type AllocationError struct {
	Records, Bytes int
	Err            error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("failed to map %d bytes for %d records: %v",
		e.Bytes, e.Records, e.Err)
}

func (e *AllocationError) Unwrap() error { return e.Err }

// SizeMismatchError is returned when a buffer's capacity does not match the
// live particle count. The controller resolves it by reallocating; the copy
// routines never perform a partial copy.
type SizeMismatchError struct {
	Buffer        string
	Capacity, Len int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("%s buffer holds %d records, but there are %d particles",
		e.Buffer, e.Capacity, e.Len)
}

// InvalidHandleError is returned when a token or raw address does not
// correspond to a live allocation.
type InvalidHandleError struct {
	Handle uint64
	Addr   bool
}

func (e *InvalidHandleError) Error() string {
	if e.Addr {
		return fmt.Sprintf("address 0x%x is not the base of a live mapping",
			e.Handle)
	}
	return fmt.Sprintf("token %d does not name a live mapping", e.Handle)
}

// NeighborOverflowError is returned when a particle has more neighbors than
// there are neighbor slots.
type NeighborOverflowError struct {
	Particle, Neighbors, Slots int
}

func (e *NeighborOverflowError) Error() string {
	return fmt.Sprintf("particle %d has %d neighbors, but only %d slots are "+
		"available; increase NNeighs", e.Particle, e.Neighbors, e.Slots)
}

// StaleOutputError is returned when the engine left part of the output buffer
// unwritten and the stale-output policy rejects it.
type StaleOutputError struct {
	Record, Unwritten int
}

func (e *StaleOutputError) Error() string {
	return fmt.Sprintf("engine left %d output records unwritten (first at %d)",
		e.Unwritten, e.Record)
}

// External reports an error to stderr and kills the program. It should be
// used when an error is something a user could reasonably be expected to fix
// through changes in configuration/data/environment. It has the same
// signature as the standard fmt.*printf() functions.
func External(format string, a ...interface{}) {
	log.Printf("hoomd-tf exited early with the following error:\n"+format, a...)
	os.Exit(1)
}

// Internal reports an error to stderr along with a stack trace and kills the
// program. It should be used when the error requires a code dive to fix.
func Internal(format string, a ...interface{}) {
	log.Println("hoomd-tf exited early with the following error:")
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprintf(os.Stderr, "\n\n")
	debug.PrintStack()
	os.Exit(1)
}
