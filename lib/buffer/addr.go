package buffer

/* addr.go is the only file in this module which converts between mappings
and raw integer addresses.

Addresses are 64 bits wide. They exist so that an engine which maps the same
shared memory independently can report back where it found a region. Nothing
here can prove that an arbitrary integer came from a real allocation: ResolveAddr
only accepts exact base addresses of live regions in the registry, and callers
remain responsible for where the integer came from. */

import (
	"unsafe"

	g_error "github.com/darmis007/hoomd-tf/lib/error"
)

// Addr returns the 64-bit base address of the region's mapping, or 0 for an
// empty or released region. The address is invalidated by Release.
func (r *Region) Addr() uint64 {
	if r == nil || r.mem == nil {
		return 0
	}
	return baseAddr(r.mem)
}

// ResolveAddr converts a 64-bit base address back into the live region which
// owns it. Interior pointers, released mappings and unknown integers are
// rejected with *g_error.InvalidHandleError.
func (reg *Registry) ResolveAddr(addr uint64) (*Region, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.addrs[addr]
	if !ok || addr == 0 {
		return nil, &g_error.InvalidHandleError{Handle: addr, Addr: true}
	}
	return r, nil
}

func baseAddr(mem []byte) uint64 {
	return uint64(uintptr(unsafe.Pointer(&mem[0])))
}
