package buffer

import (
	"errors"
	"fmt"
	"math"
	"sync"

	g_error "github.com/darmis007/hoomd-tf/lib/error"
	"github.com/darmis007/hoomd-tf/lib/particles"
)

// ErrBudget is wrapped by the AllocationError returned when a registry's
// byte budget would be exceeded.
var ErrBudget = errors.New("mapped-memory budget exceeded")

// ErrTooLarge is wrapped by the AllocationError returned when the size of a
// request does not fit in an int.
var ErrTooLarge = errors.New("requested size overflows the address space")

// Default is the registry used by the package-level Allocate and Resize.
var Default = NewRegistry(0)

// Registry tracks every live region by token and by base address. It is safe
// for concurrent use.
type Registry struct {
	mu     sync.Mutex
	next   uint64
	live   map[uint64]*Region
	addrs  map[uint64]*Region
	mapped int

	maxBytes int
}

// NewRegistry creates an empty registry. If maxBytes is positive, requests
// which would bring the total mapped size above it fail with an
// AllocationError.
func NewRegistry(maxBytes int) *Registry {
	return &Registry{
		live: map[uint64]*Region{}, addrs: map[uint64]*Region{},
		maxBytes: maxBytes,
	}
}

// Allocate creates a region for n records of the given precision. n == 0
// succeeds and makes no mapping. Failures are returned as
// *g_error.AllocationError and are never retried.
func (reg *Registry) Allocate(n int, prec particles.Precision) (*Region, error) {
	if n < 0 {
		return nil, fmt.Errorf("Cannot allocate a region with %d records.", n)
	}

	if n > math.MaxInt/prec.RecordSize() {
		return nil, allocationError(n, 0, ErrTooLarge)
	}
	nBytes := n * prec.RecordSize()
	r := &Region{n: n, prec: prec, reg: reg}

	if nBytes > 0 {
		mapBytes := pageRound(nBytes)
		if mapBytes < nBytes {
			return nil, allocationError(n, nBytes, ErrTooLarge)
		}
		if err := reg.reserve(mapBytes); err != nil {
			return nil, allocationError(n, mapBytes, err)
		}

		mem, err := mapAnonymous(mapBytes)
		if err != nil {
			reg.unreserve(mapBytes)
			return nil, allocationError(n, mapBytes, err)
		}
		r.mem = mem
	}

	reg.register(r)
	return r, nil
}

// Resolve returns the live region with the given token.
func (reg *Registry) Resolve(token uint64) (*Region, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.live[token]
	if !ok {
		return nil, &g_error.InvalidHandleError{Handle: token}
	}
	return r, nil
}

// Live returns the number of live regions.
func (reg *Registry) Live() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.live)
}

// MappedBytes returns the total size of all live mappings, including page
// rounding.
func (reg *Registry) MappedBytes() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.mapped
}

func (reg *Registry) register(r *Region) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.next++
	r.token = reg.next
	reg.live[r.token] = r
	if r.mem != nil {
		reg.addrs[baseAddr(r.mem)] = r
	}
}

// reserve counts nBytes against the budget before they are mapped. Every
// successful reserve is matched by an unreserve, either when the mapping
// fails or when the region is released.
func (reg *Registry) reserve(nBytes int) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.maxBytes > 0 && nBytes > reg.maxBytes-reg.mapped {
		return ErrBudget
	}
	reg.mapped += nBytes
	return nil
}

func (reg *Registry) unreserve(nBytes int) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.mapped -= nBytes
}

func (reg *Registry) unregister(r *Region) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, ok := reg.live[r.token]; !ok {
		return
	}
	delete(reg.live, r.token)
	if r.mem != nil {
		delete(reg.addrs, baseAddr(r.mem))
		reg.mapped -= len(r.mem)
	}
}
