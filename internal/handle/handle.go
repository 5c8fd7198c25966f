// Package handle provides the thread-safe table that turns a managed
// object into an abi.Handle: an opaque, process-unique value that can be
// handed to native code (passed to ComputeVtables, stored in an MOW) without
// exposing a raw Go pointer.
//
// Every Register keeps the object alive in the table until a matching
// Unregister. This is the Go-native realization of the "allocate a strong
// managed handle" step in spec §4.D.1 step 4: the table entry itself is the
// GC root that keeps the managed object reachable while native code holds
// the wrapper, where no other Go variable may be holding a live reference.
//
// mow.go registers one handle per wrapper it creates or reactivates. On a
// failed or lost creation the handle is unregistered at once; otherwise it
// is kept in the sync-block's MOWRef until the wrapper is destroyed or
// reactivated. Handles are therefore released and re-registered over a
// process's life rather than only accumulating, so the table is a slot
// array with a free list of recycled indices rather than an ever-growing
// map keyed by a monotonic counter.
package handle

import (
	"sync"

	"github.com/obinnaokechukwu/combridge/abi"
)

type slot struct {
	v    any
	live bool
}

var (
	mu    sync.RWMutex
	slots []slot
	free  []abi.Handle
)

// Register stores v and returns a new handle for it. Safe for concurrent
// use. A freed slot is reused before the table grows, so a table under
// steady register/unregister churn stays bounded by its high-water mark
// rather than growing with the number of calls ever made.
func Register(v any) abi.Handle {
	mu.Lock()
	defer mu.Unlock()

	if n := len(free); n > 0 {
		h := free[n-1]
		free = free[:n-1]
		slots[h-1] = slot{v: v, live: true}
		return h
	}

	slots = append(slots, slot{v: v, live: true})
	return abi.Handle(len(slots))
}

// Lookup retrieves the object behind h, or (nil, false) if h is not (or no
// longer) registered.
func Lookup(h abi.Handle) (any, bool) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := at(h)
	if !ok || !s.live {
		return nil, false
	}
	return s.v, true
}

// Unregister drops h, allowing the underlying object to become collectible
// once no other root references it, and returns h's slot to the free list.
func Unregister(h abi.Handle) {
	mu.Lock()
	defer mu.Unlock()
	if s, ok := at(h); !ok || !s.live {
		return
	}
	slots[h-1] = slot{}
	free = append(free, h)
}

// Count returns the number of live handles. Used by tests to assert no
// handle leaks survive a bridge operation.
func Count() int {
	mu.RLock()
	defer mu.RUnlock()
	return len(slots) - len(free)
}

// at returns the slot for h without locking; callers hold mu.
func at(h abi.Handle) (slot, bool) {
	if h < 1 || int(h) > len(slots) {
		return slot{}, false
	}
	return slots[h-1], true
}
