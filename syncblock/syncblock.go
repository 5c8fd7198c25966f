// Package syncblock is the Go realization of component A in the bridge
// design: a per-managed-object side-table slot holding weak back-pointers
// to an MOW and an EOC (spec §2, §3).
//
// A host runtime normally provides this slot as part of every object's
// header. Go gives no such hook, so a managed object that wants to
// participate in the bridge embeds a Slot value directly. A Slot holds plain
// values (a wrapper handle with its registered abi.Handle, and an EOC
// storage address); the abi.Handle in an MOWRef pins the object in
// internal/handle until it is unregistered. The weak references live in
// ManagedRef and WeakSelf, built on the standard library's weak package
// (Go 1.24+): an EOC names its managed proxy through a WeakSelf, so that
// back-pointer never keeps the proxy alive.
package syncblock

import (
	"sync/atomic"
	"weak"

	"github.com/obinnaokechukwu/combridge/abi"
)

// MOWRef is the sync-block's MOW slot: a native wrapper handle paired with
// the abi.Handle currently registered against it in internal/handle. The
// registered handle is what internal/handle's table is pinning the managed
// object's sync-block owner by, so whoever retires the MOW (destroying it,
// or replacing it on reactivation) must unregister Managed too, or the
// object stays pinned in the process-wide handle table forever.
type MOWRef struct {
	Wrapper abi.WrapperHandle
	Managed abi.Handle
}

// EOCRef is the sync-block's EOC slot: it names the EOC bound to this
// object by the EOC's native storage address, not by a pointer to the EOC.
type EOCRef struct {
	Addr uintptr // the EOC's native storage address, used as an identity key
}

// Slot is the per-managed-object side table. The zero value is an empty,
// usable slot.
type Slot struct {
	mow atomic.Pointer[MOWRef]
	eoc atomic.Pointer[EOCRef]
}

// TryGetMOW reads the MOW slot. Safe for concurrent use; readers must
// tolerate a stale nil and recompute (spec §5 ordering guarantees).
func (s *Slot) TryGetMOW() (MOWRef, bool) {
	p := s.mow.Load()
	if p == nil {
		return MOWRef{}, false
	}
	return *p, true
}

// TryGetMOW is like Slot.TryGetMOW but tolerates a nil Slot (an object with
// no sync-block participation).
func TryGetMOW(s *Slot) (MOWRef, bool) {
	if s == nil {
		return MOWRef{}, false
	}
	return s.TryGetMOW()
}

// TrySetMOW installs ref into the slot iff it is currently empty. This is
// the linearization point for "at most one MOW per managed object" (spec
// §4.D.1 step 4, §5 ordering guarantees).
func (s *Slot) TrySetMOW(ref MOWRef) bool {
	return s.mow.CompareAndSwap(nil, &ref)
}

// ReplaceMOW unconditionally installs ref, used only by reactivation (spec
// §4.D.1 step 5), which rebinds an existing, already-owned slot rather than
// racing another creator.
func (s *Slot) ReplaceMOW(ref MOWRef) {
	s.mow.Store(&ref)
}

// ClearMOW empties the MOW slot, used once the wrapper it held has been
// destroyed (spec §4.H, DestroyManagedObjectWrapper) and the slot is free
// to host a freshly created wrapper again.
func (s *Slot) ClearMOW() {
	s.mow.Store(nil)
}

// TryGetEOC reads the EOC slot.
func (s *Slot) TryGetEOC() (EOCRef, bool) {
	p := s.eoc.Load()
	if p == nil {
		return EOCRef{}, false
	}
	return *p, true
}

// CASEOC installs ref iff the slot currently holds the pointer old (compared
// by pointer identity, not by value; pass nil to require an empty slot). Used as
// the linearization point for binding a freshly published EOC to its
// managed proxy (spec §4.D.2 step 7).
func (s *Slot) CASEOC(old *EOCRef, ref EOCRef) bool {
	return s.eoc.CompareAndSwap(old, &ref)
}

// ManagedRef is a weak, non-owning reference to a managed object, used by
// an EOC to name the managed proxy it backs (spec §3 "targetSlot") without
// keeping that proxy alive. Resolve with Get; a returned ok=false means the
// managed proxy has already been collected.
type ManagedRef[T any] struct {
	ptr weak.Pointer[T]
}

// NewManagedRef captures a weak reference to obj.
func NewManagedRef[T any](obj *T) ManagedRef[T] {
	return ManagedRef[T]{ptr: weak.Make(obj)}
}

// Get resolves the weak reference, returning (nil, false) once obj has been
// collected.
func (r ManagedRef[T]) Get() (*T, bool) {
	v := r.ptr.Value()
	return v, v != nil
}

// WeakSelf is a type-erased ManagedRef. EOCache needs to hold a weak
// back-pointer to an arbitrary managed proxy type without EOC itself being
// generic over that type (spec §3 targetSlot; see DESIGN.md "weak proxy
// back-pointer"). A managed proxy type builds its own WeakSelf with
// NewWeakSelf, which is the only place the concrete type is named, so the
// weak.Make call binds to the real object rather than to an interface box
// that would immediately become unreachable on its own.
type WeakSelf struct {
	get func() (any, bool)
}

// NewWeakSelf captures a weak, type-erased reference to obj. Call this from
// obj's own WeakSelf method, e.g.:
//
//	func (p *Proxy) WeakSelf() syncblock.WeakSelf { return syncblock.NewWeakSelf(p) }
func NewWeakSelf[T any](obj *T) WeakSelf {
	ref := NewManagedRef(obj)
	return WeakSelf{get: func() (any, bool) {
		v, ok := ref.Get()
		if !ok {
			return nil, false
		}
		return v, true
	}}
}

// Get resolves the weak reference. ok is false once the target has been
// collected, or if w is the zero value.
func (w WeakSelf) Get() (any, bool) {
	if w.get == nil {
		return nil, false
	}
	return w.get()
}
