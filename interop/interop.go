// Package interop defines the contract the bridge uses to reach the
// interop library: the non-goal component that owns v-table layout,
// QueryInterface dispatch, and method thunking (spec §1). The bridge only
// ever calls through this interface; it never implements marshaling itself.
//
// Two implementations live alongside this package: interop/fake (an
// in-process stand-in used by tests and pure-Go hosts) and
// interop/nativeshim (a purego-backed binding to a real native shim
// library).
package interop

import (
	"errors"

	"github.com/obinnaokechukwu/combridge/abi"
)

// ErrNotLoaded is returned by Library implementations that bind to an
// optional native component which has not been (or could not be) loaded.
var ErrNotLoaded = errors.New("interop: native library not loaded")

// TrackingContext is the transient, per-major-GC context the bridge builds
// in combridge.Bridge.OnGCStarted and hands to
// BeginExternalObjectReferenceTracking. The interop library treats it as
// opaque. The bridge embeds it in its own per-window iteration state, which
// Bridge.IteratorNext takes; Bridge.FoundReferencePath takes no context.
type TrackingContext struct {
	// Generation is the GC generation that triggered tracking (spec §4.F:
	// no-op unless >= 2).
	Generation int
}

// ExternalStorage describes the memory an interop library allocated for an
// EOC on behalf of CreateWrapperForExternal.
type ExternalStorage struct {
	// Addr is the allocated, zeroed storage the bridge will format as an
	// EOC. A nil Addr with a nil error is never valid.
	Addr uintptr
	// Size is the actual size of the allocation, in bytes. The bridge
	// asserts Size >= the EOC layout size it requested (spec §9 open
	// question: a silently undersized region is a corruption hazard).
	Size uintptr
	// FromTrackerRuntime is true when the external object arrived via the
	// reference-tracking runtime rather than an explicit managed call.
	FromTrackerRuntime bool
}

// Library is the narrow surface the bridge needs from the interop library.
// Every method here is a non-goal per spec §1: neither of the two
// implementations in this module (fake, nativeshim) does real v-table
// construction or method thunking; fake simulates the bookkeeping, and
// nativeshim forwards to symbols resolved from a real shared library.
type Library interface {
	// CreateWrapperForObject builds a native wrapper for a managed object.
	// handle is a strong reference to the managed object (spec §4.D.1
	// step 4); vtables is the layout ComputeVtables produced.
	CreateWrapperForObject(handle abi.Handle, vtables []uintptr, flags abi.CreateComInterfaceFlags) (abi.WrapperHandle, error)

	// CreateWrapperForExternal allocates EOC-sized storage for a new
	// external identity. ctxSize is the size, in bytes, the bridge needs
	// for its own EOC layout (spec §4.D.2 step 4).
	CreateWrapperForExternal(identity uintptr, flags abi.CreateObjectFlags, ctxSize uintptr) (ExternalStorage, error)

	// DestroyWrapperForObject releases a MOW once the interop library
	// determines it is unreferenced natively and its managed object is
	// unreachable.
	DestroyWrapperForObject(mow abi.WrapperHandle)

	// DestroyWrapperForExternal releases EOC storage once no native
	// references remain. Bridge.DestroyExternalComObjectContext checks that
	// the EOC was already marked Collected before calling this (spec §4.F);
	// Bridge.DestroyExternalObjectContext forwards a raw storage address
	// without that check.
	DestroyWrapperForExternal(eocStorage uintptr)

	// IsActiveWrapper reports whether mow's underlying managed object is
	// still live (spec §4.D.1 step 5).
	IsActiveWrapper(mow abi.WrapperHandle) bool

	// ReactivateWrapper rebinds an inactive MOW to a newly resurrected
	// managed object, preserving native identity (spec §9, finalizer
	// resurrection).
	ReactivateWrapper(mow abi.WrapperHandle, handle abi.Handle) error

	// GetObjectForWrapper returns the managed handle embedded in native,
	// only succeeding when native is an MOW this process created (spec
	// §4.D.2 step 3, the unwrap probe).
	GetObjectForWrapper(native uintptr) (abi.Handle, bool)

	// IsComActivated reports whether native was authored via external
	// activation rather than produced by CreateWrapperForObject (spec
	// §4.D.2 step 3 policy rationale).
	IsComActivated(native uintptr) bool

	// MarkComActivated marks native as externally activated, disabling
	// the unwrap probe for it going forward.
	MarkComActivated(native uintptr)

	// SeparateWrapperFromTrackerRuntime detaches eocStorage from the
	// tracker runtime. Idempotent; safe on non-tracker entries (spec
	// §4.B snapshotFiltered).
	SeparateWrapperFromTrackerRuntime(eocStorage uintptr)

	// BeginExternalObjectReferenceTracking starts a tracking window; the
	// interop library drives an external tracker runtime that calls back
	// into the bridge's IteratorNext/FoundReferencePath for the duration.
	BeginExternalObjectReferenceTracking(ctx *TrackingContext) error

	// EndExternalObjectReferenceTracking ends the most recently started
	// tracking window.
	EndExternalObjectReferenceTracking()

	// GetIdentityVtableImpl returns the function pointers implementing
	// the base identity interface.
	GetIdentityVtableImpl() abi.IdentityVtable
}
