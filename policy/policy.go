// Package policy defines the managed-side upcall contract the bridge
// drives but never implements (spec §1 Non-goals, §6). Given a managed
// object, a Policy decides what native interfaces it exposes; given an
// external identity, it decides what managed proxy to construct.
package policy

import (
	"errors"
	"sync"

	"github.com/obinnaokechukwu/combridge/abi"
)

// ErrNullResult is returned when CreateObject is required to return
// non-nil (the tracker-target helper path, spec §7 NullPolicyResult) but
// returns nil.
var ErrNullResult = errors.New("policy: CreateObject returned no object")

// Policy is the minimal polymorphic interface the bridge dispatches
// through: each call carries an enumerated scenario plus an opaque impl
// reference, and these four upcalls are the whole surface.
type Policy interface {
	// ComputeVtables returns the native v-table layout for instance. A
	// (nil, 0) return is a valid "no native interfaces" outcome (spec
	// §4.D.1 step 2). Must be idempotent for a given instance: the bridge
	// may call it more than once under a race and discard all but one
	// result.
	ComputeVtables(scenario abi.Scenario, impl any, instance abi.Handle, flags abi.CreateComInterfaceFlags) (vtables []uintptr, err error)

	// CreateObject returns a fresh managed proxy for identity, or nil to
	// signal "not created" (propagated, not an error, per spec §4.D.2
	// step 4).
	CreateObject(scenario abi.Scenario, impl any, identity uintptr, flags abi.CreateObjectFlags) (managed any, err error)

	// ReleaseObjects is called with the set of managed proxies snapshotted
	// by releaseExternalObjectsOnCurrentThread (spec §4.H).
	ReleaseObjects(impl any, managed []any) error

	// CallICustomQueryInterface implements the ICustomQueryInterface
	// upcall used by tryInvokeICustomQueryInterface (spec §4.H).
	CallICustomQueryInterface(impl any, iid [16]byte) (abi.QueryInterfaceResult, any, error)
}

// reentryGuard tracks the abi.Handle values a guarded ComputeVtables call is
// currently running for (see SPEC_FULL.md §9, "Supplemented from
// original_source/"). It matches on the handle value only: the bridge
// (mow.go) registers a fresh handle for every ComputeVtables call, so a
// reentrant or concurrent call for the same managed object arrives with a
// different handle and is not detected.
type reentryGuard struct {
	mu      sync.Mutex
	active  map[abi.Handle]struct{}
}

func newReentryGuard() *reentryGuard {
	return &reentryGuard{active: make(map[abi.Handle]struct{})}
}

// Enter returns false if the handle instance is already inside a guarded
// call, from any goroutine. Only an identical handle value matches.
func (g *reentryGuard) Enter(instance abi.Handle) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[instance]; busy {
		return false
	}
	g.active[instance] = struct{}{}
	return true
}

// Exit releases the guard for instance.
func (g *reentryGuard) Exit(instance abi.Handle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, instance)
}

// Guarded wraps a Policy so ComputeVtables calls are protected by a
// reentryGuard, returning ErrReentrant instead of recursing or deadlocking.
func Guarded(p Policy) Policy {
	return &guardedPolicy{Policy: p, guard: newReentryGuard()}
}

// ErrReentrant is returned when a guarded Policy's ComputeVtables is
// invoked while a call for the same handle value is still running.
var ErrReentrant = errors.New("policy: reentrant ComputeVtables call for the same instance")

type guardedPolicy struct {
	Policy
	guard *reentryGuard
}

func (g *guardedPolicy) ComputeVtables(scenario abi.Scenario, impl any, instance abi.Handle, flags abi.CreateComInterfaceFlags) ([]uintptr, error) {
	if !g.guard.Enter(instance) {
		return nil, ErrReentrant
	}
	defer g.guard.Exit(instance)
	return g.Policy.ComputeVtables(scenario, impl, instance, flags)
}
