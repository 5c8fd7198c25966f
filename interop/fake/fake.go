// Package fake is an in-process interop.Library used by tests and by hosts
// with no real native component. It simulates native refcounting and wrapper
// bookkeeping with a Go map instead of real C allocations, grounded on the
// same handle-table idiom as internal/handle.
package fake

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/obinnaokechukwu/combridge/abi"
	"github.com/obinnaokechukwu/combridge/interop"
)

var nextNative atomic.Uintptr // shared by every Library; atomic because each Library has its own mu

type mow struct {
	handle     abi.Handle
	active     atomic.Bool
	refs       atomic.Int64
	comActivated atomic.Bool
}

// Library is a fake interop.Library backed by in-process maps.
type Library struct {
	mu       sync.Mutex
	wrappers map[abi.WrapperHandle]*mow
	external map[uintptr]*interop.ExternalStorage
	tracking *interop.TrackingContext
	identity abi.IdentityVtable
}

var _ interop.Library = (*Library)(nil)

// New returns a ready-to-use fake Library.
func New() *Library {
	return &Library{
		wrappers: make(map[abi.WrapperHandle]*mow),
		external: make(map[uintptr]*interop.ExternalStorage),
		identity: abi.IdentityVtable{QueryInterface: 1, AddRef: 2, Release: 3},
	}
}

func (l *Library) CreateWrapperForObject(h abi.Handle, vtables []uintptr, flags abi.CreateComInterfaceFlags) (abi.WrapperHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := abi.WrapperHandle(nextNative.Add(1))

	m := &mow{handle: h}
	m.active.Store(true)
	m.refs.Store(1)
	l.wrappers[id] = m
	return id, nil
}

func (l *Library) CreateWrapperForExternal(identity uintptr, flags abi.CreateObjectFlags, ctxSize uintptr) (interop.ExternalStorage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	storage := &interop.ExternalStorage{
		Addr: identity | (1 << 62), // synthetic, never a real address
		Size: ctxSize,
		// The fake has no real tracker runtime to originate this signal
		// from, so it stands in the caller's own TrackerObject request as
		// the best available proxy for "this identity arrived via the
		// reference-tracking runtime."
		FromTrackerRuntime: flags.Has(abi.CreateObjectTrackerObject),
	}
	l.external[storage.Addr] = storage
	return *storage, nil
}

func (l *Library) DestroyWrapperForObject(mowHandle abi.WrapperHandle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.wrappers, mowHandle)
}

func (l *Library) DestroyWrapperForExternal(eocStorage uintptr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.external, eocStorage)
}

func (l *Library) IsActiveWrapper(mowHandle abi.WrapperHandle) bool {
	l.mu.Lock()
	m, ok := l.wrappers[mowHandle]
	l.mu.Unlock()
	if !ok {
		return false
	}
	return m.active.Load()
}

func (l *Library) ReactivateWrapper(mowHandle abi.WrapperHandle, h abi.Handle) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.wrappers[mowHandle]
	if !ok {
		return errors.New("fake: unknown wrapper handle")
	}
	m.handle = h
	m.active.Store(true)
	return nil
}

// Deactivate simulates the underlying managed object being collected while
// the native refcount stays non-zero, the precondition for reactivation.
func (l *Library) Deactivate(mowHandle abi.WrapperHandle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.wrappers[mowHandle]; ok {
		m.active.Store(false)
	}
}

func (l *Library) GetObjectForWrapper(native uintptr) (abi.Handle, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.wrappers[abi.WrapperHandle(native)]
	if !ok || m.comActivated.Load() {
		return 0, false
	}
	return m.handle, true
}

func (l *Library) IsComActivated(native uintptr) bool {
	l.mu.Lock()
	m, ok := l.wrappers[abi.WrapperHandle(native)]
	l.mu.Unlock()
	if !ok {
		return false
	}
	return m.comActivated.Load()
}

func (l *Library) MarkComActivated(native uintptr) {
	l.mu.Lock()
	m, ok := l.wrappers[abi.WrapperHandle(native)]
	l.mu.Unlock()
	if ok {
		m.comActivated.Store(true)
	}
}

func (l *Library) SeparateWrapperFromTrackerRuntime(eocStorage uintptr) {
	// No tracker-runtime bookkeeping to sever in the fake; idempotent no-op.
}

func (l *Library) BeginExternalObjectReferenceTracking(ctx *interop.TrackingContext) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tracking = ctx
	return nil
}

func (l *Library) EndExternalObjectReferenceTracking() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tracking = nil
}

func (l *Library) GetIdentityVtableImpl() abi.IdentityVtable {
	return l.identity
}
