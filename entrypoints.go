package combridge

import (
	"github.com/obinnaokechukwu/combridge/abi"
	"github.com/obinnaokechukwu/combridge/internal/handle"
	"github.com/obinnaokechukwu/combridge/policy"
)

// GetIdentityVtableImpl returns the function pointers implementing the
// identity interface's three base methods, sourced from the interop
// library (component H).
func (b *Bridge) GetIdentityVtableImpl() abi.IdentityVtable {
	return b.library.GetIdentityVtableImpl()
}

// DestroyManagedObjectWrapper releases instance's native wrapper (spec §3,
// §4.H), preserving the precondition that it is no longer referenced
// natively. It also unregisters the abi.Handle that has pinned instance in
// internal/handle since the wrapper was created or last reactivated, and
// clears the sync-block slot so a later TryGetOrCreateNativeWrapperForManaged
// can mint a fresh wrapper. A no-op if instance has no MOW.
func (b *Bridge) DestroyManagedObjectWrapper(instance ManagedObject) {
	slot := instance.SyncBlock()
	ref, ok := slot.TryGetMOW()
	if !ok {
		return
	}
	b.library.DestroyWrapperForObject(ref.Wrapper)
	handle.Unregister(ref.Managed)
	slot.ClearMOW()
}

// DestroyExternalObjectContext is the raw-storage counterpart to
// DestroyExternalComObjectContext: a thin forwarder used when the caller
// already holds the storage address rather than an *EOC (spec §4.H).
func (b *Bridge) DestroyExternalObjectContext(storage uintptr) {
	b.library.DestroyWrapperForExternal(storage)
}

// MarkWrapperAsComActivated is a thin forwarder to the interop library's
// MarkComActivated, disabling the unwrap probe for native's identity going
// forward (spec §4.D.2 step 3, §4.H).
func (b *Bridge) MarkWrapperAsComActivated(native uintptr) {
	b.library.MarkComActivated(native)
}

// ReleaseExternalObjectsOnCurrentThread snapshots every EOC created under
// threadContext with the ReferenceTracker flag set, and hands that snapshot
// (as managed proxies) to impl's ReleaseObjects upcall (spec §4.H, scenario
// 5). It returns the number of proxies released.
func (b *Bridge) ReleaseExternalObjectsOnCurrentThread(impl policy.Policy, threadContext uintptr) (int, error) {
	p, err := b.policyFor(impl)
	if err != nil {
		return 0, newBridgeErr("ReleaseExternalObjectsOnCurrentThread", KindPolicyUpcallFailure, err)
	}

	var snapshot []any
	b.eocache.snapshotFiltered(func(e *EOC) bool {
		if e.ThreadContext() != threadContext || !e.IsReferenceTracker() {
			return true // keep: not ours to release
		}
		b.library.SeparateWrapperFromTrackerRuntime(e.Storage())
		if target, ok := e.Target(); ok {
			snapshot = append(snapshot, target)
		}
		return false // remove: released below
	})

	if len(snapshot) == 0 {
		return 0, nil
	}
	if err := p.ReleaseObjects(impl, snapshot); err != nil {
		return 0, newBridgeErr("ReleaseExternalObjectsOnCurrentThread", KindPolicyUpcallFailure, err)
	}
	return len(snapshot), nil
}

// GetOrCreateTrackerTargetForExternal composes TryGetOrCreateManagedProxyForNative
// then TryGetOrCreateNativeWrapperForManaged for identity, using scenario
// TrackerSupportGlobalInstance throughout (spec §4.H): it is the bridge's
// answer to "give me a native handle the tracker runtime can report edges
// against for this external identity."
func (b *Bridge) GetOrCreateTrackerTargetForExternal(identity uintptr, objFlags abi.CreateObjectFlags, ifaceFlags abi.CreateComInterfaceFlags, threadContext uintptr) (abi.WrapperHandle, error) {
	managed, err := b.TryGetOrCreateManagedProxyForNative(nil, identity, objFlags, abi.ScenarioTrackerSupportGlobalInstance, nil, threadContext)
	if err != nil {
		return 0, err
	}
	if managed == nil {
		return 0, newBridgeErr("GetOrCreateTrackerTargetForExternal", KindNullPolicyResult, policy.ErrNullResult)
	}
	mo, ok := managed.(ManagedObject)
	if !ok {
		return 0, newBridgeErr("GetOrCreateTrackerTargetForExternal", KindPolicyUpcallFailure, nil)
	}
	return b.TryGetOrCreateNativeWrapperForManaged(nil, mo, ifaceFlags, abi.ScenarioTrackerSupportGlobalInstance)
}

// TryInvokeICustomQueryInterface invokes the CallICustomQueryInterface
// upcall for iid on impl, or on the registered global policy when impl is
// nil (spec §4.H). onGCThread signals that the caller must not proceed (the
// GC thread can never safely reenter managed code here), surfaced as
// ErrOnGCThread. No thread attachment is performed here.
func (b *Bridge) TryInvokeICustomQueryInterface(impl policy.Policy, onGCThread bool, iid [16]byte) (abi.QueryInterfaceResult, any, error) {
	if onGCThread {
		return abi.QueryInterfaceFailed, nil, newBridgeErr("TryInvokeICustomQueryInterface", KindWrongThreadForCustomQI, ErrOnGCThread)
	}

	p, err := b.policyFor(impl)
	if err != nil {
		return abi.QueryInterfaceFailed, nil, newBridgeErr("TryInvokeICustomQueryInterface", KindPolicyUpcallFailure, err)
	}

	result, obj, err := p.CallICustomQueryInterface(impl, iid)
	if err != nil {
		return abi.QueryInterfaceFailed, nil, newBridgeErr("TryInvokeICustomQueryInterface", KindPolicyUpcallFailure, err)
	}
	return result, obj, nil
}
