package combridge

import (
	"github.com/obinnaokechukwu/combridge/abi"
	"github.com/obinnaokechukwu/combridge/internal/handle"
	"github.com/obinnaokechukwu/combridge/policy"
	"github.com/obinnaokechukwu/combridge/syncblock"
)

// TryGetOrCreateNativeWrapperForManaged is component D.1 (spec §4.D.1): it
// returns the native wrapper (MOW) for instance, creating one if none
// exists yet and reactivating it if the interop library reports it inactive.
//
// impl is the policy driving scenario ScenarioInstance; pass nil for the
// tracker/global-instance scenarios, in which case the registered global
// instance policy is used.
func (b *Bridge) TryGetOrCreateNativeWrapperForManaged(impl policy.Policy, instance ManagedObject, flags abi.CreateComInterfaceFlags, scenario abi.Scenario) (abi.WrapperHandle, error) {
	b.gcBarrier.RLock()
	defer b.gcBarrier.RUnlock()

	slot := instance.SyncBlock()

	// Step 1: fast path.
	if ref, ok := slot.TryGetMOW(); ok {
		return b.reactivateIfNeeded(slot, ref, instance)
	}

	p, err := b.policyFor(impl)
	if err != nil {
		return 0, newBridgeErr("TryGetOrCreateNativeWrapperForManaged", KindPolicyUpcallFailure, err)
	}

	// Step 2: compute layout. Only the gcBarrier read lock is held across
	// the upcall; no cache or slot lock is.
	h := handle.Register(instance)
	vtables, err := p.ComputeVtables(scenario, impl, h, flags)
	if err != nil {
		handle.Unregister(h)
		return 0, newBridgeErr("TryGetOrCreateNativeWrapperForManaged", KindPolicyUpcallFailure, err)
	}

	// Step 3: re-check slot; another goroutine may have published one while
	// ComputeVtables ran.
	if ref, ok := slot.TryGetMOW(); ok {
		handle.Unregister(h)
		return b.reactivateIfNeeded(slot, ref, instance)
	}

	// Step 4: build and publish.
	wrapper, err := b.library.CreateWrapperForObject(h, vtables, flags)
	if err != nil {
		handle.Unregister(h)
		return 0, newBridgeErr("TryGetOrCreateNativeWrapperForManaged", KindInteropFailure, err)
	}

	ref := syncblock.MOWRef{Wrapper: wrapper, Managed: h}
	if !slot.TrySetMOW(ref) {
		// Lost the CAS race: release the wrapper this goroutine built and
		// use whatever the winner installed.
		b.library.DestroyWrapperForObject(wrapper)
		handle.Unregister(h)
		winner, ok := slot.TryGetMOW()
		if !ok {
			return 0, newBridgeErr("TryGetOrCreateNativeWrapperForManaged", KindInteropFailure, nil)
		}
		return b.reactivateIfNeeded(slot, winner, instance)
	}

	if b.metrics != nil {
		b.metrics.MOWCreates.Inc()
	}
	return ref.Wrapper, nil
}

// reactivateIfNeeded implements step 5: if the interop library reports ref's
// wrapper inactive, it is rebound to a fresh strong handle for instance. The
// handle ref previously carried is retired at that point: nothing else was
// going to release it once the wrapper it pinned stopped being the live one.
func (b *Bridge) reactivateIfNeeded(slot *syncblock.Slot, ref syncblock.MOWRef, instance ManagedObject) (abi.WrapperHandle, error) {
	if b.library.IsActiveWrapper(ref.Wrapper) {
		return ref.Wrapper, nil
	}

	h := handle.Register(instance)
	if err := b.library.ReactivateWrapper(ref.Wrapper, h); err != nil {
		handle.Unregister(h)
		return 0, newBridgeErr("TryGetOrCreateNativeWrapperForManaged", KindInteropFailure, err)
	}
	handle.Unregister(ref.Managed)
	ref.Managed = h
	slot.ReplaceMOW(ref)
	if b.metrics != nil {
		b.metrics.MOWReactivations.Inc()
	}
	return ref.Wrapper, nil
}
