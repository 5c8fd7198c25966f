package combridge

import (
	"github.com/obinnaokechukwu/combridge/abi"
	"github.com/obinnaokechukwu/combridge/internal/handle"
	"github.com/obinnaokechukwu/combridge/policy"
	"github.com/obinnaokechukwu/combridge/syncblock"
)

// TryGetOrCreateManagedProxyForNative is component D.2 (spec §4.D.2): it
// returns the managed proxy for identity, creating one (and an EOC to back
// it) if none exists yet.
//
// identity must already be the canonical native identity; canonicalizing it
// (e.g. via a QueryInterface round-trip to the identity interface) is the
// caller's responsibility, not this bridge's.
//
// wrapperMaybe, when non-nil, is used as the managed proxy instead of
// upcalling CreateObject — the caller already has an object it wants bound.
//
// threadContext is an opaque cookie naming the calling native thread (spec
// §3 EOC.threadContext); ReleaseExternalObjectsOnCurrentThread later uses it
// to select which EOCs to release.
func (b *Bridge) TryGetOrCreateManagedProxyForNative(impl policy.Policy, identity uintptr, flags abi.CreateObjectFlags, scenario abi.Scenario, wrapperMaybe ManagedObject, threadContext uintptr) (any, error) {
	b.gcBarrier.RLock()
	defer b.gcBarrier.RUnlock()

	const op = "TryGetOrCreateManagedProxyForNative"

	unique := flags.Has(abi.CreateObjectUniqueInstance)

	// Step 1/2: cache lookup, unless a unique instance was requested.
	if !unique {
		if eoc, ok := b.eocache.find(identity); ok {
			if target, ok := eoc.Target(); ok {
				return target, nil
			}
		}
	}

	// Step 3: unwrap probe.
	if scenario == abi.ScenarioMarshallingGlobalInstance && !unique {
		if h, ok := b.library.GetObjectForWrapper(identity); ok && !b.library.IsComActivated(identity) {
			if managed, ok := handle.Lookup(h); ok {
				return managed, nil
			}
		}
	}

	p, err := b.policyFor(impl)
	if err != nil {
		return nil, newBridgeErr(op, KindPolicyUpcallFailure, err)
	}

	// Step 4: construction, outside the cache lock (only the gcBarrier read
	// lock is held).
	storage, err := b.library.CreateWrapperForExternal(identity, flags, eocLayoutSize)
	if err != nil {
		return nil, newBridgeErr(op, KindInteropFailure, err)
	}
	if storage.Size < eocLayoutSize {
		// spec §9 open question: an undersized allocation is a corruption
		// hazard; fail loudly instead of formatting past the end of it.
		return nil, newBridgeErr(op, KindInteropFailure, ErrUndersizedExternalStorage)
	}

	var proxy ManagedObject
	if wrapperMaybe != nil {
		proxy = wrapperMaybe
	} else {
		managed, err := p.CreateObject(scenario, impl, identity, flags)
		if err != nil {
			b.library.DestroyWrapperForExternal(storage.Addr)
			return nil, newBridgeErr(op, KindPolicyUpcallFailure, err)
		}
		if managed == nil {
			b.library.DestroyWrapperForExternal(storage.Addr)
			return nil, nil
		}
		mo, ok := managed.(ManagedObject)
		if !ok {
			b.library.DestroyWrapperForExternal(storage.Addr)
			return nil, newBridgeErr(op, KindPolicyUpcallFailure, policy.ErrNullResult)
		}
		proxy = mo
	}

	// Step 5: populate the EOC.
	eoc := newEOC(identity, storage.Addr, threadContext, proxy.WeakSelf())
	if storage.FromTrackerRuntime {
		eoc.setFlag(eocReferenceTracker)
	}
	if unique {
		eoc.clearFlag(eocInCache)
	}

	// Step 6: publish, unless unique.
	if !unique {
		winner, created := b.eocache.findOrAdd(identity, eoc)
		if !created {
			// Another goroutine already published an EOC for identity;
			// release ours back to the interop library and defer to the
			// winner's proxy.
			b.library.DestroyWrapperForExternal(storage.Addr)
			if target, ok := winner.Target(); ok {
				return target, nil
			}
			return nil, newBridgeErr(op, KindInteropFailure, nil)
		}
		if b.metrics != nil {
			b.metrics.EOCachePublishes.Inc()
			b.metrics.EOCacheSize.Set(float64(b.eocache.len()))
		}
	}

	// Step 7: bind the EOC into the proxy's sync-block slot. This is the
	// linearization point for managed<->native binding.
	if !proxy.SyncBlock().CASEOC(nil, syncblock.EOCRef{Addr: eoc.storage}) {
		if !unique {
			b.eocache.remove(identity, eoc)
		}
		return nil, newBridgeErr(op, KindAlreadyBound, ErrNotSupported)
	}

	return proxy, nil
}

// eocLayoutSize is the storage size, in bytes, the bridge asks the interop
// library to reserve for one EOC's native-visible header. This module's EOC
// has no native-visible fields of its own (its identity and weak
// back-pointer live entirely in Go memory, keyed by storage.Addr), but the
// interop library still needs a nonzero region to anchor native reference
// counting to, so a single pointer-sized slot is requested.
const eocLayoutSize = 8
