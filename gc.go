package combridge

import (
	"github.com/obinnaokechukwu/combridge/abi"
	"github.com/obinnaokechukwu/combridge/internal/handle"
	"github.com/obinnaokechukwu/combridge/interop"
)

// majorGeneration is the threshold spec §4.F fixes both hooks against:
// "both are no-ops unless generation ≥ 2."
const majorGeneration = 2

// OnGCStarted is the GC-start hook (spec §4.F). It is a no-op below a major
// collection. Nested invocations (background/foreground interleaving) are
// counted: only the outermost call actually clears the RefCache and begins
// a tracking window; inner calls just bump the nesting depth.
//
// While a tracking window is open, OnGCStarted holds the Bridge's gcBarrier
// for writing, blocking every wrapping-service call until the matching
// OnGCFinished. Real hosts achieve the same exclusion by suspending every
// mutator thread; Go gives no such primitive, so the barrier is this
// module's documented stand-in (see DESIGN.md, "gcBarrier").
func (b *Bridge) OnGCStarted(generation int) error {
	if generation < majorGeneration {
		return nil
	}

	b.gcMu.Lock()
	defer b.gcMu.Unlock()

	b.gcDepth++
	if b.gcDepth > 1 {
		return nil
	}

	b.gcBarrier.Lock()
	b.refcache.clear()

	ctx := &trackingContext{TrackingContext: interop.TrackingContext{Generation: generation}}
	b.gcActiveCtx = ctx

	if err := b.library.BeginExternalObjectReferenceTracking(&ctx.TrackingContext); err != nil {
		b.gcActiveCtx = nil
		b.gcDepth--
		b.gcBarrier.Unlock()
		return newBridgeErr("OnGCStarted", KindInteropFailure, err)
	}

	if b.metrics != nil {
		b.metrics.GCMajorCollections.Inc()
	}
	if b.logger != nil {
		b.logger.WithField("generation", generation).Debug("reference-tracking window opened")
	}
	return nil
}

// OnGCFinished is the GC-end hook (spec §4.F). Symmetric with OnGCStarted:
// only the outermost, matching call ends tracking, shrinks the RefCache's
// reserve, and releases the barrier.
func (b *Bridge) OnGCFinished(generation int) error {
	if generation < majorGeneration {
		return nil
	}

	b.gcMu.Lock()
	defer b.gcMu.Unlock()

	if b.gcDepth == 0 {
		return nil
	}
	b.gcDepth--
	if b.gcDepth > 0 {
		return nil
	}

	b.library.EndExternalObjectReferenceTracking()
	b.refcache.shrinkReserve()
	b.gcActiveCtx = nil
	b.gcBarrier.Unlock()
	return nil
}

// trackingContext is the transient, per-window iteration state built at the
// start of a tracking window (spec §4.F step 2: "iterator over EOCache and
// a reference to the RefCache"). It embeds interop.TrackingContext so a
// pointer to it can be handed straight to the interop library.
type trackingContext struct {
	interop.TrackingContext
	entries []*EOC
	next    int
}

// IteratorNext advances ctx's iterator over an EOCache snapshot taken on the
// first call for ctx, returning (nil, false) once exhausted. Safe without
// additional locking: mutators are excluded for the duration of the window
// by the gcBarrier OnGCStarted took.
func (b *Bridge) IteratorNext(ctx *trackingContext) (*EOC, bool) {
	if ctx.entries == nil {
		b.eocache.forEach(func(e *EOC) {
			ctx.entries = append(ctx.entries, e)
		})
	}
	if ctx.next >= len(ctx.entries) {
		return nil, false
	}
	e := ctx.entries[ctx.next]
	ctx.next++
	return e, true
}

// FoundReferencePath records a dependent edge source→target in the RefCache
// for one reported reference from eoc's managed target to the object behind
// targetHandle (spec §4.F). Self-loops (source and target share a
// sync-block) are silently dropped, matching "returns no edge."
func (b *Bridge) FoundReferencePath(eoc *EOC, targetHandle abi.Handle) (recorded bool, err error) {
	source, ok := eoc.Target()
	if !ok {
		return false, nil
	}
	sourceMO, ok := source.(ManagedObject)
	if !ok {
		return false, newBridgeErr("FoundReferencePath", KindInteropFailure, nil)
	}

	targetAny, ok := handle.Lookup(targetHandle)
	if !ok {
		return false, newBridgeErr("FoundReferencePath", KindInteropFailure, nil)
	}
	targetMO, ok := targetAny.(ManagedObject)
	if !ok {
		return false, newBridgeErr("FoundReferencePath", KindInteropFailure, nil)
	}

	recorded = b.refcache.record(sourceMO, targetMO)
	if recorded && b.metrics != nil {
		b.metrics.RefCacheEdges.Inc()
	}
	return recorded, nil
}

// MarkExternalComObjectContextCollected notifies the bridge that eoc's
// managed proxy has been reclaimed (spec §4.F): it sets Collected,
// invalidates the weak target back-pointer, and, if the EOC was still
// published, removes it from the EOCache. Called during GC suspension; the
// removal takes the EOCache's own lock.
func (b *Bridge) MarkExternalComObjectContextCollected(eoc *EOC) {
	wasInCache := eoc.InCache()
	eoc.setFlag(eocCollected)
	eoc.invalidateTarget()
	if wasInCache {
		b.eocache.remove(eoc.identity, eoc)
		if b.metrics != nil {
			b.metrics.EOCacheCollected.Inc()
			b.metrics.EOCacheSize.Set(float64(b.eocache.len()))
		}
	}
}

// DestroyExternalComObjectContext releases eoc's native storage once the
// interop library determines no native references remain. eoc must already
// be Collected; calling this on a live EOC is a usage error the original
// source asserts against, so this returns an error rather than corrupting
// state.
func (b *Bridge) DestroyExternalComObjectContext(eoc *EOC) error {
	if !eoc.Collected() {
		return newBridgeErr("DestroyExternalComObjectContext", KindInteropFailure, ErrEOCNotCollected)
	}
	b.library.DestroyWrapperForExternal(eoc.storage)
	return nil
}
