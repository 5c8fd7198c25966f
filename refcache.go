package combridge

import (
	"sync"

	"github.com/obinnaokechukwu/combridge/syncblock"
)

// refEdge is one dependent edge recorded during a tracking window: while
// source is reachable, target is kept reachable too (spec §3 RefCache).
//
// source is held only weakly (the same syncblock.WeakSelf every other
// back-pointer in this module uses): RefCache records the edge because the
// tracker runtime reported it, but it must never be the thing that keeps
// source itself alive, or shrinkReserve's "drop edges whose source has
// become unreachable" check could never observe a dead source — RefCache
// would be defeating the very GC behavior it exists to preserve.
//
// target, in contrast, is held as a genuine strong reference. Go has no
// GC-level "dependent handle" primitive to make that pinning conditional on
// source's own reachability, so this is a documented simplification (see
// DESIGN.md, "refcache.go"): the edge's pin on target
// lasts for one tracking window — from the onGCStarted that recorded it to
// the next onGCStarted's clear — rather than for as long as source remains
// reachable.
type refEdge struct {
	source syncblock.WeakSelf
	target any
}

// RefCache is component C (spec §3, §4.F): the ephemeral set of
// source→target dependent edges built during a major collection's tracking
// window. ffgo has no equivalent of a GC-adjacent ephemeral cache; this
// type's clear/append/shrink lifecycle is grounded on OPA's
// topdown/cache.go virtual-cache, which is likewise reset at the start of
// each evaluation and shrunk once results are no longer needed.
type RefCache struct {
	mu    sync.Mutex
	edges []refEdge
}

// NewRefCache returns an empty RefCache.
func NewRefCache() *RefCache {
	return &RefCache{}
}

// record adds a dependent edge source→target, suppressing self-loops (spec
// §3: "Self-edges are suppressed", identified here by shared sync-block
// identity rather than by value equality, since managed objects are not
// guaranteed comparable). Returns false if the edge was a self-loop and was
// not recorded.
func (r *RefCache) record(source, target ManagedObject) bool {
	if source.SyncBlock() == target.SyncBlock() {
		return false
	}
	r.mu.Lock()
	r.edges = append(r.edges, refEdge{source: source.WeakSelf(), target: target})
	r.mu.Unlock()
	return true
}

// clear drops every recorded edge. Called at the start of each major
// collection (spec §4.F step 1), before a fresh tracking window begins.
func (r *RefCache) clear() {
	r.mu.Lock()
	r.edges = r.edges[:0]
	r.mu.Unlock()
}

// len reports the number of edges currently pinned, used by tests.
func (r *RefCache) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.edges)
}

// targetsOf returns every target pinned on behalf of source, for tests and
// for P6 verification. An edge whose weak source no longer resolves can
// never match a (necessarily live) source argument, so it is silently
// skipped rather than treated as an error.
func (r *RefCache) targetsOf(source ManagedObject) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, e := range r.edges {
		mo, ok := resolveSource(e.source)
		if !ok {
			continue
		}
		if mo.SyncBlock() == source.SyncBlock() {
			out = append(out, e.target)
		}
	}
	return out
}

// shrinkReserve drops edges whose source's weak reference no longer
// resolves and, if the backing slice has grown far past its live length,
// reallocates it at a tighter capacity (spec §4.F step 4, "shrink the
// RefCache's dependent-link reserve").
func (r *RefCache) shrinkReserve() {
	r.mu.Lock()
	defer r.mu.Unlock()

	live := r.edges[:0]
	for _, e := range r.edges {
		if _, ok := e.source.Get(); ok {
			live = append(live, e)
		}
	}
	r.edges = live

	const shrinkSlack = 16
	if cap(r.edges) > 2*len(r.edges)+shrinkSlack {
		tightened := make([]refEdge, len(r.edges))
		copy(tightened, r.edges)
		r.edges = tightened
	}
}

// resolveSource resolves w and asserts the result back to a ManagedObject,
// the type every source weak reference was built from.
func resolveSource(w syncblock.WeakSelf) (ManagedObject, bool) {
	v, ok := w.Get()
	if !ok {
		return nil, false
	}
	mo, ok := v.(ManagedObject)
	return mo, ok
}
