package combridge

import (
	"sync"

	"github.com/obinnaokechukwu/combridge/syncblock"
)

// eocFlags mirrors spec §3's per-EOC flag set.
type eocFlags uint32

const (
	eocCollected eocFlags = 1 << iota
	eocReferenceTracker
	eocInCache
)

// EOC is the Go realization of the External Object Context (spec §3):
// everything the bridge needs to know about one external identity once a
// managed proxy has been minted for it.
type EOC struct {
	mu sync.Mutex

	identity uintptr

	// storage is the native allocation address backing this EOC (the value
	// handed back from interop.ExternalStorage), used as the identity key
	// for the sync-block's EOCRef and for DestroyWrapperForExternal.
	storage uintptr

	// threadContext is the opaque cookie identifying the native thread that
	// created this EOC, used by ReleaseExternalObjectsOnCurrentThread to
	// select its snapshot. Go exposes no notion of "current OS thread"
	// analogous to the host runtime's, so callers supply it explicitly —
	// the native-interop layer embedding this module knows its own thread
	// identity and passes it through.
	threadContext uintptr

	// target is the weak back-pointer to the managed proxy this EOC backs
	// (spec §3 targetSlot). It never keeps the proxy alive.
	target syncblock.WeakSelf

	flags eocFlags
}

func newEOC(identity, storage, threadContext uintptr, target syncblock.WeakSelf) *EOC {
	return &EOC{
		identity:      identity,
		storage:       storage,
		threadContext: threadContext,
		target:        target,
	}
}

// Identity returns the external identity this EOC backs.
func (e *EOC) Identity() uintptr { return e.identity }

// Storage returns the native storage address backing this EOC.
func (e *EOC) Storage() uintptr { return e.storage }

// ThreadContext returns the opaque native-thread cookie this EOC was
// created under.
func (e *EOC) ThreadContext() uintptr { return e.threadContext }

// Target resolves the weak back-pointer to the managed proxy, returning
// ok=false once the proxy (or the EOC itself, for a zero-value target) is
// gone.
func (e *EOC) Target() (any, bool) {
	e.mu.Lock()
	target := e.target
	e.mu.Unlock()
	return target.Get()
}

func (e *EOC) setFlag(f eocFlags) {
	e.mu.Lock()
	e.flags |= f
	e.mu.Unlock()
}

func (e *EOC) clearFlag(f eocFlags) {
	e.mu.Lock()
	e.flags &^= f
	e.mu.Unlock()
}

func (e *EOC) hasFlag(f eocFlags) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flags&f != 0
}

// invalidateTarget clears the weak back-pointer to the managed proxy (spec
// §4.F, markExternalComObjectContextCollected: "invalidates targetSlot").
func (e *EOC) invalidateTarget() {
	e.mu.Lock()
	e.target = syncblock.WeakSelf{}
	e.mu.Unlock()
}

// Collected reports whether the GC has observed this EOC's managed proxy as
// reclaimed (spec §3, markExternalComObjectContextCollected).
func (e *EOC) Collected() bool { return e.hasFlag(eocCollected) }

// IsReferenceTracker reports whether this EOC's identity came from a
// reference-tracker-aware native object (spec §4.C, RefCache participation).
func (e *EOC) IsReferenceTracker() bool { return e.hasFlag(eocReferenceTracker) }

// InCache reports whether this EOC is currently published in its owning
// EOCache: add and findOrAdd set it on publication, and remove and
// snapshotFiltered clear it when they delete the entry (spec §4.B).
func (e *EOC) InCache() bool { return e.hasFlag(eocInCache) }

// EOCache is component B: an identity-keyed, concurrency-safe map from
// external identity to EOC (spec §4.B). It is the single source of truth
// for "has this identity already been wrapped."
//
// ffgo has no analogous shared, concurrently-mutated cache — its state is
// per-handle and single-owner — so this type's locking discipline is
// grounded on OPA's storage/inmem store (a single mutex guarding a plain
// map, snapshotting done by copying under the lock) rather than adapted
// from any one ffgo file.
type EOCache struct {
	mu      sync.RWMutex
	entries map[uintptr]*EOC
}

// NewEOCache returns an empty cache.
func NewEOCache() *EOCache {
	return &EOCache{entries: make(map[uintptr]*EOC)}
}

// find returns the EOC registered for identity, if any.
func (c *EOCache) find(identity uintptr) (*EOC, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[identity]
	return e, ok
}

// add unconditionally publishes eoc under its own identity, overwriting any
// existing entry. Callers that need "publish iff absent" semantics must use
// findOrAdd instead, as the wrapping service does; add is only called
// directly by tests.
func (c *EOCache) add(eoc *EOC) {
	c.mu.Lock()
	c.entries[eoc.identity] = eoc
	eoc.setFlag(eocInCache)
	c.mu.Unlock()
}

// findOrAdd is the cache's linearization point for "one EOC per external
// identity" (spec §4.D.2 step 6): it returns the winning EOC for identity,
// which is candidate if and only if no concurrent caller beat this one to
// the identity.
func (c *EOCache) findOrAdd(identity uintptr, candidate *EOC) (winner *EOC, created bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[identity]; ok {
		return existing, false
	}
	c.entries[identity] = candidate
	candidate.setFlag(eocInCache)
	return candidate, true
}

// remove unpublishes the EOC registered for identity, if its current value
// matches eoc (so a racing add/findOrAdd that already replaced it is not
// clobbered).
func (c *EOCache) remove(identity uintptr, eoc *EOC) {
	c.mu.Lock()
	if c.entries[identity] == eoc {
		delete(c.entries, identity)
		eoc.clearFlag(eocInCache)
	}
	c.mu.Unlock()
}

// len reports the number of live entries, used to drive the EOCacheSize
// gauge.
func (c *EOCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// snapshotFiltered realizes spec §4.B's filtered cache walk, used by
// ReleaseExternalObjectsOnCurrentThread: it takes a snapshot of the cache
// under a read lock, releases the lock before calling keep (which may call
// into the interop library), and then takes a second, write-locked pass
// that removes only entries keep rejected and that are still present and
// unchanged — the double-locking pattern exists so that the keep predicate
// never runs while holding the cache's lock.
func (c *EOCache) snapshotFiltered(keep func(*EOC) bool) (removed int) {
	c.mu.RLock()
	snapshot := make([]*EOC, 0, len(c.entries))
	for _, e := range c.entries {
		snapshot = append(snapshot, e)
	}
	c.mu.RUnlock()

	var toRemove []*EOC
	for _, e := range snapshot {
		if !keep(e) {
			toRemove = append(toRemove, e)
		}
	}
	if len(toRemove) == 0 {
		return 0
	}

	c.mu.Lock()
	for _, e := range toRemove {
		if c.entries[e.identity] == e {
			delete(c.entries, e.identity)
			e.clearFlag(eocInCache)
			removed++
		}
	}
	c.mu.Unlock()
	return removed
}

// forEach calls fn for every currently published EOC, under a read lock.
// fn must not call back into the EOCache.
func (c *EOCache) forEach(fn func(*EOC)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		fn(e)
	}
}
