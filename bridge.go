// Package combridge bridges a managed, tracing-GC'd object heap and an
// externally refcounted native object model: it is the process-wide
// authority on "does this external identity already have a managed proxy"
// and "does this managed object already have a native wrapper", and it
// coordinates with the managed GC to keep cross-heap reference cycles
// collectible.
//
// A Bridge is built once per process with New, wired to an interop.Library
// (component for v-table construction and method thunking) and, optionally,
// a policy.Policy registered as the global instance (component E). Most
// callers only ever call TryGetOrCreateNativeWrapperForManaged and
// TryGetOrCreateManagedProxyForNative; the GC-hook and pegging entry points
// exist for the runtime embedding this module to drive.
package combridge

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/obinnaokechukwu/combridge/interop"
	"github.com/obinnaokechukwu/combridge/policy"
)

// Bridge is the top-level object tying together the EOCache (component B),
// the RefCache (component C), the wrapping service (component D), GC
// coordination (component F), global pegging (component G), and global
// instance dispatch (component E).
type Bridge struct {
	library interop.Library
	logger  *logrus.Entry
	metrics *Metrics

	eocache  *EOCache
	refcache *RefCache

	pegged atomic.Bool

	globalInstanceMu sync.Mutex
	globalInstance   policy.Policy
	globalRegistered bool

	// gcBarrier approximates the host's cooperative-suspension guarantee
	// (spec §5): ordinary wrapping-service calls hold it for reading, the GC
	// hooks hold it for writing, so no wrapping-service step ever races a
	// tracking window. A real host suspends every mutator thread instead;
	// Go has no such primitive, so this is a deliberate, documented
	// simplification (see DESIGN.md, "gcBarrier").
	gcBarrier sync.RWMutex

	gcMu        sync.Mutex
	gcDepth     int // nested OnGCStarted/OnGCFinished guard (spec §4.F)
	gcActiveCtx *trackingContext
}

// New constructs a Bridge. deps.Library must be non-nil; deps.GlobalPolicy
// may be nil, in which case scenarios that require a global instance fail
// with ErrNoGlobalInstance until SetGlobalInstanceRegisteredForMarshalling
// installs one.
func New(deps Deps, opts ...Option) *Bridge {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	b := &Bridge{
		library:  deps.Library,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		eocache:  NewEOCache(),
		refcache: NewRefCache(),
	}
	if deps.GlobalPolicy != nil {
		b.globalInstance = policy.Guarded(deps.GlobalPolicy)
		b.globalRegistered = true
	}
	return b
}

// policyFor resolves which Policy drives a call: impl when the caller
// supplied one (ScenarioInstance), otherwise the registered global instance,
// returning ErrNoGlobalInstance if none has been registered (component E).
func (b *Bridge) policyFor(impl policy.Policy) (policy.Policy, error) {
	if impl != nil {
		return impl, nil
	}
	b.globalInstanceMu.Lock()
	defer b.globalInstanceMu.Unlock()
	if b.globalInstance == nil {
		return nil, ErrNoGlobalInstance
	}
	return b.globalInstance, nil
}
