package combridge

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/obinnaokechukwu/combridge/abi"
	"github.com/obinnaokechukwu/combridge/internal/handle"
)

// TestCrossHeapCycleReferenceTrackingWindow is the module's one
// testify-based integration test (see DESIGN.md): it drives a full major-GC
// tracking window end to end — OnGCStarted, a tracker runtime reporting an
// edge through an external black box, OnGCFinished — and checks the
// resulting RefCache state against scenario 6 ("cycle reclamation").
//
// M1 holds N1 (external) by way of N1's managed proxy; N1 itself
// (opaquely, as the tracker runtime would discover by walking its own
// native graph) holds M2. The tracking window must turn that into a direct
// RefCache dependent link proxy(N1)→M2, which is what ultimately makes the
// M1↔N1↔M2 cycle collectible as one unit when nothing external roots N1.
func TestCrossHeapCycleReferenceTrackingWindow(t *testing.T) {
	b, _, _ := newTestBridge()

	m2 := &testManaged{Name: "M2"}
	n1Proxy, err := b.TryGetOrCreateManagedProxyForNative(nil, 0xBEEF, abi.CreateObjectTrackerObject, abi.ScenarioTrackerSupportGlobalInstance, nil, 1)
	require.NoError(t, err)
	n1ProxyMO, ok := n1Proxy.(ManagedObject)
	require.True(t, ok)

	eoc, ok := b.eocache.find(0xBEEF)
	require.True(t, ok, "expected N1's EOC to be published")

	require.NoError(t, b.OnGCStarted(2))
	require.True(t, b.refcache.len() == 0, "RefCache must start empty in a fresh window")

	m2Handle := handle.Register(m2)
	defer handle.Unregister(m2Handle)

	recorded, err := b.FoundReferencePath(eoc, m2Handle)
	require.NoError(t, err)
	require.True(t, recorded)

	require.Equal(t, 1, b.refcache.len())
	targets := b.refcache.targetsOf(n1ProxyMO)
	require.Len(t, targets, 1)
	require.Same(t, m2, targets[0])

	require.NoError(t, b.OnGCFinished(2))

	// The edge survives OnGCFinished (it pins until the *next* window's
	// clear, per the documented RefCache liveness approximation), but a
	// fresh window must start from zero again.
	require.Equal(t, 1, b.refcache.len())
	require.NoError(t, b.OnGCStarted(2))
	require.Equal(t, 0, b.refcache.len())
	require.NoError(t, b.OnGCFinished(2))
}

// TestCycleReclamationWithExternalRootSurvives is scenario 6's converse: if
// something outside the bridge keeps N1's proxy reachable, MarkExternalComObjectContextCollected
// must never fire, and the EOC stays published.
func TestCycleReclamationWithExternalRootSurvives(t *testing.T) {
	b, _, _ := newTestBridge()

	root, err := b.TryGetOrCreateManagedProxyForNative(nil, 0xF00D, abi.CreateObjectTrackerObject, abi.ScenarioTrackerSupportGlobalInstance, nil, 1)
	require.NoError(t, err)

	eoc, ok := b.eocache.find(0xF00D)
	require.True(t, ok)
	require.False(t, eoc.Collected())

	runtime.GC()
	runtime.GC()

	_, ok = eoc.Target()
	require.True(t, ok, "a rooted proxy must still resolve through the weak back-pointer")
	require.True(t, eoc.InCache())
	runtime.KeepAlive(root)
}
