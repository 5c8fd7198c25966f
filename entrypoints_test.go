package combridge

import (
	"testing"

	"github.com/obinnaokechukwu/combridge/abi"
)

// Scenario 5: release-all-on-thread releases exactly the tracker-flagged
// EOCs created on that thread, leaving others untouched.
func TestReleaseExternalObjectsOnCurrentThread(t *testing.T) {
	b, _, pol := newTestBridge()
	const threadA uintptr = 0x1111
	const threadB uintptr = 0x2222

	for _, identity := range []uintptr{0x10, 0x20, 0x30} {
		_, err := b.TryGetOrCreateManagedProxyForNative(nil, identity, abi.CreateObjectTrackerObject, abi.ScenarioTrackerSupportGlobalInstance, nil, threadA)
		if err != nil {
			t.Fatalf("unexpected error creating proxy for %x: %v", identity, err)
		}
	}
	// A proxy on a different thread must survive the release.
	if _, err := b.TryGetOrCreateManagedProxyForNative(nil, 0x40, abi.CreateObjectTrackerObject, abi.ScenarioTrackerSupportGlobalInstance, nil, threadB); err != nil {
		t.Fatalf("unexpected error creating proxy on thread B: %v", err)
	}

	released, err := b.ReleaseExternalObjectsOnCurrentThread(nil, threadA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if released != 3 {
		t.Fatalf("expected 3 released proxies, got %d", released)
	}
	if len(pol.Released) != 1 || len(pol.Released[0]) != 3 {
		t.Fatalf("expected ReleaseObjects called once with 3 proxies, got %+v", pol.Released)
	}

	for _, identity := range []uintptr{0x10, 0x20, 0x30} {
		if _, ok := b.eocache.find(identity); ok {
			t.Fatalf("expected identity %x to be removed from EOCache after release", identity)
		}
	}
	if _, ok := b.eocache.find(0x40); !ok {
		t.Fatal("expected thread B's identity to survive the release")
	}
}

func TestGetOrCreateTrackerTargetForExternal(t *testing.T) {
	b, _, _ := newTestBridge()

	w, err := b.GetOrCreateTrackerTargetForExternal(0x99, abi.CreateObjectTrackerObject, abi.CreateComInterfaceTrackerSupport, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w == 0 {
		t.Fatal("expected a non-zero wrapper handle")
	}

	// Re-querying should converge on the same wrapper.
	w2, err := b.GetOrCreateTrackerTargetForExternal(0x99, abi.CreateObjectTrackerObject, abi.CreateComInterfaceTrackerSupport, 1)
	if err != nil {
		t.Fatalf("unexpected error on re-query: %v", err)
	}
	if w != w2 {
		t.Fatalf("expected the same tracker target, got %v and %v", w, w2)
	}
}

func TestTryInvokeICustomQueryInterfaceRejectsGCThread(t *testing.T) {
	b, _, _ := newTestBridge()

	_, _, err := b.TryInvokeICustomQueryInterface(nil, true, [16]byte{})
	if err == nil {
		t.Fatal("expected an error when invoked from the GC thread")
	}
	kind, ok := KindOf(err)
	if !ok || kind != KindWrongThreadForCustomQI {
		t.Fatalf("expected KindWrongThreadForCustomQI, got %v ok=%v", kind, ok)
	}
}

func TestTryInvokeICustomQueryInterfaceDelegatesToPolicy(t *testing.T) {
	b, _, _ := newTestBridge()

	result, _, err := b.TryInvokeICustomQueryInterface(nil, false, [16]byte{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != abi.QueryInterfaceNotHandled {
		t.Fatalf("expected QueryInterfaceNotHandled from the default testpolicy.Policy, got %v", result)
	}
}
