package combridge

import (
	"sync"
	"testing"

	"github.com/obinnaokechukwu/combridge/abi"
	"github.com/obinnaokechukwu/combridge/internal/handle"
)

// Scenario 1: create, re-query — two calls for the same managed object
// return the same MOW.
func TestCreateNativeWrapperReQueryReturnsSameWrapper(t *testing.T) {
	b, _, _ := newTestBridge()
	m := &testManaged{Name: "M"}

	w1, err := b.TryGetOrCreateNativeWrapperForManaged(nil, m, abi.CreateComInterfaceTrackerSupport, abi.ScenarioTrackerSupportGlobalInstance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w2, err := b.TryGetOrCreateNativeWrapperForManaged(nil, m, abi.CreateComInterfaceTrackerSupport, abi.ScenarioTrackerSupportGlobalInstance)
	if err != nil {
		t.Fatalf("unexpected error on re-query: %v", err)
	}

	if w1 != w2 {
		t.Fatalf("expected the same wrapper, got %v and %v", w1, w2)
	}
}

// P8: concurrent calls for the same managed object must produce exactly one
// MOW stored in the sync-block.
func TestConcurrentCreateNativeWrapperProducesOneWinner(t *testing.T) {
	b, _, _ := newTestBridge()
	m := &testManaged{Name: "M"}

	const n = 32
	results := make([]abi.WrapperHandle, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = b.TryGetOrCreateNativeWrapperForManaged(nil, m, abi.CreateComInterfaceNone, abi.ScenarioTrackerSupportGlobalInstance)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("goroutine %d: unexpected error: %v", i, err)
		}
	}
	first := results[0]
	for i, w := range results {
		if w != first {
			t.Fatalf("goroutine %d returned %v, want %v (exactly one winner expected)", i, w, first)
		}
	}

	ref, ok := m.SyncBlock().TryGetMOW()
	if !ok || ref.Wrapper != first {
		t.Fatalf("sync-block slot does not agree with returned wrapper: %+v ok=%v", ref, ok)
	}
}

func TestCreateNativeWrapperReactivatesInactiveWrapper(t *testing.T) {
	b, lib, _ := newTestBridge()
	m := &testManaged{Name: "M"}

	w1, err := b.TryGetOrCreateNativeWrapperForManaged(nil, m, abi.CreateComInterfaceNone, abi.ScenarioTrackerSupportGlobalInstance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lib.Deactivate(w1)
	if lib.IsActiveWrapper(w1) {
		t.Fatal("expected wrapper to be inactive after Deactivate")
	}

	w2, err := b.TryGetOrCreateNativeWrapperForManaged(nil, m, abi.CreateComInterfaceNone, abi.ScenarioTrackerSupportGlobalInstance)
	if err != nil {
		t.Fatalf("unexpected error on reactivation path: %v", err)
	}
	if w1 != w2 {
		t.Fatalf("reactivation should preserve native identity: got %v, want %v", w2, w1)
	}
	if !lib.IsActiveWrapper(w2) {
		t.Fatal("expected wrapper to be active again after reactivation")
	}
}

// A full create-then-destroy cycle must leave no abi.Handle pinned in
// internal/handle behind it: DestroyManagedObjectWrapper is the only place
// that unregisters the handle TryGetOrCreateNativeWrapperForManaged
// registered, so a leak here would pin every wrapped object for the rest of
// the process.
func TestDestroyManagedObjectWrapperReleasesHandle(t *testing.T) {
	b, _, _ := newTestBridge()
	m := &testManaged{Name: "M"}
	baseline := handle.Count()

	if _, err := b.TryGetOrCreateNativeWrapperForManaged(nil, m, abi.CreateComInterfaceNone, abi.ScenarioTrackerSupportGlobalInstance); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := handle.Count(); got != baseline+1 {
		t.Fatalf("expected exactly one new handle after wrapping, got %d -> %d", baseline, got)
	}

	b.DestroyManagedObjectWrapper(m)
	if got := handle.Count(); got != baseline {
		t.Fatalf("expected handle.Count() to return to baseline %d after destroy, got %d", baseline, got)
	}

	if _, ok := m.SyncBlock().TryGetMOW(); ok {
		t.Fatal("expected the MOW slot to be cleared after DestroyManagedObjectWrapper")
	}
}

// Reactivation retires the handle that pinned the managed object for the
// wrapper's previous lifetime, not just the wrapper's native identity.
func TestReactivationReleasesSupersededHandle(t *testing.T) {
	b, lib, _ := newTestBridge()
	m := &testManaged{Name: "M"}
	baseline := handle.Count()

	w1, err := b.TryGetOrCreateNativeWrapperForManaged(nil, m, abi.CreateComInterfaceNone, abi.ScenarioTrackerSupportGlobalInstance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := handle.Count(); got != baseline+1 {
		t.Fatalf("expected exactly one handle after first wrap, got %d -> %d", baseline, got)
	}

	lib.Deactivate(w1)
	if _, err := b.TryGetOrCreateNativeWrapperForManaged(nil, m, abi.CreateComInterfaceNone, abi.ScenarioTrackerSupportGlobalInstance); err != nil {
		t.Fatalf("unexpected error on reactivation path: %v", err)
	}

	if got := handle.Count(); got != baseline+1 {
		t.Fatalf("expected reactivation to retire the superseded handle, got %d -> %d (baseline %d)", baseline, got, baseline)
	}

	b.DestroyManagedObjectWrapper(m)
	if got := handle.Count(); got != baseline {
		t.Fatalf("expected handle.Count() to return to baseline %d after destroy, got %d", baseline, got)
	}
}

func TestCreateNativeWrapperFailsWithoutPolicy(t *testing.T) {
	lib, m := fakeLibraryAndManaged(t)
	b := New(Deps{Library: lib})

	_, err := b.TryGetOrCreateNativeWrapperForManaged(nil, m, abi.CreateComInterfaceNone, abi.ScenarioTrackerSupportGlobalInstance)
	if err == nil {
		t.Fatal("expected an error when no global instance policy is registered")
	}
	kind, ok := KindOf(err)
	if !ok || kind != KindPolicyUpcallFailure {
		t.Fatalf("expected KindPolicyUpcallFailure, got %v ok=%v", kind, ok)
	}
}
