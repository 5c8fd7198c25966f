package handle

import (
	"sync"
	"testing"

	"github.com/obinnaokechukwu/combridge/abi"
)

func TestRegisterAndLookupRoundTrips(t *testing.T) {
	type managedObject struct {
		Name  string
		Value int
	}

	obj := &managedObject{Name: "widget", Value: 42}
	h := Register(obj)
	if h == 0 {
		t.Error("Register should return a non-zero handle")
	}

	got, ok := Lookup(h)
	if !ok {
		t.Fatal("Lookup should find a registered handle")
	}
	gotObj, ok := got.(*managedObject)
	if !ok {
		t.Fatalf("Lookup returned wrong type: %T", got)
	}
	if gotObj.Name != "widget" || gotObj.Value != 42 {
		t.Errorf("Lookup returned wrong data: %+v", gotObj)
	}

	Unregister(h)
	if _, ok := Lookup(h); ok {
		t.Error("expected no value after Unregister")
	}
}

func TestLookupRejectsUnknownAndStaleHandles(t *testing.T) {
	if _, ok := Lookup(abi.Handle(999999)); ok {
		t.Error("Lookup of a never-issued handle should report not found")
	}

	h := Register("managed string")
	Unregister(h)
	if _, ok := Lookup(h); ok {
		t.Error("Lookup of an unregistered handle should report not found, not stale data")
	}
}

// TestUnregisterRecyclesSlot pins down the table's slot-reuse discipline:
// a freed slot is handed back out by the next Register rather than the
// table growing unboundedly, which is the whole reason this table is a
// slot array plus free list instead of a map keyed by a monotonic counter.
func TestUnregisterRecyclesSlot(t *testing.T) {
	before := len(slots)
	// A slot freed by an earlier test is reused without growing the table.
	wantLen := before
	if len(free) == 0 {
		wantLen++
	}

	h1 := Register("first")
	Unregister(h1)

	h2 := Register("second")
	defer Unregister(h2)

	if h2 != h1 {
		t.Errorf("expected Unregister(%d) to free its slot for immediate reuse, got new handle %d", h1, h2)
	}
	if len(slots) != wantLen {
		t.Errorf("expected the table to grow to exactly %d slots, got %d -> %d", wantLen, before, len(slots))
	}
}

func TestConcurrentRegisterLookupUnregister(t *testing.T) {
	const numGoroutines = 100
	const numOps = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				obj := struct{ ID, Seq int }{id, j}
				h := Register(&obj)
				if _, ok := Lookup(h); !ok {
					t.Errorf("Lookup returned not-found for handle %d", h)
				}
				Unregister(h)
			}
		}(i)
	}

	wg.Wait()
}

func TestConcurrentHandlesNeverAlias(t *testing.T) {
	const n = 1000

	var mu sync.Mutex
	seen := make(map[abi.Handle]bool, n)
	live := make([]abi.Handle, 0, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			h := Register(i)
			mu.Lock()
			if seen[h] {
				t.Errorf("handle %d was live twice simultaneously", h)
			}
			seen[h] = true
			live = append(live, h)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	for _, h := range live {
		Unregister(h)
	}
}

func TestCountTracksLiveHandlesAcrossReuse(t *testing.T) {
	start := Count()

	h1 := Register("a")
	h2 := Register("b")
	if got := Count(); got != start+2 {
		t.Fatalf("Count = %d, want %d", got, start+2)
	}

	Unregister(h1)
	if got := Count(); got != start+1 {
		t.Fatalf("Count after one Unregister = %d, want %d", got, start+1)
	}

	h3 := Register("c") // should recycle h1's slot, not grow the table
	if got := Count(); got != start+2 {
		t.Fatalf("Count after recycling Register = %d, want %d", got, start+2)
	}

	Unregister(h2)
	Unregister(h3)
	if got := Count(); got != start {
		t.Fatalf("Count after cleanup = %d, want %d", got, start)
	}
}
