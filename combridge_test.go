package combridge

import (
	"testing"

	"github.com/obinnaokechukwu/combridge/interop/fake"
	"github.com/obinnaokechukwu/combridge/policy"
	"github.com/obinnaokechukwu/combridge/policy/testpolicy"
	"github.com/obinnaokechukwu/combridge/syncblock"
)

// testManaged is the managed-object stand-in shared by this package's own
// tests: a minimal ManagedObject with nothing but a sync-block slot and a
// label.
type testManaged struct {
	syncblock.Slot
	Name string
}

func (m *testManaged) SyncBlock() *syncblock.Slot   { return &m.Slot }
func (m *testManaged) WeakSelf() syncblock.WeakSelf { return syncblock.NewWeakSelf(m) }

// newTestBridge wires a Bridge to the in-process fake interop library and a
// fresh testpolicy.Policy registered as the global instance, returning both
// so tests can drive policy behavior directly.
func newTestBridge() (*Bridge, *fake.Library, *testpolicy.Policy) {
	lib := fake.New()
	pol := testpolicy.New()
	b := New(Deps{Library: lib, GlobalPolicy: pol})
	return b, lib, pol
}

// fakeLibraryAndManaged returns a bare fake.Library (no policy wired in) and
// a fresh testManaged, for tests that exercise the no-global-instance
// failure path.
func fakeLibraryAndManaged(t *testing.T) (*fake.Library, *testManaged) {
	t.Helper()
	return fake.New(), &testManaged{Name: "M"}
}

var _ policy.Policy = (*testpolicy.Policy)(nil)
