// Package testpolicy is a reference policy.Policy used by the bridge's own
// test suite. It manufactures trivial managed objects and sentinel vtables
// instead of real v-table layouts, the same way ffgo's low-level packages
// expose narrow, single-purpose constructors for their test fixtures.
package testpolicy

import (
	"github.com/obinnaokechukwu/combridge/abi"
	"github.com/obinnaokechukwu/combridge/policy"
	"github.com/obinnaokechukwu/combridge/syncblock"
)

// ManagedObject is the stand-in "managed object" type used by tests: any
// Go struct could play this role, but having one concrete type keeps test
// assertions simple.
type ManagedObject struct {
	ID int
}

// ExternalProxy is the stand-in managed proxy CreateObject returns for an
// external identity. It embeds syncblock.Slot and implements WeakSelf so it
// satisfies whatever ManagedObject-shaped interface the caller (typically
// combridge.ManagedObject) requires.
type ExternalProxy struct {
	syncblock.Slot
	Identity uintptr
}

// SyncBlock gives ExternalProxy a sync-block slot.
func (p *ExternalProxy) SyncBlock() *syncblock.Slot { return &p.Slot }

// WeakSelf gives ExternalProxy a weak, type-erased self reference.
func (p *ExternalProxy) WeakSelf() syncblock.WeakSelf { return syncblock.NewWeakSelf(p) }

// Policy is a deterministic, in-memory policy.Policy.
type Policy struct {
	// VtableFor, if set, is called instead of the default sentinel vtable.
	VtableFor func(instance abi.Handle) []uintptr
	// nextProxyID counts the proxies the default CreateObject path has
	// built. It is not stored on the proxy; ExternalProxy.Identity is the
	// external identity the proxy was created for.
	nextProxyID int
	// CreateObjectFor, if set, overrides proxy construction entirely
	// (e.g. to return nil and simulate ErrNullResult).
	CreateObjectFor func(identity uintptr, flags abi.CreateObjectFlags) (any, error)

	Released [][]any
}

var _ policy.Policy = (*Policy)(nil)

// New returns a ready-to-use Policy.
func New() *Policy {
	return &Policy{}
}

// ComputeVtables implements policy.Policy.
func (p *Policy) ComputeVtables(scenario abi.Scenario, impl any, instance abi.Handle, flags abi.CreateComInterfaceFlags) ([]uintptr, error) {
	if p.VtableFor != nil {
		return p.VtableFor(instance), nil
	}
	// A single sentinel function-pointer slot stands in for a real
	// v-table; its value is never dereferenced by anything in this
	// module.
	return []uintptr{0xC0FFEE}, nil
}

// CreateObject implements policy.Policy.
func (p *Policy) CreateObject(scenario abi.Scenario, impl any, identity uintptr, flags abi.CreateObjectFlags) (any, error) {
	if p.CreateObjectFor != nil {
		return p.CreateObjectFor(identity, flags)
	}
	p.nextProxyID++
	return &ExternalProxy{Identity: identity}, nil
}

// ReleaseObjects implements policy.Policy.
func (p *Policy) ReleaseObjects(impl any, managed []any) error {
	p.Released = append(p.Released, managed)
	return nil
}

// CallICustomQueryInterface implements policy.Policy.
func (p *Policy) CallICustomQueryInterface(impl any, iid [16]byte) (abi.QueryInterfaceResult, any, error) {
	return abi.QueryInterfaceNotHandled, nil, nil
}
