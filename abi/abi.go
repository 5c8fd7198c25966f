// Package abi defines the small set of numeric types and flag sets shared
// between the bridge, the interop library contract, and the managed-policy
// upcall contract. Keeping them in one leaf package lets combridge, interop,
// and policy all depend on the vocabulary without depending on each other.
package abi

// Handle is an opaque, process-unique reference to a managed object, valid
// for passing across the native boundary. It is produced by an internal
// handle table (see internal/handle) and resolved back to the managed
// object by the same table; it carries no GC rooting semantics of its own
// beyond "the table holds a strong Go reference while this handle exists".
type Handle uintptr

// WrapperHandle is an opaque native pointer to a managed-object wrapper
// (MOW), owned and laid out entirely by an interop.Library implementation.
// The bridge never dereferences it.
type WrapperHandle uintptr

// Scenario selects which managed policy (if any) drives vtable computation
// and object construction. Numeric values are part of the wire contract
// with the managed-policy upcalls and must not be renumbered.
type Scenario int

const (
	// ScenarioInstance uses a caller-supplied policy (the impl argument).
	ScenarioInstance Scenario = 0
	// ScenarioTrackerSupportGlobalInstance uses the registered global
	// policy; GetOrCreateTrackerTargetForExternal uses it throughout.
	ScenarioTrackerSupportGlobalInstance Scenario = 1
	// ScenarioMarshallingGlobalInstance uses the registered global policy
	// for pure marshaling round-trips (enables the unwrap probe).
	ScenarioMarshallingGlobalInstance Scenario = 2
)

func (s Scenario) String() string {
	switch s {
	case ScenarioInstance:
		return "Instance"
	case ScenarioTrackerSupportGlobalInstance:
		return "TrackerSupportGlobalInstance"
	case ScenarioMarshallingGlobalInstance:
		return "MarshallingGlobalInstance"
	default:
		return "Scenario(unknown)"
	}
}

// CreateObjectFlags controls how a managed proxy is constructed and cached
// for an external identity. Bit-compatible with the managed enum of the
// same name; values are a bitmask.
type CreateObjectFlags uint32

const (
	CreateObjectNone          CreateObjectFlags = 0
	CreateObjectTrackerObject CreateObjectFlags = 1 << 0
	CreateObjectUniqueInstance CreateObjectFlags = 1 << 1
	CreateObjectAggregated    CreateObjectFlags = 1 << 2
	CreateObjectUnwrap        CreateObjectFlags = 1 << 3
)

func (f CreateObjectFlags) Has(bit CreateObjectFlags) bool { return f&bit != 0 }

// CreateComInterfaceFlags controls how a native wrapper's v-table set is
// computed. Bit-compatible with the managed enum of the same name.
type CreateComInterfaceFlags uint32

const (
	CreateComInterfaceNone              CreateComInterfaceFlags = 0
	CreateComInterfaceCallerDefinedIUnknown CreateComInterfaceFlags = 1 << 0
	CreateComInterfaceTrackerSupport    CreateComInterfaceFlags = 1 << 1
)

func (f CreateComInterfaceFlags) Has(bit CreateComInterfaceFlags) bool { return f&bit != 0 }

// IdentityVtable holds the three function pointers implementing the base
// identity interface (type-query, reference-increment, reference-decrement),
// as produced by an interop.Library's GetIdentityVtableImpl.
type IdentityVtable struct {
	QueryInterface uintptr
	AddRef         uintptr
	Release        uintptr
}

// QueryInterfaceResult enumerates the outcome of a CallICustomQueryInterface
// upcall.
type QueryInterfaceResult int

const (
	QueryInterfaceHandled QueryInterfaceResult = iota
	QueryInterfaceNotHandled
	QueryInterfaceFailed
)
