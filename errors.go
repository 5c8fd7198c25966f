package combridge

import (
	"errors"
	"fmt"
)

// Kind enumerates the bridge's error kinds (spec §7).
type Kind int

const (
	// KindNullPolicyResult: CreateObject returned nil when a non-nil
	// result was required.
	KindNullPolicyResult Kind = iota
	// KindAlreadyBound: the caller's wrapperMaybe already hosts an EOC.
	KindAlreadyBound
	// KindInteropFailure: the interop library returned a failing status.
	KindInteropFailure
	// KindPolicyUpcallFailure: a managed upcall returned an error.
	KindPolicyUpcallFailure
	// KindWrongThreadForCustomQI: tryInvokeICustomQueryInterface was
	// invoked from the GC thread.
	KindWrongThreadForCustomQI
	// KindThreadAttachFailure: unable to attach the calling thread to the
	// managed runtime.
	KindThreadAttachFailure
)

func (k Kind) String() string {
	switch k {
	case KindNullPolicyResult:
		return "NullPolicyResult"
	case KindAlreadyBound:
		return "AlreadyBound"
	case KindInteropFailure:
		return "InteropFailure"
	case KindPolicyUpcallFailure:
		return "PolicyUpcallFailure"
	case KindWrongThreadForCustomQI:
		return "WrongThreadForCustomQI"
	case KindThreadAttachFailure:
		return "ThreadAttachFailure"
	default:
		return "Unknown"
	}
}

// BridgeError is the bridge's wrapped error type, carrying a Kind plus the
// underlying cause so errors.Is/errors.As both work (spec §7 propagation
// policy: "no error is swallowed at this layer except the idempotent 'MOW
// already present' loser path").
type BridgeError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *BridgeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("combridge: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("combridge: %s: %s", e.Op, e.Kind)
}

func (e *BridgeError) Unwrap() error { return e.Err }

func newBridgeErr(op string, kind Kind, err error) error {
	return &BridgeError{Op: op, Kind: kind, Err: err}
}

// Sentinel errors for common, stateless failures.
var (
	// ErrNotSupported is returned when a proxy's sync-block slot already
	// hosts an EOC and the caller's wrapperMaybe cannot be bound (spec
	// §4.D.2 step 7, KindAlreadyBound).
	ErrNotSupported = errors.New("combridge: operation not supported in this state")

	// ErrOnGCThread is returned by tryInvokeICustomQueryInterface when
	// invoked from the GC thread (spec §4.H, KindWrongThreadForCustomQI).
	ErrOnGCThread = errors.New("combridge: cannot invoke from the GC thread")

	// ErrFailedToInvoke is returned when attaching the calling thread to
	// the managed runtime fails (spec §4.H, KindThreadAttachFailure).
	ErrFailedToInvoke = errors.New("combridge: failed to attach calling thread")

	// ErrAlreadyRegistered is returned by
	// SetGlobalInstanceRegisteredForMarshalling on a second call (spec §9
	// supplemented one-shot behavior).
	ErrAlreadyRegistered = errors.New("combridge: global instance already registered for marshalling")

	// ErrNoGlobalInstance is returned when a global-instance scenario is
	// requested but no policy has been registered (component E).
	ErrNoGlobalInstance = errors.New("combridge: no global instance policy registered")

	// ErrUndersizedExternalStorage is returned when the interop library
	// allocates less storage for an EOC than the bridge requested (spec §9
	// open question: "an implementation should assert the returned size
	// against sizeof(EOC)").
	ErrUndersizedExternalStorage = errors.New("combridge: interop library returned undersized EOC storage")

	// ErrEOCNotCollected is returned by DestroyExternalComObjectContext when
	// called on an EOC that has not been marked Collected — a precondition
	// violation the original source asserts against (spec §4.F).
	ErrEOCNotCollected = errors.New("combridge: destroying an EOC that was never marked collected")
)

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *BridgeError.
func KindOf(err error) (Kind, bool) {
	var be *BridgeError
	if errors.As(err, &be) {
		return be.Kind, true
	}
	return 0, false
}
