package combridge

import "github.com/obinnaokechukwu/combridge/policy"

// SetGlobalInstanceRegisteredForMarshalling installs p as the process-wide
// global-instance policy used by ScenarioTrackerSupportGlobalInstance and
// ScenarioMarshallingGlobalInstance calls that pass a nil impl (component
// E). This is a one-shot operation: the original CoreCLR interop layer
// rejects a second registration outright rather than silently replacing the
// first (see SPEC_FULL.md §9, "Supplemented from original_source/" — spec.md
// itself is silent on re-registration). A second call returns
// ErrAlreadyRegistered and leaves the existing registration untouched.
func (b *Bridge) SetGlobalInstanceRegisteredForMarshalling(p policy.Policy) error {
	if p == nil {
		return newBridgeErr("SetGlobalInstanceRegisteredForMarshalling", KindNullPolicyResult, nil)
	}
	b.globalInstanceMu.Lock()
	defer b.globalInstanceMu.Unlock()
	if b.globalRegistered {
		return ErrAlreadyRegistered
	}
	b.globalInstance = policy.Guarded(p)
	b.globalRegistered = true
	return nil
}

// GlobalInstanceRegistered reports whether a global-instance policy has
// been installed, either at construction (Deps.GlobalPolicy) or via
// SetGlobalInstanceRegisteredForMarshalling.
func (b *Bridge) GlobalInstanceRegistered() bool {
	b.globalInstanceMu.Lock()
	defer b.globalInstanceMu.Unlock()
	return b.globalInstance != nil
}
