// Command combridge-demo exercises a Bridge end to end against the
// in-process fake interop library, with no real native component involved.
//
// Usage: combridge-demo [identity]
//
// identity is a Go integer literal (decimal, or hex with a 0x prefix) and
// defaults to 0xC0FFEE; it is only used to label the managed object.
//
// It creates a native wrapper for a managed object, round-trips that
// wrapper's identity back through the marshaling scenario, and prints
// whether the round trip recovered the original object.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/obinnaokechukwu/combridge"
	"github.com/obinnaokechukwu/combridge/abi"
	"github.com/obinnaokechukwu/combridge/interop/fake"
	"github.com/obinnaokechukwu/combridge/policy/testpolicy"
	"github.com/obinnaokechukwu/combridge/syncblock"
)

// demoObject is the minimal managed type this demo wraps: a sync-block slot
// plus a label, the same shape any embedder's own managed type would take.
type demoObject struct {
	syncblock.Slot
	Label string
}

func (d *demoObject) SyncBlock() *syncblock.Slot   { return &d.Slot }
func (d *demoObject) WeakSelf() syncblock.WeakSelf { return syncblock.NewWeakSelf(d) }

func main() {
	identity := uint64(0xC0FFEE)
	if len(os.Args) > 1 {
		parsed, err := strconv.ParseUint(os.Args[1], 0, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid identity %q: %v\n", os.Args[1], err)
			os.Exit(1)
		}
		identity = parsed
	}

	bridge := combridge.New(combridge.Deps{
		Library:      fake.New(),
		GlobalPolicy: testpolicy.New(),
	})

	obj := &demoObject{Label: fmt.Sprintf("managed-%x", identity)}

	wrapper, err := bridge.TryGetOrCreateNativeWrapperForManaged(nil, obj, abi.CreateComInterfaceTrackerSupport, abi.ScenarioTrackerSupportGlobalInstance)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create native wrapper: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("created wrapper %#x for %q\n", uintptr(wrapper), obj.Label)

	proxy, err := bridge.TryGetOrCreateManagedProxyForNative(nil, uintptr(wrapper), abi.CreateObjectTrackerObject, abi.ScenarioMarshallingGlobalInstance, nil, 1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to round-trip wrapper: %v\n", err)
		os.Exit(1)
	}

	if proxy == any(obj) {
		fmt.Println("round trip recovered the original managed object")
	} else {
		fmt.Printf("round trip produced a distinct proxy: %+v\n", proxy)
	}
}
