package combridge

import "github.com/obinnaokechukwu/combridge/syncblock"

// ManagedObject is the interface a managed-heap type implements to
// participate in the bridge (spec §2's managed side): a sync-block slot to
// host the bridge's MOW/EOC back-pointers, and a WeakSelf so the bridge can
// name the object without keeping it reachable on its own.
//
// A typical implementation embeds syncblock.Slot and forwards WeakSelf:
//
//	type MyManagedThing struct {
//		syncblock.Slot
//		// ... managed fields ...
//	}
//
//	func (t *MyManagedThing) SyncBlock() *syncblock.Slot  { return &t.Slot }
//	func (t *MyManagedThing) WeakSelf() syncblock.WeakSelf { return syncblock.NewWeakSelf(t) }
type ManagedObject interface {
	SyncBlock() *syncblock.Slot
	WeakSelf() syncblock.WeakSelf
}
