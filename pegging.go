package combridge

// Pegged reports the current state of the global pegging flag (component
// G, spec §4.G). No semantics beyond the flag itself are implemented at
// this layer; the tracker runtime observes it through the interop library.
func (b *Bridge) Pegged() bool { return b.pegged.Load() }

// SetPegged sets the global pegging flag.
func (b *Bridge) SetPegged(v bool) { b.pegged.Store(v) }
