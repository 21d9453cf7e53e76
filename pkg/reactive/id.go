package reactive

import "sync/atomic"

// idCounter is the source of ids for signals and listeners.
var idCounter atomic.Uint64

// NextID returns a process-unique, monotonically increasing id. Component
// instances use it so their ids never collide with signal ids.
func NextID() uint64 {
	return idCounter.Add(1)
}
