package reactive

// Listener is anything the Scheduler can flush. Component instances
// implement it; tests use small fakes.
type Listener interface {
	// ID identifies the listener for set semantics in the pending queue and
	// for subscriber deduplication.
	ID() uint64

	// Flush re-renders the listener. It runs at most once per scheduler flush.
	Flush()
}

// ListenerFunc adapts a function to Listener with a fresh id.
func ListenerFunc(fn func()) Listener {
	return &funcListener{id: NextID(), fn: fn}
}

type funcListener struct {
	id uint64
	fn func()
}

func (l *funcListener) ID() uint64 { return l.id }
func (l *funcListener) Flush()     { l.fn() }
