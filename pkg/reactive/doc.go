// Package reactive provides kiln's signal primitive, the batching Scheduler
// and the single-threaded host Loop that drives both.
//
// # Ownership
//
// Signals use explicit ownership. A component instance subscribes to the
// signals its setup returned; writing a signal enqueues exactly those
// subscribers. Reading a signal never subscribes anyone.
//
// # Batching
//
// Writes never re-render synchronously. The first write that makes the
// Scheduler's pending set non-empty queues a flush microtask; all later
// writes in the same task join that flush:
//
//	loop := reactive.NewLoop()
//	sched := reactive.NewScheduler(loop)
//	count := reactive.NewSignal(sched, 0)
//
//	loop.Do(func() {
//	    count.Set(1)
//	    count.Set(2)
//	    count.Set(3)
//	}) // one flush, watchers see (3, 0)
//
// Writes made while a flush is running are rendered by the next flush. A
// chain of more than MaxFlushCascade flushes, each scheduled from inside the
// previous one, is treated as an update loop: the pending set is dropped and
// a scheduler error is reported.
//
// # Threading
//
// Nothing in this package locks. Signals and the Scheduler belong to the
// goroutine that runs the Loop; other goroutines hand work to it with
// Loop.Submit or Loop.Call.
package reactive
