// Package exclusive provides fair, bounded mutual-exclusion primitives
// and a guarded-resource wrapper built on top of them.
//
// Two lock implementations are offered, both FIFO and both bounded at
// construction time instead of growing to fit contention:
//
//   - [TicketMutex]: an array of slots dealt out in ticket order. Simple
//     and cache-friendly, but a caller drawing a ticket beyond the ring's
//     size returns [ErrOverflow] instead of blocking.
//   - [CLHMutex]: a CLH queue lock backed by a fixed pool of recyclable
//     nodes. Supports deadline-bounded acquisition and reports how many
//     threads have queued, at the cost of a small pool-management layer
//     the array-slot mutex does not need.
//
// # Quick Start
//
//	mut := exclusive.NewTicketMutex(4)
//	tok, err := mut.Acquire()
//	if err != nil {
//	    // more than 4 concurrent acquirers; ErrOverflow
//	    return err
//	}
//	defer mut.Release(tok)
//
//	clh := exclusive.NewCLHMutex(4)
//	ctok, err := clh.TryAcquireUntil(time.Now().Add(100 * time.Millisecond))
//	if exclusive.IsNotAcquired(err) {
//	    // did not acquire before the deadline
//	    return err
//	}
//	defer clh.Release(ctok)
//
// # Guarded resources
//
// [Resource] pairs a value with a lock so the value is reachable only
// through a scoped guard, mirroring RAII in a language without
// destructors: acquire returns a guard, and the guard's Close releases
// the lock.
//
//	res := exclusive.NewGuardedCLH(make([]int, 0, 16), 8)
//
//	guard, err := res.Access()
//	if err != nil {
//	    return err
//	}
//	defer guard.Close()
//	*guard.Value() = append(*guard.Value(), 1)
//
// A deadline-bounded variant is available when the underlying lock
// supports it:
//
//	guard, err := res.AccessWithin(50 * time.Millisecond)
//	if err != nil {
//	    return err
//	}
//	defer guard.Close()
//	if !guard.Acquired() {
//	    return exclusive.ErrNotAcquired
//	}
//	*guard.Value() = append(*guard.Value(), 2)
//
// # Choosing between TicketMutex and CLHMutex
//
// Use [TicketMutex] when the maximum number of concurrent acquirers is
// known and fixed, and overflow should be a loud, immediate error rather
// than a wait. Use [CLHMutex] when callers need TryAcquire/TryAcquireUntil
// semantics, or when contention above the pool size should degrade to
// waiting (the default) rather than failing outright.
//
// # Error Handling
//
// Every fallible operation returns a plain error, classified with
// [IsOverflow], [IsExhausted], [IsNotAcquired], or [IsSemantic]:
//
//	tok, err := clh.TryAcquire()
//	switch {
//	case err == nil:
//	    defer clh.Release(tok)
//	case exclusive.IsNotAcquired(err):
//	    // lock was contended; try again later
//	default:
//	    // unexpected: pool misconfigured
//	}
//
// [ErrNotAcquired] is a control flow signal, mirroring
// [code.hybscloud.com/iox.ErrWouldBlock] elsewhere in the ecosystem:
// callers in a retry loop should treat it the same way. [ErrOverflow] and
// [ErrExhausted] are failures with no backoff-and-retry resolution.
//
// # Fairness
//
// Both mutexes grant access strictly in acquisition order: no thread that
// joins the queue or draws a ticket later can be granted the lock before
// a thread that joined or drew earlier, even under heavy contention.
// [CLHMutex.QueueCount] exposes the running count of successful queue
// admissions, purely for tests that assert on fairness.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomic primitives
// with explicit memory ordering, [code.hybscloud.com/spin] for the hot
// spin phases of both locks, and [code.hybscloud.com/iox] for the
// pool-exhaustion backoff loop and semantic error classification.
package exclusive
