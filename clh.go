package exclusive

import (
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"
)

// clhUnboundedHorizon stands in for "no deadline" on Acquire: rather than
// give the internal engine a second code path for the unbounded case,
// Acquire hands it a deadline far enough in the future that reaching it
// is not a real possibility.
const clhUnboundedHorizon = 24 * 365 * 10 * time.Hour

// clhConfig holds construction-time CLHMutex options.
type clhConfig struct {
	dieOnExhausted bool
	clock          Clock
}

// CLHOption configures a [CLHMutex] at construction time.
type CLHOption func(*clhConfig)

// WithDieOnExhausted makes Acquire, TryAcquire, and TryAcquireUntil report
// [ErrExhausted] the first time the node pool is found empty, instead of
// retrying until the deadline. This is the safer choice under contention
// higher than the pool was sized for: it fails fast rather than burning
// CPU on a pool that a design error never intends to replenish in time.
func WithDieOnExhausted() CLHOption {
	return func(c *clhConfig) { c.dieOnExhausted = true }
}

// WithRetryOnExhausted retries node-pool acquisition until the deadline
// elapses. This is the default.
func WithRetryOnExhausted() CLHOption {
	return func(c *clhConfig) { c.dieOnExhausted = false }
}

// withClock overrides the mutex's time source. Unexported: production
// callers never need a clock other than wall time, only tests do.
func withClock(c Clock) CLHOption {
	return func(cfg *clhConfig) { cfg.clock = c }
}

// CLHMutex is a fair, FIFO mutual-exclusion lock built on a bounded pool
// of CLH queue nodes.
//
// Unlike a textbook CLH lock, nodes are never allocated per acquisition:
// a fixed pool of n+2 nodes is recycled through a lock-free free queue as
// threads acquire and release the lock. This bounds the lock's footprint
// at construction time in exchange for a possible [ErrExhausted] (or a
// wait, under the default retry policy) when more than n threads try to
// acquire concurrently.
//
// A waiter that reaches its deadline while spinning on its predecessor
// abandons in place rather than leaving the queue: it records which node
// to hand off to and lets its eventual successor recycle it and continue
// waiting on whichever predecessor is still genuinely held.
type CLHMutex struct {
	_    noCopy
	pool []clhNode
	free *freeQueue
	_    pad
	tail atomix.Uint64 // 1-based index of the current queue tail
	_    pad
	queueCount atomix.Uint64

	dieOnExhausted bool
	clock          Clock
}

// CLHToken is the handle returned by a successful acquire, to be passed
// back to [CLHMutex.Release]. It carries no exported fields; callers must
// treat it opaquely.
type CLHToken struct {
	node uint64
}

// NewCLHMutex creates a CLH mutex whose node pool can seat n concurrently
// queued threads. n must be at least 1.
func NewCLHMutex(n int, opts ...CLHOption) *CLHMutex {
	if n < 1 {
		panic("exclusive: clh mutex node count must be >= 1")
	}

	cfg := clhConfig{clock: defaultClock}
	for _, opt := range opts {
		opt(&cfg)
	}

	// n+2: one node seeds the initial tail, one is the free queue's own
	// dummy head, leaving n for threads to actually queue on.
	m := &CLHMutex{
		pool:           make([]clhNode, n+2),
		dieOnExhausted: cfg.dieOnExhausted,
		clock:          cfg.clock,
	}
	m.free = newFreeQueue(m.pool)

	seed := m.free.tryPop()
	if seed == 0 {
		panic("exclusive: clh mutex node pool failed to seed initial tail")
	}
	m.pool[seed-1].locked.StoreRelaxed(false)
	m.tail.StoreRelaxed(seed)

	return m
}

// Acquire blocks until the caller is granted exclusive access.
func (m *CLHMutex) Acquire() (CLHToken, error) {
	return m.acquire(m.clock.Now().Add(clhUnboundedHorizon))
}

// TryAcquire makes one non-blocking attempt to acquire the lock. It takes
// the current time as its deadline, so it returns [ErrNotAcquired] at the
// first point where it would otherwise wait (no free node, a lost tail
// CAS, or a locked predecessor) instead of spinning.
func (m *CLHMutex) TryAcquire() (CLHToken, error) {
	return m.acquire(m.clock.Now())
}

// TryAcquireUntil blocks until the caller is granted exclusive access or
// deadline elapses, whichever comes first. It returns [ErrNotAcquired] on
// timeout.
func (m *CLHMutex) TryAcquireUntil(deadline time.Time) (CLHToken, error) {
	return m.acquire(deadline)
}

// acquire implements Acquire, TryAcquire, and TryAcquireUntil as a single
// state machine parameterized by deadline: TryAcquire is simply the
// deadline "now", and Acquire is a deadline far enough away to never be
// reached in practice.
func (m *CLHMutex) acquire(deadline time.Time) (CLHToken, error) {
	idx, err := m.popNodeUntil(deadline)
	if err != nil {
		return CLHToken{}, err
	}
	n := &m.pool[idx-1]

	// signal intent to acquire the lock
	n.locked.StoreRelaxed(true)

	// (C1) grab predecessor.
	// synchronizes with (C2).
	pred := m.tail.LoadAcquire()

	sw := spin.Wait{}
	for !m.tail.CompareAndSwapAcqRel(pred, idx) {
		if !m.clock.Now().Before(deadline) {
			m.free.push(idx)
			return CLHToken{}, ErrNotAcquired
		}
		pred = m.tail.LoadAcquire()
		sw.Once()
	}

	// (X1) observe queue admission, for fairness tests.
	// synchronizes with (X2).
	m.queueCount.AddAcqRel(1)

	predIdx := pred
	for {
		p := &m.pool[predIdx-1]

		// (C3) spin on predecessor until it releases the lock.
		// synchronizes with (C4), (C5).
		sw.Reset()
		for p.locked.LoadAcquire() {
			if !m.clock.Now().Before(deadline) {
				// propagate the predecessor to denote abandonment
				n.pred = predIdx

				// (C4) release, so our own successor does not wait on us forever.
				// synchronizes with (C3).
				n.locked.StoreRelease(false)
				return CLHToken{}, ErrNotAcquired
			}
			sw.Once()
		}

		// save the predecessor's predecessor in case it was abandoned
		abandoned := p.pred

		// recycle the predecessor node
		m.free.push(predIdx)

		if abandoned == 0 {
			break
		}
		predIdx = abandoned
	}

	return CLHToken{node: idx}, nil
}

// Release relinquishes the lock held by tok.
//
// Release must be called exactly once per successful acquire, using the
// token that call returned.
func (m *CLHMutex) Release(tok CLHToken) {
	n := &m.pool[tok.node-1]
	n.pred = 0

	// (C5) release lock.
	// synchronizes with (C3).
	n.locked.StoreRelease(false)
}

// QueueCount reports how many times a caller has joined the wait queue.
//
// This exists only for observing fairness and admission order in tests;
// it plays no role in correctness.
func (m *CLHMutex) QueueCount() uint64 {
	// (X2) load queue count.
	// synchronizes with (X1).
	return m.queueCount.LoadAcquire()
}

// popNodeUntil obtains a free node, honoring the pool-exhaustion policy.
func (m *CLHMutex) popNodeUntil(deadline time.Time) (uint64, error) {
	if idx := m.free.tryPop(); idx != 0 {
		return idx, nil
	}
	if m.dieOnExhausted {
		return 0, ErrExhausted
	}

	bo := iox.Backoff{}
	for m.clock.Now().Before(deadline) {
		bo.Wait()
		if idx := m.free.tryPop(); idx != 0 {
			return idx, nil
		}
	}
	return 0, ErrNotAcquired
}
