package exclusive

import "time"

// Locker is the substitutability contract a lock must satisfy to back a
// [Resource]. Both [TicketMutex] and [CLHMutex] satisfy it.
type Locker[Tok any] interface {
	Acquire() (Tok, error)
	Release(Tok)
}

// TimedLocker is the optional extension a lock may satisfy to back
// [Resource.AccessWithin]. [CLHMutex] satisfies it; [TicketMutex] does
// not, since an overflowing array-slot mutex has no notion of "try again
// until a deadline" — overflow is reported immediately and permanently
// for that acquisition.
type TimedLocker[Tok any] interface {
	Locker[Tok]
	TryAcquireUntil(deadline time.Time) (Tok, error)
}

// Resource composes a value of type T with a lock L so that access to
// the value is only possible through a scoped guard, mirroring the
// original library's RAII wrapper: a resource can only be observed while
// something holds its lock.
//
// Go has no destructors, so the RAII "release on scope exit" pattern
// becomes an explicit Close, meant to be paired with defer at the call
// site, the same shape as [context.CancelFunc] or [os.File.Close].
type Resource[T any, Tok any, L Locker[Tok]] struct {
	value T
	lock  L
}

// NewResource wraps value so that it is only reachable through a guard
// acquired from lock.
func NewResource[T any, Tok any, L Locker[Tok]](value T, lock L) *Resource[T, Tok, L] {
	return &Resource[T, Tok, L]{value: value, lock: lock}
}

// NewGuardedTicket creates a [Resource] guarded by a new [TicketMutex]
// sized for n concurrent acquirers.
func NewGuardedTicket[T any](value T, n int) *Resource[T, TicketToken, *TicketMutex] {
	return NewResource[T, TicketToken, *TicketMutex](value, NewTicketMutex(n))
}

// NewGuardedCLH creates a [Resource] guarded by a new [CLHMutex] sized
// for n concurrently queued acquirers.
func NewGuardedCLH[T any](value T, n int, opts ...CLHOption) *Resource[T, CLHToken, *CLHMutex] {
	return NewResource[T, CLHToken, *CLHMutex](value, NewCLHMutex(n, opts...))
}

// Access blocks until the caller is granted exclusive access to the
// resource, returning a [Guard] that releases the lock on Close.
func (r *Resource[T, Tok, L]) Access() (*Guard[T, Tok, L], error) {
	tok, err := r.lock.Acquire()
	if err != nil {
		return nil, err
	}
	return &Guard[T, Tok, L]{resource: r, tok: tok}, nil
}

// AccessWithin attempts to acquire exclusive access within d, returning a
// [TimedGuard] whose Acquired reports whether the attempt succeeded.
//
// AccessWithin panics if L does not implement [TimedLocker]. This is a
// programmer error, not a runtime condition to recover from: it means a
// resource guarded by a lock without deadline support (e.g. a
// [TicketMutex]) was asked for a capability it structurally cannot offer.
func (r *Resource[T, Tok, L]) AccessWithin(d time.Duration) (*TimedGuard[T, Tok, L], error) {
	tl, ok := any(r.lock).(TimedLocker[Tok])
	if !ok {
		panic("exclusive: AccessWithin called on a Resource whose lock does not support deadlines")
	}

	tok, err := tl.TryAcquireUntil(time.Now().Add(d))
	if err != nil {
		if IsNotAcquired(err) {
			return &TimedGuard[T, Tok, L]{resource: r, acquired: false}, nil
		}
		return nil, err
	}
	return &TimedGuard[T, Tok, L]{resource: r, tok: tok, acquired: true}, nil
}

// Guard is a scoped access token for a [Resource], obtained from
// [Resource.Access]. It always holds the lock: unlike [TimedGuard] there
// is no unacquired state to check.
type Guard[T any, Tok any, L Locker[Tok]] struct {
	_        noCopy
	resource *Resource[T, Tok, L]
	tok      Tok
	closed   bool
}

// Value returns a pointer to the guarded resource. Callers must not
// retain it past Close.
func (g *Guard[T, Tok, L]) Value() *T {
	return &g.resource.value
}

// Close releases the lock. Close must be called exactly once, typically
// via defer immediately after [Resource.Access] returns.
func (g *Guard[T, Tok, L]) Close() {
	if g.closed {
		return
	}
	g.closed = true
	g.resource.lock.Release(g.tok)
}

// TimedGuard is a scoped access token for a [Resource], obtained from
// [Resource.AccessWithin]. Unlike [Guard], the attempt may have failed to
// acquire the lock before its deadline, so callers must check Acquired
// before calling Value.
type TimedGuard[T any, Tok any, L Locker[Tok]] struct {
	_        noCopy
	resource *Resource[T, Tok, L]
	tok      Tok
	acquired bool
	closed   bool
}

// Acquired reports whether the deadline-bounded attempt obtained the
// lock.
func (g *TimedGuard[T, Tok, L]) Acquired() bool {
	return g.acquired
}

// Value returns a pointer to the guarded resource.
//
// Value panics if Acquired is false: the precondition is that the caller
// checks Acquired first. There is no resource to safely reach otherwise.
func (g *TimedGuard[T, Tok, L]) Value() *T {
	if !g.acquired {
		panic("exclusive: Value called on a TimedGuard that did not acquire the lock")
	}
	return &g.resource.value
}

// Close releases the lock if it was acquired. Calling Close on a guard
// that never acquired the lock is a no-op, so callers may unconditionally
// defer it right after AccessWithin returns.
func (g *TimedGuard[T, Tok, L]) Close() {
	if g.closed || !g.acquired {
		g.closed = true
		return
	}
	g.closed = true
	g.resource.lock.Release(g.tok)
}
