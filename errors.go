package exclusive

import (
	"errors"

	"code.hybscloud.com/iox"
)

// ErrOverflow indicates the array-slot mutex has more concurrent acquirers
// than it has slots.
//
// ErrOverflow is a failure, not a control flow signal: the caller queued
// for a slot that no thread will ever release back to it. There is no
// backoff-and-retry recovery, unlike [iox.ErrWouldBlock]. Callers must
// either size the mutex for the true concurrency level or treat the
// error as fatal to the calling goroutine's access attempt.
var ErrOverflow = errors.New("exclusive: array mutex overflow: no free slot for ticket")

// ErrExhausted indicates a CLH mutex configured with [WithDieOnExhausted]
// found its node pool empty on Acquire.
//
// Under [WithRetryOnExhausted] (the default), pool exhaustion is retried
// with backoff instead of surfacing as an error.
var ErrExhausted = errors.New("exclusive: clh mutex node pool exhausted")

// ErrNotAcquired indicates TryAcquire or TryAcquireUntil returned without
// obtaining the lock, either because the lock was contended on the single
// non-blocking attempt or because the deadline elapsed first.
//
// ErrNotAcquired is a control flow signal, not a failure, mirroring
// [iox.ErrWouldBlock]: callers of TryAcquireUntil in a retry loop should
// treat it the same way a would-block error is treated elsewhere in the
// ecosystem.
var ErrNotAcquired = errors.New("exclusive: lock not acquired")

// IsOverflow reports whether err is (or wraps) [ErrOverflow].
func IsOverflow(err error) bool {
	return errors.Is(err, ErrOverflow)
}

// IsExhausted reports whether err is (or wraps) [ErrExhausted].
func IsExhausted(err error) bool {
	return errors.Is(err, ErrExhausted)
}

// IsNotAcquired reports whether err is (or wraps) [ErrNotAcquired].
func IsNotAcquired(err error) bool {
	return errors.Is(err, ErrNotAcquired)
}

// IsSemantic reports whether err is a control flow signal rather than a
// failure: [ErrNotAcquired] or an [iox] semantic error.
//
// [ErrOverflow] and [ErrExhausted] are not semantic: there is no
// backoff-and-retry path that resolves them.
func IsSemantic(err error) bool {
	return IsNotAcquired(err) || iox.IsSemantic(err)
}
