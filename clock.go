package exclusive

import "time"

// Clock supplies the current time to deadline-based lock operations.
//
// Production code always uses the package default, a thin wrapper over
// [time.Now]. Tests may substitute a fake clock to make abandonment and
// timeout scenarios deterministic instead of depending on wall time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// defaultClock is shared by every CLHMutex that does not override it.
var defaultClock Clock = realClock{}
