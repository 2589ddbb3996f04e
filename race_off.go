//go:build !race

package exclusive

// RaceEnabled is false when the race detector is not active.
const RaceEnabled = false
