//go:build race

package exclusive

// RaceEnabled is true when the race detector is active.
// Used by tests to skip concurrency scenarios that trigger false
// positives: the race detector cannot observe happens-before relations
// established purely through atomic memory ordering.
const RaceEnabled = true
