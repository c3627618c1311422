package sim

import (
	"fmt"
	"math"
)

// NanosPerSecond is the number of nanoseconds in one simulated second.
const NanosPerSecond = 1_000_000_000

// Time is a point in simulated time. Nanoseconds is always below one second.
type Time struct {
	Seconds     uint32 `json:"seconds"`
	Nanoseconds uint32 `json:"nanoseconds"`
}

// MakeTime creates a normalized Time from a seconds and nanoseconds pair.
func MakeTime(seconds uint32, nanoseconds uint64) Time {
	t := Time{Seconds: seconds}
	return t.Add(nanoseconds)
}

// Add returns the time that is ns nanoseconds after t.
func (t Time) Add(ns uint64) Time {
	total := uint64(t.Nanoseconds) + ns
	carry := total / NanosPerSecond

	if uint64(t.Seconds)+carry > math.MaxUint32 {
		panic("simulated time overflow")
	}

	return Time{
		Seconds:     t.Seconds + uint32(carry),
		Nanoseconds: uint32(total % NanosPerSecond),
	}
}

// Before tells if t happens strictly earlier than u.
func (t Time) Before(u Time) bool {
	if t.Seconds != u.Seconds {
		return t.Seconds < u.Seconds
	}

	return t.Nanoseconds < u.Nanoseconds
}

// Sub returns the number of nanoseconds from u to t. It returns 0 if u is
// after t.
func (t Time) Sub(u Time) uint64 {
	if t.Before(u) {
		return 0
	}

	return t.InNanos() - u.InNanos()
}

// InNanos converts the time to nanoseconds since time zero.
func (t Time) InNanos() uint64 {
	return uint64(t.Seconds)*NanosPerSecond + uint64(t.Nanoseconds)
}

// InSec converts the time to seconds.
func (t Time) InSec() float64 {
	return float64(t.Seconds) + float64(t.Nanoseconds)/NanosPerSecond
}

// IsZero tells if the time is the beginning of the simulation.
func (t Time) IsZero() bool {
	return t.Seconds == 0 && t.Nanoseconds == 0
}

// String prints the time as seconds:nanoseconds.
func (t Time) String() string {
	return fmt.Sprintf("%d:%d", t.Seconds, t.Nanoseconds)
}
