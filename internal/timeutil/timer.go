// Package timeutil holds small time.Timer helpers shared by components that
// need safe stop-and-drain semantics.
package timeutil

import "time"

// StopAndDrainTimer stops a timer and performs a non-blocking drain on its
// channel, so the timer can be discarded or reused regardless of whether it
// already fired.
func StopAndDrainTimer(timer *time.Timer) {
	timer.Stop()
	select {
	case <-timer.C:
	default:
	}
}
