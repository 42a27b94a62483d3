package procsup

import (
	"os"
	"syscall"
)

// exitCodeForState implements the exit-code convention: the natural exit
// code if the process returned one, 128+signal if it was killed by a
// signal, or -1 if neither can be determined.
func exitCodeForState(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	waitStatus, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		return -1
	}
	if waitStatus.Exited() {
		return waitStatus.ExitStatus()
	}
	if waitStatus.Signaled() {
		return 128 + int(waitStatus.Signal())
	}
	return -1
}
