package ptysup

import (
	"os/exec"
	"syscall"
)

// exitCodeForWait implements the same exit-code convention as
// procsup.exitCodeForState but starting from the *exec.Cmd and the error
// Wait returned, since a PTY-attached child's ProcessState is only
// reliably populated once Wait itself has returned.
func exitCodeForWait(command *exec.Cmd, waitErr error) int {
	state := command.ProcessState
	if state == nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			state = exitErr.ProcessState
		}
	}
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
