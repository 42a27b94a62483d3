package ptysup

import (
	"errors"
	"os/exec"
	"syscall"
	"testing"
)

func TestExitCodeForWaitNilEverything(t *testing.T) {
	cmd := &exec.Cmd{}
	if got := exitCodeForWait(cmd, nil); got != -1 {
		t.Fatalf("expected -1, got %d", got)
	}
}

func TestExitCodeForWaitNaturalExit(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 3")
	waitErr := cmd.Run()
	if got := exitCodeForWait(cmd, waitErr); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestExitCodeForWaitSignaled(t *testing.T) {
	cmd := exec.Command("sh", "-c", "kill -KILL $$; sleep 5")
	waitErr := cmd.Run()
	want := 128 + int(syscall.SIGKILL)
	if got := exitCodeForWait(cmd, waitErr); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestExitCodeForWaitRecoversStateFromExitError(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 5")
	waitErr := cmd.Run()
	cmd.ProcessState = nil
	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		t.Skip("sh exit 5 did not produce *exec.ExitError on this platform")
	}
	if got := exitCodeForWait(cmd, exitErr); got != 5 {
		t.Fatalf("expected 5 recovered from wait error, got %d", got)
	}
}
