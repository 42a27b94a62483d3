package procsup

import (
	"os/exec"
	"syscall"
	"testing"
)

func TestExitCodeForStateNilState(t *testing.T) {
	if got := exitCodeForState(nil); got != -1 {
		t.Fatalf("expected -1 for nil state, got %d", got)
	}
}

func TestExitCodeForStateNaturalExit(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 7")
	_ = cmd.Run()
	if got := exitCodeForState(cmd.ProcessState); got != 7 {
		t.Fatalf("expected natural exit code 7, got %d", got)
	}
}

func TestExitCodeForStateSignaled(t *testing.T) {
	cmd := exec.Command("sh", "-c", "kill -TERM $$; sleep 5")
	_ = cmd.Run()
	want := 128 + int(syscall.SIGTERM)
	if got := exitCodeForState(cmd.ProcessState); got != want {
		t.Fatalf("expected signaled exit code %d, got %d", want, got)
	}
}
