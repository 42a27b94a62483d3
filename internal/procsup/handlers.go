package procsup

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/hostagent/hostagent/internal/dispatch"
	"github.com/hostagent/hostagent/internal/execspec"
	"github.com/hostagent/hostagent/internal/protocol"
)

const defaultReadMaxBytes = 65536

// Register installs every process.* (pipe-backed) method into disp.
func Register(disp *dispatch.Dispatcher, table *Table) {
	disp.Register("process.run", table.handleRun)
	disp.Register("process.start", table.handleStart)
	disp.Register("process.write", table.handleWrite)
	disp.Register("process.read", table.handleRead)
	disp.Register("process.close_stdin", table.handleCloseStdin)
	disp.Register("process.kill", table.handleKill)
	disp.Register("process.list", table.handleList)
}

// handleRun implements process.run: spawn, optionally feed stdin, wait for
// exit, and return the complete captured output.
func (t *Table) handleRun(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	command, perr := execspec.BuildCommand(params)
	if perr != nil {
		return nil, perr
	}

	var stdin []byte
	if raw, ok := params["stdin"]; ok && raw != nil {
		b, ok := raw.([]byte)
		if !ok {
			return nil, protocol.NewError(protocol.CodeInvalidParams, "\"stdin\" must be binary")
		}
		stdin = b
	}
	if stdin != nil {
		command.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	err := command.Run()
	exitCode := -1
	if command.ProcessState != nil {
		exitCode = exitCodeForState(command.ProcessState)
	} else if err != nil {
		return nil, protocol.NewErrorf(protocol.CodeProcessError, "unable to start process: %v", err)
	}

	return map[string]any{
		"exit_code": exitCode,
		"stdout":    stdout.Bytes(),
		"stderr":    stderr.Bytes(),
	}, nil
}

// handleStart implements process.start: spawn with piped stdio and return a
// stable key without consuming stdin inline.
func (t *Table) handleStart(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	command, perr := execspec.BuildCommand(params)
	if perr != nil {
		return nil, perr
	}

	stdin, err := command.StdinPipe()
	if err != nil {
		return nil, protocol.NewErrorf(protocol.CodeProcessError, "unable to open stdin pipe: %v", err)
	}
	stdout, err := command.StdoutPipe()
	if err != nil {
		return nil, protocol.NewErrorf(protocol.CodeProcessError, "unable to open stdout pipe: %v", err)
	}
	stderr, err := command.StderrPipe()
	if err != nil {
		return nil, protocol.NewErrorf(protocol.CodeProcessError, "unable to open stderr pipe: %v", err)
	}

	if err := command.Start(); err != nil {
		return nil, protocol.NewErrorf(protocol.CodeProcessError, "unable to start process: %v", err)
	}

	entry := &Entry{
		cmd:     command.Path,
		command: command,
		stdin:   stdin,
		ready:   make(chan struct{}),
	}
	key := t.insert(entry)

	var pipesDone sync.WaitGroup
	pipesDone.Add(2)
	go entry.pump(&pipesDone, stdout, &entry.stdout)
	go entry.pump(&pipesDone, stderr, &entry.stderr)

	go func() {
		pipesDone.Wait()
		waitErr := command.Wait()

		entry.mu.Lock()
		entry.exited = true
		entry.exitCode = exitCodeForState(command.ProcessState)
		if entry.exitCode == -1 && waitErr != nil {
			if exitErr, ok := waitErr.(*exec.ExitError); ok {
				entry.exitCode = exitCodeForState(exitErr.ProcessState)
			}
		}
		entry.signalReady()
		killedBySIGKILL := entry.killedBy == int(syscall.SIGKILL)
		entry.mu.Unlock()

		if killedBySIGKILL {
			t.remove(key)
		}
	}()

	return map[string]any{
		"key":    key,
		"os_pid": command.Process.Pid,
	}, nil
}

// pump continuously copies from r into buf, signaling readiness on every
// chunk, until EOF. It always marks pipesDone complete, which the reaper
// goroutine waits on before calling exec.Cmd.Wait, satisfying Wait's
// requirement that pipe reads complete first.
func (e *Entry) pump(pipesDone *sync.WaitGroup, r io.Reader, buf *bytes.Buffer) {
	defer pipesDone.Done()
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			e.mu.Lock()
			buf.Write(chunk[:n])
			e.signalReady()
			e.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// handleWrite implements process.write: append to the child's stdin.
func (t *Table) handleWrite(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	entry, perr := t.requireEntry(params)
	if perr != nil {
		return nil, perr
	}
	data, ok := params["data"].([]byte)
	if !ok {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "\"data\" must be binary")
	}

	n, err := entry.stdin.Write(data)
	if err != nil {
		return nil, protocol.NewErrorf(protocol.CodeProcessError, "unable to write to stdin: %v", err)
	}
	return map[string]any{"bytes_written": n}, nil
}

// handleRead implements process.read: drain whatever is currently buffered
// from stdout/stderr, waiting up to timeout_ms for at least one byte if
// both are currently empty.
func (t *Table) handleRead(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	entry, perr := t.requireEntry(params)
	if perr != nil {
		return nil, perr
	}

	maxBytes := intParam(params, "max_bytes", defaultReadMaxBytes)
	timeoutMs := intParam(params, "timeout_ms", 0)

	wait := time.Millisecond
	if timeoutMs > 0 {
		wait = time.Duration(timeoutMs) * time.Millisecond
	}

	entry.mu.Lock()
	if entry.stdout.Len() == 0 && entry.stderr.Len() == 0 && !entry.exited {
		ready := entry.ready
		entry.mu.Unlock()
		select {
		case <-ready:
		case <-time.After(wait):
		case <-ctx.Done():
		}
		entry.mu.Lock()
	}

	var stdoutOut, stderrOut []byte
	if entry.stdout.Len() > 0 {
		stdoutOut = drain(&entry.stdout, maxBytes)
	}
	if entry.stderr.Len() > 0 {
		stderrOut = drain(&entry.stderr, maxBytes)
	}
	exited := entry.exited
	exitCode := entry.exitCode
	entry.mu.Unlock()

	result := map[string]any{"exited": exited, "exit_code": nil}
	if exited {
		result["exit_code"] = exitCode
	}
	if stdoutOut != nil {
		result["stdout"] = stdoutOut
	}
	if stderrOut != nil {
		result["stderr"] = stderrOut
	}
	return result, nil
}

// drain removes up to max bytes from buf and returns them.
func drain(buf *bytes.Buffer, max int) []byte {
	n := buf.Len()
	if n > max {
		n = max
	}
	out := make([]byte, n)
	_, _ = buf.Read(out)
	return out
}

// handleCloseStdin implements process.close_stdin: close the child's stdin,
// signaling EOF.
func (t *Table) handleCloseStdin(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	entry, perr := t.requireEntry(params)
	if perr != nil {
		return nil, perr
	}
	if err := entry.stdin.Close(); err != nil {
		return nil, protocol.NewErrorf(protocol.CodeProcessError, "unable to close stdin: %v", err)
	}
	return map[string]any{}, nil
}

// handleKill implements process.kill: deliver a signal to the child. On
// SIGKILL, the entry is removed once the background reaper observes exit
// (see handleStart), or at once if the child had already exited; other
// signals never remove the entry.
func (t *Table) handleKill(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	entry, perr := t.requireEntry(params)
	if perr != nil {
		return nil, perr
	}
	sig := intParam(params, "signal", int(syscall.SIGTERM))

	entry.mu.Lock()
	entry.killedBy = sig
	exited := entry.exited
	entry.mu.Unlock()

	if exited && syscall.Signal(sig) == syscall.SIGKILL {
		// The reaper has already run and will not remove the entry itself.
		t.remove(entry.key)
		return map[string]any{}, nil
	}

	if err := entry.command.Process.Signal(syscall.Signal(sig)); err != nil {
		return nil, protocol.NewErrorf(protocol.CodeProcessError, "unable to signal process: %v", err)
	}
	return map[string]any{}, nil
}

// handleList implements process.list.
func (t *Table) handleList(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	entries := t.snapshot()
	result := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		item := map[string]any{
			"key":    entry.key,
			"os_pid": entry.command.Process.Pid,
			"cmd":    entry.cmd,
			"exited": entry.exited,
		}
		if entry.exited {
			item["exit_code"] = entry.exitCode
		} else {
			item["exit_code"] = nil
		}
		entry.mu.Unlock()
		result = append(result, item)
	}
	return result, nil
}

// requireEntry resolves the "key" param to a table entry, returning a
// process error if it's missing or unknown.
func (t *Table) requireEntry(params map[string]any) (*Entry, *protocol.Error) {
	key := intParam(params, "key", -1)
	if key < 0 {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "\"key\" is required")
	}
	entry, ok := t.lookup(key)
	if !ok {
		return nil, protocol.NewErrorf(protocol.CodeProcessError, "unknown process key: %d", key)
	}
	return entry, nil
}

// intParam extracts an integer parameter that may have arrived as any
// msgpack-decoded numeric type, falling back to def if absent.
func intParam(params map[string]any, name string, def int) int {
	raw, ok := params[name]
	if !ok || raw == nil {
		return def
	}
	switch v := raw.(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint:
		return int(v)
	case uint8:
		return int(v)
	case uint16:
		return int(v)
	case uint32:
		return int(v)
	case uint64:
		return int(v)
	case float32:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}
