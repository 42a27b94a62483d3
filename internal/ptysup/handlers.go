package ptysup

import (
	"context"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/hostagent/hostagent/internal/dispatch"
	"github.com/hostagent/hostagent/internal/execspec"
	"github.com/hostagent/hostagent/internal/protocol"
)

const (
	defaultReadMaxBytes = 65536
	defaultRows         = 24
	defaultCols         = 80
	// ptyReadPollChunk is the poll-wait granularity used while a
	// process.read_pty call with a positive timeout waits for data, so
	// that it can also notice the entry disappearing or the child exiting
	// promptly.
	ptyReadPollChunk = 100 * time.Millisecond
)

// Register installs every process.*_pty method into disp.
func Register(disp *dispatch.Dispatcher, table *Table) {
	disp.Register("process.start_pty", table.handleStartPty)
	disp.Register("process.read_pty", table.handleReadPty)
	disp.Register("process.write_pty", table.handleWritePty)
	disp.Register("process.resize_pty", table.handleResizePty)
	disp.Register("process.kill_pty", table.handleKillPty)
	disp.Register("process.close_pty", table.handleClosePty)
	disp.Register("process.list_pty", table.handleListPty)
}

// handleStartPty implements process.start_pty.
func (t *Table) handleStartPty(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	command, perr := execspec.BuildCommand(params)
	if perr != nil {
		return nil, perr
	}

	rows := intParam(params, "rows", defaultRows)
	cols := intParam(params, "cols", defaultCols)

	master, slave, err := pty.Open()
	if err != nil {
		return nil, protocol.NewErrorf(protocol.CodeProcessError, "unable to open pty: %v", err)
	}
	if err := pty.Setsize(master, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		_ = master.Close()
		_ = slave.Close()
		return nil, protocol.NewErrorf(protocol.CodeProcessError, "unable to set initial window size: %v", err)
	}

	ttyName := slave.Name()

	command.Stdin = slave
	command.Stdout = slave
	command.Stderr = slave
	command.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
	}

	startErr := command.Start()
	// The slave end is owned by the parent only between open and fork; drop
	// it immediately after the fork, regardless of outcome.
	_ = slave.Close()
	if startErr != nil {
		_ = master.Close()
		return nil, protocol.NewErrorf(protocol.CodeProcessError, "unable to start process: %v", startErr)
	}

	if err := unix.SetNonblock(int(master.Fd()), true); err != nil {
		_ = command.Process.Kill()
		_ = master.Close()
		return nil, protocol.NewErrorf(protocol.CodeProcessError, "unable to set master non-blocking: %v", err)
	}

	entry := &Entry{
		cmd:     command.Path,
		pid:     command.Process.Pid,
		ttyName: ttyName,
		master:  master,
		command: command,
	}
	key := t.insert(entry)

	go func() {
		waitErr := command.Wait()
		entry.mu.Lock()
		entry.exited = true
		entry.exitCode = exitCodeForWait(command, waitErr)
		entry.mu.Unlock()
	}()

	return map[string]any{
		"key":      key,
		"os_pid":   entry.pid,
		"tty_name": ttyName,
	}, nil
}

// handleReadPty implements process.read_pty. A missing key is not treated
// as an error: it yields a non-error result reporting exited=true.
func (t *Table) handleReadPty(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	key := intParam(params, "key", -1)
	entry, ok := t.lookup(key)
	if !ok {
		return map[string]any{"output": nil, "exited": true, "exit_code": nil}, nil
	}

	maxBytes := intParam(params, "max_bytes", defaultReadMaxBytes)
	timeoutMs := intParam(params, "timeout_ms", 0)

	buf := make([]byte, maxBytes)
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	for {
		// Fd puts the descriptor back into blocking mode (as does any other
		// handler's call to it), so restore non-blocking mode before reading.
		fd := int(entry.master.Fd())
		_ = unix.SetNonblock(fd, true)
		n, readErr := unix.Read(fd, buf)
		if n > 0 {
			return ptyReadResult(entry, buf[:n]), nil
		}
		if readErr != nil && readErr != unix.EAGAIN && readErr != unix.EWOULDBLOCK {
			// Slave closed (child exited): treat as no more output.
			return ptyReadResult(entry, nil), nil
		}

		if timeoutMs <= 0 || time.Now().After(deadline) {
			return ptyReadResult(entry, nil), nil
		}

		select {
		case <-time.After(ptyReadPollChunk):
		case <-ctx.Done():
			return ptyReadResult(entry, nil), nil
		}

		if _, stillPresent := t.lookup(key); !stillPresent {
			return map[string]any{"output": nil, "exited": true, "exit_code": nil}, nil
		}
		entry.mu.Lock()
		exited := entry.exited
		entry.mu.Unlock()
		if exited {
			return ptyReadResult(entry, nil), nil
		}
	}
}

func ptyReadResult(entry *Entry, output []byte) map[string]any {
	entry.mu.Lock()
	exited := entry.exited
	exitCode := entry.exitCode
	entry.mu.Unlock()

	result := map[string]any{"exited": exited, "exit_code": nil}
	if exited {
		result["exit_code"] = exitCode
	}
	if output != nil {
		result["output"] = output
	}
	return result
}

// handleWritePty implements process.write_pty: wait for writable readiness,
// then perform one write.
func (t *Table) handleWritePty(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	entry, perr := t.requireEntry(params)
	if perr != nil {
		return nil, perr
	}
	data, ok := params["data"].([]byte)
	if !ok {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "\"data\" must be binary")
	}

	fd := int(entry.master.Fd())
	pollFds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	ready, err := unix.Poll(pollFds, 100)
	if err != nil || ready == 0 {
		return map[string]any{"bytes_written": 0}, nil
	}

	n, err := unix.Write(fd, data)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return map[string]any{"bytes_written": 0}, nil
		}
		return nil, protocol.NewErrorf(protocol.CodeProcessError, "unable to write to pty: %v", err)
	}
	return map[string]any{"bytes_written": n}, nil
}

// handleResizePty implements process.resize_pty: set the new window size
// then deliver SIGWINCH to the foreground process group, falling back to
// the child's own pid if the foreground group can't be determined.
func (t *Table) handleResizePty(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	entry, perr := t.requireEntry(params)
	if perr != nil {
		return nil, perr
	}
	rows := intParam(params, "rows", defaultRows)
	cols := intParam(params, "cols", defaultCols)

	if err := pty.Setsize(entry.master, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		return nil, protocol.NewErrorf(protocol.CodeProcessError, "unable to set window size: %v", err)
	}

	target := entry.pid
	if pgid, err := unix.IoctlGetInt(int(entry.master.Fd()), unix.TIOCGPGRP); err == nil {
		target = pgid
	}
	_ = syscall.Kill(-target, syscall.SIGWINCH)

	return map[string]any{}, nil
}

// handleKillPty implements process.kill_pty.
func (t *Table) handleKillPty(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	entry, perr := t.requireEntry(params)
	if perr != nil {
		return nil, perr
	}
	sig := intParam(params, "signal", int(syscall.SIGTERM))

	if err := syscall.Kill(entry.pid, syscall.Signal(sig)); err != nil {
		return nil, protocol.NewErrorf(protocol.CodeProcessError, "unable to signal process: %v", err)
	}
	if syscall.Signal(sig) == syscall.SIGKILL {
		t.remove(entry.key)
	}
	return map[string]any{}, nil
}

// handleClosePty implements process.close_pty: SIGKILL the child and remove
// the entry (which also closes the master).
func (t *Table) handleClosePty(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	entry, perr := t.requireEntry(params)
	if perr != nil {
		return nil, perr
	}
	_ = syscall.Kill(entry.pid, syscall.SIGKILL)
	t.remove(entry.key)
	return map[string]any{}, nil
}

// handleListPty implements process.list_pty.
func (t *Table) handleListPty(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	entries := t.snapshot()
	result := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		item := map[string]any{
			"key":      entry.key,
			"os_pid":   entry.pid,
			"cmd":      entry.cmd,
			"tty_name": entry.ttyName,
			"exited":   entry.exited,
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

func (t *Table) requireEntry(params map[string]any) (*Entry, *protocol.Error) {
	key := intParam(params, "key", -1)
	if key < 0 {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "\"key\" is required")
	}
	entry, ok := t.lookup(key)
	if !ok {
		return nil, protocol.NewErrorf(protocol.CodeProcessError, "unknown pty process key: %d", key)
	}
	return entry, nil
}
