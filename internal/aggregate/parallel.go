// Package aggregate implements the blocking fan-out primitives: running a
// batch of independent subprocesses in parallel, walking upward for marker
// files, and summarizing git status. Each is an external collaborator the
// dispatcher merely routes a concrete handler to, grounded on the
// exec.Cmd patterns used throughout procsup.
package aggregate

import (
	"bytes"
	"context"
	"os/exec"
	"sync"

	"github.com/hostagent/hostagent/internal/dispatch"
	"github.com/hostagent/hostagent/internal/execspec"
	"github.com/hostagent/hostagent/internal/protocol"
)

// maxParallelCommands bounds a single commands.run_parallel call.
const maxParallelCommands = 256

// Register installs commands.run_parallel, ancestors.scan, and
// magit.status into disp.
func Register(disp *dispatch.Dispatcher) {
	disp.Register("commands.run_parallel", handleRunParallel)
	disp.Register("ancestors.scan", handleAncestorsScan)
	disp.Register("magit.status", handleMagitStatus)
}

func handleRunParallel(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	raw, _ := params["commands"].([]any)
	if len(raw) > maxParallelCommands {
		return nil, protocol.NewErrorf(protocol.CodeInvalidParams, "commands.run_parallel accepts at most %d entries, got %d", maxParallelCommands, len(raw))
	}
	if len(raw) == 0 {
		return []map[string]any{}, nil
	}

	specs := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		spec, ok := item.(map[string]any)
		if !ok {
			return nil, protocol.NewError(protocol.CodeInvalidParams, "each entry in \"commands\" must be an object")
		}
		specs = append(specs, spec)
	}

	results := make([]map[string]any, len(specs))
	present := make([]bool, len(specs))

	var wg sync.WaitGroup
	wg.Add(len(specs))
	for i, spec := range specs {
		go func(i int, spec map[string]any) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					// Panicking workers are silently dropped from the
					// result set; clients cannot distinguish "dropped"
					// from "never ran".
					present[i] = false
				}
			}()
			results[i] = runOne(spec)
			present[i] = true
		}(i, spec)
	}
	wg.Wait()

	out := make([]map[string]any, 0, len(specs))
	for i, ok := range present {
		if ok {
			out = append(out, results[i])
		}
	}
	return out, nil
}

func runOne(spec map[string]any) map[string]any {
	key := spec["key"]

	command, perr := execspec.BuildCommand(spec)
	if perr != nil {
		return map[string]any{"key": key, "exit_code": -1, "stdout": nil, "stderr": []byte(perr.Message)}
	}

	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	err := command.Run()
	exitCode := -1
	if command.ProcessState != nil {
		exitCode = exitCodeFromState(command, err)
	}

	return map[string]any{
		"key":       key,
		"exit_code": exitCode,
		"stdout":    stdout.Bytes(),
		"stderr":    stderr.Bytes(),
	}
}

func exitCodeFromState(command *exec.Cmd, runErr error) int {
	state := command.ProcessState
	if state.Exited() {
		return state.ExitCode()
	}
	if runErr != nil {
		return -1
	}
	return state.ExitCode()
}
