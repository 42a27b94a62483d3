package execspec

import (
	"os"
	"os/exec"

	"github.com/hostagent/hostagent/internal/envmerge"
	"github.com/hostagent/hostagent/internal/pathval"
	"github.com/hostagent/hostagent/internal/protocol"
)

// BuildCommand constructs an *exec.Cmd from the common spawn parameters
// shared by process.run, process.start, process.start_pty and
// commands.run_parallel: cmd, args, cwd, env, clear_env.
func BuildCommand(params map[string]any) (*exec.Cmd, *protocol.Error) {
	name, ok := params["cmd"].(string)
	if !ok || name == "" {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "\"cmd\" is required")
	}

	var args []string
	if rawArgs, ok := params["args"].([]any); ok {
		args = make([]string, len(rawArgs))
		for i, a := range rawArgs {
			s, ok := a.(string)
			if !ok {
				return nil, protocol.NewErrorf(protocol.CodeInvalidParams, "args[%d] is not a string", i)
			}
			args[i] = s
		}
	}

	command := exec.Command(name, args...)

	if rawCwd, ok := params["cwd"]; ok && rawCwd != nil {
		cwd, err := pathval.Decode(rawCwd)
		if err != nil {
			return nil, protocol.NewErrorf(protocol.CodeInvalidParams, "invalid \"cwd\": %v", err)
		}
		command.Dir = cwd
	}

	clearEnv, _ := params["clear_env"].(bool)
	base := os.Environ()
	if clearEnv {
		base = nil
	}

	overrides := map[string]string{}
	if rawEnv, ok := params["env"].(map[string]any); ok {
		for k, v := range rawEnv {
			s, ok := v.(string)
			if !ok {
				return nil, protocol.NewErrorf(protocol.CodeInvalidParams, "env[%q] is not a string", k)
			}
			overrides[k] = s
		}
	}
	command.Env = envmerge.Merge(base, overrides)

	return command, nil
}
