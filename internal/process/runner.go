package process

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"sort"
)

// ColorEnv forces ANSI color output from tools that detect a non-TTY stdout.
var ColorEnv = map[string]string{
	"FORCE_COLOR":    "1",
	"CLICOLOR_FORCE": "1",
	"COLORTERM":      "truecolor",
}

// BuildCommand returns a ready-to-start command for cfg. The command
// inherits the parent environment plus ColorEnv plus cfg.Env, in that
// order of precedence. The command is not started.
func BuildCommand(cfg Config) *exec.Cmd {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.WorkingDir
	cmd.Env = MergeEnv(os.Environ(), ColorEnv, cfg.Env)
	return cmd
}

// MergeEnv appends overlays to base, later overlays winning. Keys within
// an overlay are emitted in sorted order.
func MergeEnv(base []string, overlays ...map[string]string) []string {
	env := append([]string(nil), base...)
	for _, overlay := range overlays {
		keys := make([]string, 0, len(overlay))
		for k := range overlay {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			env = append(env, k+"="+overlay[k])
		}
	}
	return env
}

// DescribeStartError turns an exec start failure into a message a user can
// act on.
func DescribeStartError(command string, err error) string {
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return fmt.Sprintf("command %q not found in PATH", command)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Sprintf("permission denied running %q", command)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Sprintf("%q or its working directory does not exist", command)
	default:
		return fmt.Sprintf("failed to start %q: %v", command, err)
	}
}

// ExitCode returns the exit status from a Wait error, or nil when the
// process was terminated by a signal.
func ExitCode(err error) *int {
	if err == nil {
		code := 0
		return &code
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return &code
		}
	}
	return nil
}
