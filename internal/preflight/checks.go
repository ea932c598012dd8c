// Package preflight provides startup validation checks.
package preflight

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/randomizedcoder/go-devmux/internal/process"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// Warnings returns the checks that passed with a warning.
func (r *Result) Warnings() []Check {
	var out []Check
	for _, c := range r.Checks {
		if c.Passed && c.Warning {
			out = append(out, c)
		}
	}
	return out
}

func (r *Result) add(c Check) {
	r.Checks = append(r.Checks, c)
	if !c.Passed {
		r.Passed = false
	}
}

// RunAll checks that the configured processes can be started.
// A missing command is only a warning: the supervisor reports the spawn
// failure on that process and the others still run.
func RunAll(configs []process.Config, logDir string) *Result {
	result := &Result{
		Checks: make([]Check, 0, len(configs)+2),
		Passed: true,
	}

	result.add(checkFileDescriptors(len(configs)))

	seenCmd := make(map[string]bool)
	seenDir := make(map[string]bool)
	for _, cfg := range configs {
		if cfg.WorkingDir != "" && !seenDir[cfg.WorkingDir] {
			seenDir[cfg.WorkingDir] = true
			result.add(checkWorkingDir(cfg.WorkingDir))
		}
		key := cfg.WorkingDir + "\x00" + cfg.Command
		if !seenCmd[key] {
			seenCmd[key] = true
			result.add(checkCommand(cfg))
		}
	}

	if logDir != "" {
		result.add(checkLogDir(logDir))
	}
	return result
}

// checkCommand verifies the command resolves, either through PATH or
// relative to the working directory.
func checkCommand(cfg process.Config) Check {
	name := "command:" + cfg.Command
	path, err := resolveCommand(cfg.Command, cfg.WorkingDir)
	if err != nil {
		return Check{
			Name:    name,
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("%s will fail to start: %v", cfg.ID.Name(), err),
		}
	}
	return Check{
		Name:    name,
		Passed:  true,
		Message: "found at " + path,
	}
}

func resolveCommand(command, dir string) (string, error) {
	if strings.ContainsRune(command, os.PathSeparator) && !filepath.IsAbs(command) && dir != "" {
		command = filepath.Join(dir, command)
	}
	return exec.LookPath(command)
}

// checkWorkingDir verifies the directory exists.
func checkWorkingDir(dir string) Check {
	info, err := os.Stat(dir)
	switch {
	case err != nil:
		return Check{Name: "working_dir", Passed: false, Message: fmt.Sprintf("%s: %v", dir, err)}
	case !info.IsDir():
		return Check{Name: "working_dir", Passed: false, Message: dir + " is not a directory"}
	}
	return Check{Name: "working_dir", Passed: true, Message: dir}
}

// checkLogDir warns when there are no Laravel logs to tail.
func checkLogDir(dir string) Check {
	_, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return Check{
			Name:    "log_dir",
			Passed:  true,
			Warning: true,
			Message: dir + " does not exist; log tailing disabled until it is created",
		}
	}
	if err != nil {
		return Check{Name: "log_dir", Passed: true, Warning: true, Message: err.Error()}
	}
	return Check{Name: "log_dir", Passed: true, Message: dir}
}

// PrintResults writes the preflight check results to w.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed || check.Warning {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch {
	case name == "file_descriptors":
		return "ulimit -n 4096 (or edit /etc/security/limits.conf)"
	case name == "working_dir":
		return "check working_dir in .devmux.toml"
	case name == "log_dir":
		return "mkdir -p storage/logs, or pass --no-log-tail"
	case name == "command:php":
		return "install PHP and make sure php is on PATH"
	case name == "command:npm", name == "command:pnpm", name == "command:yarn", name == "command:bun":
		return "install Node.js and the project's package manager"
	case strings.HasPrefix(name, "command:./vendor/"):
		return "run composer install"
	case strings.HasPrefix(name, "command:"):
		return "install " + strings.TrimPrefix(name, "command:") + " or override the command in .devmux.toml"
	default:
		return "see documentation"
	}
}
