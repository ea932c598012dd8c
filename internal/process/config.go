package process

import "strings"

// Config describes how to launch one managed process.
type Config struct {
	ID         ID
	Command    string
	Args       []string
	WorkingDir string
	Env        map[string]string
	Restart    RestartPolicy

	// Supervised marks processes that manage their own workers (Horizon).
	// They are reported as supervised and never auto-restarted.
	Supervised bool
}

// CommandLine returns the command and arguments joined for display.
func (c Config) CommandLine() string {
	if len(c.Args) == 0 {
		return c.Command
	}
	return c.Command + " " + strings.Join(c.Args, " ")
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := c
	if c.Args != nil {
		out.Args = append([]string(nil), c.Args...)
	}
	if c.Env != nil {
		out.Env = make(map[string]string, len(c.Env))
		for k, v := range c.Env {
			out.Env[k] = v
		}
	}
	return out
}
