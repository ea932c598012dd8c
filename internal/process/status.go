package process

import (
	"fmt"
	"strings"
)

// Status is the display status of a managed process.
type Status int

const (
	// StatusStopped means no instance is running.
	StatusStopped Status = iota

	// StatusRunning means an instance is alive.
	StatusRunning

	// StatusRestarting means a restart is in progress or scheduled.
	StatusRestarting

	// StatusFailed means the last instance exited abnormally or could not start.
	StatusFailed

	// StatusSupervised means an instance is alive and manages its own workers.
	// Supervised processes are never auto-restarted.
	StatusSupervised
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusRunning:
		return "running"
	case StatusRestarting:
		return "restarting"
	case StatusFailed:
		return "failed"
	case StatusSupervised:
		return "supervised"
	default:
		return "unknown"
	}
}

// IsActive reports whether the status represents a live or pending instance.
func (s Status) IsActive() bool {
	return s == StatusRunning || s == StatusSupervised || s == StatusRestarting
}

// RestartPolicy decides whether an exited process is restarted automatically.
type RestartPolicy int

const (
	RestartNever RestartPolicy = iota
	RestartOnFailure
	RestartAlways
)

func (p RestartPolicy) String() string {
	switch p {
	case RestartNever:
		return "never"
	case RestartOnFailure:
		return "on-failure"
	case RestartAlways:
		return "always"
	default:
		return "unknown"
	}
}

// ParseRestartPolicy parses "never", "on-failure" (or "on_failure"), and
// "always". The empty string yields RestartOnFailure.
func ParseRestartPolicy(s string) (RestartPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return RestartOnFailure, nil
	case "never", "no":
		return RestartNever, nil
	case "on-failure", "on_failure", "onfailure":
		return RestartOnFailure, nil
	case "always":
		return RestartAlways, nil
	default:
		return RestartNever, fmt.Errorf("unknown restart policy %q (want never, on-failure, always)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p RestartPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *RestartPolicy) UnmarshalText(text []byte) error {
	v, err := ParseRestartPolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
