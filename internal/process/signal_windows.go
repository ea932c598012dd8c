//go:build windows

package process

import (
	"errors"
	"os"
	"os/exec"
)

// ErrSignalUnsupported is returned by Terminate where graceful signals do
// not exist. Callers fall back to ForceKill.
var ErrSignalUnsupported = errors.New("graceful termination not supported")

// SetProcessGroup is a no-op on Windows.
func SetProcessGroup(cmd *exec.Cmd) {}

// Terminate always fails on Windows.
func Terminate(p *os.Process) error {
	return ErrSignalUnsupported
}

// ForceKill terminates p immediately.
func ForceKill(p *os.Process) error {
	return p.Kill()
}
