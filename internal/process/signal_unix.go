//go:build !windows

package process

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// SetProcessGroup places the child in its own process group so the whole
// tree (php artisan serve forks php -S) can be signalled at once.
func SetProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// Terminate asks the process group of p to exit with SIGTERM.
func Terminate(p *os.Process) error {
	return signalGroup(p, unix.SIGTERM)
}

// ForceKill sends SIGKILL to the process group of p.
func ForceKill(p *os.Process) error {
	return signalGroup(p, unix.SIGKILL)
}

func signalGroup(p *os.Process, sig unix.Signal) error {
	if pgid, err := unix.Getpgid(p.Pid); err == nil {
		if err := unix.Kill(-pgid, sig); err == nil {
			return nil
		}
	}
	return p.Signal(sig)
}
