package supervisor

import (
	"math"
	"time"

	"github.com/randomizedcoder/go-devmux/internal/process"
)

// RestartState tracks crash history for one process. It is created lazily
// and survives config reloads.
type RestartState struct {
	ConsecutiveFailures uint32
	LastRestart         time.Time
}

// recordFailure increments the failure count, saturating at MaxUint32.
func (r *RestartState) recordFailure(now time.Time) {
	if r.ConsecutiveFailures < math.MaxUint32 {
		r.ConsecutiveFailures++
	}
	r.LastRestart = now
}

// ShouldRestart applies a restart policy to an exit. A nil exit code
// (signalled or force-killed) counts as a failure.
func ShouldRestart(cfg process.Config, exitCode *int) bool {
	if cfg.Supervised {
		return false
	}
	switch cfg.Restart {
	case process.RestartAlways:
		return true
	case process.RestartOnFailure:
		return exitCode == nil || *exitCode != 0
	default:
		return false
	}
}
