package supervisor

import (
	"math"
	"time"
)

// BackoffConfig holds the configuration for exponential restart backoff.
type BackoffConfig struct {
	Initial    time.Duration // Delay after zero failures (default: 1s)
	Max        time.Duration // Upper bound on any delay (default: 60s)
	Multiplier float64       // Growth per consecutive failure (default: 2)
}

// DefaultBackoffConfig returns min(2^failures, 60) seconds.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    time.Second,
		Max:        60 * time.Second,
		Multiplier: 2,
	}
}

// Delay returns the wait before restarting after the given number of
// consecutive failures: Initial * Multiplier^failures, capped at Max.
func (c BackoffConfig) Delay(failures uint32) time.Duration {
	delay := float64(c.Initial) * math.Pow(c.Multiplier, float64(failures))
	if delay > float64(c.Max) || math.IsInf(delay, 0) || math.IsNaN(delay) {
		return c.Max
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}
