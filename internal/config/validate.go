package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/randomizedcoder/go-devmux/internal/logtail"
	"github.com/randomizedcoder/go-devmux/internal/process"
)

// ReservedHotkeys are bound to global actions and cannot be assigned to
// custom processes.
var ReservedHotkeys = []rune{'r', 'c', 'x', 'a', 'l'}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the runtime options for errors and inconsistencies.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.ProjectDir == "" {
		errs = append(errs, ValidationError{
			Field:   "project_dir",
			Message: "must not be empty",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.LogLevel)] {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("must be debug, info, warn, or error (got %q)", cfg.LogLevel),
		})
	}

	if _, ok := logtail.ParseLevelName(cfg.LogLevelFilter); !ok {
		errs = append(errs, ValidationError{
			Field:   "log_level_filter",
			Message: fmt.Sprintf("unknown Laravel log level %q", cfg.LogLevelFilter),
		})
	}

	if cfg.LogLines < 1 {
		errs = append(errs, ValidationError{
			Field:   "log_lines",
			Message: "must be at least 1",
		})
	}

	for field, d := range map[string]time.Duration{
		"kill_timeout":     cfg.KillTimeout,
		"shutdown_timeout": cfg.ShutdownTimeout,
		"restart_delay":    cfg.RestartDelay,
		"backoff_initial":  cfg.BackoffInitial,
		"backoff_max":      cfg.BackoffMax,
	} {
		if d <= 0 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "must be positive",
			})
		}
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		errs = append(errs, ValidationError{
			Field:   "backoff_max",
			Message: "must be >= backoff_initial",
		})
	}

	return errors.Join(errs...)
}

// ValidateProjectFile checks custom process definitions, overrides, and
// log settings.
func ValidateProjectFile(pf *ProjectFile) error {
	var errs []error

	builtinHotkeys := make(map[rune]bool)
	for _, k := range process.Kinds() {
		builtinHotkeys[k.Hotkey()] = true
	}
	reserved := make(map[rune]bool)
	for _, r := range ReservedHotkeys {
		reserved[r] = true
	}

	names := make(map[string]bool)
	hotkeys := make(map[rune]string)

	for i, c := range pf.Custom {
		field := fmt.Sprintf("custom[%d]", i)
		name := normalizeName(c.Name)

		if name == "" {
			errs = append(errs, ValidationError{Field: field + ".name", Message: "must not be empty"})
		} else {
			field = fmt.Sprintf("custom[%s]", c.Name)
			if names[name] {
				errs = append(errs, ValidationError{Field: field + ".name", Message: "duplicate custom process name"})
			}
			names[name] = true
			if _, isBuiltin := process.KindFromName(name); isBuiltin {
				errs = append(errs, ValidationError{Field: field + ".name", Message: "conflicts with built-in process"})
			}
		}

		if strings.TrimSpace(c.DisplayName) == "" {
			errs = append(errs, ValidationError{Field: field + ".display_name", Message: "is required"})
		}
		if strings.TrimSpace(c.Command) == "" {
			errs = append(errs, ValidationError{Field: field + ".command", Message: "is required"})
		}
		if _, err := process.ParseRestartPolicy(c.Restart); err != nil {
			errs = append(errs, ValidationError{Field: field + ".restart", Message: err.Error()})
		}

		if c.Hotkey == "" {
			continue
		}
		hk := c.HotkeyRune()
		switch {
		case utf8.RuneCountInString(c.Hotkey) != 1 || hk < 'a' || hk > 'z':
			errs = append(errs, ValidationError{Field: field + ".hotkey", Message: fmt.Sprintf("%q must be a single lowercase letter", c.Hotkey)})
		case reserved[hk]:
			errs = append(errs, ValidationError{Field: field + ".hotkey", Message: fmt.Sprintf("%q is reserved for system use", c.Hotkey)})
		case builtinHotkeys[hk]:
			errs = append(errs, ValidationError{Field: field + ".hotkey", Message: fmt.Sprintf("%q conflicts with a built-in process hotkey", c.Hotkey)})
		case hotkeys[hk] != "":
			errs = append(errs, ValidationError{Field: field + ".hotkey", Message: fmt.Sprintf("%q already used by %s", c.Hotkey, hotkeys[hk])})
		default:
			hotkeys[hk] = c.Name
		}
	}

	for name, o := range pf.Overrides {
		field := fmt.Sprintf("overrides.%s", name)
		if _, ok := process.KindFromName(name); !ok {
			errs = append(errs, ValidationError{Field: field, Message: "not a built-in process (serve, vite, queue, horizon, reverb)"})
		}
		if _, err := process.ParseRestartPolicy(o.Restart); err != nil {
			errs = append(errs, ValidationError{Field: field + ".restart", Message: err.Error()})
		}
	}

	if pf.Logs.MaxLines < 0 {
		errs = append(errs, ValidationError{Field: "logs.max_lines", Message: "must be at least 1"})
	}
	if pf.Logs.DefaultLevel != "" {
		if _, ok := logtail.ParseLevelName(pf.Logs.DefaultLevel); !ok {
			errs = append(errs, ValidationError{Field: "logs.default_level", Message: fmt.Sprintf("unknown Laravel log level %q", pf.Logs.DefaultLevel)})
		}
	}

	return errors.Join(errs...)
}
