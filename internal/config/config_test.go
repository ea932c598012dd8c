package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

// =============================================================================
// DefaultConfig
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"KillTimeout", cfg.KillTimeout, 5 * time.Second},
		{"ShutdownTimeout", cfg.ShutdownTimeout, time.Second},
		{"RestartDelay", cfg.RestartDelay, 500 * time.Millisecond},
		{"BackoffInitial", cfg.BackoffInitial, time.Second},
		{"BackoffMax", cfg.BackoffMax, 60 * time.Second},
		{"LogLines", cfg.LogLines, 500},
		{"LogLevelFilter", cfg.LogLevelFilter, "debug"},
		{"MetricsAddr", cfg.MetricsAddr, ""},
		{"NoTUI", cfg.NoTUI, false},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("Validate(DefaultConfig()) = %v", err)
	}
}

func TestConfig_Paths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProjectDir = "/srv/app"
	cfg.TailFiles = []string{"worker.log", "/var/log/php-fpm.log"}

	if got := cfg.ProjectFilePath(); got != filepath.Join("/srv/app", ProjectFileName) {
		t.Errorf("ProjectFilePath() = %q", got)
	}
	if got := cfg.LogDir(); got != "/srv/app/storage/logs" {
		t.Errorf("LogDir() = %q", got)
	}
	got := cfg.ResolvedTailFiles()
	if got[0] != "/srv/app/worker.log" || got[1] != "/var/log/php-fpm.log" {
		t.Errorf("ResolvedTailFiles() = %v", got)
	}

	cfg.ConfigPath = "/etc/devmux.toml"
	if got := cfg.ProjectFilePath(); got != "/etc/devmux.toml" {
		t.Errorf("ProjectFilePath() with --config = %q", got)
	}
}

// =============================================================================
// Validate
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
		{"bad level filter", func(c *Config) { c.LogLevelFilter = "loud" }, "log_level_filter"},
		{"zero log lines", func(c *Config) { c.LogLines = 0 }, "log_lines"},
		{"zero kill timeout", func(c *Config) { c.KillTimeout = 0 }, "kill_timeout"},
		{"backoff max below initial", func(c *Config) { c.BackoffMax = 100 * time.Millisecond }, "backoff_max"},
		{"empty project dir", func(c *Config) { c.ProjectDir = "" }, "project_dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)

			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error on %s", tt.wantField)
			}
			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error %v is not a ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.wantField) {
				t.Errorf("Validate() = %v, want field %s", err, tt.wantField)
			}
		})
	}
}

// =============================================================================
// Flags
// =============================================================================

func TestBindFlags(t *testing.T) {
	cfg := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs, cfg)

	err := fs.Parse([]string{
		"--no-tui",
		"--metrics", "127.0.0.1:17092",
		"--tail", "a.log", "--tail", "b.log",
		"-v",
		"--kill-timeout", "2s",
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !cfg.NoTUI || !cfg.Verbose {
		t.Errorf("NoTUI=%v Verbose=%v, want both true", cfg.NoTUI, cfg.Verbose)
	}
	if cfg.MetricsAddr != "127.0.0.1:17092" {
		t.Errorf("MetricsAddr = %q", cfg.MetricsAddr)
	}
	if strings.Join(cfg.TailFiles, ",") != "a.log,b.log" {
		t.Errorf("TailFiles = %v", cfg.TailFiles)
	}
	if cfg.KillTimeout != 2*time.Second {
		t.Errorf("KillTimeout = %v", cfg.KillTimeout)
	}
}

func TestApplyProjectFile_FlagsWin(t *testing.T) {
	pf := &ProjectFile{Logs: LogsConfig{MaxLines: 50, Files: []string{"x.log"}, DefaultLevel: "error"}}

	t.Run("file applies when flags unset", func(t *testing.T) {
		cfg := DefaultConfig()
		ApplyProjectFile(cfg, pf, func(string) bool { return false })
		if cfg.LogLines != 50 || cfg.LogLevelFilter != "error" || len(cfg.TailFiles) != 1 {
			t.Errorf("cfg = %+v", cfg)
		}
	})

	t.Run("explicit flags win", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.LogLines = 900
		ApplyProjectFile(cfg, pf, func(name string) bool { return name == flagLogLines })
		if cfg.LogLines != 900 {
			t.Errorf("LogLines = %d, want flag value 900", cfg.LogLines)
		}
		if cfg.LogLevelFilter != "error" {
			t.Errorf("LogLevelFilter = %q, want file value", cfg.LogLevelFilter)
		}
	})
}
