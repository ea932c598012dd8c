//go:build !windows

package preflight

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/randomizedcoder/go-devmux/internal/process"
)

func TestCheck_String(t *testing.T) {
	t.Run("passed_with_required", func(t *testing.T) {
		c := Check{Name: "test_check", Required: 100, Actual: 200, Passed: true}
		s := c.String()
		if !strings.Contains(s, "✓") || !strings.Contains(s, "200") || !strings.Contains(s, "100") {
			t.Errorf("String() = %q", s)
		}
	})

	t.Run("failed_check", func(t *testing.T) {
		c := Check{Name: "test_check", Required: 100, Actual: 50}
		if s := c.String(); !strings.Contains(s, "✗") {
			t.Errorf("String() = %q, want ✗", s)
		}
	})

	t.Run("warning_check", func(t *testing.T) {
		c := Check{Name: "test_check", Passed: true, Warning: true, Message: "warning message"}
		s := c.String()
		if !strings.Contains(s, "⚠") || !strings.Contains(s, "warning message") {
			t.Errorf("String() = %q", s)
		}
	})
}

func TestRunAll(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "vendor", "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "vendor", "bin", "tool"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	configs := []process.Config{
		{ID: process.Builtin(process.KindServe), Command: "sh", WorkingDir: dir},
		{ID: process.Builtin(process.KindQueue), Command: "sh", WorkingDir: dir},
		{ID: process.Custom("tool"), Command: "./vendor/bin/tool", WorkingDir: dir},
		{ID: process.Custom("ghost"), Command: "definitely-not-a-real-binary-xyz", WorkingDir: dir},
	}

	result := RunAll(configs, filepath.Join(dir, "storage", "logs"))
	if !result.Passed {
		t.Fatalf("RunAll() failed: %+v", result.Checks)
	}

	byName := map[string]Check{}
	count := map[string]int{}
	for _, c := range result.Checks {
		byName[c.Name] = c
		count[c.Name]++
	}

	if count["command:sh"] != 1 {
		t.Errorf("command:sh checked %d times, want 1", count["command:sh"])
	}
	if count["working_dir"] != 1 {
		t.Errorf("working_dir checked %d times, want 1", count["working_dir"])
	}
	if c := byName["command:./vendor/bin/tool"]; c.Warning {
		t.Errorf("relative vendor command not resolved: %s", c.Message)
	}
	ghost := byName["command:definitely-not-a-real-binary-xyz"]
	if !ghost.Warning || !strings.Contains(ghost.Message, "ghost") {
		t.Errorf("missing command check = %+v", ghost)
	}
	if c := byName["log_dir"]; !c.Warning {
		t.Errorf("missing log dir not a warning: %+v", c)
	}
	if got := len(result.Warnings()); got != 2 {
		t.Errorf("Warnings() = %d, want 2", got)
	}
}

func TestRunAll_MissingWorkingDir(t *testing.T) {
	configs := []process.Config{
		{ID: process.Custom("docs"), Command: "sh", WorkingDir: filepath.Join(t.TempDir(), "nope")},
	}
	result := RunAll(configs, "")
	if result.Passed {
		t.Error("RunAll() passed with a missing working directory")
	}
}

func TestCheckWorkingDir_File(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	os.WriteFile(f, nil, 0o644)
	if c := checkWorkingDir(f); c.Passed {
		t.Error("file accepted as working directory")
	}
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	PrintResults(&buf, &Result{Checks: []Check{
		{Name: "command:php", Passed: true, Warning: true, Message: "serve will fail to start"},
		{Name: "working_dir", Passed: true, Message: "/srv/app"},
	}})

	out := buf.String()
	if !strings.Contains(out, "Preflight checks:") {
		t.Errorf("output = %q", out)
	}
	if strings.Count(out, "Fix:") != 1 || !strings.Contains(out, "install PHP") {
		t.Errorf("fix suggestions = %q", out)
	}
}

func TestSuggestFix(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"file_descriptors", "ulimit"},
		{"command:pnpm", "Node.js"},
		{"command:./vendor/bin/pint", "composer install"},
		{"command:mailpit", "install mailpit"},
		{"log_dir", "--no-log-tail"},
		{"unknown", "documentation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := suggestFix(tt.name); !strings.Contains(got, tt.want) {
				t.Errorf("suggestFix(%q) = %q, want it to mention %q", tt.name, got, tt.want)
			}
		})
	}
}

// ============================================================================
// Lock
// ============================================================================

func TestAcquireLock(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}
	if filepath.Base(lock.Path()) != LockFileName {
		t.Errorf("Path() = %q", lock.Path())
	}

	if _, err := AcquireLock(dir); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second AcquireLock() error = %v, want ErrAlreadyRunning", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}

	again, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock() after release error = %v", err)
	}
	again.Release()

	var nilLock *Lock
	if err := nilLock.Release(); err != nil {
		t.Errorf("nil Release() error = %v", err)
	}
}
