package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectFileName)
	if err := os.WriteFile(path, []byte("[disabled]\nvite = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	reloads := make(chan *ProjectFile, 4)
	failures := make(chan error, 4)
	w := NewWatcher(path, nil, func(pf *ProjectFile) { reloads <- pf }, func(err error) { failures <- err })
	w.SetDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("[disabled]\nqueue = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case pf := <-reloads:
		if !pf.Disabled.Queue || pf.Disabled.Vite {
			t.Errorf("reloaded = %+v", pf.Disabled)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}

	if err := os.WriteFile(path, []byte("[disabled\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-failures:
	case pf := <-reloads:
		t.Fatalf("invalid file reloaded as %+v", pf)
	case <-time.After(5 * time.Second):
		t.Fatal("no error reported for invalid file")
	}
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectFileName)

	reloads := make(chan *ProjectFile, 4)
	w := NewWatcher(path, nil, func(pf *ProjectFile) { reloads <- pf }, nil)
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "composer.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case pf := <-reloads:
		t.Errorf("unexpected reload %+v", pf)
	case <-time.After(300 * time.Millisecond):
	}
}
