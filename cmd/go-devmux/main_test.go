package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/randomizedcoder/go-devmux/internal/config"
	"github.com/randomizedcoder/go-devmux/internal/metrics"
)

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := out.String(); got != "go-devmux dev\n" {
		t.Errorf("output = %q", got)
	}
}

func TestWriteExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.ProjectFileName)
	var out bytes.Buffer

	if err := writeExample(&out, path, false); err != nil {
		t.Fatalf("writeExample() error = %v", err)
	}
	if _, err := config.LoadProjectFile(path); err != nil {
		t.Errorf("example does not load back: %v", err)
	}
	if !strings.Contains(out.String(), "Wrote") {
		t.Errorf("output = %q", out.String())
	}

	if err := writeExample(&out, path, false); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("second write error = %v, want already exists", err)
	}
	if err := writeExample(&out, path, true); err != nil {
		t.Errorf("forced write error = %v", err)
	}
}

func TestPrintStatus(t *testing.T) {
	c := metrics.NewCollector("test")
	c.ProcessSpawned("serve")
	c.ProcessSpawned("queue")
	c.ProcessExited("queue", nil, false, time.Second)
	c.RestartScheduled("queue", 4*time.Second)

	srv := httptest.NewServer(promhttp.HandlerFor(c.Gatherer(), promhttp.HandlerOpts{}))
	defer srv.Close()

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := printStatus(ctx, &out, http.DefaultClient, srv.URL); err != nil {
		t.Fatalf("printStatus() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header + 2:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[1], "queue") || !strings.Contains(lines[1], "stopped") || !strings.Contains(lines[1], "4s") {
		t.Errorf("queue row = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "serve") || !strings.Contains(lines[2], "running") {
		t.Errorf("serve row = %q", lines[2])
	}
}

func TestPrintStatus_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := printStatus(ctx, &bytes.Buffer{}, http.DefaultClient, "127.0.0.1:1"); err == nil {
		t.Error("expected error for unreachable endpoint")
	}
}

func TestDumpMetrics(t *testing.T) {
	c := metrics.NewCollector("test")
	c.ProcessSpawned("serve")
	path := filepath.Join(t.TempDir(), "metrics.txt")

	if err := dumpMetrics(path, c); err != nil {
		t.Fatalf("dumpMetrics() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `devmux_process_spawns_total{process="serve"} 1`) {
		t.Errorf("dump missing spawn counter:\n%s", data)
	}
}
