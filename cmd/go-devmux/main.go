// Package main provides the go-devmux CLI entry point.
//
// go-devmux runs the development processes of a Laravel project (the PHP
// server, Vite, queue workers, Horizon, Reverb and custom processes) in one
// terminal, restarts them when they crash, and follows the Laravel logs.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/randomizedcoder/go-devmux/internal/config"
	"github.com/randomizedcoder/go-devmux/internal/discovery"
	"github.com/randomizedcoder/go-devmux/internal/logging"
	"github.com/randomizedcoder/go-devmux/internal/logtail"
	"github.com/randomizedcoder/go-devmux/internal/metrics"
	"github.com/randomizedcoder/go-devmux/internal/orchestrator"
	"github.com/randomizedcoder/go-devmux/internal/preflight"
	"github.com/randomizedcoder/go-devmux/internal/stats"
	"github.com/randomizedcoder/go-devmux/internal/supervisor"
	"github.com/randomizedcoder/go-devmux/internal/tui"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/go-devmux
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.DefaultConfig()

	root := &cobra.Command{
		Use:   "go-devmux [project-dir]",
		Short: "Run and supervise the dev processes of a Laravel project",
		Long: `go-devmux discovers the development processes of a Laravel project from
composer.json and package.json, runs them side by side, restarts them with
exponential backoff when they crash, and tails storage/logs.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cfg.ProjectDir = args[0]
			}
			return run(cmd, cfg)
		},
	}
	config.BindFlags(root.Flags(), cfg)

	root.AddCommand(newVersionCmd(), newInitCmd(), newStatusCmd())
	return root
}

func run(cmd *cobra.Command, cfg *config.Config) error {
	dir, err := filepath.Abs(cfg.ProjectDir)
	if err != nil {
		return fmt.Errorf("resolve project dir: %w", err)
	}
	cfg.ProjectDir = dir

	pf, err := config.LoadProjectFile(cfg.ProjectFilePath())
	if err != nil {
		return err
	}
	config.ApplyProjectFile(cfg, pf, cmd.Flags().Changed)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog.Close()
	logging.SetDefault(logger)

	lock, err := preflight.AcquireLock(dir)
	if err != nil {
		if errors.Is(err, preflight.ErrAlreadyRunning) {
			return fmt.Errorf("another go-devmux is already running for %s", dir)
		}
		return err
	}
	defer lock.Release()

	found, err := discovery.Discover(dir, pf)
	if err != nil {
		return err
	}

	if !cfg.SkipPreflight {
		result := preflight.RunAll(found.Configs, cfg.LogDir())
		if !result.Passed || len(result.Warnings()) > 0 {
			preflight.PrintResults(os.Stderr, result)
		}
		if !result.Passed {
			return errors.New("preflight checks failed (use --skip-preflight to ignore)")
		}
	}

	logger.Info("starting",
		"version", version,
		"project", dir,
		"processes", len(found.Configs),
		"sail", found.Sail,
		"herd", found.Herd,
		"metrics_addr", cfg.MetricsAddr,
	)

	collector := metrics.NewCollector(version)
	var metricsAddr string
	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr, collector.Gatherer(), logger)
		if err := srv.Start(); err != nil {
			return err
		}
		metricsAddr = srv.Addr()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	orch := orchestrator.New(orchestrator.Config{
		ProjectDir:      dir,
		Processes:       found.Configs,
		Registry:        found.Registry,
		LogDir:          cfg.LogDir(),
		TailFiles:       cfg.ResolvedTailFiles(),
		LogLines:        cfg.LogLines,
		NoLogTail:       cfg.NoLogTail,
		KillTimeout:     cfg.KillTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		RestartDelay:    cfg.RestartDelay,
		Backoff: supervisor.BackoffConfig{
			Initial:    cfg.BackoffInitial,
			Max:        cfg.BackoffMax,
			Multiplier: 2,
		},
		AutoStart: true,
		Verbose:   cfg.Verbose,
		Logger:    logger,
		Metrics:   collector,
		Stats:     stats.NewTracker(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.WatchConfig {
		watchProjectFile(ctx, cfg, orch, logger)
	}

	if cfg.NoTUI {
		err = orch.Run(ctx)
	} else {
		err = runTUI(ctx, cfg, orch, found, metricsAddr)
	}
	if err != nil {
		return err
	}

	fmt.Fprint(os.Stderr, orch.Summary(metricsAddr))
	if cfg.MetricsDump != "" {
		if err := dumpMetrics(cfg.MetricsDump, collector); err != nil {
			logger.Warn("metrics_dump_failed", "path", cfg.MetricsDump, "error", err)
		}
	}
	return nil
}

// newLogger writes to stderr in headless mode. Under the TUI logs go to
// --log-file or are discarded.
func newLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	switch {
	case cfg.NoTUI:
		return logging.NewLogger(os.Stderr, cfg.LogFormat, cfg.LogLevel, cfg.Verbose), nopCloser{}, nil
	case cfg.LogFile != "":
		return logging.NewFileLogger(cfg.LogFile, cfg.LogFormat, cfg.LogLevel, cfg.Verbose)
	default:
		return logging.Discard(), nopCloser{}, nil
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func runTUI(ctx context.Context, cfg *config.Config, orch *orchestrator.Orchestrator, found *discovery.Result, metricsAddr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- orch.Run(ctx) }()

	minLevel, _ := logtail.ParseLevelName(cfg.LogLevelFilter)
	model := tui.New(tui.Config{
		Controller:  orch,
		Tools:       found.Tools,
		ProjectDir:  cfg.ProjectDir,
		MetricsAddr: metricsAddr,
		Version:     version,
		MinLevel:    minLevel,
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	go func() {
		<-ctx.Done()
		tui.SendQuit(program)
	}()

	_, tuiErr := program.Run()
	if errors.Is(tuiErr, tea.ErrProgramKilled) {
		tuiErr = nil
	}
	cancel()
	if err := <-runErr; err != nil {
		return err
	}
	return tuiErr
}

// watchProjectFile re-runs discovery whenever the project file changes and
// hands the result to the orchestrator.
func watchProjectFile(ctx context.Context, cfg *config.Config, orch *orchestrator.Orchestrator, logger *slog.Logger) {
	w := config.NewWatcher(cfg.ProjectFilePath(), logger,
		func(pf *config.ProjectFile) {
			found, err := discovery.Discover(cfg.ProjectDir, pf)
			if err != nil {
				logger.Warn("config_reload_failed", "error", err)
				return
			}
			orch.Reload(found.Configs, found.Registry)
		},
		func(err error) {
			logger.Warn("config_reload_failed", "error", err)
		},
	)
	if err := w.Start(ctx); err != nil {
		logger.Warn("config_watch_disabled", "error", err)
	}
}

func dumpMetrics(path string, collector *metrics.Collector) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := collector.WriteText(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
