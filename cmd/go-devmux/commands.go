package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/go-devmux/internal/config"
	"github.com/randomizedcoder/go-devmux/internal/metrics"
	"github.com/randomizedcoder/go-devmux/internal/stats"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "go-devmux %s\n", version)
		},
	}
}

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [project-dir]",
		Short: "Write an example " + config.ProjectFileName,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			path := filepath.Join(dir, config.ProjectFileName)
			return writeExample(cmd.OutOrStdout(), path, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func writeExample(out io.Writer, path string, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err != nil {
		return err
	}
	if err := config.ExampleProjectFile().Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s\n", path)
	return nil
}

func newStatusCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "status <metrics-addr>",
		Short: "Show process state from a running instance's metrics endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return printStatus(ctx, cmd.OutOrStdout(), &http.Client{}, args[0])
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "Scrape timeout")
	return cmd
}

func printStatus(ctx context.Context, out io.Writer, client *http.Client, addr string) error {
	families, err := metrics.Scrape(ctx, client, addr)
	if err != nil {
		return err
	}
	states := metrics.ProcessStates(families)
	if len(states) == 0 {
		fmt.Fprintln(out, "No processes reported.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROCESS\tSTATE\tSTARTS\tRESTARTS\tBACKOFF")
	for _, s := range states {
		state := "stopped"
		if s.Running {
			state = "running"
		}
		backoff := "-"
		if s.Backoff > 0 {
			backoff = stats.FormatUptime(s.Backoff)
		}
		fmt.Fprintf(w, "%s\t%s\t%.0f\t%.0f\t%s\n", s.Name, state, s.Spawns, s.Restarts, backoff)
	}
	return w.Flush()
}
