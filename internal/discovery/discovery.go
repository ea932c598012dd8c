// Package discovery inspects a Laravel project and derives the processes
// and tools to manage from its manifests and the project file.
package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/tidwall/gjson"

	"github.com/randomizedcoder/go-devmux/internal/config"
	"github.com/randomizedcoder/go-devmux/internal/process"
)

// ErrNotLaravel is returned when the directory is not a Laravel project.
var ErrNotLaravel = errors.New("not a Laravel project")

// Result is what discovery found.
type Result struct {
	Configs  []process.Config
	Registry *process.Registry
	Tools    []Tool

	// Sail is true when artisan runs through ./vendor/bin/sail.
	Sail bool

	// Herd is true when Laravel Herd serves the site and serve was skipped.
	Herd bool
}

// herdInstalled is replaceable in tests.
var herdInstalled = detectHerd

// Discover reads composer.json and package.json under dir and applies pf.
// A nil pf is treated as an empty project file.
func Discover(dir string, pf *config.ProjectFile) (*Result, error) {
	if pf == nil {
		pf = &config.ProjectFile{}
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	composer, err := readJSON(filepath.Join(absDir, "composer.json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: composer.json not found in %s", ErrNotLaravel, absDir)
	}
	if err != nil {
		return nil, err
	}
	if !composer.Get(path("require", "laravel/framework")).Exists() {
		return nil, fmt.Errorf("%w: laravel/framework not required in composer.json", ErrNotLaravel)
	}

	res := &Result{Registry: process.NewRegistry()}
	add := func(cfg process.Config) {
		k, _ := cfg.ID.Kind()
		if pf.IsDisabled(k) {
			return
		}
		res.Configs = append(res.Configs, applyOverride(cfg, k, pf))
	}
	artisan := func(kind process.Kind, args ...string) process.Config {
		return process.Config{
			ID:         process.Builtin(kind),
			Command:    "php",
			Args:       append([]string{"artisan"}, args...),
			WorkingDir: absDir,
			Restart:    process.RestartOnFailure,
		}
	}

	if herdInstalled() {
		res.Herd = true
	} else {
		add(artisan(process.KindServe, "serve"))
	}

	if requires(composer, "laravel/horizon") && !pf.IsDisabled(process.KindHorizon) {
		horizon := artisan(process.KindHorizon, "horizon")
		horizon.Supervised = true
		horizon.Restart = process.RestartNever
		add(horizon)
	} else {
		add(artisan(process.KindQueue, "queue:work", "--tries=3"))
	}

	if requires(composer, "laravel/reverb") {
		add(artisan(process.KindReverb, "reverb:start"))
	}

	if vite, ok, err := discoverVite(absDir); err != nil {
		return nil, err
	} else if ok {
		add(vite)
	}

	for _, c := range pf.EnabledCustom() {
		cfg := process.Config{
			ID:         process.Custom(c.Name),
			Command:    c.Command,
			Args:       append([]string(nil), c.Args...),
			WorkingDir: absDir,
			Env:        c.Env,
			Supervised: c.Supervised,
		}
		if c.WorkingDir != "" {
			cfg.WorkingDir = resolve(absDir, c.WorkingDir)
		}
		cfg.Restart, _ = process.ParseRestartPolicy(c.Restart)
		res.Configs = append(res.Configs, cfg)
		res.Registry.Register(cfg.ID, process.Meta{DisplayName: c.DisplayName, Hotkey: c.HotkeyRune()})
	}

	res.Sail = detectSail(absDir)
	res.Tools = discoverTools(absDir, res.Sail)
	return res, nil
}

func discoverVite(dir string) (process.Config, bool, error) {
	pkg, err := readJSON(filepath.Join(dir, "package.json"))
	if errors.Is(err, os.ErrNotExist) {
		return process.Config{}, false, nil
	}
	if err != nil {
		return process.Config{}, false, err
	}

	hasVite := pkg.Get(path("devDependencies", "vite")).Exists() ||
		pkg.Get(path("devDependencies", "laravel-vite-plugin")).Exists() ||
		pkg.Get(path("dependencies", "vite")).Exists()
	if !hasVite || !pkg.Get(path("scripts", "dev")).Exists() {
		return process.Config{}, false, nil
	}

	command, args := PackageManager(dir)
	return process.Config{
		ID:         process.Builtin(process.KindVite),
		Command:    command,
		Args:       args,
		WorkingDir: dir,
		Restart:    process.RestartOnFailure,
	}, true, nil
}

// PackageManager infers the JS package manager from lockfiles, in priority
// order bun, pnpm, yarn, npm, and returns the command that runs "dev".
func PackageManager(dir string) (string, []string) {
	switch {
	case exists(filepath.Join(dir, "bun.lockb")), exists(filepath.Join(dir, "bun.lock")):
		return "bun", []string{"run", "dev"}
	case exists(filepath.Join(dir, "pnpm-lock.yaml")):
		return "pnpm", []string{"run", "dev"}
	case exists(filepath.Join(dir, "yarn.lock")):
		return "yarn", []string{"dev"}
	default:
		return "npm", []string{"run", "dev"}
	}
}

func applyOverride(cfg process.Config, k process.Kind, pf *config.ProjectFile) process.Config {
	o, ok := pf.Override(k)
	if !ok {
		return cfg
	}
	if o.Command != "" {
		cfg.Command = o.Command
	}
	if o.Args != nil {
		cfg.Args = append([]string(nil), o.Args...)
	}
	if len(o.Env) > 0 {
		cfg.Env = o.Env
	}
	if o.Restart != "" {
		cfg.Restart, _ = process.ParseRestartPolicy(o.Restart)
	}
	if o.Supervised != nil {
		cfg.Supervised = *o.Supervised
	}
	return cfg
}

func requires(composer gjson.Result, pkg string) bool {
	return composer.Get(path("require", pkg)).Exists() ||
		composer.Get(path("require-dev", pkg)).Exists()
}

// path builds a gjson path whose components may contain '/', '-' or '.'.
func path(parts ...string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "."
		}
		out += gjson.Escape(p)
	}
	return out
}

func readJSON(p string) (gjson.Result, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("%s: invalid JSON", filepath.Base(p))
	}
	return gjson.ParseBytes(data), nil
}

func resolve(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func detectHerd() bool {
	if runtime.GOOS != "darwin" {
		return false
	}
	if exists("/Applications/Herd.app") {
		return true
	}
	home, err := os.UserHomeDir()
	return err == nil && exists(filepath.Join(home, "Library", "Application Support", "Herd"))
}

func detectSail(dir string) bool {
	if !exists(filepath.Join(dir, "vendor", "bin", "sail")) {
		return false
	}
	for _, f := range []string{"docker-compose.yml", "docker-compose.yaml", "compose.yml", "compose.yaml"} {
		if exists(filepath.Join(dir, f)) {
			return true
		}
	}
	return false
}
