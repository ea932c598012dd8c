package discovery

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/randomizedcoder/go-devmux/internal/config"
	"github.com/randomizedcoder/go-devmux/internal/process"
)

const laravelComposer = `{
  "require": {"php": "^8.2", "laravel/framework": "^11.0"},
  "require-dev": {"pestphp/pest": "^3.0"}
}`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func withoutHerd(t *testing.T) {
	t.Helper()
	old := herdInstalled
	herdInstalled = func() bool { return false }
	t.Cleanup(func() { herdInstalled = old })
}

func ids(cfgs []process.Config) []string {
	out := make([]string, len(cfgs))
	for i, c := range cfgs {
		out[i] = c.ID.Name()
	}
	return out
}

func find(t *testing.T, cfgs []process.Config, id process.ID) process.Config {
	t.Helper()
	for _, c := range cfgs {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("%s not discovered in %v", id, ids(cfgs))
	return process.Config{}
}

// ============================================================================
// Project detection
// ============================================================================

func TestDiscover_NotLaravel(t *testing.T) {
	withoutHerd(t)

	tests := []struct {
		name  string
		files map[string]string
	}{
		{"no composer.json", map[string]string{"package.json": `{}`}},
		{"framework missing", map[string]string{"composer.json": `{"require": {"php": "^8.2"}}`}},
		{"framework only in require-dev", map[string]string{
			"composer.json": `{"require-dev": {"laravel/framework": "^11.0"}}`,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Discover(writeFiles(t, tt.files), nil)
			if !errors.Is(err, ErrNotLaravel) {
				t.Errorf("Discover() error = %v, want ErrNotLaravel", err)
			}
		})
	}
}

func TestDiscover_InvalidComposer(t *testing.T) {
	withoutHerd(t)
	dir := writeFiles(t, map[string]string{"composer.json": `{"require": `})
	_, err := Discover(dir, nil)
	if err == nil || errors.Is(err, ErrNotLaravel) {
		t.Errorf("Discover() error = %v, want invalid JSON error", err)
	}
}

// ============================================================================
// Built-in processes
// ============================================================================

func TestDiscover_Minimal(t *testing.T) {
	withoutHerd(t)
	dir := writeFiles(t, map[string]string{"composer.json": laravelComposer})

	res, err := Discover(dir, nil)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if got, want := ids(res.Configs), []string{"serve", "queue"}; !reflect.DeepEqual(got, want) {
		t.Errorf("configs = %v, want %v", got, want)
	}

	serve := find(t, res.Configs, process.Builtin(process.KindServe))
	if serve.CommandLine() != "php artisan serve" {
		t.Errorf("serve = %q", serve.CommandLine())
	}
	if serve.Restart != process.RestartOnFailure {
		t.Errorf("serve restart = %v", serve.Restart)
	}
	queue := find(t, res.Configs, process.Builtin(process.KindQueue))
	if queue.CommandLine() != "php artisan queue:work --tries=3" {
		t.Errorf("queue = %q", queue.CommandLine())
	}
	abs, _ := filepath.Abs(dir)
	if queue.WorkingDir != abs {
		t.Errorf("WorkingDir = %q, want %q", queue.WorkingDir, abs)
	}
}

func TestDiscover_HorizonAndReverb(t *testing.T) {
	withoutHerd(t)
	dir := writeFiles(t, map[string]string{"composer.json": `{
  "require": {"laravel/framework": "^11.0", "laravel/horizon": "^5.0"},
  "require-dev": {"laravel/reverb": "^1.0"}
}`})

	res, err := Discover(dir, nil)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if got, want := ids(res.Configs), []string{"serve", "horizon", "reverb"}; !reflect.DeepEqual(got, want) {
		t.Errorf("configs = %v, want %v", got, want)
	}
	horizon := find(t, res.Configs, process.Builtin(process.KindHorizon))
	if !horizon.Supervised {
		t.Error("horizon not supervised")
	}
	reverb := find(t, res.Configs, process.Builtin(process.KindReverb))
	if reverb.CommandLine() != "php artisan reverb:start" {
		t.Errorf("reverb = %q", reverb.CommandLine())
	}
}

func TestDiscover_HorizonDisabledFallsBackToQueue(t *testing.T) {
	withoutHerd(t)
	dir := writeFiles(t, map[string]string{"composer.json": `{
  "require": {"laravel/framework": "^11.0", "laravel/horizon": "^5.0"}
}`})
	pf := &config.ProjectFile{Disabled: config.DisabledConfig{Horizon: true}}

	res, err := Discover(dir, pf)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if got, want := ids(res.Configs), []string{"serve", "queue"}; !reflect.DeepEqual(got, want) {
		t.Errorf("configs = %v, want %v", got, want)
	}
}

func TestDiscover_Herd(t *testing.T) {
	old := herdInstalled
	herdInstalled = func() bool { return true }
	t.Cleanup(func() { herdInstalled = old })

	dir := writeFiles(t, map[string]string{"composer.json": laravelComposer})
	res, err := Discover(dir, nil)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if !res.Herd {
		t.Error("Herd = false")
	}
	if got, want := ids(res.Configs), []string{"queue"}; !reflect.DeepEqual(got, want) {
		t.Errorf("configs = %v, want %v", got, want)
	}
}

func TestDiscover_Disabled(t *testing.T) {
	withoutHerd(t)
	dir := writeFiles(t, map[string]string{"composer.json": laravelComposer})
	pf := &config.ProjectFile{Disabled: config.DisabledConfig{Serve: true, Queue: true}}

	res, err := Discover(dir, pf)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(res.Configs) != 0 {
		t.Errorf("configs = %v, want none", ids(res.Configs))
	}
}

// ============================================================================
// Vite
// ============================================================================

func TestDiscover_Vite(t *testing.T) {
	withoutHerd(t)
	pkg := `{"scripts": {"dev": "vite"}, "devDependencies": {"vite": "^5.0"}}`

	tests := []struct {
		name     string
		lockfile string
		want     string
	}{
		{"npm default", "", "npm run dev"},
		{"package-lock", "package-lock.json", "npm run dev"},
		{"yarn", "yarn.lock", "yarn dev"},
		{"pnpm", "pnpm-lock.yaml", "pnpm run dev"},
		{"bun binary lockfile", "bun.lockb", "bun run dev"},
		{"bun text lockfile", "bun.lock", "bun run dev"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := map[string]string{"composer.json": laravelComposer, "package.json": pkg}
			if tt.lockfile != "" {
				files[tt.lockfile] = ""
			}
			res, err := Discover(writeFiles(t, files), nil)
			if err != nil {
				t.Fatalf("Discover() error = %v", err)
			}
			vite := find(t, res.Configs, process.Builtin(process.KindVite))
			if vite.CommandLine() != tt.want {
				t.Errorf("vite = %q, want %q", vite.CommandLine(), tt.want)
			}
		})
	}
}

func TestDiscover_LockfilePriority(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"yarn.lock":      "",
		"pnpm-lock.yaml": "",
		"bun.lockb":      "",
	})
	if cmd, _ := PackageManager(dir); cmd != "bun" {
		t.Errorf("PackageManager() = %q, want bun", cmd)
	}
}

func TestDiscover_ViteRequirements(t *testing.T) {
	withoutHerd(t)

	tests := []struct {
		name string
		pkg  string
		want bool
	}{
		{"laravel-vite-plugin", `{"scripts": {"dev": "vite"}, "devDependencies": {"laravel-vite-plugin": "^1.0"}}`, true},
		{"vite in dependencies", `{"scripts": {"dev": "vite"}, "dependencies": {"vite": "^5.0"}}`, true},
		{"no dev script", `{"scripts": {"build": "vite build"}, "devDependencies": {"vite": "^5.0"}}`, false},
		{"no vite", `{"scripts": {"dev": "webpack"}, "devDependencies": {"webpack": "^5.0"}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeFiles(t, map[string]string{"composer.json": laravelComposer, "package.json": tt.pkg})
			res, err := Discover(dir, nil)
			if err != nil {
				t.Fatalf("Discover() error = %v", err)
			}
			got := false
			for _, c := range res.Configs {
				if c.ID == process.Builtin(process.KindVite) {
					got = true
				}
			}
			if got != tt.want {
				t.Errorf("vite discovered = %v, want %v", got, tt.want)
			}
		})
	}
}

// ============================================================================
// Project file
// ============================================================================

func TestDiscover_Overrides(t *testing.T) {
	withoutHerd(t)
	dir := writeFiles(t, map[string]string{"composer.json": laravelComposer})
	yes := true
	pf := &config.ProjectFile{Overrides: map[string]config.OverrideConfig{
		"serve": {Args: []string{"artisan", "serve", "--port=8080"}, Env: map[string]string{"APP_ENV": "local"}},
		"queue": {Command: "php8.3", Restart: "always", Supervised: &yes},
	}}

	res, err := Discover(dir, pf)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	serve := find(t, res.Configs, process.Builtin(process.KindServe))
	if serve.CommandLine() != "php artisan serve --port=8080" {
		t.Errorf("serve = %q", serve.CommandLine())
	}
	if serve.Env["APP_ENV"] != "local" {
		t.Errorf("serve env = %v", serve.Env)
	}
	queue := find(t, res.Configs, process.Builtin(process.KindQueue))
	if queue.CommandLine() != "php8.3 artisan queue:work --tries=3" {
		t.Errorf("queue = %q", queue.CommandLine())
	}
	if queue.Restart != process.RestartAlways || !queue.Supervised {
		t.Errorf("queue restart = %v supervised = %v", queue.Restart, queue.Supervised)
	}
}

func TestDiscover_CustomProcesses(t *testing.T) {
	withoutHerd(t)
	dir := writeFiles(t, map[string]string{"composer.json": laravelComposer})
	no := false
	pf := &config.ProjectFile{Custom: []config.CustomProcess{
		{Name: "scheduler", DisplayName: "Scheduler", Command: "php", Args: []string{"artisan", "schedule:work"}, Hotkey: "d"},
		{Name: "mailpit", DisplayName: "Mailpit", Command: "mailpit", Enabled: &no},
		{Name: "docs", DisplayName: "Docs", Command: "npm", Args: []string{"run", "docs"}, WorkingDir: "docs", Restart: "never"},
	}}

	res, err := Discover(dir, pf)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if got, want := ids(res.Configs), []string{"serve", "queue", "scheduler", "docs"}; !reflect.DeepEqual(got, want) {
		t.Errorf("configs = %v, want %v", got, want)
	}

	scheduler := find(t, res.Configs, process.Custom("scheduler"))
	if scheduler.Restart != process.RestartOnFailure {
		t.Errorf("scheduler restart = %v, want on-failure", scheduler.Restart)
	}
	if got := res.Registry.DisplayName(scheduler.ID); got != "Scheduler" {
		t.Errorf("DisplayName = %q", got)
	}
	if key, ok := res.Registry.Hotkey(scheduler.ID); !ok || key != 'd' {
		t.Errorf("Hotkey = %q, %v", key, ok)
	}

	docs := find(t, res.Configs, process.Custom("docs"))
	abs, _ := filepath.Abs(dir)
	if docs.WorkingDir != filepath.Join(abs, "docs") {
		t.Errorf("docs WorkingDir = %q", docs.WorkingDir)
	}
	if docs.Restart != process.RestartNever {
		t.Errorf("docs restart = %v", docs.Restart)
	}
}

// ============================================================================
// Tools
// ============================================================================

func TestDiscover_Tools(t *testing.T) {
	withoutHerd(t)
	dir := writeFiles(t, map[string]string{
		"composer.json":        laravelComposer,
		"vendor/bin/pint":      "#!/bin/sh\n",
		"vendor/bin/pest":      "#!/bin/sh\n",
		"vendor/bin/phpstan":   "#!/bin/sh\n",
		"vendor/bin/unrelated": "#!/bin/sh\n",
	})

	res, err := Discover(dir, nil)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	byName := map[string]Tool{}
	for _, tool := range res.Tools {
		byName[tool.Name] = tool
	}
	for _, name := range []string{"pint", "pest", "phpstan", "migrate", "tinker"} {
		if _, ok := byName[name]; !ok {
			t.Errorf("tool %q missing", name)
		}
	}
	if _, ok := byName["phpunit"]; ok {
		t.Error("phpunit listed without vendor/bin/phpunit")
	}
	if byName["pest"].Category != CategoryTesting {
		t.Errorf("pest category = %q", byName["pest"].Category)
	}
	if !byName["tinker"].Interactive {
		t.Error("tinker not interactive")
	}
	if res.Sail {
		t.Error("Sail detected without vendor/bin/sail")
	}
}

func TestDiscover_Sail(t *testing.T) {
	withoutHerd(t)
	dir := writeFiles(t, map[string]string{
		"composer.json":      laravelComposer,
		"vendor/bin/sail":    "#!/bin/sh\n",
		"docker-compose.yml": "services: {}\n",
	})

	res, err := Discover(dir, nil)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if !res.Sail {
		t.Fatal("Sail = false")
	}
	for _, tool := range res.Tools {
		if tool.Category == CategoryArtisan && tool.Command != "./vendor/bin/sail" {
			t.Errorf("%s command = %q, want sail", tool.Name, tool.Command)
		}
	}
}

func TestTool_Request(t *testing.T) {
	tests := []struct {
		name  string
		tool  Tool
		extra string
		want  []string
	}{
		{
			name:  "flags after user args",
			tool:  ArtisanTool("migrate", false, false),
			extra: "--step",
			want:  []string{"artisan", "migrate", "--step", "--ansi"},
		},
		{
			name:  "positional before user args",
			tool:  Tool{Command: "./vendor/bin/phpstan", Args: []string{"analyse", "--no-progress"}},
			extra: "app/Models  app/Http",
			want:  []string{"analyse", "app/Models", "app/Http", "--no-progress"},
		},
		{
			name: "no extra",
			tool: ArtisanTool("migrate:fresh", true, false, "--seed"),
			want: []string{"artisan", "migrate:fresh", "--seed", "--ansi"},
		},
		{
			name: "interactive has no ansi flag",
			tool: ArtisanTool("tinker", false, true),
			want: []string{"artisan", "tinker"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.tool.Request("/srv/app", tt.extra)
			if !reflect.DeepEqual(req.Args, tt.want) {
				t.Errorf("Args = %q, want %q", req.Args, tt.want)
			}
			if req.Dir != "/srv/app" {
				t.Errorf("Dir = %q", req.Dir)
			}
		})
	}
}
