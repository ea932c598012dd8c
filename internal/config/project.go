package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/pelletier/go-toml/v2"

	"github.com/randomizedcoder/go-devmux/internal/process"
)

// ProjectFileName is the per-project configuration file.
const ProjectFileName = ".devmux.toml"

// ProjectFile is the parsed .devmux.toml.
type ProjectFile struct {
	Disabled  DisabledConfig            `toml:"disabled"`
	Overrides map[string]OverrideConfig `toml:"overrides"`
	Custom    []CustomProcess           `toml:"custom"`
	Logs      LogsConfig                `toml:"logs"`

	// Path is where the file was read from; empty if it did not exist.
	Path string `toml:"-"`
}

// DisabledConfig turns off built-in processes.
type DisabledConfig struct {
	Serve   bool `toml:"serve"`
	Vite    bool `toml:"vite"`
	Queue   bool `toml:"queue"`
	Horizon bool `toml:"horizon"`
	Reverb  bool `toml:"reverb"`
}

// OverrideConfig replaces parts of a built-in process definition.
type OverrideConfig struct {
	Command    string            `toml:"command,omitempty"`
	Args       []string          `toml:"args,omitempty"`
	Env        map[string]string `toml:"env,omitempty"`
	Restart    string            `toml:"restart,omitempty"`
	Supervised *bool             `toml:"supervised,omitempty"`
}

// CustomProcess is a user-defined long-running process.
type CustomProcess struct {
	Name        string            `toml:"name"`
	DisplayName string            `toml:"display_name"`
	Command     string            `toml:"command"`
	Args        []string          `toml:"args,omitempty"`
	Hotkey      string            `toml:"hotkey,omitempty"`
	Enabled     *bool             `toml:"enabled,omitempty"`
	Restart     string            `toml:"restart,omitempty"`
	Supervised  bool              `toml:"supervised,omitempty"`
	WorkingDir  string            `toml:"working_dir,omitempty"`
	Env         map[string]string `toml:"env,omitempty"`
}

// LogsConfig configures the log pane.
type LogsConfig struct {
	MaxLines     int      `toml:"max_lines,omitempty"`
	Files        []string `toml:"files,omitempty"`
	DefaultLevel string   `toml:"default_level,omitempty"`
}

// IsEnabled reports whether the process should be started. Defaults to true.
func (c CustomProcess) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// HotkeyRune returns the configured hotkey, or 0 if none.
func (c CustomProcess) HotkeyRune() rune {
	if c.Hotkey == "" {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(c.Hotkey)
	return r
}

// LoadProjectFile reads and validates the project file at path. A missing
// file yields an empty ProjectFile and no error.
func LoadProjectFile(path string) (*ProjectFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &ProjectFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	pf, err := ParseProjectFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	pf.Path = path
	return pf, nil
}

// ParseProjectFile decodes and validates a project file. Unknown keys are
// rejected so that typos surface instead of being ignored.
func ParseProjectFile(r io.Reader) (*ProjectFile, error) {
	pf := &ProjectFile{}
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(pf); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("unknown keys:\n%s", strict.String())
		}
		var decErr *toml.DecodeError
		if errors.As(err, &decErr) {
			row, col := decErr.Position()
			return nil, fmt.Errorf("parse error at line %d, column %d: %w", row, col, err)
		}
		return nil, err
	}
	if err := ValidateProjectFile(pf); err != nil {
		return nil, err
	}
	return pf, nil
}

// Encode writes pf as TOML.
func (p *ProjectFile) Encode(w io.Writer) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	return enc.Encode(p)
}

// IsDisabled reports whether the built-in kind is turned off.
func (p *ProjectFile) IsDisabled(k process.Kind) bool {
	switch k {
	case process.KindServe:
		return p.Disabled.Serve
	case process.KindVite:
		return p.Disabled.Vite
	case process.KindQueue:
		return p.Disabled.Queue
	case process.KindHorizon:
		return p.Disabled.Horizon
	case process.KindReverb:
		return p.Disabled.Reverb
	}
	return false
}

// Override returns the override for a built-in kind.
func (p *ProjectFile) Override(k process.Kind) (OverrideConfig, bool) {
	o, ok := p.Overrides[k.Name()]
	return o, ok
}

// EnabledCustom returns custom processes that are enabled, in file order.
func (p *ProjectFile) EnabledCustom() []CustomProcess {
	var out []CustomProcess
	for _, c := range p.Custom {
		if c.IsEnabled() {
			out = append(out, c)
		}
	}
	return out
}

// ExampleProjectFile returns a starter configuration for "go-devmux init".
func ExampleProjectFile() *ProjectFile {
	return &ProjectFile{
		Overrides: map[string]OverrideConfig{
			"queue": {Command: "php", Args: []string{"artisan", "queue:listen", "--tries=1"}},
		},
		Custom: []CustomProcess{{
			Name:        "scheduler",
			DisplayName: "Scheduler",
			Command:     "php",
			Args:        []string{"artisan", "schedule:work"},
			Hotkey:      "d",
			Restart:     "on-failure",
		}},
		Logs: LogsConfig{MaxLines: 500, DefaultLevel: "debug"},
	}
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
