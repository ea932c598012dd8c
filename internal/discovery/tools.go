package discovery

import (
	"path/filepath"
	"strings"

	"github.com/randomizedcoder/go-devmux/internal/command"
)

// Category groups tools in the command pane.
type Category string

const (
	CategoryQuality Category = "quality"
	CategoryTesting Category = "testing"
	CategoryArtisan Category = "artisan"
)

// Tool is a preset ephemeral command.
type Tool struct {
	Name        string
	DisplayName string
	Category    Category
	Command     string
	Args        []string

	// Interactive tools read from stdin (tinker).
	Interactive bool
}

// Request builds a command request for the tool. Extra arguments typed by the
// user are split on whitespace and placed after the preset's positional
// arguments but before its flags.
func (t Tool) Request(dir, extra string) command.Request {
	var positional, flags []string
	for _, a := range t.Args {
		if strings.HasPrefix(a, "-") {
			flags = append(flags, a)
		} else {
			positional = append(positional, a)
		}
	}
	args := make([]string, 0, len(t.Args)+4)
	args = append(args, positional...)
	args = append(args, strings.Fields(extra)...)
	args = append(args, flags...)

	return command.Request{
		Label:   t.DisplayName,
		Command: t.Command,
		Args:    args,
		Dir:     dir,
	}
}

type vendorTool struct {
	bin         string
	displayName string
	category    Category
	args        []string
}

var vendorTools = []vendorTool{
	{"pint", "Pint", CategoryQuality, nil},
	{"phpstan", "PHPStan", CategoryQuality, []string{"analyse", "--no-progress"}},
	{"rector", "Rector", CategoryQuality, []string{"process", "--dry-run"}},
	{"pest", "Pest", CategoryTesting, []string{"--colors=always"}},
	{"phpunit", "PHPUnit", CategoryTesting, []string{"--colors=always"}},
}

var artisanTools = []struct {
	name        string
	args        []string
	interactive bool
}{
	{"test", nil, false},
	{"migrate", nil, false},
	{"migrate:fresh", []string{"--seed"}, false},
	{"optimize:clear", nil, false},
	{"route:list", nil, false},
	{"tinker", nil, true},
}

func discoverTools(dir string, sail bool) []Tool {
	var tools []Tool
	for _, vt := range vendorTools {
		if !exists(filepath.Join(dir, "vendor", "bin", vt.bin)) {
			continue
		}
		tools = append(tools, Tool{
			Name:        vt.bin,
			DisplayName: vt.displayName,
			Category:    vt.category,
			Command:     "./vendor/bin/" + vt.bin,
			Args:        append([]string(nil), vt.args...),
		})
	}
	for _, at := range artisanTools {
		tools = append(tools, ArtisanTool(at.name, sail, at.interactive, at.args...))
	}
	return tools
}

// ArtisanTool returns a tool running "php artisan <name>", or
// "./vendor/bin/sail artisan <name>" under Sail. --ansi is appended so
// output keeps its colours through the pipe.
func ArtisanTool(name string, sail, interactive bool, args ...string) Tool {
	command := "php"
	if sail {
		command = "./vendor/bin/sail"
	}
	full := append([]string{"artisan", name}, args...)
	if !interactive {
		full = append(full, "--ansi")
	}
	return Tool{
		Name:        name,
		DisplayName: "artisan " + name,
		Category:    CategoryArtisan,
		Command:     command,
		Args:        full,
		Interactive: interactive,
	}
}
