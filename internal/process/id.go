// Package process defines the identity, configuration, and display state of
// managed development processes.
package process

import (
	"fmt"
	"strings"
)

// Kind enumerates the built-in process kinds.
type Kind int

const (
	KindServe Kind = iota
	KindVite
	KindQueue
	KindHorizon
	KindReverb
)

var kindInfo = [...]struct {
	name    string
	display string
	hotkey  rune
}{
	KindServe:   {"serve", "Server", 's'},
	KindVite:    {"vite", "Vite", 'v'},
	KindQueue:   {"queue", "Queue", 'q'},
	KindHorizon: {"horizon", "Horizon", 'h'},
	KindReverb:  {"reverb", "Reverb", 'b'},
}

// Kinds returns every built-in kind in display order.
func Kinds() []Kind {
	return []Kind{KindServe, KindVite, KindQueue, KindHorizon, KindReverb}
}

func (k Kind) valid() bool { return k >= 0 && int(k) < len(kindInfo) }

// Name returns the lowercase configuration name ("serve", "vite", ...).
func (k Kind) Name() string {
	if !k.valid() {
		return "unknown"
	}
	return kindInfo[k].name
}

// String returns the human-readable display name.
func (k Kind) String() string {
	if !k.valid() {
		return "Unknown"
	}
	return kindInfo[k].display
}

// Hotkey returns the default key bound to the kind.
func (k Kind) Hotkey() rune {
	if !k.valid() {
		return 0
	}
	return kindInfo[k].hotkey
}

// KindFromName resolves a configuration name to a built-in kind.
func KindFromName(name string) (Kind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, k := range Kinds() {
		if kindInfo[k].name == name {
			return k, true
		}
	}
	return 0, false
}

// ID identifies a managed process: either a built-in kind or a custom
// process by name. IDs are comparable and usable as map keys.
type ID struct {
	kind   Kind
	custom string
}

// Builtin returns the ID of a built-in process.
func Builtin(k Kind) ID { return ID{kind: k} }

// Custom returns the ID of a user-defined process.
func Custom(name string) ID { return ID{custom: name} }

// IsCustom reports whether id names a user-defined process.
func (id ID) IsCustom() bool { return id.custom != "" }

// Kind returns the built-in kind, or false for custom processes.
func (id ID) Kind() (Kind, bool) {
	if id.IsCustom() {
		return 0, false
	}
	return id.kind, true
}

// Name returns the stable configuration name used in config files,
// metrics labels, and logs.
func (id ID) Name() string {
	if id.IsCustom() {
		return id.custom
	}
	return id.kind.Name()
}

func (id ID) String() string {
	if id.IsCustom() {
		return fmt.Sprintf("custom:%s", id.custom)
	}
	return id.kind.Name()
}
