package process

import "unicode"

// Meta holds presentation data for a process.
type Meta struct {
	DisplayName string
	Hotkey      rune
}

// Registry maps process IDs to display names and hotkeys. Built-in kinds
// resolve without registration. A Registry is replaced wholesale on config
// reload and is read-only once published.
type Registry struct {
	meta map[ID]Meta
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{meta: make(map[ID]Meta)}
}

// Register records meta for id, replacing any previous entry.
func (r *Registry) Register(id ID, meta Meta) {
	r.meta[id] = meta
}

// DisplayName returns the registered display name, the built-in name, or
// the custom name as a fallback.
func (r *Registry) DisplayName(id ID) string {
	if r != nil {
		if m, ok := r.meta[id]; ok && m.DisplayName != "" {
			return m.DisplayName
		}
	}
	if k, ok := id.Kind(); ok {
		return k.String()
	}
	return id.Name()
}

// Hotkey returns the key bound to id, if any.
func (r *Registry) Hotkey(id ID) (rune, bool) {
	if r != nil {
		if m, ok := r.meta[id]; ok && m.Hotkey != 0 {
			return unicode.ToLower(m.Hotkey), true
		}
	}
	if k, ok := id.Kind(); ok {
		return k.Hotkey(), true
	}
	return 0, false
}

// FindByHotkey returns the first id in candidates bound to key.
// Matching is case-insensitive.
func (r *Registry) FindByHotkey(key rune, candidates []ID) (ID, bool) {
	key = unicode.ToLower(key)
	for _, id := range candidates {
		if hk, ok := r.Hotkey(id); ok && hk == key {
			return id, true
		}
	}
	return ID{}, false
}
