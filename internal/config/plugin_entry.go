package config

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PluginEntry names a compiler plugin and, optionally, its options.
// In the workspace file it is either a bare module name or {name, options}.
type PluginEntry struct {
	Name    string         `json:"name" yaml:"name"`
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// MarshalJSON writes the bare-string form when no options are set.
func (p PluginEntry) MarshalJSON() ([]byte, error) {
	if p.Options == nil {
		return json.Marshal(p.Name)
	}
	type entry PluginEntry
	return json.Marshal(entry(p))
}

// UnmarshalJSON accepts both the bare-string and the object form.
func (p *PluginEntry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*p = PluginEntry{Name: name}
		return nil
	}
	type entry PluginEntry
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return fmt.Errorf("plugin entry: %w", err)
	}
	*p = PluginEntry(e)
	return nil
}
