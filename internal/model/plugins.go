package model

import (
	"encoding/json"
	"fmt"
)

// DecodeEnabledPlugins validates the enabled_plugins blob read from storage.
// The stored shape is a JSON object mapping plugin id to boolean; anything
// else is rejected at this boundary instead of being trusted downstream.
func DecodeEnabledPlugins(raw []byte) (map[string]bool, error) {
	if len(raw) == 0 {
		return map[string]bool{}, nil
	}
	var untyped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &untyped); err != nil {
		return nil, fmt.Errorf("enabled_plugins is not an object: %w", err)
	}
	plugins := make(map[string]bool, len(untyped))
	for id, v := range untyped {
		var enabled bool
		if err := json.Unmarshal(v, &enabled); err != nil {
			return nil, fmt.Errorf("enabled_plugins[%q] is not a boolean", id)
		}
		plugins[id] = enabled
	}
	return plugins, nil
}
