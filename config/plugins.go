package config

import "fmt"

// PluginConfig stores the type name of the plugin and raw configuration data
// for that plugin. Each plugin is responsible for decoding the raw map into its
// own concrete configuration struct.
type PluginConfig struct {
	Type string         `json:"type"`
	Conf map[string]any `json:"conf"`
}

// SetDefaults selects the gonum oracle when no type is given.
func (p *PluginConfig) SetDefaults() {
	if p.Type == "" {
		p.Type = "gonum"
	}
}

// Validate checks that a type is set.
func (p PluginConfig) Validate() error {
	if p.Type == "" {
		return fmt.Errorf("type is required")
	}
	return nil
}
