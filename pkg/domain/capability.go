package domain

// Parameter describes one named input of a capability.
// Type uses the schema notation ("string", "int", "[string]", ...).
type Parameter struct {
	Name        string `json:"name" yaml:"name" mapstructure:"name"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty" mapstructure:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty" mapstructure:"default"`
}

// CapabilityInfo is the public descriptor of a capability.
// It is what the reasoning service sees; handlers are never exposed.
type CapabilityInfo struct {
	Name        string      `json:"name" yaml:"name" mapstructure:"name"`
	Description string      `json:"description" yaml:"description" mapstructure:"description"`
	Parameters  []Parameter `json:"parameters,omitempty" yaml:"parameters,omitempty" mapstructure:"parameters"`
	Output      string      `json:"output,omitempty" yaml:"output,omitempty" mapstructure:"output"`
}

// Param returns the named parameter, if declared.
func (c CapabilityInfo) Param(name string) (Parameter, bool) {
	for _, p := range c.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}
