package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/conductor/pkg/domain"
	"gopkg.in/yaml.v3"
)

// ToolConfig declares an external command exposed as a capability.
type ToolConfig struct {
	Name        string             `yaml:"name" json:"name"`
	Description string             `yaml:"description" json:"description"`
	Command     string             `yaml:"command" json:"command"`
	Args        []string           `yaml:"args" json:"args"`
	Environment map[string]string  `yaml:"env" json:"env"`
	Parameters  []domain.Parameter `yaml:"parameters" json:"parameters"`
	Output      string             `yaml:"output" json:"output"`
	Timeout     time.Duration      `yaml:"timeout" json:"timeout"`
}

// ConfigFile represents the structure of tools.yaml.
type ConfigFile struct {
	Tools []ToolConfig `yaml:"tools" json:"tools"`
}

// LoadTools reads a tools manifest (YAML, or JSON by extension).
// A missing file means no tools are configured.
func LoadTools(path string) ([]ToolConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read tools config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	seen := make(map[string]bool, len(cfg.Tools))
	for i, tool := range cfg.Tools {
		switch {
		case tool.Name == "":
			return nil, fmt.Errorf("%s: tool #%d has no name", path, i+1)
		case tool.Command == "":
			return nil, fmt.Errorf("%s: tool %q has no command", path, tool.Name)
		case seen[tool.Name]:
			return nil, fmt.Errorf("%s: tool %q is declared twice", path, tool.Name)
		}
		seen[tool.Name] = true
	}
	return cfg.Tools, nil
}
