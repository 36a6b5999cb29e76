package loam

import "github.com/aretw0/conductor/pkg/plugins"

// PromptMetadata is the frontmatter of a prompt document.
// The document body is the template.
type PromptMetadata struct {
	Name        string             `json:"name" mapstructure:"name"`
	Description string             `json:"description" mapstructure:"description"`
	System      string             `json:"system" mapstructure:"system"`
	Temperature float64            `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int                `json:"max_tokens" mapstructure:"max_tokens"`
	Variables   []plugins.Variable `json:"variables" mapstructure:"variables"`
	// Disabled documents are skipped when listing.
	Disabled bool `json:"disabled" mapstructure:"disabled"`
}
