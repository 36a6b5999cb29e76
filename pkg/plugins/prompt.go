package plugins

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/ports"
	"github.com/aretw0/conductor/pkg/registry"
)

var placeholder = regexp.MustCompile(`\{\{\s*\$([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Variable declares a template input.
type Variable struct {
	Name        string `yaml:"name" json:"name" mapstructure:"name"`
	Description string `yaml:"description" json:"description" mapstructure:"description"`
	Required    bool   `yaml:"required" json:"required" mapstructure:"required"`
	Default     string `yaml:"default" json:"default" mapstructure:"default"`
}

// PromptConfig describes a capability implemented by a prompt sent to the reasoning service.
// Template placeholders use the {{$name}} form.
type PromptConfig struct {
	Name        string     `yaml:"name" json:"name" mapstructure:"name"`
	Description string     `yaml:"description" json:"description" mapstructure:"description"`
	Template    string     `yaml:"template" json:"template" mapstructure:"template"`
	Variables   []Variable `yaml:"variables" json:"variables" mapstructure:"variables"`
	System      string     `yaml:"system" json:"system" mapstructure:"system"`
	Temperature float64    `yaml:"temperature" json:"temperature" mapstructure:"temperature"`
	MaxTokens   int        `yaml:"max_tokens" json:"max_tokens" mapstructure:"max_tokens"`
}

// Placeholders returns the distinct variable names used by template, in order of first use.
func Placeholders(template string) []string {
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(template, -1) {
		if !slices.Contains(names, m[1]) {
			names = append(names, m[1])
		}
	}
	return names
}

// Render substitutes vars into template. Missing values render as empty strings.
func Render(template string, vars map[string]any) string {
	return placeholder.ReplaceAllStringFunc(template, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		v, ok := vars[name]
		if !ok || v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
}

// Prompt builds a capability that renders cfg.Template with its arguments
// and returns the reasoning service's answer.
//
// Placeholders without a declared variable become required string parameters.
// Declared variables the template never uses are rejected.
func Prompt(reasoner ports.ReasoningService, cfg PromptConfig) (registry.Capability, error) {
	if reasoner == nil {
		return registry.Capability{}, errors.New("prompt capability requires a reasoning service")
	}
	if strings.TrimSpace(cfg.Template) == "" {
		return registry.Capability{}, fmt.Errorf("prompt %q: template is empty", cfg.Name)
	}

	used := Placeholders(cfg.Template)
	var params []domain.Parameter
	declared := make(map[string]bool, len(cfg.Variables))
	for _, v := range cfg.Variables {
		if !slices.Contains(used, v.Name) {
			return registry.Capability{}, fmt.Errorf("prompt %q: variable %q is not used by the template", cfg.Name, v.Name)
		}
		declared[v.Name] = true
		p := domain.Parameter{Name: v.Name, Type: "any", Required: v.Required, Description: v.Description}
		if !v.Required {
			p.Default = v.Default
		}
		params = append(params, p)
	}
	for _, name := range used {
		if !declared[name] {
			params = append(params, domain.Parameter{Name: name, Type: "any", Required: true})
		}
	}

	handler := func(ctx context.Context, args map[string]any) (any, error) {
		out, err := reasoner.Complete(ctx, ports.CompletionRequest{
			System:      cfg.System,
			Prompt:      Render(cfg.Template, args),
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		return strings.TrimSpace(out), nil
	}

	c := registry.New(cfg.Name, cfg.Description, handler, params...)
	c.Info.Output = "text"
	return c, nil
}
