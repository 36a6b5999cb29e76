package loam

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/conductor/internal/logging"
	"github.com/aretw0/conductor/pkg/plugins"
	"github.com/aretw0/conductor/pkg/ports"
	"github.com/aretw0/conductor/pkg/registry"
	"github.com/aretw0/loam"
)

// WatchPattern matches every document the library reads.
const WatchPattern = "**/*.{md,json,yaml,yml}"

// Library adapts a Loam repository of prompt documents to prompt capabilities.
type Library struct {
	Repo   *loam.TypedRepository[PromptMetadata]
	logger *slog.Logger
}

// Option configures a Library.
type Option func(*Library)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Library) {
		l.logger = logger
	}
}

// New creates a prompt library over repo.
func New(repo *loam.TypedRepository[PromptMetadata], opts ...Option) *Library {
	l := &Library{Repo: repo, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open initializes a read-only view of the prompt directory at dir.
func Open(dir string, opts ...Option) (*Library, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve prompt directory: %w", err)
	}
	repo, err := loam.Init(abs, loam.WithVersioning(false))
	if err != nil {
		return nil, fmt.Errorf("open prompt directory %s: %w", abs, err)
	}
	return New(loam.NewTypedRepository[PromptMetadata](repo), opts...), nil
}

// Configs lists the enabled prompt documents sorted by name.
// A document without a name is named after its file.
func (l *Library) Configs(ctx context.Context) ([]plugins.PromptConfig, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string, len(docs))
	configs := make([]plugins.PromptConfig, 0, len(docs))
	for _, doc := range docs {
		if doc.Data.Disabled {
			l.logger.Debug("Skipping disabled prompt", "document", doc.ID)
			continue
		}
		name := doc.Data.Name
		if name == "" {
			name = filepath.Base(trimExtension(doc.ID))
		}
		if existing, ok := seen[name]; ok {
			return nil, fmt.Errorf("collision detected: prompt '%s' is defined in both '%s' and '%s'", name, existing, doc.ID)
		}
		seen[name] = doc.ID

		configs = append(configs, plugins.PromptConfig{
			Name:        name,
			Description: doc.Data.Description,
			Template:    strings.TrimSpace(doc.Content),
			Variables:   doc.Data.Variables,
			System:      doc.Data.System,
			Temperature: doc.Data.Temperature,
			MaxTokens:   doc.Data.MaxTokens,
		})
	}
	slices.SortFunc(configs, func(a, b plugins.PromptConfig) int {
		return strings.Compare(a.Name, b.Name)
	})
	return configs, nil
}

// Capabilities builds one prompt capability per document, answered by reasoner.
func (l *Library) Capabilities(ctx context.Context, reasoner ports.ReasoningService) ([]registry.Capability, error) {
	configs, err := l.Configs(ctx)
	if err != nil {
		return nil, err
	}
	caps := make([]registry.Capability, 0, len(configs))
	for _, cfg := range configs {
		c, err := plugins.Prompt(reasoner, cfg)
		if err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	l.logger.Debug("Loaded prompts", "count", len(caps))
	return caps, nil
}

// Watch reports the IDs of changed documents until ctx is done.
func (l *Library) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, WatchPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- evt.ID:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func trimExtension(id string) string {
	return filepath.ToSlash(strings.TrimSuffix(id, filepath.Ext(id)))
}
