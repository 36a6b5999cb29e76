package registry

import (
	"maps"
	"slices"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/schema"
)

// Snapshot is a frozen subset of a Registry, handed to plan generation.
type Snapshot struct {
	entries map[string]*entry
}

// Has reports whether name is part of the snapshot.
func (s *Snapshot) Has(name string) bool {
	_, ok := s.entries[name]
	return ok
}

// Info returns the descriptor for name.
func (s *Snapshot) Info(name string) (domain.CapabilityInfo, bool) {
	e, ok := s.entries[name]
	if !ok {
		return domain.CapabilityInfo{}, false
	}
	info := e.cap.Info
	info.Parameters = slices.Clone(info.Parameters)
	return info, true
}

// Fields returns the parsed parameter schema for name.
func (s *Snapshot) Fields(name string) []schema.Field {
	e, ok := s.entries[name]
	if !ok {
		return nil
	}
	return slices.Clone(e.fields)
}

// Names returns the capability names, sorted.
func (s *Snapshot) Names() []string {
	return slices.Sorted(maps.Keys(s.entries))
}

// List returns every descriptor, sorted by name.
func (s *Snapshot) List() []domain.CapabilityInfo {
	out := make([]domain.CapabilityInfo, 0, len(s.entries))
	for _, name := range s.Names() {
		info, _ := s.Info(name)
		out = append(out, info)
	}
	return out
}

// Len returns the number of capabilities in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.entries)
}
