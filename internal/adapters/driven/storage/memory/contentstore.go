// Package memory provides in-memory implementations of the storage ports,
// used in tests and as reference implementations of the contracts.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/agendadk/agendasync/internal/core/domain"
	"github.com/agendadk/agendasync/internal/core/ports/driven"
)

// Ensure ContentStore implements the interface.
var _ driven.ContentStore = (*ContentStore)(nil)

// ContentStore is an in-memory implementation of driven.ContentStore.
type ContentStore struct {
	mu       sync.RWMutex
	entities map[string]*domain.Entity
}

// NewContentStore creates an empty in-memory content store.
func NewContentStore() *ContentStore {
	return &ContentStore{
		entities: make(map[string]*domain.Entity),
	}
}

// Get retrieves an entity by internal ID.
func (s *ContentStore) Get(_ context.Context, id string) (*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneEntity(e), nil
}

// FindByExternalID retrieves an entity by kind and ESDH ID.
func (s *ContentStore) FindByExternalID(_ context.Context, kind domain.EntityKind, externalID string) (*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entities {
		if e.Kind == kind && e.ExternalID == externalID {
			return cloneEntity(e), nil
		}
	}
	return nil, domain.ErrNotFound
}

// FindChildByExternalID retrieves a child by ESDH ID among the parent's
// references. First match wins.
func (s *ContentStore) FindChildByExternalID(_ context.Context, parent *domain.Entity, kind domain.EntityKind, externalID string) (*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, childID := range parent.StringsField(kind.ChildRefField()) {
		child, ok := s.entities[childID]
		if ok && child.Kind == kind && child.ExternalID == externalID {
			return cloneEntity(child), nil
		}
	}
	return nil, domain.ErrNotFound
}

// Save upserts an entity.
func (s *ContentStore) Save(_ context.Context, entity *domain.Entity) error {
	if entity.ID == "" {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = now
	}
	entity.UpdatedAt = now

	s.entities[entity.ID] = cloneEntity(entity)
	return nil
}

// SetPublished flips the published flag.
func (s *ContentStore) SetPublished(_ context.Context, id string, published bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.Published = published
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// QueryPublishedBySource returns published entities of a kind with the
// given source tag.
func (s *ContentStore) QueryPublishedBySource(_ context.Context, kind domain.EntityKind, source string) ([]domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Entity
	for _, e := range s.entities {
		if e.Kind == kind && e.Source == source && e.Published {
			out = append(out, *cloneEntity(e))
		}
	}
	return out, nil
}

// Count returns the number of stored entities of a kind. Test helper.
func (s *ContentStore) Count(kind domain.EntityKind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.entities {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// cloneEntity copies an entity including its field map, so callers cannot
// mutate stored state through returned pointers.
func cloneEntity(e *domain.Entity) *domain.Entity {
	clone := *e
	clone.Fields = make(map[string]any, len(e.Fields))
	for k, v := range e.Fields {
		clone.Fields[k] = v
	}
	return &clone
}
