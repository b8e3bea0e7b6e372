package driven

import (
	"context"

	"github.com/agendadk/agendasync/internal/core/domain"
)

// ContentStore persists the content entity graph. Single-entity writes are
// assumed atomic; the pipeline never deletes entities through this
// interface, it only flips the published flag.
type ContentStore interface {
	// Get retrieves an entity by internal ID.
	// Returns domain.ErrNotFound when absent.
	Get(ctx context.Context, id string) (*domain.Entity, error)

	// FindByExternalID retrieves an entity by kind and ESDH ID. Only valid
	// for globally scoped kinds.
	// Returns domain.ErrNotFound when absent.
	FindByExternalID(ctx context.Context, kind domain.EntityKind, externalID string) (*domain.Entity, error)

	// FindChildByExternalID retrieves a child entity by ESDH ID among the
	// parent's references for the given kind. First match wins.
	// Returns domain.ErrNotFound when absent.
	FindChildByExternalID(ctx context.Context, parent *domain.Entity, kind domain.EntityKind, externalID string) (*domain.Entity, error)

	// Save upserts an entity.
	Save(ctx context.Context, entity *domain.Entity) error

	// SetPublished flips the published flag and persists it.
	SetPublished(ctx context.Context, id string, published bool) error

	// QueryPublishedBySource returns all published entities of a kind
	// carrying the given source tag.
	QueryPublishedBySource(ctx context.Context, kind domain.EntityKind, source string) ([]domain.Entity, error)
}
