package driven

import (
	"context"

	"github.com/agendadk/agendasync/internal/core/domain"
)

// FileStore manages binary assets referenced by the entity graph.
type FileStore interface {
	// CopyAsManaged registers the file at sourceURI under a stable
	// destination name derived from desiredTitle (or the original base
	// name when empty). Re-importing the same logical file replaces the
	// managed copy in place, so at most one copy exists per
	// (original name, target directory) pair.
	CopyAsManaged(ctx context.Context, sourceURI, desiredTitle string) (*domain.FileAsset, error)

	// Exists reports whether a file is present at the given URI.
	Exists(uri string) bool

	// IsPrivate reports whether the URI lives in the non-public storage
	// area.
	IsPrivate(uri string) bool

	// MirrorToPublic copies a private file into the public mirror tree,
	// preserving its relative path, and returns the public location.
	MirrorToPublic(ctx context.Context, sourceURI string) (string, error)

	// PublicURL returns the servable URL for a file URI.
	PublicURL(uri string) string
}
