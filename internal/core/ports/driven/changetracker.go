package driven

import "context"

// ChangeTracker decides whether a sighted agenda needs importing. The
// reconciler passes through to it rather than reimplementing change
// detection; the hash is a content hash of the canonical record.
type ChangeTracker interface {
	// NeedsImport reports whether the agenda should be (re)imported:
	// true when it has never been imported or its hash changed.
	NeedsImport(ctx context.Context, source, agendaID, hash string) (bool, error)

	// MarkImported records a successful import of the agenda at this hash.
	MarkImported(ctx context.Context, source, agendaID, hash string) error
}
