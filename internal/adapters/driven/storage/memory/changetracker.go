package memory

import (
	"context"
	"sync"

	"github.com/agendadk/agendasync/internal/core/ports/driven"
)

// Ensure ChangeTracker implements the interface.
var _ driven.ChangeTracker = (*ChangeTracker)(nil)

// ChangeTracker is an in-memory implementation of driven.ChangeTracker.
type ChangeTracker struct {
	mu     sync.Mutex
	hashes map[trackerKey]string
}

type trackerKey struct {
	source   string
	agendaID string
}

// NewChangeTracker creates an empty in-memory change tracker.
func NewChangeTracker() *ChangeTracker {
	return &ChangeTracker{
		hashes: make(map[trackerKey]string),
	}
}

// NeedsImport reports whether the agenda is new or its hash changed.
func (t *ChangeTracker) NeedsImport(_ context.Context, source, agendaID, hash string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stored, ok := t.hashes[trackerKey{source, agendaID}]
	return !ok || stored != hash, nil
}

// MarkImported records the imported hash.
func (t *ChangeTracker) MarkImported(_ context.Context, source, agendaID, hash string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.hashes[trackerKey{source, agendaID}] = hash
	return nil
}
