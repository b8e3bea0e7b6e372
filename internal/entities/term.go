package entities

import (
	"context"
	"errors"
	"fmt"

	"github.com/agendadk/agendasync/internal/core/domain"
	"github.com/agendadk/agendasync/internal/core/ports/driven"
)

// UpsertTerm finds or creates a taxonomy term entity by its ESDH
// identifier and makes its name match the manifest. Renames are
// last-write-wins: the identifier carries identity, the name is display
// data.
func UpsertTerm(ctx context.Context, store driven.ContentStore, kind domain.EntityKind, term domain.TermRecord) (*domain.Entity, error) {
	if kind != domain.KindCommittee && kind != domain.KindLocation {
		return nil, fmt.Errorf("%w: %s is not a taxonomy kind", domain.ErrKindMismatch, kind)
	}

	e, err := store.FindByExternalID(ctx, kind, term.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		e = domain.NewEntity(kind, term.ID, term.Name)
	case err != nil:
		return nil, err
	default:
		e.Title = term.Name
	}

	if err := store.Save(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}
