package entities

import (
	"context"
	"fmt"

	"github.com/agendadk/agendasync/internal/core/domain"
	"github.com/agendadk/agendasync/internal/core/ports/driven"
)

// Meeting is a typed view of a meeting entity.
type Meeting struct {
	Entity *domain.Entity

	store driven.ContentStore
}

// AsMeeting wraps an entity, checking its kind.
func AsMeeting(store driven.ContentStore, e *domain.Entity) (*Meeting, error) {
	if e.Kind != domain.KindMeeting {
		return nil, fmt.Errorf("%w: %s is not a meeting", domain.ErrKindMismatch, e.Kind)
	}
	return &Meeting{Entity: e, store: store}, nil
}

// FindMeeting looks up a meeting by its ESDH identifier.
// Returns domain.ErrNotFound when absent.
func FindMeeting(ctx context.Context, store driven.ContentStore, agendaID string) (*Meeting, error) {
	e, err := store.FindByExternalID(ctx, domain.KindMeeting, agendaID)
	if err != nil {
		return nil, err
	}
	return AsMeeting(store, e)
}

// BulletPointIDs returns the ordered internal IDs of the meeting's
// bullet points.
func (m *Meeting) BulletPointIDs() []string {
	return m.Entity.StringsField(domain.FieldBulletPoints)
}

// SetBulletPointIDs replaces the ordered bullet point reference list.
func (m *Meeting) SetBulletPointIDs(ids []string) {
	m.Entity.SetField(domain.FieldBulletPoints, ids)
}

// BulletPointByExternalID looks up a bullet point by its ESDH identifier
// within this meeting's references.
// Returns domain.ErrNotFound when absent.
func (m *Meeting) BulletPointByExternalID(ctx context.Context, externalID string) (*BulletPoint, error) {
	e, err := m.store.FindChildByExternalID(ctx, m.Entity, domain.KindBulletPoint, externalID)
	if err != nil {
		return nil, err
	}
	return AsBulletPoint(m.store, e)
}

// SetAddendum links this meeting to the meeting it supplements.
func (m *Meeting) SetAddendum(meetingID string) {
	m.Entity.SetField(domain.FieldAddendum, meetingID)
}

// Addendum returns the internal ID of the supplemented meeting, or "".
func (m *Meeting) Addendum() string {
	return m.Entity.StringField(domain.FieldAddendum)
}

// Save persists the meeting.
func (m *Meeting) Save(ctx context.Context) error {
	return m.store.Save(ctx, m.Entity)
}
