package entities

import (
	"context"
	"fmt"

	"github.com/agendadk/agendasync/internal/core/domain"
	"github.com/agendadk/agendasync/internal/core/ports/driven"
)

// BulletPoint is a typed view of an agenda item entity.
type BulletPoint struct {
	Entity *domain.Entity

	store driven.ContentStore
}

// AsBulletPoint wraps an entity, checking its kind.
func AsBulletPoint(store driven.ContentStore, e *domain.Entity) (*BulletPoint, error) {
	if e.Kind != domain.KindBulletPoint {
		return nil, fmt.Errorf("%w: %s is not a bullet point", domain.ErrKindMismatch, e.Kind)
	}
	return &BulletPoint{Entity: e, store: store}, nil
}

// AttachmentIDs returns the ordered internal IDs of the item's
// attachments.
func (b *BulletPoint) AttachmentIDs() []string {
	return b.Entity.StringsField(domain.FieldAttachments)
}

// SetAttachmentIDs replaces the ordered attachment reference list.
func (b *BulletPoint) SetAttachmentIDs(ids []string) {
	b.Entity.SetField(domain.FieldAttachments, ids)
}

// AttachmentByExternalID looks up an attachment by its ESDH identifier
// within this item's references.
// Returns domain.ErrNotFound when absent.
func (b *BulletPoint) AttachmentByExternalID(ctx context.Context, externalID string) (*domain.Entity, error) {
	return b.store.FindChildByExternalID(ctx, b.Entity, domain.KindAttachment, externalID)
}

// Enclosures returns the item's enclosure file references.
func (b *BulletPoint) Enclosures() []domain.FileRef {
	return b.Entity.FileRefsField(domain.FieldEnclosures)
}

// SetEnclosures replaces the enclosure file reference list.
func (b *BulletPoint) SetEnclosures(refs []domain.FileRef) {
	b.Entity.SetField(domain.FieldEnclosures, refs)
}

// EnclosureByName returns the first enclosure whose description matches,
// or nil. Enclosures have no scoped identifier, so the display name is
// the reconciliation key and the first match wins.
func (b *BulletPoint) EnclosureByName(name string) *domain.FileRef {
	for _, ref := range b.Enclosures() {
		if ref.Description == name {
			found := ref
			return &found
		}
	}
	return nil
}

// Save persists the item.
func (b *BulletPoint) Save(ctx context.Context) error {
	return b.store.Save(ctx, b.Entity)
}
