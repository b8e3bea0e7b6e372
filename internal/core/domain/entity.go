package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntityKind identifies one of the persisted content kinds. It replaces a
// per-kind class hierarchy with a tagged value: each kind knows its lookup
// scope and, for child kinds, the parent field holding its references.
type EntityKind string

const (
	// KindMeeting is a meeting content node. External IDs are global.
	KindMeeting EntityKind = "meeting"

	// KindBulletPoint is an agenda item. External IDs are unique within
	// the parent meeting.
	KindBulletPoint EntityKind = "bullet_point"

	// KindAttachment is a bullet point attachment. External IDs are unique
	// within the parent bullet point.
	KindAttachment EntityKind = "bullet_point_attachment"

	// KindCommittee is a committee taxonomy term. External IDs are global.
	KindCommittee EntityKind = "committee"

	// KindLocation is a location taxonomy term. External IDs are global.
	KindLocation EntityKind = "location"
)

// ParentScoped reports whether external IDs for this kind are unique only
// within a parent entity's reference list.
func (k EntityKind) ParentScoped() bool {
	return k == KindBulletPoint || k == KindAttachment
}

// ChildRefField returns the parent field holding ordered references to
// children of this kind. Empty for globally scoped kinds.
func (k EntityKind) ChildRefField() string {
	switch k {
	case KindBulletPoint:
		return FieldBulletPoints
	case KindAttachment:
		return FieldAttachments
	default:
		return ""
	}
}

// Field keys used on entities. The content store persists Fields as an
// opaque document; these constants are the shared vocabulary between the
// reconciler and the entity wrappers.
const (
	FieldBody                  = "body"
	FieldClosed                = "closed"
	FieldAgendaType            = "agenda_type"
	FieldStartDate             = "start_date"
	FieldEndDate               = "end_date"
	FieldCommittee             = "committee"
	FieldLocation              = "location"
	FieldBulletPoints          = "bullet_points"
	FieldAttachments           = "attachments"
	FieldEnclosures            = "enclosures"
	FieldAgendaDocument        = "agenda_document"
	FieldFile                  = "file"
	FieldParticipants          = "participants"
	FieldCancelledParticipants = "cancelled_participants"
	FieldAddendum              = "addendum"
	FieldBPAKind               = "bpa_kind"
)

// Values for FieldBPAKind, set on attachments whose title matches the
// configured resume or decision title.
const (
	BPAKindResume   = "resume"
	BPAKindDecision = "decision"
)

// Entity is the generic persisted content record. Meetings, bullet points,
// attachments and taxonomy terms are all entities distinguished by Kind;
// typed access goes through the wrappers in the entities package.
type Entity struct {
	// ID is the internal identifier assigned on creation.
	ID string

	// Kind is the content kind tag.
	Kind EntityKind

	// ExternalID is the ESDH identifier used for reconciliation.
	ExternalID string

	// Title is the display title.
	Title string

	// Published is the publication flag; the unpublish sweeper flips it
	// when a meeting disappears from the feed.
	Published bool

	// Source tags a meeting with the source that imported it.
	Source string

	// Fields holds kind-specific values keyed by the Field* constants.
	Fields map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewEntity creates an unsaved entity of the given kind.
func NewEntity(kind EntityKind, externalID, title string) *Entity {
	return &Entity{
		ID:         uuid.New().String(),
		Kind:       kind,
		ExternalID: externalID,
		Title:      title,
		Published:  true,
		Fields:     make(map[string]any),
	}
}

// SetField sets a field value, allocating the map if needed.
func (e *Entity) SetField(key string, value any) {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
}

// StringField returns a string field, or "" when absent.
func (e *Entity) StringField(key string) string {
	if s, ok := e.Fields[key].(string); ok {
		return s
	}
	return ""
}

// BoolField returns a boolean field, or false when absent.
func (e *Entity) BoolField(key string) bool {
	if b, ok := e.Fields[key].(bool); ok {
		return b
	}
	return false
}

// IntField returns an integer field, tolerating the numeric types a JSON
// round-trip through the store may produce.
func (e *Entity) IntField(key string) int64 {
	switch v := e.Fields[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// StringsField returns a string slice field. Values read back from a JSON
// document arrive as []any and are converted.
func (e *Entity) StringsField(key string) []string {
	switch v := e.Fields[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// FileRefsField returns a file reference list field, converting from the
// generic shapes a JSON round-trip may produce.
func (e *Entity) FileRefsField(key string) []FileRef {
	switch v := e.Fields[key].(type) {
	case []FileRef:
		return v
	case []any:
		out := make([]FileRef, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			ref := FileRef{}
			if s, ok := m["asset_id"].(string); ok {
				ref.AssetID = s
			}
			if s, ok := m["description"].(string); ok {
				ref.Description = s
			}
			if s, ok := m["uri"].(string); ok {
				ref.URI = s
			}
			out = append(out, ref)
		}
		return out
	default:
		return nil
	}
}

// FileRef links an entity field to a managed file asset.
type FileRef struct {
	// AssetID is the file store handle.
	AssetID string `json:"asset_id"`

	// Description is the display name, e.g. the enclosure title.
	Description string `json:"description"`

	// URI is the managed location of the file.
	URI string `json:"uri"`
}

// FileAsset is a file registered in the file store under a stable,
// reconciliation-safe destination name.
type FileAsset struct {
	// ID is stable for a given destination, so re-imports replace rather
	// than duplicate.
	ID string

	// Name is the original file name.
	Name string

	// URI is the managed location.
	URI string
}
