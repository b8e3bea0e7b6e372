package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// AgendaType is the lifecycle stage of a meeting agenda.
// The values follow the ESDH convention: a Kladde is a draft, a Dagsorden
// is the pre-meeting agenda and a Referat is the post-meeting minutes.
type AgendaType string

const (
	// AgendaTypeKladde is a draft agenda. Drafts are never imported.
	AgendaTypeKladde AgendaType = "Kladde"

	// AgendaTypeDagsorden is the published pre-meeting agenda.
	AgendaTypeDagsorden AgendaType = "Dagsorden"

	// AgendaTypeReferat is the post-meeting minutes.
	AgendaTypeReferat AgendaType = "Referat"
)

// AgendaAccess indicates whether an agenda is open to the public.
type AgendaAccess int

const (
	// AgendaAccessOpen marks publicly accessible agendas.
	AgendaAccessOpen AgendaAccess = 1

	// AgendaAccessClosed marks access-restricted agendas.
	AgendaAccessClosed AgendaAccess = 2
)

// MeetingRecord is the canonical, provider-agnostic shape of one meeting
// manifest. It is produced by a provider converter and consumed by the
// reconciler; it lives for a single import pass.
type MeetingRecord struct {
	// AgendaID is the stable ESDH identifier, the primary reconciliation key.
	AgendaID string

	// Type is the agenda lifecycle stage.
	Type AgendaType

	// Access indicates whether the whole agenda is open.
	Access AgendaAccess

	// StartDate and EndDate are the meeting times in UTC.
	StartDate time.Time
	EndDate   time.Time

	// Committee is the committee holding the meeting.
	Committee TermRecord

	// Location is the meeting venue; nil when the manifest has none.
	Location *TermRecord

	// AgendaDocument is the consolidated agenda file.
	AgendaDocument DocumentRecord

	// BulletPoints are the agenda items, in source order.
	BulletPoints []BulletPointRecord

	// Participants and CancelledParticipants are attendee names.
	Participants          []string
	CancelledParticipants []string

	// DirectoryPath is the filesystem location of the manifest, used to
	// resolve relative file URIs.
	DirectoryPath string
}

// Hash returns a stable content hash of the record, used for change
// detection across imports. The directory path is excluded so that moving
// a manifest tree does not force a re-import.
func (m *MeetingRecord) Hash() string {
	shadow := *m
	shadow.DirectoryPath = ""
	data, err := json.Marshal(&shadow)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// TermRecord is a taxonomy entry (committee or location) in canonical form.
type TermRecord struct {
	ID   string
	Name string
}

// DocumentRecord references a file relative to the manifest directory.
type DocumentRecord struct {
	Title string
	URI   string
}

// BulletPointRecord is one agenda item in canonical form.
type BulletPointRecord struct {
	// ID is the ESDH identifier, unique within the parent meeting.
	ID string

	// Number is the item number as published; empty when unnumbered.
	Number string

	// Title is the item title without any numbering prefix.
	Title string

	// Access indicates whether the item is open. Unset means open.
	Access *bool

	// Body is the optional item body HTML.
	Body string

	// Attachments and Enclosures belong to this item, in source order.
	Attachments []AttachmentRecord
	Enclosures  []EnclosureRecord
}

// AttachmentRecord is a bullet point sub-record with body text and an
// optional file.
type AttachmentRecord struct {
	// ID is the ESDH identifier, unique within the parent bullet point.
	ID string

	Title string

	// Body is the attachment HTML; may be empty.
	Body string

	// Access indicates whether the attachment is open. Unset means open.
	Access *bool

	// URI is the optional file path relative to the manifest directory.
	URI string
}

// EnclosureRecord is a file attached to a bullet point without body text.
type EnclosureRecord struct {
	// ID is the ESDH identifier, unique within the parent bullet point.
	ID string

	Title string

	// URI is the file path relative to the manifest directory.
	URI string

	// Access indicates whether the enclosure is open. Unset means open.
	Access *bool
}

// Participants holds confirmed and cancelled attendee name lists.
type Participants struct {
	Confirmed []string
	Cancelled []string
}

// IsOpen interprets a sub-record access flag: absent means open.
func IsOpen(access *bool) bool {
	return access == nil || *access
}

// AsAttachment converts an enclosure to the attachment shape, used when
// enclosures are routed through the attachment pipeline.
func (e EnclosureRecord) AsAttachment() AttachmentRecord {
	return AttachmentRecord{
		ID:     e.ID,
		Title:  e.Title,
		Access: e.Access,
		URI:    e.URI,
	}
}
