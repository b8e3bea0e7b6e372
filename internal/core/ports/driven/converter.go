package driven

import (
	"fmt"
	"time"

	"github.com/agendadk/agendasync/internal/core/domain"
)

// Converter maps one provider's raw records to the canonical meeting
// shape. Each conversion is pure and total over well-formed input, and
// each is independently replaceable per upstream provider.
type Converter interface {
	// Provider returns the provider identifier, e.g. "sbsys".
	Provider() string

	// ReaderSpec returns the XPath selectors used to extract raw records
	// from this provider's manifests.
	ReaderSpec() ReaderSpec

	// AgendaID extracts the stable ESDH identifier.
	AgendaID(raw domain.RawRecord) (string, error)

	// AgendaAccess extracts the open/closed flag.
	AgendaAccess(raw domain.RawRecord) (domain.AgendaAccess, error)

	// AgendaType extracts the agenda lifecycle stage.
	AgendaType(raw domain.RawRecord) (domain.AgendaType, error)

	// StartDate and EndDate extract the meeting times in UTC.
	StartDate(raw domain.RawRecord) (time.Time, error)
	EndDate(raw domain.RawRecord) (time.Time, error)

	// AgendaDocument extracts the consolidated agenda file reference.
	AgendaDocument(raw domain.RawRecord) (domain.DocumentRecord, error)

	// Committee extracts the committee term.
	Committee(raw domain.RawRecord) (domain.TermRecord, error)

	// Location extracts the venue term; nil when the manifest has none.
	Location(raw domain.RawRecord) *domain.TermRecord

	// BulletPoints extracts the agenda items with their attachments and
	// enclosures, in source order.
	BulletPoints(raw domain.RawRecord) ([]domain.BulletPointRecord, error)

	// Participants extracts confirmed and cancelled attendee names.
	Participants(raw domain.RawRecord) (domain.Participants, error)
}

// ConverterRegistry resolves converters by provider name.
type ConverterRegistry interface {
	// Get returns the converter for a provider.
	// Returns domain.ErrUnsupportedProvider when none is registered.
	Get(provider string) (Converter, error)
}

// Convert assembles a full canonical meeting record from one raw row by
// running every conversion of the provider's converter. The first
// conversion failure aborts the row.
func Convert(conv Converter, raw domain.RawRecord) (*domain.MeetingRecord, error) {
	agendaID, err := conv.AgendaID(raw)
	if err != nil {
		return nil, fmt.Errorf("agenda id: %w", err)
	}

	agendaType, err := conv.AgendaType(raw)
	if err != nil {
		return nil, fmt.Errorf("agenda %s type: %w", agendaID, err)
	}

	access, err := conv.AgendaAccess(raw)
	if err != nil {
		return nil, fmt.Errorf("agenda %s access: %w", agendaID, err)
	}

	startDate, err := conv.StartDate(raw)
	if err != nil {
		return nil, fmt.Errorf("agenda %s start date: %w", agendaID, err)
	}

	endDate, err := conv.EndDate(raw)
	if err != nil {
		return nil, fmt.Errorf("agenda %s end date: %w", agendaID, err)
	}

	committee, err := conv.Committee(raw)
	if err != nil {
		return nil, fmt.Errorf("agenda %s committee: %w", agendaID, err)
	}

	document, err := conv.AgendaDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("agenda %s document: %w", agendaID, err)
	}

	bulletPoints, err := conv.BulletPoints(raw)
	if err != nil {
		return nil, fmt.Errorf("agenda %s bullet points: %w", agendaID, err)
	}

	participants, err := conv.Participants(raw)
	if err != nil {
		return nil, fmt.Errorf("agenda %s participants: %w", agendaID, err)
	}

	return &domain.MeetingRecord{
		AgendaID:              agendaID,
		Type:                  agendaType,
		Access:                access,
		StartDate:             startDate,
		EndDate:               endDate,
		Committee:             committee,
		Location:              conv.Location(raw),
		AgendaDocument:        document,
		BulletPoints:          bulletPoints,
		Participants:          participants.Confirmed,
		CancelledParticipants: participants.Cancelled,
		DirectoryPath:         raw.DirectoryPath,
	}, nil
}

// ReaderSpec configures record extraction for one provider's manifests.
type ReaderSpec struct {
	// ItemSelector is the XPath expression selecting row elements within
	// a manifest document.
	ItemSelector string

	// FieldSelectors maps field names to XPath expressions evaluated
	// relative to each row element.
	FieldSelectors map[string]string
}
