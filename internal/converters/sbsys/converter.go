// Package sbsys converts SBSYS agenda publications to the canonical
// meeting shape. SBSYS manifests are Danish-labelled XML documents with
// one Publicering element per meeting.
package sbsys

import (
	"fmt"
	"strings"
	"time"

	"github.com/agendadk/agendasync/internal/core/domain"
	"github.com/agendadk/agendasync/internal/core/ports/driven"
)

// Ensure Converter implements the interface.
var _ driven.Converter = (*Converter)(nil)

// Timestamps in SBSYS manifests are local Danish wall-clock time.
const (
	dateTimeLayout = "02-01-2006 15:04:05"
	dateLayout     = "02-01-2006"
)

// Converter maps SBSYS publications to canonical meeting records.
type Converter struct {
	loc *time.Location
}

// New creates the SBSYS converter.
func New() *Converter {
	loc, err := time.LoadLocation("Europe/Copenhagen")
	if err != nil {
		loc = time.UTC
	}
	return &Converter{loc: loc}
}

// Provider returns the provider identifier.
func (c *Converter) Provider() string {
	return "sbsys"
}

// ReaderSpec returns the selectors for SBSYS manifests.
func (c *Converter) ReaderSpec() driven.ReaderSpec {
	return driven.ReaderSpec{
		ItemSelector: "//Publicering",
		FieldSelectors: map[string]string{
			"agenda_id":              "Dagsorden/DagsordenID",
			"agenda_type":            "Dagsorden/Type",
			"agenda_access":          "Dagsorden/Lukket",
			"start_date":             "Dagsorden/Moededato",
			"end_date":               "Dagsorden/Sluttidspunkt",
			"committee":              "Dagsorden/Udvalg",
			"location":               "Dagsorden/Sted",
			"agenda_document":        "Dagsorden/Dokument",
			"participants":           "Dagsorden/Deltagere/Navn",
			"cancelled_participants": "Dagsorden/Afbud/Navn",
			"bullet_points":          "Dagsorden/Punkter/Punkt",
		},
	}
}

// AgendaID extracts the stable ESDH identifier.
func (c *Converter) AgendaID(raw domain.RawRecord) (string, error) {
	id := strings.TrimSpace(raw.String("agenda_id"))
	if id == "" {
		return "", fmt.Errorf("%w: missing DagsordenID", domain.ErrInvalidInput)
	}
	return id, nil
}

// AgendaAccess extracts the open/closed flag. A missing flag means open.
func (c *Converter) AgendaAccess(raw domain.RawRecord) (domain.AgendaAccess, error) {
	if isClosed(raw.String("agenda_access")) {
		return domain.AgendaAccessClosed, nil
	}
	return domain.AgendaAccessOpen, nil
}

// AgendaType extracts the agenda lifecycle stage.
func (c *Converter) AgendaType(raw domain.RawRecord) (domain.AgendaType, error) {
	switch strings.ToLower(strings.TrimSpace(raw.String("agenda_type"))) {
	case "kladde":
		return domain.AgendaTypeKladde, nil
	case "dagsorden":
		return domain.AgendaTypeDagsorden, nil
	case "referat":
		return domain.AgendaTypeReferat, nil
	default:
		return "", fmt.Errorf("%w: unknown agenda type %q", domain.ErrInvalidInput, raw.String("agenda_type"))
	}
}

// StartDate extracts the meeting start time in UTC.
func (c *Converter) StartDate(raw domain.RawRecord) (time.Time, error) {
	return c.parseDate(raw.String("start_date"))
}

// EndDate extracts the meeting end time in UTC. A missing end date
// falls back to the start date.
func (c *Converter) EndDate(raw domain.RawRecord) (time.Time, error) {
	if strings.TrimSpace(raw.String("end_date")) == "" {
		return c.StartDate(raw)
	}
	return c.parseDate(raw.String("end_date"))
}

// AgendaDocument extracts the consolidated agenda file reference.
func (c *Converter) AgendaDocument(raw domain.RawRecord) (domain.DocumentRecord, error) {
	doc := raw.Record("agenda_document")
	if doc == nil {
		return domain.DocumentRecord{}, nil
	}
	return domain.DocumentRecord{
		Title: doc.String("Titel"),
		URI:   doc.String("Sti"),
	}, nil
}

// Committee extracts the committee term.
func (c *Converter) Committee(raw domain.RawRecord) (domain.TermRecord, error) {
	committee := raw.Record("committee")
	if committee == nil {
		return domain.TermRecord{}, fmt.Errorf("%w: missing Udvalg", domain.ErrInvalidInput)
	}

	id := strings.TrimSpace(committee.String("ID"))
	if id == "" {
		return domain.TermRecord{}, fmt.Errorf("%w: Udvalg without ID", domain.ErrInvalidInput)
	}

	return domain.TermRecord{ID: id, Name: committee.String("Navn")}, nil
}

// Location extracts the venue. SBSYS publishes the venue as a bare name,
// so the name doubles as the term identifier.
func (c *Converter) Location(raw domain.RawRecord) *domain.TermRecord {
	name := strings.TrimSpace(raw.String("location"))
	if name == "" {
		return nil
	}
	return &domain.TermRecord{ID: name, Name: name}
}

// BulletPoints extracts agenda items with attachments and enclosures, in
// source order.
func (c *Converter) BulletPoints(raw domain.RawRecord) ([]domain.BulletPointRecord, error) {
	var points []domain.BulletPointRecord

	for _, punkt := range raw.Records("bullet_points") {
		id := strings.TrimSpace(punkt.String("ID"))
		if id == "" {
			return nil, fmt.Errorf("%w: Punkt without ID", domain.ErrInvalidInput)
		}

		point := domain.BulletPointRecord{
			ID:     id,
			Number: strings.TrimSpace(punkt.String("Nummer")),
			Title:  punkt.String("Titel"),
			Access: closedFlag(punkt.String("Lukket")),
		}

		if bilag := punkt.Record("Bilag"); bilag != nil {
			for _, item := range bilag.Records("BilagPunkt") {
				attachment, err := convertAttachment(item)
				if err != nil {
					return nil, err
				}
				point.Attachments = append(point.Attachments, attachment)
			}
		}

		if vedlagte := punkt.Record("Vedlagte"); vedlagte != nil {
			for _, file := range vedlagte.Records("Fil") {
				enclosure, err := convertEnclosure(file)
				if err != nil {
					return nil, err
				}
				point.Enclosures = append(point.Enclosures, enclosure)
			}
		}

		points = append(points, point)
	}

	return points, nil
}

// Participants extracts confirmed and cancelled attendee names.
func (c *Converter) Participants(raw domain.RawRecord) (domain.Participants, error) {
	return domain.Participants{
		Confirmed: raw.Strings("participants"),
		Cancelled: raw.Strings("cancelled_participants"),
	}, nil
}

func convertAttachment(item domain.Nested) (domain.AttachmentRecord, error) {
	id := strings.TrimSpace(item.String("ID"))
	if id == "" {
		return domain.AttachmentRecord{}, fmt.Errorf("%w: BilagPunkt without ID", domain.ErrInvalidInput)
	}

	return domain.AttachmentRecord{
		ID:     id,
		Title:  item.String("Titel"),
		Body:   item.String("Tekst"),
		Access: closedFlag(item.String("Lukket")),
		URI:    item.String("Fil"),
	}, nil
}

func convertEnclosure(file domain.Nested) (domain.EnclosureRecord, error) {
	id := strings.TrimSpace(file.String("ID"))
	if id == "" {
		return domain.EnclosureRecord{}, fmt.Errorf("%w: Fil without ID", domain.ErrInvalidInput)
	}

	return domain.EnclosureRecord{
		ID:     id,
		Title:  file.String("Titel"),
		URI:    file.String("Sti"),
		Access: closedFlag(file.String("Lukket")),
	}, nil
}

// parseDate reads a Danish wall-clock timestamp and converts it to UTC.
func (c *Converter) parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: missing date", domain.ErrInvalidInput)
	}

	for _, layout := range []string{dateTimeLayout, dateLayout} {
		if t, err := time.ParseInLocation(layout, value, c.loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable date %q", domain.ErrInvalidInput, value)
}

// closedFlag maps a Lukket value to the canonical access flag: absent
// means open, so the flag stays unset.
func closedFlag(value string) *bool {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	open := !isClosed(value)
	return &open
}

func isClosed(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "ja":
		return true
	default:
		return false
	}
}
