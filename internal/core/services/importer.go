package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agendadk/agendasync/internal/core/domain"
	"github.com/agendadk/agendasync/internal/core/ports/driven"
	"github.com/agendadk/agendasync/internal/core/ports/driving"
	"github.com/agendadk/agendasync/internal/entities"
	"github.com/agendadk/agendasync/internal/logger"
)

// Ensure Importer implements the interface.
var _ driving.ImportOrchestrator = (*Importer)(nil)

// Importer coordinates import batches: it reads raw manifest rows,
// converts them to canonical records and reconciles the entity graph
// against them by stable ESDH identifiers.
type Importer struct {
	sources   map[string]domain.Source
	content   driven.ContentStore
	files     driven.FileStore
	tracker   driven.ChangeTracker
	registry  driven.ConverterRegistry
	readers   driven.ReaderFactory
	sanitiser driven.HTMLSanitiser
	settings  domain.ImportSettings

	// Status tracking
	mu     sync.RWMutex
	active map[string]*driving.ImportStatus
}

// NewImporter creates an import orchestrator over the configured sources.
func NewImporter(
	sources []domain.Source,
	content driven.ContentStore,
	files driven.FileStore,
	tracker driven.ChangeTracker,
	registry driven.ConverterRegistry,
	readers driven.ReaderFactory,
	sanitiser driven.HTMLSanitiser,
	settings domain.ImportSettings,
) *Importer {
	byID := make(map[string]domain.Source, len(sources))
	for _, source := range sources {
		byID[source.ID] = source
	}

	return &Importer{
		sources:   byID,
		content:   content,
		files:     files,
		tracker:   tracker,
		registry:  registry,
		readers:   readers,
		sanitiser: sanitiser,
		settings:  settings,
		active:    make(map[string]*driving.ImportStatus),
	}
}

// Import runs one batch for a configured source.
func (i *Importer) Import(ctx context.Context, sourceID string) error {
	source, ok := i.sources[sourceID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownSource, sourceID)
	}

	conv, err := i.registry.Get(source.Provider)
	if err != nil {
		return fmt.Errorf("resolve converter: %w", err)
	}

	reader, err := i.readers.Create(source, conv.ReaderSpec(), i.settings.BannedSpecialChars)
	if err != nil {
		return fmt.Errorf("create reader: %w", err)
	}

	status, err := i.begin(sourceID)
	if err != nil {
		return err
	}
	defer i.finish(sourceID)

	var sweep *sweeper
	if i.settings.UnpublishMissingAgendas {
		sweep, err = beginSweep(ctx, i.content, source.ID)
		if err != nil {
			return fmt.Errorf("snapshot published meetings: %w", err)
		}
	}

	logger.Info("Starting import for source %s", sourceID)

	records, errs := reader.Read(ctx)
	if err := i.processRecords(ctx, source, conv, records, errs, sweep, status); err != nil {
		return err
	}

	if sweep != nil {
		status.Unpublished = sweep.Finish(ctx)
	}

	logger.Info("Import complete: %d imported, %d skipped, %d errors, %d unpublished",
		status.MeetingsImported, status.MeetingsSkipped, status.RowErrors, status.Unpublished)
	return nil
}

// ImportAll runs one batch per configured source.
func (i *Importer) ImportAll(ctx context.Context) error {
	ids := make([]string, 0, len(i.sources))
	for id := range i.sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		if err := i.Import(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("import %s: %w", id, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Status returns progress for a source.
func (i *Importer) Status(_ context.Context, sourceID string) (*driving.ImportStatus, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if status, ok := i.active[sourceID]; ok {
		// Return a copy to avoid race conditions.
		copied := *status
		return &copied, nil
	}

	return &driving.ImportStatus{SourceID: sourceID}, nil
}

// processRecords consumes the reader channels. A *domain.RowError is
// confined to one manifest and counted; any other reader error aborts
// the batch.
func (i *Importer) processRecords(
	ctx context.Context,
	source domain.Source,
	conv driven.Converter,
	records <-chan domain.RawRecord,
	errs <-chan error,
	sweep *sweeper,
	status *driving.ImportStatus,
) error {
	for records != nil || errs != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if rowErr, confined := domain.IsRowError(err); confined {
				status.RowErrors++
				logger.Warn("Manifest %s failed: %v", rowErr.SourceURL, rowErr.Err)
				continue
			}
			return fmt.Errorf("reader: %w", err)

		case raw, ok := <-records:
			if !ok {
				records = nil
				continue
			}
			if err := i.processRow(ctx, source, conv, raw, sweep, status); err != nil {
				status.RowErrors++
				logger.Warn("Row %s failed: %v", raw.SourceURL, err)
			}
		}
	}
	return nil
}

// processRow converts one raw row and reconciles it. Policy skips happen
// after sighting, so skipped meetings are never swept.
func (i *Importer) processRow(
	ctx context.Context,
	source domain.Source,
	conv driven.Converter,
	raw domain.RawRecord,
	sweep *sweeper,
	status *driving.ImportStatus,
) error {
	record, err := driven.Convert(conv, raw)
	if err != nil {
		return err
	}

	if sweep != nil {
		sweep.Sight(record.AgendaID)
	}

	if record.Type == domain.AgendaTypeKladde {
		logger.Debug("Skipping draft agenda %s", record.AgendaID)
		status.MeetingsSkipped++
		return nil
	}

	if record.Access == domain.AgendaAccessClosed && !i.settings.ImportClosedAgenda {
		logger.Debug("Skipping closed agenda %s", record.AgendaID)
		status.MeetingsSkipped++
		return nil
	}

	if len(i.settings.CommitteeWhitelist) > 0 && !contains(i.settings.CommitteeWhitelist, record.Committee.ID) {
		logger.Debug("Skipping agenda %s: committee %s not whitelisted", record.AgendaID, record.Committee.ID)
		status.MeetingsSkipped++
		return nil
	}

	needed, err := i.tracker.NeedsImport(ctx, source.ID, record.AgendaID, record.Hash())
	if err != nil {
		return fmt.Errorf("change check: %w", err)
	}
	if !needed {
		logger.Debug("Skipping agenda %s: unchanged", record.AgendaID)
		status.MeetingsSkipped++
		return nil
	}

	if err := i.importMeeting(ctx, source, record); err != nil {
		return err
	}

	if err := i.tracker.MarkImported(ctx, source.ID, record.AgendaID, record.Hash()); err != nil {
		return fmt.Errorf("mark imported: %w", err)
	}

	status.MeetingsImported++
	logger.Info("Imported agenda %s", record.AgendaID)
	return nil
}

// importMeeting reconciles one canonical record into the entity graph.
// Sub-entity failures degrade the meeting (logged, dropped); a meeting
// save failure fails the row.
func (i *Importer) importMeeting(ctx context.Context, source domain.Source, record *domain.MeetingRecord) error {
	committee, err := entities.UpsertTerm(ctx, i.content, domain.KindCommittee, record.Committee)
	if err != nil {
		return fmt.Errorf("committee %s: %w", record.Committee.ID, err)
	}

	meeting, err := entities.FindMeeting(ctx, i.content, record.AgendaID)
	if errors.Is(err, domain.ErrNotFound) {
		meeting, err = entities.AsMeeting(i.content, domain.NewEntity(domain.KindMeeting, record.AgendaID, ""))
	}
	if err != nil {
		return fmt.Errorf("meeting %s: %w", record.AgendaID, err)
	}

	e := meeting.Entity
	e.Title = fmt.Sprintf("%s %s", record.Committee.Name, record.StartDate.Format("02-01-2006"))
	e.Source = source.ID
	// A meeting that reappears after an unpublish sweep comes back.
	e.Published = true

	e.SetField(domain.FieldAgendaType, string(record.Type))
	e.SetField(domain.FieldClosed, record.Access == domain.AgendaAccessClosed)
	e.SetField(domain.FieldStartDate, record.StartDate.Format(time.RFC3339))
	e.SetField(domain.FieldEndDate, record.EndDate.Format(time.RFC3339))
	e.SetField(domain.FieldCommittee, committee.ID)
	e.SetField(domain.FieldParticipants, strings.Join(record.Participants, ", "))
	e.SetField(domain.FieldCancelledParticipants, strings.Join(record.CancelledParticipants, ", "))

	if record.Location != nil {
		location, err := entities.UpsertTerm(ctx, i.content, domain.KindLocation, *record.Location)
		if err != nil {
			return fmt.Errorf("location %s: %w", record.Location.ID, err)
		}
		e.SetField(domain.FieldLocation, location.ID)
	}

	if record.AgendaDocument.URI != "" {
		resolved := filepath.Join(record.DirectoryPath, record.AgendaDocument.URI)
		asset, err := i.files.CopyAsManaged(ctx, resolved, record.AgendaDocument.Title)
		if err != nil {
			logger.Warn("Agenda document %s cannot be copied: %v", resolved, err)
		} else {
			e.SetField(domain.FieldAgendaDocument, []domain.FileRef{{
				AssetID:     asset.ID,
				Description: record.AgendaDocument.Title,
				URI:         asset.URI,
			}})
		}
	}

	pointIDs := make([]string, 0, len(record.BulletPoints))
	for _, point := range record.BulletPoints {
		id, err := i.importBulletPoint(ctx, meeting, point, record.DirectoryPath)
		if err != nil {
			logger.Warn("Bullet point %s of agenda %s dropped: %v", point.ID, record.AgendaID, err)
			continue
		}
		pointIDs = append(pointIDs, id)
	}
	meeting.SetBulletPointIDs(pointIDs)

	if err := meeting.Save(ctx); err != nil {
		return fmt.Errorf("save meeting %s: %w", record.AgendaID, err)
	}
	return nil
}

// importBulletPoint reconciles one agenda item and returns its internal
// ID. Closed items get placeholder content and no files unless closed
// import is enabled.
func (i *Importer) importBulletPoint(
	ctx context.Context,
	meeting *entities.Meeting,
	point domain.BulletPointRecord,
	directoryPath string,
) (string, error) {
	bp, err := meeting.BulletPointByExternalID(ctx, point.ID)
	if errors.Is(err, domain.ErrNotFound) {
		bp, err = entities.AsBulletPoint(i.content, domain.NewEntity(domain.KindBulletPoint, point.ID, ""))
	}
	if err != nil {
		return "", err
	}

	closed := !domain.IsOpen(point.Access)
	bp.Entity.SetField(domain.FieldClosed, closed)

	if closed && !i.settings.ImportClosedAgenda {
		title := point.Title
		if prefix := i.settings.ClosedBPTitlePrefix; prefix != "" {
			title = prefix + " " + title
		}
		bp.Entity.Title = numberedTitle(i.settings, point.Number, title)
		bp.Entity.SetField(domain.FieldBody, i.settings.ClosedBPBodyText)
		bp.SetAttachmentIDs(nil)
		bp.SetEnclosures(nil)
	} else {
		bp.Entity.Title = numberedTitle(i.settings, point.Number, point.Title)
		bp.Entity.SetField(domain.FieldBody, i.cleanBody(ctx, point.Body, directoryPath))

		attachments := point.Attachments
		enclosures := point.Enclosures
		if i.settings.ProcessEnclosuresAsAttachments {
			for _, enc := range enclosures {
				enc.Title = i.enclosureTitle(enc.Title)
				attachments = append(attachments, enc.AsAttachment())
			}
			enclosures = nil
		}

		bp.SetAttachmentIDs(i.importAttachments(ctx, bp, attachments, directoryPath))
		bp.SetEnclosures(i.importEnclosures(ctx, enclosures, directoryPath))
	}

	bp.Entity.Published = true
	if err := bp.Save(ctx); err != nil {
		return "", err
	}
	return bp.Entity.ID, nil
}

// importAttachments reconciles an item's attachments and returns the
// ordered internal IDs of those that survived. A failed attachment is
// dropped, never the whole item.
func (i *Importer) importAttachments(
	ctx context.Context,
	bp *entities.BulletPoint,
	attachments []domain.AttachmentRecord,
	directoryPath string,
) []string {
	ids := make([]string, 0, len(attachments))

	for _, att := range attachments {
		if !domain.IsOpen(att.Access) && !i.settings.ImportClosedAgenda {
			logger.Debug("Skipping closed attachment %s", att.ID)
			continue
		}

		entity, err := bp.AttachmentByExternalID(ctx, att.ID)
		if errors.Is(err, domain.ErrNotFound) {
			entity = domain.NewEntity(domain.KindAttachment, att.ID, "")
			err = nil
		}
		if err != nil {
			logger.Warn("Attachment %s dropped: %v", att.ID, err)
			continue
		}

		entity.Title = att.Title
		entity.Published = true
		entity.SetField(domain.FieldBody, i.cleanBody(ctx, att.Body, directoryPath))

		// Resume and decision items are flagged so the presentation layer
		// can single them out without re-matching titles.
		switch {
		case i.settings.ResumeBPATitle != "" && strings.EqualFold(att.Title, i.settings.ResumeBPATitle):
			entity.SetField(domain.FieldBPAKind, domain.BPAKindResume)
		case i.settings.DecisionBPATitle != "" && strings.EqualFold(att.Title, i.settings.DecisionBPATitle):
			entity.SetField(domain.FieldBPAKind, domain.BPAKindDecision)
		}

		if att.URI != "" {
			resolved := filepath.Join(directoryPath, att.URI)
			asset, err := i.files.CopyAsManaged(ctx, resolved, att.Title)
			if err != nil {
				logger.Warn("Attachment file %s cannot be copied: %v", resolved, err)
			} else {
				entity.SetField(domain.FieldFile, []domain.FileRef{{
					AssetID:     asset.ID,
					Description: att.Title,
					URI:         asset.URI,
				}})
			}
		}

		if err := i.content.Save(ctx, entity); err != nil {
			logger.Warn("Attachment %s dropped: %v", att.ID, err)
			continue
		}
		ids = append(ids, entity.ID)
	}

	return ids
}

// importEnclosures copies an item's enclosure files and returns their
// references. Enclosures carry no scoped identifier; the display name is
// the reconciliation key and the first occurrence of a name wins.
func (i *Importer) importEnclosures(
	ctx context.Context,
	enclosures []domain.EnclosureRecord,
	directoryPath string,
) []domain.FileRef {
	var refs []domain.FileRef
	seen := make(map[string]bool, len(enclosures))

	for _, enc := range enclosures {
		if !domain.IsOpen(enc.Access) && !i.settings.ImportClosedAgenda {
			logger.Debug("Skipping closed enclosure %s", enc.ID)
			continue
		}

		title := i.enclosureTitle(enc.Title)
		if seen[title] {
			continue
		}
		seen[title] = true

		if enc.URI == "" {
			continue
		}

		resolved := filepath.Join(directoryPath, enc.URI)
		asset, err := i.files.CopyAsManaged(ctx, resolved, title)
		if err != nil {
			logger.Warn("Enclosure file %s cannot be copied: %v", resolved, err)
			continue
		}

		refs = append(refs, domain.FileRef{
			AssetID:     asset.ID,
			Description: title,
			URI:         asset.URI,
		})
	}

	return refs
}

// cleanBody runs the HTML pipeline over body text.
func (i *Importer) cleanBody(ctx context.Context, html, directoryPath string) string {
	if html == "" {
		return ""
	}
	html = i.sanitiser.Clean(html)
	return i.sanitiser.FixImagePaths(ctx, html, directoryPath)
}

// enclosureTitle applies the configured title length cap, counting runes
// so multi-byte Danish characters are not split.
func (i *Importer) enclosureTitle(title string) string {
	max := i.settings.EnclosuresMaxTitleLength
	if max <= 0 {
		return title
	}
	runes := []rune(title)
	if len(runes) <= max {
		return title
	}
	return string(runes[:max])
}

// numberedTitle builds the display title prefix from the published item
// number.
func numberedTitle(settings domain.ImportSettings, number, title string) string {
	if number == "" {
		return title
	}

	prefix := number
	if settings.DotAfterBPNumber {
		prefix += "."
	}
	if settings.TextBeforeBPNumber != "" {
		prefix = settings.TextBeforeBPNumber + " " + prefix
	}
	return prefix + " " + title
}

// begin registers a running status for a source, rejecting concurrent
// batches.
func (i *Importer) begin(sourceID string) (*driving.ImportStatus, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if status, ok := i.active[sourceID]; ok && status.Running {
		return nil, fmt.Errorf("%w: %s", domain.ErrImportInProgress, sourceID)
	}

	status := &driving.ImportStatus{SourceID: sourceID, Running: true}
	i.active[sourceID] = status
	return status, nil
}

// finish marks the batch done. The final counts stay queryable until the
// next batch starts.
func (i *Importer) finish(sourceID string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if status, ok := i.active[sourceID]; ok {
		status.Running = false
	}
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
