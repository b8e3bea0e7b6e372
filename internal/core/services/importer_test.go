package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	filememory "github.com/agendadk/agendasync/internal/adapters/driven/filestore/memory"
	storememory "github.com/agendadk/agendasync/internal/adapters/driven/storage/memory"
	"github.com/agendadk/agendasync/internal/converters"
	"github.com/agendadk/agendasync/internal/core/domain"
	"github.com/agendadk/agendasync/internal/core/ports/driven"
	"github.com/agendadk/agendasync/internal/entities"
	"github.com/agendadk/agendasync/internal/sanitiser"
)

const testDir = "/data/sbsys/2024"

// stubReader replays preloaded rows and errors.
type stubReader struct {
	records []domain.RawRecord
	errs    []error
}

func (r *stubReader) Read(_ context.Context) (<-chan domain.RawRecord, <-chan error) {
	records := make(chan domain.RawRecord, len(r.records))
	errs := make(chan error, len(r.errs))
	for _, rec := range r.records {
		records <- rec
	}
	for _, err := range r.errs {
		errs <- err
	}
	close(records)
	close(errs)
	return records, errs
}

// stubFactory hands out the same reader for every source.
type stubFactory struct {
	reader *stubReader
}

func (f *stubFactory) Create(_ domain.Source, _ driven.ReaderSpec, _ []string) (driven.RecordReader, error) {
	return f.reader, nil
}

type fixture struct {
	importer *Importer
	content  *storememory.ContentStore
	files    *filememory.FileStore
	reader   *stubReader
}

func newFixture(t *testing.T, settings domain.ImportSettings) *fixture {
	t.Helper()

	content := storememory.NewContentStore()
	files := filememory.NewFileStore()
	reader := &stubReader{}

	importer := NewImporter(
		[]domain.Source{{ID: "kommune", Provider: "sbsys", Path: testDir}},
		content,
		files,
		storememory.NewChangeTracker(),
		converters.DefaultRegistry(),
		&stubFactory{reader: reader},
		sanitiser.New(settings, files),
		settings,
	)

	return &fixture{importer: importer, content: content, files: files, reader: reader}
}

// rawMeeting builds a minimal SBSYS row; mutate adjusts fields per test.
func rawMeeting(agendaID string, mutate func(fields map[string]any)) domain.RawRecord {
	fields := map[string]any{
		"agenda_id":   agendaID,
		"agenda_type": "Referat",
		"start_date":  "15-03-2024 17:00:00",
		"committee":   domain.Nested{"ID": "UDV-1", "Navn": "Byråd"},
		"bullet_points": []any{
			domain.Nested{"ID": "BP-1", "Nummer": "1", "Titel": "Budgetopfølgning"},
		},
	}
	if mutate != nil {
		mutate(fields)
	}
	return domain.RawRecord{
		SourceURL:     filepath.Join(testDir, agendaID+".xml"),
		DirectoryPath: testDir,
		Fields:        fields,
	}
}

func (f *fixture) meeting(t *testing.T, agendaID string) *entities.Meeting {
	t.Helper()
	m, err := entities.FindMeeting(context.Background(), f.content, agendaID)
	require.NoError(t, err)
	return m
}

func TestImporter_Import(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown source fails", func(t *testing.T) {
		f := newFixture(t, domain.DefaultImportSettings())

		err := f.importer.Import(ctx, "nowhere")
		assert.ErrorIs(t, err, domain.ErrUnknownSource)
	})

	t.Run("imports a meeting with its graph", func(t *testing.T) {
		f := newFixture(t, domain.DefaultImportSettings())
		f.files.AddFile(filepath.Join(testDir, "Dokumenter/dagsorden.pdf"))
		f.reader.records = []domain.RawRecord{rawMeeting("AGD-1", func(fields map[string]any) {
			fields["agenda_document"] = domain.Nested{
				"Titel": "Samlet dagsorden",
				"Sti":   "Dokumenter/dagsorden.pdf",
			}
			fields["participants"] = []any{"Anne Holm", "Jens Vig"}
		})}

		require.NoError(t, f.importer.Import(ctx, "kommune"))

		meeting := f.meeting(t, "AGD-1")
		assert.Equal(t, "Byråd 15-03-2024", meeting.Entity.Title)
		assert.Equal(t, "kommune", meeting.Entity.Source)
		assert.True(t, meeting.Entity.Published)
		assert.Equal(t, "Referat", meeting.Entity.StringField(domain.FieldAgendaType))
		assert.Equal(t, "Anne Holm, Jens Vig", meeting.Entity.StringField(domain.FieldParticipants))
		require.Len(t, meeting.Entity.FileRefsField(domain.FieldAgendaDocument), 1)

		require.Len(t, meeting.BulletPointIDs(), 1)
		bp, err := meeting.BulletPointByExternalID(ctx, "BP-1")
		require.NoError(t, err)
		assert.Equal(t, "1 Budgetopfølgning", bp.Entity.Title)

		assert.Equal(t, 1, f.content.Count(domain.KindCommittee))

		status, err := f.importer.Status(ctx, "kommune")
		require.NoError(t, err)
		assert.False(t, status.Running)
		assert.Equal(t, 1, status.MeetingsImported)
	})

	t.Run("re-import is idempotent", func(t *testing.T) {
		f := newFixture(t, domain.DefaultImportSettings())
		f.files.AddFile(filepath.Join(testDir, "Dokumenter/kort.pdf"))

		row := func() domain.RawRecord {
			return rawMeeting("AGD-1", func(fields map[string]any) {
				fields["bullet_points"] = []any{
					domain.Nested{
						"ID":    "BP-1",
						"Titel": "Budget",
						"Bilag": domain.Nested{"BilagPunkt": []any{
							domain.Nested{"ID": "BPA-1", "Titel": "Indstilling", "Tekst": "<p>Ja</p>"},
						}},
						"Vedlagte": domain.Nested{"Fil": []any{
							domain.Nested{"ID": "ENC-1", "Titel": "Kortbilag", "Sti": "Dokumenter/kort.pdf"},
						}},
					},
				}
			})
		}

		f.reader.records = []domain.RawRecord{row()}
		require.NoError(t, f.importer.Import(ctx, "kommune"))

		// Change the end date so the change tracker does not short-circuit
		// the second pass.
		second := row()
		second.Fields["end_date"] = "15-03-2024 21:00:00"
		f.reader.records = []domain.RawRecord{second}
		require.NoError(t, f.importer.Import(ctx, "kommune"))

		assert.Equal(t, 1, f.content.Count(domain.KindMeeting))
		assert.Equal(t, 1, f.content.Count(domain.KindBulletPoint))
		assert.Equal(t, 1, f.content.Count(domain.KindAttachment))
		assert.Equal(t, 1, f.files.ManagedCount())

		meeting := f.meeting(t, "AGD-1")
		bp, err := meeting.BulletPointByExternalID(ctx, "BP-1")
		require.NoError(t, err)
		assert.Len(t, bp.Enclosures(), 1)
	})

	t.Run("unchanged meeting is skipped", func(t *testing.T) {
		f := newFixture(t, domain.DefaultImportSettings())
		f.reader.records = []domain.RawRecord{rawMeeting("AGD-1", nil)}

		require.NoError(t, f.importer.Import(ctx, "kommune"))
		require.NoError(t, f.importer.Import(ctx, "kommune"))

		status, err := f.importer.Status(ctx, "kommune")
		require.NoError(t, err)
		assert.Equal(t, 1, status.MeetingsSkipped)
	})

	t.Run("draft agendas are never imported", func(t *testing.T) {
		f := newFixture(t, domain.DefaultImportSettings())
		f.reader.records = []domain.RawRecord{rawMeeting("AGD-1", func(fields map[string]any) {
			fields["agenda_type"] = "Kladde"
		})}

		require.NoError(t, f.importer.Import(ctx, "kommune"))
		assert.Equal(t, 0, f.content.Count(domain.KindMeeting))
	})

	t.Run("closed agendas are skipped unless enabled", func(t *testing.T) {
		closedRow := rawMeeting("AGD-1", func(fields map[string]any) {
			fields["agenda_access"] = "true"
		})

		f := newFixture(t, domain.DefaultImportSettings())
		f.reader.records = []domain.RawRecord{closedRow}
		require.NoError(t, f.importer.Import(ctx, "kommune"))
		assert.Equal(t, 0, f.content.Count(domain.KindMeeting))

		settings := domain.DefaultImportSettings()
		settings.ImportClosedAgenda = true
		open := newFixture(t, settings)
		open.reader.records = []domain.RawRecord{closedRow}
		require.NoError(t, open.importer.Import(ctx, "kommune"))
		assert.Equal(t, 1, open.content.Count(domain.KindMeeting))
	})

	t.Run("whitelist filters committees without side effects", func(t *testing.T) {
		settings := domain.DefaultImportSettings()
		settings.CommitteeWhitelist = []string{"UDV-9"}
		f := newFixture(t, settings)
		f.reader.records = []domain.RawRecord{rawMeeting("AGD-1", nil)}

		require.NoError(t, f.importer.Import(ctx, "kommune"))

		assert.Equal(t, 0, f.content.Count(domain.KindMeeting))
		assert.Equal(t, 0, f.content.Count(domain.KindCommittee))
		assert.Equal(t, 0, f.files.ManagedCount())
	})

	t.Run("closed bullet points get placeholder content", func(t *testing.T) {
		settings := domain.DefaultImportSettings()
		settings.ClosedBPTitlePrefix = "Lukket punkt:"
		settings.ClosedBPBodyText = "Punktet behandles for lukkede døre."
		f := newFixture(t, settings)
		f.files.AddFile(filepath.Join(testDir, "Dokumenter/notat.pdf"))
		f.reader.records = []domain.RawRecord{rawMeeting("AGD-1", func(fields map[string]any) {
			fields["bullet_points"] = []any{
				domain.Nested{
					"ID":     "BP-1",
					"Nummer": "2",
					"Titel":  "Personalesag",
					"Lukket": "true",
					"Bilag": domain.Nested{"BilagPunkt": []any{
						domain.Nested{"ID": "BPA-1", "Titel": "Notat", "Fil": "Dokumenter/notat.pdf"},
					}},
				},
			}
		})}

		require.NoError(t, f.importer.Import(ctx, "kommune"))

		meeting := f.meeting(t, "AGD-1")
		bp, err := meeting.BulletPointByExternalID(ctx, "BP-1")
		require.NoError(t, err)

		assert.Equal(t, "2 Lukket punkt: Personalesag", bp.Entity.Title)
		assert.Equal(t, "Punktet behandles for lukkede døre.", bp.Entity.StringField(domain.FieldBody))
		assert.Empty(t, bp.AttachmentIDs())
		assert.Empty(t, bp.Enclosures())
		assert.Equal(t, 0, f.files.ManagedCount())
	})

	t.Run("bullet point numbering prefix", func(t *testing.T) {
		settings := domain.DefaultImportSettings()
		settings.TextBeforeBPNumber = "Punkt"
		settings.DotAfterBPNumber = true
		f := newFixture(t, settings)
		f.reader.records = []domain.RawRecord{rawMeeting("AGD-1", nil)}

		require.NoError(t, f.importer.Import(ctx, "kommune"))

		meeting := f.meeting(t, "AGD-1")
		bp, err := meeting.BulletPointByExternalID(ctx, "BP-1")
		require.NoError(t, err)
		assert.Equal(t, "Punkt 1. Budgetopfølgning", bp.Entity.Title)
	})

	t.Run("enclosures routed through the attachment pipeline", func(t *testing.T) {
		settings := domain.DefaultImportSettings()
		settings.ProcessEnclosuresAsAttachments = true
		settings.EnclosuresMaxTitleLength = 4
		f := newFixture(t, settings)
		f.files.AddFile(filepath.Join(testDir, "Dokumenter/kort.pdf"))
		f.reader.records = []domain.RawRecord{rawMeeting("AGD-1", func(fields map[string]any) {
			fields["bullet_points"] = []any{
				domain.Nested{
					"ID":    "BP-1",
					"Titel": "Budget",
					"Vedlagte": domain.Nested{"Fil": []any{
						domain.Nested{"ID": "ENC-1", "Titel": "Kortbilag", "Sti": "Dokumenter/kort.pdf"},
					}},
				},
			}
		})}

		require.NoError(t, f.importer.Import(ctx, "kommune"))

		meeting := f.meeting(t, "AGD-1")
		bp, err := meeting.BulletPointByExternalID(ctx, "BP-1")
		require.NoError(t, err)

		assert.Empty(t, bp.Enclosures())
		require.Len(t, bp.AttachmentIDs(), 1)

		att, err := bp.AttachmentByExternalID(ctx, "ENC-1")
		require.NoError(t, err)
		assert.Equal(t, "Kort", att.Title)
	})

	t.Run("resume and decision attachments are flagged", func(t *testing.T) {
		settings := domain.DefaultImportSettings()
		settings.ResumeBPATitle = "Resume"
		settings.DecisionBPATitle = "Beslutning"
		f := newFixture(t, settings)
		f.reader.records = []domain.RawRecord{rawMeeting("AGD-1", func(fields map[string]any) {
			fields["bullet_points"] = []any{
				domain.Nested{
					"ID":    "BP-1",
					"Titel": "Budget",
					"Bilag": domain.Nested{"BilagPunkt": []any{
						domain.Nested{"ID": "BPA-1", "Titel": "resume", "Tekst": "<p>Kort</p>"},
						domain.Nested{"ID": "BPA-2", "Titel": "Beslutning", "Tekst": "<p>Godkendt</p>"},
						domain.Nested{"ID": "BPA-3", "Titel": "Notat", "Tekst": "<p>Øvrigt</p>"},
					}},
				},
			}
		})}

		require.NoError(t, f.importer.Import(ctx, "kommune"))

		meeting := f.meeting(t, "AGD-1")
		bp, err := meeting.BulletPointByExternalID(ctx, "BP-1")
		require.NoError(t, err)

		resume, err := bp.AttachmentByExternalID(ctx, "BPA-1")
		require.NoError(t, err)
		assert.Equal(t, domain.BPAKindResume, resume.StringField(domain.FieldBPAKind))

		decision, err := bp.AttachmentByExternalID(ctx, "BPA-2")
		require.NoError(t, err)
		assert.Equal(t, domain.BPAKindDecision, decision.StringField(domain.FieldBPAKind))

		plain, err := bp.AttachmentByExternalID(ctx, "BPA-3")
		require.NoError(t, err)
		assert.Empty(t, plain.StringField(domain.FieldBPAKind))
	})

	t.Run("duplicate enclosure names keep the first", func(t *testing.T) {
		f := newFixture(t, domain.DefaultImportSettings())
		f.files.AddFile(filepath.Join(testDir, "Dokumenter/a.pdf"))
		f.files.AddFile(filepath.Join(testDir, "Dokumenter/b.pdf"))
		f.reader.records = []domain.RawRecord{rawMeeting("AGD-1", func(fields map[string]any) {
			fields["bullet_points"] = []any{
				domain.Nested{
					"ID":    "BP-1",
					"Titel": "Budget",
					"Vedlagte": domain.Nested{"Fil": []any{
						domain.Nested{"ID": "ENC-1", "Titel": "Bilag", "Sti": "Dokumenter/a.pdf"},
						domain.Nested{"ID": "ENC-2", "Titel": "Bilag", "Sti": "Dokumenter/b.pdf"},
					}},
				},
			}
		})}

		require.NoError(t, f.importer.Import(ctx, "kommune"))

		meeting := f.meeting(t, "AGD-1")
		bp, err := meeting.BulletPointByExternalID(ctx, "BP-1")
		require.NoError(t, err)

		refs := bp.Enclosures()
		require.Len(t, refs, 1)
		assert.Contains(t, refs[0].URI, "Dokumenter")
	})

	t.Run("missing files degrade the meeting instead of failing it", func(t *testing.T) {
		f := newFixture(t, domain.DefaultImportSettings())
		f.reader.records = []domain.RawRecord{rawMeeting("AGD-1", func(fields map[string]any) {
			fields["agenda_document"] = domain.Nested{"Titel": "Dagsorden", "Sti": "Dokumenter/missing.pdf"}
		})}

		require.NoError(t, f.importer.Import(ctx, "kommune"))

		meeting := f.meeting(t, "AGD-1")
		assert.Empty(t, meeting.Entity.FileRefsField(domain.FieldAgendaDocument))
	})

	t.Run("committee rename keeps one term", func(t *testing.T) {
		f := newFixture(t, domain.DefaultImportSettings())

		f.reader.records = []domain.RawRecord{rawMeeting("AGD-1", nil)}
		require.NoError(t, f.importer.Import(ctx, "kommune"))

		f.reader.records = []domain.RawRecord{rawMeeting("AGD-2", func(fields map[string]any) {
			fields["committee"] = domain.Nested{"ID": "UDV-1", "Navn": "Kommunalbestyrelsen"}
		})}
		require.NoError(t, f.importer.Import(ctx, "kommune"))

		assert.Equal(t, 1, f.content.Count(domain.KindCommittee))
		term, err := f.content.FindByExternalID(ctx, domain.KindCommittee, "UDV-1")
		require.NoError(t, err)
		assert.Equal(t, "Kommunalbestyrelsen", term.Title)
	})

	t.Run("row errors are confined", func(t *testing.T) {
		f := newFixture(t, domain.DefaultImportSettings())
		f.reader.errs = []error{&domain.RowError{SourceURL: "/data/broken.xml", Err: errors.New("parse")}}
		f.reader.records = []domain.RawRecord{rawMeeting("AGD-1", nil)}

		require.NoError(t, f.importer.Import(ctx, "kommune"))

		status, err := f.importer.Status(ctx, "kommune")
		require.NoError(t, err)
		assert.Equal(t, 1, status.RowErrors)
		assert.Equal(t, 1, status.MeetingsImported)
	})

	t.Run("reader failure aborts the batch", func(t *testing.T) {
		f := newFixture(t, domain.DefaultImportSettings())
		f.reader.errs = []error{errors.New("root unreadable")}

		err := f.importer.Import(ctx, "kommune")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "root unreadable")
	})

	t.Run("invalid rows count as errors", func(t *testing.T) {
		f := newFixture(t, domain.DefaultImportSettings())
		bad := rawMeeting("AGD-1", func(fields map[string]any) {
			delete(fields, "committee")
		})
		f.reader.records = []domain.RawRecord{bad, rawMeeting("AGD-2", nil)}

		require.NoError(t, f.importer.Import(ctx, "kommune"))

		status, err := f.importer.Status(ctx, "kommune")
		require.NoError(t, err)
		assert.Equal(t, 1, status.RowErrors)
		assert.Equal(t, 1, status.MeetingsImported)
	})
}

func TestImporter_UnpublishSweep(t *testing.T) {
	ctx := context.Background()

	settings := domain.DefaultImportSettings()
	settings.UnpublishMissingAgendas = true
	f := newFixture(t, settings)

	f.reader.records = []domain.RawRecord{
		rawMeeting("AGD-A", nil),
		rawMeeting("AGD-B", nil),
		rawMeeting("AGD-C", nil),
	}
	require.NoError(t, f.importer.Import(ctx, "kommune"))

	t.Run("absent meetings are retired", func(t *testing.T) {
		f.reader.records = []domain.RawRecord{rawMeeting("AGD-A", nil), rawMeeting("AGD-B", nil)}
		require.NoError(t, f.importer.Import(ctx, "kommune"))

		status, err := f.importer.Status(ctx, "kommune")
		require.NoError(t, err)
		assert.Equal(t, 1, status.Unpublished)

		retired, err := f.content.FindByExternalID(ctx, domain.KindMeeting, "AGD-C")
		require.NoError(t, err)
		assert.False(t, retired.Published)
	})

	t.Run("skipped meetings stay published", func(t *testing.T) {
		// Both rows are unchanged, so both are policy-skipped; neither may
		// be swept.
		f.reader.records = []domain.RawRecord{rawMeeting("AGD-A", nil), rawMeeting("AGD-B", nil)}
		require.NoError(t, f.importer.Import(ctx, "kommune"))

		for _, id := range []string{"AGD-A", "AGD-B"} {
			meeting, err := f.content.FindByExternalID(ctx, domain.KindMeeting, id)
			require.NoError(t, err)
			assert.True(t, meeting.Published, id)
		}
	})

	t.Run("a returning meeting is republished", func(t *testing.T) {
		returning := rawMeeting("AGD-C", nil)
		returning.Fields["end_date"] = "15-03-2024 20:00:00"
		f.reader.records = []domain.RawRecord{rawMeeting("AGD-A", nil), rawMeeting("AGD-B", nil), returning}
		require.NoError(t, f.importer.Import(ctx, "kommune"))

		meeting, err := f.content.FindByExternalID(ctx, domain.KindMeeting, "AGD-C")
		require.NoError(t, err)
		assert.True(t, meeting.Published)
	})
}

func TestImporter_ImportAll(t *testing.T) {
	ctx := context.Background()

	content := storememory.NewContentStore()
	files := filememory.NewFileStore()
	reader := &stubReader{records: []domain.RawRecord{rawMeeting("AGD-1", nil)}}

	importer := NewImporter(
		[]domain.Source{
			{ID: "a", Provider: "sbsys", Path: testDir},
			{ID: "b", Provider: "acadre", Path: testDir},
		},
		content,
		files,
		storememory.NewChangeTracker(),
		converters.DefaultRegistry(),
		&stubFactory{reader: reader},
		sanitiser.New(domain.DefaultImportSettings(), files),
		domain.DefaultImportSettings(),
	)

	err := importer.ImportAll(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedProvider)

	// The supported source still completed.
	assert.Equal(t, 1, content.Count(domain.KindMeeting))
}
