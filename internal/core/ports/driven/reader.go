package driven

import (
	"context"

	"github.com/agendadk/agendasync/internal/core/domain"
)

// RecordReader enumerates raw manifest rows from a source.
//
// Rows and errors are delivered on channels, both closed when the source
// is exhausted. A *domain.RowError on the error channel is confined to a
// single manifest (malformed XML); the consumer logs it and continues.
// Any other error aborts the run.
type RecordReader interface {
	Read(ctx context.Context) (<-chan domain.RawRecord, <-chan error)
}

// ReaderFactory builds a record reader for one source using the
// provider's extraction spec.
type ReaderFactory interface {
	Create(source domain.Source, spec ReaderSpec, bannedChars []string) (RecordReader, error)
}

// HTMLSanitiser cleans body HTML before storage.
type HTMLSanitiser interface {
	// Clean runs the fixed-order cleaning pipeline over body HTML.
	Clean(html string) string

	// FixImagePaths rewrites relative image sources against the manifest
	// directory, mirroring private files into public storage and dropping
	// images whose files cannot be found.
	FixImagePaths(ctx context.Context, html, directoryPath string) string
}
