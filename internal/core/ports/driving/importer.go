// Package driving defines the inbound contracts of the import pipeline,
// implemented by the core services and called by the CLI.
package driving

import "context"

// ImportStatus reports progress of a running or finished import batch.
type ImportStatus struct {
	// SourceID identifies the source being imported.
	SourceID string

	// Running is true while the batch is in progress.
	Running bool

	// MeetingsImported counts meetings written to the content store.
	MeetingsImported int

	// MeetingsSkipped counts rows omitted by policy (closed, whitelist,
	// draft, unchanged).
	MeetingsSkipped int

	// RowErrors counts rows that failed (malformed manifest, meeting-level
	// persistence failure).
	RowErrors int

	// Unpublished counts meetings retired by the unpublish sweep.
	Unpublished int
}

// ImportOrchestrator runs import batches.
type ImportOrchestrator interface {
	// Import runs one batch for a configured source.
	Import(ctx context.Context, sourceID string) error

	// ImportAll runs one batch per configured source.
	ImportAll(ctx context.Context) error

	// Status returns progress for a source.
	Status(ctx context.Context, sourceID string) (*ImportStatus, error)
}
