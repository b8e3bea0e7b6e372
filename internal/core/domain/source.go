package domain

// Source is one configured manifest feed: a directory tree published by an
// ESDH provider. The source ID doubles as the source tag on imported
// meetings, which scopes the unpublish sweep.
type Source struct {
	// ID is the unique source identifier from configuration.
	ID string

	// Provider selects the converter for this feed, e.g. "sbsys".
	Provider string

	// Path is the root of the manifest directory tree.
	Path string

	// Pattern is an optional filename regexp; only matching files are read.
	Pattern string
}
