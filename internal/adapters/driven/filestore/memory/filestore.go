// Package memory provides an in-memory file store used in tests. It
// applies the same destination naming policy as the local adapter without
// touching the filesystem.
package memory

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"

	"github.com/agendadk/agendasync/internal/core/domain"
	"github.com/agendadk/agendasync/internal/core/ports/driven"
)

// Ensure FileStore implements the interface.
var _ driven.FileStore = (*FileStore)(nil)

// FileStore is an in-memory implementation of driven.FileStore.
type FileStore struct {
	mu sync.Mutex

	// PrivateRoot marks the non-public storage prefix.
	PrivateRoot string

	// PublicRoot and PublicPrefix locate the public mirror tree.
	PublicRoot   string
	PublicPrefix string

	// BaseURL prefixes public URLs; empty returns the path unchanged.
	BaseURL string

	// FailCopies makes CopyAsManaged fail, for degradation tests.
	FailCopies bool

	files  map[string]bool
	copies map[string]int
}

// NewFileStore creates an empty in-memory file store.
func NewFileStore() *FileStore {
	return &FileStore{
		PublicPrefix: "meeting_images",
		files:        make(map[string]bool),
		copies:       make(map[string]int),
	}
}

// AddFile seeds an existing file.
func (s *FileStore) AddFile(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path.Clean(uri)] = true
}

// CopyCount returns how many times a destination has been written.
func (s *FileStore) CopyCount(destURI string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copies[path.Clean(destURI)]
}

// ManagedCount returns the number of distinct managed destinations.
func (s *FileStore) ManagedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.copies)
}

// CopyAsManaged registers a managed copy beside the source file under the
// stable destination name.
func (s *FileStore) CopyAsManaged(_ context.Context, sourceURI, desiredTitle string) (*domain.FileAsset, error) {
	if s.FailCopies {
		return nil, errors.New("copy failed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sourceURI = path.Clean(sourceURI)
	if !s.files[sourceURI] {
		return nil, domain.ErrNotFound
	}

	dest := ManagedDestination(sourceURI, desiredTitle)
	s.files[dest] = true
	s.copies[dest]++

	return &domain.FileAsset{
		ID:   "asset:" + dest,
		Name: path.Base(sourceURI),
		URI:  dest,
	}, nil
}

// Exists reports whether a file was seeded or copied.
func (s *FileStore) Exists(uri string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[path.Clean(uri)]
}

// IsPrivate reports whether the URI is under the private root.
func (s *FileStore) IsPrivate(uri string) bool {
	return s.PrivateRoot != "" && strings.HasPrefix(path.Clean(uri), s.PrivateRoot)
}

// MirrorToPublic copies a private file into the public mirror tree.
func (s *FileStore) MirrorToPublic(_ context.Context, sourceURI string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sourceURI = path.Clean(sourceURI)
	if !s.files[sourceURI] {
		return "", domain.ErrNotFound
	}

	rel := strings.TrimPrefix(sourceURI, s.PrivateRoot)
	dest := path.Join(s.PublicRoot, s.PublicPrefix, rel)
	s.files[dest] = true
	return dest, nil
}

// PublicURL returns the servable URL for a URI.
func (s *FileStore) PublicURL(uri string) string {
	return s.BaseURL + path.Clean(uri)
}

// ManagedDestination computes the stable managed copy location for a
// source file: same directory, title + original extension when a title is
// given, otherwise the original base with a "_0" suffix. Re-imports of the
// same logical file always land on the same destination.
func ManagedDestination(sourceURI, desiredTitle string) string {
	dir := path.Dir(sourceURI)
	base := path.Base(sourceURI)

	name := base
	ext := ""
	if pos := strings.LastIndex(base, "."); pos >= 0 {
		name = base[:pos]
		ext = base[pos:]
	}

	if desiredTitle != "" {
		name = desiredTitle
	} else {
		name += "_0"
	}

	return path.Join(dir, name+ext)
}
