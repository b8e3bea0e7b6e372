// Package local implements the file store on the local filesystem.
// Managed copies are written beside their source file under a stable
// destination name, so a re-import replaces the copy instead of
// accumulating duplicates.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/agendadk/agendasync/internal/core/domain"
	"github.com/agendadk/agendasync/internal/core/ports/driven"
)

// Ensure FileStore implements the interface.
var _ driven.FileStore = (*FileStore)(nil)

// Config locates the storage areas.
type Config struct {
	// PrivateRoot is the non-public storage area. Files under it are
	// mirrored into the public tree before being referenced from HTML.
	PrivateRoot string

	// PublicRoot is the publicly servable tree.
	PublicRoot string

	// PublicPrefix is the mirror directory under PublicRoot.
	// Defaults to "meeting_images".
	PublicPrefix string

	// BaseURL prefixes public URLs, e.g. "https://files.kommune.dk".
	BaseURL string

	// CreateCopies copies file bytes when registering managed files.
	// When false, the source location is registered directly.
	CreateCopies bool
}

// FileStore is the local filesystem implementation of driven.FileStore.
type FileStore struct {
	cfg Config
}

// New creates a local file store.
func New(cfg Config) *FileStore {
	if cfg.PublicPrefix == "" {
		cfg.PublicPrefix = "meeting_images"
	}
	return &FileStore{cfg: cfg}
}

// CopyAsManaged registers the file under its stable managed name. The
// destination is title + original extension when a title is given,
// otherwise the original base name with a "_0" suffix, always in the
// source file's directory. An existing copy is replaced in place.
func (s *FileStore) CopyAsManaged(_ context.Context, sourceURI, desiredTitle string) (*domain.FileAsset, error) {
	base := filepath.Base(sourceURI)

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

	dest := sourceURI
	if s.cfg.CreateCopies {
		dest = filepath.Join(filepath.Dir(sourceURI), name+ext)
		if err := copyFile(sourceURI, dest); err != nil {
			return nil, fmt.Errorf("copying %s: %w", sourceURI, err)
		}
	} else if _, err := os.Stat(sourceURI); err != nil {
		return nil, fmt.Errorf("registering %s: %w", sourceURI, err)
	}

	return &domain.FileAsset{
		// The ID is derived from the destination, so re-imports yield the
		// same handle and entity references stay stable.
		ID:   uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+dest)).String(),
		Name: base,
		URI:  dest,
	}, nil
}

// Exists reports whether a file is present on disk.
func (s *FileStore) Exists(uri string) bool {
	info, err := os.Stat(uri)
	return err == nil && !info.IsDir()
}

// IsPrivate reports whether the URI lives under the private root.
func (s *FileStore) IsPrivate(uri string) bool {
	if s.cfg.PrivateRoot == "" {
		return false
	}
	rel, err := filepath.Rel(s.cfg.PrivateRoot, uri)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// MirrorToPublic copies a private file into the public mirror tree,
// preserving its path relative to the private root.
func (s *FileStore) MirrorToPublic(_ context.Context, sourceURI string) (string, error) {
	rel, err := filepath.Rel(s.cfg.PrivateRoot, sourceURI)
	if err != nil {
		return "", fmt.Errorf("resolving %s against private root: %w", sourceURI, err)
	}

	dest := filepath.Join(s.cfg.PublicRoot, s.cfg.PublicPrefix, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("creating mirror directory: %w", err)
	}
	if err := copyFile(sourceURI, dest); err != nil {
		return "", fmt.Errorf("mirroring %s: %w", sourceURI, err)
	}

	return dest, nil
}

// PublicURL returns the servable URL for a URI under the public root; URIs
// outside it pass through unchanged.
func (s *FileStore) PublicURL(uri string) string {
	rel, err := filepath.Rel(s.cfg.PublicRoot, uri)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return uri
	}
	return s.cfg.BaseURL + "/" + filepath.ToSlash(rel)
}

func copyFile(src, dest string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}
