// Package sqlite implements the content store and change tracker on a
// single SQLite database. Entities are persisted as one row each with
// their kind-specific fields in a JSON document column.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/agendadk/agendasync/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/agendadk/agendasync/internal/core/domain"
	"github.com/agendadk/agendasync/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to the
// driven storage interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.agendasync/data/agendasync.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".agendasync", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "agendasync.db")

	// WAL mode for better concurrency between the importer and readers.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// ContentStore returns a ContentStore interface backed by this store.
func (s *Store) ContentStore() driven.ContentStore {
	return &contentStore{store: s}
}

// ChangeTracker returns a ChangeTracker interface backed by this store.
func (s *Store) ChangeTracker() driven.ChangeTracker {
	return &changeTracker{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Content Store ====================

// contentStore implements driven.ContentStore.
type contentStore struct {
	store *Store
}

var _ driven.ContentStore = (*contentStore)(nil)

// Get retrieves an entity by internal ID.
func (s *contentStore) Get(ctx context.Context, id string) (*domain.Entity, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, kind, external_id, title, source, published, fields, created_at, updated_at
		FROM entities WHERE id = ?
	`, id)
	return scanEntity(row)
}

// FindByExternalID retrieves an entity by kind and ESDH ID.
func (s *contentStore) FindByExternalID(ctx context.Context, kind domain.EntityKind, externalID string) (*domain.Entity, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, kind, external_id, title, source, published, fields, created_at, updated_at
		FROM entities WHERE kind = ? AND external_id = ?
		ORDER BY created_at LIMIT 1
	`, string(kind), externalID)
	return scanEntity(row)
}

// FindChildByExternalID retrieves a child by ESDH ID among the parent's
// ordered references. First match wins.
func (s *contentStore) FindChildByExternalID(ctx context.Context, parent *domain.Entity, kind domain.EntityKind, externalID string) (*domain.Entity, error) {
	for _, childID := range parent.StringsField(kind.ChildRefField()) {
		child, err := s.Get(ctx, childID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if child.Kind == kind && child.ExternalID == externalID {
			return child, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Save upserts an entity.
func (s *contentStore) Save(ctx context.Context, entity *domain.Entity) error {
	if entity.ID == "" {
		return fmt.Errorf("%w: entity without ID", domain.ErrInvalidInput)
	}

	fieldsJSON, err := json.Marshal(entity.Fields)
	if err != nil {
		return fmt.Errorf("marshalling fields: %w", err)
	}

	now := time.Now().UTC()
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = now
	}
	entity.UpdatedAt = now

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO entities (id, kind, external_id, title, source, published, fields, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			external_id = excluded.external_id,
			title = excluded.title,
			source = excluded.source,
			published = excluded.published,
			fields = excluded.fields,
			updated_at = excluded.updated_at
	`, entity.ID, string(entity.Kind), entity.ExternalID, entity.Title, entity.Source,
		entity.Published, string(fieldsJSON), entity.CreatedAt, entity.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving entity: %w", err)
	}
	return nil
}

// SetPublished flips the published flag.
func (s *contentStore) SetPublished(ctx context.Context, id string, published bool) error {
	result, err := s.store.db.ExecContext(ctx, `
		UPDATE entities SET published = ?, updated_at = ? WHERE id = ?
	`, published, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating published flag: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// QueryPublishedBySource returns published entities of a kind carrying
// the given source tag.
func (s *contentStore) QueryPublishedBySource(ctx context.Context, kind domain.EntityKind, source string) ([]domain.Entity, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, kind, external_id, title, source, published, fields, created_at, updated_at
		FROM entities WHERE kind = ? AND source = ? AND published = 1
		ORDER BY external_id
	`, string(kind), source)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var entities []domain.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}

	return entities, nil
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanEntity reads one entity row.
func scanEntity(row scanner) (*domain.Entity, error) {
	var entity domain.Entity
	var kind, fieldsJSON string
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(&entity.ID, &kind, &entity.ExternalID, &entity.Title,
		&entity.Source, &entity.Published, &fieldsJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning entity: %w", err)
	}

	entity.Kind = domain.EntityKind(kind)
	if err := json.Unmarshal([]byte(fieldsJSON), &entity.Fields); err != nil {
		return nil, fmt.Errorf("unmarshalling fields: %w", err)
	}
	if entity.Fields == nil {
		entity.Fields = make(map[string]any)
	}
	if createdAt.Valid {
		entity.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		entity.UpdatedAt = updatedAt.Time
	}

	return &entity, nil
}

// ==================== Change Tracker ====================

// changeTracker implements driven.ChangeTracker.
type changeTracker struct {
	store *Store
}

var _ driven.ChangeTracker = (*changeTracker)(nil)

// NeedsImport reports whether the agenda is new or its content hash
// changed since the last recorded import.
func (t *changeTracker) NeedsImport(ctx context.Context, source, agendaID, hash string) (bool, error) {
	row := t.store.db.QueryRowContext(ctx, `
		SELECT hash FROM import_state WHERE source = ? AND agenda_id = ?
	`, source, agendaID)

	var stored string
	err := row.Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading import state: %w", err)
	}

	return stored != hash, nil
}

// MarkImported records the imported hash.
func (t *changeTracker) MarkImported(ctx context.Context, source, agendaID, hash string) error {
	_, err := t.store.db.ExecContext(ctx, `
		INSERT INTO import_state (source, agenda_id, hash, imported_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source, agenda_id) DO UPDATE SET
			hash = excluded.hash,
			imported_at = excluded.imported_at
	`, source, agendaID, hash, time.Now().UTC())

	if err != nil {
		return fmt.Errorf("recording import state: %w", err)
	}
	return nil
}
