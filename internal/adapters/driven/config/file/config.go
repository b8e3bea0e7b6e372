// Package file loads the agendasync configuration from a TOML file:
// the import settings, the storage locations and the configured sources.
package file

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/agendadk/agendasync/internal/core/domain"
)

// Config is the full configuration document.
type Config struct {
	// Import holds the pipeline settings.
	Import domain.ImportSettings `toml:"import"`

	// Storage locates the database and the file trees.
	Storage StorageConfig `toml:"storage"`

	// Sources lists the manifest feeds to import.
	Sources []SourceConfig `toml:"sources"`
}

// StorageConfig locates the persistent stores.
type StorageConfig struct {
	// DataDir holds the SQLite database. Empty uses the default under the
	// user's home directory.
	DataDir string `toml:"data_dir"`

	// PrivateRoot and PublicRoot are the file storage areas.
	PrivateRoot string `toml:"private_root"`
	PublicRoot  string `toml:"public_root"`

	// PublicPrefix is the mirror directory under PublicRoot.
	PublicPrefix string `toml:"public_prefix"`

	// BaseURL prefixes public file URLs.
	BaseURL string `toml:"base_url"`
}

// SourceConfig is one configured manifest feed.
type SourceConfig struct {
	ID       string `toml:"id"`
	Provider string `toml:"provider"`
	Path     string `toml:"path"`
	Pattern  string `toml:"pattern"`
}

// DefaultPath returns the default configuration file location,
// ~/.agendasync/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".agendasync", "config.toml"), nil
}

// Load reads and validates a configuration file. Settings absent from
// the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{Import: domain.DefaultImportSettings()}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DomainSources converts the configured sources to their domain shape.
func (c *Config) DomainSources() []domain.Source {
	sources := make([]domain.Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		sources = append(sources, domain.Source{
			ID:       s.ID,
			Provider: s.Provider,
			Path:     s.Path,
			Pattern:  s.Pattern,
		})
	}
	return sources
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if s.ID == "" {
			return fmt.Errorf("%w: source %d has no id", domain.ErrInvalidInput, i)
		}
		if seen[s.ID] {
			return fmt.Errorf("%w: duplicate source id %s", domain.ErrInvalidInput, s.ID)
		}
		seen[s.ID] = true

		if s.Provider == "" {
			return fmt.Errorf("%w: source %s has no provider", domain.ErrInvalidInput, s.ID)
		}
		if s.Path == "" {
			return fmt.Errorf("%w: source %s has no path", domain.ErrInvalidInput, s.ID)
		}
	}

	if c.Import.MaxSequentialBr < 1 {
		c.Import.MaxSequentialBr = 1
	}
	return nil
}
