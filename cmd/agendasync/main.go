// Command agendasync imports municipal meeting agendas from ESDH
// manifest feeds into a local content store.
package main

import (
	"fmt"
	"os"

	configfile "github.com/agendadk/agendasync/internal/adapters/driven/config/file"
	"github.com/agendadk/agendasync/internal/adapters/driven/filestore/local"
	"github.com/agendadk/agendasync/internal/adapters/driven/storage/sqlite"
	"github.com/agendadk/agendasync/internal/adapters/driving/cli"
	"github.com/agendadk/agendasync/internal/converters"
	"github.com/agendadk/agendasync/internal/core/services"
	"github.com/agendadk/agendasync/internal/reader/xmldir"
	"github.com/agendadk/agendasync/internal/sanitiser"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.OnConfigure(configureServices)

	if err := cli.Execute(version); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// configureServices wires the import pipeline from the configuration
// file.
func configureServices(configPath string) (*cli.Deps, error) {
	if configPath == "" {
		path, err := configfile.DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = path
	}

	cfg, err := configfile.Load(configPath)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.NewStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	files := local.New(local.Config{
		PrivateRoot:  cfg.Storage.PrivateRoot,
		PublicRoot:   cfg.Storage.PublicRoot,
		PublicPrefix: cfg.Storage.PublicPrefix,
		BaseURL:      cfg.Storage.BaseURL,
		CreateCopies: cfg.Import.CreateFilesCopy,
	})

	sources := cfg.DomainSources()
	importer := services.NewImporter(
		sources,
		store.ContentStore(),
		files,
		store.ChangeTracker(),
		converters.DefaultRegistry(),
		xmldir.NewFactory(),
		sanitiser.New(cfg.Import, files),
		cfg.Import,
	)

	return &cli.Deps{Importer: importer, Sources: sources}, nil
}
