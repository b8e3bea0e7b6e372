// Package cli implements the agendasync command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agendadk/agendasync/internal/core/domain"
	"github.com/agendadk/agendasync/internal/core/ports/driving"
	"github.com/agendadk/agendasync/internal/logger"
)

var (
	version = "dev"

	verbose    bool
	configPath string

	importOrchestrator driving.ImportOrchestrator
	configuredSources  []domain.Source

	// configure wires the services once the --config flag is parsed.
	configure func(configPath string) (*Deps, error)
)

// Deps carries the wired services into the command tree.
type Deps struct {
	Importer driving.ImportOrchestrator
	Sources  []domain.Source
}

var rootCmd = &cobra.Command{
	Use:   "agendasync",
	Short: "Import municipal meeting agendas from ESDH manifest feeds",
	Long: `agendasync reads meeting agendas and minutes published by ESDH systems
as XML manifest directories and reconciles them into a local content store.

Meetings, agenda items and attachments are matched by their stable ESDH
identifiers, so re-importing a feed updates content in place.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)

		if configure == nil || importOrchestrator != nil {
			return nil
		}
		switch cmd.Name() {
		case "version", "help", "completion":
			return nil
		}

		deps, err := configure(configPath)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		importOrchestrator = deps.Importer
		configuredSources = deps.Sources
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the configuration file")
}

// OnConfigure registers the wiring function invoked before any command
// that needs services.
func OnConfigure(fn func(configPath string) (*Deps, error)) {
	configure = fn
}

// Execute runs the command tree.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.Execute()
}
