package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agendadk/agendasync/internal/core/ports/driving"
)

var importCmd = &cobra.Command{
	Use:   "import [source-id]",
	Short: "Import meetings from configured sources",
	Long: `Runs one import batch. If a source ID is provided, only that source
is imported. Otherwise, all configured sources are imported.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if importOrchestrator == nil {
		return errors.New("import service not configured")
	}

	ctx := context.Background()

	if len(args) > 0 {
		sourceID := args[0]
		cmd.Printf("Importing source: %s...\n", sourceID)

		if err := importWithProgress(ctx, cmd, importOrchestrator, sourceID); err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		cmd.Printf("Source %s imported successfully.\n", sourceID)
		return nil
	}

	cmd.Println("Importing all sources...")

	if err := importOrchestrator.ImportAll(ctx); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	cmd.Println("All sources imported successfully.")
	return nil
}

// importWithProgress runs an import while displaying progress updates.
func importWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	orch driving.ImportOrchestrator,
	sourceID string,
) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- orch.Import(ctx, sourceID)
	}()

	// Poll status every 500ms
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastCount := 0
	for {
		select {
		case err := <-errCh:
			// Print final status (ignore status error - best effort)
			status, statusErr := orch.Status(ctx, sourceID)
			if statusErr == nil && status != nil {
				cmd.Printf("\rImported %d meetings (%d skipped, %d errors, %d unpublished)\n",
					status.MeetingsImported, status.MeetingsSkipped, status.RowErrors, status.Unpublished)
			}
			return err
		case <-ticker.C:
			// Check progress (ignore status error - best effort)
			status, statusErr := orch.Status(ctx, sourceID)
			if statusErr == nil && status != nil && status.MeetingsImported > lastCount {
				cmd.Printf("\rImporting... %d meetings", status.MeetingsImported)
				lastCount = status.MeetingsImported
			}
		}
	}
}
