package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/agendadk/agendasync/internal/core/domain"
	"github.com/agendadk/agendasync/internal/logger"
)

// debounceDelay batches the burst of filesystem events an ESDH export
// produces into a single import per source.
const debounceDelay = 2 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch [source-id]",
	Short: "Watch source directories and import on changes",
	Long: `Watches configured source directories and runs an import batch for a
source when its manifest tree changes. With a source-id only that source
is watched. Runs until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if importOrchestrator == nil {
		return errors.New("import service not configured")
	}

	sources := configuredSources
	if len(args) == 1 {
		sources = nil
		for _, source := range configuredSources {
			if source.ID == args[0] {
				sources = append(sources, source)
			}
		}
		if len(sources) == 0 {
			return fmt.Errorf("unknown source: %s", args[0])
		}
	}
	if len(sources) == 0 {
		return errors.New("no sources configured")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	for _, source := range sources {
		if err := watchTree(watcher, source.Path); err != nil {
			return fmt.Errorf("watching %s: %w", source.Path, err)
		}
		cmd.Printf("Watching %s (%s)\n", source.Path, source.ID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var mu sync.Mutex
	timers := make(map[string]*time.Timer)

	schedule := func(sourceID string) {
		mu.Lock()
		defer mu.Unlock()

		if timer, ok := timers[sourceID]; ok {
			timer.Reset(debounceDelay)
			return
		}
		timers[sourceID] = time.AfterFunc(debounceDelay, func() {
			logger.Info("Change detected, importing source %s", sourceID)
			if err := importOrchestrator.Import(ctx, sourceID); err != nil {
				logger.Warn("Import of %s failed: %v", sourceID, err)
			}
			mu.Lock()
			delete(timers, sourceID)
			mu.Unlock()
		})
	}

	for {
		select {
		case <-ctx.Done():
			cmd.Println("Stopping watch.")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// New directories join the watch so deeper manifests are seen.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watchTree(watcher, event.Name); err != nil {
						logger.Warn("Cannot watch %s: %v", event.Name, err)
					}
				}
			}
			if source, ok := sourceFor(sources, event.Name); ok {
				schedule(source.ID)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)
		}
	}
}

// watchTree adds a directory and all its subdirectories to the watcher.
func watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if strings.HasPrefix(entry.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// sourceFor maps a changed path to the watched source containing it.
func sourceFor(sources []domain.Source, path string) (domain.Source, bool) {
	for _, source := range sources {
		rel, err := filepath.Rel(source.Path, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		return source, true
	}
	return domain.Source{}, false
}
