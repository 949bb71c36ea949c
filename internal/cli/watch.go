package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/nodeflow"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the bursts of events editors emit on save.
const DefaultDebounce = 150 * time.Millisecond

// WatchOptions configures Watch.
type WatchOptions struct {
	Path     string
	Debounce time.Duration
	Out      io.Writer
}

// Watch applies the workflow file at opts.Path and runs the whole graph, then
// does it again every time the file changes, until ctx is done.
// A broken file is reported and the previous graph is kept.
func Watch(ctx context.Context, engine *nodeflow.Engine, opts WatchOptions, logger *slog.Logger) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	target, err := filepath.Abs(opts.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", opts.Path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	logger.Info("Starting Watcher", "path", target)
	applyAndRun(ctx, engine, target, opts.Out, logger)
	printSystemMessage(opts.Out, "Waiting for changes...")

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping watcher")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			logger.Debug("Change detected", "event", event.String())
			debounce = time.After(opts.Debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", "err", err)

		case <-debounce:
			debounce = nil
			printSystemMessage(opts.Out, "Change detected in '%s'.", filepath.Base(target))
			applyAndRun(ctx, engine, target, opts.Out, logger)
			printSystemMessage(opts.Out, "Waiting for changes...")
		}
	}
}

func applyAndRun(ctx context.Context, engine *nodeflow.Engine, path string, out io.Writer, logger *slog.Logger) {
	changed, err := engine.Load(ctx, path)
	if err != nil {
		logger.Error("Definition rejected", "path", path, "err", err)
		printSystemMessage(out, "Definition rejected: %v", err)
		return
	}
	printSystemMessage(out, "Applied %d change(s).", changed)

	results, err := engine.RunAll(ctx)
	PrintResults(out, results)
	if err != nil {
		logger.Error("Run failed", "err", err)
		printSystemMessage(out, "Run stopped: %v", err)
	}
}
