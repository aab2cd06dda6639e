package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/roach88/sqlmapper/internal/config"
)

// fileWatcher calls onChange once changes under the watched directories
// have been quiet for the debounce period. Only paths accepted by match
// count as changes.
type fileWatcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	match    func(path string) bool
	onChange func()
	logger   *slog.Logger
}

func newFileWatcher(dirs []string, debounce time.Duration, match func(string) bool, logger *slog.Logger) (*fileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := &fileWatcher{
		watcher:  watcher,
		debounce: debounce,
		match:    match,
		logger:   logger,
	}
	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			watcher.Close()
			return nil, err
		}
	}
	return w, nil
}

// Add watches dir. Adding a watched directory again is a no-op.
func (w *fileWatcher) Add(dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	return nil
}

// Run blocks until ctx is done, then closes the watcher.
func (w *fileWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	var debounceCh <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			path, err := filepath.Abs(event.Name)
			if err != nil || !w.match(path) {
				continue
			}
			w.logger.Debug("change detected", "path", path, "op", event.Op.String())
			// Debounce: reset timer on each event
			timer.Reset(w.debounce)
			debounceCh = timer.C

		case <-debounceCh:
			debounceCh = nil
			if w.onChange != nil {
				w.onChange()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-ctx.Done():
			timer.Stop()
			return nil
		}
	}
}

// watchDirs returns the absolute directories holding the config file and
// every mapper file it currently names.
func watchDirs(configPath string) []string {
	seen := make(map[string]bool)
	add := func(path string) {
		if abs, err := filepath.Abs(filepath.Dir(path)); err == nil {
			seen[abs] = true
		}
	}
	add(configPath)
	if cfg, err := config.Load(configPath); err == nil {
		if files, err := cfg.MapperFiles(); err == nil {
			for _, f := range files {
				add(f)
			}
		}
	}

	dirs := make([]string, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// watchedFile accepts the config file itself and any XML document.
func watchedFile(configPath string) func(string) bool {
	cfgAbs, _ := filepath.Abs(configPath)
	return func(path string) bool {
		return path == cfgAbs || strings.EqualFold(filepath.Ext(path), ".xml")
	}
}

// runWatch compiles once, then recompiles after every change until ctx is
// done. Compile failures are reported and watching continues.
func runWatch(ctx context.Context, opts *CompileOptions, configPath string, cmd *cobra.Command) error {
	logger := opts.Logger()
	compile := func() {
		if err := runCompile(opts, configPath, cmd); err != nil {
			logger.Warn("compile failed", "config", configPath, "error", err)
		}
	}

	compile()

	dirs := watchDirs(configPath)
	w, err := newFileWatcher(dirs, opts.Debounce, watchedFile(configPath), logger)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeWatchFailed, err)
	}
	w.onChange = func() {
		compile()
		// Mapper patterns may now match files in new directories.
		for _, d := range watchDirs(configPath) {
			if err := w.Add(d); err != nil {
				logger.Warn("watch error", "error", err)
			}
		}
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %d director(ies) for changes (Ctrl+C to stop)\n", len(dirs))
	return w.Run(ctx)
}
