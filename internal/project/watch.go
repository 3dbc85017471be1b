package project

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a batch of changes is reported.
const DefaultDebounce = 100 * time.Millisecond

// WatchOptions configures a Watcher.
type WatchOptions struct {
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watcher reports batches of changed query and metadata files under a
// directory tree.
type Watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher starts watching dir and every non-hidden subdirectory.
func NewWatcher(dir string, opts WatchOptions) (*Watcher, error) {
	w := &Watcher{debounce: opts.Debounce, logger: opts.Logger}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.logger == nil {
		w.logger = slog.New(slog.DiscardHandler)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w.fs = fw
	if err := w.addTree(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return w, nil
}

// addTree recursively adds a directory to the watcher.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

// Run delivers changed paths to fn until ctx is done. Paths in a batch are
// sorted and distinct. fn runs on the calling goroutine.
func (w *Watcher) Run(ctx context.Context, fn func(changed []string)) error {
	defer func() { _ = w.fs.Close() }()

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending = make(map[string]bool)
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if isHidden(info.Name()) {
						continue
					}
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
					continue
				}
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !IsModelFile(event.Name) && !IsMetadataFile(event.Name) {
				continue
			}
			w.logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
			pending[event.Name] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for path := range pending {
				changed = append(changed, path)
			}
			sort.Strings(changed)
			clear(pending)
			fn(changed)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// Close stops the watcher without running it.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Watch is NewWatcher followed by Run.
func Watch(ctx context.Context, dir string, opts WatchOptions, fn func(changed []string)) error {
	w, err := NewWatcher(dir, opts)
	if err != nil {
		return err
	}
	return w.Run(ctx, fn)
}
