// Package watch feeds files dropped into a directory to a handler.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/TobiSchelling/Quantify/internal/ingest"
)

// DefaultDebounce is how long a file must stay quiet before it is handled.
const DefaultDebounce = 500 * time.Millisecond

// Handler processes one settled file.
type Handler func(ctx context.Context, path string)

// Watcher invokes a Handler for each new or changed supported file in a
// directory, once writes to it have settled.
type Watcher struct {
	dir      string
	handle   Handler
	debounce time.Duration
}

// New creates a watcher for dir.
func New(dir string, handle Handler) *Watcher {
	return &Watcher{dir: dir, handle: handle, debounce: DefaultDebounce}
}

// WithDebounce overrides the settle delay.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// IsSupported reports whether path has an ingestible extension and is not a
// hidden or editor temp file.
func IsSupported(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~") || strings.HasSuffix(base, "~") {
		return false
	}
	_, err := ingest.DetectFormat(base, "")
	return err == nil
}

// Run watches until ctx is cancelled. Handlers still pending at that point
// are dropped; handlers already running are waited for.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("watch dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch dir: %s is not a directory", w.dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	log.Printf("Watching %s for new files", w.dir)

	deb := newDebouncer(w.debounce, func(path string) {
		if ctx.Err() != nil {
			return
		}
		log.Printf("File settled: %s", path)
		w.handle(ctx, path)
	})
	defer deb.close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if IsSupported(event.Name) {
				deb.schedule(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("watcher error: %v", err)
		}
	}
}
