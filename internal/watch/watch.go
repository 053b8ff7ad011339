// Package watch reports new scan files in a directory once they stop
// changing.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	scanimage "shelfscan/internal/image"
	"shelfscan/internal/logging"

	"github.com/fsnotify/fsnotify"
)

const (
	// DefaultSettle is how long a file must be quiet before it is reported.
	DefaultSettle = 300 * time.Millisecond
	// DefaultScan is how often pending files are checked.
	DefaultScan = 250 * time.Millisecond
)

// Watcher debounces create and write events for supported scan files.
type Watcher struct {
	Dir    string
	Settle time.Duration
	Scan   time.Duration
}

// New creates a watcher for dir with the default timings.
func New(dir string) *Watcher {
	return &Watcher{Dir: dir, Settle: DefaultSettle, Scan: DefaultScan}
}

// Run blocks until ctx ends, calling onFile with the path of each new
// supported file after it has settled. onFile runs on the Run goroutine.
func (w *Watcher) Run(ctx context.Context, onFile func(path string)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.Dir, err)
	}
	logging.Info("watching for scans", "dir", w.Dir)

	settle, scan := w.Settle, w.Scan
	if settle <= 0 {
		settle = DefaultSettle
	}
	if scan <= 0 {
		scan = DefaultScan
	}

	pending := map[string]time.Time{}
	ticker := time.NewTicker(scan)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !scanimage.IsSupported(filepath.Base(ev.Name)) {
				continue
			}
			pending[ev.Name] = time.Now()
		case <-ticker.C:
			now := time.Now()
			for path, t := range pending {
				if now.Sub(t) > settle {
					delete(pending, path)
					onFile(path)
				}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logging.Warn("watch error", "error", err)
		}
	}
}
