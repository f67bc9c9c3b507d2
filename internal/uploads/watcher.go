package uploads

import (
	"context"
	"os"
	"time"
)

// Watcher polls the upload directory and signals when its contents change,
// so the status collector can push an immediate update instead of waiting
// for the next heartbeat.
type Watcher struct {
	dir      string
	interval time.Duration
	state    map[string]int64 // name -> mtime
	changed  chan struct{}
}

// NewWatcher creates a watcher over the given directory.
func NewWatcher(dir string, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Watcher{
		dir:      dir,
		interval: interval,
		state:    make(map[string]int64),
		changed:  make(chan struct{}, 1),
	}
}

// Changed returns a channel that receives a tick when the directory content
// changed since the previous scan. The channel is level-style: pending
// notifications coalesce into one.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changed
}

// Start scans immediately to seed state, then polls until ctx is done.
func (w *Watcher) Start(ctx context.Context) {
	w.scan()

	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if w.scan() {
					select {
					case w.changed <- struct{}{}:
					default:
					}
				}
			}
		}
	}()
}

// scan rebuilds the mtime map and reports whether anything changed.
func (w *Watcher) scan() bool {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return false
	}

	next := make(map[string]int64, len(entries))
	changed := false
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		mtime := info.ModTime().Unix()
		next[e.Name()] = mtime
		if prev, ok := w.state[e.Name()]; !ok || prev != mtime {
			changed = true
		}
	}
	if len(next) != len(w.state) {
		changed = true
	}
	w.state = next
	return changed
}
