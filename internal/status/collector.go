package status

import (
	"context"
	"time"

	"github.com/printerpal/printerpal/internal/uploads"
)

// FileLister supplies the current upload listing for combined payloads.
type FileLister interface {
	List() []uploads.File
}

// Collector drives the heartbeat loop: assemble the combined payload and
// hand it to publish. An upload-directory change nudges an immediate
// collection instead of waiting out the heartbeat.
type Collector struct {
	aggregator *Aggregator
	files      FileLister
	publish    func(StatusUpdate)
	interval   time.Duration
	nudge      <-chan struct{}
}

// NewCollector creates a collector. nudge may be nil.
func NewCollector(aggregator *Aggregator, files FileLister, publish func(StatusUpdate), interval time.Duration, nudge <-chan struct{}) *Collector {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Collector{
		aggregator: aggregator,
		files:      files,
		publish:    publish,
		interval:   interval,
		nudge:      nudge,
	}
}

// Collect assembles one combined payload.
func (c *Collector) Collect(ctx context.Context) StatusUpdate {
	files := c.files.List()
	if files == nil {
		files = []uploads.File{}
	}
	return StatusUpdate{
		TS:     time.Now().Unix(),
		Files:  files,
		Status: c.aggregator.Snapshot(ctx),
	}
}

// Run loops until ctx is done. It returns immediately; the loop runs on its
// own goroutine.
func (c *Collector) Run(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			c.publish(c.Collect(ctx))
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-c.nudge:
			}
		}
	}()
}
