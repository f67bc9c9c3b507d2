// Package session holds the client-side UI state machine: file selection,
// live-update reconciliation, print submission guarding, preview keying,
// and config editing. All state lives in an explicit State value; the
// package has no globals.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/printerpal/printerpal/internal/client"
	"github.com/printerpal/printerpal/internal/prefs"
	"github.com/printerpal/printerpal/internal/printcfg"
	"github.com/printerpal/printerpal/internal/status"
	"github.com/printerpal/printerpal/internal/uploads"
)

// Link is the UI-facing connection state.
type Link int

const (
	LinkLive Link = iota
	LinkReconnecting
	LinkOffline
)

func (l Link) String() string {
	switch l {
	case LinkLive:
		return "live"
	case LinkReconnecting:
		return "reconnecting"
	default:
		return "offline"
	}
}

// After this many consecutive failed reconnect attempts the link is
// reported as offline rather than reconnecting.
const offlineAfter = 3

// ErrPrintInFlight is returned when a submission is attempted while an
// earlier one has not completed.
var ErrPrintInFlight = errors.New("a print job is already being submitted")

// State is the complete UI state. Callers receive copies; mutation goes
// through Controller methods only.
type State struct {
	SelectedFile  string
	Files         []uploads.File
	Status        status.Snapshot
	Config        printcfg.Config
	ConfigLoaded  bool
	Link          Link
	PrintInFlight bool
	PreviewError  string
	Prefs         prefs.Prefs
}

// API is the slice of the HTTP client the controller needs. Satisfied by
// *client.Client.
type API interface {
	FetchFiles(ctx context.Context) ([]uploads.File, error)
	FetchStatus(ctx context.Context) (status.Snapshot, error)
	FetchConfig(ctx context.Context) (printcfg.Config, error)
	SaveConfig(ctx context.Context, cfg printcfg.Config) (printcfg.Config, error)
	Print(ctx context.Context, req client.PrintRequest) (string, error)
	PreviewURL(filename, mode string, page, width int, cacheBust string) string
}

// PreviewRequest identifies one rendered page fetch. Two requests for the
// same logical key still differ in Token, so caches never serve a stale
// render.
type PreviewRequest struct {
	Filename string
	Mode     string
	Page     int
	Width    int
	Token    string
	URL      string
}

// Controller owns the session state and mediates all mutations.
type Controller struct {
	api       API
	prefsPath string

	mu    sync.Mutex
	state State

	previewMode string
	previewPage int
	viewWidth   int

	debounce      *time.Timer
	debounceDelay time.Duration
	onPreview     func(PreviewRequest)

	reconnects int
	tokenSeq   atomic.Uint64
}

// NewController creates a controller talking through api. prefsPath may be
// empty to use the default location.
func NewController(api API, prefsPath string) *Controller {
	p, _ := prefs.Load(prefsPath)
	return &Controller{
		api:           api,
		prefsPath:     prefsPath,
		state:         State{Link: LinkReconnecting, Prefs: p},
		previewPage:   1,
		viewWidth:     720,
		debounceDelay: 120 * time.Millisecond,
	}
}

// OnPreviewRefresh registers the callback invoked whenever the preview key
// changes. Called without the lock held.
func (c *Controller) OnPreviewRefresh(fn func(PreviewRequest)) {
	c.mu.Lock()
	c.onPreview = fn
	c.mu.Unlock()
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ─── Selection ──────────────────────────────────────────────────────────

// Select picks an uploaded file for preview and printing. Names not in the
// current listing are ignored.
func (c *Controller) Select(name string) bool {
	c.mu.Lock()
	found := false
	for _, f := range c.state.Files {
		if f.Name == name {
			found = true
			break
		}
	}
	if !found {
		c.mu.Unlock()
		return false
	}
	c.state.SelectedFile = name
	c.state.PreviewError = ""
	c.previewPage = 1
	c.mu.Unlock()

	c.refreshPreview()
	return true
}

// Deselect clears the selection.
func (c *Controller) Deselect() {
	c.mu.Lock()
	c.state.SelectedFile = ""
	c.state.PreviewError = ""
	c.mu.Unlock()
}

// ApplyUpdate replaces files and status wholesale from a live update. When
// the selected file disappeared from the listing the selection is cleared;
// applying the same update twice is a no-op. The print guard is never
// touched here: only the submission's own completion re-enables it.
func (c *Controller) ApplyUpdate(u status.StatusUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Files = u.Files
	c.state.Status = u.Status

	if c.state.SelectedFile == "" {
		return
	}
	for _, f := range u.Files {
		if f.Name == c.state.SelectedFile {
			return
		}
	}
	c.state.SelectedFile = ""
	c.state.PreviewError = ""
}

// ─── Live link ──────────────────────────────────────────────────────────

// MarkLive records a healthy event stream.
func (c *Controller) MarkLive() {
	c.mu.Lock()
	c.reconnects = 0
	c.state.Link = LinkLive
	c.mu.Unlock()
}

// MarkReconnecting records a dropped stream. Repeated drops without a
// successful event in between degrade the link to offline.
func (c *Controller) MarkReconnecting() {
	c.mu.Lock()
	c.reconnects++
	if c.reconnects >= offlineAfter {
		c.state.Link = LinkOffline
	} else {
		c.state.Link = LinkReconnecting
	}
	c.mu.Unlock()
}

// ─── Printing ───────────────────────────────────────────────────────────

// ValidatePrint checks a submission locally. It never touches the network.
func (c *Controller) ValidatePrint(page, copies int, printer string) error {
	if page < 1 {
		return fmt.Errorf("page must be at least 1")
	}
	if copies < 1 || copies > 99 {
		return fmt.Errorf("copies must be between 1 and 99")
	}
	if printer == "" {
		return nil
	}
	c.mu.Lock()
	known := c.state.Status.HasPrinter(printer)
	c.mu.Unlock()
	if !known {
		return fmt.Errorf("unknown printer %q", printer)
	}
	return nil
}

// SubmitPrint sends the selected file to the queue. At most one submission
// is in flight per session; a second call before completion fails fast.
func (c *Controller) SubmitPrint(ctx context.Context, mode, printer string, copies int) (string, error) {
	c.mu.Lock()
	if c.state.PrintInFlight {
		c.mu.Unlock()
		return "", ErrPrintInFlight
	}
	name := c.state.SelectedFile
	if name == "" {
		c.mu.Unlock()
		return "", errors.New("no file selected")
	}
	c.state.PrintInFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.state.PrintInFlight = false
		c.mu.Unlock()
	}()

	if err := c.ValidatePrint(1, copies, printer); err != nil {
		return "", err
	}

	out, err := c.api.Print(ctx, client.PrintRequest{
		Filename: name,
		Mode:     mode,
		Printer:  printer,
		Copies:   copies,
	})
	if err != nil {
		return "", err
	}

	// Optimistic refresh so the queue shows the new job before the next
	// push arrives.
	c.Refresh(ctx)
	return out, nil
}

// Refresh pulls a fresh listing and snapshot. Failures leave the last-known
// state untouched.
func (c *Controller) Refresh(ctx context.Context) error {
	files, err := c.api.FetchFiles(ctx)
	if err != nil {
		return err
	}
	snap, err := c.api.FetchStatus(ctx)
	if err != nil {
		return err
	}
	c.ApplyUpdate(status.StatusUpdate{Files: files, Status: snap})
	return nil
}

// ─── Preview ────────────────────────────────────────────────────────────

// SetPreviewMode switches the render mode and refetches.
func (c *Controller) SetPreviewMode(mode string) {
	c.mu.Lock()
	changed := c.previewMode != mode
	c.previewMode = mode
	c.mu.Unlock()
	if changed {
		c.refreshPreview()
	}
}

// SetPreviewPage moves to a page and refetches. Pages below 1 clamp to 1.
func (c *Controller) SetPreviewPage(page int) {
	if page < 1 {
		page = 1
	}
	c.mu.Lock()
	changed := c.previewPage != page
	c.previewPage = page
	c.mu.Unlock()
	if changed {
		c.refreshPreview()
	}
}

// ResizeViewport records a new render width. Bursts of resize events are
// coalesced: only the last width within the debounce window triggers a
// refetch.
func (c *Controller) ResizeViewport(width int) {
	c.mu.Lock()
	c.viewWidth = width
	if c.debounce != nil {
		c.debounce.Stop()
	}
	c.debounce = time.AfterFunc(c.debounceDelay, c.refreshPreview)
	c.mu.Unlock()
}

// PreviewRequest derives the current preview fetch. The token is fresh on
// every call.
func (c *Controller) PreviewRequest() (PreviewRequest, bool) {
	c.mu.Lock()
	name := c.state.SelectedFile
	mode := c.previewMode
	if mode == "" {
		if c.state.ConfigLoaded {
			mode = c.state.Config.Printing.DefaultMode
		} else {
			mode = "raw"
		}
	}
	page := c.previewPage
	width := c.viewWidth
	c.mu.Unlock()

	if name == "" {
		return PreviewRequest{}, false
	}

	token := strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + strconv.FormatUint(c.tokenSeq.Add(1), 10)
	return PreviewRequest{
		Filename: name,
		Mode:     mode,
		Page:     page,
		Width:    width,
		Token:    token,
		URL:      c.api.PreviewURL(name, mode, page, width, token),
	}, true
}

// SetPreviewError records a failed preview fetch. The selection stays.
func (c *Controller) SetPreviewError(msg string) {
	c.mu.Lock()
	c.state.PreviewError = msg
	c.mu.Unlock()
}

func (c *Controller) refreshPreview() {
	c.mu.Lock()
	fn := c.onPreview
	c.mu.Unlock()
	if fn == nil {
		return
	}
	if req, ok := c.PreviewRequest(); ok {
		fn(req)
	}
}

// ─── Config ─────────────────────────────────────────────────────────────

// LoadConfig pulls the server configuration into the session.
func (c *Controller) LoadConfig(ctx context.Context) error {
	cfg, err := c.api.FetchConfig(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.state.Config = cfg
	c.state.ConfigLoaded = true
	c.mu.Unlock()
	return nil
}

// SaveConfig overlays mutate onto a copy of the last-known document, sends
// the whole document, and replaces the local copy with the server's
// authoritative response. On failure the last good config is kept.
func (c *Controller) SaveConfig(ctx context.Context, mutate func(*printcfg.Config)) error {
	c.mu.Lock()
	draft := c.state.Config
	c.mu.Unlock()

	mutate(&draft)

	saved, err := c.api.SaveConfig(ctx, draft)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.state.Config = saved
	c.state.ConfigLoaded = true
	c.mu.Unlock()
	return nil
}

// ─── Display prefs ──────────────────────────────────────────────────────

// SetDark toggles the dark palette. Enabling it clears e-ink mode.
func (c *Controller) SetDark(on bool) error {
	c.mu.Lock()
	c.state.Prefs.Dark = on
	if on {
		c.state.Prefs.EInk = false
	}
	p := c.state.Prefs
	c.mu.Unlock()
	return prefs.Save(c.prefsPath, p)
}

// SetEInk toggles e-ink mode. Enabling it clears the dark palette.
func (c *Controller) SetEInk(on bool) error {
	c.mu.Lock()
	c.state.Prefs.EInk = on
	if on {
		c.state.Prefs.Dark = false
	}
	p := c.state.Prefs
	c.mu.Unlock()
	return prefs.Save(c.prefsPath, p)
}
