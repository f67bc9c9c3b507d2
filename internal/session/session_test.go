package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/printerpal/printerpal/internal/client"
	"github.com/printerpal/printerpal/internal/cups"
	"github.com/printerpal/printerpal/internal/printcfg"
	"github.com/printerpal/printerpal/internal/status"
	"github.com/printerpal/printerpal/internal/uploads"
)

type fakeAPI struct {
	mu         sync.Mutex
	printCalls []client.PrintRequest
	printErr   error
	printGate  chan struct{}
	saveErr    error
	files      []uploads.File
	snap       status.Snapshot
	cfg        printcfg.Config
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{cfg: printcfg.Default()}
}

func (f *fakeAPI) FetchFiles(ctx context.Context) ([]uploads.File, error) {
	return f.files, nil
}

func (f *fakeAPI) FetchStatus(ctx context.Context) (status.Snapshot, error) {
	return f.snap, nil
}

func (f *fakeAPI) FetchConfig(ctx context.Context) (printcfg.Config, error) {
	return f.cfg, nil
}

func (f *fakeAPI) SaveConfig(ctx context.Context, cfg printcfg.Config) (printcfg.Config, error) {
	if f.saveErr != nil {
		return printcfg.Config{}, f.saveErr
	}
	f.cfg = cfg
	return cfg, nil
}

func (f *fakeAPI) Print(ctx context.Context, req client.PrintRequest) (string, error) {
	f.mu.Lock()
	f.printCalls = append(f.printCalls, req)
	gate := f.printGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if f.printErr != nil {
		return "", f.printErr
	}
	return "request id is Q-1", nil
}

func (f *fakeAPI) printCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.printCalls)
}

func (f *fakeAPI) PreviewURL(filename, mode string, page, width int, cacheBust string) string {
	q := url.Values{}
	q.Set("mode", mode)
	q.Set("page", strconv.Itoa(page))
	q.Set("w", strconv.Itoa(width))
	q.Set("_", cacheBust)
	return "/api/preview/" + url.PathEscape(filename) + "?" + q.Encode()
}

func newTestController(t *testing.T, api API) *Controller {
	t.Helper()
	return NewController(api, filepath.Join(t.TempDir(), "prefs.toml"))
}

func seedFiles(c *Controller, names ...string) {
	files := make([]uploads.File, 0, len(names))
	for _, n := range names {
		files = append(files, uploads.File{Name: n})
	}
	c.ApplyUpdate(status.StatusUpdate{Files: files})
}

func TestSelectOnlyKnownFiles(t *testing.T) {
	c := newTestController(t, newFakeAPI())
	seedFiles(c, "a.pdf", "b.pdf")

	if !c.Select("a.pdf") {
		t.Fatal("select of listed file refused")
	}
	if c.Select("ghost.pdf") {
		t.Fatal("select of unlisted file accepted")
	}
	if got := c.State().SelectedFile; got != "a.pdf" {
		t.Fatalf("selected = %q", got)
	}
}

func TestApplyUpdateDeselectsMissing(t *testing.T) {
	c := newTestController(t, newFakeAPI())
	seedFiles(c, "a.pdf")
	c.Select("a.pdf")

	update := status.StatusUpdate{Files: []uploads.File{{Name: "other.pdf"}}}
	c.ApplyUpdate(update)
	if got := c.State().SelectedFile; got != "" {
		t.Fatalf("selection survived removal: %q", got)
	}

	// Idempotent: applying the same update again changes nothing.
	c.ApplyUpdate(update)
	if got := c.State().SelectedFile; got != "" {
		t.Fatalf("second apply changed selection: %q", got)
	}
}

func TestValidatePrintLocalOnly(t *testing.T) {
	api := newFakeAPI()
	c := newTestController(t, api)
	c.ApplyUpdate(status.StatusUpdate{Status: status.Snapshot{
		Printers: []cups.PrinterInfo{{Name: "HP_LaserJet"}},
	}})

	tests := []struct {
		page, copies int
		printer      string
		wantErr      bool
	}{
		{0, 1, "", true},
		{1, 0, "", true},
		{1, 100, "", true},
		{1, 1, "nosuch", true},
		{1, 1, "HP_LaserJet", false},
		{1, 1, "", false},
		{1, 99, "", false},
	}
	for _, tt := range tests {
		err := c.ValidatePrint(tt.page, tt.copies, tt.printer)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePrint(%d,%d,%q) err=%v", tt.page, tt.copies, tt.printer, err)
		}
	}
	if api.printCount() != 0 {
		t.Fatalf("validation touched the network: %d print calls", api.printCount())
	}
}

func TestSubmitPrintHappyPath(t *testing.T) {
	api := newFakeAPI()
	c := newTestController(t, api)
	seedFiles(c, "doc.pdf")
	c.Select("doc.pdf")

	out, err := c.SubmitPrint(context.Background(), "bw", "", 1)
	if err != nil {
		t.Fatalf("SubmitPrint: %v", err)
	}
	if out != "request id is Q-1" {
		t.Fatalf("stdout = %q", out)
	}
	if api.printCount() != 1 {
		t.Fatalf("print calls = %d, want exactly 1", api.printCount())
	}
	got := api.printCalls[0]
	if got.Filename != "doc.pdf" || got.Mode != "bw" || got.Copies != 1 || got.Printer != "" {
		t.Fatalf("unexpected request: %+v", got)
	}
	if c.State().PrintInFlight {
		t.Fatal("guard still set after completion")
	}
}

func TestSubmitPrintRejectsBadCopiesWithoutNetwork(t *testing.T) {
	api := newFakeAPI()
	c := newTestController(t, api)
	seedFiles(c, "doc.pdf")
	c.Select("doc.pdf")

	if _, err := c.SubmitPrint(context.Background(), "raw", "", 100); err == nil {
		t.Fatal("copies=100 accepted")
	}
	if api.printCount() != 0 {
		t.Fatalf("invalid submission reached the network: %d calls", api.printCount())
	}
}

func TestSubmitPrintInFlightGuard(t *testing.T) {
	api := newFakeAPI()
	api.printGate = make(chan struct{})
	c := newTestController(t, api)
	seedFiles(c, "doc.pdf")
	c.Select("doc.pdf")

	done := make(chan error, 1)
	go func() {
		_, err := c.SubmitPrint(context.Background(), "raw", "", 1)
		done <- err
	}()

	// Wait for the first submission to take the guard.
	deadline := time.Now().Add(2 * time.Second)
	for !c.State().PrintInFlight {
		if time.Now().After(deadline) {
			t.Fatal("first submission never started")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := c.SubmitPrint(context.Background(), "raw", "", 1); !errors.Is(err, ErrPrintInFlight) {
		t.Fatalf("second submission: err=%v, want ErrPrintInFlight", err)
	}

	// A push arriving mid-flight must not release the guard.
	c.ApplyUpdate(status.StatusUpdate{Files: []uploads.File{{Name: "doc.pdf"}}})
	if !c.State().PrintInFlight {
		t.Fatal("push released the in-flight guard")
	}

	close(api.printGate)
	if err := <-done; err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
	if c.State().PrintInFlight {
		t.Fatal("guard still set after completion")
	}
	if api.printCount() != 1 {
		t.Fatalf("print calls = %d, want 1", api.printCount())
	}
}

func TestPreviewRequestTokenFreshness(t *testing.T) {
	c := newTestController(t, newFakeAPI())
	seedFiles(c, "doc.pdf")
	c.Select("doc.pdf")

	a, ok := c.PreviewRequest()
	if !ok {
		t.Fatal("no preview request for selected file")
	}
	b, _ := c.PreviewRequest()

	if a.Filename != b.Filename || a.Mode != b.Mode || a.Page != b.Page || a.Width != b.Width {
		t.Fatalf("logical key changed between calls: %+v vs %+v", a, b)
	}
	if a.Token == b.Token {
		t.Fatal("token reused for identical key")
	}
	if a.URL == b.URL {
		t.Fatal("URLs identical despite fresh tokens")
	}
}

func TestPreviewRefetchOnKeyChange(t *testing.T) {
	c := newTestController(t, newFakeAPI())
	var mu sync.Mutex
	var reqs []PreviewRequest
	c.OnPreviewRefresh(func(r PreviewRequest) {
		mu.Lock()
		reqs = append(reqs, r)
		mu.Unlock()
	})

	seedFiles(c, "doc.pdf")
	c.Select("doc.pdf")
	c.SetPreviewMode("bw")
	c.SetPreviewMode("bw") // unchanged, no refetch
	c.SetPreviewPage(2)

	mu.Lock()
	defer mu.Unlock()
	if len(reqs) != 3 {
		t.Fatalf("refetches = %d, want 3 (select, mode, page)", len(reqs))
	}
	if reqs[1].Mode != "bw" || reqs[2].Page != 2 {
		t.Fatalf("unexpected requests: %+v", reqs)
	}
}

func TestResizeDebounceCoalesces(t *testing.T) {
	c := newTestController(t, newFakeAPI())
	c.debounceDelay = 40 * time.Millisecond

	var mu sync.Mutex
	count := 0
	var lastWidth int
	c.OnPreviewRefresh(func(r PreviewRequest) {
		mu.Lock()
		count++
		lastWidth = r.Width
		mu.Unlock()
	})

	seedFiles(c, "doc.pdf")
	c.mu.Lock()
	c.state.SelectedFile = "doc.pdf" // skip Select's own refetch
	c.mu.Unlock()

	for i := 0; i < 10; i++ {
		c.ResizeViewport(700 + i)
	}
	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("refetches = %d, want exactly 1", count)
	}
	if lastWidth != 709 {
		t.Fatalf("width = %d, want last resize value 709", lastWidth)
	}
}

func TestPreviewErrorKeepsSelection(t *testing.T) {
	c := newTestController(t, newFakeAPI())
	seedFiles(c, "doc.pdf")
	c.Select("doc.pdf")

	c.SetPreviewError("render failed")
	st := c.State()
	if st.SelectedFile != "doc.pdf" {
		t.Fatal("preview failure removed selection")
	}
	if st.PreviewError != "render failed" {
		t.Fatalf("preview error = %q", st.PreviewError)
	}
}

func TestSaveConfigAuthoritativeReplace(t *testing.T) {
	api := newFakeAPI()
	c := newTestController(t, api)
	if err := c.LoadConfig(context.Background()); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	err := c.SaveConfig(context.Background(), func(cfg *printcfg.Config) {
		cfg.Printing.DefaultMode = "dither"
	})
	if err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	if got := c.State().Config.Printing.DefaultMode; got != "dither" {
		t.Fatalf("default_mode = %q", got)
	}
}

func TestSaveConfigFailureKeepsLastGood(t *testing.T) {
	api := newFakeAPI()
	c := newTestController(t, api)
	if err := c.LoadConfig(context.Background()); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	before := c.State().Config

	api.saveErr = fmt.Errorf("validation failed")
	err := c.SaveConfig(context.Background(), func(cfg *printcfg.Config) {
		cfg.Printing.DefaultMode = "outline"
	})
	if err == nil {
		t.Fatal("expected save error")
	}
	if got := c.State().Config.Printing.DefaultMode; got != before.Printing.DefaultMode {
		t.Fatalf("failed save mutated local config: %q", got)
	}
}

func TestLinkDegradesToOffline(t *testing.T) {
	c := newTestController(t, newFakeAPI())

	c.MarkLive()
	if c.State().Link != LinkLive {
		t.Fatal("expected live")
	}

	c.MarkReconnecting()
	if c.State().Link != LinkReconnecting {
		t.Fatal("expected reconnecting after first drop")
	}

	c.MarkReconnecting()
	c.MarkReconnecting()
	if c.State().Link != LinkOffline {
		t.Fatal("expected offline after repeated drops")
	}

	c.MarkLive()
	c.MarkReconnecting()
	if c.State().Link != LinkReconnecting {
		t.Fatal("successful event should reset the drop counter")
	}
}

func TestDisplayPrefsMutuallyExclusive(t *testing.T) {
	c := newTestController(t, newFakeAPI())

	if err := c.SetDark(true); err != nil {
		t.Fatalf("SetDark: %v", err)
	}
	if err := c.SetEInk(true); err != nil {
		t.Fatalf("SetEInk: %v", err)
	}
	st := c.State()
	if st.Prefs.Dark {
		t.Fatal("dark still set after enabling e-ink")
	}
	if !st.Prefs.EInk {
		t.Fatal("e-ink not set")
	}

	if err := c.SetDark(true); err != nil {
		t.Fatalf("SetDark: %v", err)
	}
	st = c.State()
	if st.Prefs.EInk {
		t.Fatal("e-ink still set after enabling dark")
	}
}
