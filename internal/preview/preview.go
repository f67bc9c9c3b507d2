// Package preview renders uploaded documents to PNG for the on-screen
// preview and prepares them for submission to the print queue. PDF
// rasterization is delegated to poppler's pdfinfo and pdftoppm; images are
// decoded directly.
package preview

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/printerpal/printerpal/internal/cups"
)

const (
	MinWidth = 64
	MaxWidth = 2000

	pdfinfoTimeout  = 8 * time.Second
	pdftoppmTimeout = 25 * time.Second
)

// InputError marks a caller mistake (bad mode, out-of-range width, page
// count over the limit) as opposed to a rendering failure.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string { return e.Reason }

// Options select what Render produces.
type Options struct {
	Mode       string
	Page       int
	Width      int
	PreviewDPI int
	Threshold  uint8
}

// Renderer rasterizes documents using external poppler tools.
type Renderer struct {
	runner cups.Runner
}

// NewRenderer returns a Renderer backed by the given command runner.
func NewRenderer(runner cups.Runner) *Renderer {
	return &Renderer{runner: runner}
}

// PageCount returns the number of pages in a PDF as reported by pdfinfo.
func (r *Renderer) PageCount(ctx context.Context, path string) (int, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("pdf not found: %w", err)
	}
	res, err := r.runner.Run(ctx, pdfinfoTimeout, "pdfinfo", path)
	if err != nil {
		return 0, fmt.Errorf("pdfinfo: %w", err)
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		if !strings.HasPrefix(strings.ToLower(line), "pages:") {
			continue
		}
		_, rest, _ := strings.Cut(line, ":")
		n, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil {
			break
		}
		return n, nil
	}
	return 0, fmt.Errorf("unexpected pdfinfo output for %s", filepath.Base(path))
}

// renderPDFPage rasterizes a single 1-based page to an image at the given
// DPI via pdftoppm.
func (r *Renderer) renderPDFPage(ctx context.Context, path string, page, dpi int) (image.Image, error) {
	if page < 1 {
		return nil, &InputError{Reason: "page must be >= 1"}
	}
	td, err := os.MkdirTemp("", "printerpal-pdf-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(td)

	outPrefix := filepath.Join(td, "page")
	pageArg := strconv.Itoa(page)
	_, err = r.runner.Run(ctx, pdftoppmTimeout,
		"pdftoppm", "-png",
		"-f", pageArg, "-l", pageArg,
		"-r", strconv.Itoa(dpi),
		"-singlefile", path, outPrefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w", err)
	}

	img, err := imaging.Open(outPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm produced no readable output: %w", err)
	}
	return img, nil
}

// Render produces a PNG preview of one page of the document at path. PDFs
// are rasterized at the preview DPI; images are decoded as-is. The result
// is mode-transformed and downscaled to opts.Width (never upscaled).
func (r *Renderer) Render(ctx context.Context, path string, opts Options) ([]byte, error) {
	if opts.Width < MinWidth || opts.Width > MaxWidth {
		return nil, &InputError{Reason: fmt.Sprintf("width must be between %d and %d", MinWidth, MaxWidth)}
	}

	var img image.Image
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); {
	case ext == ".pdf":
		img, err = r.renderPDFPage(ctx, path, opts.Page, opts.PreviewDPI)
	case isImageExt(ext):
		img, err = openImage(path)
	default:
		return nil, &InputError{Reason: "preview supports PDF and common image formats"}
	}
	if err != nil {
		return nil, err
	}

	img, err = ApplyMode(img, opts.Mode, opts.Threshold)
	if err != nil {
		return nil, err
	}

	if w := img.Bounds().Dx(); w > opts.Width {
		img = imaging.Resize(img, opts.Width, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

func openImage(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open image: %w", err)
	}
	return img, nil
}

func isImageExt(ext string) bool {
	switch ext {
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff":
		return true
	}
	return false
}
