package preview

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
)

// PrepareOptions control print-file preparation.
type PrepareOptions struct {
	Mode        string
	PrintDPI    int
	MaxPDFPages int
	Threshold   uint8
}

// PrepareResult describes what PrepareForPrint produced.
type PrepareResult struct {
	// Path is the file to hand to lp. When Prepared is true it is a
	// temporary file the caller must delete after submission.
	Path     string
	Prepared bool
	Pages    int
}

// PrepareForPrint converts a document into a print-ready PDF with the
// render mode applied. Raw mode returns the source path untouched. PDFs
// are rasterized page by page at the print DPI; images become a
// single-page PDF so drivers see a consistent input.
func (r *Renderer) PrepareForPrint(ctx context.Context, srcPath string, opts PrepareOptions) (PrepareResult, error) {
	if _, err := os.Stat(srcPath); err != nil {
		return PrepareResult{}, fmt.Errorf("source file not found: %w", err)
	}

	if opts.Mode == ModeRaw {
		return PrepareResult{Path: srcPath}, nil
	}

	ext := strings.ToLower(filepath.Ext(srcPath))
	switch {
	case ext == ".pdf":
		pages, err := r.PageCount(ctx, srcPath)
		if err != nil {
			return PrepareResult{}, err
		}
		if pages > opts.MaxPDFPages {
			return PrepareResult{}, &InputError{Reason: fmt.Sprintf(
				"PDF has %d pages, which exceeds the processing limit (%d); raise printing.max_pdf_pages_process or use raw mode",
				pages, opts.MaxPDFPages)}
		}

		imgs := make([]image.Image, 0, pages)
		for p := 1; p <= pages; p++ {
			img, err := r.renderPDFPage(ctx, srcPath, p, opts.PrintDPI)
			if err != nil {
				return PrepareResult{}, fmt.Errorf("page %d: %w", p, err)
			}
			img, err = ApplyMode(img, opts.Mode, opts.Threshold)
			if err != nil {
				return PrepareResult{}, err
			}
			imgs = append(imgs, img)
		}
		path, err := writeTempPDF(imgs, opts.PrintDPI)
		if err != nil {
			return PrepareResult{}, err
		}
		return PrepareResult{Path: path, Prepared: true, Pages: pages}, nil

	case isImageExt(ext):
		img, err := openImage(srcPath)
		if err != nil {
			return PrepareResult{}, err
		}
		img, err = ApplyMode(img, opts.Mode, opts.Threshold)
		if err != nil {
			return PrepareResult{}, err
		}
		path, err := writeTempPDF([]image.Image{img}, opts.PrintDPI)
		if err != nil {
			return PrepareResult{}, err
		}
		return PrepareResult{Path: path, Prepared: true, Pages: 1}, nil

	default:
		return PrepareResult{}, &InputError{Reason: "unsupported file type for printing"}
	}
}

func writeTempPDF(imgs []image.Image, dpi int) (string, error) {
	f, err := os.CreateTemp("", "printerpal-print-*.pdf")
	if err != nil {
		return "", err
	}
	if err := writeImagesPDF(f, imgs, dpi); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("assemble print pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
