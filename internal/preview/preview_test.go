package preview

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"github.com/printerpal/printerpal/internal/cups"
)

// popplerStub stands in for pdfinfo/pdftoppm. For pdftoppm it writes a
// real PNG at the output prefix so the renderer can pick it up.
type popplerStub struct {
	pages    int
	rendered []string
}

func (s *popplerStub) Run(_ context.Context, _ time.Duration, argv ...string) (cups.CmdResult, error) {
	switch argv[0] {
	case "pdfinfo":
		return cups.CmdResult{
			Argv:   argv,
			Stdout: "Title: doc\nPages:          " + strconv.Itoa(s.pages) + "\nPage size: 612 x 792 pts\n",
		}, nil
	case "pdftoppm":
		outPrefix := argv[len(argv)-1]
		s.rendered = append(s.rendered, strings.Join(argv, " "))
		img := imaging.New(120, 160, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
		if err := imaging.Save(img, outPrefix+".png"); err != nil {
			return cups.CmdResult{}, err
		}
		return cups.CmdResult{Argv: argv}, nil
	}
	return cups.CmdResult{}, errors.New("unexpected command: " + argv[0])
}

func testImage(c color.NRGBA) image.Image {
	return imaging.New(100, 80, c)
}

func TestApplyModeGrayscale(t *testing.T) {
	out, err := ApplyMode(testImage(color.NRGBA{R: 220, G: 40, B: 90, A: 255}), ModeGrayscale, 180)
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, _ := out.At(10, 10).RGBA()
	if r != g || g != b {
		t.Errorf("expected neutral gray, got r=%d g=%d b=%d", r, g, b)
	}
}

func TestApplyModeBW(t *testing.T) {
	tests := []struct {
		name      string
		fill      color.NRGBA
		threshold uint8
		want      uint8
	}{
		{"above threshold goes white", color.NRGBA{R: 200, G: 200, B: 200, A: 255}, 180, 255},
		{"below threshold goes black", color.NRGBA{R: 100, G: 100, B: 100, A: 255}, 180, 0},
		{"at threshold goes white", color.NRGBA{R: 180, G: 180, B: 180, A: 255}, 180, 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ApplyMode(testImage(tt.fill), ModeBW, tt.threshold)
			if err != nil {
				t.Fatal(err)
			}
			r, _, _, _ := out.At(5, 5).RGBA()
			if uint8(r>>8) != tt.want {
				t.Errorf("got %d, want %d", uint8(r>>8), tt.want)
			}
		})
	}
}

func TestApplyModeDitherIsBilevel(t *testing.T) {
	out, err := ApplyMode(testImage(color.NRGBA{R: 128, G: 128, B: 128, A: 255}), ModeDither, 180)
	if err != nil {
		t.Fatal(err)
	}
	b := out.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := out.At(x, y).RGBA()
			v := uint8(r >> 8)
			if (v != 0 && v != 255) || r != g || g != bl {
				t.Fatalf("pixel (%d,%d) not pure black/white: %d", x, y, v)
			}
		}
	}
}

func TestApplyModeOutlineIsBilevel(t *testing.T) {
	// Half dark, half light so there is an edge to find.
	img := imaging.New(60, 60, color.NRGBA{R: 240, G: 240, B: 240, A: 255})
	dark := imaging.New(30, 60, color.NRGBA{R: 20, G: 20, B: 20, A: 255})
	img = imaging.Paste(img, dark, image.Pt(0, 0))

	out, err := ApplyMode(img, ModeOutline, 180)
	if err != nil {
		t.Fatal(err)
	}
	b := out.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, _, _, _ := out.At(x, y).RGBA()
			v := uint8(r >> 8)
			if v != 0 && v != 255 {
				t.Fatalf("pixel (%d,%d) not pure black/white: %d", x, y, v)
			}
		}
	}
}

func TestApplyModeRejectsUnknown(t *testing.T) {
	_, err := ApplyMode(testImage(color.NRGBA{A: 255}), "sepia", 180)
	var ierr *InputError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected InputError, got %v", err)
	}
}

func TestRenderWidthBounds(t *testing.T) {
	r := NewRenderer(&popplerStub{pages: 1})
	for _, w := range []int{0, 63, 2001} {
		_, err := r.Render(context.Background(), "x.pdf", Options{Mode: ModeRaw, Page: 1, Width: w, PreviewDPI: 150})
		var ierr *InputError
		if !errors.As(err, &ierr) {
			t.Errorf("width %d: expected InputError, got %v", w, err)
		}
	}
}

func TestRenderImageDownscalesOnly(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	if err := imaging.Save(imaging.New(400, 300, color.NRGBA{R: 10, G: 120, B: 200, A: 255}), src); err != nil {
		t.Fatal(err)
	}

	r := NewRenderer(&popplerStub{})

	// Downscale to requested width.
	data, err := r.Render(context.Background(), src, Options{Mode: ModeGrayscale, Page: 1, Width: 200, PreviewDPI: 150, Threshold: 180})
	if err != nil {
		t.Fatal(err)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Bounds().Dx(); got != 200 {
		t.Errorf("expected width 200, got %d", got)
	}

	// Never upscale past the source width.
	data, err = r.Render(context.Background(), src, Options{Mode: ModeRaw, Page: 1, Width: 1800, PreviewDPI: 150})
	if err != nil {
		t.Fatal(err)
	}
	img, err = imaging.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Bounds().Dx(); got != 400 {
		t.Errorf("expected source width 400, got %d", got)
	}
}

func TestRenderRejectsUnknownExtension(t *testing.T) {
	r := NewRenderer(&popplerStub{})
	_, err := r.Render(context.Background(), "notes.txt", Options{Mode: ModeRaw, Page: 1, Width: 800, PreviewDPI: 150})
	var ierr *InputError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected InputError, got %v", err)
	}
}

func TestPageCount(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(pdf, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRenderer(&popplerStub{pages: 7})
	n, err := r.PageCount(context.Background(), pdf)
	if err != nil {
		t.Fatal(err)
	}
	if n != 7 {
		t.Errorf("expected 7 pages, got %d", n)
	}
}

func TestPageCountMissingFile(t *testing.T) {
	r := NewRenderer(&popplerStub{pages: 1})
	if _, err := r.PageCount(context.Background(), "/nonexistent/doc.pdf"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRenderPDFPageUsesPreviewDPI(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(pdf, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	stub := &popplerStub{pages: 1}
	r := NewRenderer(stub)
	if _, err := r.Render(context.Background(), pdf, Options{Mode: ModeGrayscale, Page: 2, Width: 800, PreviewDPI: 150, Threshold: 180}); err != nil {
		t.Fatal(err)
	}
	if len(stub.rendered) != 1 {
		t.Fatalf("expected one pdftoppm invocation, got %d", len(stub.rendered))
	}
	argv := stub.rendered[0]
	if !strings.Contains(argv, "-r 150") {
		t.Errorf("expected -r 150 in %q", argv)
	}
	if !strings.Contains(argv, "-f 2 -l 2") {
		t.Errorf("expected page range 2..2 in %q", argv)
	}
}

func TestPrepareForPrintRawPassthrough(t *testing.T) {
	r := NewRenderer(&popplerStub{pages: 3})
	res, err := r.PrepareForPrint(context.Background(), mustTempPDF(t), PrepareOptions{Mode: ModeRaw, PrintDPI: 200, MaxPDFPages: 30, Threshold: 180})
	if err != nil {
		t.Fatal(err)
	}
	if res.Prepared {
		t.Error("raw mode must not prepare a new file")
	}
}

func TestPrepareForPrintPDF(t *testing.T) {
	stub := &popplerStub{pages: 3}
	r := NewRenderer(stub)
	res, err := r.PrepareForPrint(context.Background(), mustTempPDF(t), PrepareOptions{Mode: ModeGrayscale, PrintDPI: 200, MaxPDFPages: 30, Threshold: 180})
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(res.Path)

	if !res.Prepared || res.Pages != 3 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(stub.rendered) != 3 {
		t.Errorf("expected 3 rasterized pages, got %d", len(stub.rendered))
	}
	data, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "%PDF-1.4") {
		t.Error("output is not a PDF")
	}
	if !strings.Contains(string(data), "/DCTDecode") {
		t.Error("pages must be embedded as DCTDecode streams")
	}
}

func TestPrepareForPrintPageLimit(t *testing.T) {
	r := NewRenderer(&popplerStub{pages: 40})
	_, err := r.PrepareForPrint(context.Background(), mustTempPDF(t), PrepareOptions{Mode: ModeGrayscale, PrintDPI: 200, MaxPDFPages: 30, Threshold: 180})
	var ierr *InputError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected InputError, got %v", err)
	}
}

func TestPrepareForPrintImage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "scan.png")
	if err := imaging.Save(imaging.New(100, 100, color.NRGBA{R: 90, G: 90, B: 90, A: 255}), src); err != nil {
		t.Fatal(err)
	}

	r := NewRenderer(&popplerStub{})
	res, err := r.PrepareForPrint(context.Background(), src, PrepareOptions{Mode: ModeBW, PrintDPI: 200, MaxPDFPages: 30, Threshold: 180})
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(res.Path)

	if !res.Prepared || res.Pages != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func mustTempPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
