package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
)

const jpegQuality = 92

// writeImagesPDF assembles the given images into a single PDF, one image
// per page, each embedded as a DCTDecode (JPEG) stream. Page media boxes
// are sized so the raster prints at the given DPI.
func writeImagesPDF(w io.Writer, images []image.Image, dpi int) error {
	if len(images) == 0 {
		return fmt.Errorf("no pages to write")
	}
	if dpi <= 0 {
		return fmt.Errorf("dpi must be positive")
	}

	// Objects: 1 catalog, 2 pages root, then per page: page, contents,
	// image XObject.
	numObjects := 2 + 3*len(images)
	offsets := make([]int, numObjects+1)

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	writeObj := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	kids := ""
	for i := range images {
		if i > 0 {
			kids += " "
		}
		kids += fmt.Sprintf("%d 0 R", 3+3*i)
	}
	writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(images)))

	for i, img := range images {
		b := img.Bounds()
		pxW, pxH := b.Dx(), b.Dy()
		ptW := float64(pxW) * 72 / float64(dpi)
		ptH := float64(pxH) * 72 / float64(dpi)

		pageObj := 3 + 3*i
		contentObj := pageObj + 1
		imageObj := pageObj + 2

		writeObj(pageObj, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %.2f %.2f] /Resources << /XObject << /Im0 %d 0 R >> >> /Contents %d 0 R >>",
			ptW, ptH, imageObj, contentObj))

		content := fmt.Sprintf("q %.2f 0 0 %.2f 0 0 cm /Im0 Do Q", ptW, ptH)
		writeObj(contentObj, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))

		var jp bytes.Buffer
		if err := jpeg.Encode(&jp, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return fmt.Errorf("encode page %d: %w", i+1, err)
		}
		offsets[imageObj] = buf.Len()
		fmt.Fprintf(&buf,
			"%d 0 obj\n<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode /Length %d >>\nstream\n",
			imageObj, pxW, pxH, jp.Len())
		buf.Write(jp.Bytes())
		buf.WriteString("\nendstream\nendobj\n")
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", numObjects+1)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num <= numObjects; num++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[num])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", numObjects+1, xrefStart)

	_, err := w.Write(buf.Bytes())
	return err
}
