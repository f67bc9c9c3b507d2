package preview

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Render modes. Raw skips all processing and, for printing, sends the
// original file untouched.
const (
	ModeRaw       = "raw"
	ModeGrayscale = "grayscale"
	ModeBW        = "bw"
	ModeDither    = "dither"
	ModeOutline   = "outline"
)

// ApplyMode transforms img according to the render mode. Threshold is the
// black/white cut point for the bw and outline modes (1..254).
func ApplyMode(img image.Image, mode string, threshold uint8) (image.Image, error) {
	switch mode {
	case ModeRaw:
		return img, nil
	case ModeGrayscale:
		return imaging.Grayscale(img), nil
	case ModeBW:
		return applyThreshold(imaging.Grayscale(img), threshold), nil
	case ModeDither:
		return ditherFloydSteinberg(imaging.Grayscale(img)), nil
	case ModeOutline:
		edges := imaging.Convolve3x3(imaging.Grayscale(img), [9]float64{
			-1, -1, -1,
			-1, 8, -1,
			-1, -1, -1,
		}, nil)
		inv := imaging.Invert(autoContrast(edges))
		return applyThreshold(inv, threshold), nil
	default:
		return nil, &InputError{Reason: "unsupported mode: " + mode}
	}
}

// applyThreshold maps every pixel at or above the threshold to white and
// everything below to black.
func applyThreshold(img *image.NRGBA, threshold uint8) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		if c.R >= threshold {
			return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
		}
		return color.NRGBA{R: 0, G: 0, B: 0, A: 255}
	})
}

// autoContrast stretches the gray range of img to span 0..255.
func autoContrast(img *image.NRGBA) *image.NRGBA {
	lo, hi := uint8(255), uint8(0)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 0; i < len(row); i += 4 {
			v := row[i]
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	if hi <= lo {
		return img
	}
	scale := 255.0 / float64(hi-lo)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		v := uint8(float64(c.R-lo) * scale)
		return color.NRGBA{R: v, G: v, B: v, A: c.A}
	})
}

// ditherFloydSteinberg reduces a grayscale image to pure black and white,
// diffusing quantization error to neighboring pixels.
func ditherFloydSteinberg(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	gray := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gray[y*w+x] = float64(img.Pix[img.PixOffset(b.Min.X+x, b.Min.Y+y)])
		}
	}

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			old := gray[y*w+x]
			var v uint8
			if old >= 128 {
				v = 255
			}
			err := old - float64(v)
			i := out.PixOffset(x, y)
			out.Pix[i] = v
			out.Pix[i+1] = v
			out.Pix[i+2] = v
			out.Pix[i+3] = 255

			if x+1 < w {
				gray[y*w+x+1] += err * 7 / 16
			}
			if y+1 < h {
				if x > 0 {
					gray[(y+1)*w+x-1] += err * 3 / 16
				}
				gray[(y+1)*w+x] += err * 5 / 16
				if x+1 < w {
					gray[(y+1)*w+x+1] += err * 1 / 16
				}
			}
		}
	}
	return out
}
