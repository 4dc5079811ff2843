package analyzer

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"warden/internal/config"
	"warden/internal/services"
)

// preprocessOptions tune the OCR preparation of each region.
type preprocessOptions struct {
	Width     int
	Contrast  float64
	Sharpen   float64
	Threshold uint8
}

func preprocessFromConfig(cfg config.Analyzer) preprocessOptions {
	return preprocessOptions{
		Width:     cfg.ResizeWidth,
		Contrast:  cfg.Contrast,
		Sharpen:   cfg.Sharpen,
		Threshold: uint8(cfg.Threshold),
	}
}

// regionRect maps a fractional region onto pixel bounds of b. Results are
// floored like the capture layouts were measured, and never empty.
func regionRect(b image.Rectangle, r config.Region) image.Rectangle {
	w, h := float64(b.Dx()), float64(b.Dy())
	x0 := b.Min.X + int(math.Floor(w*r.X))
	y0 := b.Min.Y + int(math.Floor(h*r.Y))
	x1 := x0 + max(int(math.Floor(w*r.Width)), 1)
	y1 := y0 + max(int(math.Floor(h*r.Height)), 1)
	return image.Rect(x0, y0, x1, y1).Intersect(b)
}

func cropRegion(img image.Image, r config.Region) *image.NRGBA {
	return imaging.Crop(img, regionRect(img.Bounds(), r))
}

// preprocess resizes, grays, stretches, contrasts, sharpens and binarizes a
// region so low-resolution photographed text survives recognition. ctx is
// checked between stages; a single stage always runs to completion.
func preprocess(ctx context.Context, img image.Image, opts preprocessOptions) (*image.NRGBA, error) {
	stages := []func(*image.NRGBA) *image.NRGBA{
		func(in *image.NRGBA) *image.NRGBA {
			if opts.Width > 0 && in.Bounds().Dx() != opts.Width {
				return imaging.Resize(in, opts.Width, 0, imaging.Lanczos)
			}
			return in
		},
		func(in *image.NRGBA) *image.NRGBA { return imaging.Grayscale(in) },
		normalize,
		func(in *image.NRGBA) *image.NRGBA {
			if opts.Contrast != 0 {
				return imaging.AdjustContrast(in, opts.Contrast)
			}
			return in
		},
		func(in *image.NRGBA) *image.NRGBA {
			if opts.Sharpen > 0 {
				return imaging.Sharpen(in, opts.Sharpen)
			}
			return in
		},
		func(in *image.NRGBA) *image.NRGBA { return threshold(in, opts.Threshold) },
	}
	out := imaging.Clone(img)
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, services.Wrap(services.ErrTimeout, "analyzer", "preprocess", "cancelled", err)
		}
		out = stage(out)
	}
	return out, nil
}

// normalize stretches the gray range of a grayscale image to 0..255.
func normalize(img *image.NRGBA) *image.NRGBA {
	lo, hi := uint8(255), uint8(0)
	for i := 0; i < len(img.Pix); i += 4 {
		v := img.Pix[i]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi <= lo {
		return img
	}
	scale := 255.0 / float64(hi-lo)
	var lut [256]uint8
	for v := int(lo); v <= int(hi); v++ {
		lut[v] = uint8(math.Round(float64(v-int(lo)) * scale))
	}
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: lut[c.R], G: lut[c.G], B: lut[c.B], A: c.A}
	})
}

// threshold maps pixels at or above level to white and the rest to black.
func threshold(img *image.NRGBA, level uint8) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		if c.R >= level {
			return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
		}
		return color.NRGBA{A: 255}
	})
}

// toGray converts img to 8-bit luminance with imaging's weights.
func toGray(img image.Image) *image.Gray {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := gray.Pix[y*gray.Stride : y*gray.Stride+b.Dx()*4]
		dst := out.Pix[y*out.Stride : y*out.Stride+b.Dx()]
		for x := range dst {
			dst[x] = src[x*4]
		}
	}
	return out
}
