package integrations

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// PageOptions controls how pages are re-encoded for a reading device
type PageOptions struct {
	MaxWidth  int
	MaxHeight int
	Quality   int // JPEG quality (1-100)
	Grayscale bool
}

// Profiles are page settings for common e-readers
var Profiles = map[string]PageOptions{
	"kindle":            {MaxWidth: 600, MaxHeight: 800, Quality: 85, Grayscale: true},
	"kindle-paperwhite": {MaxWidth: 1072, MaxHeight: 1448, Quality: 90, Grayscale: true},
	"kindle-oasis":      {MaxWidth: 1264, MaxHeight: 1680, Quality: 90, Grayscale: true},
	"kobo-clara":        {MaxWidth: 1072, MaxHeight: 1448, Quality: 90, Grayscale: true},
	"tablet":            {MaxWidth: 1536, MaxHeight: 2048, Quality: 90},
}

// ImageInfo is what a page header declares
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

// DecodeImageHeader reads only the image header. Pages whose header does not decode are
// truncated or not images at all.
func DecodeImageHeader(r io.Reader) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return ImageInfo{}, err
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return ImageInfo{}, fmt.Errorf("empty %s image", format)
	}
	return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// OptimizePage decodes a page and re-encodes it as JPEG within opts' bounds
func OptimizePage(r io.Reader, opts PageOptions) ([]byte, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	b := img.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), opts.MaxWidth, opts.MaxHeight)

	var out draw.Image
	if opts.Grayscale {
		out = image.NewGray(image.Rect(0, 0, w, h))
	} else {
		out = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(out, out.Bounds(), img, b, draw.Src, nil)
	}

	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin scales width and height down to fit the bounds, keeping the aspect ratio.
// A zero bound means unbounded.
func fitWithin(width, height, maxWidth, maxHeight int) (int, int) {
	scale := 1.0
	if maxWidth > 0 && width > maxWidth {
		scale = float64(maxWidth) / float64(width)
	}
	if maxHeight > 0 && height > maxHeight {
		scale = min(scale, float64(maxHeight)/float64(height))
	}
	if scale == 1.0 {
		return width, height
	}
	return max(1, int(float64(width)*scale)), max(1, int(float64(height)*scale))
}
