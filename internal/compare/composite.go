package compare

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	placeholder = color.RGBA{R: 40, G: 40, B: 48, A: 255}
	divider     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Composite renders the current view at width×height: the after image scaled
// to fill, the before image clipped to the left split percent, and a divider
// line. An image that failed to load is drawn as a flat placeholder.
func (w *Widget) Composite(width, height int) *image.RGBA {
	w.mu.Lock()
	before, after, split := w.before, w.after, w.split
	w.mu.Unlock()

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	fill(dst, dst.Bounds(), after)

	cut := int(float64(width) * split / 100)
	if cut > 0 {
		layer := image.NewRGBA(dst.Bounds())
		fill(layer, layer.Bounds(), before)
		clip := image.Rect(0, 0, cut, height)
		draw.Draw(dst, clip, layer, clip.Min, draw.Src)
	}

	line := image.Rect(max(cut-1, 0), 0, min(cut+1, width), height)
	draw.Draw(dst, line, image.NewUniform(divider), image.Point{}, draw.Src)
	return dst
}

func fill(dst *image.RGBA, r image.Rectangle, src image.Image) {
	if src == nil {
		draw.Draw(dst, r, image.NewUniform(placeholder), image.Point{}, draw.Src)
		return
	}
	draw.ApproxBiLinear.Scale(dst, r, src, src.Bounds(), draw.Src, nil)
}

// Fetcher resolves an image reference into encoded bytes.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// FetchLoader decodes fetched bytes into images.
type FetchLoader struct {
	Fetcher Fetcher
}

func (l FetchLoader) LoadImage(ctx context.Context, ref string) (image.Image, error) {
	data, err := l.Fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", ref, err)
	}
	return img, nil
}
