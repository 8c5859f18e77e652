package snapshot

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/inconsolata"
	"golang.org/x/image/math/fixed"
)

const (
	stampLayout  = "2006-01-02 15:04:05"
	stampPadding = 4
	jpegQuality  = 90
)

// Stamp decodes a JPEG, writes label in its bottom-left corner on a dark band
// and re-encodes it.
func Stamp(data []byte, label string) ([]byte, error) {
	src, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	bounds := src.Bounds()
	img := image.NewRGBA(bounds)
	draw.Draw(img, bounds, src, bounds.Min, draw.Src)

	face := inconsolata.Bold8x16
	metrics := face.Metrics()
	textWidth := font.MeasureString(face, label).Ceil()
	textHeight := metrics.Height.Ceil()

	band := image.Rect(
		bounds.Min.X,
		bounds.Max.Y-textHeight-2*stampPadding,
		min(bounds.Max.X, bounds.Min.X+textWidth+2*stampPadding),
		bounds.Max.Y,
	).Intersect(bounds)
	draw.Draw(img, band, image.NewUniform(color.RGBA{0, 0, 0, 200}), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{255, 255, 255, 255}),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(bounds.Min.X + stampPadding),
			Y: fixed.I(bounds.Max.Y-stampPadding) - metrics.Descent,
		},
	}
	d.DrawString(label)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return out.Bytes(), nil
}

// StampLabel formats the capture time the way Stamp renders it.
func StampLabel(t time.Time) string {
	return t.Format(stampLayout)
}
