// Conversions between percent regions of the labeling UI and pixel rectangles
package region

import (
	"image"
	"math"

	"github.com/ds124wfegd/ocr-ml-backend/internal/entity"
)

// ToCrop maps a percent region onto a w x h image. Pixel values are truncated
// and the result is clipped to the image; ok is false for an empty rectangle.
func ToCrop(r entity.Region, w, h int) (image.Rectangle, bool) {
	left := int(r.X / 100.0 * float64(w))
	top := int(r.Y / 100.0 * float64(h))
	cw := int(r.Width / 100.0 * float64(w))
	ch := int(r.Height / 100.0 * float64(h))

	right := min(left+cw, w)
	bottom := min(top+ch, h)
	left = max(left, 0)
	top = max(top, 0)

	if right <= left || bottom <= top {
		return image.Rectangle{}, false
	}
	return image.Rect(left, top, right, bottom), true
}

// FromPolygon returns the percent bounding box of a recognized polygon.
func FromPolygon(points []image.Point, w, h int) entity.Region {
	if len(points) == 0 || w <= 0 || h <= 0 {
		return entity.Region{}
	}
	minX, minY := math.MaxInt, math.MaxInt
	maxX, maxY := math.MinInt, math.MinInt
	for _, p := range points {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}

	x := float64(minX) / float64(w) * 100
	y := float64(minY) / float64(h) * 100
	return entity.Region{
		X:      x,
		Y:      y,
		Width:  float64(maxX)/float64(w)*100 - x,
		Height: float64(maxY)/float64(h)*100 - y,
	}
}

// Quad returns the corner points of a rectangle, clockwise from the top-left.
func Quad(r image.Rectangle) [4]image.Point {
	return [4]image.Point{
		{X: r.Min.X, Y: r.Min.Y},
		{X: r.Max.X, Y: r.Min.Y},
		{X: r.Max.X, Y: r.Max.Y},
		{X: r.Min.X, Y: r.Max.Y},
	}
}
