// Package warp georeferences an assembled mosaic: affine pixel/geo
// transforms, reprojection into a target CRS and pixel-exact cropping.
package warp

import (
	"errors"
	"fmt"

	"github.com/dark-geo/tile-downloader/geo"
)

var (
	// ErrDegenerateArea marks reprojection parameters yielding a zero or
	// negative output size.
	ErrDegenerateArea = errors.New("tiledl: degenerate output area")
	// ErrEmptyResult marks a crop window wholly outside the raster.
	ErrEmptyResult = errors.New("tiledl: crop window outside raster extent")
	// ErrSingular marks a non-invertible affine transform.
	ErrSingular = errors.New("tiledl: singular affine transform")
)

// Transform is a 6-parameter affine pixel-to-geo mapping in GDAL order:
//
//	x = t[0] + col*t[1] + row*t[2]
//	y = t[3] + col*t[4] + row*t[5]
//
// North-up rasters have t[2] = t[4] = 0 and t[5] < 0.
type Transform [6]float64

// FromBounds builds the north-up transform of a raster covering bounds with
// w by h pixels.
func FromBounds(b geo.BBox, w, h int) Transform {
	return Transform{
		b.MinX, b.Width() / float64(w), 0,
		b.MaxY, 0, -b.Height() / float64(h),
	}
}

// Apply maps fractional pixel coordinates to geo coordinates.
func (t Transform) Apply(col, row float64) (x, y float64) {
	x = t[0] + col*t[1] + row*t[2]
	y = t[3] + col*t[4] + row*t[5]
	return
}

// Invert returns the geo-to-pixel mapping.
func (t Transform) Invert() (func(x, y float64) (col, row float64), error) {
	det := t[1]*t[5] - t[2]*t[4]
	if det == 0 {
		return nil, ErrSingular
	}
	return func(x, y float64) (col, row float64) {
		dx, dy := x-t[0], y-t[3]
		col = (dx*t[5] - dy*t[2]) / det
		row = (dy*t[1] - dx*t[4]) / det
		return
	}, nil
}

// PixelWidth and PixelHeight return the absolute ground size of one pixel.
func (t Transform) PixelWidth() float64 { return abs(t[1]) }

func (t Transform) PixelHeight() float64 { return abs(t[5]) }

// Bounds returns the geo rectangle covered by a w by h raster under t.
// Valid for north-up transforms.
func (t Transform) Bounds(w, h int, crs geo.CRS) geo.BBox {
	x0, y0 := t.Apply(0, 0)
	x1, y1 := t.Apply(float64(w), float64(h))
	return geo.BBox{
		MinX: minf(x0, x1), MaxX: maxf(x0, x1),
		MinY: minf(y0, y1), MaxY: maxf(y0, y1),
		CRS: crs,
	}
}

func (t Transform) String() string {
	return fmt.Sprintf("|%g %g %g| |%g %g %g|", t[0], t[1], t[2], t[3], t[4], t[5])
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
