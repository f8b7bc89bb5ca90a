package tiles

import (
	"fmt"
	"iter"
	"math"

	"github.com/dark-geo/tile-downloader/geo"
)

// ForPoint maps a point in the native CRS of a tile grid to the address of
// the cell containing it at the given zoom. Cells are half-open [min,max)
// intervals, so a point exactly on a boundary belongs to the next cell;
// points on the far edge of the extent clamp into the last one.
func ForPoint(x, y float64, zoom int, crs geo.CRS) (Address, error) {
	if zoom < ZoomMin || zoom > ZoomMax {
		return Address{}, ErrZoomRange
	}
	ext, err := geo.Extent(crs)
	if err != nil {
		return Address{}, err
	}
	n := 1 << zoom
	fx := (x - ext.MinX) / ext.Width() * float64(n)
	fy := (ext.MaxY - y) / ext.Height() * float64(n)
	col := clamp(int(math.Floor(fx)), 0, n-1)
	row := clamp(int(math.Floor(fy)), 0, n-1)
	return Address{Z: zoom, X: col, Y: row}, nil
}

// Bounds returns the native-CRS envelope of one tile.
func Bounds(a Address, crs geo.CRS) (geo.BBox, error) {
	if !a.Valid() {
		return geo.BBox{}, fmt.Errorf("%w: %v", ErrBadAddress, a)
	}
	ext, err := geo.Extent(crs)
	if err != nil {
		return geo.BBox{}, err
	}
	n := float64(int(1) << a.Z)
	w := ext.Width() / n
	h := ext.Height() / n
	return geo.BBox{
		MinX: ext.MinX + float64(a.X)*w,
		MaxX: ext.MinX + float64(a.X+1)*w,
		MaxY: ext.MaxY - float64(a.Y)*h,
		MinY: ext.MaxY - float64(a.Y+1)*h,
		CRS:  crs,
	}, nil
}

// Rect is an inclusive rectangle of tile addresses at one zoom level,
// in canonical XYZ row numbering (MinY is the northernmost row).
type Rect struct {
	Z                      int
	MinX, MinY, MaxX, MaxY int
}

// Covering computes the tile rectangle enclosing a bounding box given in the
// grid's native CRS.
func Covering(bbox geo.BBox, zoom int) (Rect, error) {
	if bbox.MinX > bbox.MaxX || bbox.MinY > bbox.MaxY {
		return Rect{}, geo.ErrInvalidBounds
	}
	a, err := ForPoint(bbox.MinX, bbox.MinY, zoom, bbox.CRS)
	if err != nil {
		return Rect{}, err
	}
	b, err := ForPoint(bbox.MaxX, bbox.MaxY, zoom, bbox.CRS)
	if err != nil {
		return Rect{}, err
	}
	return Rect{
		Z:    zoom,
		MinX: min(a.X, b.X), MaxX: max(a.X, b.X),
		MinY: min(a.Y, b.Y), MaxY: max(a.Y, b.Y),
	}, nil
}

// Count returns the number of tiles in the rectangle.
func (r Rect) Count() int {
	return (r.MaxX - r.MinX + 1) * (r.MaxY - r.MinY + 1)
}

// Corners returns the four corner addresses: NW, NE, SW, SE.
func (r Rect) Corners() [4]Address {
	return [4]Address{
		{Z: r.Z, X: r.MinX, Y: r.MinY},
		{Z: r.Z, X: r.MaxX, Y: r.MinY},
		{Z: r.Z, X: r.MinX, Y: r.MaxY},
		{Z: r.Z, X: r.MaxX, Y: r.MaxY},
	}
}

// All iterates the rectangle in row-major order, north to south and west to
// east.
func (r Rect) All() iter.Seq[Address] {
	return func(yield func(Address) bool) {
		for y := r.MinY; y <= r.MaxY; y++ {
			for x := r.MinX; x <= r.MaxX; x++ {
				if !yield(Address{Z: r.Z, X: x, Y: y}) {
					return
				}
			}
		}
	}
}

// Bounds returns the native-CRS envelope covered by the whole rectangle,
// the union of its corner tiles' bounds.
func (r Rect) Bounds(crs geo.CRS) (geo.BBox, error) {
	corners := r.Corners()
	out, err := Bounds(corners[0], crs)
	if err != nil {
		return geo.BBox{}, err
	}
	for _, c := range corners[1:] {
		b, err := Bounds(c, crs)
		if err != nil {
			return geo.BBox{}, err
		}
		out = out.Union(b)
	}
	return out, nil
}

// Resolution returns metres per pixel at the equator for a web mercator grid
// with the given tile size.
func Resolution(zoom, tileSize int) float64 {
	return 2 * math.Pi * 6378137 / float64(tileSize) / math.Pow(2, float64(zoom))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
