package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// ErrInvalidBounds marks a malformed bounding box. Swapped corners are
// rejected rather than silently normalized.
var ErrInvalidBounds = errors.New("tiledl: invalid bounds")

// BBox is an axis-aligned rectangle in an explicit CRS. Boxes in different
// systems are never compared or combined without going through Project.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
	CRS                    CRS
}

// NewBBox validates corner ordering and finiteness.
func NewBBox(minX, minY, maxX, maxY float64, crs CRS) (BBox, error) {
	for _, v := range [...]float64{minX, minY, maxX, maxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return BBox{}, fmt.Errorf("%w: non-finite coordinate", ErrInvalidBounds)
		}
	}
	if minX > maxX || minY > maxY {
		return BBox{}, fmt.Errorf("%w: min (%v,%v) > max (%v,%v)", ErrInvalidBounds, minX, minY, maxX, maxY)
	}
	return BBox{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY, CRS: crs}, nil
}

// Bound converts to an orb.Bound, dropping the CRS tag.
func (b BBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinX, b.MinY}, Max: orb.Point{b.MaxX, b.MaxY}}
}

func (b BBox) Width() float64  { return b.MaxX - b.MinX }
func (b BBox) Height() float64 { return b.MaxY - b.MinY }

// Union expands b to cover o. Both boxes must share a CRS.
func (b BBox) Union(o BBox) BBox {
	if b.CRS != o.CRS {
		panic("tiledl: union of bounds in different CRS")
	}
	return BBox{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
		CRS:  b.CRS,
	}
}

// Intersects reports whether the rectangles overlap.
func (b BBox) Intersects(o BBox) bool {
	if b.CRS != o.CRS {
		return false
	}
	return b.MinX < o.MaxX && o.MinX < b.MaxX && b.MinY < o.MaxY && o.MinY < b.MaxY
}

// Contains reports whether o lies fully inside b.
func (b BBox) Contains(o BBox) bool {
	if b.CRS != o.CRS {
		return false
	}
	return b.MinX <= o.MinX && b.MinY <= o.MinY && b.MaxX >= o.MaxX && b.MaxY >= o.MaxY
}

// Project transforms all four corners into another CRS and re-wraps the
// min/max of the results.
func (b BBox) Project(to CRS) (BBox, error) {
	if b.CRS == to {
		return b, nil
	}
	tr, err := Transform(b.CRS, to)
	if err != nil {
		return BBox{}, err
	}
	xs := make([]float64, 0, 4)
	ys := make([]float64, 0, 4)
	for _, c := range [...][2]float64{
		{b.MinX, b.MinY}, {b.MinX, b.MaxY}, {b.MaxX, b.MinY}, {b.MaxX, b.MaxY},
	} {
		x, y := tr(c[0], c[1])
		xs = append(xs, x)
		ys = append(ys, y)
	}
	out := BBox{MinX: xs[0], MinY: ys[0], MaxX: xs[0], MaxY: ys[0], CRS: to}
	for i := 1; i < 4; i++ {
		out.MinX = math.Min(out.MinX, xs[i])
		out.MinY = math.Min(out.MinY, ys[i])
		out.MaxX = math.Max(out.MaxX, xs[i])
		out.MaxY = math.Max(out.MaxY, ys[i])
	}
	return out, nil
}

func (b BBox) String() string {
	return fmt.Sprintf("(%g,%g,%g,%g %s)", b.MinX, b.MinY, b.MaxX, b.MaxY, b.CRS)
}
