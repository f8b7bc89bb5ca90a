package warp

import (
	"fmt"
	"math"

	"github.com/dark-geo/tile-downloader/geo"
	"github.com/dark-geo/tile-downloader/mosaic"
)

// Crop cuts the minimal pixel window of r fully covering the requested
// rectangle and returns the tightened raster with its updated transform.
// Pixels are copied unchanged, never resampled. The window must be given in
// the raster's CRS.
func Crop(r *mosaic.Raster, t Transform, window geo.BBox) (*mosaic.Raster, Transform, error) {
	if window.CRS != r.Bounds.CRS {
		return nil, Transform{}, fmt.Errorf("tiledl: crop window CRS %s does not match raster CRS %s",
			window.CRS, r.Bounds.CRS)
	}
	if window.Width() <= 0 || window.Height() <= 0 {
		return nil, Transform{}, fmt.Errorf("%w: crop window %v", ErrDegenerateArea, window)
	}
	inv, err := t.Invert()
	if err != nil {
		return nil, Transform{}, err
	}

	// pixel window of the rectangle, expanded outward to whole pixels
	c0, r0 := inv(window.MinX, window.MaxY)
	c1, r1 := inv(window.MaxX, window.MinY)
	col0 := int(math.Floor(math.Min(c0, c1)))
	row0 := int(math.Floor(math.Min(r0, r1)))
	col1 := int(math.Ceil(math.Max(c0, c1)))
	row1 := int(math.Ceil(math.Max(r0, r1)))

	if col1 <= 0 || row1 <= 0 || col0 >= r.W || row0 >= r.H {
		return nil, Transform{}, fmt.Errorf("%w: window %v", ErrEmptyResult, window)
	}
	col0 = max(col0, 0)
	row0 = max(row0, 0)
	col1 = min(col1, r.W)
	row1 = min(row1, r.H)

	w := col1 - col0
	h := row1 - row0

	originX, originY := t.Apply(float64(col0), float64(row0))
	outT := Transform{originX, t[1], t[2], originY, t[4], t[5]}
	out := mosaic.NewRaster(w, h, r.Bands, outT.Bounds(w, h, r.Bounds.CRS))

	rowBytes := w * r.Bands
	for row := 0; row < h; row++ {
		srcOff := ((row0+row)*r.W + col0) * r.Bands
		copy(out.Pix[row*rowBytes:(row+1)*rowBytes], r.Pix[srcOff:srcOff+rowBytes])
	}
	return out, outT, nil
}
