package warp

import (
	"fmt"
	"math"

	"github.com/dark-geo/tile-downloader/geo"
	"github.com/dark-geo/tile-downloader/mosaic"
)

// Resampling chooses the sampling kernel for reprojection.
type Resampling int

const (
	Nearest Resampling = iota
	Bilinear
)

const densifyPoints = 21

// DefaultTransform computes the best-fit output transform and pixel size for
// reprojecting a src-bounds raster of w by h pixels into dst. The source
// boundary is densified before projection so curved edges do not clip, the
// pixel count is roughly preserved and width/height grow to cover the
// reprojected extent.
func DefaultTransform(src geo.BBox, dst geo.CRS, w, h int) (Transform, int, int, error) {
	if w <= 0 || h <= 0 || src.Width() <= 0 || src.Height() <= 0 {
		return Transform{}, 0, 0, fmt.Errorf("%w: %dx%d over %v", ErrDegenerateArea, w, h, src)
	}
	tr, err := geo.Transform(src.CRS, dst)
	if err != nil {
		return Transform{}, 0, 0, err
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := 0; i < densifyPoints; i++ {
		f := float64(i) / float64(densifyPoints-1)
		edges := [...][2]float64{
			{src.MinX + f*src.Width(), src.MinY},
			{src.MinX + f*src.Width(), src.MaxY},
			{src.MinX, src.MinY + f*src.Height()},
			{src.MaxX, src.MinY + f*src.Height()},
		}
		for _, p := range edges {
			x, y := tr(p[0], p[1])
			minX = math.Min(minX, x)
			minY = math.Min(minY, y)
			maxX = math.Max(maxX, x)
			maxY = math.Max(maxY, y)
		}
	}

	res := math.Max((maxX-minX)/float64(w), (maxY-minY)/float64(h))
	if res <= 0 || math.IsInf(res, 0) || math.IsNaN(res) {
		return Transform{}, 0, 0, fmt.Errorf("%w: empty reprojected extent", ErrDegenerateArea)
	}
	outW := int(math.Ceil((maxX - minX) / res))
	outH := int(math.Ceil((maxY - minY) / res))
	if outW <= 0 || outH <= 0 {
		return Transform{}, 0, 0, fmt.Errorf("%w: %dx%d output", ErrDegenerateArea, outW, outH)
	}
	t := Transform{minX, res, 0, maxY, 0, -res}
	return t, outW, outH, nil
}

// Reproject warps the raster into the destination CRS by inverse mapping:
// every output pixel center is projected back into the source and sampled
// with the chosen kernel, one band at a time. If the CRS already matches, the
// raster passes through untouched.
func Reproject(r *mosaic.Raster, dst geo.CRS, method Resampling) (*mosaic.Raster, Transform, error) {
	srcT := FromBounds(r.Bounds, r.W, r.H)
	if r.Bounds.CRS == dst {
		return r, srcT, nil
	}

	dstT, outW, outH, err := DefaultTransform(r.Bounds, dst, r.W, r.H)
	if err != nil {
		return nil, Transform{}, err
	}
	back, err := geo.Transform(dst, r.Bounds.CRS)
	if err != nil {
		return nil, Transform{}, err
	}
	srcInv, err := srcT.Invert()
	if err != nil {
		return nil, Transform{}, err
	}

	outBounds := dstT.Bounds(outW, outH, dst)
	out := mosaic.NewRaster(outW, outH, r.Bands, outBounds)

	// precompute the source pixel position of every output pixel once,
	// then resample each band over the same positions
	cols := make([]float64, outW*outH)
	rows := make([]float64, outW*outH)
	for row := 0; row < outH; row++ {
		for col := 0; col < outW; col++ {
			gx, gy := dstT.Apply(float64(col)+0.5, float64(row)+0.5)
			sx, sy := back(gx, gy)
			c, rr := srcInv(sx, sy)
			cols[row*outW+col] = c - 0.5
			rows[row*outW+col] = rr - 0.5
		}
	}

	for band := 0; band < r.Bands; band++ {
		for row := 0; row < outH; row++ {
			for col := 0; col < outW; col++ {
				i := row*outW + col
				var v uint8
				switch method {
				case Bilinear:
					v = sampleBilinear(r, cols[i], rows[i], band)
				default:
					v = sampleNearest(r, cols[i], rows[i], band)
				}
				out.Set(row, col, band, v)
			}
		}
	}
	return out, dstT, nil
}

func sampleNearest(r *mosaic.Raster, col, row float64, band int) uint8 {
	c := int(math.Round(col))
	rr := int(math.Round(row))
	if c < 0 || c >= r.W || rr < 0 || rr >= r.H {
		return 0
	}
	return r.At(rr, c, band)
}

func sampleBilinear(r *mosaic.Raster, col, row float64, band int) uint8 {
	c0 := int(math.Floor(col))
	r0 := int(math.Floor(row))
	if c0 < -1 || c0 >= r.W || r0 < -1 || r0 >= r.H {
		return 0
	}
	fc := col - float64(c0)
	fr := row - float64(r0)

	at := func(rr, cc int) float64 {
		if cc < 0 {
			cc = 0
		}
		if cc >= r.W {
			cc = r.W - 1
		}
		if rr < 0 {
			rr = 0
		}
		if rr >= r.H {
			rr = r.H - 1
		}
		return float64(r.At(rr, cc, band))
	}
	top := at(r0, c0)*(1-fc) + at(r0, c0+1)*fc
	bot := at(r0+1, c0)*(1-fc) + at(r0+1, c0+1)*fc
	v := top*(1-fr) + bot*fr
	return uint8(math.Round(math.Max(0, math.Min(255, v))))
}
