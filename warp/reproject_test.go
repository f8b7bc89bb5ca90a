package warp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dark-geo/tile-downloader/geo"
	"github.com/dark-geo/tile-downloader/mosaic"
)

func uniformRaster(bounds geo.BBox, w, h int, v uint8) *mosaic.Raster {
	r := mosaic.NewRaster(w, h, 3, bounds)
	for i := range r.Pix {
		r.Pix[i] = v
	}
	return r
}

func TestReprojectSameCRSPassesThrough(t *testing.T) {
	b := mustBBox(t, 0, 0, 1000, 500, geo.EPSG3857)
	r := uniformRaster(b, 100, 50, 42)

	out, tr, err := Reproject(r, geo.EPSG3857, Nearest)
	require.NoError(t, err)
	assert.Same(t, r, out, "identity path returns the original raster")
	assert.Equal(t, FromBounds(b, 100, 50), tr)
}

func TestDefaultTransformPreservesPixelCount(t *testing.T) {
	// one degree square near the equator, mercator distortion is minimal
	src := mustBBox(t, 10, 0, 11, 1, geo.EPSG4326)
	tr, w, h, err := DefaultTransform(src, geo.EPSG3857, 256, 256)
	require.NoError(t, err)

	assert.InDelta(t, 256, w, 2)
	assert.InDelta(t, 256, h, 2)
	assert.Equal(t, tr.PixelWidth(), tr.PixelHeight(), "square pixels")
	assert.Negative(t, tr[5], "north-up output")

	// output origin sits at the reprojected north-west corner
	toMerc, err := geo.Transform(geo.EPSG4326, geo.EPSG3857)
	require.NoError(t, err)
	wantX, wantY := toMerc(10, 1)
	assert.InDelta(t, wantX, tr[0], 1e-6)
	assert.InDelta(t, wantY, tr[3], 1e-6)
}

func TestDefaultTransformDegenerate(t *testing.T) {
	src := mustBBox(t, 10, 0, 11, 1, geo.EPSG4326)
	_, _, _, err := DefaultTransform(src, geo.EPSG3857, 0, 256)
	assert.ErrorIs(t, err, ErrDegenerateArea)
}

func TestReprojectUniformStaysUniform(t *testing.T) {
	src := mustBBox(t, 30.0, 59.0, 30.5, 59.5, geo.EPSG4326)
	r := uniformRaster(src, 64, 64, 200)

	out, tr, err := Reproject(r, geo.EPSG3857, Bilinear)
	require.NoError(t, err)
	assert.Equal(t, geo.EPSG3857, out.Bounds.CRS)
	assert.Positive(t, out.W)
	assert.Positive(t, out.H)
	assert.Equal(t, tr.Bounds(out.W, out.H, geo.EPSG3857), out.Bounds)

	// interior pixels keep the uniform value under any kernel
	for row := 1; row < out.H-1; row++ {
		for col := 1; col < out.W-1; col++ {
			for band := 0; band < 3; band++ {
				require.Equal(t, uint8(200), out.At(row, col, band),
					"pixel (%d,%d) band %d", row, col, band)
			}
		}
	}
}

func TestReprojectQuadrantsKeepOrientation(t *testing.T) {
	// white north-west quadrant on black must stay north-west after warping
	src := mustBBox(t, 10, 40, 12, 42, geo.EPSG4326)
	r := mosaic.NewRaster(64, 64, 3, src)
	for row := 0; row < 32; row++ {
		for col := 0; col < 32; col++ {
			for band := 0; band < 3; band++ {
				r.Set(row, col, band, 255)
			}
		}
	}

	out, _, err := Reproject(r, geo.EPSG3857, Nearest)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), out.At(out.H/4, out.W/4, 0), "north-west stays bright")
	assert.Equal(t, uint8(0), out.At(3*out.H/4, 3*out.W/4, 0), "south-east stays dark")
}
