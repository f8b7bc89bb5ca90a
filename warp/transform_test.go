package warp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dark-geo/tile-downloader/geo"
)

func mustBBox(t *testing.T, minX, minY, maxX, maxY float64, crs geo.CRS) geo.BBox {
	t.Helper()
	b, err := geo.NewBBox(minX, minY, maxX, maxY, crs)
	require.NoError(t, err)
	return b
}

func TestFromBounds(t *testing.T) {
	b := mustBBox(t, 100, 200, 300, 400, geo.EPSG3857)
	tr := FromBounds(b, 100, 50)

	assert.Equal(t, 100.0, tr[0], "origin x at west edge")
	assert.Equal(t, 400.0, tr[3], "origin y at north edge")
	assert.Equal(t, 2.0, tr[1], "pixel width")
	assert.Equal(t, -4.0, tr[5], "pixel height points south")
	assert.Zero(t, tr[2])
	assert.Zero(t, tr[4])
}

func TestApplyAndInvertRoundTrip(t *testing.T) {
	tr := Transform{100, 2, 0, 400, 0, -4}

	x, y := tr.Apply(0, 0)
	assert.Equal(t, 100.0, x)
	assert.Equal(t, 400.0, y)

	x, y = tr.Apply(10, 5)
	assert.Equal(t, 120.0, x)
	assert.Equal(t, 380.0, y)

	inv, err := tr.Invert()
	require.NoError(t, err)
	col, row := inv(120, 380)
	assert.InDelta(t, 10, col, 1e-12)
	assert.InDelta(t, 5, row, 1e-12)
}

func TestInvertSingular(t *testing.T) {
	tr := Transform{0, 0, 0, 0, 0, 0}
	_, err := tr.Invert()
	assert.ErrorIs(t, err, ErrSingular)
}

func TestTransformBounds(t *testing.T) {
	tr := Transform{100, 2, 0, 400, 0, -4}
	b := tr.Bounds(100, 50, geo.EPSG3857)
	assert.Equal(t, 100.0, b.MinX)
	assert.Equal(t, 300.0, b.MaxX)
	assert.Equal(t, 200.0, b.MinY)
	assert.Equal(t, 400.0, b.MaxY)
	assert.Equal(t, geo.EPSG3857, b.CRS)
}

func TestPixelSize(t *testing.T) {
	tr := Transform{0, 2.5, 0, 0, 0, -3.5}
	assert.Equal(t, 2.5, tr.PixelWidth())
	assert.Equal(t, 3.5, tr.PixelHeight())
}
