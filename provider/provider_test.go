package provider

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dark-geo/tile-downloader/geo"
	"github.com/dark-geo/tile-downloader/tiles"
)

func TestLookupIsCaseInsensitive(t *testing.T) {
	p, err := Lookup("googlesatellite")
	require.NoError(t, err)
	assert.Equal(t, "GoogleSatellite", p.Name)
	assert.Equal(t, geo.EPSG3857, p.CRS)
	assert.Equal(t, 256, p.TileSize)
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("nope")
	var upe *UnknownProviderError
	require.ErrorAs(t, err, &upe)
	assert.Equal(t, "nope", upe.Name)
}

func TestNamesListsRegisteredProviders(t *testing.T) {
	names := Names()
	assert.True(t, sort.StringsAreSorted(names))
	assert.Contains(t, names, "openstreetmap")
	assert.Contains(t, names, "googlesatellite")
	assert.Contains(t, names, "bingroad")
}

func TestGoogleURLs(t *testing.T) {
	p, err := Lookup("GoogleRoad")
	require.NoError(t, err)

	urls := p.URLs(tiles.Address{Z: 14, X: 9571, Y: 4699})
	require.Len(t, urls, 4)
	assert.Equal(t, "http://mt0.google.com/vt/lyrs=m&x=9571&y=4699&z=14", urls[0])
	assert.Equal(t, "http://mt3.google.com/vt/lyrs=m&x=9571&y=4699&z=14", urls[3])
}

func TestBingURLsUseQuadkey(t *testing.T) {
	p, err := Lookup("BingSatellite")
	require.NoError(t, err)

	a := tiles.Address{Z: 3, X: 3, Y: 5}
	urls := p.URLs(a)
	require.Len(t, urls, 4)
	assert.Contains(t, urls[0], "/tiles/a213.jpeg")
	assert.Contains(t, urls[2], "http://a2.ortho")
}

func TestCustomTMSFlipsRow(t *testing.T) {
	p := Custom("local", "http://localhost/{z}/{x}/{y}.png", SchemeTMS, geo.EPSG3857, 0)
	urls := p.URLs(tiles.Address{Z: 2, X: 1, Y: 0})
	require.Len(t, urls, 1)
	// TMS row = 2^2 - 1 - 0
	assert.Equal(t, "http://localhost/2/1/3.png", urls[0])
}

func TestValidatorRejectsPlaceholderAndEmpty(t *testing.T) {
	p := Custom("x", "http://localhost/{z}/{x}/{y}", SchemeXYZ, geo.EPSG3857, 0)
	assert.False(t, p.Valid(nil))
	assert.True(t, p.Valid([]byte{1, 2, 3}))

	placeholder := []byte("no imagery here")
	p.SetPlaceholder(placeholder)
	assert.False(t, p.Valid([]byte("no imagery here")))
	assert.True(t, p.Valid([]byte("no imagery here!")))
}
