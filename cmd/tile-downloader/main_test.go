package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	downloader "github.com/dark-geo/tile-downloader"
	"github.com/dark-geo/tile-downloader/geo"
	"github.com/dark-geo/tile-downloader/provider"
	"github.com/dark-geo/tile-downloader/store"
)

func TestApplyDelayOverridesBuiltins(t *testing.T) {
	provider.Register(provider.Custom("delay-test",
		"http://t/{z}/{x}/{y}.png", provider.SchemeXYZ, geo.EPSG3857, 0))

	applyDelay("delay-test", 250*time.Millisecond)
	p, err := provider.Lookup("delay-test")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, p.Delay)

	// a non-positive configured delay keeps the descriptor's own value
	applyDelay("delay-test", 0)
	assert.Equal(t, 250*time.Millisecond, p.Delay)

	applyDelay("no-such-provider", time.Second)
}

func TestOpenStoreResolvesBackend(t *testing.T) {
	_, err := openStore(downloader.Options{})
	assert.Error(t, err, "a seeding run needs an explicit tile cache location")

	st, err := openStore(downloader.Options{TilesDir: t.TempDir(), TilesExt: "png"})
	require.NoError(t, err)
	assert.IsType(t, &store.Files{}, st)

	st, err = openStore(downloader.Options{
		Provider: "x",
		MBTiles:  filepath.Join(t.TempDir(), "seed.mbtiles"),
		TilesExt: "png",
	})
	require.NoError(t, err)
	mb, ok := st.(*store.MBTiles)
	require.True(t, ok)
	assert.NoError(t, mb.Close())
}
