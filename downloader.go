// Package downloader ties the pipeline together: tile math, fetching,
// mosaic assembly, warping and the GeoTIFF sink.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"

	"github.com/dark-geo/tile-downloader/fetch"
	"github.com/dark-geo/tile-downloader/geo"
	"github.com/dark-geo/tile-downloader/geotiff"
	"github.com/dark-geo/tile-downloader/mosaic"
	"github.com/dark-geo/tile-downloader/provider"
	"github.com/dark-geo/tile-downloader/store"
	"github.com/dark-geo/tile-downloader/tiles"
	"github.com/dark-geo/tile-downloader/warp"
)

// ErrAOIRestricted marks an attempt to build a mosaic from an AOI-filtered
// tile set. The assembler needs every tile of the covering rectangle, while
// an AOI keeps the fetcher from ever downloading the tiles outside the
// geometry; AOI runs seed a tile store only.
var ErrAOIRestricted = errors.New("tiledl: aoi-restricted tile set cannot form a gapless mosaic")

// Options configures one download/construct run. BBox may be given in any
// registered CRS; it is projected to the provider's native system for tile
// selection and to OutCRS for the final crop.
type Options struct {
	Provider string
	BBox     geo.BBox
	Zoom     int
	// TilesDir is the z/x/y file cache; empty means a temporary directory.
	// MBTiles, when set, switches the cache to a single sqlite file instead.
	TilesDir  string
	MBTiles   string
	TilesExt  string
	OutPath   string
	OutCRS    geo.CRS // empty means the provider's native CRS
	Overwrite bool
	Workers   int
	Progress  bool
	Resample  warp.Resampling
	// AOI restricts DownloadTiles to tiles covered by a geometry given in
	// EPSG:4326. The GeoTIFF entry points reject it, see ErrAOIRestricted.
	AOI orb.Geometry
}

func (o Options) resolve() (*provider.Provider, tiles.Rect, geo.CRS, error) {
	p, err := provider.Lookup(o.Provider)
	if err != nil {
		return nil, tiles.Rect{}, "", err
	}
	native, err := o.BBox.Project(p.CRS)
	if err != nil {
		return nil, tiles.Rect{}, "", err
	}
	rect, err := tiles.Covering(native, o.Zoom)
	if err != nil {
		return nil, tiles.Rect{}, "", err
	}
	out := o.OutCRS
	if out == "" {
		out = p.CRS
	}
	return p, rect, out, nil
}

// DownloadTiles fetches every tile of the covering rectangle into the store.
func DownloadTiles(ctx context.Context, o Options, st store.TileStore) (fetch.Report, error) {
	p, rect, _, err := o.resolve()
	if err != nil {
		return fetch.Report{}, err
	}
	task := fetch.NewTask(p, rect, st,
		fetch.WithOverwrite(o.Overwrite),
		fetch.WithWorkers(o.Workers),
		fetch.WithProgress(o.Progress),
		fetch.WithAOI(o.AOI),
	)
	return task.Run(ctx)
}

// ConstructGeoTIFF assembles the already-fetched tiles, reprojects to the
// output CRS, crops to the requested bbox and writes the result.
func ConstructGeoTIFF(ctx context.Context, o Options, st store.TileStore) error {
	if o.AOI != nil {
		return ErrAOIRestricted
	}
	p, rect, outCRS, err := o.resolve()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m, err := mosaic.Assemble(p, rect, st)
	if err != nil {
		return err
	}
	log.Infof("assembled %dx%d mosaic covering %v", m.W, m.H, m.Bounds)

	warped, transform, err := warp.Reproject(m, outCRS, o.Resample)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	window, err := o.BBox.Project(outCRS)
	if err != nil {
		return err
	}
	cropped, transform, err := warp.Crop(warped, transform, window)
	if err != nil {
		return err
	}

	if err := geotiff.Write(o.OutPath, cropped, transform, outCRS); err != nil {
		return err
	}
	log.Infof("wrote %s (%dx%d, %s)", o.OutPath, cropped.W, cropped.H, outCRS)
	return nil
}

// DownloadInGeoTIFF runs the full pipeline. With no tiles directory
// configured the tiles live in a temporary directory removed after the run,
// as a pure bbox-to-file conversion.
func DownloadInGeoTIFF(ctx context.Context, o Options) error {
	if o.AOI != nil {
		return ErrAOIRestricted
	}
	if o.MBTiles != "" {
		st, err := store.NewMBTiles(o.MBTiles, map[string]string{
			"name":   o.Provider,
			"format": o.TilesExt,
			"type":   "baselayer",
		})
		if err != nil {
			return err
		}
		defer st.Close()
		if _, err := DownloadTiles(ctx, o, st); err != nil {
			return err
		}
		return ConstructGeoTIFF(ctx, o, st)
	}

	dir := o.TilesDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "tiledl-*")
		if err != nil {
			return fmt.Errorf("tiledl: tiles dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}
	st, err := store.NewFiles(dir, o.TilesExt)
	if err != nil {
		return err
	}
	if _, err := DownloadTiles(ctx, o, st); err != nil {
		return err
	}
	return ConstructGeoTIFF(ctx, o, st)
}
