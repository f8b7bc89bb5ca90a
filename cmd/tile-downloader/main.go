package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/shiena/ansicolor"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	downloader "github.com/dark-geo/tile-downloader"
	"github.com/dark-geo/tile-downloader/geo"
	"github.com/dark-geo/tile-downloader/provider"
	"github.com/dark-geo/tile-downloader/store"
	"github.com/dark-geo/tile-downloader/warp"
)

// flag
var (
	hf bool
	cf string
)

func init() {
	flag.BoolVar(&hf, "h", false, "this help")
	flag.StringVar(&cf, "c", "conf.toml", "set config `file`")
	flag.Usage = usage
	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	log.SetOutput(ansicolor.NewAnsiColorWriter(os.Stdout))
	log.SetLevel(log.DebugLevel)
}

func usage() {
	fmt.Fprintf(os.Stderr, `tile-downloader version: v0.2.0
Usage: tile-downloader [-h] [-c filename]
`)
	flag.PrintDefaults()
}

func initConf(cfgFile string) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		log.Warnf("config file(%s) not exist", cfgFile)
	}
	viper.SetConfigType("toml")
	viper.SetConfigFile(cfgFile)
	viper.AutomaticEnv() // read in environment variables that match
	err := viper.ReadInConfig()
	if err != nil {
		log.Warnf("read config file(%s) error, details: %s", viper.ConfigFileUsed(), err)
	}
	viper.SetDefault("task.workers", 4)
	viper.SetDefault("task.timedelay", 0)
	viper.SetDefault("provider.name", "OpenStreetMap")
	viper.SetDefault("tiles.format", "png")
	viper.SetDefault("area.crs", string(geo.EPSG4326))
	viper.SetDefault("output.crs", "")
	viper.SetDefault("output.path", "output.tiff")
	viper.SetDefault("output.resample", "nearest")
}

// parseBBox reads "minx,miny,maxx,maxy".
func parseBBox(s string, crs geo.CRS) (geo.BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geo.BBox{}, fmt.Errorf("bbox must have 4 components, got %q", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geo.BBox{}, fmt.Errorf("bbox component %q: %w", p, err)
		}
		vals[i] = v
	}
	return geo.NewBBox(vals[0], vals[1], vals[2], vals[3], crs)
}

// loadAOI reads an optional GeoJSON feature collection restricting the
// downloaded tile set.
func loadAOI(path string) orb.Geometry {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("unable to read aoi file: %v", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		log.Fatalf("unable to unmarshal aoi: %v", err)
	}
	var collection orb.Collection
	for _, f := range fc.Features {
		collection = append(collection, f.Geometry)
	}
	if len(collection) == 0 {
		log.Fatal("aoi has no geometries")
	}
	if len(collection) == 1 {
		return collection[0]
	}
	return collection
}

func main() {
	flag.Parse()
	if hf {
		flag.Usage()
		return
	}
	if cf == "" {
		cf = "conf.toml"
	}
	initConf(cf)

	crs := geo.CRS(viper.GetString("area.crs"))
	bbox, err := parseBBox(viper.GetString("area.bbox"), crs)
	if err != nil {
		log.Fatalf("area.bbox configuration error: %s", err)
	}

	name := viper.GetString("provider.name")
	if url := viper.GetString("provider.url"); url != "" {
		scheme := provider.SchemeXYZ
		if viper.GetString("provider.schema") == "tms" {
			scheme = provider.SchemeTMS
		}
		pcrs := geo.EPSG3857
		if c := viper.GetString("provider.crs"); c != "" {
			pcrs = geo.CRS(c)
		}
		provider.Register(provider.Custom(name, url, scheme, pcrs, 0))
	}
	if _, err := provider.Lookup(name); err != nil {
		log.Fatalf("%s; registered providers: %s", err, strings.Join(provider.Names(), ", "))
	}
	applyDelay(name, time.Duration(viper.GetFloat64("task.timedelay")*float64(time.Second)))

	resample := warp.Nearest
	if viper.GetString("output.resample") == "bilinear" {
		resample = warp.Bilinear
	}

	aoi := loadAOI(viper.GetString("area.geojson"))
	opts := downloader.Options{
		Provider:  name,
		BBox:      bbox,
		Zoom:      viper.GetInt("area.zoom"),
		TilesDir:  viper.GetString("tiles.directory"),
		MBTiles:   viper.GetString("tiles.mbtiles"),
		TilesExt:  viper.GetString("tiles.format"),
		OutPath:   viper.GetString("output.path"),
		OutCRS:    geo.CRS(viper.GetString("output.crs")),
		Overwrite: viper.GetBool("task.overwrite"),
		Workers:   viper.GetInt("task.workers"),
		Progress:  true,
		Resample:  resample,
		AOI:       aoi,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if aoi != nil {
		// an AOI-filtered tile set has holes, so it can only seed the
		// tile cache, never a mosaic
		st, err := openStore(opts)
		if err != nil {
			log.Fatal(err)
		}
		if c, ok := st.(io.Closer); ok {
			defer c.Close()
		}
		report, err := downloader.DownloadTiles(ctx, opts, st)
		if err != nil {
			log.Fatal(err)
		}
		log.Infof("aoi seed done: %s", report)
	} else if err := downloader.DownloadInGeoTIFF(ctx, opts); err != nil {
		log.Fatal(err)
	}
	log.Printf("%.3fs finished...", time.Since(start).Seconds())
}

// applyDelay overrides the politeness delay of a registered provider. A
// non-positive delay keeps whatever the descriptor already carries.
func applyDelay(name string, delay time.Duration) {
	if delay <= 0 {
		return
	}
	if p, err := provider.Lookup(name); err == nil {
		p.Delay = delay
	}
}

// openStore resolves the configured tile cache for a seeding run.
func openStore(o downloader.Options) (store.TileStore, error) {
	if o.MBTiles != "" {
		return store.NewMBTiles(o.MBTiles, map[string]string{
			"name":   o.Provider,
			"format": o.TilesExt,
			"type":   "baselayer",
		})
	}
	if o.TilesDir == "" {
		return nil, fmt.Errorf("aoi download needs tiles.directory or tiles.mbtiles")
	}
	return store.NewFiles(o.TilesDir, o.TilesExt)
}
