// Package geo provides coordinate reference systems, transforms between them
// and CRS-tagged bounding boxes.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wroge/wgs84"
)

// CRS identifies a coordinate reference system by its EPSG name.
type CRS string

const (
	// EPSG4326 is geographic WGS84 lon/lat in degrees.
	EPSG4326 CRS = "EPSG:4326"
	// EPSG3857 is spherical web mercator, used by Google, OSM, Bing.
	EPSG3857 CRS = "EPSG:3857"
	// EPSG3395 is elliptical world mercator, used by Yandex.
	EPSG3395 CRS = "EPSG:3395"
)

// WGS84 ellipsoid parameters.
const (
	rMajor      = 6378137.0
	rMinor      = 6356752.3142
	originShift = math.Pi * rMajor // 20037508.342789244
)

var (
	ratio   = rMinor / rMajor
	eccent  = math.Sqrt(1.0 - ratio*ratio)
	halfEcc = 0.5 * eccent
)

// Code returns the numeric EPSG code, 0 if the name is not an EPSG name.
func (c CRS) Code() int {
	s, ok := strings.CutPrefix(string(c), "EPSG:")
	if !ok {
		return 0
	}
	code, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return code
}

// Geographic reports whether coordinates are in degrees rather than metres.
func (c CRS) Geographic() bool { return c == EPSG4326 }

// ProjFunc maps one coordinate pair into another system.
type ProjFunc func(x, y float64) (float64, float64)

var (
	lonLatToMerc = wgs84.LonLat().To(wgs84.WebMercator())
	mercToLonLat = wgs84.WebMercator().To(wgs84.LonLat())
)

// web mercator clips latitude, elliptical mercator blows up near the poles
const maxMercLat = 85.051128779806604

func forward(c CRS) (ProjFunc, error) {
	switch c {
	case EPSG4326:
		return func(x, y float64) (float64, float64) { return x, y }, nil
	case EPSG3857:
		return func(lon, lat float64) (float64, float64) {
			lat = clampLat(lat)
			x, y, _ := lonLatToMerc(lon, lat, 0)
			return x, y
		}, nil
	case EPSG3395:
		return func(lon, lat float64) (float64, float64) {
			lat = clampLat(lat)
			x := rMajor * lon * math.Pi / 180.0
			phi := lat * math.Pi / 180.0
			con := eccent * math.Sin(phi)
			con = math.Pow((1.0-con)/(1.0+con), halfEcc)
			ts := math.Tan(0.5*(math.Pi*0.5-phi)) / con
			return x, -rMajor * math.Log(ts)
		}, nil
	}
	return nil, fmt.Errorf("tiledl: unsupported CRS %q", c)
}

func inverse(c CRS) (ProjFunc, error) {
	switch c {
	case EPSG4326:
		return func(x, y float64) (float64, float64) { return x, y }, nil
	case EPSG3857:
		return func(x, y float64) (float64, float64) {
			lon, lat, _ := mercToLonLat(x, y, 0)
			return lon, lat
		}, nil
	case EPSG3395:
		return func(x, y float64) (float64, float64) {
			lon := x / rMajor * 180.0 / math.Pi
			ts := math.Exp(-y / rMajor)
			phi := math.Pi/2 - 2*math.Atan(ts)
			// iterate, the elliptical inverse has no closed form
			dphi := 1.0
			for i := 0; math.Abs(dphi) > 1e-9 && i < 15; i++ {
				con := eccent * math.Sin(phi)
				dphi = math.Pi/2 - 2*math.Atan(ts*math.Pow((1.0-con)/(1.0+con), halfEcc)) - phi
				phi += dphi
			}
			return lon, phi * 180.0 / math.Pi
		}, nil
	}
	return nil, fmt.Errorf("tiledl: unsupported CRS %q", c)
}

// Transform returns a function projecting coordinates from one CRS into
// another. All transforms are composed through geographic lon/lat.
func Transform(from, to CRS) (ProjFunc, error) {
	if from == to {
		return func(x, y float64) (float64, float64) { return x, y }, nil
	}
	inv, err := inverse(from)
	if err != nil {
		return nil, err
	}
	fwd, err := forward(to)
	if err != nil {
		return nil, err
	}
	return func(x, y float64) (float64, float64) {
		return fwd(inv(x, y))
	}, nil
}

// Extent returns the full tiling envelope of a CRS. Mercator systems use the
// square web mercator extent, geographic systems the lon/lat rectangle.
func Extent(c CRS) (BBox, error) {
	switch c {
	case EPSG4326:
		return BBox{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90, CRS: c}, nil
	case EPSG3857, EPSG3395:
		return BBox{MinX: -originShift, MinY: -originShift, MaxX: originShift, MaxY: originShift, CRS: c}, nil
	}
	return BBox{}, fmt.Errorf("tiledl: unsupported CRS %q", c)
}

func clampLat(lat float64) float64 {
	return math.Min(maxMercLat, math.Max(-maxMercLat, lat))
}
