// Package geotiff writes georeferenced rasters as striped, uncompressed RGB
// TIFF files with GeoTIFF tags. The six affine parameters and the EPSG code
// are carried verbatim into ModelPixelScale, ModelTiepoint and the GeoKey
// directory.
package geotiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/dark-geo/tile-downloader/geo"
	"github.com/dark-geo/tile-downloader/mosaic"
	"github.com/dark-geo/tile-downloader/warp"
)

// SinkWriteError wraps any failure to commit the output file.
type SinkWriteError struct {
	Path string
	Err  error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("tiledl: write %s: %v", e.Path, e.Err)
}

func (e *SinkWriteError) Unwrap() error { return e.Err }

// TIFF tag and type constants, only what the writer emits.
const (
	tagImageWidth       = 256
	tagImageLength      = 257
	tagBitsPerSample    = 258
	tagCompression      = 259
	tagPhotometric      = 262
	tagStripOffsets     = 273
	tagSamplesPerPixel  = 277
	tagRowsPerStrip     = 278
	tagStripByteCounts  = 279
	tagPlanarConfig     = 284
	tagModelPixelScale  = 33550
	tagModelTiepoint    = 33922
	tagGeoKeyDirectory  = 34735

	typeShort  = 3
	typeLong   = 4
	typeDouble = 12
)

// GeoKey IDs.
const (
	gkModelType      = 1024
	gkRasterType     = 1025
	gkGeographicType = 2048
	gkProjectedCS    = 3072
)

type entry struct {
	tag, typ uint16
	count    uint32
	value    uint32
}

// Write encodes the raster and commits it to path through a temporary file
// and rename, so failed or cancelled runs never leave a partial file in the
// final location.
func Write(path string, r *mosaic.Raster, t warp.Transform, crs geo.CRS) error {
	data, err := encode(r, t, crs)
	if err != nil {
		return &SinkWriteError{Path: path, Err: err}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return &SinkWriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &SinkWriteError{Path: path, Err: err}
	}
	return nil
}

func encode(r *mosaic.Raster, t warp.Transform, crs geo.CRS) ([]byte, error) {
	if r.W <= 0 || r.H <= 0 {
		return nil, fmt.Errorf("empty raster %dx%d", r.W, r.H)
	}
	if r.Bands != 3 {
		return nil, fmt.Errorf("unsupported band count %d", r.Bands)
	}
	code := crs.Code()
	if code == 0 {
		return nil, fmt.Errorf("CRS %q has no EPSG code", crs)
	}

	modelType := uint16(1) // projected
	csKey := uint16(gkProjectedCS)
	if crs.Geographic() {
		modelType = 2
		csKey = gkGeographicType
	}
	geoKeys := []uint16{
		1, 1, 0, 3, // version, revision, minor, key count
		gkModelType, 0, 1, modelType,
		gkRasterType, 0, 1, 1, // PixelIsArea
		csKey, 0, 1, uint16(code),
	}
	pixelScale := []float64{t.PixelWidth(), t.PixelHeight(), 0}
	tiepoint := []float64{0, 0, 0, t[0], t[3], 0}

	const nEntries = 13
	ifdOffset := uint32(8)
	ifdSize := uint32(2 + nEntries*12 + 4)
	extOffset := ifdOffset + ifdSize

	bitsOff := extOffset
	scaleOff := bitsOff + 6
	tieOff := scaleOff + 24
	geoOff := tieOff + 48
	dataOff := geoOff + uint32(len(geoKeys)*2)

	stripBytes := uint32(r.W * r.H * r.Bands)

	entries := []entry{
		{tagImageWidth, typeLong, 1, uint32(r.W)},
		{tagImageLength, typeLong, 1, uint32(r.H)},
		{tagBitsPerSample, typeShort, 3, bitsOff},
		{tagCompression, typeShort, 1, 1},
		{tagPhotometric, typeShort, 1, 2}, // RGB
		{tagStripOffsets, typeLong, 1, dataOff},
		{tagSamplesPerPixel, typeShort, 1, 3},
		{tagRowsPerStrip, typeLong, 1, uint32(r.H)},
		{tagStripByteCounts, typeLong, 1, stripBytes},
		{tagPlanarConfig, typeShort, 1, 1}, // chunky
		{tagModelPixelScale, typeDouble, 3, scaleOff},
		{tagModelTiepoint, typeDouble, 6, tieOff},
		{tagGeoKeyDirectory, typeShort, uint32(len(geoKeys)), geoOff},
	}

	var buf bytes.Buffer
	le := binary.LittleEndian
	buf.WriteString("II")
	binary.Write(&buf, le, uint16(42))
	binary.Write(&buf, le, ifdOffset)

	binary.Write(&buf, le, uint16(nEntries))
	for _, e := range entries {
		binary.Write(&buf, le, e.tag)
		binary.Write(&buf, le, e.typ)
		binary.Write(&buf, le, e.count)
		if e.typ == typeShort && e.count == 1 {
			// inline short values occupy the low half of the field
			binary.Write(&buf, le, uint16(e.value))
			binary.Write(&buf, le, uint16(0))
		} else {
			binary.Write(&buf, le, e.value)
		}
	}
	binary.Write(&buf, le, uint32(0)) // next IFD

	binary.Write(&buf, le, [3]uint16{8, 8, 8})
	binary.Write(&buf, le, pixelScale)
	binary.Write(&buf, le, tiepoint)
	binary.Write(&buf, le, geoKeys)

	if uint32(buf.Len()) != dataOff {
		return nil, fmt.Errorf("internal layout error: %d != %d", buf.Len(), dataOff)
	}
	buf.Write(r.Pix)
	return buf.Bytes(), nil
}
