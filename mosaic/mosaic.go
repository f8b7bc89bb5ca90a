// Package mosaic decodes stored tiles and stitches a tile rectangle into one
// contiguous pixel buffer with known geographic bounds.
package mosaic

import (
	"errors"
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/dark-geo/tile-downloader/geo"
	"github.com/dark-geo/tile-downloader/provider"
	"github.com/dark-geo/tile-downloader/store"
	"github.com/dark-geo/tile-downloader/tiles"
)

// ErrTileSize marks a decoded tile whose pixel size disagrees with the rest
// of its row.
var ErrTileSize = errors.New("tiledl: inconsistent tile pixel size")

// MissingTileError is raised the moment a required tile is absent from the
// store. No placeholder fill, no silent gaps: a hole aborts the assembly.
type MissingTileError struct {
	Provider string
	Address  tiles.Address
}

func (e *MissingTileError) Error() string {
	return fmt.Sprintf("tiledl: missing tile %v of %s", e.Address, e.Provider)
}

// Raster is an interleaved 8-bit pixel buffer with geographic bounds in the
// CRS of Bounds. Stride is W*Bands bytes per row.
type Raster struct {
	Pix    []uint8
	W, H   int
	Bands  int
	Bounds geo.BBox
}

// NewRaster allocates a zeroed raster.
func NewRaster(w, h, bands int, bounds geo.BBox) *Raster {
	return &Raster{
		Pix:    make([]uint8, w*h*bands),
		W:      w,
		H:      h,
		Bands:  bands,
		Bounds: bounds,
	}
}

// At returns one sample. No bounds checking beyond the slice's own.
func (r *Raster) At(row, col, band int) uint8 {
	return r.Pix[(row*r.W+col)*r.Bands+band]
}

// Set stores one sample.
func (r *Raster) Set(row, col, band int, v uint8) {
	r.Pix[(row*r.W+col)*r.Bands+band] = v
}

// Assemble reads every tile of the rectangle from the store, decodes it and
// concatenates the blocks in row-major geographic order: rows north to south,
// columns west to east. All tiles must share one pixel size, taken from the
// first decoded tile rather than assumed.
func Assemble(p *provider.Provider, rect tiles.Rect, st store.TileStore) (*Raster, error) {
	bounds, err := rect.Bounds(p.CRS)
	if err != nil {
		return nil, err
	}

	cols := rect.MaxX - rect.MinX + 1
	rows := rect.MaxY - rect.MinY + 1

	var out *Raster
	var tileW, tileH int

	// canonical XYZ rows already run north to south
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			a := tiles.Address{Z: rect.Z, X: rect.MinX + col, Y: rect.MinY + row}
			if !st.Exists(a) {
				return nil, &MissingTileError{Provider: p.Name, Address: a}
			}
			data, err := st.Read(a)
			if err != nil {
				return nil, fmt.Errorf("tiledl: read tile %v: %w", a, err)
			}
			img, err := Decode(data)
			if err != nil {
				return nil, fmt.Errorf("tiledl: decode tile %v: %w", a, err)
			}

			b := img.Bounds()
			if out == nil {
				tileW, tileH = b.Dx(), b.Dy()
				out = NewRaster(cols*tileW, rows*tileH, 3, bounds)
			} else if b.Dx() != tileW || b.Dy() != tileH {
				return nil, fmt.Errorf("%w: tile %v is %dx%d, want %dx%d",
					ErrTileSize, a, b.Dx(), b.Dy(), tileW, tileH)
			}

			out.paste(img, row*tileH, col*tileW)
		}
	}
	return out, nil
}

// paste copies a decoded tile into the raster at a pixel offset, dropping
// alpha.
func (r *Raster) paste(img image.Image, top, left int) {
	b := img.Bounds()
	block := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Copy(block, image.Point{}, img, b, xdraw.Src, nil)

	for y := 0; y < b.Dy(); y++ {
		srcRow := block.Pix[y*block.Stride : y*block.Stride+b.Dx()*4]
		for x := 0; x < b.Dx(); x++ {
			off := ((top+y)*r.W + left + x) * r.Bands
			r.Pix[off+0] = srcRow[x*4+0]
			r.Pix[off+1] = srcRow[x*4+1]
			r.Pix[off+2] = srcRow[x*4+2]
		}
	}
}
