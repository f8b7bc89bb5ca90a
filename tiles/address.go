// Package tiles implements tile-index math: addressing, scheme conversion
// and the mapping between coordinates and tile grids.
//
// Addresses are canonically XYZ (origin at the north-west corner of the
// extent). TMS and quadkey representations exist only at provider-URL and
// storage boundaries.
package tiles

import (
	"errors"
	"fmt"
)

// ZoomMin and ZoomMax bound the supported pyramid.
const (
	ZoomMin = 0
	ZoomMax = 22
)

var (
	ErrZoomRange  = errors.New("tiledl: zoom outside [0,22]")
	ErrBadAddress = errors.New("tiledl: tile index outside grid")
	ErrBadQuadkey = errors.New("tiledl: malformed quadkey")
)

// Address identifies one tile in the XYZ scheme.
type Address struct {
	Z, X, Y int
}

// Valid reports whether the address lies inside the 2^z by 2^z grid.
func (a Address) Valid() bool {
	if a.Z < ZoomMin || a.Z > ZoomMax {
		return false
	}
	n := 1 << a.Z
	return a.X >= 0 && a.X < n && a.Y >= 0 && a.Y < n
}

func (a Address) String() string {
	return fmt.Sprintf("%d/%d/%d", a.Z, a.X, a.Y)
}

// FlipY mirrors the row index, converting between the XYZ and TMS vertical
// conventions. The operation is its own inverse.
func (a Address) FlipY() Address {
	return Address{Z: a.Z, X: a.X, Y: (1 << a.Z) - 1 - a.Y}
}

// TMS returns the row/column pair under the TMS convention.
func (a Address) TMS() (x, y int) {
	return a.X, (1 << a.Z) - 1 - a.Y
}

// FromTMS builds a canonical address from TMS coordinates.
func FromTMS(x, y, z int) Address {
	return Address{Z: z, X: x, Y: (1 << z) - 1 - y}
}

// Quadkey encodes the address as base-4 digits, one per zoom level,
// interleaving the x and y bits. Zoom 0 encodes to the empty string.
func (a Address) Quadkey() string {
	buf := make([]byte, a.Z)
	for i := a.Z; i > 0; i-- {
		digit := byte('0')
		mask := 1 << (i - 1)
		if a.X&mask != 0 {
			digit++
		}
		if a.Y&mask != 0 {
			digit += 2
		}
		buf[a.Z-i] = digit
	}
	return string(buf)
}

// FromQuadkey decodes a quadkey back into an address.
func FromQuadkey(qk string) (Address, error) {
	z := len(qk)
	if z > ZoomMax {
		return Address{}, ErrZoomRange
	}
	a := Address{Z: z}
	for i := z; i > 0; i-- {
		mask := 1 << (i - 1)
		switch qk[z-i] {
		case '0':
		case '1':
			a.X |= mask
		case '2':
			a.Y |= mask
		case '3':
			a.X |= mask
			a.Y |= mask
		default:
			return Address{}, fmt.Errorf("%w: %q", ErrBadQuadkey, qk)
		}
	}
	return a, nil
}
