// Package store provides TileStore backends keyed by tile address: a plain
// z/x/y file tree and an MBTiles database.
package store

import (
	"github.com/dark-geo/tile-downloader/tiles"
)

// TileStore maps tile addresses to raw encoded image bytes. Entries are
// written once by the fetcher and read by the assembler; an overwrite
// replaces the whole entry. The key derivation must stay stable between the
// fetch and assemble phases of one run.
type TileStore interface {
	Exists(a tiles.Address) bool
	Read(a tiles.Address) ([]byte, error)
	Write(a tiles.Address, data []byte) error
}
