package store

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dark-geo/tile-downloader/tiles"
)

// MBTiles stores tiles in an MBTiles 1.2 sqlite database. Rows are stored
// under the TMS convention as the format requires; the flip happens here and
// nowhere else.
type MBTiles struct {
	db *sql.DB
}

// NewMBTiles opens (or creates) an MBTiles file and installs the schema and
// metadata table.
func NewMBTiles(path string, meta map[string]string) (*MBTiles, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := optimizeConnection(db); err != nil {
		db.Close()
		return nil, err
	}
	stmts := []string{
		"create table if not exists tiles (zoom_level integer, tile_column integer, tile_row integer, tile_data blob);",
		"create table if not exists metadata (name text, value text);",
		"create unique index if not exists name on metadata (name);",
		"create unique index if not exists tile_index on tiles(zoom_level, tile_column, tile_row);",
	}
	for _, q := range stmts {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, err
		}
	}
	for name, value := range meta {
		if _, err := db.Exec("insert or replace into metadata (name, value) values (?, ?)", name, value); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &MBTiles{db: db}, nil
}

func optimizeConnection(db *sql.DB) error {
	for _, q := range []string{
		"PRAGMA synchronous=0",
		"PRAGMA locking_mode=EXCLUSIVE",
		"PRAGMA journal_mode=DELETE",
	} {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *MBTiles) Exists(a tiles.Address) bool {
	_, y := a.TMS()
	var one int
	err := s.db.QueryRow(
		"select 1 from tiles where zoom_level=? and tile_column=? and tile_row=?",
		a.Z, a.X, y).Scan(&one)
	return err == nil
}

func (s *MBTiles) Read(a tiles.Address) ([]byte, error) {
	_, y := a.TMS()
	var data []byte
	err := s.db.QueryRow(
		"select tile_data from tiles where zoom_level=? and tile_column=? and tile_row=?",
		a.Z, a.X, y).Scan(&data)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *MBTiles) Write(a tiles.Address, data []byte) error {
	_, y := a.TMS()
	_, err := s.db.Exec(
		"insert or replace into tiles (zoom_level, tile_column, tile_row, tile_data) values (?, ?, ?, ?);",
		a.Z, a.X, y, data)
	return err
}

// Close runs ANALYZE and closes the database.
func (s *MBTiles) Close() error {
	s.db.Exec("ANALYZE;")
	return s.db.Close()
}
