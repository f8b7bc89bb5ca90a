// Package provider holds the registry of map-service descriptors: native
// projection, URL mirrors, politeness delay and tile-content validation.
package provider

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dark-geo/tile-downloader/geo"
	"github.com/dark-geo/tile-downloader/tiles"
)

// Scheme is the row-numbering convention a provider's URLs expect.
type Scheme int

const (
	SchemeXYZ Scheme = iota
	SchemeTMS
)

// TileSize is the pixel size of tiles for all registered services.
const TileSize = 256

// UnknownProviderError is returned on a failed registry lookup. A bad name is
// a configuration error, not a pipeline fault.
type UnknownProviderError struct {
	Name string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("tiledl: unknown provider %q", e.Name)
}

// Provider describes one map service. Descriptors are built once at startup
// and never mutated afterwards, except for SetPlaceholder during
// configuration load.
type Provider struct {
	Name     string
	CRS      geo.CRS
	TileSize int
	Scheme   Scheme
	// Delay is the politeness pause after every HTTP attempt.
	Delay time.Duration

	mirrors     []string
	placeholder []byte
}

// URLs returns the candidate URLs for a tile, one per mirror, to be tried in
// order. Templates understand {x}, {y}, {z} and {q} (quadkey).
func (p *Provider) URLs(a tiles.Address) []string {
	y := a.Y
	if p.Scheme == SchemeTMS {
		_, y = a.TMS()
	}
	out := make([]string, len(p.mirrors))
	for i, tmpl := range p.mirrors {
		u := strings.ReplaceAll(tmpl, "{x}", strconv.Itoa(a.X))
		u = strings.ReplaceAll(u, "{y}", strconv.Itoa(y))
		u = strings.ReplaceAll(u, "{z}", strconv.Itoa(a.Z))
		if strings.Contains(u, "{q}") {
			u = strings.ReplaceAll(u, "{q}", a.Quadkey())
		}
		out[i] = u
	}
	return out
}

// Valid reports whether a response body is real imagery. Empty bodies and an
// exact byte match against the provider's "no imagery" placeholder are
// rejected so they are never cached as valid tiles.
func (p *Provider) Valid(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	if p.placeholder != nil && bytes.Equal(body, p.placeholder) {
		return false
	}
	return true
}

// SetPlaceholder installs the exact placeholder bytes to reject. Call during
// configuration load, before any download starts.
func (p *Provider) SetPlaceholder(b []byte) { p.placeholder = b }

// AddMirror appends another URL template to the mirror list. Call during
// configuration load, before any download starts.
func (p *Provider) AddMirror(urlTemplate string) { p.mirrors = append(p.mirrors, urlTemplate) }

var registry = map[string]*Provider{}

// Register adds a descriptor to the registry. Later registrations with the
// same name win, which lets configuration shadow a built-in.
func Register(p *Provider) {
	registry[strings.ToLower(p.Name)] = p
}

// Lookup resolves a provider by name, case-insensitively.
func Lookup(name string) (*Provider, error) {
	p, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, &UnknownProviderError{Name: name}
	}
	return p, nil
}

// Names lists the registered provider names, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Custom builds a single-mirror descriptor from a URL template, for services
// configured at runtime rather than compiled in.
func Custom(name, urlTemplate string, scheme Scheme, crs geo.CRS, delay time.Duration) *Provider {
	return &Provider{
		Name:     name,
		CRS:      crs,
		TileSize: TileSize,
		Scheme:   scheme,
		Delay:    delay,
		mirrors:  []string{urlTemplate},
	}
}

func googleMirrors(layer string) []string {
	out := make([]string, 4)
	for i := range out {
		out[i] = fmt.Sprintf("http://mt%d.google.com/vt/lyrs=%s&x={x}&y={y}&z={z}", i, layer)
	}
	return out
}

func bingMirrors(format string) []string {
	out := make([]string, 4)
	for i := range out {
		out[i] = fmt.Sprintf(format, i)
	}
	return out
}

func init() {
	webMercator := func(name string, mirrors []string) *Provider {
		return &Provider{
			Name:     name,
			CRS:      geo.EPSG3857,
			TileSize: TileSize,
			Scheme:   SchemeXYZ,
			mirrors:  mirrors,
		}
	}

	Register(webMercator("GoogleRoad", googleMirrors("m")))
	Register(webMercator("GoogleSatellite", googleMirrors("s")))
	Register(webMercator("GoogleHybrid", googleMirrors("y")))
	Register(webMercator("OpenStreetMap",
		[]string{"https://c.tile.openstreetmap.org/{z}/{x}/{y}.png"}))
	Register(webMercator("BingRoad", bingMirrors(
		"http://ecn.dynamic.t%d.tiles.virtualearth.net/comp/CompositionHandler/r{q}.jpeg?mkt=en-us&it=G,VE,BX,L,LA&shading=hill&g=94")))
	Register(webMercator("BingSatellite", bingMirrors(
		"http://a%d.ortho.tiles.virtualearth.net/tiles/a{q}.jpeg?g=94")))
}
