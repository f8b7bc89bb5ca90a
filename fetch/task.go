// Package fetch downloads the tiles covering a rectangle into a TileStore,
// with a bounded worker pool, per-provider rate limiting and mirror fallback.
package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/maptile/tilecover"
	log "github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
	pb "gopkg.in/cheggaaa/pb.v1"

	"github.com/dark-geo/tile-downloader/geo"
	"github.com/dark-geo/tile-downloader/provider"
	"github.com/dark-geo/tile-downloader/store"
	"github.com/dark-geo/tile-downloader/tiles"
)

// TileValidationError records that every mirror for a tile returned content
// the provider's validator rejected. It is logged, never fatal: the failure
// resurfaces at assembly time only if the tile is actually needed.
type TileValidationError struct {
	Provider string
	Address  tiles.Address
}

func (e *TileValidationError) Error() string {
	return fmt.Sprintf("tiledl: all mirrors of %s returned invalid content for tile %v", e.Provider, e.Address)
}

// Report aggregates the outcome of one fetch run.
type Report struct {
	Fetched int
	Skipped int
	Failed  int
	Bytes   int64
}

func (r Report) String() string {
	return fmt.Sprintf("fetched %d, skipped %d, failed %d, %.2f kb",
		r.Fetched, r.Skipped, r.Failed, float64(r.Bytes)/1024.0)
}

// Task downloads one tile rectangle for one provider.
type Task struct {
	ID       string
	Provider *provider.Provider
	Rect     tiles.Rect
	Store    store.TileStore

	Overwrite   bool
	WorkerCount int
	Progress    bool

	client Client
	aoi    orb.Geometry

	mu     sync.Mutex
	report Report
}

// Option configures a Task.
type Option func(*Task)

// WithClient substitutes the HTTP collaborator, mainly for tests.
func WithClient(c Client) Option { return func(t *Task) { t.client = c } }

// WithAOI restricts the fetched set to tiles intersecting a geometry given in
// EPSG:4326. Only meaningful for web mercator providers; others ignore it.
func WithAOI(g orb.Geometry) Option { return func(t *Task) { t.aoi = g } }

// WithOverwrite re-downloads tiles already present in the store.
func WithOverwrite(overwrite bool) Option { return func(t *Task) { t.Overwrite = overwrite } }

// WithWorkers caps the number of concurrent fetches.
func WithWorkers(n int) Option { return func(t *Task) { t.WorkerCount = n } }

// WithProgress toggles the progress bar.
func WithProgress(on bool) Option { return func(t *Task) { t.Progress = on } }

// NewTask creates a download task over the rectangle.
func NewTask(p *provider.Provider, rect tiles.Rect, st store.TileStore, opts ...Option) *Task {
	id, _ := shortid.Generate()
	t := &Task{
		ID:          id,
		Provider:    p,
		Rect:        rect,
		Store:       st,
		WorkerCount: 4,
		client:      NewHTTPClient(0),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.WorkerCount < 1 {
		t.WorkerCount = 1
	}
	return t
}

// addresses resolves the tile set, applying the AOI filter when present.
func (t *Task) addresses() ([]tiles.Address, error) {
	var keep maptile.Set
	if t.aoi != nil && t.Provider.CRS == geo.EPSG3857 {
		set, err := tilecover.Geometry(t.aoi, maptile.Zoom(t.Rect.Z))
		if err != nil {
			return nil, err
		}
		keep = set
	}
	out := make([]tiles.Address, 0, t.Rect.Count())
	for a := range t.Rect.All() {
		if keep != nil {
			if !keep[maptile.New(uint32(a.X), uint32(a.Y), maptile.Zoom(a.Z))] {
				continue
			}
		}
		out = append(out, a)
	}
	return out, nil
}

// Run downloads every missing tile in the rectangle. Per-tile failures are
// recorded in the report and do not abort the run; only cancellation or a
// broken tile set resolution does.
func (t *Task) Run(ctx context.Context) (Report, error) {
	addrs, err := t.addresses()
	if err != nil {
		return Report{}, err
	}
	log.Infof("task %s: downloading %d tiles of %s", t.ID, len(addrs), t.Provider.Name)

	var bar *pb.ProgressBar
	if t.Progress {
		bar = pb.New(len(addrs)).Prefix(fmt.Sprintf("Zoom %d : ", t.Rect.Z))
		bar.Start()
	}

	workers := make(chan struct{}, t.WorkerCount)
	var wg sync.WaitGroup

loop:
	for _, a := range addrs {
		select {
		case <-ctx.Done():
			log.Infof("task %s got canceled.", t.ID)
			break loop
		default:
		}
		if !t.Overwrite && t.Store.Exists(a) {
			t.mu.Lock()
			t.report.Skipped++
			t.mu.Unlock()
			if bar != nil {
				bar.Increment()
			}
			continue
		}
		select {
		case workers <- struct{}{}:
			wg.Add(1)
			go func(a tiles.Address) {
				defer wg.Done()
				defer func() { <-workers }()
				t.fetchOne(ctx, a)
				if bar != nil {
					bar.Increment()
				}
			}(a)
		case <-ctx.Done():
			log.Infof("task %s got canceled.", t.ID)
			break loop
		}
	}
	wg.Wait()
	if bar != nil {
		bar.FinishPrint(fmt.Sprintf("task %s finished ~", t.ID))
	}

	t.mu.Lock()
	report := t.report
	t.mu.Unlock()
	log.Infof("task %s: %s", t.ID, report)
	return report, ctx.Err()
}

// fetchOne tries each mirror in order and persists the first response that
// is transport-successful and passes validation. The provider delay is
// honored after every attempt, success or failure.
func (t *Task) fetchOne(ctx context.Context, a tiles.Address) {
	sawInvalid := false
	for _, url := range t.Provider.URLs(a) {
		body, err := t.client.Get(ctx, url)
		t.sleep(ctx)
		if err != nil {
			log.Errorf("fetch %s error, details: %s ~", url, err)
			continue
		}
		if !t.Provider.Valid(body) {
			sawInvalid = true
			log.Warnf("invalid content for tile %v from %s ~", a, url)
			continue
		}
		if err := t.Store.Write(a, body); err != nil {
			log.Errorf("write tile %v error ~ %s", a, err)
			continue
		}
		t.mu.Lock()
		t.report.Fetched++
		t.report.Bytes += int64(len(body))
		t.mu.Unlock()
		return
	}
	if sawInvalid {
		log.Warn(&TileValidationError{Provider: t.Provider.Name, Address: a})
	}
	t.mu.Lock()
	t.report.Failed++
	t.mu.Unlock()
}

func (t *Task) sleep(ctx context.Context) {
	if t.Provider.Delay <= 0 {
		return
	}
	select {
	case <-time.After(t.Provider.Delay):
	case <-ctx.Done():
	}
}
