package fetch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dark-geo/tile-downloader/geo"
	"github.com/dark-geo/tile-downloader/provider"
	"github.com/dark-geo/tile-downloader/store"
	"github.com/dark-geo/tile-downloader/tiles"
)

// fakeClient serves canned bodies and counts every call.
type fakeClient struct {
	mu    sync.Mutex
	calls int
	serve func(url string) ([]byte, error)
}

func (f *fakeClient) Get(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.serve(url)
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testProvider() *provider.Provider {
	return provider.Custom("test", "http://tiles.test/{z}/{x}/{y}.png",
		provider.SchemeXYZ, geo.EPSG3857, 0)
}

func testStore(t *testing.T) store.TileStore {
	t.Helper()
	s, err := store.NewFiles(t.TempDir(), "png")
	require.NoError(t, err)
	return s
}

func TestRunFetchesEveryTile(t *testing.T) {
	client := &fakeClient{serve: func(string) ([]byte, error) {
		return []byte("img"), nil
	}}
	st := testStore(t)
	rect := tiles.Rect{Z: 5, MinX: 10, MaxX: 12, MinY: 20, MaxY: 21}

	task := NewTask(testProvider(), rect, st, WithClient(client), WithWorkers(2))
	report, err := task.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, report.Fetched)
	assert.Zero(t, report.Skipped)
	assert.Zero(t, report.Failed)
	assert.Equal(t, int64(6*3), report.Bytes)
	for a := range rect.All() {
		assert.True(t, st.Exists(a), "tile %v", a)
	}
}

func TestSecondRunIsIdempotent(t *testing.T) {
	client := &fakeClient{serve: func(string) ([]byte, error) {
		return []byte("img"), nil
	}}
	st := testStore(t)
	rect := tiles.Rect{Z: 3, MinX: 0, MaxX: 1, MinY: 0, MaxY: 1}

	_, err := NewTask(testProvider(), rect, st, WithClient(client)).Run(context.Background())
	require.NoError(t, err)
	firstCalls := client.callCount()
	require.Equal(t, 4, firstCalls)

	report, err := NewTask(testProvider(), rect, st, WithClient(client)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, firstCalls, client.callCount(), "no network calls on the second run")
	assert.Equal(t, 4, report.Skipped)
	assert.Zero(t, report.Fetched)
}

func TestOverwriteRefetches(t *testing.T) {
	client := &fakeClient{serve: func(string) ([]byte, error) {
		return []byte("img"), nil
	}}
	st := testStore(t)
	rect := tiles.Rect{Z: 1, MinX: 0, MaxX: 0, MinY: 0, MaxY: 0}

	_, err := NewTask(testProvider(), rect, st, WithClient(client)).Run(context.Background())
	require.NoError(t, err)

	report, err := NewTask(testProvider(), rect, st,
		WithClient(client), WithOverwrite(true)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fetched)
	assert.Equal(t, 2, client.callCount())
}

func TestMirrorFallback(t *testing.T) {
	// two mirrors: the first always fails at transport level
	p := providerWithMirrors(t, "multi",
		"http://bad.test/{z}/{x}/{y}.png",
		"http://good.test/{z}/{x}/{y}.png")

	client := &fakeClient{serve: func(url string) ([]byte, error) {
		if strings.Contains(url, "bad.test") {
			return nil, errors.New("connection refused")
		}
		return []byte("img"), nil
	}}
	st := testStore(t)
	rect := tiles.Rect{Z: 1, MinX: 0, MaxX: 0, MinY: 0, MaxY: 0}

	report, err := NewTask(p, rect, st, WithClient(client)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fetched)
	assert.Zero(t, report.Failed)
	assert.Equal(t, 2, client.callCount())
}

func TestInvalidContentLeavesTileAbsent(t *testing.T) {
	placeholder := []byte("blank-tile")
	p := testProvider()
	p.SetPlaceholder(placeholder)

	client := &fakeClient{serve: func(string) ([]byte, error) {
		return placeholder, nil
	}}
	st := testStore(t)
	rect := tiles.Rect{Z: 2, MinX: 1, MaxX: 1, MinY: 1, MaxY: 1}

	report, err := NewTask(p, rect, st, WithClient(client)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, report.Fetched)
	assert.False(t, st.Exists(tiles.Address{Z: 2, X: 1, Y: 1}),
		"placeholder content must never be cached")
}

func TestCancelStopsDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeClient{serve: func(string) ([]byte, error) {
		return []byte("img"), nil
	}}
	st := testStore(t)
	rect := tiles.Rect{Z: 8, MinX: 0, MaxX: 31, MinY: 0, MaxY: 31}

	_, err := NewTask(testProvider(), rect, st, WithClient(client), WithWorkers(1)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, client.callCount())
}

// providerWithMirrors builds a descriptor whose URL list spans several hosts.
func providerWithMirrors(t *testing.T, name string, urls ...string) *provider.Provider {
	t.Helper()
	require.NotEmpty(t, urls)
	p := provider.Custom(name, urls[0], provider.SchemeXYZ, geo.EPSG3857, 0)
	for _, u := range urls[1:] {
		p.AddMirror(u)
	}
	return p
}
