package api_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"masader/internal/api"
	"masader/internal/cache"
	"masader/internal/engine"
	"masader/internal/logger"
)

const (
	sampleDatasets = `[{"name":"A","size":10},{"name":"B","size":20},{"name":"C","size":30}]`
	sampleTags     = `{"License":["MIT","Apache-2.0"],"Form":["text","spoken"],"Dialect":["msa"]}`
)

type fixture struct {
	e     *echo.Echo
	cache cache.Store
	store *engine.Store
	coord *engine.Coordinator
}

func newFixture(t *testing.T, job engine.Job) *fixture {
	t.Helper()
	return newFixtureWithStore(t, cache.NewMemoryStore(), job)
}

func newFixtureWithStore(t *testing.T, c cache.Store, job engine.Job) *fixture {
	t.Helper()
	require.NoError(t, c.MSet(context.Background(),
		cache.Entry{Key: engine.DefaultMasaderKey, Value: []byte(sampleDatasets)},
		cache.Entry{Key: engine.DefaultTagsKey, Value: []byte(sampleTags)},
	))

	store := engine.NewStore()
	coord := engine.NewCoordinator(store, engine.NewLoader(c), job, logger.NewLogfLogger(t))
	h := api.NewHandler(store, coord, "test")
	e := api.NewServer(h, api.Options{Logger: logger.NewLogfLogger(t)})
	return &fixture{e: e, cache: c, store: store, coord: coord}
}

func (f *fixture) load(t *testing.T) {
	t.Helper()
	_, err := f.coord.Reload(context.Background())
	require.NoError(t, err)
}

func (f *fixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func TestGetDatasets(t *testing.T) {
	f := newFixture(t, nil)
	f.load(t)

	tests := []struct {
		name   string
		target string
		status int
		body   string
	}{
		{"all", "/datasets", http.StatusOK, sampleDatasets},
		{"first page", "/datasets?page=1&size=2", http.StatusOK, `[{"name":"A","size":10},{"name":"B","size":20}]`},
		{"last partial page", "/datasets?page=2&size=2", http.StatusOK, `[{"name":"C","size":30}]`},
		{"page past end", "/datasets?page=1000&size=10", http.StatusNotFound, `"Page not found."`},
		{"zero size", "/datasets?size=0", http.StatusNotFound, `"Page not found."`},
		{"negative page", "/datasets?page=-1", http.StatusNotFound, `"Page not found."`},
		{"unparsable page uses default", "/datasets?page=x&size=1", http.StatusOK, `[{"name":"A","size":10}]`},
		{"query and features", "/datasets?query=size>15&features=name", http.StatusOK, `[{"name":"B"},{"name":"C"}]`},
		{"features reorder", "/datasets?size=1&features=size,name", http.StatusOK, `[{"size":10,"name":"A"}]`},
		{"unknown feature dropped", "/datasets?size=1&features=name,nope", http.StatusOK, `[{"name":"A"}]`},
		{"filter empties page", "/datasets?page=1&size=1&query=size>15", http.StatusOK, `[]`},
		{"filter on page", "/datasets?page=2&size=2&query=name=='C'", http.StatusOK, `[{"name":"C","size":30}]`},
		{"bad query", "/datasets?query=size>>1", http.StatusBadRequest, ""},
		{"unknown column", "/datasets?query=year>1", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.get(t, tt.target)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.body != "" {
				assert.JSONEq(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestGetDatasets_KeyOrder(t *testing.T) {
	f := newFixture(t, nil)
	f.load(t)

	rec := f.get(t, "/datasets?size=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `[{"name":"A","size":10}]`+"\n", rec.Body.String())
}

func TestGetDatasets_QueryErrorMessage(t *testing.T) {
	f := newFixture(t, nil)
	f.load(t)

	rec := f.get(t, "/datasets?query=year>1")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var msg string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Contains(t, msg, "year")
}

func TestGetDataset(t *testing.T) {
	f := newFixture(t, nil)
	f.load(t)

	rec := f.get(t, "/datasets/2")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"B","size":20}`, rec.Body.String())

	rec = f.get(t, "/datasets/3?features=size")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"size":30}`, rec.Body.String())

	outOfRange := `"Dataset index is out of range, the index should be between 1 and 3."`
	for _, target := range []string{"/datasets/0", "/datasets/4", "/datasets/-1", "/datasets/abc"} {
		rec = f.get(t, target)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.JSONEq(t, outOfRange, rec.Body.String(), target)
	}
}

func TestGetTags(t *testing.T) {
	f := newFixture(t, nil)
	f.load(t)

	rec := f.get(t, "/datasets/tags")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sampleTags+"\n", rec.Body.String())

	rec = f.get(t, "/datasets/tags?features=Dialect,License,Unknown")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"Dialect":["msa"],"License":["MIT","Apache-2.0"]}`+"\n", rec.Body.String())
}

func TestGetSchema(t *testing.T) {
	f := newFixture(t, nil)
	f.load(t)

	rec := f.get(t, "/datasets/schema")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["name","size"]`, rec.Body.String())
}

func TestGetSchema_Empty(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.cache.Set(context.Background(), engine.DefaultMasaderKey, []byte(`[]`)))
	f.load(t)

	rec := f.get(t, "/datasets/schema")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = f.get(t, "/datasets")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotLoaded(t *testing.T) {
	f := newFixture(t, nil)

	for _, target := range []string{"/datasets", "/datasets/1", "/datasets/tags", "/datasets/schema"} {
		rec := f.get(t, target)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
		assert.JSONEq(t, `"`+api.NotLoaded+`"`, rec.Body.String(), target)
	}

	rec := f.get(t, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRefresh(t *testing.T) {
	release := make(chan struct{})
	var f *fixture
	job := engine.JobFunc(func(ctx context.Context) error {
		<-release
		return f.cache.Set(ctx, engine.DefaultMasaderKey, []byte(`[{"name":"A","size":10}]`))
	})
	f = newFixture(t, job)

	rec := f.get(t, "/refresh")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"The datasets updated successfully! The current number of available datasets is 3."`, rec.Body.String())

	close(release)
	require.NoError(t, f.coord.Wait(context.Background()))

	rec = f.get(t, "/datasets")
	assert.JSONEq(t, `[{"name":"A","size":10}]`, rec.Body.String())
}

func TestRefreshWait(t *testing.T) {
	var f *fixture
	job := engine.JobFunc(func(ctx context.Context) error {
		return f.cache.Set(ctx, engine.DefaultMasaderKey, []byte(`[]`))
	})
	f = newFixture(t, job)
	f.coord.ReloadOnComplete = false

	rec := f.get(t, "/refresh?wait=true")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"The datasets updated successfully! The current number of available datasets is 0."`, rec.Body.String())
}

func TestRefresh_MalformedCache(t *testing.T) {
	f := newFixture(t, nil)
	f.load(t)
	require.NoError(t, f.cache.Set(context.Background(), engine.DefaultTagsKey, []byte(`[1,2`)))

	rec := f.get(t, "/refresh")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// The previous snapshot keeps serving.
	rec = f.get(t, "/datasets/1")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// downStore fails every read once down is set, like an unreachable redis.
type downStore struct {
	cache.Store
	down atomic.Bool
}

func (s *downStore) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	if s.down.Load() {
		return nil, fmt.Errorf("dial tcp 127.0.0.1:6379: connect: connection refused")
	}
	return s.Store.MGet(ctx, keys...)
}

func TestRefresh_UnreachableStore(t *testing.T) {
	store := &downStore{Store: cache.NewMemoryStore()}
	f := newFixtureWithStore(t, store, nil)
	f.load(t)
	before := f.store.Snapshot()

	store.down.Store(true)
	rec := f.get(t, "/refresh")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")

	assert.Same(t, before, f.store.Snapshot())
	rec = f.get(t, "/datasets/2")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"B","size":20}`, rec.Body.String())
	assert.Equal(t, http.StatusOK, f.get(t, "/healthz").Code)
}

func TestGetDatasets_PageStartsOnIncompleteRecord(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.cache.Set(context.Background(), engine.DefaultMasaderKey,
		[]byte(`[{"name":"A","size":10},{"name":"X","size":20},{"name":"B"},{"name":"C","size":30}]`)))
	f.load(t)

	rec := f.get(t, "/datasets?page=2&size=2&query=size>15")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `[{"name":"C","size":30}]`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	f.load(t)

	rec := f.get(t, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["loaded"])
	assert.Equal(t, float64(3), body["datasets"])
	assert.Equal(t, float64(3), body["tags"])
	assert.Equal(t, "test", body["version"])
	assert.NotEmpty(t, body["loaded_at"])
}

func TestMetrics(t *testing.T) {
	f := newFixture(t, nil)
	f.load(t)
	f.get(t, "/datasets/1")

	rec := f.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "masader_snapshot_records")
	assert.Contains(t, rec.Body.String(), `route="/datasets/:index"`)
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.get(t, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `"Not Found"`, rec.Body.String())
}

func TestCORS(t *testing.T) {
	f := newFixture(t, nil)
	f.load(t)

	req := httptest.NewRequest(http.MethodGet, "/datasets/schema", nil)
	req.Header.Set(echo.HeaderOrigin, "https://example.org")
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}
