package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"masader/internal/cache"
	"masader/internal/config"
	"masader/internal/engine"
	"masader/internal/logger"
	"masader/internal/refresh"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rc := NewRootCommand(nil, &stdout, &stderr)
	rc.SetArgs(args)
	err := rc.ExecuteContext(context.Background())
	t.Log(stderr.String())
	return stdout.String(), err
}

func TestSeedAndQuery(t *testing.T) {
	dir := t.TempDir()
	datasets := filepath.Join(dir, "masader.json")
	tags := filepath.Join(dir, "tags.yml")
	require.NoError(t, os.WriteFile(datasets, []byte(`[{"name":"A","size":10},{"name":"B","size":20},{"name":"C","size":30}]`), 0600))
	require.NoError(t, os.WriteFile(tags, []byte("Form:\n  - text\n  - spoken\n"), 0600))
	db := filepath.Join(dir, "cache.db")

	out, err := execute(t, "seed", "--cache.backend", "bolt", "--cache.bolt-path", db, "--datasets", datasets, "--tags", tags)
	require.NoError(t, err)
	assert.Equal(t, "seeded 3 datasets and 1 tag categories\n", out)

	out, err = execute(t, "query", "size > 15", "--features", "name", "--cache.backend", "bolt", "--cache.bolt-path", db)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"B"},{"name":"C"}]`, out)

	out, err = execute(t, "query", "--page", "2", "--size", "2", "--cache.backend", "bolt", "--cache.bolt-path", db)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"C","size":30}]`, out)

	_, err = execute(t, "query", "size >", "--cache.backend", "bolt", "--cache.bolt-path", db)
	assert.Error(t, err)
}

func TestSeed_RequiresBothDocuments(t *testing.T) {
	_, err := execute(t, "seed", "--cache.backend", "memory", "--datasets", "masader.json")
	assert.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	_, err := execute(t, "query", "--cache.backend", "memcached")
	assert.Error(t, err)
}

func TestToURL(t *testing.T) {
	u, err := toURL("s3://bucket/masader.json")
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/masader.json", u)

	u, err = toURL("masader.json")
	require.NoError(t, err)
	assert.Contains(t, u, "file://")
	assert.Contains(t, u, "masader.json")
}

func TestServer(t *testing.T) {
	cfg := config.New()
	cfg.Bind = "127.0.0.1:0"
	cfg.Cache.Backend = cache.BackendMemory
	cfg.Refresh.OnStart = false

	s, err := NewServer(cfg, logger.NewLogfLogger(t))
	require.NoError(t, err)
	require.Nil(t, newJob(cfg, s.loader, nil))
	require.NoError(t, s.Open())

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	assert.Equal(t, http.StatusServiceUnavailable, get("/datasets").Code)
	assert.Equal(t, http.StatusInternalServerError, get("/refresh").Code, "empty cache store")

	require.NoError(t, s.loader.Cache.MSet(context.Background(),
		cache.Entry{Key: engine.DefaultMasaderKey, Value: []byte(`[{"name":"A"}]`)},
		cache.Entry{Key: engine.DefaultTagsKey, Value: []byte(`{}`)},
	))
	rec := get("/refresh")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"The datasets updated successfully! The current number of available datasets is 1."`, rec.Body.String())
	assert.Equal(t, 1, s.store.Snapshot().Len())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, s.Close(ctx))
}

func TestNewJob(t *testing.T) {
	cfg := config.New()
	cfg.Cache.Backend = cache.BackendMemory
	loader, err := newLoader(cfg, nil)
	require.NoError(t, err)

	cfg.Refresh.Command = "scrape --all"
	assert.IsType(t, &refresh.CommandJob{}, newJob(cfg, loader, nil))

	cfg.Refresh.Command = ""
	cfg.Refresh.MasaderURL = "file:///tmp/masader.json"
	cfg.Refresh.TagsURL = "file:///tmp/tags.json"
	assert.IsType(t, &refresh.SourceJob{}, newJob(cfg, loader, nil))
}
