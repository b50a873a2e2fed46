package engine_test

import (
	"context"
	"fmt"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"masader/internal/engine"
	"masader/internal/errors"
	"masader/internal/models"
)

func sample() []models.Record {
	return []models.Record{
		models.NewRecord(models.Field{Name: "name", Value: models.String("A")}, models.Field{Name: "size", Value: models.Int(10)}),
		models.NewRecord(models.Field{Name: "name", Value: models.String("B")}, models.Field{Name: "size", Value: models.Int(20)}),
		models.NewRecord(models.Field{Name: "name", Value: models.String("C")}, models.Field{Name: "size", Value: models.Int(30)}),
	}
}

func numbered(n int) []models.Record {
	out := make([]models.Record, n)
	for i := range out {
		out[i] = models.NewRecord(
			models.Field{Name: "id", Value: models.Int(int64(i))},
			models.Field{Name: "name", Value: models.String(fmt.Sprintf("ds-%d", i))},
		)
	}
	return out
}

func marshal(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestPaginate(t *testing.T) {
	records := numbered(25)

	t.Run("full pages", func(t *testing.T) {
		for _, size := range []int{1, 5, 10, 25} {
			for page := 1; page*size <= len(records); page++ {
				got, err := engine.Paginate(records, page, size)
				require.NoError(t, err)
				require.Len(t, got, size)
				first, _ := got[0].Get("id")
				assert.Equal(t, int64((page-1)*size), first.Int())
			}
		}
	})

	t.Run("last partial page", func(t *testing.T) {
		got, err := engine.Paginate(records, 3, 10)
		require.NoError(t, err)
		assert.Len(t, got, 5)
	})

	t.Run("not found", func(t *testing.T) {
		testCases := []struct {
			name       string
			records    []models.Record
			page, size int
		}{
			{name: "beyond data", records: numbered(5), page: 1000, size: 10},
			{name: "just past end", records: numbered(4), page: 3, size: 2},
			{name: "empty dataset", records: nil, page: 1, size: 1},
			{name: "zero size", records: numbered(5), page: 1, size: 0},
			{name: "negative size", records: numbered(5), page: 1, size: -3},
			{name: "zero page", records: numbered(5), page: 0, size: 2},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := engine.Paginate(tc.records, tc.page, tc.size)
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrNotFound))
				assert.Equal(t, engine.PageNotFound, errors.Message(err))
			})
		}
	})
}

func TestProject(t *testing.T) {
	r := sample()[0]

	assert.Equal(t, r, engine.Project(r, nil))
	assert.Equal(t, r, engine.Project(r, []string{}))

	got := engine.Project(r, []string{"size", "missing", "name"})
	assert.Equal(t, []string{"size", "name"}, got.Keys())
	assert.Equal(t, `{"size":10,"name":"A"}`, marshal(t, got))

	assert.Equal(t, `{}`, marshal(t, engine.Project(r, []string{"missing"})))
}

func TestProjectTags(t *testing.T) {
	var tags models.Tags
	require.NoError(t, json.Unmarshal([]byte(`{"License":["MIT"],"Year":[2020],"Form":["text","audio"]}`), &tags))

	got := engine.Project(tags, []string{"Form", "License"})
	assert.Equal(t, `{"Form":["text","audio"],"License":["MIT"]}`, marshal(t, got))
}

func TestGetByIndex(t *testing.T) {
	records := sample()

	got, err := engine.GetByIndex(records, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, records[0], got)

	got, err = engine.GetByIndex(records, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"B","size":20}`, marshal(t, got))

	got, err = engine.GetByIndex(records, 3, []string{"size"})
	require.NoError(t, err)
	assert.Equal(t, `{"size":30}`, marshal(t, got))

	for _, index := range []int{0, 4, -1} {
		_, err := engine.GetByIndex(records, index, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrNotFound))
		assert.Equal(t, "Dataset index is out of range, the index should be between 1 and 3.", errors.Message(err))
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("filter then project", func(t *testing.T) {
		got, err := engine.Run(ctx, sample(), engine.Query{Filter: "size>15", Fields: []string{"name"}})
		require.NoError(t, err)
		assert.Equal(t, `[{"name":"B"},{"name":"C"}]`, marshal(t, got))
	})

	t.Run("projection reorders columns", func(t *testing.T) {
		got, err := engine.Run(ctx, sample()[:1], engine.Query{Fields: []string{"size", "name"}})
		require.NoError(t, err)
		assert.Equal(t, `[{"size":10,"name":"A"}]`, marshal(t, got))
	})

	t.Run("no query", func(t *testing.T) {
		got, err := engine.Run(ctx, sample(), engine.Query{})
		require.NoError(t, err)
		assert.Equal(t, sample(), got)
	})

	t.Run("nothing matches", func(t *testing.T) {
		got, err := engine.Run(ctx, sample(), engine.Query{Filter: "size > 100"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := engine.Run(ctx, sample(), engine.Query{Filter: "year > 1"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrQuery))
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := engine.Run(ctx, sample(), engine.Query{Filter: "size >> 1"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrQuery))
	})

	t.Run("filter binds against the catalog schema", func(t *testing.T) {
		records := []models.Record{
			models.NewRecord(models.Field{Name: "name", Value: models.String("A")}, models.Field{Name: "size", Value: models.Int(10)}),
			models.NewRecord(models.Field{Name: "name", Value: models.String("X")}, models.Field{Name: "size", Value: models.Int(20)}),
			models.NewRecord(models.Field{Name: "name", Value: models.String("B")}),
			models.NewRecord(models.Field{Name: "name", Value: models.String("C")}, models.Field{Name: "size", Value: models.Int(30)}),
		}
		page, err := engine.Paginate(records, 2, 2)
		require.NoError(t, err)

		got, err := engine.Run(ctx, page, engine.Query{Filter: "size > 15", Schema: models.InferSchema(records)})
		require.NoError(t, err)
		assert.Equal(t, `[{"name":"C","size":30}]`, marshal(t, got))

		// Without a schema the page's first record decides.
		_, err = engine.Run(ctx, page, engine.Query{Filter: "size > 15"})
		assert.True(t, errors.Is(err, errors.ErrQuery))
	})

	t.Run("parallel keeps order", func(t *testing.T) {
		records := numbered(20000)
		got, err := engine.Run(ctx, records, engine.Query{Filter: "id >= 100 and id < 19900", Fields: []string{"id"}})
		require.NoError(t, err)
		require.Len(t, got, 19800)
		for i, r := range got {
			v, _ := r.Get("id")
			if v.Int() != int64(i+100) {
				t.Fatalf("record %d out of order: %v", i, v)
			}
		}
	})

	t.Run("parallel error", func(t *testing.T) {
		_, err := engine.Run(ctx, numbered(20000), engine.Query{Filter: "name > 5"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrQuery))
	})
}
