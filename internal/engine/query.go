package engine

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"masader/internal/filter"
	"masader/internal/models"
)

// parallelThreshold is the row count below which filtering stays on the
// calling goroutine.
const parallelThreshold = 4096

// Query describes the optional filter and projection applied to a page.
type Query struct {
	// Filter is a boolean expression over record columns, e.g.
	// "Year >= 2020 and License == 'CC BY 4.0'".
	Filter string
	// Fields restricts and orders the columns of every returned record.
	Fields []string
	// Schema lists the columns Filter may reference. When nil it is
	// inferred from the first record.
	Schema models.Schema
}

// Run filters records with q.Filter, then projects them to q.Fields. The
// filter may reference columns that the projection drops. Column names are
// bound against q.Schema.
func Run(ctx context.Context, records []models.Record, q Query) ([]models.Record, error) {
	if q.Filter != "" {
		schema := q.Schema
		if schema == nil {
			schema = models.InferSchema(records)
		}
		pred, err := filter.Compile(q.Filter, schema)
		if err != nil {
			return nil, err
		}
		if records, err = Filter(ctx, records, pred); err != nil {
			return nil, err
		}
	}
	return ProjectAll(records, q.Fields), nil
}

// Filter returns the records matching pred, in input order. Large inputs are
// split into one contiguous chunk per CPU and the partial results are
// concatenated in chunk order.
func Filter(ctx context.Context, records []models.Record, pred *filter.Predicate) ([]models.Record, error) {
	numWorkers := runtime.NumCPU()
	if len(records) < parallelThreshold || numWorkers < 2 {
		return filterChunk(records, pred)
	}

	chunkSize := (len(records) + numWorkers - 1) / numWorkers
	partials := make([][]models.Record, numWorkers)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		if start >= len(records) {
			break
		}
		end := start + chunkSize
		if end > len(records) {
			end = len(records)
		}

		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := filterChunk(records[start:end], pred)
			if err != nil {
				return err
			}
			partials[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	n := 0
	for _, p := range partials {
		n += len(p)
	}
	out := make([]models.Record, 0, n)
	for _, p := range partials {
		out = append(out, p...)
	}
	return out, nil
}

func filterChunk(records []models.Record, pred *filter.Predicate) ([]models.Record, error) {
	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		ok, err := pred.Match(r)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}
