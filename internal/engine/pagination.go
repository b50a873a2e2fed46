package engine

import (
	"masader/internal/errors"
	"masader/internal/models"
)

// PageNotFound is the message returned for an empty page.
const PageNotFound = "Page not found."

// Paginate returns records[(page-1)*size : page*size] clipped to the
// available length. An empty result, whatever the reason, is reported as
// ErrNotFound: an empty but valid page cannot be told apart from one that is
// out of range.
func Paginate(records []models.Record, page, size int) ([]models.Record, error) {
	if page < 1 || size < 1 {
		return nil, errors.New(errors.ErrNotFound, PageNotFound)
	}
	total := len(records)
	// Guard the multiplication; any start past total is out of range.
	if page-1 > total/size {
		return nil, errors.New(errors.ErrNotFound, PageNotFound)
	}
	start := (page - 1) * size
	end := start + size
	if end > total || end < start {
		end = total
	}
	if start >= end {
		return nil, errors.New(errors.ErrNotFound, PageNotFound)
	}
	return records[start:end], nil
}
