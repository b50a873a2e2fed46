package engine

import (
	"masader/internal/errors"
	"masader/internal/models"
)

// GetByIndex returns the record at the 1-based index, projected to fields.
func GetByIndex(records []models.Record, index int, fields []string) (models.Record, error) {
	if index < 1 || index > len(records) {
		return models.Record{}, errors.Newf(errors.ErrNotFound,
			"Dataset index is out of range, the index should be between 1 and %d.", len(records))
	}
	return Project(records[index-1], fields), nil
}
