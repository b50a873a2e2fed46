package engine

import (
	"masader/internal/models"
)

// Project restricts m to the requested fields, in the requested order.
// Fields m does not have are skipped. An empty field list returns m
// unchanged. Works for a single record as well as for the tag mapping.
func Project[V any](m models.Map[V], fields []string) models.Map[V] {
	if len(fields) == 0 {
		return m
	}
	var out models.Map[V]
	for _, f := range fields {
		if v, ok := m.Get(f); ok {
			out.Set(f, v)
		}
	}
	return out
}

// ProjectAll applies Project to every record.
func ProjectAll(records []models.Record, fields []string) []models.Record {
	if len(fields) == 0 {
		return records
	}
	out := make([]models.Record, len(records))
	for i, r := range records {
		out[i] = Project(r, fields)
	}
	return out
}
