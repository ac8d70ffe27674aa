package persistence

import (
	"strings"
)

// sortSpec whitelists the columns a listing may be ordered by. Anything
// outside the whitelist falls back to the default column, so caller input
// never reaches the ORDER BY clause verbatim.
type sortSpec struct {
	columns       map[string]bool
	defaultColumn string
	// ascending columns sort A→Z when no direction is given
	ascending map[string]bool
}

var productSort = sortSpec{
	columns: map[string]bool{
		"created_at": true,
		"updated_at": true,
		"name":       true,
		"price":      true,
		"stock":      true,
	},
	defaultColumn: "name",
	ascending:     map[string]bool{"name": true},
}

// clause builds the ORDER BY expression, with id as the tie breaker so that
// paging is stable
func (s sortSpec) clause(orderBy, orderDir string) string {
	column := strings.TrimSpace(orderBy)
	if !s.columns[column] {
		column = s.defaultColumn
	}

	var dir string
	switch strings.ToUpper(strings.TrimSpace(orderDir)) {
	case "ASC":
		dir = "ASC"
	case "DESC":
		dir = "DESC"
	case "":
		dir = "DESC"
		if s.ascending[column] {
			dir = "ASC"
		}
	default:
		dir = "DESC"
	}
	return column + " " + dir + ", id ASC"
}
