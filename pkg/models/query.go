// Package models defines the data structures shared across gaugeviz:
// query results as delivered by a query backend and the visualization
// options supplied by callers.
package models

// Row is a single result row keyed by select (or group) name.
type Row map[string]any

// Metadata describes the shape of a result set.
type Metadata struct {
	Selects  []string `json:"selects"`           // ordered select names
	Groups   []string `json:"groups,omitempty"`   // group-by property names
	Interval string   `json:"interval,omitempty"` // e.g. "hourly", empty when not bucketed
	Timezone string   `json:"timezone,omitempty"` // IANA zone of interval buckets
}

// Clone returns a deep copy of the metadata so callers can rewrite the
// select list without touching the original results.
func (m Metadata) Clone() Metadata {
	out := m
	out.Selects = append([]string(nil), m.Selects...)
	out.Groups = append([]string(nil), m.Groups...)
	return out
}

// QueryResults is a resolved query result set.
type QueryResults struct {
	Results  []Row    `json:"results"`
	Metadata Metadata `json:"metadata"`
}

// First returns the first row, or nil when the result set is empty.
func (q *QueryResults) First() Row {
	if q == nil || len(q.Results) == 0 {
		return nil
	}
	return q.Results[0]
}

// Len returns the number of rows.
func (q *QueryResults) Len() int {
	if q == nil {
		return 0
	}
	return len(q.Results)
}
