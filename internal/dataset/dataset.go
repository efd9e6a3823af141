// Package dataset turns query results into chart-ready series.
package dataset

import (
	"fmt"
	"strings"

	"github.com/seenimoa/gaugeviz/pkg/models"
)

// XKey is the key of the synthetic sequence column in every data row.
const XKey = "_x"

// groupSeparator joins group values (and the select label) into a series label.
const groupSeparator = " / "

// ChartDataset is the product of one render cycle.
type ChartDataset interface {
	// Labels returns the series labels in display order.
	Labels() []string
	// Data returns one map per x position, keyed by XKey and series label.
	Data() []map[string]any
	// Select maps a series label back to the select it was built from.
	// Unknown labels return "".
	Select(label string) string
}

// Formatters are the display hooks threaded into dataset construction.
// Nil hooks fall back to the raw select name and the raw group value.
type Formatters struct {
	SelectLabel func(selectName string) string
	GroupValue  func(groupName string, value any) any
}

func (f Formatters) selectLabel(name string) string {
	if f.SelectLabel == nil {
		return name
	}
	return f.SelectLabel(name)
}

func (f Formatters) groupValue(group string, value any) any {
	if f.GroupValue == nil {
		return value
	}
	return f.GroupValue(group, value)
}

// StandardDataset is the ChartDataset for plain and grouped result sets.
type StandardDataset struct {
	labels  []string
	data    []map[string]any
	selects map[string]string
}

var _ ChartDataset = (*StandardDataset)(nil)

// NewStandardDataset builds a dataset from results using metadata.Selects
// as the displayed series. The results are read, never modified.
func NewStandardDataset(results *models.QueryResults, f Formatters) *StandardDataset {
	ds := &StandardDataset{
		data:    []map[string]any{},
		selects: make(map[string]string),
	}
	if results == nil {
		return ds
	}

	if len(results.Metadata.Groups) > 0 {
		ds.buildGrouped(results, f)
	} else {
		ds.buildPlain(results, f)
	}
	return ds
}

// buildPlain yields one series per select and one data row per result row.
// When two selects format to the same label the first select owns both the
// label and its values.
func (ds *StandardDataset) buildPlain(results *models.QueryResults, f Formatters) {
	selects := results.Metadata.Selects
	labels := make([]string, len(selects))
	for i, s := range selects {
		labels[i] = f.selectLabel(s)
		ds.addLabel(labels[i], s)
	}

	for i, row := range results.Results {
		point := map[string]any{XKey: i}
		for j, s := range selects {
			if ds.selects[labels[j]] != s {
				continue
			}
			if v, ok := row[s]; ok {
				point[labels[j]] = v
			}
		}
		ds.data = append(ds.data, point)
	}
}

// buildGrouped yields one series per (row, select) pair, all on a single
// x position.
func (ds *StandardDataset) buildGrouped(results *models.QueryResults, f Formatters) {
	selects := results.Metadata.Selects
	groups := results.Metadata.Groups
	point := map[string]any{XKey: 0}

	for _, row := range results.Results {
		parts := make([]string, 0, len(groups))
		for _, g := range groups {
			v, ok := row[g]
			if !ok || v == nil {
				continue
			}
			parts = append(parts, fmt.Sprint(f.groupValue(g, v)))
		}
		base := strings.Join(parts, groupSeparator)

		for _, s := range selects {
			label := base
			switch {
			case base == "":
				label = f.selectLabel(s)
			case len(selects) > 1:
				label = base + groupSeparator + f.selectLabel(s)
			}
			ds.addLabel(label, s)
			if _, set := point[label]; set || ds.selects[label] != s {
				continue
			}
			if v, ok := row[s]; ok {
				point[label] = v
			}
		}
	}

	if len(results.Results) > 0 {
		ds.data = append(ds.data, point)
	}
}

func (ds *StandardDataset) addLabel(label, selectName string) {
	if _, seen := ds.selects[label]; seen {
		return
	}
	ds.selects[label] = selectName
	ds.labels = append(ds.labels, label)
}

// Labels returns the unique series labels in first-seen order.
func (ds *StandardDataset) Labels() []string {
	return append([]string(nil), ds.labels...)
}

// Data returns the chart rows.
func (ds *StandardDataset) Data() []map[string]any {
	return ds.data
}

// Select returns the select behind label.
func (ds *StandardDataset) Select(label string) string {
	return ds.selects[label]
}

// Latest returns the last value recorded for label across the data rows.
func Latest(ds ChartDataset, label string) (any, bool) {
	rows := ds.Data()
	for i := len(rows) - 1; i >= 0; i-- {
		if v, ok := rows[i][label]; ok {
			return v, true
		}
	}
	return nil, false
}
