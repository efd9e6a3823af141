package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/seenimoa/gaugeviz/pkg/models"
)

// readJSON accepts either a full result set ({"results": [...],
// "metadata": {...}}) or a bare array of rows. Missing selects are taken
// from the keys of the first row, sorted.
func readJSON(path string) (*models.QueryResults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var res models.QueryResults
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &res.Results); err != nil {
			return nil, fmt.Errorf("decode rows: %w", err)
		}
	} else if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}

	if res.Results == nil {
		res.Results = []models.Row{}
	}
	if len(res.Metadata.Selects) == 0 && len(res.Results) > 0 {
		for k := range res.Results[0] {
			res.Metadata.Selects = append(res.Metadata.Selects, k)
		}
		sort.Strings(res.Metadata.Selects)
	}
	return &res, nil
}
