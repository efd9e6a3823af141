// Package source reads query results from local files. Results are never
// fetched over the network; a file stands in for a query backend.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/seenimoa/gaugeviz/internal/infra"
	"github.com/seenimoa/gaugeviz/internal/result"
	"github.com/seenimoa/gaugeviz/pkg/models"
)

// ErrUnsupportedFormat is returned for file extensions no reader handles.
var ErrUnsupportedFormat = errors.New("source: unsupported format")

// Spec locates one result set. Sheet selects a worksheet of an XLSX file
// (the first sheet by default). Groups marks columns as group-by properties
// instead of selects.
type Spec struct {
	Path   string   `json:"path"             yaml:"path"`
	Sheet  string   `json:"sheet,omitempty"  yaml:"sheet,omitempty"`
	Groups []string `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// Loader reads result files and caches parsed results until the file
// changes or the TTL passes. It is safe for concurrent use.
type Loader struct {
	cache *infra.Cache[*models.QueryResults]
}

// NewLoader creates a loader. A ttl of zero disables caching.
func NewLoader(ttl time.Duration) *Loader {
	l := &Loader{}
	if ttl > 0 {
		l.cache = infra.NewCache[*models.QueryResults](ttl)
	}
	return l
}

// Load reads path with default options.
func Load(ctx context.Context, path string) (*models.QueryResults, error) {
	return NewLoader(0).Load(ctx, Spec{Path: path})
}

// Promise loads spec in the background.
func (l *Loader) Promise(ctx context.Context, spec Spec) *result.Promise {
	return result.Go(ctx, func(ctx context.Context) (*models.QueryResults, error) {
		return l.Load(ctx, spec)
	})
}

// Load reads spec. The returned results share nothing with the cache or
// with earlier calls.
func (l *Loader) Load(ctx context.Context, spec Spec) (*models.QueryResults, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(spec.Path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}

	key := cacheKey(spec, info)
	if l.cache != nil {
		if res, ok := l.cache.Get(key); ok {
			return clone(res), nil
		}
	}

	var res *models.QueryResults
	switch ext := strings.ToLower(filepath.Ext(spec.Path)); ext {
	case ".json":
		res, err = readJSON(spec.Path)
	case ".csv":
		res, err = readCSV(ctx, spec.Path)
	case ".xlsx", ".xlsm":
		res, err = readXLSX(ctx, spec.Path, spec.Sheet)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("source: read %s: %w", spec.Path, err)
	}
	applyGroups(res, spec.Groups)

	if l.cache != nil {
		l.cache.Set(key, clone(res))
	}
	return res, nil
}

func cacheKey(spec Spec, info os.FileInfo) string {
	return strings.Join([]string{
		spec.Path,
		spec.Sheet,
		strings.Join(spec.Groups, ","),
		strconv.FormatInt(info.ModTime().UnixNano(), 10),
		strconv.FormatInt(info.Size(), 10),
	}, "|")
}

// applyGroups moves the named columns from selects to groups.
func applyGroups(res *models.QueryResults, groups []string) {
	if len(groups) == 0 {
		return
	}
	isGroup := make(map[string]bool, len(groups))
	for _, g := range groups {
		isGroup[g] = true
	}
	selects := res.Metadata.Selects[:0:0]
	for _, s := range res.Metadata.Selects {
		if !isGroup[s] {
			selects = append(selects, s)
		}
	}
	res.Metadata.Selects = selects
	res.Metadata.Groups = append([]string(nil), groups...)
}

// sniff converts a text cell to a number or bool when it reads as one.
func sniff(s string) any {
	t := strings.TrimSpace(s)
	if i, err := strconv.ParseInt(t, 10, 64); err == nil {
		return float64(i)
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil {
		return f
	}
	switch strings.ToLower(t) {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}

// fromTable builds results from a header row and data rows. Empty cells
// are left out of their row.
func fromTable(header []string, rows [][]string) *models.QueryResults {
	res := &models.QueryResults{
		Results:  make([]models.Row, 0, len(rows)),
		Metadata: models.Metadata{Selects: make([]string, 0, len(header))},
	}
	for _, h := range header {
		res.Metadata.Selects = append(res.Metadata.Selects, strings.TrimSpace(h))
	}
	for _, cells := range rows {
		row := make(models.Row, len(header))
		for i, cell := range cells {
			if i >= len(header) || strings.TrimSpace(cell) == "" {
				continue
			}
			row[res.Metadata.Selects[i]] = sniff(cell)
		}
		if len(row) > 0 {
			res.Results = append(res.Results, row)
		}
	}
	return res
}

func clone(res *models.QueryResults) *models.QueryResults {
	out := &models.QueryResults{
		Results:  make([]models.Row, len(res.Results)),
		Metadata: res.Metadata.Clone(),
	}
	for i, row := range res.Results {
		cp := make(models.Row, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out.Results[i] = cp
	}
	return out
}
