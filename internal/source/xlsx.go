package source

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/seenimoa/gaugeviz/pkg/models"
)

// readXLSX reads a worksheet whose first row holds the selects. An empty
// sheet name picks the first sheet of the workbook.
func readXLSX(ctx context.Context, path, sheet string) (*models.QueryResults, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q: missing header row", sheet)
	}
	return fromTable(rows[0], rows[1:]), nil
}
