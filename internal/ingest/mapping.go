package ingest

import (
	"time"

	"github.com/sinergia/backend/internal/model"
)

// firstDataRow is the spreadsheet row number of the first row after the header.
const firstDataRow = 2

// MapRows turns values into rows of scope. The first row is the header; every
// following row becomes one SyncedRow whose data has exactly the header keys.
// Missing trailing cells map to "" and cells beyond the header are dropped.
func MapRows(scope model.Scope, values [][]string, syncedAt time.Time, newID func() string) []model.SyncedRow {
	if len(values) == 0 {
		return nil
	}
	header := values[0]

	rows := make([]model.SyncedRow, 0, len(values)-1)
	for i, cells := range values[1:] {
		data := make(map[string]string, len(header))
		for col, key := range header {
			if col < len(cells) {
				data[key] = cells[col]
			} else {
				data[key] = ""
			}
		}
		rows = append(rows, model.SyncedRow{
			ID:        newID(),
			SheetID:   scope.SheetID,
			RowNumber: i + firstDataRow,
			Data:      data,
			UserID:    scope.UserID,
			SyncedAt:  syncedAt,
		})
	}
	return rows
}
