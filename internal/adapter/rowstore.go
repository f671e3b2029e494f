package adapter

import (
	"context"

	"github.com/sinergia/backend/internal/model"
)

// RowStore persists synced spreadsheet rows grouped by scope.
// Implementations: DynamoDB (production), SQLite (self-hosted), memory (dev/tests).
type RowStore interface {
	// ReplaceScope makes rows the complete content of scope. A reader must
	// never observe a mix of the old and new sets, nor an empty scope when
	// both sets are non-empty.
	ReplaceScope(ctx context.Context, scope model.Scope, rows []model.SyncedRow) error

	// ListRows returns the rows of scope ordered by row number.
	ListRows(ctx context.Context, scope model.Scope) ([]model.SyncedRow, error)
}
