package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sinergia/backend/internal/adapter"
	"github.com/sinergia/backend/internal/model"
)

var _ adapter.RowStore = (*RowStore)(nil)

// RowStore is the SQLite implementation of adapter.RowStore.
type RowStore struct {
	db *DB
}

func NewRowStore(db *DB) *RowStore {
	return &RowStore{db: db}
}

// ReplaceScope deletes the scope's rows and inserts the new set in one
// transaction.
func (r *RowStore) ReplaceScope(ctx context.Context, scope model.Scope, rows []model.SyncedRow) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	const deleteQuery = `DELETE FROM sheet_rows WHERE sheet_id = ? AND user_id = ?`
	if _, err := tx.ExecContext(ctx, deleteQuery, scope.SheetID, scope.UserID); err != nil {
		return fmt.Errorf("delete rows of %s: %w", scope.Key(), err)
	}

	const insertQuery = `
		INSERT INTO sheet_rows (id, sheet_id, user_id, row_number, data, synced_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		data, err := json.Marshal(row.Data)
		if err != nil {
			return fmt.Errorf("encode row %d data: %w", row.RowNumber, err)
		}
		if _, err := stmt.ExecContext(ctx,
			row.ID, scope.SheetID, scope.UserID, row.RowNumber, string(data),
			row.SyncedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert row %d of %s: %w", row.RowNumber, scope.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rows of %s: %w", scope.Key(), err)
	}
	return nil
}

// ListRows returns the scope's rows ordered by row number.
func (r *RowStore) ListRows(ctx context.Context, scope model.Scope) ([]model.SyncedRow, error) {
	const query = `
		SELECT id, sheet_id, user_id, row_number, data, synced_at
		FROM sheet_rows
		WHERE sheet_id = ? AND user_id = ?
		ORDER BY row_number
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, scope.SheetID, scope.UserID)
	if err != nil {
		return nil, fmt.Errorf("query rows of %s: %w", scope.Key(), err)
	}
	defer rows.Close()

	out := []model.SyncedRow{}
	for rows.Next() {
		var (
			row      model.SyncedRow
			data     string
			syncedAt string
		)
		if err := rows.Scan(&row.ID, &row.SheetID, &row.UserID, &row.RowNumber, &data, &syncedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &row.Data); err != nil {
			return nil, fmt.Errorf("decode row %d data: %w", row.RowNumber, err)
		}
		row.SyncedAt, err = time.Parse(time.RFC3339Nano, syncedAt)
		if err != nil {
			return nil, fmt.Errorf("parse synced_at of row %d: %w", row.RowNumber, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
