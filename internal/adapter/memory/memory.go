package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/sinergia/backend/internal/model"
)

// RowStore implements adapter.RowStore in process memory, for dev mode and
// tests. Each replace swaps the scope's slice under the lock.
type RowStore struct {
	scopes map[string][]model.SyncedRow
	mu     sync.RWMutex
}

func NewRowStore() *RowStore {
	return &RowStore{scopes: make(map[string][]model.SyncedRow)}
}

func (s *RowStore) ReplaceScope(_ context.Context, scope model.Scope, rows []model.SyncedRow) error {
	copied := make([]model.SyncedRow, len(rows))
	for i, row := range rows {
		copied[i] = cloneRow(row)
	}
	sort.Slice(copied, func(i, j int) bool { return copied[i].RowNumber < copied[j].RowNumber })

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(copied) == 0 {
		delete(s.scopes, scope.Key())
		return nil
	}
	s.scopes[scope.Key()] = copied
	return nil
}

func (s *RowStore) ListRows(_ context.Context, scope model.Scope) ([]model.SyncedRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.scopes[scope.Key()]
	out := make([]model.SyncedRow, len(rows))
	for i, row := range rows {
		out[i] = cloneRow(row)
	}
	return out, nil
}

// Scopes returns the number of non-empty scopes.
func (s *RowStore) Scopes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.scopes)
}

func cloneRow(row model.SyncedRow) model.SyncedRow {
	data := make(map[string]string, len(row.Data))
	for k, v := range row.Data {
		data[k] = v
	}
	row.Data = data
	return row
}
