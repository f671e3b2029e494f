// Package ingest syncs spreadsheet ranges into the row store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sinergia/backend/internal/adapter"
	"github.com/sinergia/backend/internal/model"
	"github.com/sinergia/backend/internal/synclock"
)

const (
	opSync     = "sync sheet"
	opListRows = "list rows"
)

// SheetReader reads a cell range from a spreadsheet.
type SheetReader interface {
	ReadRange(ctx context.Context, spreadsheetID, rng string) (*model.SheetValues, error)
}

// SyncRequest names the range to sync and the caller.
type SyncRequest struct {
	SpreadsheetID string
	Range         string
	UserID        string
}

// SyncResult reports a successful sync.
type SyncResult struct {
	Scope    model.Scope
	RowCount int
}

// Message is the human readable summary returned to callers.
func (r SyncResult) Message() string {
	return fmt.Sprintf("Successfully synced %d rows", r.RowCount)
}

// Service replaces a scope's stored rows with the current content of a
// spreadsheet range.
type Service struct {
	reader SheetReader
	store  adapter.RowStore
	locker synclock.Locker
	policy ScopePolicy
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Service.
type Option func(*Service)

// WithLocker serializes syncs of the same scope.
func WithLocker(l synclock.Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithPolicy sets the scope policy. The default is PerUser.
func WithPolicy(p ScopePolicy) Option {
	return func(s *Service) { s.policy = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides the row id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService creates a Service reading from reader and writing to store.
func NewService(reader SheetReader, store adapter.RowStore, opts ...Option) *Service {
	s := &Service{
		reader: reader,
		store:  store,
		policy: PerUser,
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the scope policy in effect.
func (s *Service) Policy() ScopePolicy {
	return s.policy
}

// Sync reads the requested range and makes its data rows the complete content
// of the caller's scope. An empty range fails with NoData and leaves the store
// untouched; a header-only range clears the scope.
func (s *Service) Sync(ctx context.Context, req SyncRequest) (SyncResult, error) {
	scope, err := s.policy.Resolve(opSync, req.SpreadsheetID, req.UserID)
	if err != nil {
		return SyncResult{}, err
	}
	log := s.logger.With(zap.String("sheet_id", scope.SheetID), zap.String("user_id", scope.UserID))

	if s.locker != nil {
		owner := uuid.NewString()
		if _, err := s.locker.Acquire(ctx, scope.Key(), owner); err != nil {
			if errors.Is(err, adapter.ErrLocked) {
				return SyncResult{}, adapter.NewError(adapter.KindSyncInProgress, opSync, "a sync of this sheet is already running", err)
			}
			return SyncResult{}, adapter.NewError(adapter.KindPersistence, opSync, "acquire sync lock: "+err.Error(), err)
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), scope.Key(), owner); err != nil {
				log.Warn("release sync lock failed", zap.Error(err))
			}
		}()
	}

	values, err := s.reader.ReadRange(ctx, scope.SheetID, req.Range)
	if err != nil {
		return SyncResult{}, err
	}
	if values == nil || len(values.Values) == 0 {
		return SyncResult{}, adapter.NewError(adapter.KindNoData, opSync, "No data found in sheet", nil)
	}

	rows := MapRows(scope, values.Values, s.now().UTC(), s.newID)
	if err := s.store.ReplaceScope(ctx, scope, rows); err != nil {
		return SyncResult{}, adapter.NewError(adapter.KindPersistence, opSync, "replace rows: "+err.Error(), err)
	}

	log.Info("sheet synced", zap.String("range", values.Range), zap.Int("row_count", len(rows)))
	return SyncResult{Scope: scope, RowCount: len(rows)}, nil
}

// Rows returns the stored rows of the caller's scope ordered by row number.
func (s *Service) Rows(ctx context.Context, spreadsheetID, userID string) ([]model.SyncedRow, error) {
	scope, err := s.policy.Resolve(opListRows, spreadsheetID, userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListRows(ctx, scope)
	if err != nil {
		return nil, adapter.NewError(adapter.KindPersistence, opListRows, err.Error(), err)
	}
	return rows, nil
}

// Read returns the raw values of a range without touching the store.
func (s *Service) Read(ctx context.Context, spreadsheetID, rng string) (*model.SheetValues, error) {
	return s.reader.ReadRange(ctx, spreadsheetID, rng)
}
