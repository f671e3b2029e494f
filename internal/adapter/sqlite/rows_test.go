package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sinergia/backend/internal/model"
)

func sampleRows(scope model.Scope, names ...string) []model.SyncedRow {
	at := time.Date(2026, 3, 1, 9, 30, 0, 123, time.UTC)
	rows := make([]model.SyncedRow, len(names))
	for i, name := range names {
		rows[i] = model.SyncedRow{
			ID:        fmt.Sprintf("%s-%s-%d", scope.Key(), name, i),
			SheetID:   scope.SheetID,
			UserID:    scope.UserID,
			RowNumber: i + 2,
			Data:      map[string]string{"Name": name, "Email": ""},
			SyncedAt:  at,
		}
	}
	return rows
}

func TestRowStore_ReplaceAndList(t *testing.T) {
	store := NewRowStore(setupTestDB(t))
	ctx := context.Background()
	scope := model.Scope{SheetID: "SHEET_A", UserID: "u1"}

	want := sampleRows(scope, "Ana", "Bo")
	if err := store.ReplaceScope(ctx, scope, want); err != nil {
		t.Fatalf("ReplaceScope failed: %v", err)
	}

	got, err := store.ListRows(ctx, scope)
	if err != nil {
		t.Fatalf("ListRows failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListRows mismatch (-want +got):\n%s", diff)
	}
}

func TestRowStore_ReplaceIsIdempotent(t *testing.T) {
	store := NewRowStore(setupTestDB(t))
	ctx := context.Background()
	scope := model.Scope{SheetID: "SHEET_A", UserID: "u1"}

	first := sampleRows(scope, "Ana", "Bo", "Cy")
	second := sampleRows(scope, "Ana", "Bo", "Cy")
	for i := range second {
		second[i].ID += "-again"
	}

	if err := store.ReplaceScope(ctx, scope, first); err != nil {
		t.Fatalf("first ReplaceScope failed: %v", err)
	}
	if err := store.ReplaceScope(ctx, scope, second); err != nil {
		t.Fatalf("second ReplaceScope failed: %v", err)
	}

	got, _ := store.ListRows(ctx, scope)
	if len(got) != 3 {
		t.Fatalf("expected 3 rows after repeated sync, got %d", len(got))
	}
	if diff := cmp.Diff(second, got); diff != "" {
		t.Errorf("ListRows mismatch (-want +got):\n%s", diff)
	}
}

func TestRowStore_EmptyReplaceClearsOnlyScope(t *testing.T) {
	store := NewRowStore(setupTestDB(t))
	ctx := context.Background()
	mine := model.Scope{SheetID: "SHEET_A", UserID: "u1"}
	theirs := model.Scope{SheetID: "SHEET_A", UserID: "u2"}
	shared := model.Scope{SheetID: "SHEET_A"}

	_ = store.ReplaceScope(ctx, mine, sampleRows(mine, "a", "b"))
	_ = store.ReplaceScope(ctx, theirs, sampleRows(theirs, "c"))
	_ = store.ReplaceScope(ctx, shared, sampleRows(shared, "d"))

	if err := store.ReplaceScope(ctx, mine, nil); err != nil {
		t.Fatalf("ReplaceScope failed: %v", err)
	}

	for scope, want := range map[model.Scope]int{mine: 0, theirs: 1, shared: 1} {
		got, err := store.ListRows(ctx, scope)
		if err != nil {
			t.Fatalf("ListRows(%s) failed: %v", scope.Key(), err)
		}
		if len(got) != want {
			t.Errorf("scope %s: expected %d rows, got %d", scope.Key(), want, len(got))
		}
	}
}

func TestRowStore_FailedReplaceRollsBack(t *testing.T) {
	store := NewRowStore(setupTestDB(t))
	ctx := context.Background()
	scope := model.Scope{SheetID: "SHEET_A", UserID: "u1"}

	want := sampleRows(scope, "Ana")
	_ = store.ReplaceScope(ctx, scope, want)

	bad := sampleRows(scope, "x", "y")
	bad[1].RowNumber = 1 // violates the row_number check
	if err := store.ReplaceScope(ctx, scope, bad); err == nil {
		t.Fatal("expected ReplaceScope to fail")
	}

	got, _ := store.ListRows(ctx, scope)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("previous rows should survive a failed replace (-want +got):\n%s", diff)
	}
}

func TestRowStore_ListEmptyScope(t *testing.T) {
	store := NewRowStore(setupTestDB(t))

	got, err := store.ListRows(context.Background(), model.Scope{SheetID: "nothing"})
	if err != nil {
		t.Fatalf("ListRows failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestMigrationVersion(t *testing.T) {
	db := setupTestDB(t)

	version, dirty, err := MigrationVersion(db.Writer)
	if err != nil {
		t.Fatalf("MigrationVersion failed: %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("version = %d dirty = %v, want 1 false", version, dirty)
	}

	if err := RunMigrations(db.Writer); err != nil {
		t.Errorf("re-running migrations should be a no-op: %v", err)
	}
}
