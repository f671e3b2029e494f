package ingest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sinergia/backend/internal/model"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("row-%d", n)
	}
}

func TestMapRows(t *testing.T) {
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	scope := model.Scope{SheetID: "SHEET_A", UserID: "u1"}

	tests := []struct {
		name   string
		values [][]string
		want   []model.SyncedRow
	}{
		{
			name:   "empty",
			values: nil,
			want:   nil,
		},
		{
			name:   "header only",
			values: [][]string{{"Name"}},
			want:   []model.SyncedRow{},
		},
		{
			name:   "short and long rows",
			values: [][]string{{"Name", "Email"}, {"Ana"}, {"Bo", "bo@x.com", "extra"}},
			want: []model.SyncedRow{
				{ID: "row-1", SheetID: "SHEET_A", UserID: "u1", RowNumber: 2, SyncedAt: at, Data: map[string]string{"Name": "Ana", "Email": ""}},
				{ID: "row-2", SheetID: "SHEET_A", UserID: "u1", RowNumber: 3, SyncedAt: at, Data: map[string]string{"Name": "Bo", "Email": "bo@x.com"}},
			},
		},
		{
			name:   "empty header row",
			values: [][]string{{}, {"orphan"}},
			want: []model.SyncedRow{
				{ID: "row-1", SheetID: "SHEET_A", UserID: "u1", RowNumber: 2, SyncedAt: at, Data: map[string]string{}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapRows(scope, tt.values, at, sequentialIDs())
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("MapRows mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMapRows_KeySetEqualsHeader(t *testing.T) {
	header := []string{"A", "B", "C", "D"}
	values := [][]string{header, {}, {"1"}, {"1", "2", "3", "4"}}

	rows := MapRows(model.Scope{SheetID: "s"}, values, time.Now(), sequentialIDs())
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row.RowNumber != i+2 {
			t.Errorf("row %d: row_number = %d", i, row.RowNumber)
		}
		if len(row.Data) != len(header) {
			t.Errorf("row %d: %d keys, want %d", i, len(row.Data), len(header))
		}
		for _, key := range header {
			if _, ok := row.Data[key]; !ok {
				t.Errorf("row %d: missing key %q", i, key)
			}
		}
	}
}

func TestParseScopePolicy(t *testing.T) {
	for in, want := range map[string]ScopePolicy{"": PerUser, "user": PerUser, " Sheet ": PerSheet} {
		got, err := ParseScopePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseScopePolicy(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseScopePolicy("global"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
