package ingest

import (
	"fmt"
	"strings"

	"github.com/sinergia/backend/internal/adapter"
	"github.com/sinergia/backend/internal/model"
)

// ScopePolicy decides how synced rows are grouped for replacement.
type ScopePolicy string

const (
	// PerUser keeps one row set per sheet and caller. Syncing requires a
	// caller identity.
	PerUser ScopePolicy = "user"
	// PerSheet keeps a single row set per sheet shared by every caller.
	PerSheet ScopePolicy = "sheet"
)

// ParseScopePolicy parses a SYNC_SCOPE value. Empty selects PerUser.
func ParseScopePolicy(s string) (ScopePolicy, error) {
	switch ScopePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PerUser:
		return PerUser, nil
	case PerSheet:
		return PerSheet, nil
	}
	return "", fmt.Errorf("unknown scope policy %q (want %q or %q)", s, PerUser, PerSheet)
}

// Resolve returns the scope of spreadsheetID for userID under the policy.
func (p ScopePolicy) Resolve(op, spreadsheetID, userID string) (model.Scope, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return model.Scope{}, adapter.NewError(adapter.KindMissingParameter, op, "spreadsheetId is required", nil)
	}
	if p == PerSheet {
		return model.Scope{SheetID: spreadsheetID}, nil
	}
	if userID == "" {
		return model.Scope{}, adapter.NewError(adapter.KindAuthenticationRequired, op, "User not authenticated", nil)
	}
	return model.Scope{SheetID: spreadsheetID, UserID: userID}, nil
}
