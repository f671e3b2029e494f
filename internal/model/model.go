package model

import "time"

// ServiceAccountCredential is the Google service-account JSON bundle.
// Only ClientEmail, PrivateKey and TokenURI take part in the token exchange.
type ServiceAccountCredential struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	ClientID     string `json:"client_id"`
	TokenURI     string `json:"token_uri"`
}

// AccessToken is a bearer token obtained from the service-account exchange.
type AccessToken struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SheetValues is the raw values structure returned by the Sheets API.
type SheetValues struct {
	Range          string     `json:"range"`
	MajorDimension string     `json:"majorDimension"`
	Values         [][]string `json:"values"`
}

// SyncedRow is a spreadsheet data row persisted by a sync.
type SyncedRow struct {
	ID        string            `json:"id"`
	SheetID   string            `json:"sheet_id"`
	RowNumber int               `json:"row_number"`
	Data      map[string]string `json:"data"`
	UserID    string            `json:"user_id,omitempty"`
	SyncedAt  time.Time         `json:"synced_at"`
}

// Scope groups the rows a sync replaces. UserID is empty when rows are
// shared per sheet.
type Scope struct {
	SheetID string
	UserID  string
}

// Key returns the partition key for the scope.
func (s Scope) Key() string {
	if s.UserID == "" {
		return s.SheetID
	}
	return s.SheetID + "#" + s.UserID
}

// SyncLock is a lease on a scope held while its rows are being replaced.
type SyncLock struct {
	ScopeKey  string `json:"scope_key" dynamodbav:"scope_key"`
	Owner     string `json:"owner" dynamodbav:"owner"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix timestamp)
}
