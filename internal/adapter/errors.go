package adapter

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies pipeline failures.
type Kind string

const (
	KindConfiguration          Kind = "configuration"
	KindAuthExchange           Kind = "auth_exchange"
	KindUpstream               Kind = "upstream"
	KindMissingParameter       Kind = "missing_parameter"
	KindInvalidParameter       Kind = "invalid_parameter"
	KindAuthenticationRequired Kind = "authentication_required"
	KindNoData                 Kind = "no_data"
	KindPersistence            Kind = "persistence"
	KindSyncInProgress         Kind = "sync_in_progress"
)

var (
	// ErrNotFound is returned when a requested resource is not found.
	ErrNotFound = errors.New("resource not found")

	// ErrLocked is returned when another caller holds the lock on a scope.
	ErrLocked = errors.New("scope is locked by another sync")
)

// Error is a classified failure of the ingestion pipeline.
type Error struct {
	Kind   Kind
	Op     string
	Detail string

	// StatusCode is the upstream HTTP status, zero when no response was received.
	StatusCode int
	// Temporary marks transport failures and timeouts.
	Temporary bool

	Err error
}

// NewError creates an Error of the given kind.
func NewError(kind Kind, op, detail string, err error) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail, Err: err}
}

func (e *Error) Error() string {
	msg := e.Detail
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether a caller may retry after backing off.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindAuthExchange, KindSyncInProgress:
		return true
	case KindUpstream:
		return e.Temporary || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	}
	return false
}

// Transient reports whether the failure is worth retrying inside the same
// request: transport errors, timeouts, 429 and 5xx.
func (e *Error) Transient() bool {
	return e.Temporary || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// HTTPStatus maps the kind to the status returned at the function boundary.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindMissingParameter, KindInvalidParameter:
		return http.StatusBadRequest
	case KindAuthenticationRequired:
		return http.StatusUnauthorized
	case KindNoData:
		return http.StatusNotFound
	case KindSyncInProgress:
		return http.StatusConflict
	case KindAuthExchange, KindUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
