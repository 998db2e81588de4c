// ============================================================================
// backend/internal/shared/errors.go
// Error taxonomy shared by the grading core, the store and the gateway
// ============================================================================

package shared

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error is a domain error carrying the gRPC code the gateway maps to HTTP.
// It satisfies the interface status.FromError looks for, so wrapped domain
// errors translate the same way service errors did.
type Error struct {
	Code    codes.Code
	Message string
}

func (e *Error) Error() string { return e.Message }

// GRPCStatus returns the status representation of the error.
func (e *Error) GRPCStatus() *status.Status { return status.New(e.Code, e.Message) }

var (
	// ErrNotFound is returned when a lookup query or record ID matches nothing.
	ErrNotFound = &Error{Code: codes.NotFound, Message: "Invalid name or ID number. Please try again."}

	// ErrStoreUnavailable wraps any backend/connectivity failure of the record store.
	ErrStoreUnavailable = &Error{Code: codes.Unavailable, Message: "Error connecting to database. Please try again later."}

	// ErrInvalidToken is returned for malformed, forged or expired session tokens.
	ErrInvalidToken = &Error{Code: codes.Unauthenticated, Message: "Session expired. Please look up your record again."}

	// ErrUnknownTemplate is returned when a request names a grading template that is not configured.
	ErrUnknownTemplate = &Error{Code: codes.InvalidArgument, Message: "unknown grading template"}
)

// Unavailable joins cause with ErrStoreUnavailable so errors.Is matches the
// sentinel while the driver error is kept for logging.
func Unavailable(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStoreUnavailable, cause))
}

// ValidationError describes an upload row or edit rejected for a missing or
// malformed required field.
type ValidationError struct {
	Row    int    // 1-based spreadsheet row, 0 for single-record edits
	Field  string // offending field name
	Reason string
}

func (e ValidationError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("row %d: %s %s", e.Row, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// GRPCStatus maps validation failures to InvalidArgument.
func (e ValidationError) GRPCStatus() *status.Status {
	return status.New(codes.InvalidArgument, e.Error())
}
