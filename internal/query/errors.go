package query

import (
	"errors"

	"github.com/zjrosen/aipq/internal/filter"
	"github.com/zjrosen/aipq/internal/ordering"
	"github.com/zjrosen/aipq/internal/validator"
)

var (
	// ErrInvalidPageToken covers undecodable tokens, tokens issued for a
	// different filter or ordering, and expired tokens.
	ErrInvalidPageToken = errors.New("invalid page token")
	// ErrInvalidPageSize is returned for negative page sizes.
	ErrInvalidPageSize = errors.New("invalid page size")
)

// Request field names reported by Error.
const (
	FieldFilter    = "filter"
	FieldOrderBy   = "order_by"
	FieldPageSize  = "page_size"
	FieldPageToken = "page_token"
	FieldQuery     = "query"
)

// Error reports which request field made a build fail.
type Error struct {
	Field string
	Err   error
}

func (e *Error) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func fieldError(field string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Field: field, Err: err}
}

// IsClientFault reports whether err was caused by the request rather than
// by configuration or the environment.
func IsClientFault(err error) bool {
	if err == nil {
		return false
	}
	var fsyn *filter.SyntaxError
	var osyn *ordering.SyntaxError
	var verr *validator.Error
	switch {
	case errors.As(err, &fsyn), errors.As(err, &osyn), errors.As(err, &verr):
		return true
	case errors.Is(err, ErrInvalidPageToken), errors.Is(err, ErrInvalidPageSize):
		return true
	case errors.Is(err, ordering.ErrDuplicateField), errors.Is(err, filter.ErrDepthExceeded):
		return true
	case errors.Is(err, validator.ErrLimitExceeded):
		return true
	}
	return false
}
