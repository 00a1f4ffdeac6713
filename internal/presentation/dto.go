package presentation

import (
	"encoding/hex"
	"errors"
	"time"

	"github.com/zjrosen/aipq/internal/filter"
	"github.com/zjrosen/aipq/internal/pagetoken"
	"github.com/zjrosen/aipq/internal/query"
	"github.com/zjrosen/aipq/internal/sqlgen"
	"github.com/zjrosen/aipq/internal/validator"
	"github.com/zjrosen/aipq/internal/value"
)

// FilterDTO describes a parsed filter.
type FilterDTO struct {
	Filter string   `json:"filter"`
	Names  []string `json:"names"`
	Nodes  int      `json:"nodes"`
}

// FromFilter converts a parsed filter to a DTO.
func FromFilter(f *filter.Filter) FilterDTO {
	names := f.Names()
	if names == nil {
		names = []string{}
	}
	return FilterDTO{Filter: f.String(), Names: names, Nodes: f.Len()}
}

// QueryDTO represents a built list or search query.
type QueryDTO struct {
	PageSize uint32 `json:"page_size"`
	Offset   int64  `json:"offset"`
	Filter   string `json:"filter"`
	Cursor   string `json:"cursor,omitempty"`
	OrderBy  string `json:"order_by"`
	Query    string `json:"query,omitempty"`
}

// FromListQuery converts a list query to a DTO.
func FromListQuery(q *query.ListQuery) QueryDTO {
	return QueryDTO{
		PageSize: q.PageSize,
		Offset:   q.Offset,
		Filter:   q.Filter.String(),
		Cursor:   q.Cursor.String(),
		OrderBy:  q.Ordering.String(),
	}
}

// FromSearchQuery converts a search query to a DTO.
func FromSearchQuery(q *query.SearchQuery) QueryDTO {
	dto := FromListQuery(&q.ListQuery)
	dto.Query = q.Query
	return dto
}

// TokenDTO is the decoded content of a page token.
type TokenDTO struct {
	Strategy    string     `json:"strategy"`
	Offset      int64      `json:"offset"`
	Cursor      string     `json:"cursor,omitempty"`
	Fingerprint string     `json:"fingerprint,omitempty"`
	IssuedAt    *time.Time `json:"issued_at,omitempty"`
}

// FromState converts decoded token state to a DTO.
func FromState(strategy pagetoken.Strategy, s pagetoken.State) TokenDTO {
	dto := TokenDTO{
		Strategy:    string(strategy),
		Offset:      s.Offset,
		Cursor:      s.Cursor,
		Fingerprint: hex.EncodeToString(s.Fingerprint),
	}
	if !s.IssuedAt.IsZero() {
		issued := s.IssuedAt.UTC()
		dto.IssuedAt = &issued
	}
	return dto
}

// StatementDTO is compiled SQL with its bound arguments.
type StatementDTO struct {
	SQL     string `json:"sql"`
	Where   string `json:"where"`
	Args    []any  `json:"args"`
	OrderBy string `json:"order_by,omitempty"`
	Limit   uint32 `json:"limit"`
	Offset  int64  `json:"offset,omitempty"`
}

// FromStatement converts a statement and its rendered SELECT to a DTO.
func FromStatement(s sqlgen.Statement, sql string) StatementDTO {
	return StatementDTO{
		SQL:     sql,
		Where:   s.Where,
		Args:    nativeArgs(s.Args),
		OrderBy: s.OrderBy,
		Limit:   s.Limit,
		Offset:  s.Offset,
	}
}

func nativeArgs(args []value.Value) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a.Native()
	}
	return out
}

// PageDTO is one page of in-memory results.
type PageDTO struct {
	Items         []map[string]any `json:"items"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

// ErrorDTO reports a failed request, naming the offending request field when known.
type ErrorDTO struct {
	Field      string `json:"field,omitempty"`
	Path       string `json:"path,omitempty"`
	Error      string `json:"error"`
	ClientSide bool   `json:"client_side"`
}

// FromError converts a builder or validator error to a DTO.
func FromError(err error) ErrorDTO {
	dto := ErrorDTO{Error: err.Error(), ClientSide: query.IsClientFault(err)}
	var qe *query.Error
	if errors.As(err, &qe) {
		dto.Field = qe.Field
	}
	var ve *validator.Error
	if errors.As(err, &ve) {
		dto.Path = ve.Field
	}
	return dto
}
