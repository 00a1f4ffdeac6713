package query

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zjrosen/aipq/internal/cachemanager"
	"github.com/zjrosen/aipq/internal/filter"
	"github.com/zjrosen/aipq/internal/log"
	"github.com/zjrosen/aipq/internal/metrics"
	"github.com/zjrosen/aipq/internal/ordering"
	"github.com/zjrosen/aipq/internal/pagetoken"
	"github.com/zjrosen/aipq/internal/schema"
	"github.com/zjrosen/aipq/internal/validator"
)

// Option configures a builder.
type Option func(*builder)

// WithRenameMap attaches storage names to every built query.
func WithRenameMap(m schema.RenameMap) Option {
	return func(b *builder) { b.renames = m }
}

// WithParseCache memoizes validated filters by text for ttl. The cache must
// not be shared between builders with different schemas.
func WithParseCache(cache cachemanager.CacheManager[string, *filter.Filter], ttl time.Duration) Option {
	return parseCache(cache, ttl, false)
}

// WithSlidingParseCache is WithParseCache where every hit restarts the ttl.
func WithSlidingParseCache(cache cachemanager.CacheManager[string, *filter.Filter], ttl time.Duration) Option {
	return parseCache(cache, ttl, true)
}

func parseCache(cache cachemanager.CacheManager[string, *filter.Filter], ttl time.Duration, sliding bool) Option {
	return func(b *builder) {
		b.parseCache = cachemanager.NewReadThroughCache[string, *filter.Filter, string](cache, b.validator.ParseFilter, sliding)
		b.parseCacheTTL = ttl
	}
}

// WithClock replaces time.Now for token issue and expiry.
func WithClock(now func() time.Time) Option {
	return func(b *builder) { b.now = now }
}

// builder is the pipeline shared by list and search builders.
type builder struct {
	kind          string
	cfg           Config
	validator     *validator.Validator
	codec         pagetoken.Codec
	renames       schema.RenameMap
	parseCache    *cachemanager.ReadThroughCache[string, *filter.Filter, string]
	parseCacheTTL time.Duration
	now           func() time.Time
}

func newBuilder(kind string, s *schema.Schema, cfg Config, codec pagetoken.Codec, opts []Option) (*builder, error) {
	if s == nil {
		return nil, errors.New("schema is required")
	}
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	if codec == nil {
		codec = pagetoken.NewBase64(true)
	}

	b := &builder{
		kind:      kind,
		cfg:       cfg,
		validator: validator.New(s, cfg.limits()),
		codec:     codec,
		now:       time.Now,
	}
	if t := cfg.PrimaryOrderingTerm; t != nil {
		if err := b.validator.ValidateOrdering(ordering.Ordering{*t}); err != nil {
			return nil, fmt.Errorf("primary ordering term: %w", err)
		}
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *builder) parseFilter(text string) (*filter.Filter, error) {
	if b.parseCache != nil && text != "" {
		return b.parseCache.Get(text, text, b.parseCacheTTL)
	}
	return b.validator.ParseFilter(text)
}

func (b *builder) parseOrdering(text string) (ordering.Ordering, error) {
	o, err := b.validator.ParseOrdering(text)
	if err != nil {
		return nil, err
	}
	if t := b.cfg.PrimaryOrderingTerm; t != nil && !o.Contains(t.Name) {
		o = o.Append(*t)
	}
	return o, nil
}

// build runs the shared pipeline. extra is bound into the fingerprint.
func (b *builder) build(req ListRequest, extra ...string) (*ListQuery, error) {
	f, err := b.parseFilter(req.Filter)
	if err != nil {
		return nil, fieldError(FieldFilter, err)
	}
	o, err := b.parseOrdering(req.OrderBy)
	if err != nil {
		return nil, fieldError(FieldOrderBy, err)
	}
	size, err := b.cfg.pageSize(req.PageSize)
	if err != nil {
		return nil, fieldError(FieldPageSize, err)
	}

	q := &ListQuery{
		PageSize: size,
		Filter:   f,
		Ordering: o,
		Renames:  b.renames,
	}
	if req.PageToken != "" {
		state, cursor, err := b.decodeToken(req.PageToken, pagetoken.Fingerprint(f, o, extra...), o)
		if err != nil {
			return nil, fieldError(FieldPageToken, err)
		}
		q.Offset = state.Offset
		q.Cursor = cursor
	}
	return q, nil
}

func (b *builder) decodeToken(token string, fingerprint []byte, o ordering.Ordering) (pagetoken.State, *filter.Filter, error) {
	state, err := b.codec.Decode(token)
	b.countToken("decode", err)
	if err != nil {
		return state, nil, ErrInvalidPageToken
	}

	if subtle.ConstantTimeCompare(state.Fingerprint, fingerprint) != 1 {
		log.Debug(log.CatToken, "page token fingerprint mismatch", "kind", b.kind)
		return state, nil, fmt.Errorf("%w: issued for a different filter or ordering", ErrInvalidPageToken)
	}
	if ttl := b.cfg.PageTokenTTL; ttl > 0 {
		if state.IssuedAt.IsZero() || b.now().Sub(state.IssuedAt) > ttl {
			return state, nil, fmt.Errorf("%w: expired", ErrInvalidPageToken)
		}
	}
	if state.Cursor == "" {
		return state, nil, nil
	}

	cursor, err := b.parseCursor(state.Cursor, o)
	if err != nil {
		log.Debug(log.CatToken, "page token cursor rejected", "kind", b.kind, "error", err)
		return state, nil, ErrInvalidPageToken
	}
	return state, cursor, nil
}

// parseCursor re-validates cursor text, since tokens from the unauthenticated
// codecs can be forged.
func (b *builder) parseCursor(text string, o ordering.Ordering) (*filter.Filter, error) {
	cursor, err := filter.Parse(text, filter.WithMaxDepth(max(filter.DefaultMaxDepth, len(o)+1)))
	if err != nil {
		return nil, err
	}
	if err := b.validator.ValidateCursor(cursor, o); err != nil {
		return nil, err
	}
	return cursor, nil
}

func (b *builder) encode(state pagetoken.State) (string, error) {
	state.IssuedAt = b.now().UTC().Truncate(time.Second)
	token, err := b.codec.Encode(state)
	b.countToken("encode", err)
	if err != nil {
		return "", fmt.Errorf("encoding page token: %w", err)
	}
	return token, nil
}

func (b *builder) countToken(operation string, err error) {
	metrics.PageTokens.WithLabelValues(string(b.codec.Strategy()), operation, metrics.Status(err, operation == "decode")).Inc()
}

func (b *builder) nextPageToken(q *ListQuery, next filter.FieldResolver, extra ...string) (string, error) {
	cursor, err := pagetoken.KeysetCursor(q.Ordering, next)
	if err != nil {
		return "", err
	}
	return b.encode(pagetoken.State{
		Cursor:      cursor.String(),
		Fingerprint: pagetoken.Fingerprint(q.Filter, q.Ordering, extra...),
	})
}

func (b *builder) nextOffsetToken(q *ListQuery, extra ...string) (string, error) {
	state := pagetoken.State{
		Offset:      q.Offset + int64(q.PageSize),
		Fingerprint: pagetoken.Fingerprint(q.Filter, q.Ordering, extra...),
	}
	if q.Cursor != nil {
		state.Cursor = q.Cursor.String()
	}
	return b.encode(state)
}

func (b *builder) record(err error) {
	metrics.QueriesBuilt.WithLabelValues(b.kind, metrics.Status(err, IsClientFault(err))).Inc()
	if err != nil {
		log.Debug(log.CatQuery, "request rejected", "kind", b.kind, "error", err)
	}
}

// ListBuilder builds ListQuery values. It is safe for concurrent use.
type ListBuilder struct {
	b *builder
}

// NewListBuilder validates cfg against s. A nil codec selects URL-safe base64.
func NewListBuilder(s *schema.Schema, cfg Config, codec pagetoken.Codec, opts ...Option) (*ListBuilder, error) {
	b, err := newBuilder("list", s, cfg, codec, opts)
	if err != nil {
		return nil, err
	}
	return &ListBuilder{b: b}, nil
}

// Config returns the normalized configuration.
func (lb *ListBuilder) Config() Config { return lb.b.cfg }

// Build validates req. Errors are *Error naming the offending field.
func (lb *ListBuilder) Build(req ListRequest) (*ListQuery, error) {
	q, err := lb.b.build(req)
	lb.b.record(err)
	if err != nil {
		return nil, err
	}
	log.Debug(log.CatQuery, "list query built", "page_size", q.PageSize, "terms", q.Filter.Len(), "ordering", q.Ordering.String())
	return q, nil
}

// NextPageToken issues a keyset token whose page starts at next, the first
// record past the current page. It fails with pagetoken.ErrNoCursor when
// next lacks an ordering value; NextOffsetToken works for any record.
func (lb *ListBuilder) NextPageToken(q *ListQuery, next filter.FieldResolver) (string, error) {
	return lb.b.nextPageToken(q, next)
}

// NextOffsetToken issues a token for the page after q by offset.
func (lb *ListBuilder) NextOffsetToken(q *ListQuery) (string, error) {
	return lb.b.nextOffsetToken(q)
}

// SearchBuilder builds SearchQuery values. It is safe for concurrent use.
type SearchBuilder struct {
	b *builder
}

// NewSearchBuilder is NewListBuilder for search requests.
func NewSearchBuilder(s *schema.Schema, cfg Config, codec pagetoken.Codec, opts ...Option) (*SearchBuilder, error) {
	b, err := newBuilder("search", s, cfg, codec, opts)
	if err != nil {
		return nil, err
	}
	return &SearchBuilder{b: b}, nil
}

// Config returns the normalized configuration.
func (sb *SearchBuilder) Config() Config { return sb.b.cfg }

// Build validates req. The trimmed query text is bound into page tokens.
func (sb *SearchBuilder) Build(req SearchRequest) (*SearchQuery, error) {
	q, err := sb.build(req)
	sb.b.record(err)
	return q, err
}

func (sb *SearchBuilder) build(req SearchRequest) (*SearchQuery, error) {
	text := strings.TrimSpace(req.Query)
	if n := utf8.RuneCountInString(text); sb.b.cfg.MaxQueryLength > 0 && n > sb.b.cfg.MaxQueryLength {
		return nil, fieldError(FieldQuery, fmt.Errorf("%w: query is %d characters, limit is %d",
			validator.ErrLimitExceeded, n, sb.b.cfg.MaxQueryLength))
	}
	lq, err := sb.b.build(req.list(), text)
	if err != nil {
		return nil, err
	}
	log.Debug(log.CatQuery, "search query built", "page_size", lq.PageSize, "terms", lq.Filter.Len())
	return &SearchQuery{ListQuery: *lq, Query: text}, nil
}

// NextPageToken is ListBuilder.NextPageToken for search queries.
func (sb *SearchBuilder) NextPageToken(q *SearchQuery, next filter.FieldResolver) (string, error) {
	return sb.b.nextPageToken(&q.ListQuery, next, q.Query)
}

// NextOffsetToken is ListBuilder.NextOffsetToken for search queries.
func (sb *SearchBuilder) NextOffsetToken(q *SearchQuery) (string, error) {
	return sb.b.nextOffsetToken(&q.ListQuery, q.Query)
}
