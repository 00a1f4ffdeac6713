package cmd

import (
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/zjrosen/aipq/internal/cachemanager"
	"github.com/zjrosen/aipq/internal/config"
	"github.com/zjrosen/aipq/internal/filter"
	"github.com/zjrosen/aipq/internal/pagetoken"
	"github.com/zjrosen/aipq/internal/presentation"
	"github.com/zjrosen/aipq/internal/query"
	"github.com/zjrosen/aipq/internal/schema"
	"github.com/zjrosen/aipq/internal/sqlgen"
	"github.com/zjrosen/aipq/internal/validator"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// env is everything a command needs, assembled from the loaded config.
type env struct {
	schema    *schema.Schema
	validator *validator.Validator
	codec     pagetoken.Codec
	list      *query.ListBuilder
	search    *query.SearchBuilder
	compiler  *sqlgen.Compiler
	evaluator *filter.Evaluator
}

func newEnv(c config.Config) (*env, error) {
	s, err := c.LoadSchema()
	if err != nil {
		return nil, err
	}
	functions := filter.Builtins()
	functions.Register(s)

	qc, err := c.Query.Builder()
	if err != nil {
		return nil, fmt.Errorf("query config: %w", err)
	}
	codec, err := c.PageToken.Codec()
	if err != nil {
		return nil, fmt.Errorf("page token config: %w", err)
	}
	dialect, err := sqlgen.ParseDialect(c.Dialect)
	if err != nil {
		return nil, err
	}

	opts := []query.Option{query.WithRenameMap(c.RenameMap())}
	if ttl := c.Query.ParseCacheTTL; ttl > 0 {
		cache := cachemanager.NewInMemoryCacheManager[string, *filter.Filter]("filters", ttl, 2*ttl)
		if c.Query.ParseCacheSliding {
			opts = append(opts, query.WithSlidingParseCache(cache, ttl))
		} else {
			opts = append(opts, query.WithParseCache(cache, ttl))
		}
	}

	list, err := query.NewListBuilder(s, qc, codec, opts...)
	if err != nil {
		return nil, err
	}
	search, err := query.NewSearchBuilder(s, qc, codec, opts...)
	if err != nil {
		return nil, err
	}

	compilerOpts := []sqlgen.Option{sqlgen.WithSearchFields(c.Query.SearchFields...)}
	if c.Query.CaseInsensitiveLike {
		compilerOpts = append(compilerOpts, sqlgen.WithCaseInsensitiveLike())
	}

	return &env{
		schema: s,
		validator: validator.New(s, validator.Limits{
			MaxFilterLength:   c.Query.MaxFilterLength,
			MaxOrderingLength: c.Query.MaxOrderingLength,
			MaxDepth:          c.Query.MaxDepth,
		}),
		codec:     codec,
		list:      list,
		search:    search,
		compiler:  sqlgen.NewCompiler(dialect, s, compilerOpts...),
		evaluator: filter.NewEvaluator(functions),
	}, nil
}

// requestFlags are the AIP-132 request fields shared by several commands.
type requestFlags struct {
	filter    string
	orderBy   string
	pageSize  int32
	pageToken string
	query     string
}

func (r *requestFlags) register(cmd *cobra.Command, withQuery bool) {
	cmd.Flags().StringVarP(&r.filter, "filter", "f", "", "AIP-160 filter")
	cmd.Flags().StringVarP(&r.orderBy, "order-by", "o", "", "AIP-132 ordering, e.g. \"age desc, id\"")
	cmd.Flags().Int32VarP(&r.pageSize, "page-size", "n", 0, "page size (0 selects the configured default)")
	cmd.Flags().StringVarP(&r.pageToken, "page-token", "t", "", "page token from a previous page")
	if withQuery {
		cmd.Flags().StringVarP(&r.query, "query", "q", "", "free-text search query")
	}
}

func (r *requestFlags) list() query.ListRequest {
	return query.ListRequest{PageSize: r.pageSize, PageToken: r.pageToken, Filter: r.filter, OrderBy: r.orderBy}
}

func (r *requestFlags) searchRequest() query.SearchRequest {
	return query.SearchRequest{Query: r.query, PageSize: r.pageSize, PageToken: r.pageToken, Filter: r.filter, OrderBy: r.orderBy}
}

// reportError prints err as JSON and returns it so the exit status is non-zero.
func reportError(w io.Writer, err error) error {
	_ = presentation.NewFormatter(w).Format(presentation.FromError(err))
	return err
}

// readRecords decodes a JSON array of objects from path, or stdin for "-".
func readRecords(path string, stdin io.Reader) ([]filter.MapResolver, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path) //nolint:gosec // G304: path is a CLI argument
		if err != nil {
			return nil, fmt.Errorf("opening records: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var raw []map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding records: %w", err)
	}
	records := make([]filter.MapResolver, len(raw))
	for i, m := range raw {
		records[i] = filter.MapResolver(m)
	}
	return records, nil
}
