package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/zjrosen/aipq/internal/filter"
	"github.com/zjrosen/aipq/internal/log"
	"github.com/zjrosen/aipq/internal/pagetoken"
	"github.com/zjrosen/aipq/internal/presentation"
	"github.com/zjrosen/aipq/internal/query"
)

var evalRequest requestFlags

var evalCmd = &cobra.Command{
	Use:   "eval [RECORDS.json]",
	Short: "Filter, sort and paginate JSON records in memory",
	Long: `Read a JSON array of objects (from a file or stdin), apply the filter and
ordering, and print one page plus the token for the next page.

Examples:
  aipq eval -s schema.yaml users.json --filter 'age >= 30' --order-by 'age desc'
  cat users.json | aipq eval -s schema.yaml -n 10 --page-token "$TOKEN"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		e, err := newEnv(cfg)
		if err != nil {
			return err
		}

		path := "-"
		if len(args) == 1 {
			path = args[0]
		}
		records, err := readRecords(path, cmd.InOrStdin())
		if err != nil {
			return err
		}

		q, err := e.list.Build(evalRequest.list())
		if err != nil {
			return reportError(out, err)
		}
		page, err := query.Paginate(q, e.evaluator, records)
		if err != nil {
			return reportError(out, err)
		}

		dto := presentation.PageDTO{Items: make([]map[string]any, len(page.Items))}
		for i, r := range page.Items {
			dto.Items[i] = r
		}
		if page.HasNext {
			dto.NextPageToken, err = nextToken(e.list, q, page.Next)
			if err != nil {
				return err
			}
		}
		log.Debug(log.CatCLI, "Evaluated records", "total", len(records), "page", len(page.Items), "has_next", page.HasNext)
		return presentation.NewFormatter(out).Format(dto)
	},
}

// nextToken issues a keyset token anchored on next, falling back to an
// offset token when next cannot anchor a cursor.
func nextToken(lb *query.ListBuilder, q *query.ListQuery, next filter.FieldResolver) (string, error) {
	token, err := lb.NextPageToken(q, next)
	if errors.Is(err, pagetoken.ErrNoCursor) {
		log.Debug(log.CatCLI, "Falling back to offset token", "reason", err)
		return lb.NextOffsetToken(q)
	}
	return token, err
}

func init() {
	evalRequest.register(evalCmd, false)
	rootCmd.AddCommand(evalCmd)
}
