package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/aipq/internal/presentation"
	"github.com/zjrosen/aipq/internal/sqlgen"
)

var (
	sqlRequest requestFlags
	sqlTable   string
	sqlColumns []string
)

var sqlCmd = &cobra.Command{
	Use:   "sql",
	Short: "Compile a list or search request to SQL",
	Long: `Validate a request and compile it to a parameterized WHERE clause, ORDER BY
and LIMIT/OFFSET for the configured dialect. With --table a full SELECT is
rendered as well. --query compiles a search request over the configured
search fields.

Examples:
  aipq sql -s schema.yaml -d sqlite -f 'NOT task.deleted AND user.age >= 30'
  aipq sql -s schema.yaml --table users --columns id,name -o 'name' -n 25`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		e, err := newEnv(cfg)
		if err != nil {
			return err
		}

		var stmt sqlgen.Statement
		if sqlRequest.query != "" {
			q, err := e.search.Build(sqlRequest.searchRequest())
			if err != nil {
				return reportError(out, err)
			}
			stmt, err = e.compiler.BuildSearch(q)
			if err != nil {
				return reportError(out, err)
			}
		} else {
			q, err := e.list.Build(sqlRequest.list())
			if err != nil {
				return reportError(out, err)
			}
			stmt, err = e.compiler.BuildList(q)
			if err != nil {
				return reportError(out, err)
			}
		}

		var sel string
		if sqlTable != "" {
			sel = stmt.Select(sqlTable, sqlColumns...)
		}
		return presentation.NewFormatter(out).Format(presentation.FromStatement(stmt, sel))
	},
}

func init() {
	sqlRequest.register(sqlCmd, true)
	sqlCmd.Flags().StringVar(&sqlTable, "table", "", "render a SELECT from this table")
	sqlCmd.Flags().StringSliceVar(&sqlColumns, "columns", nil, "columns to select (default *)")
	rootCmd.AddCommand(sqlCmd)
}
