package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/aipq/internal/filter"
	"github.com/zjrosen/aipq/internal/ordering"
	"github.com/zjrosen/aipq/internal/presentation"
)

var parseOrderBy string

// parseResult is the output of the parse command.
type parseResult struct {
	Filter  presentation.FilterDTO `json:"filter"`
	OrderBy string                 `json:"order_by,omitempty"`
}

var parseCmd = &cobra.Command{
	Use:   "parse FILTER",
	Short: "Parse a filter and print its canonical form",
	Long: `Parse an AIP-160 filter without a schema and print the canonical text, the
referenced field paths and the node count as JSON.

Examples:
  aipq parse 'age >= 30 AND NOT deleted'
  aipq parse 'tags:("a" OR "b")' --order-by 'age desc, id'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		f, err := filter.Parse(args[0], filter.WithMaxDepth(cfg.Query.MaxDepth))
		if err != nil {
			return reportError(out, err)
		}
		result := parseResult{Filter: presentation.FromFilter(f)}

		if parseOrderBy != "" {
			o, err := ordering.Parse(parseOrderBy)
			if err != nil {
				return reportError(out, err)
			}
			result.OrderBy = o.String()
		}
		return presentation.NewFormatter(out).Format(result)
	},
}

func init() {
	parseCmd.Flags().StringVarP(&parseOrderBy, "order-by", "o", "", "AIP-132 ordering to canonicalize")
	rootCmd.AddCommand(parseCmd)
}
