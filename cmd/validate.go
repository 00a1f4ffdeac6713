package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/aipq/internal/presentation"
)

var (
	validateFilter  string
	validateOrderBy string
)

// validateResult is the output of a successful validate command.
type validateResult struct {
	Valid   bool                   `json:"valid"`
	Filter  presentation.FilterDTO `json:"filter"`
	OrderBy string                 `json:"order_by"`
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a filter and ordering against the schema",
	Long: `Validate an AIP-160 filter and an AIP-132 ordering against the configured
schema. Unknown fields, disallowed operations and type mismatches are
reported as JSON and the command exits non-zero.

Examples:
  aipq validate --schema schema.yaml --filter 'user.age > 21'
  aipq validate -s schema.yaml -f 'tags:"go"' -o 'user.displayName desc'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		e, err := newEnv(cfg)
		if err != nil {
			return err
		}

		f, err := e.validator.ParseFilter(validateFilter)
		if err != nil {
			return reportError(out, err)
		}
		o, err := e.validator.ParseOrdering(validateOrderBy)
		if err != nil {
			return reportError(out, err)
		}

		return presentation.NewFormatter(out).Format(validateResult{
			Valid:   true,
			Filter:  presentation.FromFilter(f),
			OrderBy: o.String(),
		})
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateFilter, "filter", "f", "", "AIP-160 filter")
	validateCmd.Flags().StringVarP(&validateOrderBy, "order-by", "o", "", "AIP-132 ordering")
	rootCmd.AddCommand(validateCmd)
}
