package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zjrosen/aipq/internal/config"
	"github.com/zjrosen/aipq/internal/templates"
)

var (
	initForce  bool
	initSchema string
)

var initCmd = &cobra.Command{
	Use:   "init [PATH]",
	Short: "Write a default config file",
	Long: `Write a commented default config to PATH (default ./aipq.yaml). An existing
file is left alone unless --force is given. --example-schema also writes
an example schema next to the config and points schema_file at it.

Examples:
  aipq init
  aipq init config/aipq.yaml --example-schema tasks`,
	Args: cobra.MaximumNArgs(1),
	// The config may not exist yet, so skip loading it.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		path := defaultConfigFile
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		var example []byte
		if initSchema != "" {
			var err error
			if example, err = templates.Schema(initSchema); err != nil {
				return err
			}
		}

		if err := config.WriteDefaultConfig(path); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if _, err := fmt.Fprintf(out, "wrote %s\n", path); err != nil {
			return err
		}
		if example == nil {
			return nil
		}

		schemaPath := filepath.Join(filepath.Dir(path), "schema.yaml")
		if _, err := os.Stat(schemaPath); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", schemaPath)
		}
		if err := os.WriteFile(schemaPath, example, 0o600); err != nil {
			return fmt.Errorf("writing schema: %w", err)
		}
		if err := config.SaveSchemaFile(path, schemaPath); err != nil {
			return err
		}
		_, err := fmt.Fprintf(out, "wrote %s\n", schemaPath)
		return err
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing files")
	initCmd.Flags().StringVar(&initSchema, "example-schema", "", "also write an example schema (tasks)")
	rootCmd.AddCommand(initCmd)
}
