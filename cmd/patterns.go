// File: cmd/patterns.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/scalpel-taint/internal/patterns"
)

// newPatternsCmd creates the `patterns` command, which validates and prints a
// catalog.
func newPatternsCmd() *cobra.Command {
	var file, format string

	patternsCmd := &cobra.Command{
		Use:   "patterns",
		Short: "Validate and print a pattern catalog",
		Long: `Loads a pattern catalog, validates it and prints it. Without --file the
built-in DOM catalog is printed, which is a useful starting point for a custom one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := patterns.LoadCatalog(file)
			if err != nil {
				return err
			}
			data, err := patterns.Marshal(catalog.Records(), format)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}

	patternsCmd.Flags().StringVar(&file, "file", "", "Catalog file to validate (JSON or YAML)")
	patternsCmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format: yaml or json")
	return patternsCmd
}
