package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newPrepareCmd is a stub for the out-of-scope dataset-ingestion step (USDA
// JSON download, record filtering, per-gram unit normalization). It exists so
// the CLI's three-verb shape (prepare/solve/status) matches the full
// ingest-to-solve pipeline, but the ingestion logic itself is an external
// collaborator this module only consumes the output of, via the Catalog
// Loader's two-file CSV contract.
func newPrepareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prepare",
		Short: "Placeholder for USDA dataset ingestion (not implemented here)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("prepare: dataset ingestion is out of scope for this module; " +
				"supply bands.csv and foods.csv directly via --catalog-dir")
		},
	}
}
