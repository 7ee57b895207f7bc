// Command nutrisolve runs and inspects food-set solves against a normalized
// nutrient catalog.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nutrisolve",
		Short: "Exhaustive food-set solver over a normalized nutrient catalog",
	}

	root.PersistentFlags().String("config", "", "path to a config file (optional)")
	root.PersistentFlags().String("store-dsn", "", "store connection string or file path")
	root.PersistentFlags().String("catalog-dir", "", "directory containing bands.csv and foods.csv")
	root.PersistentFlags().String("store-driver", "sqlite", "store backend: sqlite or postgres")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newPrepareCmd())
	root.AddCommand(newSolveCmd())
	root.AddCommand(newStatusCmd())

	return root
}
