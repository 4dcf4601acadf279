package commands

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

const Version = "1.0.0"

var (
	databaseDriver string
	databasePath   string
	logLevel       string
)

var rootCmd = &cobra.Command{
	Use:   "analogpro",
	Short: "AnalogPro - product analog matching",
	Long: `AnalogPro finds, for a catalog product, the closest product of another
manufacturer by comparing category attributes, and caches the result.`,
	Version:      Version,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Flags override config.yaml and ANALOGPRO_* variables when set
	rootCmd.PersistentFlags().StringVar(&databaseDriver, "db-driver", "", "Catalog store: memory or sqlite")
	rootCmd.PersistentFlags().StringVar(&databasePath, "db-path", "", "SQLite database file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(healthCheckCmd)
	rootCmd.AddCommand(importCmd)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
