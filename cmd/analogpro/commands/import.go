package commands

import (
	"github.com/spf13/cobra"

	"github.com/1v1expert/AnalogPro/internal/infrastructure/catalog"
)

var importCmd = &cobra.Command{
	Use:   "import <workbook.xlsx>",
	Short: "Import products from an XLSX workbook",
	Long: `Import products from an XLSX workbook. Manufacturers, categories,
attributes and fixed values must already exist; the whole workbook is
validated before any product is written.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	result, err := catalog.NewImporter(a.catalog, a.logger).ImportFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}
