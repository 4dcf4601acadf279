package commands

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	resolveProduct            int64
	resolveArticle            string
	resolveSourceManufacturer int64
	resolveManufacturer       int64
	resolveActor              string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the analog of one product",
	Long: `Resolve the analog of a product (by --product id, or by --article within
an optional --source-manufacturer) in the catalog of --manufacturer.
The result is cached and printed as JSON.`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().Int64Var(&resolveProduct, "product", 0, "Source product id")
	resolveCmd.Flags().StringVar(&resolveArticle, "article", "", "Source product article")
	resolveCmd.Flags().Int64Var(&resolveSourceManufacturer, "source-manufacturer", 0, "Manufacturer of --article")
	resolveCmd.Flags().Int64Var(&resolveManufacturer, "manufacturer", 0, "Target manufacturer id")
	resolveCmd.Flags().StringVar(&resolveActor, "actor", "cli", "Recorded as the cache entry author")
	_ = resolveCmd.MarkFlagRequired("manufacturer")
	resolveCmd.MarkFlagsMutuallyExclusive("product", "article")
}

func runResolve(cmd *cobra.Command, args []string) error {
	if resolveProduct == 0 && resolveArticle == "" {
		return errors.New("one of --product or --article is required")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	productID := resolveProduct
	if productID == 0 {
		product, err := a.analogs.FindProduct(ctx, resolveArticle, resolveSourceManufacturer)
		if err != nil {
			return err
		}
		productID = product.ID
	}

	res, err := a.analogs.Resolve(ctx, productID, resolveManufacturer, resolveActor)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}
