package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/beanatlas/coffee-cli/internal/model"
)

var (
	productURL       string
	productRoasterID string
)

var productCmd = &cobra.Command{
	Use:   "product",
	Short: "Scrape a single product page",
	Long:  "Runs one product URL through fetch, validation, and enrichment without crawling its site. Accepted records are upserted into the local store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "scrape")
		if err != nil {
			return err
		}
		defer env.Close()

		site := model.Site{RoasterID: productRoasterID}

		result, err := env.Pipeline.ScrapeProduct(ctx, site, productURL)
		if err != nil {
			return eris.Wrap(err, "scrape product")
		}

		if result.Product != nil {
			zap.L().Info("product accepted",
				zap.String("url", productURL),
				zap.String("name", result.Product.Name),
			)
		} else if result.Rejected != nil {
			zap.L().Warn("product rejected",
				zap.String("url", productURL),
				zap.String("stage", result.Rejected.Stage),
				zap.Strings("reasons", result.Rejected.Reasons),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	productCmd.Flags().StringVar(&productURL, "url", "", "product page URL (required)")
	productCmd.Flags().StringVar(&productRoasterID, "roaster-id", "", "roaster ID (defaults to the page domain)")
	_ = productCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(productCmd)
}
