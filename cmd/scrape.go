package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/beanatlas/coffee-cli/internal/model"
	"github.com/beanatlas/coffee-cli/internal/pipeline"
)

var (
	scrapeURL          string
	scrapeName         string
	scrapeRoasterID    string
	scrapeForceRefresh bool
	scrapePublish      bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape a single roaster site",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "scrape")
		if err != nil {
			return err
		}
		defer env.Close()

		site := model.Site{
			RoasterID: scrapeRoasterID,
			Name:      scrapeName,
			URL:       scrapeURL,
		}

		result, err := env.Pipeline.ScrapeWithOptions(ctx, site, pipeline.Options{ForceRefresh: scrapeForceRefresh})
		if err != nil {
			return eris.Wrap(err, "scrape")
		}

		zap.L().Info("scrape complete",
			zap.String("site", site.URL),
			zap.String("path", string(result.Path)),
			zap.Int("accepted", len(result.Accepted)),
			zap.Int("rejected", len(result.Rejected)),
			zap.Int("errors", len(result.Errors)),
		)

		if scrapePublish {
			pg, err := initPublish(ctx)
			if err != nil {
				return err
			}
			defer pg.Close() //nolint:errcheck
			if err := publishResult(ctx, pg, site, result); err != nil {
				return eris.Wrap(err, "publish")
			}
		}

		// Print result JSON to stdout
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeURL, "url", "", "roaster storefront URL (required)")
	scrapeCmd.Flags().StringVar(&scrapeName, "name", "", "roaster display name")
	scrapeCmd.Flags().StringVar(&scrapeRoasterID, "roaster-id", "", "roaster ID (defaults to the site domain)")
	scrapeCmd.Flags().BoolVar(&scrapeForceRefresh, "force-refresh", false, "bypass the field-stability cache and re-fetch everything")
	scrapeCmd.Flags().BoolVar(&scrapePublish, "publish", false, "publish accepted products to Postgres after the run")
	_ = scrapeCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(scrapeCmd)
}
