package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/beanatlas/coffee-cli/internal/model"
	"github.com/beanatlas/coffee-cli/internal/normalize"
	"github.com/beanatlas/coffee-cli/internal/store"
)

var publishRoasterID string

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish local products to the Postgres directory",
	Long:  "Upserts products from the local store into Postgres by (roaster_id, normalized_url). Absent products flip to unavailable; nothing is deleted.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pg, err := initPublish(ctx)
		if err != nil {
			return err
		}
		defer pg.Close() //nolint:errcheck

		products, err := st.ListProducts(ctx, store.ProductFilter{RoasterID: publishRoasterID})
		if err != nil {
			return eris.Wrap(err, "list products")
		}
		if len(products) == 0 {
			zap.L().Info("nothing to publish")
			return nil
		}

		// One publish pass per roaster keeps the availability flip scoped
		// to that roaster's directory slice.
		byRoaster := make(map[string][]*model.Product)
		for _, p := range products {
			byRoaster[p.RoasterID] = append(byRoaster[p.RoasterID], p)
		}

		var upserted, unavailable int64
		for roasterID, group := range byRoaster {
			roaster := roasterForPublish(model.Site{RoasterID: roasterID}, group, "")
			res, err := pg.PublishProducts(ctx, roaster, group)
			if err != nil {
				return eris.Wrap(err, "publish "+roasterID)
			}
			upserted += res.Upserted
			unavailable += res.MarkedUnavailable
		}

		zap.L().Info("publish complete",
			zap.Int("roasters", len(byRoaster)),
			zap.Int64("upserted", upserted),
			zap.Int64("marked_unavailable", unavailable),
		)
		return nil
	},
}

func init() {
	publishCmd.Flags().StringVar(&publishRoasterID, "roaster", "", "only publish products of one roaster")
	rootCmd.AddCommand(publishCmd)
}

// initPublish validates publish config and opens the Postgres directory.
func initPublish(ctx context.Context) (*store.PostgresStore, error) {
	if err := cfg.Validate("publish"); err != nil {
		return nil, err
	}
	pg, err := store.NewPostgres(ctx, cfg.Publish.DatabaseURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "open publish store")
	}
	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, eris.Wrap(err, "migrate publish store")
	}
	return pg, nil
}

// roasterForPublish derives the directory record for a site from what the
// scrape knows about it.
func roasterForPublish(site model.Site, products []*model.Product, platform string) model.Roaster {
	id := site.RoasterID
	if id == "" && len(products) > 0 {
		id = products[0].RoasterID
	}
	if id == "" {
		id = normalize.Domain(site.URL)
	}
	name := site.Name
	if name == "" {
		name = id
	}
	url := site.URL
	if url == "" && len(products) > 0 {
		url = products[0].SourceURL
	}
	return model.Roaster{
		ID:         id,
		Name:       name,
		Slug:       normalize.Slugify(name),
		WebsiteURL: url,
		Platform:   platform,
		IsActive:   true,
	}
}

// publishResult pushes one site's accepted products to the Postgres
// directory after a scrape. An empty accepted set is indistinguishable from
// a failed scrape, so availability is left alone.
func publishResult(ctx context.Context, pg *store.PostgresStore, site model.Site, result *model.ScrapeResult) error {
	if len(result.Accepted) == 0 {
		return nil
	}
	roaster := roasterForPublish(site, result.Accepted, string(result.Detection.Platform))
	res, err := pg.PublishProducts(ctx, roaster, result.Accepted)
	if err != nil {
		return err
	}
	zap.L().Info("published",
		zap.String("roaster", roaster.ID),
		zap.Int64("upserted", res.Upserted),
		zap.Int64("marked_unavailable", res.MarkedUnavailable),
	)
	return nil
}
