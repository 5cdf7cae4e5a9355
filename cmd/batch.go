package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/beanatlas/coffee-cli/internal/model"
	"github.com/beanatlas/coffee-cli/internal/store"
	"github.com/beanatlas/coffee-cli/pkg/notion"
)

var (
	batchLimit   int
	batchFile    string
	batchPublish bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Batch scrape roasters from the Notion queue or a sites file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// A sites file needs no Notion credentials.
		mode := "notion"
		if batchFile != "" {
			mode = "scrape"
		}

		env, err := initPipeline(ctx, mode)
		if err != nil {
			return err
		}
		defer env.Close()

		var sites []model.Site
		var notionClient notion.Client
		if batchFile != "" {
			sites, err = loadSitesFile(batchFile)
			if err != nil {
				return err
			}
		} else {
			notionClient = env.Notion
			pages, err := notion.QueryQueuedRoasters(ctx, env.Notion, cfg.Notion.RoasterDB)
			if err != nil {
				return eris.Wrap(err, "query queued roasters")
			}
			sites = make([]model.Site, 0, len(pages))
			for _, page := range pages {
				sites = append(sites, pageToSite(page))
			}
		}

		var pg *store.PostgresStore
		if batchPublish {
			pg, err = initPublish(ctx)
			if err != nil {
				return err
			}
			defer pg.Close() //nolint:errcheck
		}

		return processBatch(ctx, sites, batchLimit, cfg.Batch.MaxConcurrentSites, notionClient, func(ctx context.Context, site model.Site) (*model.ScrapeResult, error) {
			result, err := env.Pipeline.Scrape(ctx, site)
			if err != nil {
				return nil, err
			}
			if pg != nil {
				if pubErr := publishResult(ctx, pg, site, result); pubErr != nil {
					zap.L().Warn("publish failed", zap.String("site", site.URL), zap.Error(pubErr))
				}
			}
			return result, nil
		})
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "max number of roasters to process")
	batchCmd.Flags().StringVar(&batchFile, "file", "", "scrape sites from a .csv or .json file instead of Notion")
	batchCmd.Flags().BoolVar(&batchPublish, "publish", false, "publish accepted products to Postgres as sites finish")
	rootCmd.AddCommand(batchCmd)
}

func pageToSite(page notionapi.Page) model.Site {
	s := model.Site{
		NotionPageID: string(page.ID),
	}

	if prop, ok := page.Properties["Name"]; ok {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			for _, rt := range tp.Title {
				s.Name += rt.PlainText
			}
		}
	}

	if prop, ok := page.Properties["URL"]; ok {
		if up, ok := prop.(*notionapi.URLProperty); ok {
			s.URL = up.URL
		}
	}

	if prop, ok := page.Properties["RoasterID"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			for _, rt := range rtp.RichText {
				s.RoasterID += rt.PlainText
			}
		}
	}

	s.URL = strings.TrimSpace(s.URL)
	s.Name = strings.TrimSpace(s.Name)
	s.RoasterID = strings.TrimSpace(s.RoasterID)

	return s
}

// loadSitesFile reads scrape targets from a .json array of sites or a .csv
// with a header row. The csv needs a url (or website) column; name and
// roaster_id columns are optional.
func loadSitesFile(path string) ([]model.Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read sites file")
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var sites []model.Site
		if err := json.Unmarshal(data, &sites); err != nil {
			return nil, eris.Wrap(err, "parse sites json")
		}
		return sites, nil
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "parse sites csv")
	}
	if len(records) < 2 {
		return nil, nil
	}

	cols := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	urlCol, ok := cols["url"]
	if !ok {
		urlCol, ok = cols["website"]
	}
	if !ok {
		return nil, eris.New("sites csv needs a url or website column")
	}

	field := func(rec []string, col int) string {
		if col < 0 || col >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[col])
	}
	col := func(name string) int {
		if i, ok := cols[name]; ok {
			return i
		}
		return -1
	}

	var sites []model.Site
	for _, rec := range records[1:] {
		url := field(rec, urlCol)
		if url == "" {
			continue
		}
		sites = append(sites, model.Site{
			URL:       url,
			Name:      field(rec, col("name")),
			RoasterID: field(rec, col("roaster_id")),
		})
	}
	return sites, nil
}

// scrapeFunc is the callback signature for running a scrape on one site.
type scrapeFunc func(ctx context.Context, site model.Site) (*model.ScrapeResult, error)

// processBatch applies limit, then scrapes sites concurrently using the given
// scrape function. If notionClient is non-nil, queue pages are updated to
// "Scraped" or "Failed" as their sites finish.
func processBatch(ctx context.Context, sites []model.Site, limit, concurrency int, notionClient notion.Client, scrape scrapeFunc) error {
	if len(sites) == 0 {
		zap.L().Info("no queued roasters found")
		return nil
	}

	// Apply limit
	if limit > 0 && len(sites) > limit {
		sites = sites[:limit]
	}

	zap.L().Info("processing batch",
		zap.Int("roasters", len(sites)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for _, site := range sites {
		g.Go(func() error {
			log := zap.L().With(zap.String("site", site.URL))

			result, err := scrape(gctx, site)
			if err != nil {
				failed.Add(1)
				log.Error("scrape failed", zap.Error(err))
				if notionClient != nil && site.NotionPageID != "" {
					if nErr := updateNotionFailed(gctx, notionClient, site.NotionPageID, err); nErr != nil {
						log.Warn("failed to update notion status to Failed", zap.Error(nErr))
					}
				}
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			log.Info("scrape complete",
				zap.String("path", string(result.Path)),
				zap.Int("accepted", len(result.Accepted)),
				zap.Int("rejected", len(result.Rejected)),
			)
			if notionClient != nil && site.NotionPageID != "" {
				if nErr := updateNotionScraped(gctx, notionClient, site.NotionPageID, len(result.Accepted)); nErr != nil {
					log.Warn("failed to update notion status to Scraped", zap.Error(nErr))
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}

// updateNotionScraped sets the page status to "Scraped" and records the
// product count and scrape time.
func updateNotionScraped(ctx context.Context, client notion.Client, pageID string, products int) error {
	now := notionapi.Date(time.Now())
	_, err := client.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{
			"Status": notionapi.StatusProperty{
				Status: notionapi.Status{
					Name: "Scraped",
				},
			},
			"Last Scraped": notionapi.DateProperty{
				Date: &notionapi.DateObject{
					Start: &now,
				},
			},
			"Products": notionapi.NumberProperty{
				Number: float64(products),
			},
		},
	})
	if err != nil {
		return eris.Wrap(err, fmt.Sprintf("batch: update notion page %s to Scraped", pageID))
	}
	return nil
}

// updateNotionFailed sets the page status to "Failed" when a scrape errors out.
func updateNotionFailed(ctx context.Context, client notion.Client, pageID string, scrapeErr error) error {
	now := notionapi.Date(time.Now())
	errMsg := scrapeErr.Error()
	if len(errMsg) > 200 {
		errMsg = errMsg[:200]
	}
	_, err := client.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{
			"Status": notionapi.StatusProperty{
				Status: notionapi.Status{
					Name: "Failed",
				},
			},
			"Last Scraped": notionapi.DateProperty{
				Date: &notionapi.DateObject{
					Start: &now,
				},
			},
			"Error": notionapi.RichTextProperty{
				RichText: []notionapi.RichText{
					{Text: &notionapi.Text{Content: errMsg}},
				},
			},
		},
	})
	if err != nil {
		return eris.Wrap(err, fmt.Sprintf("batch: update notion page %s to Failed", pageID))
	}
	return nil
}
