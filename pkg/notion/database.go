package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// QueryAll walks a database query cursor by cursor and returns every page.
// tmpl carries the filter, sorts, and page size; its start cursor is ignored.
// The Client's limiter paces the calls, so a large directory drains at the
// API's sustained rate.
func QueryAll(ctx context.Context, c Client, dbID string, tmpl *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	req := &notionapi.DatabaseQueryRequest{}
	if tmpl != nil {
		*req = *tmpl
	}
	req.StartCursor = ""

	var pages []notionapi.Page
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "notion: query all")
		}
		resp, err := c.QueryDatabase(ctx, dbID, req)
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all page")
		}
		pages = append(pages, resp.Results...)
		if !resp.HasMore || resp.NextCursor == "" {
			return pages, nil
		}
		req.StartCursor = resp.NextCursor
	}
}

// QueryQueuedRoasters fetches all roaster pages with Status = "Queued" from
// the given database. Batch runs drain this queue and write the outcome back
// to each page.
func QueryQueuedRoasters(ctx context.Context, c Client, dbID string) ([]notionapi.Page, error) {
	pages, err := QueryAll(ctx, c, dbID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Status",
			Status:   &notionapi.StatusFilterCondition{Equals: "Queued"},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "notion: query queued roasters")
	}
	return pages, nil
}
