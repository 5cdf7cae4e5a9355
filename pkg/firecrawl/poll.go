package firecrawl

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// Crawl jobs report these terminal statuses.
const (
	statusCompleted = "completed"
	statusFailed    = "failed"
	statusCancelled = "cancelled"
)

type poller struct {
	interval time.Duration
	cap      time.Duration
	timeout  time.Duration
}

// PollOption adjusts how PollCrawl waits on a job.
type PollOption func(*poller)

// WithPollInterval sets the first wait between status checks. Later waits
// double up to the cap.
func WithPollInterval(d time.Duration) PollOption {
	return func(p *poller) { p.interval = d }
}

// WithPollCap bounds the doubled wait.
func WithPollCap(d time.Duration) PollOption {
	return func(p *poller) { p.cap = d }
}

// WithPollTimeout bounds the whole poll. It only applies when the caller's
// context carries no deadline of its own.
func WithPollTimeout(d time.Duration) PollOption {
	return func(p *poller) { p.timeout = d }
}

// PollCrawl waits for the crawl job to reach a terminal status, checking
// with exponentially spaced GetCrawlStatus calls, 2s/4s/8s then every 15s by
// default. Failed and cancelled jobs surface as errors.
func PollCrawl(ctx context.Context, client Client, id string, opts ...PollOption) (*CrawlStatusResponse, error) {
	p := poller{
		interval: 2 * time.Second,
		cap:      15 * time.Second,
		timeout:  5 * time.Minute,
	}
	for _, opt := range opts {
		opt(&p)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	wait := p.interval
	for {
		status, err := client.GetCrawlStatus(ctx, id)
		if err != nil {
			return nil, eris.Wrap(err, fmt.Sprintf("firecrawl: poll crawl %s", id))
		}

		switch status.Status {
		case statusCompleted:
			return status, nil
		case statusFailed, statusCancelled:
			return nil, eris.Errorf("firecrawl: crawl %s ended %s", id, status.Status)
		}

		select {
		case <-ctx.Done():
			return nil, eris.Wrap(ctx.Err(), fmt.Sprintf("firecrawl: poll crawl %s timed out", id))
		case <-time.After(wait):
		}

		if wait < p.cap {
			wait *= 2
			if wait > p.cap {
				wait = p.cap
			}
		}
	}
}
