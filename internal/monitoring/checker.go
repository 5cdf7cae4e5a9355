package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/beanatlas/coffee-cli/internal/config"
)

const (
	defaultCheckInterval = 5 * time.Minute

	// A sweep against a stalled store must not wedge the loop.
	sweepTimeout = 30 * time.Second
)

// Checker drives the alert loop while serve mode is up: one sweep at
// startup, then one per interval. Each sweep collects a fresh snapshot and
// pushes whatever alerts it trips.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
	interval  time.Duration
}

// NewChecker creates a background alert checker. A zero or negative
// configured interval falls back to defaultCheckInterval.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Checker{collector: collector, alerter: alerter, cfg: cfg, interval: interval}
}

// Run blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker",
		zap.Duration("interval", c.interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.sweep(ctx, log)

		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
		}
	}
}

func (c *Checker) sweep(ctx context.Context, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: collect failed", zap.Error(err))
		return
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: all thresholds clear")
		return
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Warn("monitoring: thresholds tripped",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
}
