package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Checker runs alert checks on an interval.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	interval  time.Duration
}

// NewChecker creates a background alert checker. A non-positive interval
// means five minutes.
func NewChecker(collector *Collector, alerter *Alerter, interval time.Duration) *Checker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Checker{collector: collector, alerter: alerter, interval: interval}
}

// Run blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker", zap.Duration("interval", c.interval))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check collects once and sends any alerts. It returns the alerts raised.
func (c *Checker) Check(ctx context.Context) []Alert {
	snap, err := c.collector.Collect(ctx)
	if err != nil {
		zap.L().Error("monitoring: failed to collect metrics", zap.Error(err))
		return nil
	}
	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		return nil
	}
	sent := c.alerter.SendAlerts(ctx, alerts)
	zap.L().Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return alerts
}
