package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/labsync/internal/config"
	"github.com/sells-group/labsync/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertStageFailureRate AlertType = "stage_failure_rate"
	AlertDLQDepth         AlertType = "dlq_depth"
	AlertOverspend        AlertType = "overspend"
)

// minFinished is how many finished messages a stage needs before its
// failure rate is judged.
const minFinished = 5

// Alert is a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates snapshots against thresholds and posts alerts to a
// webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate returns the alerts snap triggers.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	for _, s := range []model.Stage{model.StageExtraction, model.StageDesign} {
		finished := snap.Finished(s)
		rate := snap.FailureRates[s]
		if finished < minFinished || rate <= a.cfg.FailureRateThreshold {
			continue
		}
		alerts = append(alerts, Alert{
			Type:     AlertStageFailureRate,
			Severity: "high",
			Message: fmt.Sprintf("%s failure rate %.1f%% exceeds threshold %.1f%% (%d of %d)",
				s, rate*100, a.cfg.FailureRateThreshold*100,
				snap.Stages[s][model.StatusFailed], finished),
			Details: map[string]any{
				"stage":        string(s),
				"failure_rate": rate,
				"threshold":    a.cfg.FailureRateThreshold,
			},
			Timestamp: now,
		})
	}

	if a.cfg.DLQDepthThreshold > 0 && snap.DLQDepth >= a.cfg.DLQDepthThreshold {
		alerts = append(alerts, Alert{
			Type:      AlertDLQDepth,
			Severity:  "medium",
			Message:   fmt.Sprintf("%d dead-lettered tasks (threshold %d)", snap.DLQDepth, a.cfg.DLQDepthThreshold),
			Details:   map[string]any{"depth": snap.DLQDepth, "threshold": a.cfg.DLQDepthThreshold},
			Timestamp: now,
		})
	}

	if t := snap.Allocations; t.Allocated > 0 && t.Spent > t.Allocated {
		alerts = append(alerts, Alert{
			Type:      AlertOverspend,
			Severity:  "medium",
			Message:   fmt.Sprintf("spend %.2f exceeds allocated %.2f", t.Spent, t.Allocated),
			Details:   map[string]any{"allocated": t.Allocated, "spent": t.Spent},
			Timestamp: now,
		})
	}
	return alerts
}

// SendAlerts posts each alert to the webhook and returns how many were
// delivered.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" {
		for _, alert := range alerts {
			zap.L().Warn("monitoring: alert", zap.String("type", string(alert.Type)), zap.String("message", alert.Message))
		}
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
