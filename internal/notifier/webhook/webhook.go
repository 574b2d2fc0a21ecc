// Package webhook delivers run lifecycle events to configured HTTP endpoints.
package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/nullptr0807/runhub/internal/core"
	"go.uber.org/zap"
)

// Event kinds posted to webhook receivers.
const (
	EventRunImported     = "run.imported"
	EventRunDeleted      = "run.deleted"
	EventBaselineSet     = "run.baseline_set"
	EventBaselineCleared = "run.baseline_cleared"
	EventRunsMerged      = "runs.merged"
)

// Event is the JSON payload delivered to each configured URL.
type Event struct {
	Type       string    `json:"type"`
	StrategyID uint      `json:"strategy_id"`
	RunID      string    `json:"run_id,omitempty"`
	Label      string    `json:"label,omitempty"`
	Message    string    `json:"message,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Config holds webhook notifier settings.
type Config struct {
	URLs    []string
	Headers map[string]string
	Timeout time.Duration
	Retries int
}

// Notifier posts events to all configured URLs.
type Notifier struct {
	urls   []string
	client *resty.Client
	logger *zap.Logger
}

// New creates a webhook notifier. A notifier with no URLs is valid and
// silently drops events.
func New(cfg Config, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(cfg.Retries).
		SetHeader("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		client.SetHeader(k, v)
	}

	return &Notifier{
		urls:   cfg.URLs,
		client: client,
		logger: logger,
	}
}

// Enabled reports whether any receiver is configured.
func (n *Notifier) Enabled() bool {
	return len(n.urls) > 0
}

// Send delivers the event to every configured URL. Delivery failures are
// aggregated into a single error; partial delivery is not rolled back.
func (n *Notifier) Send(ctx context.Context, ev Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	var failed int
	for _, url := range n.urls {
		resp, err := n.client.R().
			SetContext(ctx).
			SetBody(ev).
			Post(url)
		if err != nil {
			failed++
			n.logger.Error("webhook delivery failed",
				zap.String("url", url),
				zap.String("event", ev.Type),
				zap.Error(err),
			)
			continue
		}
		if resp.IsError() {
			failed++
			n.logger.Error("webhook receiver rejected event",
				zap.String("url", url),
				zap.String("event", ev.Type),
				zap.Int("status", resp.StatusCode()),
			)
			continue
		}
		n.logger.Debug("webhook delivered",
			zap.String("url", url),
			zap.String("event", ev.Type),
		)
	}

	if failed > 0 {
		return core.WrapError(core.ErrNotifierFailed,
			fmt.Errorf("%d of %d deliveries failed", failed, len(n.urls)))
	}
	return nil
}
