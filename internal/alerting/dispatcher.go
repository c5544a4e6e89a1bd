package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ledger-whale-alerts/internal/storage"
)

// DispatcherOptions tune alert delivery.
type DispatcherOptions struct {
	Channels     ChannelSet
	DepositFloor decimal.Decimal
	TrendWindow  time.Duration
}

// Dispatcher routes and delivers whale alerts with bounded retries and a
// single escalation send on primary exhaustion.
type Dispatcher struct {
	sender  Sender
	alerts  storage.AlertStore
	txs     storage.TransactionStore
	retryer *Retryer
	opts    DispatcherOptions
	logger  zerolog.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(sender Sender, alerts storage.AlertStore, txs storage.TransactionStore, retryer *Retryer, opts DispatcherOptions, logger zerolog.Logger) *Dispatcher {
	if opts.TrendWindow <= 0 {
		opts.TrendWindow = time.Hour
	}
	return &Dispatcher{
		sender:  sender,
		alerts:  alerts,
		txs:     txs,
		retryer: retryer,
		opts:    opts,
		logger:  logger.With().Str("component", "dispatcher").Logger(),
	}
}

// DeliveryResult reports one dispatch outcome.
type DeliveryResult struct {
	AlertID   int64
	Delivered bool
	Channel   Channel
	Escalated bool
	Attempts  int
	Err       error
}

// Dispatch delivers one alert. The primary channel gets the full retry
// budget; if it is exhausted, exactly one escalation send goes to the
// system channel with a prefixed message. Only when both paths fail does
// the result carry an error, and the alert stays unsent so a later run
// can pick it up again.
func (d *Dispatcher) Dispatch(ctx context.Context, alert storage.WhaleAlert) DeliveryResult {
	result := DeliveryResult{AlertID: alert.ID}
	dispatchID := ulid.Make().String()

	primary := Route(alert.Amount, Category(alert.Category), Severity(alert.Severity), d.opts.DepositFloor, d.opts.Channels)
	if primary == "" {
		result.Err = fmt.Errorf("no channel configured for category %s", alert.Category)
		return result
	}

	message := d.renderAlert(ctx, alert)

	attempts, err := d.retryer.SendWithRetry(ctx, alert.ID, primary, dispatchID, 0, func(ctx context.Context) error {
		return d.sender.Send(ctx, primary, message)
	})
	result.Attempts = attempts
	if err == nil {
		result.Delivered = true
		result.Channel = primary
		d.markSent(ctx, alert, primary, dispatchID, false)
		return result
	}

	d.logger.Warn().Err(err).Int64("alert_id", alert.ID).Str("channel", string(primary)).
		Msg("primary channel exhausted, escalating")

	escalation := d.opts.Channels.System
	if escalation == "" || escalation == primary {
		result.Err = fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
		return result
	}

	escalated := fmt.Sprintf("[ESCALATED] delivery to channel %s failed\n%s", primary, message)
	if _, escErr := d.retryer.SendWithRetry(ctx, alert.ID, escalation, dispatchID, 1, func(ctx context.Context) error {
		return d.sender.Send(ctx, escalation, escalated)
	}); escErr != nil {
		result.Err = fmt.Errorf("%w: primary %v, escalation %v", ErrDeliveryFailed, err, escErr)
		return result
	}

	result.Delivered = true
	result.Escalated = true
	result.Channel = escalation
	d.markSent(ctx, alert, escalation, dispatchID, true)
	return result
}

// SendTest delivers an alert rendering to the system channel without
// touching the sent flag. Used by operator test dispatches.
func (d *Dispatcher) SendTest(ctx context.Context, alert storage.WhaleAlert) error {
	channel := d.opts.Channels.System
	if channel == "" {
		return fmt.Errorf("no system channel configured")
	}
	message := "[TEST] " + d.renderAlert(ctx, alert)
	return d.sender.Send(ctx, channel, message)
}

// Probe exercises the delivery path's no-op health check.
func (d *Dispatcher) Probe(ctx context.Context) error {
	return d.sender.Probe(ctx)
}

func (d *Dispatcher) markSent(ctx context.Context, alert storage.WhaleAlert, channel Channel, dispatchID string, escalated bool) {
	metadata := map[string]interface{}{
		"channel":     string(channel),
		"dispatch_id": dispatchID,
		"escalated":   escalated,
	}
	if len(alert.Metadata) > 0 {
		var existing map[string]interface{}
		if err := json.Unmarshal(alert.Metadata, &existing); err == nil {
			for k, v := range existing {
				if _, taken := metadata[k]; !taken {
					metadata[k] = v
				}
			}
		}
	}

	payload, err := json.Marshal(metadata)
	if err != nil {
		payload = []byte(`{}`)
	}

	if err := d.alerts.MarkAlertSent(ctx, alert.ID, time.Now().UTC(), payload); err != nil {
		d.logger.Error().Err(err).Int64("alert_id", alert.ID).Msg("failed to mark alert sent")
	}
}

// renderAlert assembles the outbound message. Trend enrichment is
// best-effort and never blocks or fails the dispatch.
func (d *Dispatcher) renderAlert(ctx context.Context, alert storage.WhaleAlert) string {
	builder := strings.Builder{}
	switch Severity(alert.Severity) {
	case SeverityCritical:
		builder.WriteString("🚨 [Whale Alert - CRITICAL]\n")
	case SeverityHigh:
		builder.WriteString("⚠️ [Whale Alert - HIGH]\n")
	default:
		builder.WriteString("🐋 [Whale Alert]\n")
	}
	builder.WriteString(fmt.Sprintf("Owner: %s\n", alert.OwnerLabel))
	builder.WriteString(fmt.Sprintf("Amount: %s %s\n", alert.Amount.StringFixed(2), alert.Currency))
	builder.WriteString(fmt.Sprintf("Category: %s\n", alert.Category))
	builder.WriteString(fmt.Sprintf("Tx: %s\n", alert.TxHash))

	tx, err := d.txs.GetTransaction(ctx, alert.TxHash)
	if err == nil {
		builder.WriteString(fmt.Sprintf("Direction: %s\n", tx.Direction))
		if tx.Destination != nil {
			builder.WriteString(fmt.Sprintf("Destination: %s", *tx.Destination))
			if tx.DestinationTag != nil {
				builder.WriteString(fmt.Sprintf(" (tag %d)", *tx.DestinationTag))
			}
			builder.WriteString("\n")
		}
		builder.WriteString(fmt.Sprintf("Ledger: %d at %s UTC\n", tx.LedgerIndex, tx.ExecutedAt.UTC().Format(time.RFC3339)))

		if trend := d.trendLine(ctx, tx); trend != "" {
			builder.WriteString(trend)
		}
	} else {
		d.logger.Debug().Err(err).Str("tx_hash", alert.TxHash).Msg("transaction lookup for message failed")
	}

	return builder.String()
}

func (d *Dispatcher) trendLine(ctx context.Context, tx storage.Transaction) string {
	since := time.Now().UTC().Add(-d.opts.TrendWindow)
	activity, err := d.txs.WalletActivitySince(ctx, tx.WalletAddress, since)
	if err != nil {
		d.logger.Debug().Err(err).Str("wallet", tx.WalletAddress).Msg("trend enrichment unavailable")
		return ""
	}
	if activity.TxCount <= 1 {
		return ""
	}
	return fmt.Sprintf("Trend: %d transfers / %s %s in the last %s\n",
		activity.TxCount, activity.Volume.StringFixed(2), tx.Currency, d.opts.TrendWindow)
}
