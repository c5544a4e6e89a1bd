package alerting

import (
	"context"
	"errors"
)

// Category classifies the kind of movement an alert records.
type Category string

// Alert categories.
const (
	CategoryWhaleMovement   Category = "whale_movement"
	CategoryExchangeDeposit Category = "exchange_deposit"
)

// Severity grades an alert by amount band.
type Severity string

// Alert severities.
const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Channel is an opaque outbound notification target id.
type Channel string

// ErrDeliveryFailed indicates both the primary channel and the escalation
// path were exhausted; the alert remains eligible for reprocessing.
var ErrDeliveryFailed = errors.New("alerting: delivery failed on all channels")

// Sender delivers one message to one channel.
type Sender interface {
	Send(ctx context.Context, channel Channel, text string) error
	// Probe exercises the sender's no-op health path.
	Probe(ctx context.Context) error
}
