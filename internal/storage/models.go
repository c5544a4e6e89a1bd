package storage

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// WatchedWallet is a monitored ledger address. Cursor is the highest
// ledger index already processed; it only ever moves forward.
type WatchedWallet struct {
	Address    string
	OwnerLabel string
	Threshold  decimal.Decimal
	IsActive   bool
	Cursor     int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Transaction is one ledger-confirmed transfer, immutable once stored.
// Hash is the natural key; re-ingesting the same hash is a no-op.
type Transaction struct {
	Hash           string
	WalletAddress  string
	Amount         decimal.Decimal
	Currency       string
	Direction      string
	TxType         string
	Destination    *string
	DestinationTag *uint32
	LedgerIndex    int64
	ExecutedAt     time.Time
	CreatedAt      time.Time
}

// Transaction directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// WhaleAlert is derived from exactly one Transaction whose amount met the
// wallet threshold. At most one alert exists per transaction hash.
type WhaleAlert struct {
	ID         int64
	TxHash     string
	OwnerLabel string
	Amount     decimal.Decimal
	Currency   string
	Category   string
	Severity   string
	Sent       bool
	SentAt     *time.Time
	Metadata   json.RawMessage
	CreatedAt  time.Time
}

// NotificationAttempt is one row per (alert, channel, attempt). Append-only.
type NotificationAttempt struct {
	ID         int64
	AlertID    int64
	Channel    string
	Attempt    int
	Status     string
	Error      *string
	DispatchID string
	CreatedAt  time.Time
}

// Notification attempt statuses.
const (
	AttemptStatusSuccess = "success"
	AttemptStatusFailed  = "failed"
)

// HealthSample records one observation of one service. Append-only.
type HealthSample struct {
	ID        int64
	Service   string
	Status    string
	LatencyMS int64
	Error     *string
	CheckedAt time.Time
}

// Health sample statuses.
const (
	HealthStatusHealthy  = "healthy"
	HealthStatusDegraded = "degraded"
	HealthStatusDown     = "down"
)

// WalletActivity summarises a wallet's recent transaction history, used
// for trend enrichment on outgoing alerts.
type WalletActivity struct {
	TxCount int64
	Volume  decimal.Decimal
}
