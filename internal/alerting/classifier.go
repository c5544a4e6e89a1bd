package alerting

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ledger-whale-alerts/internal/config"
	"ledger-whale-alerts/internal/storage"
)

// ExchangeDirectory resolves known exchange deposit addresses. The table
// is maintained externally and injected at construction.
type ExchangeDirectory interface {
	Lookup(address string, tag *uint32) (name string, ok bool)
}

// StaticExchangeDirectory is an ExchangeDirectory backed by configuration
// entries. An entry with tag zero matches any tag on that address.
type StaticExchangeDirectory struct {
	byAddressTag map[string]string
	byAddress    map[string]string
}

// NewExchangeDirectory builds a directory from config entries.
func NewExchangeDirectory(entries []config.ExchangeEntry) *StaticExchangeDirectory {
	dir := &StaticExchangeDirectory{
		byAddressTag: make(map[string]string, len(entries)),
		byAddress:    make(map[string]string, len(entries)),
	}
	for _, entry := range entries {
		if entry.Address == "" {
			continue
		}
		if entry.Tag == 0 {
			dir.byAddress[entry.Address] = entry.Name
		} else {
			dir.byAddressTag[entry.Address+"#"+strconv.FormatUint(uint64(entry.Tag), 10)] = entry.Name
		}
	}
	return dir
}

// Lookup reports whether the destination belongs to a known exchange.
func (d *StaticExchangeDirectory) Lookup(address string, tag *uint32) (string, bool) {
	if tag != nil {
		if name, ok := d.byAddressTag[address+"#"+strconv.FormatUint(uint64(*tag), 10)]; ok {
			return name, true
		}
	}
	name, ok := d.byAddress[address]
	return name, ok
}

// SeverityBands derive severity from amount.
type SeverityBands struct {
	CriticalFloor decimal.Decimal
	HighFloor     decimal.Decimal
}

// Grade returns the severity band for an amount.
func (b SeverityBands) Grade(amount decimal.Decimal) Severity {
	switch {
	case amount.GreaterThanOrEqual(b.CriticalFloor):
		return SeverityCritical
	case amount.GreaterThanOrEqual(b.HighFloor):
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// Classifier evaluates stored transactions against wallet thresholds.
type Classifier struct {
	alerts           storage.AlertStore
	exchanges        ExchangeDirectory
	bands            SeverityBands
	defaultThreshold decimal.Decimal
	logger           zerolog.Logger
}

// NewClassifier constructs a Classifier.
func NewClassifier(alerts storage.AlertStore, exchanges ExchangeDirectory, bands SeverityBands, defaultThreshold decimal.Decimal, logger zerolog.Logger) *Classifier {
	return &Classifier{
		alerts:           alerts,
		exchanges:        exchanges,
		bands:            bands,
		defaultThreshold: defaultThreshold,
		logger:           logger.With().Str("component", "classifier").Logger(),
	}
}

// Classify creates a whale alert when the transaction amount meets the
// wallet threshold. At most one alert ever exists per transaction hash;
// re-running over the same data is a no-op, not an error. The returned
// bool reports whether a new alert was created.
func (c *Classifier) Classify(ctx context.Context, tx storage.Transaction, wallet storage.WatchedWallet) (storage.WhaleAlert, bool, error) {
	threshold := wallet.Threshold
	if threshold.IsZero() {
		threshold = c.defaultThreshold
	}

	if tx.Amount.LessThan(threshold) {
		return storage.WhaleAlert{}, false, nil
	}

	category := CategoryWhaleMovement
	exchangeName := ""
	if tx.Destination != nil && tx.DestinationTag != nil {
		if name, ok := c.exchanges.Lookup(*tx.Destination, tx.DestinationTag); ok {
			category = CategoryExchangeDeposit
			exchangeName = name
		}
	}

	alert := storage.WhaleAlert{
		TxHash:     tx.Hash,
		OwnerLabel: wallet.OwnerLabel,
		Amount:     tx.Amount,
		Currency:   tx.Currency,
		Category:   string(category),
		Severity:   string(c.bands.Grade(tx.Amount)),
	}
	if exchangeName != "" {
		alert.Metadata = []byte(fmt.Sprintf(`{"exchange":%q}`, exchangeName))
	}

	created, isNew, err := c.alerts.InsertAlert(ctx, alert)
	if err != nil {
		return storage.WhaleAlert{}, false, fmt.Errorf("persist alert: %w", err)
	}
	if !isNew {
		c.logger.Debug().Str("tx_hash", tx.Hash).Msg("alert already exists for transaction")
		return storage.WhaleAlert{}, false, nil
	}

	c.logger.Info().Str("tx_hash", tx.Hash).
		Str("owner", wallet.OwnerLabel).
		Str("amount", tx.Amount.String()).
		Str("category", string(category)).
		Str("severity", created.Severity).
		Msg("whale alert created")

	return created, true, nil
}
