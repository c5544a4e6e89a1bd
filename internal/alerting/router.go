package alerting

import (
	"github.com/shopspring/decimal"
)

// ChannelSet holds the configured routing destinations. System receives
// escalations after a primary channel is exhausted.
type ChannelSet struct {
	Critical         Channel
	ExchangeDeposits Channel
	WhaleMovements   Channel
	System           Channel
}

// Route picks the delivery channel for an alert. It is a pure function of
// (amount, category, severity): critical alerts go to the critical
// channel, large exchange deposits to the deposits channel, everything
// else to the general movements channel.
func Route(amount decimal.Decimal, category Category, severity Severity, depositFloor decimal.Decimal, channels ChannelSet) Channel {
	if severity == SeverityCritical && channels.Critical != "" {
		return channels.Critical
	}

	switch category {
	case CategoryExchangeDeposit:
		if amount.GreaterThanOrEqual(depositFloor) && channels.ExchangeDeposits != "" {
			return channels.ExchangeDeposits
		}
		return channels.WhaleMovements
	case CategoryWhaleMovement:
		return channels.WhaleMovements
	default:
		return channels.WhaleMovements
	}
}
