package alerting

import (
	"testing"

	"github.com/shopspring/decimal"
)

func testChannels() ChannelSet {
	return ChannelSet{
		Critical:         "@critical",
		ExchangeDeposits: "@deposits",
		WhaleMovements:   "@whales",
		System:           "@system",
	}
}

func TestRoute(t *testing.T) {
	depositFloor := decimal.NewFromInt(250_000)
	channels := testChannels()

	cases := []struct {
		name     string
		amount   int64
		category Category
		severity Severity
		want     Channel
	}{
		{"critical wins over category", 2_000_000, CategoryExchangeDeposit, SeverityCritical, "@critical"},
		{"large deposit", 300_000, CategoryExchangeDeposit, SeverityHigh, "@deposits"},
		{"deposit at floor", 250_000, CategoryExchangeDeposit, SeverityMedium, "@deposits"},
		{"small deposit falls through", 249_999, CategoryExchangeDeposit, SeverityMedium, "@whales"},
		{"plain movement", 800_000, CategoryWhaleMovement, SeverityHigh, "@whales"},
		{"unknown category", 800_000, Category("weird"), SeverityMedium, "@whales"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Route(decimal.NewFromInt(tc.amount), tc.category, tc.severity, depositFloor, channels)
			if got != tc.want {
				t.Fatalf("Route = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestRouteMissingCriticalChannel(t *testing.T) {
	channels := testChannels()
	channels.Critical = ""

	got := Route(decimal.NewFromInt(5_000_000), CategoryWhaleMovement, SeverityCritical, decimal.NewFromInt(250_000), channels)
	if got != "@whales" {
		t.Fatalf("critical without a critical channel should fall back, got %s", got)
	}
}
