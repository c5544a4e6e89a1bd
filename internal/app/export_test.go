package app

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledger-whale-alerts/internal/storage"
)

type windowAlertStore struct {
	gotFrom  time.Time
	gotTo    time.Time
	gotLimit int
	alerts   []storage.WhaleAlert
}

func (s *windowAlertStore) InsertAlert(ctx context.Context, alert storage.WhaleAlert) (storage.WhaleAlert, bool, error) {
	return alert, true, nil
}

func (s *windowAlertStore) GetAlert(ctx context.Context, id int64) (storage.WhaleAlert, error) {
	return storage.WhaleAlert{}, storage.ErrAlertNotFound
}

func (s *windowAlertStore) ListUnsentAlerts(ctx context.Context, limit int) ([]storage.WhaleAlert, error) {
	return nil, nil
}

func (s *windowAlertStore) ListRecentAlerts(ctx context.Context, limit int) ([]storage.WhaleAlert, error) {
	return nil, nil
}

func (s *windowAlertStore) ListAlertsBetween(ctx context.Context, from, to time.Time, limit int) ([]storage.WhaleAlert, error) {
	s.gotFrom = from
	s.gotTo = to
	s.gotLimit = limit
	return s.alerts, nil
}

func (s *windowAlertStore) MarkAlertSent(ctx context.Context, id int64, sentAt time.Time, metadata json.RawMessage) error {
	return nil
}

func (s *windowAlertStore) CountAlertsSince(ctx context.Context, since time.Time) (int64, error) {
	return 0, nil
}

var _ storage.AlertStore = (*windowAlertStore)(nil)

func TestExportAlertsCSVUsesWindow(t *testing.T) {
	sentAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	store := &windowAlertStore{alerts: []storage.WhaleAlert{
		{
			ID:        1,
			TxHash:    "TX1",
			Amount:    decimal.NewFromInt(750_000),
			Currency:  "XRP",
			Category:  "whale_movement",
			Severity:  "high",
			Sent:      true,
			SentAt:    &sentAt,
			CreatedAt: sentAt.Add(-time.Minute),
		},
		{
			ID:        2,
			TxHash:    "TX2",
			Amount:    decimal.NewFromInt(2_000_000),
			Currency:  "XRP",
			Category:  "exchange_deposit",
			Severity:  "critical",
			CreatedAt: sentAt,
		},
	}}

	from := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "alerts.csv")

	count, err := exportAlertsCSV(context.Background(), store, path, from, to, 500)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("exported %d alerts, want 2", count)
	}

	if !store.gotFrom.Equal(from) || !store.gotTo.Equal(to) || store.gotLimit != 500 {
		t.Fatalf("查询窗口未生效: from=%s to=%s limit=%d", store.gotFrom, store.gotTo, store.gotLimit)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}
	if records[0][0] != "id" || records[0][9] != "tx_hash" {
		t.Fatalf("header wrong: %v", records[0])
	}
	if records[1][9] != "TX1" || records[1][7] != "true" {
		t.Fatalf("first row wrong: %v", records[1])
	}
	if records[2][9] != "TX2" || records[2][8] != "" {
		t.Fatalf("unsent alert row wrong: %v", records[2])
	}
}
