package poller

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ledger-whale-alerts/internal/ledger"
	"ledger-whale-alerts/internal/storage"
)

type fakeFetcher struct {
	mu      sync.Mutex
	entries map[string][]ledger.Entry
	errs    map[string]error
	panics  map[string]bool
	calls   map[string]int64 // last minLedger per address
}

func (f *fakeFetcher) AccountTransactions(ctx context.Context, account string, minLedger int64) ([]ledger.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int64)
	}
	f.calls[account] = minLedger
	if f.panics[account] {
		panic("fetcher exploded")
	}
	if err := f.errs[account]; err != nil {
		return nil, err
	}
	return f.entries[account], nil
}

type fakeStore struct {
	mu      sync.Mutex
	wallets map[string]storage.WatchedWallet
	txs     map[string]storage.Transaction
	samples []storage.HealthSample
}

func newFakeStore(wallets ...storage.WatchedWallet) *fakeStore {
	store := &fakeStore{
		wallets: make(map[string]storage.WatchedWallet),
		txs:     make(map[string]storage.Transaction),
	}
	for _, wallet := range wallets {
		store.wallets[wallet.Address] = wallet
	}
	return store
}

func (s *fakeStore) ListActiveWallets(ctx context.Context) ([]storage.WatchedWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.WatchedWallet, 0, len(s.wallets))
	for _, wallet := range s.wallets {
		if wallet.IsActive {
			out = append(out, wallet)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (s *fakeStore) GetWallet(ctx context.Context, address string) (storage.WatchedWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wallet, ok := s.wallets[address]
	if !ok {
		return storage.WatchedWallet{}, storage.ErrWalletNotFound
	}
	return wallet, nil
}

func (s *fakeStore) AdvanceCursor(ctx context.Context, address string, cursor int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wallet, ok := s.wallets[address]
	if !ok {
		return storage.ErrWalletNotFound
	}
	if cursor > wallet.Cursor {
		wallet.Cursor = cursor
		s.wallets[address] = wallet
	}
	return nil
}

func (s *fakeStore) InsertTransaction(ctx context.Context, tx storage.Transaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.txs[tx.Hash]; exists {
		return false, nil
	}
	s.txs[tx.Hash] = tx
	return true, nil
}

func (s *fakeStore) GetTransaction(ctx context.Context, hash string) (storage.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[hash]
	if !ok {
		return storage.Transaction{}, errors.New("not found")
	}
	return tx, nil
}

func (s *fakeStore) WalletActivitySince(ctx context.Context, address string, since time.Time) (storage.WalletActivity, error) {
	return storage.WalletActivity{}, nil
}

func (s *fakeStore) InsertHealthSample(ctx context.Context, sample storage.HealthSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return nil
}

func (s *fakeStore) DownCountsSince(ctx context.Context, since time.Time) (map[string]int, error) {
	return map[string]int{}, nil
}

func (s *fakeStore) CountSlowSince(ctx context.Context, since time.Time, latencyMS int64) (int64, error) {
	return 0, nil
}

func (s *fakeStore) LastSampleTime(ctx context.Context, service string) (*time.Time, error) {
	return nil, nil
}

func (s *fakeStore) LatestSampleTime(ctx context.Context) (*time.Time, error) {
	return nil, nil
}

func (s *fakeStore) ListHealthSamplesBetween(ctx context.Context, from, to time.Time) ([]storage.HealthSample, error) {
	return nil, nil
}

func (s *fakeStore) Ping(ctx context.Context) error { return nil }

func entry(hash string, ledgerIndex int64, amount int64) ledger.Entry {
	return ledger.Entry{
		Hash:        hash,
		TxType:      "Payment",
		Account:     "rSender",
		Destination: "rWallet1",
		Amount:      decimal.NewFromInt(amount),
		Currency:    "XRP",
		LedgerIndex: ledgerIndex,
		ClosedAt:    time.Now().UTC(),
		Validated:   true,
	}
}

func wallet(address string, cursor int64) storage.WatchedWallet {
	return storage.WatchedWallet{
		Address:    address,
		OwnerLabel: "test",
		Threshold:  decimal.NewFromInt(500000),
		IsActive:   true,
		Cursor:     cursor,
	}
}

func TestPollWalletIngestsAndAdvancesCursor(t *testing.T) {
	store := newFakeStore(wallet("rWallet1", 100))
	fetcher := &fakeFetcher{entries: map[string][]ledger.Entry{
		"rWallet1": {entry("TX1", 101, 1000), entry("TX2", 105, 2000)},
	}}

	p := New(fetcher, store, store, store, Options{}, zerolog.Nop())

	res := p.PollWallet(context.Background(), store.wallets["rWallet1"])
	if res.Err != nil {
		t.Fatalf("poll failed: %v", res.Err)
	}
	if res.Ingested != 2 || res.Duplicates != 0 {
		t.Fatalf("ingested=%d duplicates=%d, want 2/0", res.Ingested, res.Duplicates)
	}
	if res.NewCursor != 105 {
		t.Fatalf("cursor should advance to 105, got %d", res.NewCursor)
	}
	if got := store.wallets["rWallet1"].Cursor; got != 105 {
		t.Fatalf("stored cursor = %d, want 105", got)
	}
	if fetcher.calls["rWallet1"] != 101 {
		t.Fatalf("min ledger should be cursor+1, got %d", fetcher.calls["rWallet1"])
	}
	if len(store.samples) != 1 || store.samples[0].Service != "poller:rWallet1" {
		t.Fatalf("expected one poller health sample, got %+v", store.samples)
	}
}

func TestPollWalletNoCursorFetchesLatestPage(t *testing.T) {
	store := newFakeStore(wallet("rWallet1", 0))
	fetcher := &fakeFetcher{entries: map[string][]ledger.Entry{
		"rWallet1": {entry("TX1", 200, 1000)},
	}}

	p := New(fetcher, store, store, store, Options{}, zerolog.Nop())

	res := p.PollWallet(context.Background(), store.wallets["rWallet1"])
	if res.Err != nil {
		t.Fatalf("poll failed: %v", res.Err)
	}
	if fetcher.calls["rWallet1"] != -1 {
		t.Fatalf("no-cursor poll should pass -1, got %d", fetcher.calls["rWallet1"])
	}
	if res.NewCursor != 200 {
		t.Fatalf("cursor should land on 200, got %d", res.NewCursor)
	}
}

func TestPollWalletIdempotentReplay(t *testing.T) {
	store := newFakeStore(wallet("rWallet1", 0))
	fetcher := &fakeFetcher{entries: map[string][]ledger.Entry{
		"rWallet1": {entry("TX1", 101, 1000), entry("TX2", 102, 2000)},
	}}

	p := New(fetcher, store, store, store, Options{}, zerolog.Nop())

	first := p.PollWallet(context.Background(), store.wallets["rWallet1"])
	if first.Err != nil || first.Ingested != 2 {
		t.Fatalf("first poll: ingested=%d err=%v", first.Ingested, first.Err)
	}

	// Replay the same page with the cursor rolled back. Nothing new lands
	// and the stored cursor never moves backwards.
	replayed := wallet("rWallet1", 0)
	second := p.PollWallet(context.Background(), replayed)
	if second.Err != nil {
		t.Fatalf("replay failed: %v", second.Err)
	}
	if second.Ingested != 0 || second.Duplicates != 2 {
		t.Fatalf("replay ingested=%d duplicates=%d, want 0/2", second.Ingested, second.Duplicates)
	}
	if len(store.txs) != 2 {
		t.Fatalf("重复回放不应产生新交易, 实际 %d 条", len(store.txs))
	}
	if got := store.wallets["rWallet1"].Cursor; got != 102 {
		t.Fatalf("stored cursor = %d, want 102", got)
	}
}

func TestPollWalletEmptyBatchLeavesCursor(t *testing.T) {
	store := newFakeStore(wallet("rWallet1", 42))
	fetcher := &fakeFetcher{}

	p := New(fetcher, store, store, store, Options{}, zerolog.Nop())

	res := p.PollWallet(context.Background(), store.wallets["rWallet1"])
	if res.Err != nil {
		t.Fatalf("poll failed: %v", res.Err)
	}
	if res.NewCursor != 42 || store.wallets["rWallet1"].Cursor != 42 {
		t.Fatalf("empty batch must leave cursor at 42, got %d", res.NewCursor)
	}
}

func TestPollWalletSkipsUnvalidatedEntries(t *testing.T) {
	unvalidated := entry("TXU", 150, 1000)
	unvalidated.Validated = false

	store := newFakeStore(wallet("rWallet1", 100))
	fetcher := &fakeFetcher{entries: map[string][]ledger.Entry{
		"rWallet1": {unvalidated, entry("TXV", 151, 2000)},
	}}

	p := New(fetcher, store, store, store, Options{}, zerolog.Nop())

	res := p.PollWallet(context.Background(), store.wallets["rWallet1"])
	if res.Err != nil {
		t.Fatalf("poll failed: %v", res.Err)
	}
	if res.Ingested != 1 {
		t.Fatalf("unvalidated entry must be skipped, ingested=%d", res.Ingested)
	}
	if _, exists := store.txs["TXU"]; exists {
		t.Fatal("unvalidated transaction must not be stored")
	}
}

func TestPollWalletFetchErrorRecordsDownSample(t *testing.T) {
	store := newFakeStore(wallet("rWallet1", 10))
	fetcher := &fakeFetcher{errs: map[string]error{"rWallet1": errors.New("boom")}}

	p := New(fetcher, store, store, store, Options{}, zerolog.Nop())

	res := p.PollWallet(context.Background(), store.wallets["rWallet1"])
	if res.Err == nil {
		t.Fatal("fetch error should surface in result")
	}
	if res.NewCursor != 10 {
		t.Fatalf("cursor must not move on failure, got %d", res.NewCursor)
	}
	if len(store.samples) != 1 || store.samples[0].Status != storage.HealthStatusDown {
		t.Fatalf("expected a down health sample, got %+v", store.samples)
	}
}

func TestPollAllIsolatesFailures(t *testing.T) {
	store := newFakeStore(
		wallet("rWalletA", 0),
		wallet("rWalletB", 0),
		wallet("rWalletC", 0),
	)
	fetcher := &fakeFetcher{
		entries: map[string][]ledger.Entry{
			"rWalletA": {entry("TXA", 10, 1000)},
			"rWalletC": {entry("TXC", 12, 3000)},
		},
		errs:   map[string]error{"rWalletB": errors.New("endpoint down")},
		panics: map[string]bool{},
	}

	p := New(fetcher, store, store, store, Options{WorkerLimit: 2}, zerolog.Nop())

	summary, err := p.PollAll(context.Background())
	if err != nil {
		t.Fatalf("PollAll failed: %v", err)
	}
	if summary.Succeeded != 2 || summary.Failed != 1 {
		t.Fatalf("succeeded=%d failed=%d, want 2/1", summary.Succeeded, summary.Failed)
	}
	if got := len(summary.Ingested()); got != 2 {
		t.Fatalf("expected 2 ingested transactions, got %d", got)
	}
	if _, exists := store.txs["TXA"]; !exists {
		t.Fatal("healthy wallet A must still ingest")
	}
	if _, exists := store.txs["TXC"]; !exists {
		t.Fatal("healthy wallet C must still ingest")
	}
}

func TestPollWalletRecoversPanic(t *testing.T) {
	store := newFakeStore(wallet("rWallet1", 30))
	fetcher := &fakeFetcher{panics: map[string]bool{"rWallet1": true}}

	p := New(fetcher, store, store, store, Options{}, zerolog.Nop())

	res := p.PollWallet(context.Background(), store.wallets["rWallet1"])
	if res.Err == nil {
		t.Fatal("直接轮询单个钱包时 panic 也必须被捕获")
	}
	if res.NewCursor != 30 {
		t.Fatalf("panic must not move the cursor, got %d", res.NewCursor)
	}
}

func TestPollAllRecoversPanics(t *testing.T) {
	store := newFakeStore(wallet("rWalletA", 5), wallet("rWalletB", 0))
	fetcher := &fakeFetcher{
		entries: map[string][]ledger.Entry{"rWalletB": {entry("TXB", 20, 900)}},
		panics:  map[string]bool{"rWalletA": true},
	}

	p := New(fetcher, store, store, store, Options{}, zerolog.Nop())

	summary, err := p.PollAll(context.Background())
	if err != nil {
		t.Fatalf("PollAll failed: %v", err)
	}
	if summary.Failed != 1 || summary.Succeeded != 1 {
		t.Fatalf("succeeded=%d failed=%d, want 1/1", summary.Succeeded, summary.Failed)
	}
	for _, res := range summary.Results {
		if res.Wallet.Address == "rWalletA" {
			if res.Err == nil {
				t.Fatal("panicking wallet should report an error result")
			}
			if res.NewCursor != 5 {
				t.Fatalf("panic must not move the cursor, got %d", res.NewCursor)
			}
		}
	}
}

func TestNormalizeDirection(t *testing.T) {
	outbound := entry("TXO", 10, 100)
	outbound.Account = "rWallet1"
	if tx := normalize(outbound, "rWallet1"); tx.Direction != storage.DirectionOutbound {
		t.Fatalf("wallet-originated entry should be outbound, got %s", tx.Direction)
	}

	inbound := entry("TXI", 11, 100)
	inbound.Account = "rOther"
	if tx := normalize(inbound, "rWallet1"); tx.Direction != storage.DirectionInbound {
		t.Fatalf("third-party entry should be inbound, got %s", tx.Direction)
	}
}
