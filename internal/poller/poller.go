package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ledger-whale-alerts/internal/ledger"
	"ledger-whale-alerts/internal/storage"
)

// Options tune the poller.
type Options struct {
	WorkerLimit int
}

// Poller ingests ledger transactions for watched wallets.
type Poller struct {
	fetcher ledger.TransactionFetcher
	wallets storage.WalletStore
	txs     storage.TransactionStore
	health  storage.HealthSampleStore
	opts    Options
	logger  zerolog.Logger
}

// New constructs a Poller.
func New(fetcher ledger.TransactionFetcher, wallets storage.WalletStore, txs storage.TransactionStore, health storage.HealthSampleStore, opts Options, logger zerolog.Logger) *Poller {
	if opts.WorkerLimit <= 0 {
		opts.WorkerLimit = 4
	}
	return &Poller{
		fetcher: fetcher,
		wallets: wallets,
		txs:     txs,
		health:  health,
		opts:    opts,
		logger:  logger.With().Str("component", "poller").Logger(),
	}
}

// Result reports the outcome of polling one wallet.
type Result struct {
	Wallet       storage.WatchedWallet
	Ingested     int
	Duplicates   int
	NewCursor    int64
	Transactions []storage.Transaction
	Err          error
}

// Summary aggregates one PollAll invocation.
type Summary struct {
	Results   []Result
	Succeeded int
	Failed    int
}

// Ingested lists every transaction newly stored during the invocation.
func (s Summary) Ingested() []storage.Transaction {
	var out []storage.Transaction
	for _, res := range s.Results {
		out = append(out, res.Transactions...)
	}
	return out
}

// PollAll polls every active wallet. Per-wallet polls run concurrently up
// to the worker limit; one wallet's failure never aborts the others.
func (p *Poller) PollAll(ctx context.Context) (Summary, error) {
	wallets, err := p.wallets.ListActiveWallets(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list active wallets: %w", err)
	}

	results := make([]Result, len(wallets))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.opts.WorkerLimit)
	for i, wallet := range wallets {
		i, wallet := i, wallet
		group.Go(func() error {
			results[i] = p.PollWallet(groupCtx, wallet)
			return nil
		})
	}
	// Workers never return errors; failures live in their Result.
	_ = group.Wait()

	summary := Summary{Results: results}
	for _, res := range results {
		if res.Err != nil {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}

	p.logger.Info().Int("wallets", len(wallets)).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("poll sweep finished")

	return summary, nil
}

// PollWallet fetches and stores transactions newer than the wallet cursor,
// then advances the cursor to the highest ledger index observed. An empty
// batch leaves the cursor untouched. A health sample is recorded for every
// attempt, success or failure. Panics are contained and reported as the
// result error so one wallet's fault cannot corrupt another's cursor.
func (p *Poller) PollWallet(ctx context.Context, wallet storage.WatchedWallet) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{Wallet: wallet, NewCursor: wallet.Cursor, Err: fmt.Errorf("poll panic: %v", r)}
		}
	}()

	result = Result{Wallet: wallet, NewCursor: wallet.Cursor}

	minLedger := int64(-1)
	if wallet.Cursor > 0 {
		minLedger = wallet.Cursor + 1
	}

	started := time.Now()
	entries, err := p.fetcher.AccountTransactions(ctx, wallet.Address, minLedger)
	latency := time.Since(started)
	p.recordSample(ctx, wallet.Address, latency, err)
	if err != nil {
		result.Err = fmt.Errorf("fetch transactions: %w", err)
		return result
	}

	maxLedger := wallet.Cursor
	for _, entry := range entries {
		if !entry.Validated {
			continue
		}
		if entry.LedgerIndex <= wallet.Cursor {
			// Overlapping page below the cursor; already processed.
			continue
		}

		tx := normalize(entry, wallet.Address)
		inserted, insertErr := p.txs.InsertTransaction(ctx, tx)
		if insertErr != nil {
			result.Err = fmt.Errorf("store transaction %s: %w", tx.Hash, insertErr)
			return result
		}
		if inserted {
			result.Ingested++
			result.Transactions = append(result.Transactions, tx)
		} else {
			result.Duplicates++
		}
		if entry.LedgerIndex > maxLedger {
			maxLedger = entry.LedgerIndex
		}
	}

	if maxLedger > wallet.Cursor {
		if cursorErr := p.wallets.AdvanceCursor(ctx, wallet.Address, maxLedger); cursorErr != nil {
			result.Err = fmt.Errorf("advance cursor: %w", cursorErr)
			return result
		}
		result.NewCursor = maxLedger
	}

	p.logger.Debug().Str("wallet", wallet.Address).
		Int("ingested", result.Ingested).
		Int("duplicates", result.Duplicates).
		Int64("cursor", result.NewCursor).
		Msg("wallet polled")

	return result
}

// Probe performs a no-side-effect liveness check for the health sweep.
func (p *Poller) Probe(ctx context.Context) error {
	if _, err := p.wallets.ListActiveWallets(ctx); err != nil {
		return fmt.Errorf("poller probe: %w", err)
	}
	return nil
}

func (p *Poller) recordSample(ctx context.Context, address string, latency time.Duration, pollErr error) {
	if p.health == nil {
		return
	}

	sample := storage.HealthSample{
		Service:   "poller:" + address,
		Status:    storage.HealthStatusHealthy,
		LatencyMS: latency.Milliseconds(),
		CheckedAt: time.Now().UTC(),
	}
	if pollErr != nil {
		sample.Status = storage.HealthStatusDown
		msg := pollErr.Error()
		sample.Error = &msg
	}

	if err := p.health.InsertHealthSample(ctx, sample); err != nil {
		p.logger.Error().Err(err).Str("wallet", address).Msg("failed to record poll health sample")
	}
}

func normalize(entry ledger.Entry, walletAddress string) storage.Transaction {
	direction := storage.DirectionInbound
	if entry.Account == walletAddress {
		direction = storage.DirectionOutbound
	}

	tx := storage.Transaction{
		Hash:          entry.Hash,
		WalletAddress: walletAddress,
		Amount:        entry.Amount,
		Currency:      entry.Currency,
		Direction:     direction,
		TxType:        entry.TxType,
		LedgerIndex:   entry.LedgerIndex,
		ExecutedAt:    entry.ClosedAt,
	}
	if entry.Destination != "" {
		destination := entry.Destination
		tx.Destination = &destination
	}
	if entry.DestinationTag != nil {
		tag := *entry.DestinationTag
		tx.DestinationTag = &tag
	}
	return tx
}
