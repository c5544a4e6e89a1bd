package app

import (
	"context"
	"errors"
	"fmt"

	"ledger-whale-alerts/internal/poller"
)

// Poll runs one poll pass over all wallets, or a single wallet when an
// address is given. Newly ingested transactions are classified; delivery
// stays with the dispatch trigger and the run loop.
func (a *App) Poll(ctx context.Context, opts PollOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	p := a.newPoller(store)
	classifier := a.newClassifier(store)

	var results []poller.Result
	if opts.Wallet != "" {
		wallet, getErr := store.GetWallet(ctx, opts.Wallet)
		if getErr != nil {
			return fmt.Errorf("load wallet %s: %w", opts.Wallet, getErr)
		}
		results = append(results, p.PollWallet(ctx, wallet))
	} else {
		summary, pollErr := p.PollAll(ctx)
		if pollErr != nil {
			return pollErr
		}
		results = summary.Results
	}

	ingested := 0
	alertsCreated := 0
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			a.Logger.Error().Err(res.Err).Str("wallet", res.Wallet.Address).Msg("wallet poll failed")
			continue
		}
		ingested += res.Ingested

		for _, tx := range res.Transactions {
			if _, created, classifyErr := classifier.Classify(ctx, tx, res.Wallet); classifyErr != nil {
				a.Logger.Error().Err(classifyErr).Str("tx_hash", tx.Hash).Msg("classification failed")
			} else if created {
				alertsCreated++
			}
		}
	}

	a.Logger.Info().Int("wallets", len(results)).
		Int("ingested", ingested).
		Int("alerts_created", alertsCreated).
		Int("failed", failed).
		Msg("poll finished")

	if failed == len(results) && failed > 0 {
		return errors.New("all wallet polls failed")
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d wallet polls failed", failed, len(results))
	}
	return nil
}
