package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ledger-whale-alerts/internal/alerting"
	"ledger-whale-alerts/internal/health"
	"ledger-whale-alerts/internal/poller"
	"ledger-whale-alerts/internal/storage"
)

// dispatchBatchSize caps how many pending alerts one tick drains.
const dispatchBatchSize = 50

// Service orchestrates the poll → classify → dispatch pipeline.
type Service struct {
	poller     *poller.Poller
	classifier *alerting.Classifier
	dispatcher *alerting.Dispatcher
	aggregator *health.Aggregator
	alerts     storage.AlertStore
	logger     zerolog.Logger

	alertsOn bool
	locker   storage.AdvisoryLocker
	lockKey  int64
}

// New constructs the pipeline service.
func New(p *poller.Poller, classifier *alerting.Classifier, dispatcher *alerting.Dispatcher, aggregator *health.Aggregator, alerts storage.AlertStore, alertsOn bool, locker storage.AdvisoryLocker, lockKey int64, logger zerolog.Logger) *Service {
	return &Service{
		poller:     p,
		classifier: classifier,
		dispatcher: dispatcher,
		aggregator: aggregator,
		alerts:     alerts,
		logger:     logger.With().Str("component", "service").Logger(),
		alertsOn:   alertsOn,
		locker:     locker,
		lockKey:    lockKey,
	}
}

// TickResult is the structured outcome of one pipeline tick. Per-item
// failures are collected, never raised.
type TickResult struct {
	WalletsPolled int
	PollFailures  int
	Ingested      int
	AlertsCreated int
	Dispatched    int
	DispatchFails int
	Errors        []string
}

// Failed reports whether anything in the tick went wrong.
func (r TickResult) Failed() bool {
	return len(r.Errors) > 0
}

// RunPollTick executes one full pipeline pass under the advisory lock.
func (s *Service) RunPollTick(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	result := s.ExecutePipeline(ctx)
	s.logger.Info().Time("bucket", bucket).
		Int("wallets", result.WalletsPolled).
		Int("poll_failures", result.PollFailures).
		Int("ingested", result.Ingested).
		Int("alerts_created", result.AlertsCreated).
		Int("dispatched", result.Dispatched).
		Int("dispatch_failures", result.DispatchFails).
		Msg("pipeline tick finished")

	if result.Failed() {
		return fmt.Errorf("pipeline tick had %d failures", len(result.Errors))
	}
	return nil
}

// ExecutePipeline polls all wallets, classifies newly ingested
// transactions, and drains pending alert deliveries.
func (s *Service) ExecutePipeline(ctx context.Context) TickResult {
	var result TickResult

	summary, err := s.poller.PollAll(ctx)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	result.WalletsPolled = len(summary.Results)
	for _, res := range summary.Results {
		if res.Err != nil {
			result.PollFailures++
			result.Errors = append(result.Errors, fmt.Sprintf("poll %s: %v", res.Wallet.Address, res.Err))
			continue
		}
		result.Ingested += res.Ingested

		if !s.alertsOn || s.classifier == nil {
			continue
		}
		for _, tx := range res.Transactions {
			if _, created, classifyErr := s.classifier.Classify(ctx, tx, res.Wallet); classifyErr != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("classify %s: %v", tx.Hash, classifyErr))
			} else if created {
				result.AlertsCreated++
			}
		}
	}

	if s.alertsOn && s.dispatcher != nil {
		dispatched, failed, errs := s.DrainPendingAlerts(ctx)
		result.Dispatched = dispatched
		result.DispatchFails = failed
		result.Errors = append(result.Errors, errs...)
	}

	return result
}

// DrainPendingAlerts dispatches unsent alerts, oldest first. A delivery
// failure leaves the alert unsent for a later run.
func (s *Service) DrainPendingAlerts(ctx context.Context) (dispatched, failed int, errs []string) {
	pending, err := s.alerts.ListUnsentAlerts(ctx, dispatchBatchSize)
	if err != nil {
		return 0, 0, []string{fmt.Sprintf("list unsent alerts: %v", err)}
	}

	for _, alert := range pending {
		res := s.dispatcher.Dispatch(ctx, alert)
		if res.Delivered {
			dispatched++
			continue
		}
		failed++
		if res.Err != nil {
			errs = append(errs, fmt.Sprintf("dispatch alert %d: %v", alert.ID, res.Err))
		}
	}
	return dispatched, failed, errs
}

// RunHealthTick executes one health sweep.
func (s *Service) RunHealthTick(ctx context.Context, bucket time.Time) error {
	if s.aggregator == nil {
		return fmt.Errorf("health aggregator not configured")
	}

	report := s.aggregator.RunHealthSweep(ctx)
	s.logger.Info().Time("bucket", bucket).
		Bool("down", report.Down()).
		Bool("degraded", report.Degraded).
		Strs("persistent_failures", report.PersistentFailures).
		Str("notified", report.Notified).
		Msg("health sweep finished")
	return nil
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
