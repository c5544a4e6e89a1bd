package alerting

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ledger-whale-alerts/internal/storage"
)

// RetryPolicy bounds a retried send: at most MaxAttempts tries, sleeping
// BaseDelay * 2^(attempt-1) between them, capped at MaxDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Delay returns the backoff before the given retry (attempt is 1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Retryer wraps channel sends with bounded retries and records one
// NotificationAttempt row per try, success or failure.
type Retryer struct {
	policy   RetryPolicy
	attempts storage.AttemptStore
	logger   zerolog.Logger
}

// NewRetryer constructs a Retryer.
func NewRetryer(policy RetryPolicy, attempts storage.AttemptStore, logger zerolog.Logger) *Retryer {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 2 * time.Second
	}
	if policy.MaxDelay < policy.BaseDelay {
		policy.MaxDelay = 30 * time.Second
	}
	return &Retryer{
		policy:   policy,
		attempts: attempts,
		logger:   logger.With().Str("component", "retryer").Logger(),
	}
}

// SendWithRetry runs send up to maxAttempts times (the policy default when
// maxAttempts is zero). It returns the number of attempts made and the
// last error, nil on success.
func (r *Retryer) SendWithRetry(ctx context.Context, alertID int64, channel Channel, dispatchID string, maxAttempts int, send func(context.Context) error) (int, error) {
	if maxAttempts <= 0 {
		maxAttempts = r.policy.MaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := send(ctx)
		r.recordAttempt(ctx, alertID, channel, attempt, dispatchID, err)
		if err == nil {
			if attempt > 1 {
				r.logger.Info().Int64("alert_id", alertID).Str("channel", string(channel)).
					Int("attempts", attempt).Msg("send succeeded after retries")
			}
			return attempt, nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		delay := r.policy.Delay(attempt)
		r.logger.Warn().Err(err).Int64("alert_id", alertID).Str("channel", string(channel)).
			Int("attempt", attempt).Int("max_attempts", maxAttempts).Dur("retry_in", delay).
			Msg("send failed, retrying")

		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-time.After(delay):
		}
	}

	return maxAttempts, lastErr
}

func (r *Retryer) recordAttempt(ctx context.Context, alertID int64, channel Channel, attempt int, dispatchID string, sendErr error) {
	if r.attempts == nil {
		return
	}

	row := storage.NotificationAttempt{
		AlertID:    alertID,
		Channel:    string(channel),
		Attempt:    attempt,
		Status:     storage.AttemptStatusSuccess,
		DispatchID: dispatchID,
	}
	if sendErr != nil {
		row.Status = storage.AttemptStatusFailed
		msg := sendErr.Error()
		row.Error = &msg
	}

	if err := r.attempts.InsertAttempt(ctx, row); err != nil {
		r.logger.Error().Err(err).Int64("alert_id", alertID).Msg("failed to record notification attempt")
	}
}
