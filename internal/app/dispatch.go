package app

import (
	"context"
	"errors"
	"fmt"
)

// Dispatch delivers one stored alert by id. Test mode sends a rendering
// to the system channel without marking the alert sent.
func (a *App) Dispatch(ctx context.Context, opts DispatchOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is disabled; enable alerting to dispatch")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	alert, err := store.GetAlert(ctx, opts.AlertID)
	if err != nil {
		return fmt.Errorf("load alert %d: %w", opts.AlertID, err)
	}

	dispatcher := a.newDispatcher(store, a.newSender())

	if opts.TestMode {
		if err := dispatcher.SendTest(ctx, alert); err != nil {
			return fmt.Errorf("test send: %w", err)
		}
		a.Logger.Info().Int64("alert_id", alert.ID).Msg("test dispatch delivered to system channel")
		return nil
	}

	if alert.Sent {
		a.Logger.Warn().Int64("alert_id", alert.ID).Msg("alert already marked sent; re-dispatching anyway")
	}

	result := dispatcher.Dispatch(ctx, alert)
	if !result.Delivered {
		return fmt.Errorf("dispatch alert %d: %w", alert.ID, result.Err)
	}

	a.Logger.Info().Int64("alert_id", alert.ID).
		Str("channel", string(result.Channel)).
		Bool("escalated", result.Escalated).
		Int("attempts", result.Attempts).
		Msg("alert dispatched")
	return nil
}
