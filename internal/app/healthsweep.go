package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
)

// HealthSweep runs one on-demand health sweep and prints the report.
func (a *App) HealthSweep(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	sender := a.newSender()
	p := a.newPoller(store)
	dispatcher := a.newDispatcher(store, sender)
	aggregator := a.newAggregator(store, p, dispatcher, sender)

	report := aggregator.RunHealthSweep(ctx)

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Service\tStatus\tLatency\tError")
	for _, check := range report.Checks {
		errMsg := ""
		if check.Err != nil {
			errMsg = check.Err.Error()
		}
		fmt.Fprintf(writer, "%s\t%s\t%dms\t%s\n", check.Service, check.Status, check.Latency.Milliseconds(), errMsg)
	}
	writer.Flush()

	if len(report.PersistentFailures) > 0 {
		fmt.Fprintf(os.Stdout, "persistent failures: %v\n", report.PersistentFailures)
	}
	if report.SlowSamples > 0 {
		fmt.Fprintf(os.Stdout, "slow samples in window: %d\n", report.SlowSamples)
	}
	if report.Notified != "" {
		fmt.Fprintf(os.Stdout, "notification sent: %s\n", report.Notified)
	}

	if report.Down() {
		return fmt.Errorf("health sweep found down services")
	}
	return nil
}
