package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Show prints recent whale alerts.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	alerts, err := store.ListRecentAlerts(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tCreated (UTC)\tOwner\tAmount\tCategory\tSeverity\tSent\tTx")

	for _, alert := range alerts {
		sent := "no"
		if alert.Sent {
			sent = "yes"
			if alert.SentAt != nil {
				sent = alert.SentAt.UTC().Format(time.RFC3339)
			}
		}
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%s %s\t%s\t%s\t%s\t%s\n",
			alert.ID,
			alert.CreatedAt.UTC().Format(time.RFC3339),
			sanitizeInline(alert.OwnerLabel),
			alert.Amount.StringFixed(2),
			alert.Currency,
			alert.Category,
			alert.Severity,
			sent,
			alert.TxHash,
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
