package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"ledger-whale-alerts/internal/storage"
)

// Export writes alert history as CSV and/or health latency as a PNG chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.PollInterval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	if opts.CSVPath != "" {
		count, csvErr := exportAlertsCSV(ctx, store, opts.CSVPath, from, to, opts.MaxPoints)
		if csvErr != nil {
			return csvErr
		}
		a.Logger.Info().Int("alerts", count).Str("path", opts.CSVPath).
			Time("from", from).Time("to", to).Msg("alert history exported")
	}

	if opts.PNGPath != "" {
		samples, listErr := store.ListHealthSamplesBetween(ctx, from, to)
		if listErr != nil {
			return listErr
		}
		if len(samples) == 0 {
			a.Logger.Info().Msg("no health samples found for export window")
			return nil
		}
		downsampled := downsampleSamples(samples, opts.MaxPoints)
		a.Logger.Info().Int("total", len(samples)).Int("exported", len(downsampled)).Msg("exporting health samples")
		if err := writeLatencyPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleSamples(samples []storage.HealthSample, max int) []storage.HealthSample {
	if max <= 0 || len(samples) <= max {
		return samples
	}

	result := make([]storage.HealthSample, 0, max)
	step := float64(len(samples)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		result = append(result, samples[idx])
	}
	return result
}

// exportAlertsCSV writes alerts created within [from, to) to path and
// returns how many were exported.
func exportAlertsCSV(ctx context.Context, alerts storage.AlertStore, path string, from, to time.Time, limit int) (int, error) {
	records, err := alerts.ListAlertsBetween(ctx, from, to, limit)
	if err != nil {
		return 0, err
	}
	if err := writeAlertsCSV(path, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func writeAlertsCSV(path string, alerts []storage.WhaleAlert) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"id", "created_at", "owner_label", "amount", "currency", "category", "severity", "sent", "sent_at", "tx_hash"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, alert := range alerts {
		sentAt := ""
		if alert.SentAt != nil {
			sentAt = alert.SentAt.UTC().Format(time.RFC3339)
		}
		sent := "false"
		if alert.Sent {
			sent = "true"
		}
		record := []string{
			strconv.FormatInt(alert.ID, 10),
			alert.CreatedAt.UTC().Format(time.RFC3339),
			alert.OwnerLabel,
			alert.Amount.String(),
			alert.Currency,
			alert.Category,
			alert.Severity,
			sent,
			sentAt,
			alert.TxHash,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeLatencyPNG(path string, samples []storage.HealthSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	byService := make(map[string][]storage.HealthSample)
	for _, sample := range samples {
		byService[sample.Service] = append(byService[sample.Service], sample)
	}

	services := make([]string, 0, len(byService))
	for service := range byService {
		services = append(services, service)
	}
	sort.Strings(services)

	series := make([]chart.Series, 0, len(services))
	for _, service := range services {
		points := byService[service]
		x := make([]time.Time, len(points))
		y := make([]float64, len(points))
		for i, sample := range points {
			x[i] = sample.CheckedAt
			y[i] = float64(sample.LatencyMS)
		}
		series = append(series, chart.TimeSeries{
			Name:    service,
			XValues: x,
			YValues: y,
		})
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Latency (ms)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

