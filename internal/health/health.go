package health

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ledger-whale-alerts/internal/alerting"
	"ledger-whale-alerts/internal/storage"
)

// Service names used for health samples.
const (
	ServicePoller   = "poller"
	ServiceNotifier = "notifier"
	ServiceStore    = "store"
	ServiceActivity = "activity"

	// summaryService tracks when the last healthy summary went out.
	summaryService = "health_summary"
)

// Probe is a lightweight no-side-effect liveness check.
type Probe interface {
	Probe(ctx context.Context) error
}

// Options tune the aggregator.
type Options struct {
	CheckTimeout         time.Duration
	DownWindow           time.Duration
	DownThreshold        int
	SlowLatency          time.Duration
	SlowWindow           time.Duration
	SlowCountThreshold   int
	SummaryInterval      time.Duration
	AlertActivityWindow  time.Duration
	SampleActivityWindow time.Duration
	Channels             alerting.ChannelSet
}

// CheckResult is the outcome of one check in a sweep.
type CheckResult struct {
	Service string
	Status  string
	Latency time.Duration
	Err     error
}

// Report summarises one sweep.
type Report struct {
	Checks             []CheckResult
	PersistentFailures []string
	SlowSamples        int64
	Degraded           bool
	Notified           string
}

// Down reports whether any check observed a down service.
func (r Report) Down() bool {
	for _, check := range r.Checks {
		if check.Status == storage.HealthStatusDown {
			return true
		}
	}
	return false
}

// Aggregator periodically exercises the pipeline stages, records samples,
// detects sustained degradation, and emits notifications through the same
// delivery primitive the notifier uses.
type Aggregator struct {
	samples       storage.HealthSampleStore
	alerts        storage.AlertStore
	pollerProbe   Probe
	notifierProbe Probe
	sender        alerting.Sender
	retryer       *alerting.Retryer
	opts          Options
	logger        zerolog.Logger

	now func() time.Time
}

// New constructs an Aggregator.
func New(samples storage.HealthSampleStore, alerts storage.AlertStore, pollerProbe, notifierProbe Probe, sender alerting.Sender, retryer *alerting.Retryer, opts Options, logger zerolog.Logger) *Aggregator {
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = 5 * time.Second
	}
	if opts.DownWindow <= 0 {
		opts.DownWindow = 15 * time.Minute
	}
	if opts.DownThreshold <= 0 {
		opts.DownThreshold = 3
	}
	if opts.SummaryInterval <= 0 {
		opts.SummaryInterval = 6 * time.Hour
	}
	return &Aggregator{
		samples:       samples,
		alerts:        alerts,
		pollerProbe:   pollerProbe,
		notifierProbe: notifierProbe,
		sender:        sender,
		retryer:       retryer,
		opts:          opts,
		logger:        logger.With().Str("component", "health").Logger(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// RunHealthSweep executes all checks concurrently, each inside its own
// error boundary and timeout, records a sample per check, runs trend
// analysis over the sample history, and applies the notification policy.
func (a *Aggregator) RunHealthSweep(ctx context.Context) Report {
	// Snapshot the newest sample before any check writes its own; the
	// sweep's fresh rows must not mask a dead scheduler.
	preSweep, preSweepErr := a.samples.LatestSampleTime(ctx)

	checks := []struct {
		service string
		run     func(context.Context) (string, error)
	}{
		{ServicePoller, a.checkProbe(a.pollerProbe)},
		{ServiceNotifier, a.checkProbe(a.notifierProbe)},
		{ServiceStore, a.checkStore},
		{ServiceActivity, a.checkActivity(preSweep, preSweepErr)},
	}

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, service string, run func(context.Context) (string, error)) {
			defer wg.Done()
			results[i] = a.runCheck(ctx, service, run)
		}(i, check.service, check.run)
	}
	wg.Wait()

	report := Report{Checks: results}
	a.analyseTrends(ctx, &report)
	a.notify(ctx, &report)
	return report
}

// runCheck applies the per-check timeout and panic boundary, and writes
// the resulting sample immediately.
func (a *Aggregator) runCheck(ctx context.Context, service string, run func(context.Context) (string, error)) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, a.opts.CheckTimeout)
	defer cancel()

	started := a.now()
	status, err := a.runSafe(checkCtx, run)
	latency := a.now().Sub(started)

	result := CheckResult{Service: service, Status: status, Latency: latency, Err: err}

	sample := storage.HealthSample{
		Service:   service,
		Status:    status,
		LatencyMS: latency.Milliseconds(),
		CheckedAt: a.now(),
	}
	if err != nil {
		msg := err.Error()
		sample.Error = &msg
	}
	if insertErr := a.samples.InsertHealthSample(ctx, sample); insertErr != nil {
		a.logger.Error().Err(insertErr).Str("service", service).Msg("failed to record health sample")
	}

	return result
}

func (a *Aggregator) runSafe(ctx context.Context, run func(context.Context) (string, error)) (status string, err error) {
	defer func() {
		if r := recover(); r != nil {
			status = storage.HealthStatusDown
			err = fmt.Errorf("check panic: %v", r)
		}
	}()
	return run(ctx)
}

func (a *Aggregator) checkProbe(probe Probe) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		if probe == nil {
			return storage.HealthStatusDegraded, fmt.Errorf("probe not configured")
		}
		if err := probe.Probe(ctx); err != nil {
			return storage.HealthStatusDown, err
		}
		return storage.HealthStatusHealthy, nil
	}
}

func (a *Aggregator) checkStore(ctx context.Context) (string, error) {
	if err := a.samples.Ping(ctx); err != nil {
		return storage.HealthStatusDown, err
	}
	return storage.HealthStatusHealthy, nil
}

// checkActivity verifies the pipeline is actually doing work: a sample gap
// means the scheduler itself is not running, which is a different failure
// mode from an unhealthy service. It only judges samples that existed
// before this sweep started, so the sweep cannot vouch for itself.
func (a *Aggregator) checkActivity(latest *time.Time, latestErr error) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		now := a.now()

		if latestErr != nil {
			return storage.HealthStatusDown, latestErr
		}
		if latest == nil || now.Sub(*latest) > a.opts.SampleActivityWindow {
			return storage.HealthStatusDown, fmt.Errorf("no health samples within %s; scheduler may not be running", a.opts.SampleActivityWindow)
		}

		alertCount, err := a.alerts.CountAlertsSince(ctx, now.Add(-a.opts.AlertActivityWindow))
		if err != nil {
			return storage.HealthStatusDown, err
		}
		if alertCount == 0 {
			return storage.HealthStatusDegraded, fmt.Errorf("no alerts fired within %s", a.opts.AlertActivityWindow)
		}

		return storage.HealthStatusHealthy, nil
	}
}

// analyseTrends distinguishes persistent outages from transient blips and
// spots systemic slowness without outright failures.
func (a *Aggregator) analyseTrends(ctx context.Context, report *Report) {
	now := a.now()

	downCounts, err := a.samples.DownCountsSince(ctx, now.Add(-a.opts.DownWindow))
	if err != nil {
		a.logger.Error().Err(err).Msg("down-count trend query failed")
	} else {
		for service, count := range downCounts {
			if count >= a.opts.DownThreshold {
				report.PersistentFailures = append(report.PersistentFailures, service)
			}
		}
		sort.Strings(report.PersistentFailures)
	}

	slow, err := a.samples.CountSlowSince(ctx, now.Add(-a.opts.SlowWindow), a.opts.SlowLatency.Milliseconds())
	if err != nil {
		a.logger.Error().Err(err).Msg("slow-sample trend query failed")
		return
	}
	report.SlowSamples = slow
	if a.opts.SlowCountThreshold > 0 && slow >= int64(a.opts.SlowCountThreshold) {
		report.Degraded = true
	}
}

// notify applies the notification policy: immediate critical on any down
// service, a warning for degradation without critical issues, and a
// time-gated informational summary when everything is healthy.
func (a *Aggregator) notify(ctx context.Context, report *Report) {
	if a.sender == nil {
		return
	}

	switch {
	case report.Down():
		a.deliver(ctx, a.criticalChannel(), a.renderCritical(report))
		report.Notified = "critical"
	case report.Degraded || a.anyDegraded(report):
		a.deliver(ctx, a.opts.Channels.System, a.renderWarning(report))
		report.Notified = "warning"
	default:
		if a.summaryDue(ctx) {
			a.deliver(ctx, a.opts.Channels.System, a.renderSummary(report))
			a.recordSummarySent(ctx)
			report.Notified = "summary"
		}
	}
}

func (a *Aggregator) criticalChannel() alerting.Channel {
	if a.opts.Channels.Critical != "" {
		return a.opts.Channels.Critical
	}
	return a.opts.Channels.System
}

func (a *Aggregator) anyDegraded(report *Report) bool {
	for _, check := range report.Checks {
		if check.Status == storage.HealthStatusDegraded {
			return true
		}
	}
	return false
}

// summaryDue gates the periodic healthy summary on the timestamp of the
// last summary sample, so repeated sweeps do not spam the channel.
func (a *Aggregator) summaryDue(ctx context.Context) bool {
	last, err := a.samples.LastSampleTime(ctx, summaryService)
	if err != nil {
		a.logger.Error().Err(err).Msg("summary gate query failed")
		return false
	}
	return last == nil || a.now().Sub(*last) >= a.opts.SummaryInterval
}

func (a *Aggregator) recordSummarySent(ctx context.Context) {
	sample := storage.HealthSample{
		Service:   summaryService,
		Status:    storage.HealthStatusHealthy,
		CheckedAt: a.now(),
	}
	if err := a.samples.InsertHealthSample(ctx, sample); err != nil {
		a.logger.Error().Err(err).Msg("failed to record summary sample")
	}
}

// deliver reuses the notifier's retry primitive. Health messages are not
// tied to an alert row, so attempt auditing is skipped (alert id zero).
func (a *Aggregator) deliver(ctx context.Context, channel alerting.Channel, text string) {
	if channel == "" {
		a.logger.Warn().Msg("health notification dropped: no channel configured")
		return
	}
	if _, err := a.retryer.SendWithRetry(ctx, 0, channel, "", 0, func(ctx context.Context) error {
		return a.sender.Send(ctx, channel, text)
	}); err != nil {
		a.logger.Error().Err(err).Str("channel", string(channel)).Msg("health notification delivery failed")
	}
}

func (a *Aggregator) renderCritical(report *Report) string {
	builder := strings.Builder{}
	builder.WriteString("🚨 [System Health - CRITICAL]\n")
	for _, check := range report.Checks {
		if check.Status != storage.HealthStatusDown {
			continue
		}
		builder.WriteString(fmt.Sprintf("%s: down", check.Service))
		if check.Err != nil {
			builder.WriteString(": " + check.Err.Error())
		}
		builder.WriteString("\n")
	}
	if len(report.PersistentFailures) > 0 {
		builder.WriteString(fmt.Sprintf("Persistent failures (%s window): %s\n",
			a.opts.DownWindow, strings.Join(report.PersistentFailures, ", ")))
	}
	return builder.String()
}

func (a *Aggregator) renderWarning(report *Report) string {
	builder := strings.Builder{}
	builder.WriteString("⚠️ [System Health - degraded]\n")
	for _, check := range report.Checks {
		if check.Status != storage.HealthStatusDegraded {
			continue
		}
		builder.WriteString(fmt.Sprintf("%s: degraded", check.Service))
		if check.Err != nil {
			builder.WriteString(": " + check.Err.Error())
		}
		builder.WriteString("\n")
	}
	if report.SlowSamples > 0 {
		builder.WriteString(fmt.Sprintf("Slow responses in last %s: %d\n", a.opts.SlowWindow, report.SlowSamples))
	}
	return builder.String()
}

func (a *Aggregator) renderSummary(report *Report) string {
	builder := strings.Builder{}
	builder.WriteString("✅ [System Health] all services healthy\n")
	for _, check := range report.Checks {
		builder.WriteString(fmt.Sprintf("%s: %s (%dms)\n", check.Service, check.Status, check.Latency.Milliseconds()))
	}
	return builder.String()
}
