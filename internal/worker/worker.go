// Package worker processes forecast jobs taken off the SQS queue: weekly
// forecasts are computed and stored, past snapshots are graded against the
// recorded official outcome, and the operator feed is crawled into history.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"golang.org/x/sync/errgroup"

	"railrisk/internal/db"
	"railrisk/internal/external"
	"railrisk/internal/prediction"
	"railrisk/internal/signals"
	"railrisk/internal/types"
)

const (
	defaultForecastDays = 7
	defaultScoreDays    = 1
	defaultConcurrency  = 4
)

// Job results reported to Metrics.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

type SignalGatherer interface {
	Gather(ctx context.Context, routeID string, days int) (*signals.Bundle, error)
}

type WeeklyForecaster interface {
	Weekly(ctx context.Context, in prediction.WeeklyInput) ([]types.PredictionResult, error)
}

type SnapshotStore interface {
	Upsert(ctx context.Context, s types.DailySnapshot) error
	ListByRoute(ctx context.Context, routeID string, from, to time.Time) ([]types.DailySnapshot, error)
	SetAccuracy(ctx context.Context, routeID string, date time.Time, score int) (bool, error)
}

type OfficialHistory interface {
	Record(ctx context.Context, rec db.OfficialRecord) error
	OutcomeOn(ctx context.Context, routeID string, from time.Time) (types.OfficialStatus, bool, error)
}

type AnnouncementSource interface {
	Announcements(ctx context.Context) ([]external.Announcement, error)
}

// Metrics is satisfied by *metrics.CloudWatch.
type Metrics interface {
	RecordJob(action types.ForecastJobAction, result string)
	RecordSnapshotsStored(routeID string, n int)
	RecordAccuracy(routeID string, score int)
	Flush(ctx context.Context)
}

type Deps struct {
	Gatherer  SignalGatherer
	Engine    WeeklyForecaster
	Snapshots SnapshotStore
	History   OfficialHistory
	Official  AnnouncementSource
	Metrics   Metrics
}

type Worker struct {
	deps        Deps
	clock       types.Clock
	loc         *time.Location
	concurrency int
	logger      *slog.Logger
}

type Option func(*Worker)

func WithClock(c types.Clock) Option { return func(w *Worker) { w.clock = c } }

// WithLocation sets the zone whose calendar days snapshots are keyed by.
func WithLocation(loc *time.Location) Option { return func(w *Worker) { w.loc = loc } }

// WithConcurrency bounds how many routes a job processes at once.
func WithConcurrency(n int) Option { return func(w *Worker) { w.concurrency = n } }

func WithLogger(l *slog.Logger) Option { return func(w *Worker) { w.logger = l } }

func New(deps Deps, opts ...Option) *Worker {
	w := &Worker{
		deps:        deps,
		clock:       types.RealClock{},
		loc:         time.UTC,
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.concurrency < 1 {
		w.concurrency = 1
	}
	return w
}

// Handle processes an SQS batch. Failed messages are reported as batch item
// failures so only they are retried. Metrics are flushed once per batch.
func (w *Worker) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	if w.deps.Metrics != nil {
		defer w.deps.Metrics.Flush(ctx)
	}

	for _, record := range ev.Records {
		var msg types.ForecastJobMessage
		if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
			// A malformed body never parses on retry; acknowledge it.
			w.logger.ErrorContext(ctx, "discarding malformed forecast job",
				"message_id", record.MessageId,
				"error", err,
			)
			continue
		}

		if err := w.Process(ctx, msg); err != nil {
			w.logger.ErrorContext(ctx, "forecast job failed",
				"message_id", record.MessageId,
				"job_id", msg.JobID,
				"error", err,
			)
			resp.BatchItemFailures = append(resp.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return resp, nil
}

// Process runs one job. Routes are processed independently; the job fails
// when any route fails so the message is retried. Every action is
// idempotent.
func (w *Worker) Process(ctx context.Context, msg types.ForecastJobMessage) error {
	logger := w.logger.With(
		"job_id", msg.JobID,
		"trace_id", msg.TraceID,
		"action", string(msg.Action),
	)
	start := w.clock.Now()

	var err error
	switch msg.Action {
	case types.JobActionForecast:
		err = w.forEachRoute(ctx, w.routes(msg), func(ctx context.Context, routeID string) error {
			return w.forecast(ctx, logger, routeID, dayCount(msg.Days, defaultForecastDays))
		})
	case types.JobActionScore:
		err = w.forEachRoute(ctx, w.routes(msg), func(ctx context.Context, routeID string) error {
			return w.score(ctx, logger, routeID, dayCount(msg.Days, defaultScoreDays))
		})
	case types.JobActionCrawl:
		err = w.crawl(ctx, logger, msg.RouteIDs)
	default:
		logger.WarnContext(ctx, "ignoring job with unknown action")
		return nil
	}

	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	if w.deps.Metrics != nil {
		w.deps.Metrics.RecordJob(msg.Action, result)
	}
	logger.InfoContext(ctx, "forecast job processed",
		"result", result,
		"duration", w.clock.Now().Sub(start),
	)
	return err
}

// forecast stores one snapshot per predicted day.
func (w *Worker) forecast(ctx context.Context, logger *slog.Logger, routeID string, days int) error {
	bundle, err := w.deps.Gatherer.Gather(ctx, routeID, days)
	if err != nil {
		return fmt.Errorf("gather %s: %w", routeID, err)
	}
	if len(bundle.Warnings) > 0 {
		logger.WarnContext(ctx, "forecasting with degraded signals",
			"route_id", routeID,
			"warnings", bundle.Warnings,
		)
	}

	results, err := w.deps.Engine.Weekly(ctx, bundle.Weekly(days))
	if err != nil {
		return fmt.Errorf("weekly forecast %s: %w", routeID, err)
	}

	now := w.clock.Now().UTC()
	stored := 0
	for _, res := range results {
		if err := w.deps.Snapshots.Upsert(ctx, snapshotFrom(res, w.loc, now)); err != nil {
			return fmt.Errorf("store snapshot %s: %w", routeID, err)
		}
		stored++
	}
	if w.deps.Metrics != nil {
		w.deps.Metrics.RecordSnapshotsStored(routeID, stored)
	}
	logger.InfoContext(ctx, "weekly forecast stored", "route_id", routeID, "days", stored)
	return nil
}

// score grades the snapshots of the past days against the most severe
// official status recorded on each day. Days without a recorded outcome or
// without a snapshot are skipped.
func (w *Worker) score(ctx context.Context, logger *slog.Logger, routeID string, days int) error {
	today := midnight(w.clock.Now(), w.loc)
	from := today.AddDate(0, 0, -days)

	snaps, err := w.deps.Snapshots.ListByRoute(ctx, routeID, from, today)
	if err != nil {
		return fmt.Errorf("list snapshots %s: %w", routeID, err)
	}

	for _, s := range snaps {
		day := midnight(s.ForecastDate, w.loc)
		outcome, ok, err := w.deps.History.OutcomeOn(ctx, routeID, day)
		if err != nil {
			return fmt.Errorf("outcome %s %s: %w", routeID, day.Format(time.DateOnly), err)
		}
		if !ok {
			logger.DebugContext(ctx, "no official outcome recorded",
				"route_id", routeID,
				"date", day.Format(time.DateOnly),
			)
			continue
		}

		score := prediction.AccuracyScore(s.Probability, outcome)
		if _, err := w.deps.Snapshots.SetAccuracy(ctx, routeID, s.ForecastDate, score); err != nil {
			return fmt.Errorf("set accuracy %s: %w", routeID, err)
		}
		if w.deps.Metrics != nil {
			w.deps.Metrics.RecordAccuracy(routeID, score)
		}
	}
	return nil
}

// crawl records the operator's current announcements. An empty filter
// records every matched route.
func (w *Worker) crawl(ctx context.Context, logger *slog.Logger, routeIDs []string) error {
	items, err := w.deps.Official.Announcements(ctx)
	if err != nil {
		return fmt.Errorf("fetch announcements: %w", err)
	}

	var errs []error
	recorded := 0
	for _, a := range items {
		if a.RouteID == "" || (len(routeIDs) > 0 && !slices.Contains(routeIDs, a.RouteID)) {
			continue
		}
		err := w.deps.History.Record(ctx, db.OfficialRecord{
			RouteID:      a.RouteID,
			Status:       a.Status,
			Cause:        string(a.Cause),
			Text:         a.Text,
			DelayMinutes: a.DelayMinutes,
			Resumption:   a.Resumption,
			ObservedAt:   a.ObservedAt,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("record %s: %w", a.RouteID, err))
			continue
		}
		recorded++
	}
	logger.InfoContext(ctx, "official announcements recorded",
		"fetched", len(items),
		"recorded", recorded,
	)
	return errors.Join(errs...)
}

// forEachRoute runs fn per route with bounded concurrency and joins the
// failures. One failing route does not cancel the others.
func (w *Worker) forEachRoute(ctx context.Context, routeIDs []string, fn func(context.Context, string) error) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	g := new(errgroup.Group)
	g.SetLimit(w.concurrency)
	for _, id := range routeIDs {
		g.Go(func() error {
			if err := fn(ctx, id); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// routes returns the job's routes, or every profiled route when empty.
func (w *Worker) routes(msg types.ForecastJobMessage) []string {
	if len(msg.RouteIDs) > 0 {
		return msg.RouteIDs
	}
	profiles := prediction.Profiles()
	out := make([]string, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p.RouteID)
	}
	return out
}

func snapshotFrom(res types.PredictionResult, loc *time.Location, computedAt time.Time) types.DailySnapshot {
	return types.DailySnapshot{
		RouteID:      res.RouteID,
		ForecastDate: midnight(res.TargetTime, loc),
		Probability:  res.Probability,
		Status:       res.Status,
		Confidence:   res.Confidence,
		Reasons:      res.Reasons,
		Provenance:   res.Provenance,
		ComputedAt:   computedAt,
	}
}

func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func dayCount(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
