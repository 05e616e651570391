// Package signals gathers every input a prediction needs for one route:
// hourly weather, the operator's current announcement, recent rider reports,
// official status history and a stored precedent. Sources are fetched in
// parallel and only the weather is mandatory; every other failure degrades to
// a warning on the bundle.
package signals

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"railrisk/internal/external"
	"railrisk/internal/prediction"
	"railrisk/internal/types"
)

// Source names used in warnings and failure metrics.
const (
	SourceWeather   = "weather"
	SourceOfficial  = "official"
	SourceCrowd     = "crowd"
	SourceHistory   = "history"
	SourcePrecedent = "precedent"
)

// CrowdSource aggregates recent rider reports.
type CrowdSource interface {
	Aggregate(ctx context.Context, routeID string, now time.Time) (types.CrowdsourcedAggregate, error)
}

// HistorySource lists stored official announcements.
type HistorySource interface {
	ListSince(ctx context.Context, routeID string, since time.Time) ([]types.OfficialStatusSignal, error)
}

// PrecedentSource looks up a curated historical precedent.
type PrecedentSource interface {
	Latest(ctx context.Context, routeID string) (*types.HistoricalMatch, error)
}

// FailureObserver is told about every optional source that failed.
type FailureObserver interface {
	ObserveSourceFailure(source string)
}

// Sources are the gatherer's dependencies. Weather is required; a nil
// optional source is skipped without a warning.
type Sources struct {
	Weather   external.WeatherProvider
	Official  external.OfficialStatusProvider
	Crowd     CrowdSource
	History   HistorySource
	Precedent PrecedentSource
}

// Config bounds the gather.
type Config struct {
	// HistoryWindow is how far back official history is read.
	HistoryWindow time.Duration
	// MaxConcurrent caps parallel source calls.
	MaxConcurrent int
}

// Bundle is the result of one gather. Pointer fields are nil when the source
// was skipped, failed or had nothing for the route.
type Bundle struct {
	RouteID   string
	Hours     []types.WeatherObservation
	Official  *types.OfficialStatusSignal
	Crowd     *types.CrowdsourcedAggregate
	History   []types.OfficialStatusSignal
	Precedent *types.HistoricalMatch
	Warnings  []string
}

// Gatherer fetches signals for one route at a time.
type Gatherer struct {
	src      Sources
	cfg      Config
	clock    types.Clock
	logger   *slog.Logger
	observer FailureObserver
}

// Option configures a Gatherer.
type Option func(*Gatherer)

// WithClock overrides the time source.
func WithClock(c types.Clock) Option { return func(g *Gatherer) { g.clock = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(g *Gatherer) { g.logger = l } }

// WithFailureObserver records optional-source failures.
func WithFailureObserver(o FailureObserver) Option { return func(g *Gatherer) { g.observer = o } }

// NewGatherer creates a Gatherer.
func NewGatherer(src Sources, cfg Config, opts ...Option) *Gatherer {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 30 * 24 * time.Hour
	}
	g := &Gatherer{
		src:    src,
		cfg:    cfg,
		clock:  types.RealClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Gather fetches every source for routeID, with days of hourly weather.
// Only a weather failure is returned as an error.
func (g *Gatherer) Gather(ctx context.Context, routeID string, days int) (*Bundle, error) {
	now := g.clock.Now()
	b := &Bundle{RouteID: routeID}
	var mu sync.Mutex

	fail := func(ctx context.Context, source string, err error) {
		g.logger.WarnContext(ctx, "signal source failed",
			"route_id", routeID,
			"source", source,
			"error", err,
		)
		if g.observer != nil {
			g.observer.ObserveSourceFailure(source)
		}
		mu.Lock()
		b.Warnings = append(b.Warnings, source+"_unavailable")
		mu.Unlock()
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.MaxConcurrent)

	eg.Go(func() error {
		hours, err := g.src.Weather.Hourly(egCtx, routeID, days)
		if err != nil {
			return err
		}
		mu.Lock()
		b.Hours = hours
		mu.Unlock()
		return nil
	})

	if g.src.Official != nil {
		eg.Go(func() error {
			statuses, err := g.src.Official.Statuses(egCtx)
			if err != nil {
				fail(egCtx, SourceOfficial, err)
				return nil
			}
			if sig, ok := statuses[routeID]; ok {
				mu.Lock()
				b.Official = &sig
				mu.Unlock()
			}
			return nil
		})
	}

	if g.src.Crowd != nil {
		eg.Go(func() error {
			agg, err := g.src.Crowd.Aggregate(egCtx, routeID, now)
			if err != nil {
				fail(egCtx, SourceCrowd, err)
				return nil
			}
			if agg.Total() > 0 {
				mu.Lock()
				b.Crowd = &agg
				mu.Unlock()
			}
			return nil
		})
	}

	if g.src.History != nil {
		eg.Go(func() error {
			hist, err := g.src.History.ListSince(egCtx, routeID, now.Add(-g.cfg.HistoryWindow))
			if err != nil {
				fail(egCtx, SourceHistory, err)
				return nil
			}
			mu.Lock()
			b.History = hist
			mu.Unlock()
			return nil
		})
	}

	if g.src.Precedent != nil {
		eg.Go(func() error {
			m, err := g.src.Precedent.Latest(egCtx, routeID)
			if err != nil {
				fail(egCtx, SourcePrecedent, err)
				return nil
			}
			mu.Lock()
			b.Precedent = m
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		if g.observer != nil {
			g.observer.ObserveSourceFailure(SourceWeather)
		}
		return nil, err
	}
	return b, nil
}

// DaysFor returns how many forecast days cover target plus the trailing
// context hours, clamped to what the weather API serves.
func DaysFor(now, target time.Time) int {
	horizon := target.Add(external.SurroundingAfter * time.Hour).Sub(now)
	days := int(horizon/(24*time.Hour)) + 1
	return min(max(days, 1), 16)
}

// Input builds the prediction input for target. ok is false when the
// forecast does not cover the target hour.
func (b *Bundle) Input(target time.Time) (types.PredictionInput, bool) {
	obs, ok := external.ObservationAt(b.Hours, target)
	if !ok {
		return types.PredictionInput{}, false
	}
	profile, _ := prediction.LookupProfile(b.RouteID)
	return types.PredictionInput{
		RouteID:         b.RouteID,
		RouteName:       profile.Name,
		Target:          target,
		Weather:         &obs,
		Official:        b.Official,
		Crowd:           b.Crowd,
		Historical:      b.Precedent,
		OfficialHistory: b.History,
	}, true
}

// Weekly builds the weekly forecast input over days.
func (b *Bundle) Weekly(days int) prediction.WeeklyInput {
	profile, _ := prediction.LookupProfile(b.RouteID)
	return prediction.WeeklyInput{
		RouteID:         b.RouteID,
		RouteName:       profile.Name,
		Days:            days,
		Hours:           b.Hours,
		Official:        b.Official,
		Crowd:           b.Crowd,
		OfficialHistory: b.History,
	}
}
