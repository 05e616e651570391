package prediction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"railrisk/internal/inference"
	"railrisk/internal/types"
)

// StatusModel is the trained-model path. Any error sends the engine down the
// rule-based path for that request.
type StatusModel interface {
	Infer(ctx context.Context, in types.PredictionInput, profile types.RouteVulnerabilityProfile) (inference.Inference, error)
}

// Observer is notified of every prediction outcome and every fallback from
// the model path. Implementations must be safe for concurrent use.
type Observer interface {
	ObservePrediction(routeID string, provenance types.Provenance, status types.OperationStatus)
	ObserveFallback(routeID, reason string)
}

type nopObserver struct{}

func (nopObserver) ObservePrediction(string, types.Provenance, types.OperationStatus) {}
func (nopObserver) ObserveFallback(string, string)                                    {}

// Engine composes the evaluator, filter, classifier and resumption estimator
// into a single prediction. It holds no per-request state and is safe for
// concurrent use.
type Engine struct {
	tun        Tunables
	evaluator  *Evaluator
	classifier *Classifier
	resumption *ResumptionEstimator

	model    StatusModel
	clock    types.Clock
	observer Observer
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithModel enables the trained-model path.
func WithModel(m StatusModel) Option {
	return func(e *Engine) { e.model = m }
}

// WithClock overrides the clock used for "now".
func WithClock(c types.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithObserver registers an outcome observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine builds an engine over tun.
func NewEngine(tun Tunables, opts ...Option) *Engine {
	if tun.Location == nil {
		tun.Location = time.UTC
	}
	e := &Engine{
		tun:        tun,
		evaluator:  NewEvaluator(tun),
		classifier: NewClassifier(tun),
		resumption: NewResumptionEstimator(tun),
		clock:      types.RealClock{},
		observer:   nopObserver{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PredictOptions selects optional outputs.
type PredictOptions struct {
	IncludeTrend bool
}

// Predict produces the prediction for in.Target. The only error is a missing
// weather observation; every other gap degrades the result instead.
func (e *Engine) Predict(ctx context.Context, in types.PredictionInput, opts PredictOptions) (*types.PredictionResult, error) {
	if in.Weather == nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidInput, "weather observation is required", nil)
	}
	profile, ok := LookupProfile(in.RouteID)
	if !ok && in.RouteID != "" {
		profile.RouteID = in.RouteID
	}
	now := e.clock.Now()

	res := e.run(ctx, in, profile, now)
	if opts.IncludeTrend {
		res.Trend, res.TimeShift = e.trend(ctx, in, profile, now, res)
	}

	e.observer.ObservePrediction(res.RouteID, res.Provenance, res.Status)
	return res, nil
}

// run is the single-instant pipeline shared by Predict and the trend.
func (e *Engine) run(ctx context.Context, in types.PredictionInput, profile types.RouteVulnerabilityProfile, now time.Time) *types.PredictionResult {
	t := e.tun
	w := *in.Weather
	local := in.Target.In(t.Location)
	nearRT := absDuration(in.Target.Sub(now)) <= t.NearRealTimeWindow

	var (
		official *types.OfficialStatusSignal
		echoed   *types.OfficialStatusSignal
		stale    bool
	)
	if in.Official != nil {
		s := in.Official.Normalized()
		echoed = &s
		// The live feed stamps UpdatedAt at fetch time, so this only trips
		// for signals replayed from storage or supplied by callers.
		if s.UpdatedAt != nil && now.Sub(*s.UpdatedAt) > t.OfficialStaleAfter {
			stale = true
		} else {
			official = &s
		}
	}
	kind := TextUnclassified
	if official != nil {
		kind = ClassifySignal(*official)
	}

	precedent := in.Historical
	if precedent == nil {
		precedent = MatchPrecedent(w, local, t)
	}

	eval := e.evaluator.Evaluate(EvalInput{
		Profile:      profile,
		Weather:      &w,
		Official:     official,
		Crowd:        in.Crowd,
		Precedent:    precedent,
		Target:       in.Target,
		Now:          now,
		NearRealTime: nearRT,
	})
	reasons := append([]types.RiskReason(nil), eval.Reasons...)

	score := eval.Score
	if rush := e.rushMultiplier(local); rush > 1 && score > 0 {
		score *= rush
		reasons = append(reasons, types.RiskReason{
			Text:     fmt.Sprintf("Rush hour (%02d:00): disruption spreads quickly", local.Hour()),
			Weight:   math.Round((rush - 1) * 100),
			Priority: 12,
		})
	}
	score *= e.seasonMultiplier(local)

	consensus := types.ConsensusUnknown
	stopped := 0
	if in.Crowd != nil {
		consensus = Consensus(*in.Crowd, t.ConsensusMinReports)
		stopped = in.Crowd.Stopped
	}
	limit := e.classifier.MaxProbability(CapInput{
		Official:       official,
		Kind:           kind,
		NearRealTime:   nearRT,
		Gust:           w.Gust(),
		Snowfall:       w.Snowfall,
		Consensus:      consensus,
		ConsensusCount: stopped,
	})
	p := clamp(int(math.Round(score)), 0, limit)

	provenance := types.ProvenanceRules
	var modelOut *inference.Inference
	if e.model != nil {
		inf, err := e.model.Infer(ctx, in, profile)
		if err != nil {
			e.fallback(ctx, profile.RouteID, err)
		} else {
			p = clamp(inf.Probability(), 0, limit)
			provenance = types.ProvenanceModel
			modelOut = &inf
		}
	}

	filtered := ConfidenceFilter(FilterInput{
		Probability:    p,
		Score:          score,
		WindSpeed:      w.WindSpeed,
		Gust:           w.Gust(),
		Snowfall:       w.Snowfall,
		OfficialNormal: official != nil && official.Status == types.OfficialNormal,
		NearRealTime:   nearRT,
	}, t.Filter)
	p = filtered.Probability

	if summary, ok := SummarizeHistory(in.OfficialHistory, now, t.History); ok {
		var hr []types.RiskReason
		p, hr = ApplyHistory(p, limit, summary, t.History)
		reasons = append(reasons, hr...)
	}

	calibrated := false
	if official != nil {
		cur := currentHour(w, now)
		cal := Calibrate(CalibrationInput{
			Probability:    p,
			Official:       *official,
			Kind:           kind,
			TheoreticalNow: e.theoreticalNow(cur, profile, precedent, now),
			GustNow:        cur.Gust(),
			SnowfallNow:    cur.Snowfall,
			Now:            now,
			Target:         in.Target,
		}, t.Calibrate)
		p = cal.Probability
		calibrated = cal.Override
		if cal.Reason != nil {
			reasons = append(reasons, *cal.Reason)
		}
	}

	cls := e.classifier.Classify(ClassifyInput{
		Probability:  p,
		Official:     official,
		Kind:         kind,
		NearRealTime: nearRT,
		SameDay:      sameDay(in.Target, now, t.Location),
		Target:       in.Target,
		SnowDepth:    w.Depth(),
	})

	res := &types.PredictionResult{
		RouteID:               profile.RouteID,
		RouteName:             in.RouteName,
		TargetTime:            in.Target,
		Probability:           cls.Probability,
		Status:                cls.Status,
		WeatherImpact:         Impact(cls.Probability),
		Mode:                  types.ModeRisk,
		IsCurrentlySuspended:  cls.IsCurrentlySuspended,
		IsPartialSuspension:   cls.IsPartialSuspension,
		PartialSuspensionText: cls.PartialText,
		IsOfficialOverride:    cls.IsOfficialOverride || calibrated,
		IsPostResumption:      cls.PostResumption,
		OfficialStale:         stale,
		OfficialStatus:        echoed,
		CrowdStats:            crowdStats(in.Crowd),
		Provenance:            provenance,
		UpdatedAt:             now,
	}
	if res.RouteName == "" {
		res.RouteName = profile.Name
	}
	if in.Crowd != nil {
		res.CrowdConsensus = types.Ptr(consensus)
	}
	if cls.IsCurrentlySuspended {
		res.Mode = types.ModeRecovery
	}

	res.Reasons = e.reasonTexts(cls, reasons, in.Crowd, consensus, stale, echoed, now)

	res.Confidence = Confidence(cls.Probability, len(eval.Reasons), eval.HasRealTimeData)
	if stale {
		res.Confidence = downgrade(res.Confidence)
	}

	if cls.IsCurrentlySuspended || cls.Probability >= t.RecoveryProbability ||
		cls.Status == types.StatusSuspended || cls.Status == types.StatusPartial {
		var officialText string
		if official != nil {
			officialText = official.Text()
		}
		e.recovery(res, cls, w, in.Target, now, officialText, precedent, modelOut)
	}
	return res
}

func (e *Engine) fallback(ctx context.Context, routeID string, err error) {
	reason := "error"
	var ierr *inference.InferenceError
	if errors.As(err, &ierr) {
		reason = ierr.Op
	}
	e.logger.WarnContext(ctx, "model inference failed, using rules",
		"route_id", routeID,
		"provenance", types.ProvenanceRules,
		"reason", reason,
		"error", err,
	)
	e.observer.ObserveFallback(routeID, reason)
}

// reasonTexts orders the display reasons: the official explanation, rider
// reports, then weighted factors, with the stale-data note last.
func (e *Engine) reasonTexts(cls Classification, reasons []types.RiskReason, crowd *types.CrowdsourcedAggregate,
	consensus types.CrowdConsensus, stale bool, official *types.OfficialStatusSignal, now time.Time) []string {
	sortReasons(reasons)

	var out []string
	if cls.Reason != "" {
		out = append(out, cls.Reason)
	}
	if crowd != nil && consensus == types.ConsensusStopped {
		out = append(out, fmt.Sprintf("Riders report stopped trains (%d of %d reports in the last 15 minutes)",
			crowd.Stopped, crowd.Total()))
	}
	for _, r := range reasons {
		if cls.AllDay && r.Priority == 0 {
			continue
		}
		out = append(out, r.Text)
	}
	if stale && official != nil && official.UpdatedAt != nil {
		out = append(out, fmt.Sprintf("Operator status is %.0f minutes old and was not used",
			now.Sub(*official.UpdatedAt).Minutes()))
	}

	if n := e.tun.MaxReasons; n > 0 && len(out) > n {
		if stale {
			out = append(out[:n-1], out[len(out)-1])
		} else {
			out = out[:n]
		}
	}
	if len(out) == 0 {
		out = []string{"No significant weather risk expected"}
	}
	return out
}

// recovery fills the resumption, recovery and suspension-cause fields.
func (e *Engine) recovery(res *types.PredictionResult, cls Classification, w types.WeatherObservation,
	target, now time.Time, officialText string, precedent *types.HistoricalMatch, model *inference.Inference) {
	if cls.AllDay {
		res.SuspensionReason = types.Ptr(CauseOfficial)
		res.SuspensionScale = types.Ptr(types.ScaleAllDay)
		return
	}

	cause := SuspensionCause(w, officialText)
	res.SuspensionReason = types.Ptr(cause)
	if precedent != nil && !precedent.ResultedInSuspension {
		precedent = nil
	}
	res.SuspensionScale = types.Ptr(Scale(res.Probability, precedent))

	origin := target
	if cls.IsCurrentlySuspended {
		origin = now
	}
	est := e.resumption.Estimate(hoursFrom(w, origin))
	res.Resumption = &est

	var hours float64
	var rec string
	switch {
	case est.EstimatedResumption != nil:
		res.EstimatedResumption = est.EstimatedResumption
		hours = math.Max(0.5, math.Ceil(est.EstimatedResumption.Sub(origin).Hours()*2)/2)
		rec = recommendation(hours)
	case model != nil && model.Status != inference.StatusNormal && model.RecoveryHours > 0:
		hours = math.Max(0.5, math.Round(model.RecoveryHours*2)/2)
		rec = recommendation(hours)
	default:
		h := HeuristicRecovery(w, hoursAfter(w, 3), cause, origin.In(e.tun.Location))
		hours, rec = h.Hours, h.Recommendation
	}

	if precedent != nil {
		tendency := precedent.RecoveryTendency
		if tendency != "" {
			res.RecoveryTendency = &tendency
		}
		if tendency == types.RecoveryNextDay && est.EstimatedResumption == nil {
			hours = math.Max(hours, 24)
			rec = recommendation(hours)
		}
		if precedent.Advice != "" {
			rec += " " + precedent.Advice
		}
	}
	res.EstimatedRecoveryHours = types.Ptr(hours)
	res.RecoveryRecommendation = types.Ptr(rec)
}

// currentHour returns the observation for the hour containing now, or w
// itself when no surrounding hour matches.
func currentHour(w types.WeatherObservation, now time.Time) types.WeatherObservation {
	if cur, ok := w.HourAt(now); ok {
		return cur
	}
	return w
}

// theoreticalNow is the rules-only probability for the current hour with
// the official factor left out. Calibration compares it to what the operator
// actually reports.
func (e *Engine) theoreticalNow(cur types.WeatherObservation, profile types.RouteVulnerabilityProfile, precedent *types.HistoricalMatch, now time.Time) int {
	ev := e.evaluator.Evaluate(EvalInput{
		Profile:      profile,
		Weather:      &cur,
		Precedent:    precedent,
		Target:       now,
		Now:          now,
		NearRealTime: true,
	})
	local := now.In(e.tun.Location)
	score := ev.Score * e.rushMultiplier(local) * e.seasonMultiplier(local)
	limit := e.classifier.MaxProbability(CapInput{NearRealTime: true, Gust: cur.Gust(), Snowfall: cur.Snowfall})
	return clamp(int(math.Round(score)), 0, limit)
}

func (e *Engine) rushMultiplier(local time.Time) float64 {
	if m, ok := e.tun.RushHourMultipliers[local.Hour()]; ok {
		return m
	}
	return 1
}

func (e *Engine) seasonMultiplier(local time.Time) float64 {
	if m, ok := e.tun.SeasonMultipliers[local.Month()]; ok {
		return m
	}
	return 1
}

// hoursFrom returns the observation and its surrounding hours from origin's
// hour onwards, one per hour, without their own context lists.
func hoursFrom(w types.WeatherObservation, origin time.Time) []types.WeatherObservation {
	from := origin.Truncate(time.Hour)
	seen := make(map[int64]bool, len(w.SurroundingHours)+1)
	out := make([]types.WeatherObservation, 0, len(w.SurroundingHours)+1)
	add := func(h types.WeatherObservation) {
		hour := h.Time.Truncate(time.Hour)
		if hour.Before(from) || seen[hour.Unix()] {
			return
		}
		seen[hour.Unix()] = true
		h.SurroundingHours = nil
		out = append(out, h)
	}
	add(w)
	for _, h := range w.SurroundingHours {
		add(h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// hoursAfter returns up to n surrounding hours strictly after w.
func hoursAfter(w types.WeatherObservation, n int) []types.WeatherObservation {
	out := hoursFrom(w, w.Time.Add(time.Hour))
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
