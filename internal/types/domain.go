package types

import "time"

// WarningKind identifies an active meteorological warning.
type WarningKind string

const (
	WarningStorm     WarningKind = "storm"
	WarningHeavySnow WarningKind = "heavy_snow"
	WarningHeavyRain WarningKind = "heavy_rain"
	WarningThunder   WarningKind = "thunder"
)

// WeatherWarning is an active warning issued for the area a route runs through.
type WeatherWarning struct {
	Kind WarningKind `json:"kind"`
	Area string      `json:"area"`
	Text string      `json:"text"`
}

// WeatherObservation is a point-in-time (usually hourly) weather record.
// Optional magnitudes are pointers; nil means the source did not report them.
// SurroundingHours is context for lookups only. The engine never mutates it.
type WeatherObservation struct {
	Time             time.Time            `json:"time"`
	WindSpeed        float64              `json:"wind_speed"`
	WindGust         *float64             `json:"wind_gust"`
	WindDirection    *float64             `json:"wind_direction"`
	Snowfall         float64              `json:"snowfall"`
	SnowDepth        *float64             `json:"snow_depth"`
	Precipitation    float64              `json:"precipitation"`
	Temperature      *float64             `json:"temperature"`
	Pressure         *float64             `json:"pressure"`
	WeatherCode      int                  `json:"weather_code"`
	Warnings         []WeatherWarning     `json:"warnings"`
	SurroundingHours []WeatherObservation `json:"surrounding_hours,omitempty"`
}

// Gust returns the reported gust, or 0 when absent.
func (w WeatherObservation) Gust() float64 { return deref(w.WindGust) }

// Depth returns the reported snow depth, or 0 when absent.
func (w WeatherObservation) Depth() float64 { return deref(w.SnowDepth) }

// HasWarning reports whether a warning of kind k is active.
func (w WeatherObservation) HasWarning(k WarningKind) bool {
	for _, wr := range w.Warnings {
		if wr.Kind == k {
			return true
		}
	}
	return false
}

// HourAt returns the surrounding-hour observation whose hour matches t.
// The observation itself is returned when its own hour matches.
func (w WeatherObservation) HourAt(t time.Time) (WeatherObservation, bool) {
	want := t.Truncate(time.Hour)
	if w.Time.Truncate(time.Hour).Equal(want) {
		return w, true
	}
	for _, h := range w.SurroundingHours {
		if h.Time.Truncate(time.Hour).Equal(want) {
			return h, true
		}
	}
	return WeatherObservation{}, false
}

// DirectionRange is an inclusive wind-direction arc in degrees. Arcs that
// cross north are expressed as two ranges.
type DirectionRange struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
}

// Contains reports whether deg falls inside the range.
func (r DirectionRange) Contains(deg float64) bool {
	return deg >= r.From && deg <= r.To
}

// RouteVulnerabilityProfile is the static per-route threshold table.
type RouteVulnerabilityProfile struct {
	RouteID                 string           `json:"route_id"`
	Name                    string           `json:"name"`
	WindThreshold           float64          `json:"wind_threshold"`
	SnowThreshold           float64          `json:"snow_threshold"`
	VulnerabilityMultiplier float64          `json:"vulnerability_multiplier"`
	SafeWindDirections      []DirectionRange `json:"safe_wind_directions"`
	HasDeerRisk             bool             `json:"has_deer_risk"`
	MLRouteCode             int              `json:"ml_route_code"`
	Description             string           `json:"description"`
}

// InSafeDirection reports whether deg lies inside any configured safe arc.
func (p RouteVulnerabilityProfile) InSafeDirection(deg float64) bool {
	for _, r := range p.SafeWindDirections {
		if r.Contains(deg) {
			return true
		}
	}
	return false
}

// OfficialStatusSignal is the operator-declared status of a route.
type OfficialStatusSignal struct {
	Status         OfficialStatus `json:"status"`
	StatusText     string         `json:"status_text"`
	RawText        string         `json:"raw_text"`
	UpdatedAt      *time.Time     `json:"updated_at"`
	ResumptionTime *time.Time     `json:"resumption_time"`
}

// Normalized returns a copy with cancelled folded into suspended.
func (s OfficialStatusSignal) Normalized() OfficialStatusSignal {
	s.Status = s.Status.Normalize()
	return s
}

// Text returns the richest available free text.
func (s OfficialStatusSignal) Text() string {
	if s.RawText != "" {
		return s.RawText
	}
	return s.StatusText
}

// CrowdsourcedAggregate holds rider report counts for the last 15 minutes.
type CrowdsourcedAggregate struct {
	Stopped int `json:"stopped"`
	Delayed int `json:"delayed"`
	Crowded int `json:"crowded"`
	Resumed int `json:"resumed"`
}

// Total is the number of reports across all buckets.
func (c CrowdsourcedAggregate) Total() int {
	return c.Stopped + c.Delayed + c.Crowded + c.Resumed
}

// HistoricalMatch is the nearest historical precedent for the current weather
// pattern on a route.
type HistoricalMatch struct {
	ID                   string           `json:"id"`
	Label                string           `json:"label"`
	ResultedInSuspension bool             `json:"resulted_in_suspension"`
	Confidence           float64          `json:"confidence"`
	TypicalDurationHours float64          `json:"typical_duration_hours"`
	Scale                SuspensionScale  `json:"scale"`
	RecoveryTendency     RecoveryTendency `json:"recovery_tendency"`
	Advice               string           `json:"advice"`
}

// PredictionInput aggregates every signal for one prediction request.
// It is built fresh per request and treated as immutable.
type PredictionInput struct {
	RouteID         string                 `json:"route_id"`
	RouteName       string                 `json:"route_name"`
	Target          time.Time              `json:"target"`
	Weather         *WeatherObservation    `json:"weather"`
	Official        *OfficialStatusSignal  `json:"official"`
	Crowd           *CrowdsourcedAggregate `json:"crowd"`
	Historical      *HistoricalMatch       `json:"historical"`
	OfficialHistory []OfficialStatusSignal `json:"official_history"`
}

// RiskReason is one weighted contribution to a risk score.
// Lower Priority values are more severe.
type RiskReason struct {
	Text     string  `json:"text"`
	Weight   float64 `json:"weight"`
	Priority int     `json:"priority"`
}

// RiskEvaluationResult is the output of the risk factor evaluator.
type RiskEvaluationResult struct {
	Score           float64      `json:"score"`
	Reasons         []RiskReason `json:"reasons"`
	HasRealTimeData bool         `json:"has_real_time_data"`
}

// ResumptionEstimate is the outcome of a safe-window search.
// A nil EstimatedResumption means no confident estimate, which is distinct
// from a zero buffer.
type ResumptionEstimate struct {
	EstimatedResumption *time.Time `json:"estimated_resumption"`
	SafetyWindowStart   *time.Time `json:"safety_window_start"`
	RequiredBufferHours float64    `json:"required_buffer_hours"`
	WindowHours         int        `json:"window_hours"`
	Reason              string     `json:"reason"`
}

// TrendPoint is one hour of the short risk time-series.
type TrendPoint struct {
	Time        time.Time   `json:"time"`
	Risk        int         `json:"risk"`
	WeatherIcon WeatherIcon `json:"weather_icon"`
	IsTarget    bool        `json:"is_target"`
}

// TimeShiftSuggestion points the rider to a noticeably safer nearby hour.
type TimeShiftSuggestion struct {
	Time      time.Time `json:"time"`
	Risk      int       `json:"risk"`
	Reduction int       `json:"reduction"`
}

// CrowdStats echoes the rider report counts used for a prediction.
type CrowdStats struct {
	ReportCount int `json:"report_count"`
	Stopped     int `json:"stopped"`
	Delayed     int `json:"delayed"`
	Crowded     int `json:"crowded"`
	Resumed     int `json:"resumed"`
}

// PredictionResult is the final prediction. Optional fields are serialized
// as explicit nulls; consumers branch on presence.
type PredictionResult struct {
	RouteID       string          `json:"route_id"`
	RouteName     string          `json:"route_name"`
	TargetTime    time.Time       `json:"target_time"`
	Probability   int             `json:"probability"`
	Status        OperationStatus `json:"status"`
	Confidence    ConfidenceLevel `json:"confidence"`
	WeatherImpact WeatherImpact   `json:"weather_impact"`
	Mode          PredictionMode  `json:"mode"`
	Reasons       []string        `json:"reasons"`

	IsCurrentlySuspended  bool    `json:"is_currently_suspended"`
	IsPartialSuspension   bool    `json:"is_partial_suspension"`
	PartialSuspensionText *string `json:"partial_suspension_text"`
	IsOfficialOverride    bool    `json:"is_official_override"`
	// IsPostResumption marks a target inside the disruption window that
	// follows an announced resumption.
	IsPostResumption      bool    `json:"is_post_resumption"`
	OfficialStale         bool    `json:"official_stale"`

	EstimatedRecoveryHours *float64              `json:"estimated_recovery_hours"`
	EstimatedResumption    *time.Time            `json:"estimated_resumption"`
	Resumption             *ResumptionEstimate   `json:"resumption"`
	RecoveryTendency       *RecoveryTendency     `json:"recovery_tendency"`
	RecoveryRecommendation *string               `json:"recovery_recommendation"`
	SuspensionReason       *string               `json:"suspension_reason"`
	SuspensionScale        *SuspensionScale      `json:"suspension_scale"`
	OfficialStatus         *OfficialStatusSignal `json:"official_status"`
	CrowdStats             *CrowdStats           `json:"crowd_stats"`
	CrowdConsensus         *CrowdConsensus       `json:"crowd_consensus"`
	Trend                  []TrendPoint          `json:"trend"`
	TimeShift              *TimeShiftSuggestion  `json:"time_shift_suggestion"`

	Provenance Provenance `json:"provenance"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
