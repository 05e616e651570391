package types

// OfficialStatus is the operator-declared status of a route.
type OfficialStatus string

const (
	OfficialNormal    OfficialStatus = "normal"
	OfficialDelay     OfficialStatus = "delay"
	OfficialSuspended OfficialStatus = "suspended"
	OfficialCancelled OfficialStatus = "cancelled"
	OfficialPartial   OfficialStatus = "partial"
)

// Normalize folds cancelled into suspended. Downstream logic only ever sees
// the normalized value.
func (s OfficialStatus) Normalize() OfficialStatus {
	if s == OfficialCancelled {
		return OfficialSuspended
	}
	return s
}

// IsValid reports whether s is one of the declared statuses.
func (s OfficialStatus) IsValid() bool {
	switch s {
	case OfficialNormal, OfficialDelay, OfficialSuspended, OfficialCancelled, OfficialPartial:
		return true
	}
	return false
}

// OperationStatus is the discrete status reported to callers.
type OperationStatus string

const (
	StatusNormal    OperationStatus = "normal"
	StatusCaution   OperationStatus = "caution"
	StatusDelayed   OperationStatus = "delayed"
	StatusSuspended OperationStatus = "suspended"
	StatusPartial   OperationStatus = "partial"
)

// SuspensionScale classifies how wide an expected suspension is.
type SuspensionScale string

const (
	ScaleLocal  SuspensionScale = "local"
	ScaleMedium SuspensionScale = "medium"
	ScaleLarge  SuspensionScale = "large"
	ScaleAllDay SuspensionScale = "all-day"
)

// ReportType is a rider report bucket.
type ReportType string

const (
	ReportStopped ReportType = "stopped"
	ReportDelayed ReportType = "delayed"
	ReportCrowded ReportType = "crowded"
	ReportResumed ReportType = "resumed"
)

// CrowdConsensus is the majority view of recent rider reports.
type CrowdConsensus string

const (
	ConsensusStopped CrowdConsensus = "stopped"
	ConsensusDelayed CrowdConsensus = "delayed"
	ConsensusNormal  CrowdConsensus = "normal"
	ConsensusUnknown CrowdConsensus = "unknown"
)

// WeatherIcon is the icon class attached to a trend point.
type WeatherIcon string

const (
	IconSnow  WeatherIcon = "snow"
	IconRain  WeatherIcon = "rain"
	IconWind  WeatherIcon = "wind"
	IconClear WeatherIcon = "clear"
)

// Provenance records which computation path produced a result.
type Provenance string

const (
	ProvenanceModel Provenance = "model"
	ProvenanceRules Provenance = "rules"
)

// ConfidenceLevel grades how much evidence backs a result.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// WeatherImpact is a coarse severity label derived from probability.
type WeatherImpact string

const (
	ImpactSevere   WeatherImpact = "severe"
	ImpactModerate WeatherImpact = "moderate"
	ImpactMinor    WeatherImpact = "minor"
	ImpactNone     WeatherImpact = "none"
)

// PredictionMode distinguishes forward-looking risk from recovery tracking.
type PredictionMode string

const (
	ModeRisk     PredictionMode = "risk"
	ModeRecovery PredictionMode = "recovery"
)

// RecoveryTendency describes how fast service typically comes back.
type RecoveryTendency string

const (
	RecoveryFast    RecoveryTendency = "fast"
	RecoverySlow    RecoveryTendency = "slow"
	RecoveryNextDay RecoveryTendency = "next-day"
)

// HistoryTrend is the direction of recent official suspensions.
type HistoryTrend string

const (
	TrendIncreasing HistoryTrend = "increasing"
	TrendStable     HistoryTrend = "stable"
	TrendDecreasing HistoryTrend = "decreasing"
)
