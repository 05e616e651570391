package types

// Metric names shared by the Prometheus and CloudWatch recorders.
const (
	MetricPredictions       = "Predictions"
	MetricInferenceFallback = "InferenceFallback"
	MetricSourceFailure     = "SourceFailure"
	MetricForecastJob       = "ForecastJob"
	MetricSnapshotsStored   = "SnapshotsStored"
	MetricAccuracyScore     = "AccuracyScore"

	DimRoute      = "Route"
	DimProvenance = "Provenance"
	DimSource     = "Source"
	DimStatus     = "Status"
	DimReason     = "Reason"
	DimAction     = "Action"
	DimResult     = "Result"

	MetricNamespace = "RailRisk"
)
