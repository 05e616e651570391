package metrics

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"railrisk/internal/types"
)

// maxDatumsPerPut is the PutMetricData per-request datum limit.
const maxDatumsPerPut = 1000

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatch buffers datums in memory and publishes them on Flush. The
// worker flushes once per invocation so a batch of jobs costs a single
// PutMetricData call in the common case.
type CloudWatch struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger

	mu      sync.Mutex
	pending []cwtypes.MetricDatum
}

// NewCloudWatch creates a recorder publishing to namespace. An empty
// namespace uses types.MetricNamespace.
func NewCloudWatch(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatch {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatch{client: client, namespace: namespace, logger: logger}
}

func (c *CloudWatch) ObservePrediction(routeID string, provenance types.Provenance, status types.OperationStatus) {
	c.add(types.MetricPredictions, 1, cwtypes.StandardUnitCount,
		dim(types.DimRoute, routeID),
		dim(types.DimProvenance, string(provenance)),
		dim(types.DimStatus, string(status)),
	)
}

func (c *CloudWatch) ObserveFallback(routeID, reason string) {
	c.add(types.MetricInferenceFallback, 1, cwtypes.StandardUnitCount,
		dim(types.DimRoute, routeID),
		dim(types.DimReason, reason),
	)
}

func (c *CloudWatch) ObserveSourceFailure(source string) {
	c.add(types.MetricSourceFailure, 1, cwtypes.StandardUnitCount, dim(types.DimSource, source))
}

// RecordJob counts one processed forecast job by action and outcome.
func (c *CloudWatch) RecordJob(action types.ForecastJobAction, result string) {
	c.add(types.MetricForecastJob, 1, cwtypes.StandardUnitCount,
		dim(types.DimAction, string(action)),
		dim(types.DimResult, result),
	)
}

// RecordSnapshotsStored counts snapshots written for a route.
func (c *CloudWatch) RecordSnapshotsStored(routeID string, n int) {
	c.add(types.MetricSnapshotsStored, float64(n), cwtypes.StandardUnitCount, dim(types.DimRoute, routeID))
}

// RecordAccuracy records the accuracy score of one graded snapshot.
func (c *CloudWatch) RecordAccuracy(routeID string, score int) {
	c.add(types.MetricAccuracyScore, float64(score), cwtypes.StandardUnitNone, dim(types.DimRoute, routeID))
}

// Flush publishes buffered datums. Failures are logged and the datums are
// dropped; metrics never fail a job.
func (c *CloudWatch) Flush(ctx context.Context) {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for start := 0; start < len(pending); start += maxDatumsPerPut {
		end := min(start+maxDatumsPerPut, len(pending))
		_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(c.namespace),
			MetricData: pending[start:end],
		})
		if err != nil {
			c.logger.ErrorContext(ctx, "failed to publish metrics",
				"error", err,
				"datums", end-start,
			)
		}
	}
}

func (c *CloudWatch) add(name string, value float64, unit cwtypes.StandardUnit, dims ...cwtypes.Dimension) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Dimensions: dims,
	})
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}
