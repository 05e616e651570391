package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"railrisk/internal/types"
)

// mockCloudWatchClient records PutMetricData calls for verification.
type mockCloudWatchClient struct {
	calls     []*cloudwatch.PutMetricDataInput
	returnErr error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func assertDimension(t *testing.T, dims []cwtypes.Dimension, name, value string) {
	t.Helper()
	for _, d := range dims {
		if *d.Name == name {
			if *d.Value != value {
				t.Errorf("dimension %s: expected %q, got %q", name, value, *d.Value)
			}
			return
		}
	}
	t.Errorf("dimension %s not found", name)
}

func TestCloudWatch_FlushPublishesBufferedDatums(t *testing.T) {
	cw := &mockCloudWatchClient{}
	rec := NewCloudWatch(cw, "", nil)

	rec.ObservePrediction("jr-hokkaido.chitose", types.ProvenanceRules, types.StatusDelayed)
	rec.RecordJob(types.JobActionForecast, "success")
	rec.RecordSnapshotsStored("jr-hokkaido.chitose", 7)

	if len(cw.calls) != 0 {
		t.Fatalf("expected no calls before Flush, got %d", len(cw.calls))
	}

	rec.Flush(context.Background())

	if len(cw.calls) != 1 {
		t.Fatalf("expected 1 PutMetricData call, got %d", len(cw.calls))
	}
	input := cw.calls[0]
	if *input.Namespace != types.MetricNamespace {
		t.Errorf("expected namespace %q, got %q", types.MetricNamespace, *input.Namespace)
	}
	if len(input.MetricData) != 3 {
		t.Fatalf("expected 3 datums, got %d", len(input.MetricData))
	}

	pred := input.MetricData[0]
	if *pred.MetricName != types.MetricPredictions {
		t.Errorf("expected metric %q, got %q", types.MetricPredictions, *pred.MetricName)
	}
	assertDimension(t, pred.Dimensions, types.DimProvenance, "rules")
	assertDimension(t, pred.Dimensions, types.DimStatus, "delayed")

	job := input.MetricData[1]
	assertDimension(t, job.Dimensions, types.DimAction, "forecast")
	assertDimension(t, job.Dimensions, types.DimResult, "success")

	stored := input.MetricData[2]
	if *stored.Value != 7 {
		t.Errorf("expected value 7, got %f", *stored.Value)
	}

	rec.Flush(context.Background())
	if len(cw.calls) != 1 {
		t.Errorf("expected an empty buffer after Flush, got %d calls", len(cw.calls))
	}
}

func TestCloudWatch_FlushSplitsLargeBatches(t *testing.T) {
	cw := &mockCloudWatchClient{}
	rec := NewCloudWatch(cw, "Test", nil)

	for i := 0; i < maxDatumsPerPut+5; i++ {
		rec.ObserveSourceFailure("official")
	}
	rec.Flush(context.Background())

	if len(cw.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(cw.calls))
	}
	if n := len(cw.calls[1].MetricData); n != 5 {
		t.Errorf("expected 5 datums in the second call, got %d", n)
	}
	if *cw.calls[0].Namespace != "Test" {
		t.Errorf("expected namespace Test, got %q", *cw.calls[0].Namespace)
	}
}

func TestCloudWatch_FlushErrorIsSwallowed(t *testing.T) {
	cw := &mockCloudWatchClient{returnErr: errors.New("throttled")}
	rec := NewCloudWatch(cw, "", nil)

	rec.ObserveFallback("jr-hokkaido.chitose", "predict")
	rec.RecordAccuracy("jr-hokkaido.chitose", 80)
	rec.Flush(context.Background())

	if len(cw.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(cw.calls))
	}
}
