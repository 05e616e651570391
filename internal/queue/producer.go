// Package queue provides the SQS producer that dispatches forecast jobs to the
// forecast worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"railrisk/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// JobRequest describes a job before it is stamped and sent.
type JobRequest struct {
	Action   types.ForecastJobAction
	RouteIDs []string
	Days     int
	// Reason is attached as a message attribute for tracing.
	Reason string
}

// JobProducer serializes ForecastJobMessages onto the forecast job queue.
type JobProducer struct {
	client   SQSSender
	queueURL string
	clock    types.Clock
	logger   *slog.Logger
}

// NewJobProducer creates a JobProducer sending to queueURL.
func NewJobProducer(client SQSSender, queueURL string, clock types.Clock, logger *slog.Logger) *JobProducer {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobProducer{
		client:   client,
		queueURL: queueURL,
		clock:    clock,
		logger:   logger,
	}
}

// Enqueue stamps req with a job id and the request's trace id, then sends it.
// It returns the message as sent.
func (p *JobProducer) Enqueue(ctx context.Context, req JobRequest) (*types.ForecastJobMessage, error) {
	traceID := types.GetRequestID(ctx)
	if traceID == "" {
		traceID = uuid.New().String()
	}
	msg := &types.ForecastJobMessage{
		JobID:       fmt.Sprintf("job_%s", uuid.New().String()),
		TraceID:     traceID,
		Action:      req.Action,
		RouteIDs:    req.RouteIDs,
		Days:        req.Days,
		RequestedAt: p.clock.Now().UTC(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("queue: failed to marshal ForecastJobMessage: %w", err)
	}

	reason := req.Reason
	if reason == "" {
		reason = "api"
	}
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"reason": {
				DataType:    aws.String("String"),
				StringValue: aws.String(reason),
			},
			"action": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(req.Action)),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamQueue, "failed to enqueue forecast job",
			fmt.Errorf("queue: send to %s: %w", p.queueURL, err))
	}

	p.logger.InfoContext(ctx, "forecast job enqueued",
		"queue_url", p.queueURL,
		"job_id", msg.JobID,
		"trace_id", msg.TraceID,
		"action", string(msg.Action),
		"route_ids", msg.RouteIDs,
		"reason", reason,
	)
	return msg, nil
}
