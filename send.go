package sqsrepo

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// sendBatch encodes and submits one batch of at most MaxBatchSize items.
//
// Items are correlated with the SQS response by their batch entry id, never
// by content. Anything SQS did not list as successful is reported as failed,
// including items that could not be encoded and were therefore never sent.
func sendBatch[T any](ctx context.Context, s *Session, batch []T) (*Result[T], error) {
	entries := newBatchEntries(batch)
	request := make([]sqstypes.SendMessageBatchRequestEntry, 0, len(entries))

	for _, e := range entries {
		body, err := json.Marshal(e.value)
		if err != nil {
			s.logger.WithField("entry_id", e.id).Errorf("Failed to encode SQS message body: %v", err)
			continue
		}

		request = append(request, sqstypes.SendMessageBatchRequestEntry{
			Id:          aws.String(e.id),
			MessageBody: aws.String(string(body)),
		})
	}

	var successfulIDs []string

	if len(request) > 0 {
		ids, err := s.sendMessageBatch(ctx, request)
		if err != nil {
			return nil, err
		}

		successfulIDs = ids
	}

	result := reconcile(entries, successfulIDs)

	s.metrics.observeSent(len(result.Successful), len(result.Failed))

	s.logger.
		WithField("successful", len(result.Successful)).
		WithField("failed", len(result.Failed)).
		Debug("SQS message batch sent")

	return result, nil
}

// sendAll splits items into batches and sends them, preserving submission
// order in the returned result.
func sendAll[T any](ctx context.Context, s *Session, items []T) (*Result[T], error) {
	batches := splitBatches(items, MaxBatchSize)

	return dispatchBatches(ctx, s.opts.batchConcurrency, batches, func(ctx context.Context, batch []T) (*Result[T], error) {
		return sendBatch(ctx, s, batch)
	})
}
