package sqsrepo

import (
	"context"
	"fmt"
	"time"
)

// initialDeleteBackoff is the pause before the first delete retry round.
const initialDeleteBackoff = 50 * time.Millisecond

// deleteReceiptHandles deletes every receipt handle in batches of
// MaxBatchSize. Handles SQS rejects are collected over a full pass and then
// resubmitted, again in batches, with exponential backoff between rounds.
//
// After deleteMaxRetries retry rounds any handles still rejected are returned
// in Failed together with an error wrapping ErrDeleteRetryExhausted. A
// transport error or a cancelled context stops the loop immediately; the
// handles not confirmed by then are reported in Failed.
func (s *Session) deleteReceiptHandles(ctx context.Context, receiptHandles []string) (*Result[string], error) {
	if !s.initialized {
		return nil, ErrNotInitialized
	}

	result := newResult[string](len(receiptHandles))
	pending := receiptHandles
	backoff := initialDeleteBackoff

	for attempt := 0; len(pending) > 0; attempt++ {
		round, err := dispatchBatches(ctx, s.opts.batchConcurrency, splitBatches(pending, MaxBatchSize), s.deleteBatch)

		result.Successful = append(result.Successful, round.Successful...)

		if err != nil {
			result.Failed = append(result.Failed, round.Failed...)
			return result, err
		}

		if len(round.Failed) == 0 {
			break
		}

		if attempt == s.opts.deleteMaxRetries {
			result.Failed = append(result.Failed, round.Failed...)

			s.logger.
				WithField("count", len(round.Failed)).
				Errorf("SQS delete still rejected after %d retries", attempt)

			return result, fmt.Errorf("%d receipt handles still rejected after %d retries: %w", len(round.Failed), attempt, ErrDeleteRetryExhausted)
		}

		s.logger.
			WithField("count", len(round.Failed)).
			WithField("attempt", attempt+1).
			WithField("backoff", backoff).
			Debug("Retrying rejected SQS deletes")

		// Wait before retrying rejected handles.
		select {
		case <-ctx.Done():
			result.Failed = append(result.Failed, round.Failed...)
			return result, ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, s.opts.deleteMaxBackoff)
		pending = round.Failed

		s.metrics.deleteRounds.Inc()
	}

	return result, nil
}
