// Package sqsrepo provides a typed repository over an AWS SQS standard
// queue. It turns Go values into JSON message bodies and back, splits bulk
// sends and deletes into SQS batches of at most ten entries, and reconciles
// the per-entry results of each batch into whole-collection results.
//
// # Session
//
// [Session] binds an SQS client to one queue. Create it with [New] and
// initialise it with [Session.Init], which creates the queue if needed,
// resolves its URL and applies the configured visibility timeout:
//
//	session, err := sqsrepo.New(&awsCfg, "diary", logger,
//	    sqsrepo.WithQueueVisibilityTimeout(180),
//	).Init(ctx)
//
// # Repository
//
// [Repository] is the typed surface. Any number of repositories can share a
// session:
//
//	repo := sqsrepo.NewRepository[DiaryEntry](session)
//
//	result, err := repo.SaveMany(ctx, entries)
//	for _, e := range result.Failed {
//	    log.Printf("not enqueued: %v", e)
//	}
//
//	deleted, err := repo.Poll(ctx, func(ctx context.Context, e DiaryEntry) bool {
//	    return process(e) == nil
//	}, 0, true)
//
// # Batch results
//
// SQS reports success or failure per batch entry. Entries are correlated with
// the response by a per-request id ("1" to "10"), never by payload, and any
// entry SQS does not report as successful is counted as failed. Every item
// passed to [Repository.SaveMany] or [Repository.DeleteByReceiptHandles]
// appears exactly once in the returned [Result], in submission order.
//
// # Deletes
//
// Receipt handles rejected by DeleteMessageBatch are resubmitted after each
// full pass, with exponential backoff between rounds, up to
// [WithDeleteMaxRetries] times. Handles still rejected after that are
// returned in Result.Failed with an error wrapping [ErrDeleteRetryExhausted].
// A handle rejected as ReceiptHandleIsInvalid can never be deleted, so by
// default it is counted as deleted instead of being retried (see
// [WithInvalidReceiptHandleAsDeleted]).
//
// # Visibility Extension
//
// With [WithVisibilityExtension], a poll run keeps extending the visibility
// timeout of messages that are still being handled or waiting to be deleted.
// Extension is best-effort and bounded by [WithMaxMessageExtension].
package sqsrepo
