package sqsrepo

import (
	"context"
	"encoding/json"
	"time"
)

// Repository is a typed view of the queue behind a [Session]. Message bodies
// are T values encoded as JSON; types that need a different wire form can
// implement [encoding/json.Marshaler] and [encoding/json.Unmarshaler].
//
// A Repository holds no state besides its Session, so any number of them,
// for the same or different payload types, can share one Session. Every
// method blocks until the operation completes or ctx is cancelled.
type Repository[T any] struct {
	session *Session
}

// NewRepository returns a Repository of T backed by session. The session must
// have been initialized with [Session.Init] before any method is called.
func NewRepository[T any](session *Session) *Repository[T] {
	return &Repository[T]{session: session}
}

// Session returns the session the repository was created with.
func (r *Repository[T]) Session() *Session {
	return r.session
}

// SaveOne sends a single message. It returns false, without an error, when
// the item cannot be encoded; transport failures are returned as errors.
func (r *Repository[T]) SaveOne(ctx context.Context, item T) (bool, error) {
	s := r.session

	if !s.initialized {
		return false, ErrNotInitialized
	}

	body, err := json.Marshal(item)
	if err != nil {
		s.logger.Errorf("Failed to encode SQS message body: %v", err)
		s.metrics.observeSent(0, 1)

		return false, nil
	}

	if err := s.sendMessage(ctx, string(body)); err != nil {
		return false, err
	}

	s.metrics.observeSent(1, 0)

	return true, nil
}

// SaveMany sends items in batches of [MaxBatchSize] and reports which of them
// SQS accepted. Rejected items are not resent.
//
// Every item is reported exactly once, in Successful or in Failed, in the
// order it was given. If a batch request itself fails the error is returned
// together with the result, in which the items of that batch and of any batch
// not yet sent are reported as failed.
func (r *Repository[T]) SaveMany(ctx context.Context, items []T) (*Result[T], error) {
	if !r.session.initialized {
		return nil, ErrNotInitialized
	}

	if len(items) == 0 {
		return newResult[T](0), nil
	}

	return sendAll(ctx, r.session, items)
}

// Poll receives messages in batches until the queue returns an empty batch,
// decoding each body and passing it to handler.
//
// Messages for which handler returns true are considered processed. When
// autoDelete is true they are deleted after each batch, with rejected deletes
// retried as configured by [WithDeleteMaxRetries], and Poll returns the
// receipt handles whose deletion SQS confirmed. When autoDelete is false
// nothing is deleted and Poll returns the receipt handles of all processed
// messages. Messages the handler declines, or whose body cannot be decoded,
// are left on the queue.
//
// interval, when positive, is slept between batches. A failed receive or
// delete request ends the run with an error; delete retries running out does
// not, and is reported as a joined error wrapping [ErrDeleteRetryExhausted]
// once the queue is drained.
func (r *Repository[T]) Poll(ctx context.Context, handler Handler[T], interval time.Duration, autoDelete bool) ([]string, error) {
	var mh MessageHandler[T]

	if handler != nil {
		mh = func(ctx context.Context, msg *Message[T]) bool {
			return handler(ctx, msg.Body)
		}
	}

	return r.PollMessages(ctx, mh, interval, autoDelete)
}

// DrainAll receives until the queue returns an empty batch and returns every
// decoded message body, without deleting anything. Other producers may keep
// writing while it runs, so an empty queue is only observed at one point in
// time.
func (r *Repository[T]) DrainAll(ctx context.Context) ([]T, error) {
	return r.drain(ctx)
}

// HasMessages reports whether the queue's approximate message count is
// greater than zero.
func (r *Repository[T]) HasMessages(ctx context.Context) (bool, error) {
	count, err := r.session.ApproximateMessageCount(ctx)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// DeleteByReceiptHandles deletes the messages identified by receiptHandles.
// On success Failed is empty. If handles are still rejected after the
// configured retries, they are returned in Failed along with an error
// wrapping [ErrDeleteRetryExhausted].
func (r *Repository[T]) DeleteByReceiptHandles(ctx context.Context, receiptHandles []string) (*Result[string], error) {
	if len(receiptHandles) == 0 && r.session.initialized {
		return newResult[string](0), nil
	}

	return r.session.deleteReceiptHandles(ctx, receiptHandles)
}

// ListQueues returns the URLs of all queues visible to the session.
func (r *Repository[T]) ListQueues(ctx context.Context) ([]string, error) {
	return r.session.ListQueues(ctx)
}
