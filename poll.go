package sqsrepo

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Message is a decoded SQS message together with its delivery metadata.
type Message[T any] struct {
	MessageID     string
	ReceiptHandle string
	Body          T
}

// Handler processes one decoded message body. Returning true marks the
// message as processed; returning false leaves it on the queue, to be
// redelivered once its visibility timeout expires.
type Handler[T any] func(ctx context.Context, item T) bool

// MessageHandler is like [Handler] but also receives the message id and
// receipt handle.
type MessageHandler[T any] func(ctx context.Context, msg *Message[T]) bool

// PollMessages receives messages until the queue returns an empty batch,
// calling handler for each one. See [Repository.Poll] for the full contract.
func (r *Repository[T]) PollMessages(ctx context.Context, handler MessageHandler[T], interval time.Duration, autoDelete bool) ([]string, error) {
	s := r.session

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}

	if interval < 0 {
		return nil, errors.New("poll interval cannot be negative")
	}

	ext := s.startExtender(ctx)
	defer ext.stop()

	var (
		handled      []string
		exhaustedErr []error
	)

	for {
		messages, err := s.receiveMessages(ctx)
		if err != nil {
			return handled, err
		}

		if len(messages) == 0 {
			break
		}

		processed, inFlight := r.handleBatch(ctx, ext, messages, handler)

		if autoDelete && len(processed) > 0 {
			result, err := s.deleteReceiptHandles(ctx, processed)

			for _, msg := range inFlight {
				msg.Release()
			}

			handled = append(handled, result.Successful...)

			if err != nil {
				if !errors.Is(err, ErrDeleteRetryExhausted) {
					return handled, err
				}

				exhaustedErr = append(exhaustedErr, err)
			}
		} else {
			for _, msg := range inFlight {
				msg.Release()
			}

			if !autoDelete {
				handled = append(handled, processed...)
			}
		}

		if interval > 0 {
			select {
			case <-ctx.Done():
				return handled, ctx.Err()
			case <-time.After(interval):
			}
		}
	}

	s.logger.WithField("handled", len(handled)).Debug("SQS queue drained")

	return handled, errors.Join(exhaustedErr...)
}

// handleBatch decodes and handles one received batch. It returns the receipt
// handles of the messages the handler accepted and the extender entries that
// are still being extended for them.
func (r *Repository[T]) handleBatch(ctx context.Context, ext *pollExtender, messages []sqstypes.Message, handler MessageHandler[T]) ([]string, []*extendableMessage) {
	s := r.session

	processed := make([]string, 0, len(messages))
	inFlight := make([]*extendableMessage, 0, len(messages))

	for _, m := range messages {
		msgID := aws.ToString(m.MessageId)
		receiptHandle := aws.ToString(m.ReceiptHandle)

		tracked := ext.track(ctx, s, cmp.Or(msgID, receiptHandle), receiptHandle)

		body, err := decode[T](aws.ToString(m.Body))
		if err != nil {
			s.logger.WithField("message_id", msgID).Errorf("Failed to decode SQS message body, leaving it on the queue: %v", err)
			tracked.Release()

			continue
		}

		if !handler(ctx, &Message[T]{MessageID: msgID, ReceiptHandle: receiptHandle, Body: body}) {
			tracked.Release()
			continue
		}

		processed = append(processed, receiptHandle)

		if tracked != nil {
			inFlight = append(inFlight, tracked)
		}
	}

	return processed, inFlight
}

// drain receives until the queue returns an empty batch and decodes every
// message body. Nothing is deleted, so the messages reappear once their
// visibility timeout expires.
func (r *Repository[T]) drain(ctx context.Context) ([]T, error) {
	s := r.session

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	var items []T

	for {
		messages, err := s.receiveMessages(ctx)
		if err != nil {
			return items, err
		}

		if len(messages) == 0 {
			return items, nil
		}

		for _, m := range messages {
			body, err := decode[T](aws.ToString(m.Body))
			if err != nil {
				s.logger.WithField("message_id", aws.ToString(m.MessageId)).Errorf("Failed to decode SQS message body, skipping it: %v", err)
				continue
			}

			items = append(items, body)
		}
	}
}

func decode[T any](body string) (T, error) {
	var v T

	err := json.Unmarshal([]byte(body), &v)

	return v, err
}
