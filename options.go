package sqsrepo

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option is a functional option for configuring a [Session].
// Options are passed to [New] and applied before [Session.Init] is called.
type Option func(*Options)

// Options holds the resolved configuration for a [Session].
// All fields are set to sensible defaults by [New]; use With* functions to
// override individual values.
type Options struct {
	queueVisibilityTimeoutSeconds int32
	receiveMaxNumberOfMessages    int32
	receiveWaitTimeSeconds        int32
	sqsAPIMaxRetryAttempts        int
	sqsAPIMaxRetryBackoffDelay    time.Duration
	deleteMaxRetries              int
	deleteMaxBackoff              time.Duration
	invalidReceiptHandleAsDeleted bool
	batchConcurrency              int
	createQueue                   bool
	visibilityExtension           bool
	extensionVisibilityTimeout    int32
	maxMessageExtension           time.Duration
	metricsRegisterer             prometheus.Registerer
	sqsClient                     API // Optional: injected SQS client for testing
}

func newOptions() *Options {
	return &Options{
		receiveMaxNumberOfMessages:    MaxBatchSize,
		sqsAPIMaxRetryAttempts:        5,
		sqsAPIMaxRetryBackoffDelay:    10 * time.Second,
		deleteMaxRetries:              5,
		deleteMaxBackoff:              2 * time.Second,
		invalidReceiptHandleAsDeleted: true,
		batchConcurrency:              1,
		createQueue:                   true,
		extensionVisibilityTimeout:    30,
		maxMessageExtension:           10 * time.Minute,
	}
}

func (o *Options) validate() error {
	if o.queueVisibilityTimeoutSeconds < 0 || o.queueVisibilityTimeoutSeconds > 43200 {
		return errors.New("queue visibility timeout must be between 0 seconds and 12 hours")
	}

	if o.receiveMaxNumberOfMessages < 1 || o.receiveMaxNumberOfMessages > MaxBatchSize {
		return errors.New("max number of messages per SQS receive must be between 1 and 10")
	}

	if o.receiveWaitTimeSeconds < 0 || o.receiveWaitTimeSeconds > 20 {
		return errors.New("SQS receive wait time must be between 0 and 20 seconds")
	}

	if o.sqsAPIMaxRetryAttempts < 0 || o.sqsAPIMaxRetryAttempts > 10 {
		return errors.New("max SQS API retry attempts must be between 0 and 10")
	}

	if o.sqsAPIMaxRetryBackoffDelay < 1*time.Second || o.sqsAPIMaxRetryBackoffDelay > 30*time.Second {
		return errors.New("max SQS API retry backoff delay must be between 1 and 30 seconds")
	}

	if o.deleteMaxRetries < 0 || o.deleteMaxRetries > 20 {
		return errors.New("max delete retries must be between 0 and 20")
	}

	if o.deleteMaxBackoff < 50*time.Millisecond || o.deleteMaxBackoff > time.Minute {
		return errors.New("max delete backoff must be between 50 milliseconds and 1 minute")
	}

	if o.batchConcurrency < 1 || o.batchConcurrency > 32 {
		return errors.New("batch concurrency must be between 1 and 32")
	}

	if o.visibilityExtension {
		if o.extensionVisibilityTimeout < 10 || o.extensionVisibilityTimeout > 3600 {
			return errors.New("extension visibility timeout must be between 10 seconds and 1 hour")
		}

		if o.maxMessageExtension < 1*time.Minute || o.maxMessageExtension > time.Hour {
			return errors.New("max message extension must be between 1 minute and 1 hour")
		}
	}

	return nil
}

// WithQueueVisibilityTimeout sets the VisibilityTimeout attribute applied to
// the queue once during [Session.Init]. Zero leaves the queue attribute
// untouched. Must be between 0 and 43200 seconds. Default: 0.
func WithQueueVisibilityTimeout(seconds int32) Option {
	return func(o *Options) {
		o.queueVisibilityTimeoutSeconds = seconds
	}
}

// WithReceiveMaxNumberOfMessages sets the maximum number of messages
// returned by a single ReceiveMessage API call. Must be between 1 and 10.
// Default: 10.
func WithReceiveMaxNumberOfMessages(n int32) Option {
	return func(o *Options) {
		o.receiveMaxNumberOfMessages = n
	}
}

// WithReceiveWaitTimeSeconds sets the long-poll wait duration for each
// ReceiveMessage API call. A poll run ends on the first empty receive, so
// longer values make a run wait that long before it returns.
// Must be between 0 and 20 seconds. Default: 0 (short polling).
func WithReceiveWaitTimeSeconds(seconds int32) Option {
	return func(o *Options) {
		o.receiveWaitTimeSeconds = seconds
	}
}

// WithSqsAPIMaxRetryAttempts sets the maximum number of retry attempts for
// failed SQS API calls. Must be between 0 and 10. Default: 5.
func WithSqsAPIMaxRetryAttempts(n int) Option {
	return func(o *Options) {
		o.sqsAPIMaxRetryAttempts = n
	}
}

// WithSqsAPIMaxRetryBackoffDelay sets the maximum backoff delay between
// consecutive SQS API retry attempts. Must be between 1 second and 30 seconds.
// Default: 10 seconds.
func WithSqsAPIMaxRetryBackoffDelay(d time.Duration) Option {
	return func(o *Options) {
		o.sqsAPIMaxRetryBackoffDelay = d
	}
}

// WithDeleteMaxRetries sets how many times the receipt handles rejected by
// DeleteMessageBatch are resubmitted before the delete gives up with
// [ErrDeleteRetryExhausted]. Must be between 0 and 20. Default: 5.
func WithDeleteMaxRetries(n int) Option {
	return func(o *Options) {
		o.deleteMaxRetries = n
	}
}

// WithDeleteMaxBackoff caps the exponential backoff between delete retry
// rounds. Backoff starts at 50 milliseconds and doubles each round.
// Must be between 50 milliseconds and 1 minute. Default: 2 seconds.
func WithDeleteMaxBackoff(d time.Duration) Option {
	return func(o *Options) {
		o.deleteMaxBackoff = d
	}
}

// WithInvalidReceiptHandleAsDeleted controls how a delete entry rejected with
// ReceiptHandleIsInvalid is reported. When true the handle is counted as
// deleted, since resubmitting it can never succeed. When false it is
// retried like any other rejection. Default: true.
func WithInvalidReceiptHandleAsDeleted(enabled bool) Option {
	return func(o *Options) {
		o.invalidReceiptHandleAsDeleted = enabled
	}
}

// WithBatchConcurrency sets how many batches of a single SaveMany or delete
// call may be in flight at once. Results are always reported in submission
// order. Must be between 1 and 32. Default: 1 (sequential).
func WithBatchConcurrency(n int) Option {
	return func(o *Options) {
		o.batchConcurrency = n
	}
}

// WithCreateQueue controls whether [Session.Init] creates the queue when it
// does not exist. When false the queue must already exist and its URL is
// resolved with GetQueueUrl. Default: true.
func WithCreateQueue(enabled bool) Option {
	return func(o *Options) {
		o.createQueue = enabled
	}
}

// WithVisibilityExtension enables a background extender during poll runs that
// keeps extending the visibility timeout of messages that are still being
// handled or waiting to be deleted. Default: false.
func WithVisibilityExtension(enabled bool) Option {
	return func(o *Options) {
		o.visibilityExtension = enabled
	}
}

// WithExtensionVisibilityTimeout sets the visibility timeout applied by each
// extension call. Only used when visibility extension is enabled.
// Must be between 10 and 3600 seconds. Default: 30.
func WithExtensionVisibilityTimeout(seconds int32) Option {
	return func(o *Options) {
		o.extensionVisibilityTimeout = seconds
	}
}

// WithMaxMessageExtension sets the maximum total duration for which a
// message's visibility timeout may be extended after it was first received.
// Only used when visibility extension is enabled.
// Must be between 1 minute and 1 hour. Default: 10 minutes.
func WithMaxMessageExtension(d time.Duration) Option {
	return func(o *Options) {
		o.maxMessageExtension = d
	}
}

// WithMetricsRegisterer registers the session's Prometheus counters with reg.
// When unset the counters are still maintained but not exported.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(o *Options) {
		o.metricsRegisterer = reg
	}
}

// WithSQSClient replaces the default AWS SQS client with a custom
// implementation of [API]. This is useful for LocalStack-style setups that
// need a hand-built client, or for injecting mocks in tests.
func WithSQSClient(client API) Option {
	return func(o *Options) {
		o.sqsClient = client
	}
}
