package sqsrepo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/slackmgr/types"
)

// receiptHandleIsInvalid is the batch entry error code SQS reports for a
// receipt handle that can no longer be used, typically because the message
// was already deleted or its receive has expired.
const receiptHandleIsInvalid = "ReceiptHandleIsInvalid"

// Session binds an SQS client to one queue. It owns the resolved queue URL
// and is shared, read-only, by every [Repository] created from it.
//
// Create a Session with [New], then call [Session.Init] once before any other
// method. Init is not thread-safe; all other methods are safe for concurrent
// use after Init returns.
type Session struct {
	client      API
	queueName   string
	queueURL    string
	awsCfg      *aws.Config
	opts        *Options
	metrics     *metrics
	logger      types.Logger
	initialized bool
}

// New creates a Session for the named SQS queue.
//
// Functional options may be passed to override defaults (see With* functions).
// The logger is automatically enriched with "plugin" and "queue_name" fields.
//
// New does not connect to AWS. Call [Session.Init] to create or look up the
// queue and resolve its URL.
func New(awsCfg *aws.Config, queueName string, logger types.Logger, opts ...Option) *Session {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	logger = logger.
		WithField("plugin", "sqsrepo").
		WithField("queue_name", queueName)

	return &Session{
		awsCfg:    awsCfg,
		queueName: queueName,
		opts:      options,
		logger:    logger,
	}
}

// Init initializes the Session: validates options, builds the SQS client,
// creates the queue if it does not exist (unless disabled with
// [WithCreateQueue]), resolves its URL and applies the configured queue
// visibility timeout. It returns the receiver so that initialization can be
// chained with [New]:
//
//	session, err := sqsrepo.New(&awsCfg, "diary", logger).Init(ctx)
//
// Init is idempotent; subsequent calls on an already-initialized Session are
// no-ops. Every error returned by Init is a configuration or setup failure
// and is not retried.
func (s *Session) Init(ctx context.Context) (*Session, error) {
	if s.initialized {
		return s, nil
	}

	if s.queueName == "" {
		return nil, errors.New("the SQS queue name cannot be empty")
	}

	if err := s.opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid SQS options: %w", err)
	}

	// Use injected client if provided, otherwise create real client
	if s.opts.sqsClient != nil {
		s.client = s.opts.sqsClient
	} else {
		if s.awsCfg == nil {
			return nil, errors.New("AWS config cannot be nil")
		}

		if err := ValidateRegion(s.awsCfg.Region); err != nil {
			return nil, err
		}

		s.client = sqs.NewFromConfig(*s.awsCfg, func(o *sqs.Options) {
			o.Retryer = retry.AddWithMaxBackoffDelay(o.Retryer, s.opts.sqsAPIMaxRetryBackoffDelay)
			o.Retryer = retry.AddWithMaxAttempts(o.Retryer, s.opts.sqsAPIMaxRetryAttempts)
		})
	}

	m, err := newMetrics(s.opts.metricsRegisterer, s.queueName)
	if err != nil {
		return nil, err
	}

	s.metrics = m

	queueURL, err := s.resolveQueueURL(ctx)
	if err != nil {
		return nil, err
	}

	s.queueURL = queueURL

	if s.opts.queueVisibilityTimeoutSeconds > 0 {
		if err := s.setVisibilityTimeout(ctx, s.opts.queueVisibilityTimeoutSeconds); err != nil {
			return nil, err
		}
	}

	s.logger.WithField("queue_url", s.queueURL).Info("SQS session initialized")

	s.initialized = true

	return s, nil
}

// Name returns the SQS queue name supplied to [New].
func (s *Session) Name() string {
	return s.queueName
}

// QueueURL returns the queue URL resolved by [Session.Init].
func (s *Session) QueueURL() string {
	return s.queueURL
}

// ListQueues returns the URLs of all queues visible to the session's
// credentials in its region.
func (s *Session) ListQueues(ctx context.Context) ([]string, error) {
	if !s.initialized {
		return nil, ErrNotInitialized
	}

	var urls []string

	paginator := sqs.NewListQueuesPaginator(s.client, &sqs.ListQueuesInput{})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list SQS queues: %w", err)
		}

		urls = append(urls, page.QueueUrls...)
	}

	return urls, nil
}

// approximateCountAttributes together cover every undeleted message: visible,
// in flight and delayed.
var approximateCountAttributes = []sqstypes.QueueAttributeName{
	sqstypes.QueueAttributeNameApproximateNumberOfMessages,
	sqstypes.QueueAttributeNameApproximateNumberOfMessagesNotVisible,
	sqstypes.QueueAttributeNameApproximateNumberOfMessagesDelayed,
}

// ApproximateMessageCount returns the number of messages that have not been
// deleted, including messages hidden by an unexpired visibility timeout.
// SQS only guarantees eventual consistency for these values.
func (s *Session) ApproximateMessageCount(ctx context.Context) (int, error) {
	if !s.initialized {
		return 0, ErrNotInitialized
	}

	output, err := s.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       &s.queueURL,
		AttributeNames: approximateCountAttributes,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get SQS queue attributes: %w", err)
	}

	total := 0

	for _, attrName := range approximateCountAttributes {
		raw, ok := output.Attributes[string(attrName)]
		if !ok {
			continue
		}

		count, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid %s attribute %q: %w", attrName, raw, err)
		}

		total += count
	}

	return total, nil
}

func (s *Session) resolveQueueURL(ctx context.Context) (string, error) {
	if s.opts.createQueue {
		resp, err := s.client.CreateQueue(ctx, &sqs.CreateQueueInput{QueueName: aws.String(s.queueName)})
		if err != nil {
			return "", fmt.Errorf("failed to create SQS queue %s: %w", s.queueName, err)
		}

		if url := aws.ToString(resp.QueueUrl); url != "" {
			return url, nil
		}
	}

	resp, err := s.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(s.queueName)})
	if err != nil {
		return "", fmt.Errorf("failed to get SQS queue URL for %s: %w", s.queueName, err)
	}

	url := aws.ToString(resp.QueueUrl)
	if url == "" {
		return "", fmt.Errorf("SQS returned an empty queue URL for %s", s.queueName)
	}

	return url, nil
}

func (s *Session) setVisibilityTimeout(ctx context.Context, seconds int32) error {
	input := &sqs.SetQueueAttributesInput{
		QueueUrl: &s.queueURL,
		Attributes: map[string]string{
			string(sqstypes.QueueAttributeNameVisibilityTimeout): strconv.Itoa(int(seconds)),
		},
	}

	if _, err := s.client.SetQueueAttributes(ctx, input); err != nil {
		return fmt.Errorf("failed to set SQS queue visibility timeout: %w", err)
	}

	s.logger.WithField("visibility_timeout_seconds", seconds).Debug("SQS queue visibility timeout set")

	return nil
}

func (s *Session) sendMessage(ctx context.Context, body string) error {
	input := &sqs.SendMessageInput{
		QueueUrl:    &s.queueURL,
		MessageBody: &body,
	}

	if _, err := s.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("failed to send SQS message: %w", err)
	}

	return nil
}

// sendMessageBatch submits entries in one SendMessageBatch call and returns
// the ids SQS accepted.
func (s *Session) sendMessageBatch(ctx context.Context, entries []sqstypes.SendMessageBatchRequestEntry) ([]string, error) {
	output, err := s.client.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
		QueueUrl: &s.queueURL,
		Entries:  entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send SQS message batch: %w", err)
	}

	ids := make([]string, 0, len(output.Successful))

	for _, e := range output.Successful {
		ids = append(ids, aws.ToString(e.Id))
	}

	for _, f := range output.Failed {
		s.logger.
			WithField("entry_id", aws.ToString(f.Id)).
			WithField("code", aws.ToString(f.Code)).
			Warnf("SQS rejected message batch entry: %s", aws.ToString(f.Message))
	}

	return ids, nil
}

// receiveMessages fetches up to receiveMaxNumberOfMessages messages. Messages
// without a receipt handle or body are dropped, since they can neither be
// decoded nor deleted.
func (s *Session) receiveMessages(ctx context.Context) ([]sqstypes.Message, error) {
	input := &sqs.ReceiveMessageInput{
		QueueUrl:            &s.queueURL,
		MaxNumberOfMessages: s.opts.receiveMaxNumberOfMessages,
		WaitTimeSeconds:     s.opts.receiveWaitTimeSeconds,
	}

	output, err := s.client.ReceiveMessage(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to receive SQS messages: %w", err)
	}

	messages := make([]sqstypes.Message, 0, len(output.Messages))

	for _, m := range output.Messages {
		if m.ReceiptHandle == nil || m.Body == nil {
			continue
		}

		messages = append(messages, m)
	}

	s.metrics.received.Add(float64(len(messages)))

	if len(messages) > 0 {
		s.logger.WithField("count", len(messages)).Debug("SQS messages received")
	}

	return messages, nil
}

// deleteBatch deletes at most MaxBatchSize receipt handles with a single
// DeleteMessageBatch call and reports which of them SQS confirmed.
func (s *Session) deleteBatch(ctx context.Context, receiptHandles []string) (*Result[string], error) {
	entries := newBatchEntries(receiptHandles)
	request := make([]sqstypes.DeleteMessageBatchRequestEntry, len(entries))

	for i, e := range entries {
		request[i] = sqstypes.DeleteMessageBatchRequestEntry{
			Id:            aws.String(e.id),
			ReceiptHandle: aws.String(e.value),
		}
	}

	output, err := s.client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
		QueueUrl: &s.queueURL,
		Entries:  request,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete SQS message batch: %w", err)
	}

	ids := make([]string, 0, len(entries))

	for _, e := range output.Successful {
		ids = append(ids, aws.ToString(e.Id))
	}

	for _, f := range output.Failed {
		id := aws.ToString(f.Id)
		code := aws.ToString(f.Code)
		logger := s.logger.WithField("entry_id", id).WithField("code", code)

		if code == receiptHandleIsInvalid && s.opts.invalidReceiptHandleAsDeleted {
			logger.Warn("SQS receipt handle is no longer valid, treating message as deleted")
			ids = append(ids, id)

			continue
		}

		logger.Debugf("SQS rejected delete batch entry: %s", aws.ToString(f.Message))
	}

	result := reconcile(entries, ids)

	s.metrics.observeDeleted(len(result.Successful), len(result.Failed))

	return result, nil
}

// changeMessageVisibility extends the visibility timeout of the SQS message with the given receipt handle.
// Returns an error if the visibility extension fails.
func (s *Session) changeMessageVisibility(ctx context.Context, messageID, receiptHandle string) error {
	logger := s.logger.WithField("message_id", messageID).WithField("visibility_timeout_seconds", s.opts.extensionVisibilityTimeout)

	input := &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          &s.queueURL,
		ReceiptHandle:     &receiptHandle,
		VisibilityTimeout: s.opts.extensionVisibilityTimeout,
	}

	if _, err := s.client.ChangeMessageVisibility(ctx, input); err != nil {
		return fmt.Errorf("failed to extend SQS message visibility: %w", err)
	}

	logger.Debug("SQS message visibility extended")

	return nil
}
