package sqsrepo

import (
	"context"
	"sync"
	"time"

	"github.com/slackmgr/types"
	"golang.org/x/sync/semaphore"
)

// messageExtender tracks the messages of a poll run that are still being
// handled or waiting for deletion, and extends their visibility timeout so
// they are not redelivered to another consumer in the meantime.
//
// Extension is best-effort: a message whose extension fails is dropped from
// tracking and may become visible again before the run deletes it.
type messageExtender struct {
	inFlightMessages map[string]*extendableMessage
	opts             *Options
	logger           types.Logger
}

func newMessageExtender(opts *Options, logger types.Logger) *messageExtender {
	return &messageExtender{
		inFlightMessages: make(map[string]*extendableMessage),
		opts:             opts,
		logger:           logger,
	}
}

func (m *messageExtender) run(ctx context.Context, sourceCh <-chan *extendableMessage) {
	m.logger.Debug("SQS message extender started")
	defer m.logger.Debug("SQS message extender exited")

	checkInterval := max(time.Duration(m.opts.extensionVisibilityTimeout/3)*time.Second, 5*time.Second)

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.processInFlightMessages(ctx)
		case msg, ok := <-sourceCh:
			if !ok {
				return
			}

			m.addMessage(msg)
		}
	}
}

func (m *messageExtender) processInFlightMessages(ctx context.Context) {
	if len(m.inFlightMessages) == 0 {
		return
	}

	inNeedOfExtension := []*extendableMessage{}

	for _, msg := range m.inFlightMessages {
		if msg.IsReleased() {
			m.removeMessage(msg)
			continue
		}

		if (time.Since(msg.OriginalReceiveTimestamp()) + time.Duration(m.opts.extensionVisibilityTimeout)*time.Second) >= m.opts.maxMessageExtension {
			m.logger.WithField("message_id", msg.MessageID()).Error("SQS message has reached maximum visibility timeout extension limit, removing from list of in-flight messages")
			m.removeMessage(msg)

			continue
		}

		if msg.NeedsExtensionNow() {
			inNeedOfExtension = append(inNeedOfExtension, msg)
		}
	}

	if len(inNeedOfExtension) == 0 {
		return
	}

	// A full receive batch is at most ten messages; extend a handful inline.
	if len(inNeedOfExtension) < 3 {
		m.extendMessagesSync(ctx, inNeedOfExtension)
	} else {
		m.extendMessagesAsync(ctx, inNeedOfExtension)
	}
}

func (m *messageExtender) extendMessagesSync(ctx context.Context, inNeedOfExtension []*extendableMessage) {
	for _, msg := range inNeedOfExtension {
		if err := msg.ExtendVisibility(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}

			m.logger.WithField("message_id", msg.MessageID()).Errorf("Failed to extend message visibility, removing from in-flight tracking: %v", err)

			m.removeMessage(msg)
		}
	}
}

func (m *messageExtender) extendMessagesAsync(ctx context.Context, inNeedOfExtension []*extendableMessage) {
	started := time.Now()

	wg := sync.WaitGroup{}
	sem := semaphore.NewWeighted(3)
	var mu sync.Mutex
	toRemove := []*extendableMessage{}

	for _, msg := range inNeedOfExtension {
		wg.Go(func() {
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			if ctx.Err() != nil {
				return
			}

			if err := msg.ExtendVisibility(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}

				m.logger.WithField("message_id", msg.MessageID()).Errorf("Failed to extend message visibility, removing from in-flight tracking: %v", err)

				mu.Lock()
				toRemove = append(toRemove, msg)
				mu.Unlock()
			}
		})
	}

	wg.Wait()

	if ctx.Err() != nil {
		return
	}

	for _, msg := range toRemove {
		m.removeMessage(msg)
	}

	m.logger.WithField("count", len(inNeedOfExtension)).WithField("elapsed", time.Since(started)).Debug("Extended SQS message visibility")
}

func (m *messageExtender) addMessage(msg *extendableMessage) {
	m.inFlightMessages[msg.MessageID()] = msg
}

func (m *messageExtender) removeMessage(msg *extendableMessage) {
	delete(m.inFlightMessages, msg.MessageID())
}

// pollExtender is the handle a poll run uses to feed messages to a running
// extender and to stop it when the run ends.
type pollExtender struct {
	ch     chan *extendableMessage
	cancel context.CancelFunc
	done   chan struct{}
}

// startExtender launches an extender goroutine for one poll run, or returns
// nil when visibility extension is disabled.
func (s *Session) startExtender(ctx context.Context) *pollExtender {
	if !s.opts.visibilityExtension {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)

	p := &pollExtender{
		ch:     make(chan *extendableMessage, MaxBatchSize),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	ext := newMessageExtender(s.opts, s.logger)

	go func() {
		defer close(p.done)
		ext.run(ctx, p.ch)
	}()

	return p
}

// track registers a received message with the extender. It returns nil when
// p is nil, so callers can release the result unconditionally.
func (p *pollExtender) track(ctx context.Context, s *Session, messageID, receiptHandle string) *extendableMessage {
	if p == nil {
		return nil
	}

	msg := newExtendableMessage(messageID, s.opts.extensionVisibilityTimeout, func(ctx context.Context) error {
		return s.changeMessageVisibility(ctx, messageID, receiptHandle)
	})

	if err := trySend(ctx, msg, p.ch); err != nil {
		return nil
	}

	return msg
}

func (p *pollExtender) stop() {
	if p == nil {
		return
	}

	p.cancel()
	<-p.done
}

func trySend[T any](ctx context.Context, msg T, sinkCh chan<- T) error {
	select {
	case sinkCh <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
