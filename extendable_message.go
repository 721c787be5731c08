package sqsrepo

import (
	"context"
	"sync"
	"time"
)

// extendableMessage is a received message whose visibility timeout the
// extender keeps pushing out until it is released.
type extendableMessage struct {
	messageID                string
	originalReceiveTimestamp time.Time
	lastExtendedAt           time.Time
	visibilityTimeout        time.Duration
	extendVisibilityFunc     func(ctx context.Context) error
	processingLock           *sync.Mutex
}

func newExtendableMessage(messageID string, visibilityTimeoutSeconds int32, extend func(ctx context.Context) error) *extendableMessage {
	visibilityTimeout := time.Duration(visibilityTimeoutSeconds) * time.Second
	now := time.Now()

	return &extendableMessage{
		messageID:                messageID,
		originalReceiveTimestamp: now,
		lastExtendedAt:           now,
		visibilityTimeout:        visibilityTimeout,
		extendVisibilityFunc:     extend,
		processingLock:           &sync.Mutex{},
	}
}

func (m *extendableMessage) MessageID() string {
	return m.messageID
}

func (m *extendableMessage) OriginalReceiveTimestamp() time.Time {
	return m.originalReceiveTimestamp
}

// Release stops further extensions. It is called once the message has been
// deleted, or when the handler declined it and it should become visible
// again after the current timeout. Release is a no-op on a nil message.
func (m *extendableMessage) Release() {
	if m == nil {
		return
	}

	m.processingLock.Lock()
	defer m.processingLock.Unlock()

	m.extendVisibilityFunc = nil
}

// IsReleased returns true if the message has been released.
func (m *extendableMessage) IsReleased() bool {
	m.processingLock.Lock()
	defer m.processingLock.Unlock()

	return m.extendVisibilityFunc == nil
}

// NeedsExtensionNow returns true if the message needs its visibility timeout to be extended now.
func (m *extendableMessage) NeedsExtensionNow() bool {
	m.processingLock.Lock()
	defer m.processingLock.Unlock()

	return m.extendVisibilityFunc != nil && time.Since(m.lastExtendedAt) > m.visibilityTimeout/2
}

// ExtendVisibility extends the message visibility timeout.
// Returns an error if the extension fails. On success, updates lastExtendedAt.
func (m *extendableMessage) ExtendVisibility(ctx context.Context) error {
	m.processingLock.Lock()
	defer m.processingLock.Unlock()

	// Released while waiting for the lock.
	if m.extendVisibilityFunc == nil {
		return nil
	}

	if err := m.extendVisibilityFunc(ctx); err != nil {
		return err
	}

	m.lastExtendedAt = time.Now()

	return nil
}
