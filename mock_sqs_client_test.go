//nolint:testpackage // Mock must be in sqsrepo package to access unexported types
package sqsrepo

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/slackmgr/types"
)

const testQueueURL = "https://sqs.us-east-1.amazonaws.com/123456789/diary"

// mockSQSClient is a mock implementation of the API interface for testing.
// Unset funcs return empty, successful outputs.
type mockSQSClient struct {
	createQueueFunc             func(ctx context.Context, input *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	getQueueUrlFunc             func(ctx context.Context, input *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	listQueuesFunc              func(ctx context.Context, input *sqs.ListQueuesInput, optFns ...func(*sqs.Options)) (*sqs.ListQueuesOutput, error)
	setQueueAttributesFunc      func(ctx context.Context, input *sqs.SetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.SetQueueAttributesOutput, error)
	getQueueAttributesFunc      func(ctx context.Context, input *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
	sendMessageFunc             func(ctx context.Context, input *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	sendMessageBatchFunc        func(ctx context.Context, input *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error)
	receiveMessageFunc          func(ctx context.Context, input *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	deleteMessageBatchFunc      func(ctx context.Context, input *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
	changeMessageVisibilityFunc func(ctx context.Context, input *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

func (m *mockSQSClient) CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error) {
	if m.createQueueFunc != nil {
		return m.createQueueFunc(ctx, params, optFns...)
	}
	return &sqs.CreateQueueOutput{QueueUrl: aws.String(testQueueURL)}, nil
}

func (m *mockSQSClient) GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error) {
	if m.getQueueUrlFunc != nil {
		return m.getQueueUrlFunc(ctx, params, optFns...)
	}
	return &sqs.GetQueueUrlOutput{QueueUrl: aws.String(testQueueURL)}, nil
}

func (m *mockSQSClient) ListQueues(ctx context.Context, params *sqs.ListQueuesInput, optFns ...func(*sqs.Options)) (*sqs.ListQueuesOutput, error) {
	if m.listQueuesFunc != nil {
		return m.listQueuesFunc(ctx, params, optFns...)
	}
	return &sqs.ListQueuesOutput{}, nil
}

func (m *mockSQSClient) SetQueueAttributes(ctx context.Context, params *sqs.SetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.SetQueueAttributesOutput, error) {
	if m.setQueueAttributesFunc != nil {
		return m.setQueueAttributesFunc(ctx, params, optFns...)
	}
	return &sqs.SetQueueAttributesOutput{}, nil
}

func (m *mockSQSClient) GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	if m.getQueueAttributesFunc != nil {
		return m.getQueueAttributesFunc(ctx, params, optFns...)
	}
	return &sqs.GetQueueAttributesOutput{}, nil
}

func (m *mockSQSClient) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if m.sendMessageFunc != nil {
		return m.sendMessageFunc(ctx, params, optFns...)
	}
	return &sqs.SendMessageOutput{}, nil
}

func (m *mockSQSClient) SendMessageBatch(ctx context.Context, params *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error) {
	if m.sendMessageBatchFunc != nil {
		return m.sendMessageBatchFunc(ctx, params, optFns...)
	}
	return &sqs.SendMessageBatchOutput{}, nil
}

func (m *mockSQSClient) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if m.receiveMessageFunc != nil {
		return m.receiveMessageFunc(ctx, params, optFns...)
	}
	return &sqs.ReceiveMessageOutput{}, nil
}

func (m *mockSQSClient) DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error) {
	if m.deleteMessageBatchFunc != nil {
		return m.deleteMessageBatchFunc(ctx, params, optFns...)
	}
	return &sqs.DeleteMessageBatchOutput{}, nil
}

func (m *mockSQSClient) ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	if m.changeMessageVisibilityFunc != nil {
		return m.changeMessageVisibilityFunc(ctx, params, optFns...)
	}
	return &sqs.ChangeMessageVisibilityOutput{}, nil
}

// mockLogger is a no-op logger for testing.
type mockLogger struct{}

//nolint:ireturn // Must return interface to implement types.Logger
func (m *mockLogger) WithField(_ string, _ any) types.Logger { return m }

//nolint:ireturn // Must return interface to implement types.Logger
func (m *mockLogger) WithFields(_ map[string]any) types.Logger { return m }
func (m *mockLogger) Debug(_ string)                           {}
func (m *mockLogger) Debugf(_ string, _ ...any)                {}
func (m *mockLogger) Info(_ string)                            {}
func (m *mockLogger) Infof(_ string, _ ...any)                 {}
func (m *mockLogger) Warn(_ string)                            {}
func (m *mockLogger) Warnf(_ string, _ ...any)                 {}
func (m *mockLogger) Error(_ string)                           {}
func (m *mockLogger) Errorf(_ string, _ ...any)                {}
func (m *mockLogger) Fatal(_ string)                           {}
func (m *mockLogger) Fatalf(_ string, _ ...any)                {}

//nolint:ireturn // Returns interface for convenience in tests
func newMockLogger() types.Logger {
	return &mockLogger{}
}

// newTestSession returns an initialized Session backed by client.
func newTestSession(t testing.TB, client API, opts ...Option) *Session {
	t.Helper()

	opts = append([]Option{WithSQSClient(client)}, opts...)

	s, err := New(&aws.Config{}, "diary", newMockLogger(), opts...).Init(context.Background())
	if err != nil {
		t.Fatalf("failed to init session: %v", err)
	}

	return s
}
