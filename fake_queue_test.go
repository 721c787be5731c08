//nolint:testpackage // Fake must be in sqsrepo package to satisfy API in internal tests
package sqsrepo

import (
	"context"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// fakeQueue is an in-memory standard queue implementing API.
//
// Received messages stay hidden until deleted, so a poll run sees each
// message once. Queue attributes report visible and hidden messages
// separately, the way SQS does.
type fakeQueue struct {
	mockSQSClient

	mu           sync.Mutex
	messages     []*fakeMessage
	nextID       int
	receiveSizes []int
	deleteCalls  int
	sendCalls    int

	// rejectSend, when set, makes SendMessageBatch fail the entry.
	rejectSend func(body string) bool

	// rejectDelete, when set, makes DeleteMessageBatch fail the entry with
	// the returned code. An empty code accepts the delete.
	rejectDelete func(receiptHandle string, call int) string
}

type fakeMessage struct {
	id            string
	body          string
	receiptHandle string
	hidden        bool
}

func newFakeQueue(bodies ...string) *fakeQueue {
	q := &fakeQueue{}

	for _, b := range bodies {
		q.push(b)
	}

	return q
}

func (q *fakeQueue) push(body string) string {
	q.nextID++
	id := "m-" + strconv.Itoa(q.nextID)
	q.messages = append(q.messages, &fakeMessage{id: id, body: body})

	return id
}

func (q *fakeQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.messages)
}

func (q *fakeQueue) bodies() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]string, 0, len(q.messages))
	for _, m := range q.messages {
		out = append(out, m.body)
	}

	return out
}

func (q *fakeQueue) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.sendCalls++
	id := q.push(aws.ToString(params.MessageBody))

	return &sqs.SendMessageOutput{MessageId: aws.String(id)}, nil
}

func (q *fakeQueue) SendMessageBatch(_ context.Context, params *sqs.SendMessageBatchInput, _ ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.sendCalls++
	out := &sqs.SendMessageBatchOutput{}

	for _, e := range params.Entries {
		body := aws.ToString(e.MessageBody)

		if q.rejectSend != nil && q.rejectSend(body) {
			out.Failed = append(out.Failed, sqstypes.BatchResultErrorEntry{
				Id:      e.Id,
				Code:    aws.String("InternalError"),
				Message: aws.String("rejected by fake"),
			})

			continue
		}

		id := q.push(body)
		out.Successful = append(out.Successful, sqstypes.SendMessageBatchResultEntry{
			Id:        e.Id,
			MessageId: aws.String(id),
		})
	}

	return out, nil
}

func (q *fakeQueue) ReceiveMessage(_ context.Context, params *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := &sqs.ReceiveMessageOutput{}
	limit := int(params.MaxNumberOfMessages)

	for _, m := range q.messages {
		if len(out.Messages) == limit {
			break
		}

		if m.hidden {
			continue
		}

		m.hidden = true
		m.receiptHandle = "rh-" + m.id

		out.Messages = append(out.Messages, sqstypes.Message{
			MessageId:     aws.String(m.id),
			ReceiptHandle: aws.String(m.receiptHandle),
			Body:          aws.String(m.body),
		})
	}

	q.receiveSizes = append(q.receiveSizes, len(out.Messages))

	return out, nil
}

func (q *fakeQueue) DeleteMessageBatch(_ context.Context, params *sqs.DeleteMessageBatchInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.deleteCalls++
	out := &sqs.DeleteMessageBatchOutput{}

	for _, e := range params.Entries {
		handle := aws.ToString(e.ReceiptHandle)

		if q.rejectDelete != nil {
			if code := q.rejectDelete(handle, q.deleteCalls); code != "" {
				out.Failed = append(out.Failed, sqstypes.BatchResultErrorEntry{
					Id:      e.Id,
					Code:    aws.String(code),
					Message: aws.String("rejected by fake"),
				})

				continue
			}
		}

		for i, m := range q.messages {
			if m.receiptHandle == handle {
				q.messages = append(q.messages[:i], q.messages[i+1:]...)
				break
			}
		}

		out.Successful = append(out.Successful, sqstypes.DeleteMessageBatchResultEntry{Id: e.Id})
	}

	return out, nil
}

func (q *fakeQueue) GetQueueAttributes(_ context.Context, _ *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	visible, hidden := 0, 0

	for _, m := range q.messages {
		if m.hidden {
			hidden++
		} else {
			visible++
		}
	}

	return &sqs.GetQueueAttributesOutput{
		Attributes: map[string]string{
			string(sqstypes.QueueAttributeNameApproximateNumberOfMessages):           strconv.Itoa(visible),
			string(sqstypes.QueueAttributeNameApproximateNumberOfMessagesNotVisible): strconv.Itoa(hidden),
			string(sqstypes.QueueAttributeNameApproximateNumberOfMessagesDelayed):    "0",
		},
	}, nil
}
