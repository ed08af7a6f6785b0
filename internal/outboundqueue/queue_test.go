package outboundqueue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// newTestQueue builds a Queue with its sleep delays zeroed so handler
// tests exercise the retry/backoff logic without real wall-clock waits.
func newTestQueue(enq Enqueuer, sender Sender) *Queue {
	q := New(zap.NewNop(), enq, sender, nil)
	q.delayBetweenMessages = 0
	q.retryDelay = 0
	q.bucketExhaustedDelay = 0
	return q
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

type fakeSender struct {
	calls int
	errs  []error
}

func (f *fakeSender) Send(ctx context.Context, sessionID, jid, message string) (string, error) {
	var err error
	if f.calls < len(f.errs) {
		err = f.errs[f.calls]
	}
	f.calls++
	if err != nil {
		return "", err
	}
	return "wamid-test", nil
}

func TestEnqueueAssignsQueueID(t *testing.T) {
	enq := &fakeEnqueuer{}
	q := New(zap.NewNop(), enq, &fakeSender{}, nil)

	id, err := q.Enqueue("s1", "15551234567", "hi", "text")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty queue id")
	}
	if len(enq.tasks) != 1 {
		t.Fatalf("expected 1 task enqueued, got %d", len(enq.tasks))
	}

	var item Item
	if err := json.Unmarshal(enq.tasks[0].Payload(), &item); err != nil {
		t.Fatalf("unmarshal item: %v", err)
	}
	if item.SessionID != "s1" || item.JID != "15551234567" || item.Content != "hi" {
		t.Fatalf("unexpected item: %+v", item)
	}
}

func TestBulkEnqueueReturnsAllIDs(t *testing.T) {
	enq := &fakeEnqueuer{}
	q := New(zap.NewNop(), enq, &fakeSender{}, nil)

	ids, err := q.BulkEnqueue(context.Background(), uuid.New(), "s1", []struct{ JID, Content, MessageType string }{
		{"15551111111", "a", "text"},
		{"15552222222", "b", "text"},
		{"15553333333", "c", "text"},
	})
	if err != nil {
		t.Fatalf("bulk enqueue: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(ids))
	}
	if len(enq.tasks) != 3 {
		t.Fatalf("expected 3 tasks enqueued, got %d", len(enq.tasks))
	}
}

type rejectingGuard struct{ err error }

func (g rejectingGuard) CheckMessageLimit(ctx context.Context, orgID uuid.UUID) error { return g.err }

func TestBulkEnqueueRejectedByLimitGuard(t *testing.T) {
	enq := &fakeEnqueuer{}
	guardErr := errors.New("message limit exceeded")
	q := New(zap.NewNop(), enq, &fakeSender{}, rejectingGuard{err: guardErr})

	_, err := q.BulkEnqueue(context.Background(), uuid.New(), "s1", []struct{ JID, Content, MessageType string }{
		{"15551111111", "a", "text"},
	})
	if err != guardErr {
		t.Fatalf("expected guard error, got %v", err)
	}
	if len(enq.tasks) != 0 {
		t.Fatalf("expected no tasks enqueued when guard rejects, got %d", len(enq.tasks))
	}
}

func TestHandlerFuncSucceedsOnFirstAttempt(t *testing.T) {
	enq := &fakeEnqueuer{}
	sender := &fakeSender{}
	q := newTestQueue(enq, sender)

	item := Item{QueueID: "q1", SessionID: "s1", JID: "15551234567", Content: "hi"}
	body, _ := json.Marshal(item)
	task := asynq.NewTask(TaskType, body)

	if err := q.HandlerFunc()(context.Background(), task); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if sender.calls != 1 {
		t.Fatalf("expected 1 send call, got %d", sender.calls)
	}
	if len(enq.tasks) != 0 {
		t.Fatalf("expected no re-enqueue on success, got %d", len(enq.tasks))
	}
}

func TestHandlerFuncReappendsOnFailureBelowAttemptCap(t *testing.T) {
	enq := &fakeEnqueuer{}
	sender := &fakeSender{errs: []error{errors.New("send failed")}}
	q := newTestQueue(enq, sender)

	item := Item{QueueID: "q1", SessionID: "s1", JID: "15551234567", Content: "hi", Attempts: 0}
	body, _ := json.Marshal(item)
	task := asynq.NewTask(TaskType, body)

	if err := q.HandlerFunc()(context.Background(), task); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(enq.tasks) != 1 {
		t.Fatalf("expected re-enqueue after failed attempt below cap, got %d", len(enq.tasks))
	}

	var reenqueued Item
	if err := json.Unmarshal(enq.tasks[0].Payload(), &reenqueued); err != nil {
		t.Fatalf("unmarshal reenqueued item: %v", err)
	}
	if reenqueued.Attempts != 1 {
		t.Fatalf("expected attempts incremented to 1, got %d", reenqueued.Attempts)
	}
}

func TestHandlerFuncDropsAfterMaxAttempts(t *testing.T) {
	enq := &fakeEnqueuer{}
	sender := &fakeSender{errs: []error{errors.New("send failed")}}
	q := newTestQueue(enq, sender)

	item := Item{QueueID: "q1", SessionID: "s1", JID: "15551234567", Content: "hi", Attempts: MaxAttempts - 1}
	body, _ := json.Marshal(item)
	task := asynq.NewTask(TaskType, body)

	if err := q.HandlerFunc()(context.Background(), task); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(enq.tasks) != 0 {
		t.Fatalf("expected no re-enqueue once attempt cap reached, got %d", len(enq.tasks))
	}
}

func TestImmediateSendBypassesQueue(t *testing.T) {
	enq := &fakeEnqueuer{}
	sender := &fakeSender{}
	q := New(zap.NewNop(), enq, sender, nil)

	id, err := q.ImmediateSend(context.Background(), "s1", "15551234567", "urgent")
	if err != nil {
		t.Fatalf("immediate send: %v", err)
	}
	if id != "wamid-test" {
		t.Fatalf("unexpected message id: %s", id)
	}
	if len(enq.tasks) != 0 {
		t.Fatalf("expected immediate send to bypass the queue, got %d tasks", len(enq.tasks))
	}
}
