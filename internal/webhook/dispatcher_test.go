package webhook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/models"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/store"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{}, nil
}

// processInDelay extracts the asynq.ProcessIn duration from an Enqueue
// call's options, or 0 if none was supplied (the initial attempt).
func processInDelay(opts []asynq.Option) time.Duration {
	for _, opt := range opts {
		if opt.Type() == asynq.ProcessInOpt {
			if d, ok := opt.Value().(time.Duration); ok {
				return d
			}
		}
	}
	return 0
}

type fakePoster struct {
	responses []struct {
		status int
		err    error
	}
	calls int
}

func (f *fakePoster) Post(ctx context.Context, url string, headers map[string]string, body []byte) (int, string, error) {
	r := f.responses[f.calls]
	f.calls++
	return r.status, "", r.err
}

func seedMessage(t *testing.T, st *store.MemStore, orgID uuid.UUID) *models.Message {
	t.Helper()
	msg, err := st.SaveMessage(context.Background(), models.MessageInput{
		SessionID:   "s1",
		ExternalID:  "wamid-1",
		OrgID:       orgID,
		Direction:   models.DirectionInbound,
		FromNumber:  "15559876543@s.whatsapp.net",
		ToNumber:    "15551234567@s.whatsapp.net",
		MessageType: "text",
		Content:     []byte(`{"text":"hello"}`),
		Status:      models.MessageDelivered,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed message: %v", err)
	}
	return msg
}

func TestEnqueueSchedulesFirstAttempt(t *testing.T) {
	st := store.NewMemStore()
	orgID := uuid.New()
	org := &models.Organization{ID: orgID, WebhookURL: "https://hook.test/in"}
	msg := seedMessage(t, st, orgID)

	enq := &fakeEnqueuer{}
	d := New(zap.NewNop(), st, enq, &fakePoster{})

	if err := d.Enqueue(context.Background(), msg, org); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if len(enq.tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(enq.tasks))
	}
}

func TestAttemptSucceedsOn2xx(t *testing.T) {
	st := store.NewMemStore()
	orgID := uuid.New()
	org := &models.Organization{ID: orgID, WebhookURL: "https://hook.test/in"}
	msg := seedMessage(t, st, orgID)

	enq := &fakeEnqueuer{}
	poster := &fakePoster{responses: []struct {
		status int
		err    error
	}{{status: 200}}}
	d := New(zap.NewNop(), st, enq, poster)

	if err := d.Enqueue(context.Background(), msg, org); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	runNextTask(t, d, enq)

	reloaded, err := st.ListPendingCRMSync(context.Background(), orgID, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	for _, m := range reloaded {
		if m.ID == msg.ID {
			t.Fatalf("expected message synced after success, still pending: %+v", m)
		}
	}
	if len(enq.tasks) != 0 {
		t.Fatalf("expected no retry scheduled after success, got %d", len(enq.tasks))
	}
}

func TestAttemptRetriesOnFailureBelowCap(t *testing.T) {
	st := store.NewMemStore()
	orgID := uuid.New()
	org := &models.Organization{ID: orgID, WebhookURL: "https://hook.test/in"}
	msg := seedMessage(t, st, orgID)

	enq := &fakeEnqueuer{}
	poster := &fakePoster{responses: []struct {
		status int
		err    error
	}{{status: 500}}}
	d := New(zap.NewNop(), st, enq, poster)

	if err := d.Enqueue(context.Background(), msg, org); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	runNextTask(t, d, enq)

	if len(enq.tasks) != 1 {
		t.Fatalf("expected a retry task scheduled, got %d", len(enq.tasks))
	}
	var p payload
	if err := json.Unmarshal(enq.tasks[0].Payload(), &p); err != nil {
		t.Fatalf("unmarshal retry payload: %v", err)
	}
	if p.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", p.RetryCount)
	}
}

// TestFullRetrySequenceIsFourPostsAtTwoFourEightSeconds drives the whole
// failure path end to end (spec §8 scenario 4: "4 POSTs total — initial +
// 3 retries — at ~2s, 4s, 8s spacing") rather than asserting give-up from
// a hand-seeded RetryCount, so it actually catches the off-by-one between
// enqueueAttempt's delay and the give-up boundary instead of re-encoding
// whichever one attempt() happens to produce.
func TestFullRetrySequenceIsFourPostsAtTwoFourEightSeconds(t *testing.T) {
	st := store.NewMemStore()
	orgID := uuid.New()
	org := &models.Organization{ID: orgID, WebhookURL: "https://hook.test/in"}
	msg := seedMessage(t, st, orgID)

	enq := &fakeEnqueuer{}
	poster := &fakePoster{responses: []struct {
		status int
		err    error
	}{{status: 500}, {status: 500}, {status: 500}, {status: 500}}}
	d := New(zap.NewNop(), st, enq, poster)

	if err := d.Enqueue(context.Background(), msg, org); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// Attempts 1-3 (initial POST plus the first two retries) each fail and
	// schedule the next retry at the expected backoff delay.
	wantDelays := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, want := range wantDelays {
		if len(enq.tasks) != 1 {
			t.Fatalf("before attempt %d: expected exactly 1 pending task, got %d", i+1, len(enq.tasks))
		}
		task := enq.tasks[0]
		enq.tasks, enq.opts = nil, nil
		if err := d.HandlerFunc()(context.Background(), task); err != nil {
			t.Fatalf("handler (attempt %d): %v", i+1, err)
		}
		if len(enq.tasks) != 1 {
			t.Fatalf("attempt %d: expected a retry scheduled, got %d", i+1, len(enq.tasks))
		}
		if got := processInDelay(enq.opts[0]); got != want {
			t.Fatalf("retry after attempt %d: expected delay %v, got %v", i+1, want, got)
		}
	}

	// The 4th attempt (3rd retry, RetryCount=3) also fails and should give
	// up rather than schedule a 5th attempt.
	task := enq.tasks[0]
	enq.tasks, enq.opts = nil, nil
	if err := d.HandlerFunc()(context.Background(), task); err != nil {
		t.Fatalf("handler (4th attempt): %v", err)
	}
	if len(enq.tasks) != 0 {
		t.Fatalf("expected give-up after the 4th POST (initial + %d retries), got %d more tasks scheduled", MaxRetries, len(enq.tasks))
	}
	if poster.calls != 4 {
		t.Fatalf("expected exactly 4 POSTs total (initial + %d retries), got %d", MaxRetries, poster.calls)
	}

	reloaded, err := st.ListPendingCRMSync(context.Background(), orgID, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	for _, m := range reloaded {
		if m.ID == msg.ID {
			t.Fatalf("expected exhausted message removed from pending-sync candidates: %+v", m)
		}
	}
}

type fakeIdempotency struct {
	claimed map[string]bool
}

func (f *fakeIdempotency) Claim(ctx context.Context, key string) (bool, error) {
	if f.claimed == nil {
		f.claimed = make(map[string]bool)
	}
	if f.claimed[key] {
		return false, nil
	}
	f.claimed[key] = true
	return true, nil
}

func TestAttemptSuppressesDuplicateDeliveryForSameRetryCount(t *testing.T) {
	st := store.NewMemStore()
	orgID := uuid.New()
	org := &models.Organization{ID: orgID, WebhookURL: "https://hook.test/in"}
	msg := seedMessage(t, st, orgID)

	enq := &fakeEnqueuer{}
	poster := &fakePoster{responses: []struct {
		status int
		err    error
	}{{status: 200}, {status: 200}}}
	d := New(zap.NewNop(), st, enq, poster).WithIdempotency(&fakeIdempotency{})

	p := payload{
		MessageID: msg.ID,
		OrgID:     orgID,
		URL:       org.WebhookURL,
		From:      msg.FromNumber,
		To:        msg.ToNumber,
		Message:   "hello",
		Timestamp: msg.Timestamp,
	}
	if err := d.attempt(context.Background(), p); err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	if poster.calls != 1 {
		t.Fatalf("expected first attempt to POST, got %d calls", poster.calls)
	}

	if err := d.attempt(context.Background(), p); err != nil {
		t.Fatalf("redelivered attempt: %v", err)
	}
	if poster.calls != 1 {
		t.Fatalf("expected redelivered attempt to be suppressed, got %d calls", poster.calls)
	}
}

func TestBackoffDelaySchedule(t *testing.T) {
	cases := []struct {
		retryCount int
		want       time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 8 * time.Second},
	}
	for _, c := range cases {
		if got := backoffDelay(c.retryCount); got != c.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", c.retryCount, got, c.want)
		}
	}
}

// runNextTask decodes and runs the single task the dispatcher's Enqueue
// call produced, draining it from the fake queue.
func runNextTask(t *testing.T, d *Dispatcher, enq *fakeEnqueuer) {
	t.Helper()
	if len(enq.tasks) != 1 {
		t.Fatalf("expected exactly 1 pending task, got %d", len(enq.tasks))
	}
	task := enq.tasks[0]
	enq.tasks = nil
	if err := d.HandlerFunc()(context.Background(), task); err != nil {
		t.Fatalf("handler: %v", err)
	}
}
