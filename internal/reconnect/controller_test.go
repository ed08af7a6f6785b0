package reconnect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/models"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/store"
)

func TestBackoffDelayBoundaries(t *testing.T) {
	base := 5 * time.Second
	max := 300 * time.Second
	cases := []struct {
		n    int
		want time.Duration
	}{
		{0, 5 * time.Second},
		{1, 10 * time.Second},
		{2, 20 * time.Second},
		{3, 40 * time.Second},
		{4, 80 * time.Second},
		{5, 160 * time.Second},
		{6, 300 * time.Second},
		{20, 300 * time.Second},
	}
	for _, c := range cases {
		got := backoffDelay(base, max, c.n)
		if got != c.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", c.n, got, c.want)
		}
	}
}

type fakeEnqueuer struct {
	calls int
	dup   bool
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.dup {
		return nil, asynq.ErrDuplicateTask
	}
	f.calls++
	return &asynq.TaskInfo{}, nil
}

type fakeCanceler struct {
	deleted []string
}

func (f *fakeCanceler) DeleteTask(queue, taskID string) error {
	f.deleted = append(f.deleted, taskID)
	return nil
}

type fakeSupervisor struct {
	err error
}

func (f *fakeSupervisor) Reconnect(ctx context.Context, sessionID string) error {
	return f.err
}

func newTestController(t *testing.T, st store.Store, enq Enqueuer) *Controller {
	t.Helper()
	return New(zap.NewNop(), st, &fakeSupervisor{}, enq, &fakeCanceler{})
}

func seedSession(t *testing.T, st *store.MemStore, orgID uuid.UUID, sessionID string) {
	t.Helper()
	if _, err := st.CreateSession(context.Background(), orgID, sessionID, ""); err != nil {
		t.Fatalf("create session: %v", err)
	}
}

func TestScheduleReconnectIncrementsAttemptsAndEnqueues(t *testing.T) {
	st := store.NewMemStore()
	orgID := uuid.New()
	seedSession(t, st, orgID, "s1")

	enq := &fakeEnqueuer{}
	c := newTestController(t, st, enq)

	c.ScheduleReconnect("s1", false)

	sess, err := st.GetSession(context.Background(), "s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.ReconnectAttempts != 1 {
		t.Fatalf("expected 1 attempt recorded, got %d", sess.ReconnectAttempts)
	}
	if sess.Status != models.SessionConnecting {
		t.Fatalf("expected connecting status, got %s", sess.Status)
	}
	if enq.calls != 1 {
		t.Fatalf("expected 1 enqueue call, got %d", enq.calls)
	}
}

func TestScheduleReconnectGivesUpAtMaxAttempts(t *testing.T) {
	st := store.NewMemStore()
	orgID := uuid.New()
	seedSession(t, st, orgID, "s1")
	for i := 0; i < DefaultMaxAttempts; i++ {
		if _, err := st.IncrementReconnectAttempts(context.Background(), "s1"); err != nil {
			t.Fatalf("seed attempts: %v", err)
		}
	}

	enq := &fakeEnqueuer{}
	c := newTestController(t, st, enq)
	c.ScheduleReconnect("s1", false)

	sess, err := st.GetSession(context.Background(), "s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Status != models.SessionError {
		t.Fatalf("expected error status after exhausting attempts, got %s", sess.Status)
	}
	if sess.ReconnectAttempts != 0 {
		t.Fatalf("expected attempts reset to 0 on give-up, got %d", sess.ReconnectAttempts)
	}
	if enq.calls != 0 {
		t.Fatalf("expected no enqueue once attempts exhausted, got %d", enq.calls)
	}
}

func TestScheduleReconnectDuplicateTimerIsNoop(t *testing.T) {
	st := store.NewMemStore()
	orgID := uuid.New()
	seedSession(t, st, orgID, "s1")

	enq := &fakeEnqueuer{dup: true}
	c := newTestController(t, st, enq)

	c.ScheduleReconnect("s1", false)

	sess, err := st.GetSession(context.Background(), "s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.ReconnectAttempts != 0 {
		t.Fatalf("expected a duplicate timer to leave attempts untouched, got %d", sess.ReconnectAttempts)
	}
}

func TestCancelPendingDeletesTask(t *testing.T) {
	st := store.NewMemStore()
	orgID := uuid.New()
	seedSession(t, st, orgID, "s1")

	canceler := &fakeCanceler{}
	c := New(zap.NewNop(), st, &fakeSupervisor{}, &fakeEnqueuer{}, canceler)
	c.CancelPending("s1")

	if len(canceler.deleted) != 1 || canceler.deleted[0] != "s1" {
		t.Fatalf("expected DeleteTask called with session id, got %v", canceler.deleted)
	}
}

func TestHandlerFuncReschedulesOnFailure(t *testing.T) {
	st := store.NewMemStore()
	orgID := uuid.New()
	seedSession(t, st, orgID, "s1")

	enq := &fakeEnqueuer{}
	c := New(zap.NewNop(), st, &fakeSupervisor{err: errors.New("connect failed")}, enq, &fakeCanceler{})

	task := asynq.NewTask(TaskType, []byte(`{"sessionId":"s1"}`))
	if err := c.HandlerFunc()(context.Background(), task); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	sess, err := st.GetSession(context.Background(), "s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.ReconnectAttempts != 1 {
		t.Fatalf("expected failed reconnect to reschedule and bump attempts, got %d", sess.ReconnectAttempts)
	}
	if enq.calls != 1 {
		t.Fatalf("expected reschedule to enqueue a new task, got %d", enq.calls)
	}
}

func TestHandlerFuncSucceedsWithoutRescheduling(t *testing.T) {
	st := store.NewMemStore()
	orgID := uuid.New()
	seedSession(t, st, orgID, "s1")

	enq := &fakeEnqueuer{}
	c := New(zap.NewNop(), st, &fakeSupervisor{}, enq, &fakeCanceler{})

	task := asynq.NewTask(TaskType, []byte(`{"sessionId":"s1"}`))
	if err := c.HandlerFunc()(context.Background(), task); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if enq.calls != 0 {
		t.Fatalf("expected no reschedule on success, got %d enqueue calls", enq.calls)
	}
}
