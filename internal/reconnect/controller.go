// Package reconnect implements the Reconnection Controller (spec §4.D): on
// a non-logout disconnect, it schedules retries with exponential backoff up
// to a fixed attempt cap and drives the Supervisor back to Connect.
//
// The "single pending timer per session, a new disconnect while one is
// pending is a no-op" debounce (spec §4.D Concurrency) is implemented with
// asynq's task-uniqueness lock rather than hand-rolled bookkeeping: each
// session's pending timer is an asynq task whose TaskID is the session id,
// so a second Enqueue call while the first is still pending returns
// asynq.ErrDuplicateTask, which the Controller treats as the no-op the
// spec requires. Grounded on Shadowru-message-ring/core-go/workers/
// dispatcher.go's asynq.HandlerFunc idiom (return error to retry, return
// nil once handled).
package reconnect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/metrics"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/models"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/store"
)

const TaskType = "reconnect:session"
const Queue = "reconnect"

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 5 * time.Second
	DefaultMaxDelay    = 300 * time.Second
	RateLimitDelay     = 15 * time.Minute
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Canceler is satisfied by *asynq.Inspector.
type Canceler interface {
	DeleteTask(queue, taskID string) error
}

// Supervisor is the narrow surface the Controller drives.
type Supervisor interface {
	Reconnect(ctx context.Context, sessionID string) error
}

type payload struct {
	SessionID string `json:"sessionId"`
}

// Controller implements supervisor.Reconnector.
type Controller struct {
	log         *zap.Logger
	store       store.Store
	sup         Supervisor
	enqueuer    Enqueuer
	canceler    Canceler
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

func New(log *zap.Logger, st store.Store, sup Supervisor, enqueuer Enqueuer, canceler Canceler) *Controller {
	return &Controller{
		log:         log,
		store:       st,
		sup:         sup,
		enqueuer:    enqueuer,
		canceler:    canceler,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		maxDelay:    DefaultMaxDelay,
	}
}

// backoffDelay computes delay = min(baseDelay * 2^n, maxDelay) (spec §4.D
// step 2, tested against the boundaries in spec §8: with baseDelay=5s,
// maxDelay=300s, attempts=0..5 → 5,10,20,40,80,160 capped at 300).
func backoffDelay(baseDelay, maxDelay time.Duration, n int) time.Duration {
	d := baseDelay
	for i := 0; i < n; i++ {
		d *= 2
		if d >= maxDelay {
			return maxDelay
		}
	}
	return d
}

// ScheduleReconnect implements supervisor.Reconnector. Called synchronously
// from the Supervisor's disconnect handler.
func (c *Controller) ScheduleReconnect(sessionID string, rateLimited bool) {
	ctx := context.Background()
	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		c.log.Error("reconnect: load session failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	if sess.ReconnectAttempts >= c.maxAttempts {
		c.giveUp(ctx, sessionID)
		return
	}

	delay := backoffDelay(c.baseDelay, c.maxDelay, sess.ReconnectAttempts)
	reason := "backoff"
	if rateLimited {
		delay = RateLimitDelay
		reason = "rate_limited"
	}

	body, _ := json.Marshal(payload{SessionID: sessionID})
	task := asynq.NewTask(TaskType, body)
	_, err = c.enqueuer.Enqueue(task,
		asynq.TaskID(sessionID),
		asynq.Queue(Queue),
		asynq.ProcessIn(delay),
		asynq.Unique(delay+time.Minute),
		asynq.MaxRetry(0), // our own backoff drives retries, not asynq's
	)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			// A timer is already pending for this session; leave the
			// attempt count and status as they are.
			return
		}
		c.log.Error("reconnect: enqueue failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	if _, err := c.store.IncrementReconnectAttempts(ctx, sessionID); err != nil {
		c.log.Error("reconnect: increment attempts failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	if err := c.store.UpdateSessionStatus(ctx, sessionID, models.SessionConnecting, "", ""); err != nil {
		c.log.Error("reconnect: set connecting failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	metrics.SessionReconnectAttemptsTotal.WithLabelValues(reason).Inc()
}

func (c *Controller) giveUp(ctx context.Context, sessionID string) {
	if err := c.store.UpdateSessionStatus(ctx, sessionID, models.SessionError, "", "Max reconnection attempts exceeded"); err != nil {
		c.log.Error("reconnect: set error status failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	if err := c.store.ResetReconnectAttempts(ctx, sessionID); err != nil {
		c.log.Error("reconnect: reset attempts failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	metrics.SessionReconnectExhaustedTotal.Inc()
}

// CancelPending implements supervisor.Reconnector — called on Destroy so a
// scheduled reconnect doesn't fire against a torn-down session.
func (c *Controller) CancelPending(sessionID string) {
	if c.canceler == nil {
		return
	}
	if err := c.canceler.DeleteTask(Queue, sessionID); err != nil {
		c.log.Debug("reconnect: cancel pending task", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// HandlerFunc is registered on the asynq mux for TaskType. On fire it asks
// the Supervisor to reconnect; on failure it recurses into the same
// backoff decision the initial schedule made (spec §4.D step 3).
func (c *Controller) HandlerFunc() asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p payload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("reconnect: unmarshal payload: %w", err)
		}
		if err := c.sup.Reconnect(ctx, p.SessionID); err != nil {
			c.log.Warn("reconnect: attempt failed", zap.String("session_id", p.SessionID), zap.Error(err))
			c.ScheduleReconnect(p.SessionID, false)
			return nil
		}
		return nil
	}
}
