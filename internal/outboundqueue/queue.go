// Package outboundqueue implements the per-session outbound FIFO (spec
// §4.E). Each session gets its own asynq queue ("outbound:" + sessionID)
// so that asynq's per-queue worker concurrency of 1 gives single-flight
// ordering for free; a token-bucket rate limiter then gates sends within
// that single worker.
package outboundqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/metrics"
)

const TaskType = "outbound:send"

const (
	MaxAttempts          = 3
	MessagesPerMinute    = 20
	DelayBetweenMessages = 3 * time.Second
	RetryDelay           = 5 * time.Second
	BucketExhaustedDelay = 60 * time.Second
)

// Sender is the narrow surface the queue drives — satisfied by
// *supervisor.Supervisor.
type Sender interface {
	Send(ctx context.Context, sessionID, jid, message string) (string, error)
}

// LimitGuard is implemented by internal/limitguard.Guard. BulkEnqueue
// checks it before admitting a batch (spec §4.H/I: "before a send batch,
// compare current-month message total against maxMessagesPerMonth").
type LimitGuard interface {
	CheckMessageLimit(ctx context.Context, orgID uuid.UUID) error
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Item is one outbound send request, spec §4.E.
type Item struct {
	QueueID     string    `json:"queueId"`
	SessionID   string    `json:"sessionId"`
	JID         string    `json:"jid"`
	Content     string    `json:"content"`
	MessageType string    `json:"type"`
	EnqueuedAt  time.Time `json:"enqueuedAt"`
	Attempts    int       `json:"attempts"`
}

func queueName(sessionID string) string {
	return "outbound:" + sessionID
}

// Queue owns the per-session token buckets and the asynq client used to
// enqueue outbound items.
type Queue struct {
	log      *zap.Logger
	enqueuer Enqueuer
	sender   Sender
	guard    LimitGuard

	buckets map[string]*rate.Limiter

	// delayBetweenMessages/retryDelay/bucketExhaustedDelay default to the
	// package constants; tests override them to avoid real sleeps.
	delayBetweenMessages time.Duration
	retryDelay           time.Duration
	bucketExhaustedDelay time.Duration
}

func New(log *zap.Logger, enqueuer Enqueuer, sender Sender, guard LimitGuard) *Queue {
	return &Queue{
		log:                  log,
		enqueuer:             enqueuer,
		sender:               sender,
		guard:                guard,
		buckets:              make(map[string]*rate.Limiter),
		delayBetweenMessages: DelayBetweenMessages,
		retryDelay:           RetryDelay,
		bucketExhaustedDelay: BucketExhaustedDelay,
	}
}

func (q *Queue) limiterFor(sessionID string) *rate.Limiter {
	if l, ok := q.buckets[sessionID]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(float64(MessagesPerMinute)/60.0), MessagesPerMinute)
	q.buckets[sessionID] = l
	return l
}

// Enqueue appends one item to the session's FIFO. Returns the assigned
// queueId.
func (q *Queue) Enqueue(sessionID, jid, content, messageType string) (string, error) {
	return q.enqueueItem(Item{
		QueueID:     uuid.NewString(),
		SessionID:   sessionID,
		JID:         jid,
		Content:     content,
		MessageType: messageType,
		EnqueuedAt:  time.Now().UTC(),
	})
}

// BulkEnqueue enqueues N items with no transactional guarantee across the
// batch (spec §4.E "Bulk send"); returns the assigned queue ids in order.
func (q *Queue) BulkEnqueue(ctx context.Context, orgID uuid.UUID, sessionID string, sends []struct{ JID, Content, MessageType string }) ([]string, error) {
	if q.guard != nil {
		if err := q.guard.CheckMessageLimit(ctx, orgID); err != nil {
			return nil, err
		}
	}
	ids := make([]string, 0, len(sends))
	for _, s := range sends {
		id, err := q.Enqueue(sessionID, s.JID, s.Content, s.MessageType)
		if err != nil {
			return ids, fmt.Errorf("outboundqueue: bulk enqueue stopped after %d/%d items: %w", len(ids), len(sends), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (q *Queue) enqueueItem(item Item) (string, error) {
	body, err := json.Marshal(item)
	if err != nil {
		return "", fmt.Errorf("outboundqueue: marshal item: %w", err)
	}
	task := asynq.NewTask(TaskType, body)
	if _, err := q.enqueuer.Enqueue(task, asynq.Queue(queueName(item.SessionID)), asynq.TaskID(item.QueueID)); err != nil {
		return "", fmt.Errorf("outboundqueue: enqueue item %s: %w", item.QueueID, err)
	}
	metrics.OutboundQueueDepth.WithLabelValues(item.SessionID).Inc()
	return item.QueueID, nil
}

// ImmediateSend bypasses the queue and rate limiter entirely — emergency
// use only, per spec §4.E.
func (q *Queue) ImmediateSend(ctx context.Context, sessionID, jid, message string) (string, error) {
	return q.sender.Send(ctx, sessionID, jid, message)
}

// HandlerFunc implements the per-item worker loop (spec §4.E steps 2-4).
// asynq's own queue-concurrency=1 setting for each "outbound:<session>"
// queue supplies the single-flight ordering; this handler only needs to
// gate on the token bucket and apply the attempt/backoff policy for a
// single item.
func (q *Queue) HandlerFunc() asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var item Item
		if err := json.Unmarshal(t.Payload(), &item); err != nil {
			return fmt.Errorf("outboundqueue: unmarshal item: %w", err)
		}
		metrics.OutboundQueueDepth.WithLabelValues(item.SessionID).Dec()

		limiter := q.limiterFor(item.SessionID)
		if !limiter.Allow() {
			metrics.OutboundRateLimitWaitsTotal.Inc()
			time.Sleep(q.bucketExhaustedDelay)
		}

		_, err := q.sender.Send(ctx, item.SessionID, item.JID, item.Content)
		if err == nil {
			metrics.OutboundSendsTotal.WithLabelValues("success").Inc()
			time.Sleep(q.delayBetweenMessages)
			return nil
		}

		item.Attempts++
		if item.Attempts >= MaxAttempts {
			metrics.OutboundSendsTotal.WithLabelValues("failed").Inc()
			q.log.Warn("outboundqueue: item exhausted retries",
				zap.String("session_id", item.SessionID), zap.String("queue_id", item.QueueID), zap.Error(err))
			return nil
		}

		metrics.OutboundSendsTotal.WithLabelValues("retrying").Inc()
		if _, reErr := q.enqueueItem(item); reErr != nil {
			q.log.Error("outboundqueue: re-append after failed attempt", zap.Error(reErr))
			return reErr
		}
		time.Sleep(q.retryDelay)
		return nil
	}
}
