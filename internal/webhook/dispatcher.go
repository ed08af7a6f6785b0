// Package webhook implements the Webhook Dispatcher (spec §4.F): for
// every inbound message it POSTs a canonical envelope to the owning
// organization's webhook URL, retries on failure, and writes an
// append-only audit trail through the Persistence Store.
//
// Retries are scheduled the same way Reconnection Controller schedules its
// backoff timers: the attempt count travels in the asynq task payload and
// each retry is a fresh asynq.ProcessIn-delayed enqueue, rather than
// asynq's built-in MaxRetry/RetryDelayFunc. asynq only exposes the live
// retry count to a handler through context values the server populates
// internally, which makes that path impossible to exercise from a unit
// test without a running Redis and asynq server; the hand-rolled counter
// keeps the same 2s·2^n cadence and 3-retry cap (4 POSTs in all) while staying a plain,
// testable value.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/metrics"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/models"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/store"
)

const TaskType = "webhook:deliver"
const Queue = "webhook"

const (
	MaxRetries = 3
	BaseDelay  = 2 * time.Second
	Timeout    = 10 * time.Second
)

var tracer = otel.Tracer("internal/webhook")

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Poster performs the actual HTTP delivery. Implemented by RestyPoster in
// production, faked in tests.
type Poster interface {
	Post(ctx context.Context, url string, headers map[string]string, body []byte) (status int, respBody string, err error)
}

type payload struct {
	MessageID      uuid.UUID `json:"messageId"`
	OrgID          uuid.UUID `json:"orgId"`
	URL            string    `json:"url"`
	APIKey         string    `json:"apiKey,omitempty"`
	LocationID     string    `json:"locationId,omitempty"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	Message        string    `json:"message"`
	MessageType    string    `json:"messageType"`
	IsGroupMessage bool      `json:"isGroupMessage"`
	GroupJID       string    `json:"groupJid,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	RetryCount     int       `json:"retryCount"`
}

// Dispatcher implements supervisor.WebhookEnqueuer.
type Dispatcher struct {
	log      *zap.Logger
	store    store.Store
	enqueuer Enqueuer
	poster   Poster
	idem     Idempotency
}

func New(log *zap.Logger, st store.Store, enqueuer Enqueuer, poster Poster) *Dispatcher {
	return &Dispatcher{log: log, store: st, enqueuer: enqueuer, poster: poster}
}

// WithIdempotency enables the replay-protection check on attempt delivery.
// Optional: a Dispatcher with no Idempotency set never skips a send.
func (d *Dispatcher) WithIdempotency(idem Idempotency) *Dispatcher {
	d.idem = idem
	return d
}

func extractText(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	var v struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(content, &v); err != nil {
		return ""
	}
	return v.Text
}

// Enqueue builds the delivery payload for an inbound message and schedules
// its first attempt. Implements supervisor.WebhookEnqueuer.
func (d *Dispatcher) Enqueue(ctx context.Context, msg *models.Message, org *models.Organization) error {
	p := payload{
		MessageID:      msg.ID,
		OrgID:          org.ID,
		URL:            org.WebhookURL,
		APIKey:         org.WebhookAPIKey,
		LocationID:     org.WebhookLocationID,
		From:           msg.FromNumber,
		To:             msg.ToNumber,
		Message:        extractText(msg.Content),
		MessageType:    msg.MessageType,
		IsGroupMessage: msg.IsGroupMessage,
		GroupJID:       msg.GroupJID,
		Timestamp:      msg.Timestamp,
	}
	return d.enqueueAttempt(p, 0)
}

func (d *Dispatcher) enqueueAttempt(p payload, delay time.Duration) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}
	task := asynq.NewTask(TaskType, body)
	opts := []asynq.Option{asynq.Queue(Queue), asynq.MaxRetry(0)}
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}
	if _, err := d.enqueuer.Enqueue(task, opts...); err != nil {
		return fmt.Errorf("webhook: enqueue attempt for message %s: %w", p.MessageID, err)
	}
	return nil
}

// backoffDelay implements spec §4.F's 2s × 2^retry schedule.
func backoffDelay(retryCount int) time.Duration {
	d := BaseDelay
	for i := 0; i < retryCount; i++ {
		d *= 2
	}
	return d
}

// HandlerFunc is registered on the asynq mux for TaskType.
func (d *Dispatcher) HandlerFunc() asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p payload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("webhook: unmarshal payload: %w", err)
		}
		return d.attempt(ctx, p)
	}
}

func (d *Dispatcher) attempt(ctx context.Context, p payload) error {
	ctx, span := tracer.Start(ctx, "webhook.deliver", trace.WithAttributes(
		attribute.String("webhook.message_id", p.MessageID.String()),
		attribute.Int("webhook.retry_count", p.RetryCount),
	))
	defer span.End()

	if d.idem != nil {
		claimed, err := d.idem.Claim(ctx, idempotencyKey(p))
		if err != nil {
			d.log.Warn("webhook: idempotency claim failed, sending anyway", zap.String("message_id", p.MessageID.String()), zap.Error(err))
		} else if !claimed {
			d.log.Info("webhook: duplicate delivery attempt suppressed", zap.String("message_id", p.MessageID.String()), zap.Int("retry_count", p.RetryCount))
			span.SetStatus(codes.Ok, "duplicate suppressed")
			return nil
		}
	}

	start := time.Now()
	env := newEnvelope(p.From, p.To, p.Message, p.MessageID.String(), p.MessageType, p.IsGroupMessage, p.GroupJID, p.Timestamp)
	body, err := json.Marshal(env)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("webhook: marshal envelope: %w", err)
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if p.APIKey != "" {
		headers["Authorization"] = "Bearer " + p.APIKey
	}
	if p.LocationID != "" {
		headers["X-Location-Id"] = p.LocationID
	}

	status, respBody, postErr := d.poster.Post(ctx, p.URL, headers, body)
	elapsed := time.Since(start).Seconds()

	if postErr == nil && status >= 200 && status < 300 {
		metrics.WebhookDeliveriesTotal.WithLabelValues("success").Inc()
		metrics.WebhookDeliveryDuration.WithLabelValues("success").Observe(elapsed)
		span.SetStatus(codes.Ok, "")
		if err := d.store.MarkMessageSynced(ctx, p.MessageID, ""); err != nil {
			d.log.Warn("webhook: mark message synced failed", zap.String("message_id", p.MessageID.String()), zap.Error(err))
		}
		d.logAttempt(ctx, p, body, status, respBody, models.WebhookSuccess, "")
		return nil
	}

	errMsg := ""
	if postErr != nil {
		errMsg = postErr.Error()
	} else {
		errMsg = fmt.Sprintf("non-2xx response: %d", status)
	}
	span.RecordError(fmt.Errorf("%s", errMsg))

	if p.RetryCount >= MaxRetries {
		metrics.WebhookDeliveriesTotal.WithLabelValues("failed").Inc()
		metrics.WebhookDeliveryDuration.WithLabelValues("failed").Observe(elapsed)
		d.logAttempt(ctx, p, body, status, respBody, models.WebhookFailed, errMsg)
		if err := d.store.UpdateMessageStatus(ctx, p.MessageID, models.MessageFailed); err != nil {
			d.log.Warn("webhook: mark message failed failed", zap.String("message_id", p.MessageID.String()), zap.Error(err))
		}
		return nil
	}

	// backoffDelay is computed from the attempt just made (pre-increment)
	// so the first retry waits backoffDelay(0)=2s, not backoffDelay(1)=4s.
	delay := backoffDelay(p.RetryCount)
	metrics.WebhookDeliveryDuration.WithLabelValues("retrying").Observe(elapsed)
	metrics.WebhookRetriesTotal.WithLabelValues(strconv.Itoa(p.RetryCount + 1)).Inc()
	d.logAttempt(ctx, p, body, status, respBody, models.WebhookRetrying, errMsg)
	p.RetryCount++
	if err := d.enqueueAttempt(p, delay); err != nil {
		d.log.Error("webhook: schedule retry failed", zap.String("message_id", p.MessageID.String()), zap.Error(err))
		return err
	}
	return nil
}

func (d *Dispatcher) logAttempt(ctx context.Context, p payload, body []byte, status int, respBody string, webhookStatus models.WebhookStatus, errMsg string) {
	if err := d.store.LogWebhook(ctx, models.WebhookLogInput{
		OrgID:        p.OrgID,
		MessageID:    p.MessageID,
		URL:          p.URL,
		Payload:      body,
		HTTPStatus:   status,
		ResponseBody: respBody,
		RetryCount:   p.RetryCount,
		Status:       webhookStatus,
		ErrorMessage: errMsg,
		Timestamp:    time.Now().UTC(),
	}); err != nil {
		d.log.Error("webhook: audit log write failed", zap.String("message_id", p.MessageID.String()), zap.Error(err))
	}
}
