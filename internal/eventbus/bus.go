// Package eventbus implements the publish-only Event Bus (spec §4.G): the
// Supervisor's fan-out point for session status, QR, and inbound messages.
// Delivery is best-effort and must never block core progress on a slow
// subscriber (spec §5), so every publish is a non-blocking channel send
// plus a best-effort async Kafka publish for out-of-process observers.
package eventbus

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/metrics"
)

// Topic names the four per-session event streams spec §4.G defines.
type Topic string

const (
	TopicQR               Topic = "qr"
	TopicConnectionStatus Topic = "connectionStatus"
	TopicMessage          Topic = "message"
	TopicGroupUpdate      Topic = "groupUpdate"
)

// Event is one envelope published to a session's subscribers.
type Event struct {
	SessionID string          `json:"sessionId"`
	Topic     Topic           `json:"topic"`
	Payload   interface{}     `json:"payload"`
	At        time.Time       `json:"at"`
}

// Subscriber receives events for the sessions it has joined. A WebSocket
// edge (out of scope here per spec §1) would implement this per
// connected client.
type Subscriber chan Event

// Bus fans out events to in-process subscribers and, best-effort, to a
// Kafka topic for external observability. It is the full contract an
// out-of-process WebSocket edge would consume.
type Bus struct {
	log    *zap.Logger
	writer *kafka.Writer
	topic  string

	mu   sync.RWMutex
	subs map[string]map[Subscriber]struct{} // sessionID -> set of subscribers
}

// New constructs a Bus. writer may be nil, in which case Kafka publishing
// is skipped entirely (e.g. local dev without a broker).
func New(log *zap.Logger, writer *kafka.Writer, topic string) *Bus {
	return &Bus{
		log:    log,
		writer: writer,
		topic:  topic,
		subs:   make(map[string]map[Subscriber]struct{}),
	}
}

// Subscribe joins sessionID's room. Callers must Unsubscribe when done.
func (b *Bus) Subscribe(sessionID string) Subscriber {
	ch := make(Subscriber, 16)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[Subscriber]struct{})
	}
	b.subs[sessionID][ch] = struct{}{}
	return ch
}

// Unsubscribe leaves sessionID's room and closes the channel.
func (b *Bus) Unsubscribe(sessionID string, ch Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[sessionID]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(b.subs, sessionID)
		}
	}
	close(ch)
}

// Publish fans an event out to every subscriber of sessionID. In-process
// sends are non-blocking: a full subscriber channel drops the event
// rather than stalling the publisher. The Kafka publish runs in its own
// goroutine and its failure is logged, never returned to the caller.
func (b *Bus) Publish(sessionID string, topic Topic, payload interface{}) {
	evt := Event{SessionID: sessionID, Topic: topic, Payload: payload, At: time.Now().UTC()}

	b.mu.RLock()
	subs := b.subs[sessionID]
	targets := make([]Subscriber, 0, len(subs))
	for ch := range subs {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- evt:
		default:
			b.log.Warn("eventbus: dropped event, subscriber channel full",
				zap.String("session_id", sessionID), zap.String("topic", string(topic)))
		}
	}

	if b.writer != nil {
		go b.publishKafka(evt)
	}
}

func (b *Bus) publishKafka(evt Event) {
	value, err := json.Marshal(evt)
	if err != nil {
		b.log.Error("eventbus: marshal event for kafka", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = b.writer.WriteMessages(ctx, kafka.Message{
		Topic: b.topic,
		Key:   []byte(evt.SessionID),
		Value: value,
	})
	if err != nil {
		metrics.KafkaPublishFailureTotal.WithLabelValues(b.topic).Inc()
		b.log.Warn("eventbus: best-effort kafka publish failed",
			zap.String("session_id", evt.SessionID), zap.Error(err))
	}
}

// Close releases the Kafka writer, if any.
func (b *Bus) Close() error {
	if b.writer == nil {
		return nil
	}
	return b.writer.Close()
}
