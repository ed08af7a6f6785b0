package eventbus

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New(zap.NewNop(), nil, "")
	sub := b.Subscribe("s1")
	defer b.Unsubscribe("s1", sub)

	b.Publish("s1", TopicConnectionStatus, map[string]string{"status": "connected"})

	select {
	case evt := <-sub:
		if evt.Topic != TopicConnectionStatus || evt.SessionID != "s1" {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishDropsOnFullChannelWithoutBlocking(t *testing.T) {
	b := New(zap.NewNop(), nil, "")
	sub := b.Subscribe("s1")
	defer b.Unsubscribe("s1", sub)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish("s1", TopicMessage, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked despite full subscriber channel")
	}
}

func TestPublishToUnsubscribedSessionIsNoop(t *testing.T) {
	b := New(zap.NewNop(), nil, "")
	b.Publish("no-subscribers", TopicQR, "code")
}
