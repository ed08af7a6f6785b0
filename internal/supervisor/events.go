package supervisor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/authstate"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/eventbus"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/models"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/waclient"
)

// sessionEventHandler adapts waclient.EventHandler to one session's
// Supervisor state. Events for a single session are always dispatched
// from the client's own single-threaded event goroutine (spec §5), so no
// additional locking is needed here.
type sessionEventHandler struct {
	sup       *Supervisor
	sessionID string
	orgID     uuid.UUID
	callbacks Callbacks
}

func (h *sessionEventHandler) OnQR(code string) {
	ctx := context.Background()
	if err := h.sup.store.SaveQRCode(ctx, h.sessionID, code); err != nil {
		h.sup.log.Error("supervisor: save qr code failed", zap.String("session_id", h.sessionID), zap.Error(err))
	}
	h.callbacks.OnQR(code)
	h.sup.bus.Publish(h.sessionID, eventbus.TopicQR, map[string]string{"qr": code})
}

// OnCredentialsUpdated snapshots the on-disk device store and persists it.
// Fired and forgotten in a goroutine per spec §4.C ("must not block
// further events").
func (h *sessionEventHandler) OnCredentialsUpdated(_ []byte) {
	go func() {
		ctx := context.Background()
		blob, err := authstate.Snapshot(h.sup.storageDir, h.sessionID)
		if err != nil {
			h.sup.log.Error("supervisor: snapshot auth state failed",
				zap.String("session_id", h.sessionID), zap.Error(err))
			return
		}
		if blob == nil {
			return
		}
		if err := h.sup.store.SaveAuthState(ctx, h.sessionID, blob); err != nil {
			h.sup.log.Error("supervisor: save auth state failed",
				zap.String("session_id", h.sessionID), zap.Error(err))
		}
	}()
}

func (h *sessionEventHandler) OnConnected(phoneNumber string) {
	ctx := context.Background()
	if err := h.sup.store.UpdateSessionStatus(ctx, h.sessionID, models.SessionConnected, phoneNumber, ""); err != nil {
		h.sup.log.Error("supervisor: update status connected failed", zap.String("session_id", h.sessionID), zap.Error(err))
	}
	if err := h.sup.store.ResetReconnectAttempts(ctx, h.sessionID); err != nil {
		h.sup.log.Error("supervisor: reset reconnect attempts failed", zap.String("session_id", h.sessionID), zap.Error(err))
	}
	h.sup.registry.UpdateStatus(h.sessionID, models.SessionConnected, phoneNumber)
	h.callbacks.OnConnected(ConnectInfo{SessionID: h.sessionID, PhoneNumber: phoneNumber})
	h.sup.bus.Publish(h.sessionID, eventbus.TopicConnectionStatus, map[string]string{
		"status": string(models.SessionConnected), "phoneNumber": phoneNumber,
	})
}

func (h *sessionEventHandler) OnDisconnected(reason waclient.DisconnectReason) {
	ctx := context.Background()

	if reason == waclient.DisconnectLoggedOut {
		if err := h.sup.store.UpdateSessionStatus(ctx, h.sessionID, models.SessionDisconnected, "", "logged out"); err != nil {
			h.sup.log.Error("supervisor: update status on logout failed", zap.String("session_id", h.sessionID), zap.Error(err))
		}
		h.sup.registry.Deregister(h.sessionID)
		h.callbacks.OnDisconnect()
		h.sup.bus.Publish(h.sessionID, eventbus.TopicConnectionStatus, map[string]string{"status": string(models.SessionDisconnected)})
		return
	}

	if err := h.sup.store.UpdateSessionStatus(ctx, h.sessionID, models.SessionDisconnected, "", ""); err != nil {
		h.sup.log.Error("supervisor: update status on disconnect failed", zap.String("session_id", h.sessionID), zap.Error(err))
	}
	h.sup.registry.UpdateStatus(h.sessionID, models.SessionDisconnected, "")
	h.callbacks.OnDisconnect()
	h.sup.bus.Publish(h.sessionID, eventbus.TopicConnectionStatus, map[string]string{"status": string(models.SessionDisconnected)})

	if h.sup.reconnector != nil {
		h.sup.reconnector.ScheduleReconnect(h.sessionID, reason == waclient.DisconnectRateLimited)
	}
}

func (h *sessionEventHandler) OnMessageBatch(batchType string, messages []waclient.InboundMessage) {
	if batchType != "notify" {
		return // history/append/replace batches are not forwarded (spec §4.C)
	}
	ctx := context.Background()
	for _, m := range messages {
		h.handleOneMessage(ctx, m)
	}
}

func (h *sessionEventHandler) handleOneMessage(ctx context.Context, m waclient.InboundMessage) {
	saved, err := h.sup.store.SaveMessage(ctx, models.MessageInput{
		SessionID:      h.sessionID,
		ExternalID:     m.MessageID,
		OrgID:          h.orgID,
		Direction:      models.DirectionInbound,
		FromNumber:     m.FromJID,
		ToNumber:       m.ToJID,
		MessageType:    m.MessageType,
		Content:        m.RawContent,
		Status:         models.MessageDelivered,
		IsGroupMessage: m.IsGroupMessage,
		GroupJID:       m.GroupJID,
		Timestamp:      time.Unix(m.Timestamp, 0).UTC(),
	})
	if err != nil {
		h.sup.log.Error("supervisor: save inbound message failed",
			zap.String("session_id", h.sessionID), zap.String("message_id", m.MessageID), zap.Error(err))
		return
	}

	if err := h.sup.store.RecordUsage(ctx, h.orgID, saved.Timestamp, 0, 1); err != nil {
		h.sup.log.Error("supervisor: record inbound usage failed", zap.Error(err))
	}

	org, err := h.sup.store.GetOrganization(ctx, h.orgID)
	if err != nil {
		h.sup.log.Error("supervisor: load organization for webhook failed",
			zap.String("org_id", h.orgID.String()), zap.Error(err))
	} else if org.WebhookURL != "" {
		if err := h.sup.webhook.Enqueue(ctx, saved, org); err != nil {
			h.sup.log.Error("supervisor: enqueue webhook failed",
				zap.String("message_id", m.MessageID), zap.Error(err))
		}
	}

	h.callbacks.OnMessage(*saved)
	h.sup.bus.Publish(h.sessionID, eventbus.TopicMessage, map[string]interface{}{
		"from":      m.FromJID,
		"message":   m.Text,
		"timestamp": saved.Timestamp,
	})
}

func (h *sessionEventHandler) OnGroupUpdate(update waclient.GroupUpdate) {
	ctx := context.Background()
	if _, err := h.sup.store.UpsertGroup(ctx, models.GroupInput{
		SessionID:        h.sessionID,
		GroupJID:         update.GroupJID,
		Name:             update.Name,
		Description:      update.Description,
		ParticipantCount: update.ParticipantCount,
		IsAdmin:          update.IsAdmin,
	}); err != nil {
		h.sup.log.Warn("supervisor: best-effort group upsert failed",
			zap.String("session_id", h.sessionID), zap.String("group_jid", update.GroupJID), zap.Error(err))
	}
	h.callbacks.OnGroupUpdate(update)
	h.sup.bus.Publish(h.sessionID, eventbus.TopicGroupUpdate, update)
}
