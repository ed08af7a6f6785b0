package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/apperr"
	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/models"
)

// GormStore is the Postgres-backed Store, grounded on
// jsndz-signalbus/pkg/repositories (one struct wrapping *gorm.DB per
// concern, collapsed here into a single store since every table shares
// the org-scoped gateway domain).
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate runs AutoMigrate for every model the gateway owns.
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(
		&models.Organization{},
		&models.Session{},
		&models.Message{},
		&models.Group{},
		&models.WebhookLog{},
		&models.UsageRecord{},
	)
}

func (s *GormStore) CreateSession(ctx context.Context, orgID uuid.UUID, sessionID, phoneNumber string) (*models.Session, error) {
	sess := &models.Session{
		SessionID:   sessionID,
		OrgID:       orgID,
		PhoneNumber: phoneNumber,
		Status:      models.SessionConnecting,
		LastSeenAt:  time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, apperr.Transientf(err, "create session %s", sessionID)
	}
	return sess, nil
}

func (s *GormStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var sess models.Session
	err := s.db.WithContext(ctx).First(&sess, "session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.Transientf(err, "get session %s", sessionID)
	}
	return &sess, nil
}

func (s *GormStore) LoadAuthState(ctx context.Context, sessionID string) ([]byte, error) {
	var sess models.Session
	err := s.db.WithContext(ctx).Select("auth_state").First(&sess, "session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.Transientf(err, "load auth state %s", sessionID)
	}
	return sess.AuthState, nil
}

func (s *GormStore) SaveAuthState(ctx context.Context, sessionID string, blob []byte) error {
	err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("session_id = ?", sessionID).
		Update("auth_state", blob).Error
	if err != nil {
		return apperr.Transientf(err, "save auth state %s", sessionID)
	}
	return nil
}

func (s *GormStore) UpdateSessionStatus(ctx context.Context, sessionID string, status models.SessionStatus, phoneNumber, errMsg string) error {
	updates := map[string]interface{}{
		"status":        status,
		"error_message": errMsg,
		"last_seen_at":  time.Now().UTC(),
	}
	if phoneNumber != "" {
		updates["phone_number"] = phoneNumber
	}
	err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("session_id = ?", sessionID).
		Updates(updates).Error
	if err != nil {
		return apperr.Transientf(err, "update session status %s", sessionID)
	}
	return nil
}

func (s *GormStore) SaveQRCode(ctx context.Context, sessionID, qrCode string) error {
	err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("session_id = ?", sessionID).
		Update("last_qr_code", qrCode).Error
	if err != nil {
		return apperr.Transientf(err, "save qr code %s", sessionID)
	}
	return nil
}

func (s *GormStore) ListRestorableSessions(ctx context.Context) ([]models.RestorableSession, error) {
	var out []models.RestorableSession
	err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("status IN ? AND auth_state IS NOT NULL", []models.SessionStatus{models.SessionConnected, models.SessionConnecting}).
		Select("session_id", "org_id", "auth_state", "phone_number").
		Find(&out).Error
	if err != nil {
		return nil, apperr.Transientf(err, "list restorable sessions")
	}
	return out, nil
}

func (s *GormStore) IncrementReconnectAttempts(ctx context.Context, sessionID string) (int, error) {
	var sess models.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&sess, "session_id = ?", sessionID).Error; err != nil {
			return err
		}
		sess.ReconnectAttempts++
		return tx.Model(&models.Session{}).Where("session_id = ?", sessionID).
			Update("reconnect_attempts", sess.ReconnectAttempts).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, apperr.Transientf(err, "increment reconnect attempts %s", sessionID)
	}
	return sess.ReconnectAttempts, nil
}

func (s *GormStore) ResetReconnectAttempts(ctx context.Context, sessionID string) error {
	err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("session_id = ?", sessionID).
		Update("reconnect_attempts", 0).Error
	if err != nil {
		return apperr.Transientf(err, "reset reconnect attempts %s", sessionID)
	}
	return nil
}

func (s *GormStore) DeleteSession(ctx context.Context, sessionID string) error {
	err := s.db.WithContext(ctx).Delete(&models.Session{}, "session_id = ?", sessionID).Error
	if err != nil {
		return apperr.Transientf(err, "delete session %s", sessionID)
	}
	return nil
}

func (s *GormStore) SaveMessage(ctx context.Context, in models.MessageInput) (*models.Message, error) {
	msg := &models.Message{
		SessionID:      in.SessionID,
		ExternalID:     in.ExternalID,
		OrgID:          in.OrgID,
		Direction:      in.Direction,
		FromNumber:     in.FromNumber,
		ToNumber:       in.ToNumber,
		MessageType:    in.MessageType,
		Content:        in.Content,
		Status:         in.Status,
		IsGroupMessage: in.IsGroupMessage,
		GroupJID:       in.GroupJID,
		Timestamp:      in.Timestamp,
	}
	if msg.MessageType == "" {
		msg.MessageType = "text"
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "message_id"}},
		DoNothing: true,
	}).Create(msg).Error
	if err != nil {
		return nil, apperr.Transientf(err, "save message %s/%s", in.SessionID, in.ExternalID)
	}
	return msg, nil
}

func (s *GormStore) MarkMessageSynced(ctx context.Context, messageID uuid.UUID, crmMessageID string) error {
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", messageID).
		Updates(map[string]interface{}{
			"synced_to_crm":  true,
			"crm_message_id": crmMessageID,
		}).Error
	if err != nil {
		return apperr.Transientf(err, "mark message synced %s", messageID)
	}
	return nil
}

func (s *GormStore) UpdateMessageStatus(ctx context.Context, messageID uuid.UUID, status models.MessageStatus) error {
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", messageID).
		Update("status", status).Error
	if err != nil {
		return apperr.Transientf(err, "update message status %s", messageID)
	}
	return nil
}

func (s *GormStore) ListPendingCRMSync(ctx context.Context, orgID uuid.UUID, limit int) ([]models.Message, error) {
	var out []models.Message
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND synced_to_crm = ? AND direction = ? AND status <> ?",
			orgID, false, models.DirectionInbound, models.MessageFailed).
		Order("timestamp ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, apperr.Transientf(err, "list pending crm sync for org %s", orgID)
	}
	return out, nil
}

func (s *GormStore) UpsertGroup(ctx context.Context, in models.GroupInput) (*models.Group, error) {
	g := &models.Group{
		SessionID:        in.SessionID,
		GroupJID:         in.GroupJID,
		Name:             in.Name,
		Description:      in.Description,
		ParticipantCount: in.ParticipantCount,
		IsAdmin:          in.IsAdmin,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}, {Name: "group_jid"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "description", "participant_count", "is_admin", "updated_at",
		}),
	}).Create(g).Error
	if err != nil {
		return nil, apperr.Transientf(err, "upsert group %s/%s", in.SessionID, in.GroupJID)
	}
	return g, nil
}

func (s *GormStore) ListGroups(ctx context.Context, sessionID string) ([]models.Group, error) {
	var out []models.Group
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Find(&out).Error
	if err != nil {
		return nil, apperr.Transientf(err, "list groups %s", sessionID)
	}
	return out, nil
}

func (s *GormStore) LogWebhook(ctx context.Context, in models.WebhookLogInput) error {
	log := &models.WebhookLog{
		OrgID:        in.OrgID,
		MessageID:    in.MessageID,
		URL:          in.URL,
		Payload:      in.Payload,
		HTTPStatus:   in.HTTPStatus,
		ResponseBody: in.ResponseBody,
		RetryCount:   in.RetryCount,
		Status:       in.Status,
		ErrorMessage: in.ErrorMessage,
		Timestamp:    in.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return apperr.Transientf(err, "log webhook delivery for message %s", in.MessageID)
	}
	return nil
}

func (s *GormStore) GetOrganization(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	err := s.db.WithContext(ctx).First(&org, "id = ?", orgID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.Transientf(err, "get organization %s", orgID)
	}
	return &org, nil
}

// CountActiveSessions counts non-error sessions for the org (spec §4.H:
// "compare count of non-error sessions for the org against maxAccounts").
func (s *GormStore) CountActiveSessions(ctx context.Context, orgID uuid.UUID) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("org_id = ? AND status <> ?", orgID, models.SessionError).
		Count(&count).Error
	if err != nil {
		return 0, apperr.Transientf(err, "count active sessions %s", orgID)
	}
	return int(count), nil
}

func (s *GormStore) RecordUsage(ctx context.Context, orgID uuid.UUID, at time.Time, sent, received int64) error {
	period := models.PeriodStart(at)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "org_id"}, {Name: "period_start"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"messages_sent":     gorm.Expr("usage_records.messages_sent + ?", sent),
			"messages_received": gorm.Expr("usage_records.messages_received + ?", received),
			"updated_at":        time.Now().UTC(),
		}),
	}).Create(&models.UsageRecord{
		OrgID:            orgID,
		PeriodStart:      period,
		MessagesSent:     sent,
		MessagesReceived: received,
	}).Error
	if err != nil {
		return apperr.Transientf(err, "record usage %s", orgID)
	}
	return nil
}

func (s *GormStore) IncrementAPICalls(ctx context.Context, orgID uuid.UUID, at time.Time) error {
	period := models.PeriodStart(at)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "org_id"}, {Name: "period_start"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"api_calls":  gorm.Expr("usage_records.api_calls + 1"),
			"updated_at": time.Now().UTC(),
		}),
	}).Create(&models.UsageRecord{
		OrgID:       orgID,
		PeriodStart: period,
		APICalls:    1,
	}).Error
	if err != nil {
		return apperr.Transientf(err, "increment api calls %s", orgID)
	}
	return nil
}

func (s *GormStore) GetUsage(ctx context.Context, orgID uuid.UUID, periodStart time.Time) (*models.UsageRecord, error) {
	var rec models.UsageRecord
	err := s.db.WithContext(ctx).First(&rec, "org_id = ? AND period_start = ?", orgID, models.PeriodStart(periodStart)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.Transientf(err, "get usage %s", orgID)
	}
	return &rec, nil
}
