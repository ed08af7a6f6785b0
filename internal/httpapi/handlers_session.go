package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/store"
)

type createSessionRequest struct {
	SessionID    string `json:"session_id" binding:"required"`
	UserID       string `json:"user_id"`
	SubAccountID string `json:"sub_account_id"`
}

func (d *Deps) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing required field session_id"})
		return
	}

	orgID := orgFromContext(c)
	if err := d.Sup.Create(c.Request.Context(), req.SessionID, orgID, nil); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session_id": req.SessionID})
}

type sessionView struct {
	SessionID   string `json:"sessionId"`
	Status      string `json:"status"`
	PhoneNumber string `json:"phoneNumber"`
	CreatedAt   string `json:"createdAt"`
}

func (d *Deps) listSessions(c *gin.Context) {
	orgID := orgFromContext(c)
	views := make([]sessionView, 0)
	for _, h := range d.Registry.List() {
		if h.OrgID != orgID {
			continue
		}
		views = append(views, sessionView{
			SessionID:   h.SessionID,
			Status:      string(h.Status),
			PhoneNumber: h.PhoneNumber,
			CreatedAt:   h.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	c.JSON(http.StatusOK, views)
}

func (d *Deps) sessionStatus(c *gin.Context) {
	sessionID := c.Param("id")
	if h := d.Registry.Get(sessionID); h != nil {
		c.JSON(http.StatusOK, sessionView{
			SessionID:   h.SessionID,
			Status:      string(h.Status),
			PhoneNumber: h.PhoneNumber,
			CreatedAt:   h.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
		return
	}

	sess, err := d.Store.GetSession(c.Request.Context(), sessionID)
	if errors.Is(err, store.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionView{
		SessionID:   sess.SessionID,
		Status:      string(sess.Status),
		PhoneNumber: sess.PhoneNumber,
		CreatedAt:   sess.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (d *Deps) disconnectSession(c *gin.Context) {
	sessionID := c.Param("id")
	if err := d.Sup.Destroy(c.Request.Context(), sessionID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
