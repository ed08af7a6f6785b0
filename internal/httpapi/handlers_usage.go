package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// usage reports the calling organization's current-month counters through
// the usage.Meter read path (messagesSent, messagesReceived, apiCalls by
// month, spec §4.I).
func (d *Deps) usage(c *gin.Context) {
	orgID := orgFromContext(c)

	rec, err := d.Usage.CurrentPeriod(c.Request.Context(), orgID)
	if err != nil {
		d.Log.Error("usage lookup failed", zap.String("org_id", orgID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "usage lookup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"periodStart":      rec.PeriodStart.Format("2006-01-02"),
		"messagesSent":     rec.MessagesSent,
		"messagesReceived": rec.MessagesReceived,
		"apiCalls":         rec.APICalls,
		"activeSessions":   rec.ActiveSessions,
	})
}
