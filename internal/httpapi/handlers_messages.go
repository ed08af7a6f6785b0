package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type sendMessageRequest struct {
	To      string `json:"to" binding:"required"`
	Message string `json:"message" binding:"required"`
}

func (d *Deps) sendMessage(c *gin.Context) {
	sessionID := c.Param("session_id")
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing required fields to/message"})
		return
	}

	queueID, err := d.Outbound.Enqueue(sessionID, req.To, req.Message, "text")
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "queue_id": queueID})
}
