package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (d *Deps) listGroups(c *gin.Context) {
	sessionID := c.Param("session_id")
	groups, err := d.Store.ListGroups(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

type createGroupRequest struct {
	Name         string   `json:"name" binding:"required"`
	Participants []string `json:"participants" binding:"required"`
}

func (d *Deps) createGroup(c *gin.Context) {
	sessionID := c.Param("session_id")
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing required fields name/participants"})
		return
	}

	jid, err := d.Sup.CreateGroup(c.Request.Context(), sessionID, req.Name, req.Participants)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "group_jid": jid})
}

// groupMutationRequest is the shared shape for the §6 group-mutation
// routes, which are keyed by :jid rather than :session_id — the owning
// session has to travel in the body instead.
type groupMutationRequest struct {
	SessionID    string   `json:"session_id" binding:"required"`
	Participants []string `json:"participants"`
	Participant  string   `json:"participant"`
	Text         string   `json:"text"`
	Setting      string   `json:"setting"`
	Value        string   `json:"value"`
}

func (d *Deps) addParticipants(c *gin.Context) {
	groupJID := c.Param("jid")
	var req groupMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Participants) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing required fields session_id/participants"})
		return
	}
	if err := d.Sup.AddParticipants(c.Request.Context(), req.SessionID, groupJID, req.Participants); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (d *Deps) removeParticipant(c *gin.Context) {
	groupJID := c.Param("jid")
	var req groupMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Participant == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing required fields session_id/participant"})
		return
	}
	if err := d.Sup.RemoveParticipant(c.Request.Context(), req.SessionID, groupJID, req.Participant); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (d *Deps) promoteParticipant(c *gin.Context) {
	groupJID := c.Param("jid")
	var req groupMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Participant == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing required fields session_id/participant"})
		return
	}
	if err := d.Sup.PromoteParticipant(c.Request.Context(), req.SessionID, groupJID, req.Participant); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (d *Deps) broadcastToGroup(c *gin.Context) {
	groupJID := c.Param("jid")
	var req groupMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing required fields session_id/text"})
		return
	}
	msgID, err := d.Sup.BroadcastToMembers(c.Request.Context(), req.SessionID, groupJID, req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message_id": msgID})
}

func (d *Deps) setGroupSetting(c *gin.Context) {
	groupJID := c.Param("jid")
	var req groupMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Setting == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing required fields session_id/setting"})
		return
	}
	if err := d.Sup.SetGroupSetting(c.Request.Context(), req.SessionID, groupJID, req.Setting, req.Value); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (d *Deps) groupParticipants(c *gin.Context) {
	groupJID := c.Param("jid")
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing required query param session_id"})
		return
	}
	meta, err := d.Sup.GroupMetadata(c.Request.Context(), sessionID, groupJID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"groupJid":         meta.GroupJID,
		"name":             meta.Name,
		"description":      meta.Description,
		"participantCount": meta.ParticipantCount,
		"isAdmin":          meta.IsAdmin,
	})
}
