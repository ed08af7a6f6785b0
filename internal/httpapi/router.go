package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the route/status-code contract in spec §6, grouped the
// way the teacher's cmd/notification_api/app/routes package groups
// notification/template/policy routes under a shared *gin.RouterGroup.
func NewRouter(deps *Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), metricsMiddleware())

	r.GET("/api/health", deps.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", authMiddleware(deps.JWTSecret))
	{
		sessions := api.Group("/sessions")
		sessions.POST("/create", deps.createSession)
		sessions.GET("", deps.listSessions)
		sessions.GET("/:id/status", deps.sessionStatus)
		sessions.POST("/:id/disconnect", deps.disconnectSession)

		messages := api.Group("/messages")
		messages.POST("/:session_id/send", deps.sendMessage)

		api.GET("/usage", deps.usage)

		groups := api.Group("/groups")
		groups.GET("/:session_id/groups", deps.listGroups)
		groups.POST("/:session_id/create", deps.createGroup)
		groups.POST("/:jid/add-participants", deps.addParticipants)
		groups.POST("/:jid/remove-participant", deps.removeParticipant)
		groups.POST("/:jid/promote", deps.promoteParticipant)
		groups.POST("/:jid/broadcast", deps.broadcastToGroup)
		groups.POST("/:jid/settings", deps.setGroupSetting)
		groups.GET("/:jid/participants", deps.groupParticipants)
	}

	return r
}
