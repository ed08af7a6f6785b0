package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (d *Deps) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"uptime":    time.Now().Unix() - d.StartedAt,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
