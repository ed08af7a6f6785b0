package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kovshim30-boop/whatsapp-ghl-il/internal/apperr"
)

// writeError maps an apperr.Kind to the HTTP status spec §7/§6 prescribes
// and writes the JSON error body.
func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	body := gin.H{"error": err.Error()}

	var status int
	switch kind {
	case apperr.Validation:
		status = http.StatusBadRequest
	case apperr.Auth:
		status = http.StatusUnauthorized
	case apperr.LimitExceeded:
		status = http.StatusForbidden
		if e, ok := err.(*apperr.Error); ok {
			body["current"] = e.Current
			body["limit"] = e.Limit
		}
	case apperr.NotConnected:
		status = http.StatusInternalServerError
	case apperr.Transient:
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, body)
}
