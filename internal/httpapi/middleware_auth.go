package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// claims is the decision this repo makes for spec §9's flagged ambiguity
// ("the spec requires genuine bearer verification but does not prescribe
// the algorithm"): HS256, with "sub" carrying the user id and "org_id"
// carrying the owning organization, the two values §6 says auth must
// inject into every request.
type claims struct {
	jwt.RegisteredClaims
	OrgID string `json:"org_id"`
}

// authMiddleware verifies the bearer token and sets "user_id" and
// "organization" (uuid.UUID) on the gin context, ported from
// iliyamo-cinema-seat-reservation/internal/middleware/jwt.go's echo
// middleware to gin.
func authMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		var cl claims
		tok, err := jwt.ParseWithClaims(raw, &cl, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !tok.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		orgID, err := uuid.Parse(cl.OrgID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid organization claim"})
			return
		}

		c.Set("user_id", cl.Subject)
		c.Set("organization", orgID)
		c.Next()
	}
}

// orgFromContext fetches the organization uuid.UUID a prior authMiddleware
// call injected.
func orgFromContext(c *gin.Context) uuid.UUID {
	v, _ := c.Get("organization")
	orgID, _ := v.(uuid.UUID)
	return orgID
}
