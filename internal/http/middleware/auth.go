// README: Bearer-token auth; resolves the calling rider from Firebase.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"triply/internal/infra"
	"triply/internal/types"
)

const (
	riderKey  = "triply.rider"
	claimsKey = "triply.claims"
)

func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(raw, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		rt, err := verifier.VerifyIDToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(riderKey, types.ID(rt.UID))
		c.Set(claimsKey, rt.Claims)
		c.Next()
	}
}

// RequireDispatch admits only tokens carrying the dispatch custom claim.
// Rider tokens never have it; the dispatch integration's service accounts do.
func RequireDispatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, _ := c.Get(claimsKey)
		claims, ok := v.(map[string]interface{})
		if !ok || claims["dispatch"] != true {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "dispatch access required"})
			return
		}
		c.Next()
	}
}

// CallerRider returns the authenticated rider id set by Auth.
func CallerRider(c *gin.Context) (types.ID, bool) {
	v, ok := c.Get(riderKey)
	if !ok {
		return "", false
	}
	id, ok := v.(types.ID)
	return id, ok
}
