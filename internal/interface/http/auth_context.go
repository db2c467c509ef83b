package http

import (
	"github.com/gin-gonic/gin"

	"github.com/yanqian/biofeedback/internal/domain/auth"
)

const deviceClaimsKey = "device_claims"

func setClaims(c *gin.Context, claims auth.Claims) {
	c.Set(deviceClaimsKey, claims)
}

// getClaims returns the validated token claims; ok is false on routes served
// without authentication.
func getClaims(c *gin.Context) (auth.Claims, bool) {
	value, ok := c.Get(deviceClaimsKey)
	if !ok {
		return auth.Claims{}, false
	}
	claims, ok := value.(auth.Claims)
	return claims, ok
}
