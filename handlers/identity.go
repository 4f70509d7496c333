package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"go-emtrack/types"
)

const (
	HeaderUserID    = "X-User-Id"
	HeaderUserLabel = "X-User-Label"

	identityKey = "identity"
)

// IdentityMiddleware reads the identity supplied by the authentication proxy.
// Requests without one are anonymous and only see local scenarios.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := types.Identity{
			ID:    strings.TrimSpace(c.GetHeader(HeaderUserID)),
			Label: strings.TrimSpace(c.GetHeader(HeaderUserLabel)),
		}
		if id.Label == "" {
			id.Label = id.ID
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func identity(c *gin.Context) types.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(types.Identity); ok {
			return id
		}
	}
	return types.Identity{}
}

// GetIdentityHandler echoes the caller's identity.
func GetIdentityHandler(c *gin.Context) {
	id := identity(c)
	c.JSON(200, gin.H{"identity": id, "anonymous": id.Anonymous()})
}
