package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rentfold/tenancy/src/services"
)

const (
	identityKey = "callerIdentity"
	rolesKey    = "callerRoles"

	headerUserID    = "X-User-Id"
	headerUserEmail = "X-User-Email"
	headerUserRoles = "X-User-Roles"
)

// Identity materializes the verified identity forwarded by the upstream
// identity provider. The orchestrator trusts these headers; terminating
// authentication is the gateway's job.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawID := c.GetHeader(headerUserID)
		email := c.GetHeader(headerUserEmail)
		if rawID != "" && email != "" {
			if userID, err := uuid.Parse(rawID); err == nil {
				c.Set(identityKey, services.Identity{UserID: userID, Email: email})
			}
		}
		if roles := c.GetHeader(headerUserRoles); roles != "" {
			c.Set(rolesKey, strings.Split(roles, ","))
		}
		c.Next()
	}
}

// CallerIdentity returns the verified identity attached to the request.
func CallerIdentity(c *gin.Context) (services.Identity, bool) {
	value, ok := c.Get(identityKey)
	if !ok {
		return services.Identity{}, false
	}
	identity, ok := value.(services.Identity)
	return identity, ok
}

// RequireIdentity aborts with 401 when no verified identity is present.
func RequireIdentity(c *gin.Context) {
	if _, ok := CallerIdentity(c); !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}
	c.Next()
}

// RequireAdmin aborts with 403 unless the caller carries the admin role.
func RequireAdmin(c *gin.Context) {
	value, ok := c.Get(rolesKey)
	if ok {
		if roles, ok := value.([]string); ok {
			for _, r := range roles {
				if strings.TrimSpace(r) == "admin" {
					c.Next()
					return
				}
			}
		}
	}
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
}
