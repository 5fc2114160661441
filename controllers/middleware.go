package controllers

import (
	"net/http"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"

	"wopanel/models"
)

const userContextKey = "currentUser"

// AuthMiddleware validates the bearer token and loads the account. A user
// with MFA enabled must present a token minted after the MFA handshake.
func (a *API) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		} else if q := c.Query("token"); q != "" {
			// EventSource clients cannot set headers.
			token = q
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			return
		}
		claims, err := a.parseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		user, err := a.Store.GetUserByUsername(claims.Username)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		if user.MFAEnabled && !claims.MFAPassed {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "MFA token required"})
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

// AdminRequired restricts a route to administrators.
func (a *API) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil || user.Role != models.RoleAdministrator {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Administrator privileges required"})
			return
		}
		c.Next()
	}
}

// BillingAuth checks the shared key carried by billing-system callbacks.
func (a *API) BillingAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Billing-Key") != a.Cfg.BillingAPIKey {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid Billing Key"})
			return
		}
		c.Next()
	}
}

// AuditMiddleware records one line per request. The actor comes from an
// unverified claim decode: this is attribution for the trail, not an
// authorization decision.
func (a *API) AuditMiddleware() gin.HandlerFunc {
	parser := &jwt.Parser{}
	return func(c *gin.Context) {
		actor := "anonymous"
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			claims := &models.Claims{}
			if _, _, err := parser.ParseUnverified(strings.TrimPrefix(header, "Bearer "), claims); err == nil && claims.Username != "" {
				actor = claims.Username
			}
		}
		c.Next()
		a.Audit.Record(actor,
			c.Request.Method+" "+c.Request.URL.Path,
			c.ClientIP(),
			http.StatusText(c.Writer.Status()))
	}
}

func currentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(userContextKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}
