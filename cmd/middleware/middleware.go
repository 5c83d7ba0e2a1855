package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
)

// Roles carried in the auth token. Only admin and owner may mutate sessions
// and rosters.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
	RoleOwner  = "owner"
)

const (
	ctxUserID      = "authUserID"
	ctxOrgID       = "authOrgID"
	ctxRole        = "authRole"
	ctxDisplayName = "authDisplayName"
)

func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		zlog.Logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// AuthMiddleware verifies the bearer token issued by the upstream auth
// collaborator and places the caller's identity (user, active organization,
// role) into the request context. The core trusts these claims; it never
// re-authenticates.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			unauthorized(c, "missing bearer token")
			return
		}

		token, err := jwtv5.Parse(
			strings.TrimPrefix(header, "Bearer "),
			func(t *jwtv5.Token) (interface{}, error) {
				return []byte(secret), nil
			},
			jwtv5.WithValidMethods([]string{"HS256"}),
		)
		if err != nil || !token.Valid {
			unauthorized(c, "invalid token")
			return
		}

		claims, ok := token.Claims.(jwtv5.MapClaims)
		if !ok {
			unauthorized(c, "invalid claims")
			return
		}

		userID, err := claimUUID(claims, "user_id")
		if err != nil {
			unauthorized(c, "invalid user_id claim")
			return
		}
		orgID, err := claimUUID(claims, "org_id")
		if err != nil {
			unauthorized(c, "invalid org_id claim")
			return
		}

		role, _ := claims["role"].(string)
		switch role {
		case RoleMember, RoleAdmin, RoleOwner:
		default:
			unauthorized(c, "invalid role claim")
			return
		}

		displayName, _ := claims["display_name"].(string)

		c.Set(ctxUserID, userID)
		c.Set(ctxOrgID, orgID)
		c.Set(ctxRole, role)
		c.Set(ctxDisplayName, displayName)
		c.Next()
	}
}

func claimUUID(claims jwtv5.MapClaims, key string) (uuid.UUID, error) {
	raw, ok := claims[key].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("claim %s missing", key)
	}
	return uuid.Parse(raw)
}

func unauthorized(c *gin.Context, desc string) {
	c.AbortWithStatusJSON(401, gin.H{
		"status": "error",
		"error":  gin.H{"code": "UNAUTHORIZED", "desc": desc},
	})
}

func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func OrgID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ctxOrgID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func Role(c *gin.Context) string {
	v, ok := c.Get(ctxRole)
	if !ok {
		return ""
	}
	role, _ := v.(string)
	return role
}

// IsAdmin reports whether the caller may perform admin mutations.
func IsAdmin(c *gin.Context) bool {
	role := Role(c)
	return role == RoleAdmin || role == RoleOwner
}
