package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"droppers-api/apperr"
	"droppers-api/models"
	"droppers-api/service"
)

const callerKey = "caller"

// TokenParser verifies a bearer token.
type TokenParser interface {
	ParseToken(token string) (service.Caller, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// AuthRequired validates the JWT and stores the caller in the context.
func AuthRequired(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, apperr.Authentication, "Authorization header required (Bearer <token>)")
			return
		}
		caller, err := tokens.ParseToken(BearerToken(header))
		if err != nil {
			abort(c, apperr.Authentication, apperr.MessageOf(err))
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

// RoleRequired enforces that caller has one of the allowed roles
func RoleRequired(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok {
			abort(c, apperr.Authentication, "authentication required")
			return
		}
		for _, r := range roles {
			if caller.Role == r {
				c.Next()
				return
			}
		}
		abort(c, apperr.Authorization, "Access denied. Required role(s): "+rolesString(roles))
	}
}

func rolesString(roles []models.UserRole) string {
	s := make([]string, len(roles))
	for i, r := range roles {
		s[i] = string(r)
	}
	return strings.Join(s, ", ")
}

// CallerFrom returns the authenticated caller set by AuthRequired.
func CallerFrom(c *gin.Context) (service.Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return service.Caller{}, false
	}
	caller, ok := v.(service.Caller)
	return caller, ok
}

func abort(c *gin.Context, kind apperr.Kind, msg string) {
	c.AbortWithStatusJSON(kind.HTTPStatus(), gin.H{
		"success": false,
		"message": msg,
		"error":   kind.String(),
	})
}
