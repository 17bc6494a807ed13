package middleware

import (
	"net/http"
	"strings"

	"blog-cms/helper"
	"blog-cms/models"
	"blog-cms/services"

	"github.com/gin-gonic/gin"
)

const (
	// TokenCookie carries the session token for browser requests.
	TokenCookie = "token"

	callerKey = "caller"
)

// Auth turns session tokens into callers.
type Auth struct {
	tokens *services.TokenManager
	helper *helper.HTTPHelper
}

func NewAuth(tokens *services.TokenManager, h *helper.HTTPHelper) *Auth {
	return &Auth{tokens: tokens, helper: h}
}

// CallerFrom returns the authenticated caller, or nil for anonymous requests.
func CallerFrom(c *gin.Context) *models.Caller {
	if v, ok := c.Get(callerKey); ok {
		if caller, ok := v.(*models.Caller); ok {
			return caller
		}
	}
	return nil
}

// tokenFrom reads a Bearer token, falling back to the session cookie.
func tokenFrom(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		if token := strings.TrimPrefix(authHeader, "Bearer "); token != authHeader {
			return token
		}
		return ""
	}
	token, _ := c.Cookie(TokenCookie)
	return token
}

// OptionalAuth attaches the caller when a valid token is present and lets
// every request through.
func (a *Auth) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := tokenFrom(c); token != "" {
			if caller, err := a.tokens.Parse(token); err == nil {
				c.Set(callerKey, caller)
			}
		}
		c.Next()
	}
}

// AuthMiddleware guards the JSON API.
func (a *Auth) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := tokenFrom(c)
		if tokenString == "" {
			a.helper.SendUnauthorizedError(c, "Bearer token required", a.helper.EmptyJsonMap())
			c.Abort()
			return
		}

		caller, err := a.tokens.Parse(tokenString)
		if err != nil {
			a.helper.SendUnauthorizedError(c, "Invalid token: "+err.Error(), a.helper.EmptyJsonMap())
			c.Abort()
			return
		}

		c.Set(callerKey, caller)
		c.Next()
	}
}

// RequireRole guards the admin pages. It must run after OptionalAuth.
// Page requests are sent home with an error flash; form submissions get the
// JSON error the article forms expect.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CallerFrom(c).HasRole(roles...) {
			c.Next()
			return
		}

		if c.Request.Method == http.MethodGet {
			helper.SetFlash(c, helper.FlashError, services.MsgUnauthorized)
			c.Redirect(http.StatusFound, "/")
		} else {
			c.JSON(http.StatusUnauthorized, gin.H{"errorMsg": services.MsgUnauthorized})
		}
		c.Abort()
	}
}
