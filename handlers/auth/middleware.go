package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Im-Vestor/im-vestor-full-sub002/logger"
	"github.com/Im-Vestor/im-vestor-full-sub002/models"
	"github.com/Im-Vestor/im-vestor-full-sub002/utils"
)

const (
	clerkIDKey    = "clerk_id"
	userKey       = "user"
	sessionCookie = "__session"
)

func sessionToken(c *gin.Context) (string, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		return utils.ExtractBearerToken(header)
	}
	if cookie, err := c.Cookie(sessionCookie); err == nil && cookie != "" {
		return cookie, nil
	}
	return "", utils.ErrMissingToken
}

// RequireSession verifies the Clerk session and stores the Clerk user id.
func RequireSession(verifier utils.SessionVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := sessionToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token is missing or malformed"})
			return
		}

		clerkID, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			return
		}

		c.Set(clerkIDKey, clerkID)
		c.Next()
	}
}

// RequireUser loads the onboarded user for the session. Must run after
// RequireSession.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		clerkID, ok := ClerkID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			return
		}

		var user models.User
		if err := utils.DB.Where("clerk_id = ?", clerkID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Onboarding required"})
				return
			}
			logger.L().Error("failed to load session user", "clerk_id", clerkID, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// RequireRole lets through only users of the given types. Admins always pass.
func RequireRole(types ...models.UserType) gin.HandlerFunc {
	allowed := make(map[models.UserType]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found in context"})
			return
		}
		if user.UserType != models.UserTypeAdmin && !allowed[user.UserType] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Not allowed for this account type"})
			return
		}
		c.Next()
	}
}

// RateLimit throttles by client IP. Which IP that is depends on the engine's
// trusted proxies.
func RateLimit(limiter *utils.ClientLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP(), time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, slow down"})
			return
		}
		c.Next()
	}
}

func ClerkID(c *gin.Context) (string, bool) {
	v, ok := c.Get(clerkIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

// MustUser answers 401 and returns false when no user is in the context.
func MustUser(c *gin.Context) (models.User, bool) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found in context"})
	}
	return user, ok
}
