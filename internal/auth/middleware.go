package auth

import (
	"circleup/backend/internal/models"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// UserContextKey is where Middleware stores the caller's models.User.
const UserContextKey = "user"

// Middleware rejects requests without a valid token. Browsers cannot set
// headers on a WebSocket upgrade, so the access_token query parameter is
// accepted as well.
func (i *Issuer) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("access_token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token is required"})
			return
		}

		user, err := i.Validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(UserContextKey, user)
		c.Next()
	}
}

// CurrentUser returns the identity stored by Middleware.
func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(UserContextKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

func bearerToken(header string) string {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}
