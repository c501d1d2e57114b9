package handler

import (
	"net/http"
	"strings"

	"affiliate-server/internal/auth/processor"
	"affiliate-server/internal/observability"

	"github.com/gin-gonic/gin"
)

// Header the platform's embedded frontend forwards the user token in.
const userTokenHeader = "X-Platform-User-Token"

type Handler struct {
	accessProcessor processor.AccessProcessor
	logger          *observability.Logger
}

func New(accessProcessor processor.AccessProcessor, logger *observability.Logger) Handler {
	return Handler{accessProcessor: accessProcessor, logger: logger}
}

// HandleUserTokenMiddleware verifies the platform-issued user token and
// stores the resolved user id in the gin context as "User-ID".
func (h *Handler) HandleUserTokenMiddleware(c *gin.Context) {
	ctx := c.Request.Context()

	token := c.GetHeader(userTokenHeader)
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token is missing or invalid"})
		c.Abort()
		return
	}

	userID, err := h.accessProcessor.VerifyUser(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid user token"})
		c.Abort()
		return
	}

	c.Set("User-ID", userID)
	c.Next()
}

// UserID reads the authenticated user id the middleware stored on the context
func UserID(c *gin.Context) (string, bool) {
	value, ok := c.Get("User-ID")
	if !ok {
		return "", false
	}
	userID, ok := value.(string)
	return userID, ok && userID != ""
}

// RequireUserID reads the authenticated user id and responds with 401 when it
// is absent. Routes behind HandleUserTokenMiddleware always have one; this
// covers handlers reached without it.
func RequireUserID(c *gin.Context) (string, bool) {
	userID, ok := UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token is missing or invalid"})
		c.Abort()
	}
	return userID, ok
}
