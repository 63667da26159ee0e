package handlers

import (
	"errors"
	"net/http"

	"push-relay/metrics"
	"push-relay/middleware"
	"push-relay/store"

	"github.com/gin-gonic/gin"
)

func GetTokenHandler(s store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.Query("username")
		if username == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username parameter is required"})
			return
		}

		user, err := s.GetUser(username)
		if errors.Is(err, store.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check user"})
			return
		}

		// Generate token with user's stored role
		token, err := middleware.GenerateToken(user.Username, user.Role)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":    token,
			"role":     user.Role,
			"username": user.Username,
		})
	}
}

// StatsHandler reports in-process send and token counters.
func StatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, metrics.GetSnapshot())
	}
}

// HealthHandler reports liveness only. It never touches the provider.
func HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
