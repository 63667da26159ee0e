package middleware

import (
	"context"
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"

	"push-relay/logging"
)

// IDTokenVerifier is satisfied by *auth.Client.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseAuthMiddleware authenticates callers with a Firebase Auth ID token.
// The caller's uid becomes the username. A "role" custom claim is honoured,
// otherwise the caller is a sender.
func FirebaseAuthMiddleware(v IDTokenVerifier) gin.HandlerFunc {
	log := logging.Component("auth")
	return func(c *gin.Context) {
		idToken, ok := bearerToken(c)
		if !ok {
			return
		}

		token, err := v.VerifyIDToken(c.Request.Context(), idToken)
		if err != nil {
			log.Debug().Err(err).Msg("ID token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		role := "sender"
		if r, ok := token.Claims["role"].(string); ok && r != "" {
			role = r
		}

		c.Set("username", token.UID)
		c.Set("role", role)
		c.Next()
	}
}
