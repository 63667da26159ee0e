package handlers

import (
	"net/http"

	"push-relay/logging"
	"push-relay/middleware"
	"push-relay/relay"

	"github.com/gin-gonic/gin"
)

// notificationPayload is the callable "data" object.
type notificationPayload struct {
	FCMToken string                 `json:"fcmToken"`
	Title    string                 `json:"title"`
	Body     string                 `json:"body"`
	Data     map[string]interface{} `json:"data"`
}

// callableError is the error body of the callable protocol.
func callableError(status, message string) gin.H {
	return gin.H{"error": gin.H{"status": status, "message": message}}
}

// SendNotificationHandler serves the callable sendNotification function.
// Every relay outcome, including failures, is a 200 {"result": SendResult}.
func SendNotificationHandler(s relay.Sender) gin.HandlerFunc {
	log := logging.Component("fcm")
	return func(c *gin.Context) {
		var req struct {
			Data *notificationPayload `json:"data"`
		}

		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, callableError("INVALID_ARGUMENT", "Request body must be a JSON object"))
			return
		}
		if req.Data == nil {
			c.JSON(http.StatusBadRequest, callableError("INVALID_ARGUMENT", "Missing data field"))
			return
		}

		res := s.Send(c.Request.Context(), relay.SendRequest{
			TargetToken: req.Data.FCMToken,
			Title:       req.Data.Title,
			Body:        req.Data.Body,
			Data:        req.Data.Data,
		})

		if !res.Success {
			log.Debug().
				Str("request_id", middleware.GetRequestID(c)).
				Str("caller", middleware.GetUsername(c)).
				Str("error", res.ErrorMessage).
				Msg("send failed")
		}

		c.JSON(http.StatusOK, gin.H{"result": res})
	}
}
