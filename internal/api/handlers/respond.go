package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"crowdradar/internal/api/middleware"
	"crowdradar/internal/domain/entities"
)

// respondError writes the {"error":{"code","message"}} envelope for err.
// Errors outside the known categories are infrastructure failures: they are
// logged with the caller and operation and reported as UNAVAILABLE without
// detail.
func respondError(c *gin.Context, op string, err error) {
	status, code := http.StatusServiceUnavailable, "UNAVAILABLE"
	message := "service temporarily unavailable, try again"

	switch {
	case errors.Is(err, entities.ErrInvalidArgument):
		status, code, message = http.StatusBadRequest, "INVALID_ARGUMENT", err.Error()
	case errors.Is(err, entities.ErrUnauthenticated):
		status, code, message = http.StatusUnauthorized, "UNAUTHENTICATED", err.Error()
	case errors.Is(err, entities.ErrFailedPrecondition):
		status, code, message = http.StatusPreconditionFailed, "FAILED_PRECONDITION", err.Error()
	default:
		log.Printf("[API] %s failed for user %s (request %s): %v",
			op, middleware.GetCaller(c).UserID, middleware.GetRequestID(c), err)
	}

	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "INVALID_ARGUMENT", "message": message}})
}
