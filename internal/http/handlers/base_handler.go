// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"wayfarer/internal/modules/aiusage"
	"wayfarer/internal/service"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// isValidID accepts short alphanumeric ids with - and _.
func isValidID(v string) bool {
	if len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeGenerationError maps orchestration and quota errors. Nothing internal
// leaks into the response body.
func writeGenerationError(c *gin.Context, requestID string, err error) {
	switch {
	case errors.Is(err, service.ErrProvidersExhausted):
		writeJSON(c, http.StatusBadGateway, errorResponse{Error: service.ErrProvidersExhausted.Error(), RequestID: requestID})
	case errors.Is(err, aiusage.ErrInsufficientTokens):
		writeJSON(c, http.StatusTooManyRequests, errorResponse{Error: "monthly itinerary allowance used up", RequestID: requestID})
	default:
		writeJSON(c, http.StatusInternalServerError, errorResponse{Error: "internal error", RequestID: requestID})
	}
}
