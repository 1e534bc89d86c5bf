package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smartride/internal/domain"
	"smartride/internal/middleware"
)

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// respondError sends the failure envelope with the status mapped from err.
// Internal errors are recorded on the context and hidden from the caller.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	message := err.Error()
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
		message = "internal server error"
	}
	c.JSON(code, ErrorResponse{
		Success:   false,
		Message:   message,
		RequestID: middleware.RequestIDFrom(c),
	})
}

// respondBadRequest sends a 400 for malformed input caught before the services.
func respondBadRequest(c *gin.Context, message string) {
	respondError(c, domain.ValidationError{Msg: message})
}

// respondJSON sends the success envelope with the payload keys merged in.
func respondJSON(c *gin.Context, code int, message string, payload gin.H) {
	body := gin.H{"success": true, "message": message}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(code, body)
}

// mapErrorToHTTPStatus maps the error taxonomy to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case domain.IsAuthentication(err):
		return http.StatusUnauthorized
	case domain.IsAuthorization(err):
		return http.StatusForbidden
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// actorOrAbort returns the authenticated caller or answers 401.
func actorOrAbort(c *gin.Context) (domain.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, domain.AuthenticationError{Reason: "not authenticated"})
		return domain.Actor{}, false
	}
	return actor, true
}
