package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/nvandessel/alliance/internal/models"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Type      string         `json:"type"`
	Category  string         `json:"category"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// Error types.
const (
	errTypeValidation    = "validation_error"
	errTypeConfiguration = "configuration_error"
	errTypeNotFound      = "not_found"
	errTypeComplete      = "simulation_complete"
	errTypeBusy          = "round_in_progress"
	errTypeProvider      = "provider_error"
	errTypeRateLimit     = "rate_limit_exceeded"
	errTypeIntegrity     = "integrity_error"
	errTypeInternal      = "internal_error"
)

// Error categories for monitoring.
const (
	categoryValidation = "validation"
	categorySimulation = "simulation"
	categoryProvider   = "provider"
	categorySystem     = "system"
)

func categoryOf(errType string) string {
	switch errType {
	case errTypeValidation, errTypeConfiguration:
		return categoryValidation
	case errTypeNotFound, errTypeComplete, errTypeBusy:
		return categorySimulation
	case errTypeProvider:
		return categoryProvider
	default:
		return categorySystem
	}
}

// classify maps err to a status code and error type.
func classify(err error) (int, string) {
	switch models.KindOf(err) {
	case models.KindNotFound:
		return http.StatusNotFound, errTypeNotFound
	case models.KindConflict:
		if errors.Is(err, models.ErrBusy) {
			return http.StatusConflict, errTypeBusy
		}
		return http.StatusBadRequest, errTypeComplete
	case models.KindConfiguration:
		return http.StatusUnprocessableEntity, errTypeConfiguration
	case models.KindValidation:
		return http.StatusUnprocessableEntity, errTypeValidation
	case models.KindProvider:
		return http.StatusBadGateway, errTypeProvider
	case models.KindRateLimited:
		return http.StatusTooManyRequests, errTypeRateLimit
	case models.KindIntegrity:
		return http.StatusInternalServerError, errTypeIntegrity
	default:
		return http.StatusInternalServerError, errTypeInternal
	}
}

// handleError writes the reply for a failed operation.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, errType := classify(err)
	ctx := map[string]any{}
	if field := models.FieldOf(err); field != "" {
		switch errType {
		case errTypeProvider:
			ctx["agent"] = field
		case errTypeRateLimit:
			ctx["operation"] = field
		default:
			ctx["field"] = field
		}
	}

	msg := err.Error()
	if status >= http.StatusInternalServerError && errType == errTypeInternal {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		msg = "internal error"
	}
	s.writeError(w, r, status, errType, msg, ctx)
}

// writeError writes a structured error response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, errType, message string, context map[string]any) {
	if len(context) == 0 {
		context = nil
	}
	s.writeJSON(w, status, ErrorResponse{
		Type:      errType,
		Category:  categoryOf(errType),
		Message:   message,
		Context:   context,
		RequestID: middleware.GetReqID(r.Context()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
