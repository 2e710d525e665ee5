package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"corpanalyst/models"
)

// HandlerFunc is an HTTP handler that reports failures by returning an error.
// The server renders returned errors as an ErrorEnvelope.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// StatusCoder is implemented by errors that carry an HTTP status, such as upstream failures
type StatusCoder interface {
	HTTPStatus() int
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteValidationError writes the short {"error": "..."} body used when a
// required input is missing. It bypasses the error envelope.
func WriteValidationError(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusBadRequest, models.ErrorBody{Error: message})
}

// toAPIError maps any handler error onto the envelope fields
func (s *Server) toAPIError(err error) *models.APIError {
	var apiErr *models.APIError
	if errors.As(err, &apiErr) {
		out := *apiErr
		if out.Status == 0 {
			out.Status = http.StatusInternalServerError
		}
		if out.Title == "" {
			out.Title = s.failureTitle
		}
		return &out
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &models.APIError{
			Status:  http.StatusRequestTimeout,
			Title:   s.failureTitle,
			Message: fmt.Sprintf("Request timeout after %s", s.requestTimeout),
			Err:     err,
		}
	}

	status := http.StatusInternalServerError
	var sc StatusCoder
	if errors.As(err, &sc) && sc.HTTPStatus() >= 400 {
		status = sc.HTTPStatus()
	}
	return &models.APIError{
		Status:  status,
		Title:   s.failureTitle,
		Message: err.Error(),
		Err:     err,
	}
}

// writeError is the single place errors become HTTP responses
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := s.toAPIError(err)

	event := s.logger.Warn()
	if apiErr.Status >= http.StatusInternalServerError {
		event = s.logger.Error()
	}
	event.
		Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", apiErr.Status).
		Str("request_id", RequestID(r.Context())).
		Msg("Request failed")

	WriteJSON(w, apiErr.Status, apiErr.Envelope(s.now()))
}

// wrap adapts a HandlerFunc to http.Handler, routing errors through writeError
func (s *Server) wrap(fn HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			s.writeError(w, r, err)
		}
	})
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, models.ErrorBody{Error: "Not found"})
}
