package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Health status constants
const (
	StatusOK = "ok"
)

// TimestampFormat is the ISO-8601 layout with millisecond precision used in responses
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in UTC using TimestampFormat
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// ErrorBody is the short error shape used by early validation checks
type ErrorBody struct {
	Error string `json:"error"`
}

// ErrorEnvelope is the uniform JSON error shape returned by both relays
type ErrorEnvelope struct {
	Error        string          `json:"error"`
	Message      string          `json:"message,omitempty"`
	Details      string          `json:"details,omitempty"`
	Status       int             `json:"status"`
	Timestamp    string          `json:"timestamp"`
	ResponseData json.RawMessage `json:"responseData,omitempty"`
}

// APIError is an error that already knows how it should be rendered.
// Handlers return it and the server's error boundary turns it into an ErrorEnvelope.
type APIError struct {
	Status       int
	Title        string
	Message      string
	Details      string
	ResponseData json.RawMessage
	Err          error
}

func (e *APIError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Title, e.Message)
	case e.Details != "":
		return fmt.Sprintf("%s: %s", e.Title, e.Details)
	default:
		return e.Title
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Envelope renders the error with the given timestamp
func (e *APIError) Envelope(now time.Time) ErrorEnvelope {
	return ErrorEnvelope{
		Error:        e.Title,
		Message:      e.Message,
		Details:      e.Details,
		Status:       e.Status,
		Timestamp:    FormatTimestamp(now),
		ResponseData: e.ResponseData,
	}
}

// HealthResponse is returned by GET /health on both relays
type HealthResponse struct {
	Status    string                 `json:"status"`
	Message   string                 `json:"message"`
	Service   string                 `json:"service"`
	Timestamp string                 `json:"timestamp"`
	Services  map[string]interface{} `json:"services,omitempty"`
	Discord   *DiscordStatus         `json:"discord,omitempty"`
}
