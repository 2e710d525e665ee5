package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"corpanalyst/models"
	"corpanalyst/server"
	"corpanalyst/services"
)

// Failure titles of the lookup relay
const (
	LookupFailureTitle  = "Failed to fetch data from Yahoo Finance"
	PreviewFailureTitle = "Failed to fetch link preview"
)

// LookupHandler relays an ISIN search and returns the upstream body as-is
func (c *Controller) LookupHandler(w http.ResponseWriter, r *http.Request) error {
	isin := r.URL.Query().Get("isin")
	if isin == "" {
		server.WriteValidationError(w, "ISIN parameter is required")
		return nil
	}

	c.logger.Info().
		Str("request_id", server.RequestID(r.Context())).
		Str("isin", isin).
		Msg("Searching for ISIN")

	raw, err := c.lookup.Search(r.Context(), isin)
	if err != nil {
		return relayError(r.Context(), LookupFailureTitle, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
	return nil
}

// LinkPreviewHandler returns title, description and image for a source URL
func (c *Controller) LinkPreviewHandler(w http.ResponseWriter, r *http.Request) error {
	pageURL := r.URL.Query().Get("url")
	if pageURL == "" {
		server.WriteValidationError(w, "URL parameter is required")
		return nil
	}

	if _, err := services.ValidatePreviewURL(pageURL); err != nil {
		return &models.APIError{
			Status:  http.StatusBadRequest,
			Title:   PreviewFailureTitle,
			Details: err.Error(),
			Err:     err,
		}
	}

	preview, err := c.previews.Preview(r.Context(), pageURL)
	if err != nil {
		return relayError(r.Context(), PreviewFailureTitle, err)
	}

	server.WriteJSON(w, http.StatusOK, preview)
	return nil
}

// relayError maps a passthrough failure onto the envelope. The upstream
// status is reused when known, and its body is attached as responseData.
func relayError(ctx context.Context, title string, err error) error {
	// the request-wide deadline is reported by the server
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return err
	}

	apiErr := &models.APIError{
		Status:  http.StatusInternalServerError,
		Title:   title,
		Details: err.Error(),
		Err:     err,
	}

	var upstreamErr *services.UpstreamError
	if errors.As(err, &upstreamErr) {
		if upstreamErr.StatusCode >= 400 {
			apiErr.Status = upstreamErr.StatusCode
		}
		apiErr.ResponseData = responseData(upstreamErr.Body)
	}
	return apiErr
}

// responseData embeds an upstream body in the envelope, quoting it when it is not JSON
func responseData(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, err := json.Marshal(string(body))
	if err != nil {
		return nil
	}
	return json.RawMessage(quoted)
}
