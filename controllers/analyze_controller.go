package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"corpanalyst/models"
	"corpanalyst/server"
	"corpanalyst/services"
	"corpanalyst/utils"
)

// AnalysisFailureTitle is the "error" field of every failed analysis
const AnalysisFailureTitle = "An error occurred during analysis"

// maxAnalysisBody bounds the request body read by AnalyzeHandler
const maxAnalysisBody = 1 << 20

// AnalyzeHandler relays one message to the analyst
func (c *Controller) AnalyzeHandler(w http.ResponseWriter, r *http.Request) error {
	var req models.AnalysisRequest

	if err := json.NewDecoder(io.LimitReader(r.Body, maxAnalysisBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return &models.APIError{
			Status:  http.StatusBadRequest,
			Title:   AnalysisFailureTitle,
			Message: "Invalid JSON format",
			Err:     err,
		}
	}

	if strings.TrimSpace(req.Message) == "" {
		server.WriteValidationError(w, "Message is required")
		return nil
	}

	c.logger.Info().
		Str("request_id", server.RequestID(r.Context())).
		Str("message", utils.Preview(req.Message)).
		Msg("Received message")

	analysis, err := c.analyst.Analyze(r.Context(), req.Message)
	if err != nil {
		return c.analysisError(r.Context(), err)
	}

	server.WriteJSON(w, http.StatusOK, analysis)
	return nil
}

// analysisError keeps the upstream status when there is one and reports
// deadline failures as 408
func (c *Controller) analysisError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		// the request-wide deadline is reported by the server
		if ctx.Err() != nil {
			return err
		}
		return &models.APIError{
			Status:  http.StatusRequestTimeout,
			Title:   AnalysisFailureTitle,
			Message: fmt.Sprintf("Request timeout after %s", c.analyst.Timeout()),
			Err:     err,
		}
	}

	status := http.StatusInternalServerError
	var upstreamErr *services.UpstreamError
	if errors.As(err, &upstreamErr) && upstreamErr.StatusCode >= 400 {
		status = upstreamErr.StatusCode
	}

	return &models.APIError{
		Status:  status,
		Title:   AnalysisFailureTitle,
		Message: err.Error(),
		Err:     err,
	}
}
