package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"corpanalyst/config"
	"corpanalyst/models"
	"corpanalyst/utils"
)

// AnalystPreamble frames every conversation sent to the model
const AnalystPreamble = "You are a helpful chat analysis assistant that provides information with web search capabilities. " +
	"You analyze conversations and provide insights based on the content. " +
	"When additional information is needed, you search the web for relevant data. " +
	"You specialize in analyzing companies, financial data, and market trends."

// WebSearchConnector lets the model ground its answer in live web results
const WebSearchConnector = "web-search"

// ErrEmptyMessage is returned when Analyze is called without content
var ErrEmptyMessage = errors.New("message is required")

// ChatClient is the upstream conversational model
type ChatClient interface {
	Chat(ctx context.Context, request models.CohereChatRequest) (*models.CohereChatResponse, error)
}

// Analyst turns a free-text question into a web-grounded analysis
type Analyst struct {
	client      ChatClient
	temperature float64
	timeout     time.Duration
	logger      *utils.Logger
	startTime   time.Time
}

// NewAnalyst creates an analyst backed by client
func NewAnalyst(client ChatClient, cfg config.CohereConfig, logger *utils.Logger) *Analyst {
	return &Analyst{
		client:      client,
		temperature: cfg.Temperature,
		timeout:     cfg.GetTimeout(),
		logger:      logger,
		startTime:   time.Now(),
	}
}

// Timeout returns the budget applied to each analysis
func (a *Analyst) Timeout() time.Duration {
	return a.timeout
}

// Analyze makes exactly one upstream call. The analysis deadline is derived
// from ctx, so cancelling the caller or hitting the timeout aborts the call.
func (a *Analyst) Analyze(ctx context.Context, message string) (models.AnalysisResponse, error) {
	if strings.TrimSpace(message) == "" {
		return models.AnalysisResponse{}, ErrEmptyMessage
	}

	a.logger.Info().
		Str("message", utils.Preview(message)).
		Msg("Received analysis request")

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	resp, err := a.client.Chat(ctx, models.CohereChatRequest{
		Message:     message,
		Preamble:    AnalystPreamble,
		Connectors:  []models.CohereConnector{{ID: WebSearchConnector}},
		Temperature: a.temperature,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		a.logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("Cohere API error")
		return models.AnalysisResponse{}, err
	}

	a.logger.Info().
		Dur("duration", time.Since(start)).
		Int("documents", len(resp.Documents)).
		Msg("Cohere API response received")

	return NewAnalysisResponse(resp), nil
}

// NewAnalysisResponse maps the upstream reply onto the relay's response.
// Missing document or search result lists become empty arrays.
func NewAnalysisResponse(resp *models.CohereChatResponse) models.AnalysisResponse {
	searchResults := resp.SearchResults
	if len(searchResults) == 0 {
		searchResults = resp.WebSearchResults
	}
	return models.AnalysisResponse{
		Analysis:      resp.Text,
		Sources:       nonNil(resp.Documents),
		SearchResults: nonNil(searchResults),
	}
}

func nonNil(items []json.RawMessage) []json.RawMessage {
	if items == nil {
		return []json.RawMessage{}
	}
	return items
}

// GetStatus returns the analyst's settings for health output
func (a *Analyst) GetStatus() map[string]interface{} {
	status := map[string]interface{}{
		"temperature": a.temperature,
		"timeout":     a.timeout.String(),
		"connector":   WebSearchConnector,
		"uptime":      time.Since(a.startTime).Round(time.Second).String(),
	}
	if reporter, ok := a.client.(interface{ GetStatus() map[string]interface{} }); ok {
		status["upstream"] = reporter.GetStatus()
	}
	return status
}
