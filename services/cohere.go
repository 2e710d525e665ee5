package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"corpanalyst/config"
	"corpanalyst/models"
)

// UpstreamError is returned when an upstream API answers with a non-2xx status
type UpstreamError struct {
	Service    string
	StatusCode int
	Message    string
	Body       []byte
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s API error %d: %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API error %d", e.Service, e.StatusCode)
}

// HTTPStatus reports the upstream status so the error boundary can reuse it
func (e *UpstreamError) HTTPStatus() int {
	return e.StatusCode
}

// CohereService handles communication with the Cohere chat API
type CohereService struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewCohereService creates a new Cohere service instance.
// Deadlines come from the caller's context, so the client has no timeout of its own.
func NewCohereService(cfg config.CohereConfig) *CohereService {
	return &CohereService{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		httpClient: &http.Client{},
	}
}

// Chat sends one chat request. Cancelling ctx aborts the outbound call.
func (c *CohereService) Chat(ctx context.Context, request models.CohereChatRequest) (*models.CohereChatResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("Cohere API key not set")
	}
	if request.Model == "" {
		request.Model = c.model
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request to Cohere: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upstreamErr := &UpstreamError{
			Service:    "Cohere",
			StatusCode: resp.StatusCode,
			Body:       body,
		}
		var errResp models.CohereErrorResponse
		if json.Unmarshal(body, &errResp) == nil {
			upstreamErr.Message = errResp.Message
		}
		return nil, upstreamErr
	}

	var chatResp models.CohereChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &chatResp, nil
}

// IsAvailable checks if the Cohere service has a credential
func (c *CohereService) IsAvailable() bool {
	return c.apiKey != ""
}

// GetModel returns the current model
func (c *CohereService) GetModel() string {
	return c.model
}

// GetStatus returns the status of the Cohere service
func (c *CohereService) GetStatus() map[string]interface{} {
	status := map[string]interface{}{
		"base_url": c.baseURL,
		"model":    c.model,
	}

	if c.IsAvailable() {
		status["status"] = "available"
		// Mask API key
		if len(c.apiKey) > 8 {
			status["api_key"] = c.apiKey[:4] + "..." + c.apiKey[len(c.apiKey)-4:]
		} else {
			status["api_key"] = "***"
		}
	} else {
		status["status"] = "unavailable"
		status["error"] = "COHERE_API_KEY not set"
	}

	return status
}
