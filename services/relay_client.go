package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"corpanalyst/models"
	"corpanalyst/utils"
)

// ErrNoCompany is returned by LookupCompany when neither lookup found a quote
var ErrNoCompany = errors.New("no company found")

// RelayClient calls the two relays the way the browser client does
type RelayClient struct {
	proxyURL     string
	assistantURL string
	httpClient   *http.Client
	logger       *utils.Logger
}

// NewRelayClient creates a client for the lookup relay at proxyURL and the
// chat relay at assistantURL. Either may be empty if unused.
func NewRelayClient(proxyURL, assistantURL string, timeout time.Duration, logger *utils.Logger) *RelayClient {
	return &RelayClient{
		proxyURL:     strings.TrimRight(proxyURL, "/"),
		assistantURL: strings.TrimRight(assistantURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

// Search asks the lookup relay about one identifier and returns the raw body
func (c *RelayClient) Search(ctx context.Context, isin string) (json.RawMessage, error) {
	requestURL := fmt.Sprintf("%s/api/yahoo-finance/search?%s", c.proxyURL, url.Values{"isin": {isin}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, "Lookup relay")
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// LookupCompany resolves an ISIN to a company. When the full identifier finds
// no company name it retries once with the trailing part of the ISIN.
func (c *RelayClient) LookupCompany(ctx context.Context, isin string) (*models.CompanyInfo, error) {
	raw, err := c.Search(ctx, isin)
	if err != nil {
		return nil, err
	}

	info, _ := ExtractCompany(raw, isin)
	if info == nil || info.CompanyName == "" {
		ticker := PotentialTicker(isin)
		c.logger.Info().
			Str("isin", isin).
			Str("ticker", ticker).
			Msg("No company found with ISIN, trying with potential ticker")

		if retryRaw, err := c.Search(ctx, ticker); err != nil {
			c.logger.Warn().Err(err).Str("ticker", ticker).Msg("Ticker lookup failed")
		} else if retryInfo, ok := ExtractCompany(retryRaw, isin); ok {
			info = retryInfo
		}
	}

	if info == nil {
		return nil, ErrNoCompany
	}
	return info, nil
}

// Analyze sends a question to the chat relay
func (c *RelayClient) Analyze(ctx context.Context, message string) (*models.AnalysisResponse, error) {
	jsonData, err := json.Marshal(models.AnalysisRequest{Message: message})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.assistantURL+"/api/analyze", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req, "Chat relay")
	if err != nil {
		return nil, err
	}

	var resp models.AnalysisResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	return &resp, nil
}

// do executes req and turns non-2xx replies into *UpstreamError
func (c *RelayClient) do(req *http.Request, service string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", strings.ToLower(service), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upstreamErr := &UpstreamError{Service: service, StatusCode: resp.StatusCode, Body: body}
		var env models.ErrorEnvelope
		if json.Unmarshal(body, &env) == nil {
			upstreamErr.Message = firstNonEmpty(env.Message, env.Details, env.Error)
		}
		return nil, upstreamErr
	}
	return body, nil
}
