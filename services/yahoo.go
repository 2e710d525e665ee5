package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"corpanalyst/config"
)

// YahooFinanceService relays identifier searches to the Yahoo Finance search API
type YahooFinanceService struct {
	baseURL     string
	quotesCount int
	userAgent   string
	timeout     time.Duration
	httpClient  *http.Client
}

// NewYahooFinanceService creates a new lookup service instance
func NewYahooFinanceService(cfg config.YahooConfig) *YahooFinanceService {
	return &YahooFinanceService{
		baseURL:     cfg.BaseURL,
		quotesCount: cfg.QuotesCount,
		userAgent:   cfg.UserAgent,
		timeout:     cfg.GetTimeout(),
		httpClient:  &http.Client{},
	}
}

// Search performs one lookup and returns the upstream JSON body unchanged.
// Non-2xx replies come back as *UpstreamError carrying the status and body.
func (s *YahooFinanceService) Search(ctx context.Context, query string) (json.RawMessage, error) {
	cleanQuery := strings.TrimSpace(query)
	if cleanQuery == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := url.Values{}
	params.Add("q", cleanQuery)
	params.Add("quotesCount", strconv.Itoa(s.quotesCount))
	params.Add("newsCount", "0")
	params.Add("listsCount", "0")
	params.Add("enableFuzzyQuery", "true")

	requestURL := fmt.Sprintf("%s?%s", s.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}

	// The endpoint rejects requests without a browser user agent
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{
			Service:    "Yahoo Finance",
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("search response is not valid JSON")
	}

	return json.RawMessage(body), nil
}

// GetStatus returns the status of the lookup service
func (s *YahooFinanceService) GetStatus() map[string]interface{} {
	return map[string]interface{}{
		"base_url":     s.baseURL,
		"quotes_count": s.quotesCount,
		"timeout":      s.timeout.String(),
	}
}
