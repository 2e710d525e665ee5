package models

import "encoding/json"

// AnalysisRequest represents an incoming POST /api/analyze body
type AnalysisRequest struct {
	Message string `json:"message"`
}

// AnalysisResponse is what the chat relay returns on success.
// Sources and SearchResults are never nil so they always encode as arrays.
type AnalysisResponse struct {
	Analysis      string            `json:"analysis"`
	Sources       []json.RawMessage `json:"sources"`
	SearchResults []json.RawMessage `json:"searchResults"`
}

// CohereConnector enables an upstream capability such as web search
type CohereConnector struct {
	ID string `json:"id"`
}

// CohereChatRequest represents a request to the Cohere chat API
type CohereChatRequest struct {
	Message     string            `json:"message"`
	Model       string            `json:"model,omitempty"`
	Preamble    string            `json:"preamble,omitempty"`
	Connectors  []CohereConnector `json:"connectors,omitempty"`
	Temperature float64           `json:"temperature"`
}

// CohereChatResponse represents a response from the Cohere chat API.
// Documents and search results are kept raw so they are relayed unchanged.
type CohereChatResponse struct {
	ResponseID       string            `json:"response_id,omitempty"`
	Text             string            `json:"text"`
	GenerationID     string            `json:"generation_id,omitempty"`
	FinishReason     string            `json:"finish_reason,omitempty"`
	Documents        []json.RawMessage `json:"documents,omitempty"`
	SearchResults    []json.RawMessage `json:"search_results,omitempty"`
	WebSearchResults []json.RawMessage `json:"webSearchResults,omitempty"`
}

// CohereErrorResponse is the body Cohere sends with a non-2xx status
type CohereErrorResponse struct {
	Message string `json:"message"`
}
