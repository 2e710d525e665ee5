package models

// Quote is one entry of the Yahoo Finance search response.
// The upstream returns it under either "quotes" or "results"; both carry the same fields.
type Quote struct {
	Symbol      string `json:"symbol"`
	LongName    string `json:"longname"`
	ShortName   string `json:"shortname"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Title       string `json:"title"`
	Exchange    string `json:"exchange,omitempty"`
	QuoteType   string `json:"quoteType,omitempty"`
}

// SearchResponse is the subset of the Yahoo Finance search body the client reads
type SearchResponse struct {
	Quotes  []Quote `json:"quotes"`
	Results []Quote `json:"results"`
}

// CompanyInfo is the company extracted from a lookup response
type CompanyInfo struct {
	CompanyName string `json:"company_name"`
	Ticker      string `json:"ticker"`
	ISIN        string `json:"isin"`
}

// LinkPreview represents the metadata shown for a source URL
type LinkPreview struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	URL         string `json:"url"`
}
