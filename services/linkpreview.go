package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"corpanalyst/config"
	"corpanalyst/models"
)

// LinkPreviewService fetches a page and reads its title, description and image
type LinkPreviewService struct {
	userAgent  string
	timeout    time.Duration
	maxBytes   int64
	httpClient *http.Client
}

// NewLinkPreviewService creates a new link preview service instance
func NewLinkPreviewService(cfg config.PreviewConfig) *LinkPreviewService {
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 2 << 20
	}
	return &LinkPreviewService{
		userAgent:  cfg.UserAgent,
		timeout:    cfg.GetTimeout(),
		maxBytes:   maxBytes,
		httpClient: &http.Client{},
	}
}

// ValidatePreviewURL accepts absolute http(s) URLs only
func ValidatePreviewURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("URL has no host")
	}
	return parsed, nil
}

// Preview fetches pageURL and extracts its preview metadata
func (s *LinkPreviewService) Preview(ctx context.Context, pageURL string) (*models.LinkPreview, error) {
	parsed, err := ValidatePreviewURL(pageURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create preview request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("preview request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamError{
			Service:    "Link preview",
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("received status code %d for URL: %s", resp.StatusCode, parsed.String()),
			Body:       body,
		}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, s.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	return extractPreview(doc, resp.Request.URL), nil
}

// extractPreview prefers OpenGraph tags and falls back to standard HTML metadata
func extractPreview(doc *goquery.Document, pageURL *url.URL) *models.LinkPreview {
	preview := &models.LinkPreview{
		Title:       firstNonEmpty(metaContent(doc, `meta[property="og:title"]`), metaContent(doc, `meta[name="twitter:title"]`), doc.Find("title").First().Text()),
		Description: firstNonEmpty(metaContent(doc, `meta[property="og:description"]`), metaContent(doc, `meta[name="description"]`)),
		URL:         pageURL.String(),
	}

	if canonical := metaContent(doc, `meta[property="og:url"]`); canonical != "" {
		preview.URL = resolveURL(pageURL, canonical)
	}

	if image := firstNonEmpty(metaContent(doc, `meta[property="og:image"]`), metaContent(doc, `meta[name="twitter:image"]`)); image != "" {
		preview.Image = resolveURL(pageURL, image)
	}

	return preview
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.Join(strings.Fields(v), " "); v != "" {
			return v
		}
	}
	return ""
}

// resolveURL makes relative references absolute against the page URL
func resolveURL(base *url.URL, ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if !parsed.IsAbs() {
		parsed = base.ResolveReference(parsed)
	}
	return parsed.String()
}
