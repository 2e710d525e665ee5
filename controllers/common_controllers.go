package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"corpanalyst/models"
	"corpanalyst/server"
	"corpanalyst/services"
	"corpanalyst/utils"
)

// Service names reported by /health
const (
	AssistantService = "analysis-assistant"
	ProxyService     = "yahoo-finance-proxy"
)

// Analyzer produces an analysis for one message
type Analyzer interface {
	Analyze(ctx context.Context, message string) (models.AnalysisResponse, error)
	Timeout() time.Duration
}

// Searcher looks up an identifier and returns the upstream body unchanged
type Searcher interface {
	Search(ctx context.Context, query string) (json.RawMessage, error)
}

// StatusReporter is implemented by dependencies that describe themselves in /health
type StatusReporter interface {
	GetStatus() map[string]interface{}
}

// Previewer extracts preview metadata for a URL
type Previewer interface {
	Preview(ctx context.Context, pageURL string) (*models.LinkPreview, error)
}

// Controller holds the handlers of one relay. Dependencies a relay does not
// serve are left nil and their routes are not registered.
type Controller struct {
	service        string
	analyst        Analyzer
	lookup         Searcher
	previews       Previewer
	discordService *services.DiscordService
	logger         *utils.Logger
	now            func() time.Time
}

// NewAssistantController creates the chat relay controller.
// discord may be nil when the Discord front-end is not configured.
func NewAssistantController(analyst Analyzer, discord *services.DiscordService, logger *utils.Logger) *Controller {
	return &Controller{
		service:        AssistantService,
		analyst:        analyst,
		discordService: discord,
		logger:         logger,
		now:            time.Now,
	}
}

// NewProxyController creates the lookup relay controller
func NewProxyController(lookup Searcher, previews Previewer, logger *utils.Logger) *Controller {
	return &Controller{
		service:  ProxyService,
		lookup:   lookup,
		previews: previews,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterRoutes adds the controller's endpoints to s
func (c *Controller) RegisterRoutes(s *server.Server) {
	s.Handle("/health", c.HealthHandler, http.MethodGet)

	if c.analyst != nil {
		s.Handle("/api/analyze", c.AnalyzeHandler, http.MethodPost)
	}
	if c.lookup != nil {
		s.Handle("/api/yahoo-finance/search", c.LookupHandler, http.MethodGet)
	}
	if c.previews != nil {
		s.Handle("/api/link-preview", c.LinkPreviewHandler, http.MethodGet)
	}
}

// HealthHandler reports that the relay is up. It never calls an upstream.
func (c *Controller) HealthHandler(w http.ResponseWriter, r *http.Request) error {
	health := models.HealthResponse{
		Status:    models.StatusOK,
		Message:   "Server is running",
		Service:   c.service,
		Timestamp: models.FormatTimestamp(c.now()),
	}

	statuses := map[string]interface{}{}
	if reporter, ok := c.analyst.(StatusReporter); ok {
		statuses["analyst"] = reporter.GetStatus()
	}
	if reporter, ok := c.lookup.(StatusReporter); ok {
		statuses["yahoo_finance"] = reporter.GetStatus()
	}
	if len(statuses) > 0 {
		health.Services = statuses
	}

	if c.discordService != nil {
		status := c.discordService.GetStatus()
		health.Discord = &status
	}

	server.WriteJSON(w, http.StatusOK, health)
	return nil
}
