package cli

import (
	"github.com/spf13/cobra"

	"corpanalyst/config"
	"corpanalyst/controllers"
	"corpanalyst/server"
	"corpanalyst/services"
)

var assistantDiscord bool

var assistantCmd = &cobra.Command{
	Use:   "assistant",
	Short: "Run the analysis assistant relay",
	Long: `Runs the chat relay. POST /api/analyze forwards a question to Cohere
with web search enabled and returns the analysis with its sources.
Requires COHERE_API_KEY. Listens on PORT, default 3000.`,
	Args: cobra.NoArgs,
	RunE: runAssistant,
}

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Run the Yahoo Finance lookup relay",
	Long: `Runs the lookup relay. GET /api/yahoo-finance/search?isin= forwards
the identifier to Yahoo Finance and returns the response unchanged.
GET /api/link-preview?url= returns preview metadata for a source link.
Listens on PORT, default 3001.`,
	Args: cobra.NoArgs,
	RunE: runProxy,
}

func init() {
	assistantCmd.Flags().BoolVar(&assistantDiscord, "discord", false, "also answer questions in Discord (requires DISCORD_BOT_TOKEN)")
	rootCmd.AddCommand(assistantCmd)
	rootCmd.AddCommand(proxyCmd)
}

func runAssistant(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(config.DefaultAssistantPort)
	if err != nil {
		return err
	}
	if err := cfg.ValidateAssistant(); err != nil {
		logger.Error().Err(err).Msg("Cannot start analysis assistant")
		return err
	}

	cohere := services.NewCohereService(cfg.Cohere)
	analyst := services.NewAnalyst(cohere, cfg.Cohere, logger.Named("analyst"))

	var discord *services.DiscordService
	if assistantDiscord {
		discord = services.NewDiscordService(analyst, cfg.Discord, logger.Named("discord"))
		if !discord.IsEnabled() {
			logger.Warn().Msg("Discord requested but not configured (missing DISCORD_BOT_TOKEN)")
		}
	}

	srv := server.New(cfg, server.Options{
		Name:         controllers.AssistantService,
		FailureTitle: controllers.AnalysisFailureTitle,
	}, logger.Named("http"))
	controllers.NewAssistantController(analyst, discord, logger.Named(controllers.AssistantService)).RegisterRoutes(srv)

	logger.Info().
		Str("addr", cfg.Server.Addr()).
		Str("model", cohere.GetModel()).
		Msg("Starting analysis assistant: GET /health, POST /api/analyze")

	return serve(cmd.Context(), srv, cfg.Server.GetShutdownTimeout(), logger, discord)
}

func runProxy(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(config.DefaultProxyPort)
	if err != nil {
		return err
	}

	srv := server.New(cfg, server.Options{
		Name:         controllers.ProxyService,
		FailureTitle: controllers.LookupFailureTitle,
	}, logger.Named("http"))
	controllers.NewProxyController(
		services.NewYahooFinanceService(cfg.Yahoo),
		services.NewLinkPreviewService(cfg.Preview),
		logger.Named(controllers.ProxyService),
	).RegisterRoutes(srv)

	logger.Info().
		Str("addr", cfg.Server.Addr()).
		Msg("Starting lookup proxy: GET /health, GET /api/yahoo-finance/search, GET /api/link-preview")

	return serve(cmd.Context(), srv, cfg.Server.GetShutdownTimeout(), logger, nil)
}
