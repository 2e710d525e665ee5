package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"corpanalyst/config"
	"corpanalyst/models"
	"corpanalyst/utils"
)

const (
	// discordMessageLimit is Discord's hard cap on message length
	discordMessageLimit = 2000
	// discordChunkSize leaves room for the continuation markers
	discordChunkSize = 1900
	// maxListedSources caps the source links appended to a reply
	maxListedSources = 5
)

// Analyzer is what the Discord front-end needs from the analyst
type Analyzer interface {
	Analyze(ctx context.Context, message string) (models.AnalysisResponse, error)
}

// channelSender is the part of the Discord session used to reply
type channelSender interface {
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordService answers analysis commands posted in Discord channels
type DiscordService struct {
	session       *discordgo.Session
	analyst       Analyzer
	commandPrefix string
	enabled       bool
	startTime     time.Time
	logger        *utils.Logger
	// paces multi-chunk replies
	limiter *rate.Limiter
}

// NewDiscordService creates a new Discord service instance.
// Without a token the service stays disabled.
func NewDiscordService(analyst Analyzer, cfg config.DiscordConfig, logger *utils.Logger) *DiscordService {
	commandPrefix := cfg.CommandPrefix
	if commandPrefix == "" {
		commandPrefix = "!analyze "
	}

	service := &DiscordService{
		analyst:       analyst,
		commandPrefix: commandPrefix,
		startTime:     time.Now(),
		logger:        logger,
		limiter:       rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}

	if cfg.Token == "" {
		logger.Info().Msg("Discord bot disabled: DISCORD_BOT_TOKEN not set")
		return service
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		logger.Error().Err(err).Msg("Error creating Discord session")
		return service
	}

	service.session = session

	session.AddHandler(func(s *discordgo.Session, event *discordgo.Ready) {
		logger.Info().
			Str("username", event.User.Username).
			Int("guilds", len(event.Guilds)).
			Msg("Discord bot is online")
	})
	session.AddHandler(service.messageCreate)
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent

	service.enabled = true
	logger.Info().Str("prefix", commandPrefix).Msg("Discord service initialized")

	return service
}

// Start opens the gateway connection
func (d *DiscordService) Start() error {
	if !d.enabled {
		return fmt.Errorf("Discord service not enabled (missing bot token)")
	}

	if err := d.session.Open(); err != nil {
		return fmt.Errorf("error opening Discord connection: %w", err)
	}

	d.logger.Info().Msgf("Discord bot started, use '%s<question>' in Discord", d.commandPrefix)
	return nil
}

// Stop closes the Discord bot connection
func (d *DiscordService) Stop() error {
	if d.session != nil {
		return d.session.Close()
	}
	return nil
}

// Run starts the bot and blocks until ctx is cancelled
func (d *DiscordService) Run(ctx context.Context) error {
	if err := d.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	d.logger.Info().Msg("Stopping Discord bot")
	return d.Stop()
}

// parseCommand returns the question after the command prefix, and whether
// the message was addressed to the bot at all
func (d *DiscordService) parseCommand(content string) (string, bool) {
	if !strings.HasPrefix(content, d.commandPrefix) {
		return "", false
	}
	return strings.TrimSpace(content[len(d.commandPrefix):]), true
}

// messageCreate handles incoming Discord messages
func (d *DiscordService) messageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	d.handleMessage(s, m)
}

// handleMessage answers one command. discordgo runs handlers on bare
// goroutines, so a panic here is contained and logged.
func (d *DiscordService) handleMessage(s channelSender, m *discordgo.MessageCreate) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error().
				Interface("panic", rec).
				Str("channel", m.ChannelID).
				Msg("Recovered from panic in Discord handler")
		}
	}()

	if m.Author == nil || m.Author.Bot {
		return
	}

	question, ok := d.parseCommand(m.Content)
	if !ok {
		return
	}
	if question == "" {
		d.sendMessage(s, m.ChannelID, fmt.Sprintf("Please provide a question after `%s`", strings.TrimSpace(d.commandPrefix)))
		return
	}

	s.ChannelTyping(m.ChannelID)

	d.logger.Info().
		Str("user", m.Author.Username).
		Str("channel", m.ChannelID).
		Str("question", utils.Preview(question)).
		Msg("Discord analysis request")

	analysis, err := d.analyst.Analyze(context.Background(), question)
	if err != nil {
		d.logger.Error().Err(err).Msg("Discord analysis failed")
		d.sendMessage(s, m.ChannelID, "Sorry, the analysis failed. Please try again later.")
		return
	}

	d.sendMessage(s, m.ChannelID, formatAnalysis(analysis))
}

// formatAnalysis renders the analysis followed by up to maxListedSources source links
func formatAnalysis(analysis models.AnalysisResponse) string {
	var b strings.Builder
	b.WriteString(analysis.Analysis)

	urls := SourceURLs(analysis.Sources, maxListedSources)
	if len(urls) > 0 {
		b.WriteString("\n\nSources:")
		for _, u := range urls {
			b.WriteString("\n- <")
			b.WriteString(u)
			b.WriteString(">")
		}
	}
	return b.String()
}

// SourceURLs collects up to limit distinct "url" fields from raw source documents
func SourceURLs(sources []json.RawMessage, limit int) []string {
	seen := make(map[string]bool)
	var urls []string
	for _, raw := range sources {
		var doc struct {
			URL string `json:"url"`
		}
		if json.Unmarshal(raw, &doc) != nil || doc.URL == "" || seen[doc.URL] {
			continue
		}
		seen[doc.URL] = true
		urls = append(urls, doc.URL)
		if len(urls) == limit {
			break
		}
	}
	return urls
}

// sendMessage sends a message to Discord, handling length limits
func (d *DiscordService) sendMessage(s channelSender, channelID, message string) {
	if len(message) <= discordMessageLimit {
		if _, err := s.ChannelMessageSend(channelID, message); err != nil {
			d.logger.Error().Err(err).Msg("Error sending Discord message")
		}
		return
	}

	chunks := splitMessage(message, discordChunkSize)
	for i, chunk := range chunks {
		if i > 0 {
			chunk = fmt.Sprintf("...continued:\n%s", chunk)
		}
		if i < len(chunks)-1 {
			chunk = chunk + "\n..."
		}

		if err := d.limiter.Wait(context.Background()); err != nil {
			d.logger.Error().Err(err).Msg("Discord send pacing failed")
			return
		}
		if _, err := s.ChannelMessageSend(channelID, chunk); err != nil {
			d.logger.Error().Err(err).Msg("Error sending Discord message chunk")
		}
	}
}

// splitMessage splits a message into chunks respecting word boundaries
func splitMessage(message string, maxLength int) []string {
	if len(message) <= maxLength {
		return []string{message}
	}

	var chunks []string
	for len(message) > maxLength {
		// Never cut inside a multi-byte rune
		splitIndex := maxLength
		for splitIndex > 0 && !utf8.RuneStart(message[splitIndex]) {
			splitIndex--
		}
		if splitIndex == 0 {
			_, splitIndex = utf8.DecodeRuneInString(message)
		}

		// Try to split at a word boundary
		if spaceIndex := strings.LastIndex(message[:splitIndex], " "); spaceIndex > maxLength/2 {
			splitIndex = spaceIndex
		}

		chunks = append(chunks, message[:splitIndex])
		message = strings.TrimPrefix(message[splitIndex:], " ")
	}

	if len(message) > 0 {
		chunks = append(chunks, message)
	}

	return chunks
}

// IsEnabled returns whether the Discord service is enabled
func (d *DiscordService) IsEnabled() bool {
	return d.enabled
}

// GetStatus returns the current status of the Discord service
func (d *DiscordService) GetStatus() models.DiscordStatus {
	status := models.DiscordStatus{
		Enabled:       d.enabled,
		CommandPrefix: d.commandPrefix,
		Uptime:        time.Since(d.startTime).Round(time.Second).String(),
	}

	switch {
	case d.enabled && d.session != nil && d.session.State != nil && d.session.State.User != nil:
		status.Status = "connected"
		status.User = &models.DiscordUser{
			ID:       d.session.State.User.ID,
			Username: d.session.State.User.Username,
		}
		status.Guilds = len(d.session.State.Guilds)
	case d.enabled:
		status.Status = "initialized_not_started"
	default:
		status.Status = "disabled"
	}

	return status
}
