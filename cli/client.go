package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"corpanalyst/services"
	"corpanalyst/utils"
)

var (
	proxyURL      string
	assistantURL  string
	clientTimeout time.Duration
	outputJSON    bool
)

var isinCmd = &cobra.Command{
	Use:   "isin [code]",
	Short: "Resolve an ISIN to a company through the lookup relay",
	Long: `Looks up the company behind an ISIN. When the full identifier finds
nothing, the last nine characters are tried as a ticker.`,
	Args: cobra.ExactArgs(1),
	RunE: runISIN,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the analysis assistant a question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	isinCmd.Flags().StringVar(&proxyURL, "proxy-url", "http://localhost:3001", "base URL of the lookup relay")
	isinCmd.Flags().DurationVar(&clientTimeout, "timeout", 60*time.Second, "request timeout")
	isinCmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")

	askCmd.Flags().StringVar(&assistantURL, "assistant-url", "http://localhost:3000", "base URL of the analysis assistant")
	askCmd.Flags().DurationVar(&clientTimeout, "timeout", 60*time.Second, "request timeout")
	askCmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(isinCmd)
	rootCmd.AddCommand(askCmd)
}

func newRelayClient() *services.RelayClient {
	level := logLevel
	if level == "" {
		level = "warn"
	}
	logger := utils.NewLoggerWithOutput(level, os.Stderr)
	return services.NewRelayClient(proxyURL, assistantURL, clientTimeout, logger)
}

func runISIN(cmd *cobra.Command, args []string) error {
	isin := strings.TrimSpace(args[0])
	if isin == "" {
		return errors.New("ISIN must not be empty")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	info, err := newRelayClient().LookupCompany(ctx, isin)
	if errors.Is(err, services.ErrNoCompany) {
		cmd.Println("No company found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}

	if outputJSON {
		return printJSON(cmd, info)
	}

	name := info.CompanyName
	if name == "" {
		name = fmt.Sprintf("Company for ISIN: %s", isin)
	}
	cmd.Printf("Company: %s\n", name)
	if info.Ticker != "" {
		cmd.Printf("Ticker:  %s\n", info.Ticker)
	}
	cmd.Printf("ISIN:    %s\n", info.ISIN)
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return errors.New("question must not be empty")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	analysis, err := newRelayClient().Analyze(ctx, question)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if outputJSON {
		return printJSON(cmd, analysis)
	}

	cmd.Println(analysis.Analysis)
	if urls := services.SourceURLs(analysis.Sources, 10); len(urls) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for i, u := range urls {
			cmd.Printf("  [%d] %s\n", i+1, u)
		}
	}
	return nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
