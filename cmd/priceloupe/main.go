package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"priceloupe/internal/api"
	"priceloupe/internal/config"
	"priceloupe/internal/engine"
	"priceloupe/internal/observability"
	"priceloupe/internal/storage"
)

var (
	cfgFile     string
	verbose     bool
	port        int
	serpKey     string
	maxRequests int
	historyPath string
	jsonOutput  bool
)

func main() {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "priceloupe",
		Short: "PriceLoupe — multi-source price estimation for handmade goods",
		Long: `PriceLoupe estimates a fair market price for a free-text product name.

It fans out to eBay listing pages and structured search APIs under a
shared fetch budget, scores each offer title against the query, pools
plausible USD prices, and aggregates them with outlier-robust statistics
into a point estimate and a suggested price band.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(estimateCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the estimation HTTP API",
		Long:  "Start the HTTP server exposing /api/estimate, /api/health, /api/status and the metrics endpoint.",
		RunE:  runServe,
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	cmd.Flags().StringVar(&serpKey, "serpapi-key", "", "SerpAPI key (overrides config and SERPAPI_KEY)")
	cmd.Flags().IntVarP(&maxRequests, "max-requests", "m", 0, "fetch budget per estimation (overrides config)")
	cmd.Flags().StringVar(&historyPath, "history", "", "append estimation history to this JSONL file")

	return cmd
}

// runServe executes the serve command.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(cfg)

	metrics := observability.NewMetrics(logger)
	est := engine.NewFromConfig(cfg, metrics, logger)
	defer est.Close()

	history, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	if history != nil {
		defer history.Close()
	}

	logger.Info("starting server",
		"port", cfg.Server.Port,
		"max_requests", cfg.Engine.MaxTotalRequests,
		"ebay_hosts", cfg.Sources.EbayHosts,
		"serpapi_configured", cfg.Sources.SerpAPIKey != "",
		"history", cfg.Storage.Type,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := api.NewServer(cfg, est, metrics, history, logger)
	return srv.Start(ctx)
}

// estimateCmd creates the "estimate" subcommand for one-shot CLI use.
func estimateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate [product name]",
		Short: "Estimate a price from the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runEstimate,
	}

	cmd.Flags().StringVar(&serpKey, "serpapi-key", "", "SerpAPI key (overrides config and SERPAPI_KEY)")
	cmd.Flags().IntVarP(&maxRequests, "max-requests", "m", 0, "fetch budget for this estimation (overrides config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the full result as JSON")

	return cmd
}

// runEstimate executes the estimate command.
func runEstimate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(cfg)

	metrics := observability.NewMetrics(logger)
	est := engine.NewFromConfig(cfg, metrics, logger)
	defer est.Close()

	name := strings.Join(args, " ")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	result := est.Estimate(ctx, name)
	elapsed := time.Since(start)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.Message != nil {
		fmt.Printf("⚠️  %s\n", *result.Message)
		return nil
	}

	fmt.Printf("💰 Estimated price: $%.2f\n", *result.EstimatedPrice)
	fmt.Printf("   Suggested band: $%.2f – $%.2f\n", *result.SuggestedLow, *result.SuggestedHigh)
	fmt.Printf("   Samples:        %d pooled (median $%.2f, IQR $%.2f–$%.2f)\n",
		result.Stats.Count, *result.Stats.Median, *result.Stats.Q1, *result.Stats.Q3)
	fmt.Printf("   Offers:         %d relevant\n", len(result.Offers))
	fmt.Printf("   Elapsed:        %s\n", elapsed.Round(time.Millisecond))

	for i, o := range result.Offers {
		if i >= 5 {
			fmt.Printf("   … and %d more\n", len(result.Offers)-5)
			break
		}
		price := "—"
		if o.Price != nil {
			price = fmt.Sprintf("%.2f %s", *o.Price, o.Currency)
		}
		fmt.Printf("   [%.2f] %s (%s) %s\n", o.Relevance, o.Title, o.Domain, price)
	}

	return nil
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("PriceLoupe %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Server:\n")
			fmt.Printf("  Port:               %d\n", cfg.Server.Port)
			fmt.Printf("  Allowed Origins:    %s\n", strings.Join(cfg.Server.AllowedOrigins, ", "))
			fmt.Printf("\nEngine:\n")
			fmt.Printf("  Request Timeout:    %s\n", cfg.Engine.RequestTimeout)
			fmt.Printf("  Max Requests:       %d\n", cfg.Engine.MaxTotalRequests)
			fmt.Printf("  Detail Pages:       %d per source\n", cfg.Engine.MaxDetailPages)
			fmt.Printf("  Sample Target:      %d\n", cfg.Engine.SampleTarget)
			fmt.Printf("\nSources:\n")
			fmt.Printf("  eBay Hosts:         %s\n", strings.Join(cfg.Sources.EbayHosts, ", "))
			fmt.Printf("  Amazon Domain:      %s\n", cfg.Sources.AmazonDomain)
			fmt.Printf("  SerpAPI Configured: %v\n", cfg.Sources.SerpAPIKey != "")
			fmt.Printf("\nScoring:\n")
			fmt.Printf("  Listing Threshold:  %.2f\n", cfg.Scoring.ListingThreshold)
			fmt.Printf("  API Threshold:      %.2f\n", cfg.Scoring.APIThreshold)
			fmt.Printf("\nPricing:\n")
			fmt.Printf("  Reference:          %s\n", cfg.Pricing.ReferenceCurrency)
			fmt.Printf("  Plausible Window:   %.2f – %.2f\n", cfg.Pricing.MinPrice, cfg.Pricing.MaxPrice)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Type:               %s\n", cfg.Storage.Type)
			fmt.Printf("  Output Path:        %s\n", cfg.Storage.OutputPath)
			return nil
		},
	}
}

// setupLogger creates a structured logger per the logging config.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var out *os.File
	switch cfg.Logging.Output {
	case "stdout":
		out = os.Stdout
	default:
		out = os.Stderr
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Logging.Format) == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if port > 0 {
		cfg.Server.Port = port
	}
	if serpKey != "" {
		cfg.Sources.SerpAPIKey = serpKey
	}
	if maxRequests > 0 {
		cfg.Engine.MaxTotalRequests = maxRequests
	}
	if historyPath != "" {
		cfg.Storage.Type = "jsonl"
		cfg.Storage.OutputPath = historyPath
	}
}
