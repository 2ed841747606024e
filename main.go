package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voicetel/support-autoresponder/internal/ai"
	"github.com/voicetel/support-autoresponder/internal/config"
	"github.com/voicetel/support-autoresponder/internal/gdocs"
	"github.com/voicetel/support-autoresponder/internal/gmail"
	"github.com/voicetel/support-autoresponder/internal/knowledge"
	"github.com/voicetel/support-autoresponder/internal/logging"
	"github.com/voicetel/support-autoresponder/internal/metrics"
	"github.com/voicetel/support-autoresponder/internal/notifier"
	"github.com/voicetel/support-autoresponder/internal/pipeline"
	"github.com/voicetel/support-autoresponder/internal/server"
	"github.com/voicetel/support-autoresponder/internal/slack"
)

// Version information - these will be set at build time via ldflags
var (
	Version   = "dev"     // Version number
	GitCommit = "unknown" // Git commit hash
	BuildDate = "unknown" // Build date
	GoVersion = "unknown" // Go version used to build
)

func main() {
	// Parse command line flags
	cfg := config.ParseFlags()

	// Check for version flag before other validation
	if cfg.ShowVersion {
		printVersion()
		os.Exit(0)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Set up logging
	logger := logging.NewLogger(cfg.LogFormat, cfg.Verbose, nil)
	logger.SetAsDefault()

	if cfg.Verbose {
		logger.Info("Starting Support Autoresponder",
			"version", Version,
			"git_commit", GitCommit,
			"addr", cfg.Addr,
			"dry_run", cfg.DryRun,
		)
	}

	slackClient := slack.NewClient(cfg.Slack)
	aiClient := ai.NewClient(cfg.OpenAI)

	// Check connections mode
	if cfg.CheckConnections {
		if err := checkConnections(slackClient, aiClient, logger); err != nil {
			logger.LogError("Connection check failed", err)
			os.Exit(1)
		}
		fmt.Println("All connections successful!")
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Gmail and Docs clients are optional; the pipeline degrades to
	// skipping their steps when they are absent.
	var mail pipeline.MailSender
	var fetcher server.MessageFetcher
	if cfg.Google.CredentialsFile != "" && cfg.Google.GmailUser != "" {
		gmailClient, err := gmail.NewClient(ctx, cfg.Google.CredentialsFile, cfg.Google.GmailUser)
		if err != nil {
			logger.LogError("Failed to create gmail client", err)
			os.Exit(1)
		}
		mail = gmailClient
		fetcher = gmailClient
	} else {
		logger.Info("Gmail not configured; email sending and push webhooks disabled")
	}

	var docsAppender pipeline.DocAppender
	if cfg.Google.CredentialsFile != "" && cfg.Google.LogDocID != "" {
		docsClient, err := gdocs.NewClient(ctx, cfg.Google.CredentialsFile, cfg.Google.LogDocID)
		if err != nil {
			logger.LogError("Failed to create docs client", err)
			os.Exit(1)
		}
		docsAppender = docsClient
	} else {
		logger.Info("Ticket log document not configured; doc logging disabled")
	}

	m := metrics.New()
	gen := ai.NewGenerator(aiClient, logger)
	kb := knowledge.NewStore(logger)
	chat := notifier.New(slackClient, cfg.Slack.Channel, cfg.Links, logger, cfg.DryRun)
	pipe := pipeline.New(mail, docsAppender, gen, kb, chat, m, logger, cfg.DryRun)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.New(pipe, fetcher, m, logger, cfg.RequestTimeout.Duration).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.LogError("Shutdown failed", err)
			os.Exit(1)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.LogError("Server failed", err)
			os.Exit(1)
		}
	}
}

func printVersion() {
	fmt.Printf("Support Autoresponder\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Go Version: %s\n", GoVersion)
}

func checkConnections(slackClient *slack.Client, aiClient *ai.Client, logger *logging.Logger) error {
	logger.Info("Checking connections...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Testing Slack token...")
	if err := slackClient.AuthTest(ctx); err != nil {
		return fmt.Errorf("Slack auth test failed: %w", err)
	}
	logger.Info("Slack token valid")

	logger.Info("Testing OpenAI API key...")
	if err := aiClient.Ping(ctx); err != nil {
		return fmt.Errorf("OpenAI API test failed: %w", err)
	}
	logger.Info("OpenAI API key valid")

	return nil
}
