package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"
)

type Config struct {
	// HTTP server
	Addr           string   `json:"addr"`
	RequestTimeout Duration `json:"request_timeout"`

	// External collaborators
	Slack  SlackConfig  `json:"slack"`
	OpenAI OpenAIConfig `json:"openai"`
	Google GoogleConfig `json:"google"`

	// Action-button links in Slack notifications
	Links LinkConfig `json:"links"`

	// Operational
	DryRun           bool   `json:"dry_run"`
	Verbose          bool   `json:"verbose"`
	LogFormat        string `json:"log_format"`
	CheckConnections bool   `json:"-"`
	ShowVersion      bool   `json:"-"`
}

type SlackConfig struct {
	BotToken      string   `json:"bot_token"`
	Channel       string   `json:"channel"`
	Timeout       Duration `json:"timeout"`
	RetryAttempts int      `json:"retry_attempts"`
}

type OpenAIConfig struct {
	APIKey      string   `json:"api_key"`
	Model       string   `json:"model"`
	BaseURL     string   `json:"base_url"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature float64  `json:"temperature"`
	Timeout     Duration `json:"timeout"`
}

type GoogleConfig struct {
	CredentialsFile string `json:"credentials_file"` // service account JSON key
	GmailUser       string `json:"gmail_user"`       // mailbox to send from / fetch as
	LogDocID        string `json:"log_doc_id"`       // Google Doc for ticket logs; empty disables logging
}

type LinkConfig struct {
	ReplyBaseURL        string `json:"reply_base_url"`
	ConversationBaseURL string `json:"conversation_base_url"`
}

func ParseFlags() *Config {
	cfg := &Config{}

	// Config file flag
	configFile := flag.String("config-file", "", "Path to JSON configuration file")

	// HTTP flags
	flag.StringVar(&cfg.Addr, "addr", ":8080", "HTTP listen address")
	flag.DurationVar(&cfg.RequestTimeout.Duration, "request-timeout", 60*time.Second, "Per-request pipeline timeout")

	// Slack flags
	flag.StringVar(&cfg.Slack.BotToken, "slack-token", "", "Slack bot token (or SLACK_BOT_TOKEN env var)")
	flag.StringVar(&cfg.Slack.Channel, "slack-channel", "#support", "Slack channel for ticket notifications")
	flag.DurationVar(&cfg.Slack.Timeout.Duration, "slack-timeout", 10*time.Second, "Slack request timeout")
	flag.IntVar(&cfg.Slack.RetryAttempts, "slack-retry-attempts", 3, "Slack retry attempts")

	// OpenAI flags
	flag.StringVar(&cfg.OpenAI.APIKey, "openai-key", "", "OpenAI API key (or OPENAI_API_KEY env var)")
	flag.StringVar(&cfg.OpenAI.Model, "openai-model", "gpt-4o-mini", "OpenAI model for reply generation")
	flag.StringVar(&cfg.OpenAI.BaseURL, "openai-base-url", "https://api.openai.com/v1", "OpenAI API base URL")
	flag.IntVar(&cfg.OpenAI.MaxTokens, "openai-max-tokens", 500, "Maximum completion tokens")
	flag.Float64Var(&cfg.OpenAI.Temperature, "openai-temperature", 0.7, "Sampling temperature")
	flag.DurationVar(&cfg.OpenAI.Timeout.Duration, "openai-timeout", 30*time.Second, "OpenAI request timeout")

	// Google flags
	flag.StringVar(&cfg.Google.CredentialsFile, "google-credentials", "", "Service account key file (or GOOGLE_APPLICATION_CREDENTIALS env var)")
	flag.StringVar(&cfg.Google.GmailUser, "gmail-user", "", "Mailbox address used to fetch and send mail")
	flag.StringVar(&cfg.Google.LogDocID, "log-doc-id", "", "Google Doc ID for the ticket log (empty disables doc logging)")

	// Link flags
	flag.StringVar(&cfg.Links.ReplyBaseURL, "reply-base-url", "", "Base URL for the Reply button in Slack")
	flag.StringVar(&cfg.Links.ConversationBaseURL, "conversation-base-url", "", "Base URL for the Full Conversation button in Slack")

	// Operational flags
	flag.BoolVar(&cfg.DryRun, "dry-run", false, "Run the pipeline but log outbound email and chat instead of sending")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Enable verbose logging")
	flag.StringVar(&cfg.LogFormat, "log-format", "text", "Log format (text or json)")
	flag.BoolVar(&cfg.CheckConnections, "check-connections", false, "Test connections and exit")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "Print version and exit")

	flag.Parse()

	// Load config file if specified
	if *configFile != "" {
		if err := cfg.LoadFromFile(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config file: %v\n", err)
			os.Exit(1)
		}
	}

	cfg.applyEnvFallbacks()

	return cfg
}

// applyEnvFallbacks fills secrets from the environment when neither a flag
// nor the config file supplied them.
func (c *Config) applyEnvFallbacks() {
	if c.Slack.BotToken == "" {
		c.Slack.BotToken = os.Getenv("SLACK_BOT_TOKEN")
	}
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Google.CredentialsFile == "" {
		c.Google.CredentialsFile = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
}

func (c *Config) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (c *Config) SaveToFile(filename string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("--addr is required")
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("--log-format must be 'text' or 'json'")
	}

	// Outbound credentials are only mandatory when we actually send
	if c.Slack.BotToken == "" && !c.DryRun && !c.ShowVersion {
		return fmt.Errorf("--slack-token is required (or set SLACK_BOT_TOKEN)")
	}
	if c.Slack.Channel == "" {
		return fmt.Errorf("--slack-channel is required")
	}
	if c.OpenAI.APIKey == "" && !c.DryRun && !c.ShowVersion {
		return fmt.Errorf("--openai-key is required (or set OPENAI_API_KEY)")
	}

	if c.OpenAI.MaxTokens <= 0 {
		return fmt.Errorf("--openai-max-tokens must be positive")
	}
	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
		return fmt.Errorf("--openai-temperature must be between 0 and 2")
	}

	// Gmail sending needs both a key file and a mailbox to impersonate
	if c.Google.CredentialsFile != "" && c.Google.GmailUser == "" {
		return fmt.Errorf("--gmail-user is required when --google-credentials is set")
	}

	if err := validateBaseURL("--reply-base-url", c.Links.ReplyBaseURL); err != nil {
		return err
	}
	if err := validateBaseURL("--conversation-base-url", c.Links.ConversationBaseURL); err != nil {
		return err
	}

	return nil
}

func validateBaseURL(name, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL", name)
	}
	return nil
}
