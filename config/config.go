package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
)

// Config holds everything the bot needs at process start. Nothing is reconfigured at runtime.
type Config struct {
	Telegram   TelegramConfig `json:"telegram"`
	LLM        *LLMConfig     `json:"llm,omitempty"`
	Fetch      FetchConfig    `json:"fetch"`
	Post       PostConfig     `json:"post"`
	ServerAddr string         `json:"server_addr,omitempty"`
	Log        LogConfig      `json:"log"`
}

// TelegramConfig identifies the bot, the single operator and the broadcast channel.
type TelegramConfig struct {
	Token         string `json:"token"`
	OperatorID    int64  `json:"operator_id"`
	ChannelID     string `json:"channel_id"`
	WebhookURL    string `json:"webhook_url,omitempty"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// LLMConfig selects the text and image model backend.
type LLMConfig struct {
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	ImageModel string `json:"image_model,omitempty"`
	APIKey     string `json:"api_key,omitempty"`
	BaseURL    string `json:"base_url,omitempty"`
}

// FetchConfig controls how source pages are downloaded.
type FetchConfig struct {
	UserAgents       []string `json:"user_agents,omitempty"`
	Referer          string   `json:"referer,omitempty"`
	AcceptLanguage   string   `json:"accept_language,omitempty"`
	ArticleTimeout   Duration `json:"article_timeout,omitempty"`
	ImageTimeout     Duration `json:"image_timeout,omitempty"`
	MaxResponseBytes int64    `json:"max_response_bytes,omitempty"`
}

// PostConfig holds the post shape and publishing knobs.
type PostConfig struct {
	CaptionBudget   int      `json:"caption_budget,omitempty"`
	MinManualLength int      `json:"min_manual_length,omitempty"`
	ChannelName     string   `json:"channel_name,omitempty"`
	Language        string   `json:"language,omitempty"`
	PublishDelay    Duration `json:"publish_delay,omitempty"`
	// ShortTextReply chooses between an explanatory reply and silently dropping
	// pasted text below MinManualLength.
	ShortTextReply *bool `json:"short_text_reply,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level,omitempty"`
	Pretty bool   `json:"pretty,omitempty"`
}

const (
	DefaultCaptionBudget   = 800
	DefaultMinManualLength = 500
	DefaultArticleTimeout  = 15 * time.Second
	DefaultImageTimeout    = 10 * time.Second
	DefaultPublishDelay    = 1500 * time.Millisecond
	DefaultMaxResponseSize = 5 << 20
	DefaultReferer         = "https://www.google.com/"
	DefaultAcceptLanguage  = "en-US,en;q=0.9,ru;q=0.8"
	DefaultServerAddr      = ":8080"

	// CaptionLimit is Telegram's photo caption limit. CaptionReserve is kept free for
	// the continuation marker and the draft preview wrapper.
	CaptionLimit     = 1024
	CaptionReserve   = 128
	MaxCaptionBudget = CaptionLimit - CaptionReserve
)

// DefaultUserAgents is the rotation pool used when the config does not name one.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
}

// Duration accepts either a Go duration string ("15s") or a number of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("duration must be a string or number of seconds: %s", string(b))
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// LoadConfig reads a JSON (comments and trailing commas allowed) config from disk, applies
// environment overrides and defaults, and validates the result. A missing file is not an
// error when the environment supplies everything.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("reading %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv maps the deployment variables onto the config; set variables win over the file.
func (c *Config) applyEnv() error {
	c.Telegram.Token = getEnv("TELEGRAM_BOT_TOKEN", c.Telegram.Token)
	c.Telegram.ChannelID = getEnv("CHANNEL_ID", c.Telegram.ChannelID)
	c.Telegram.WebhookURL = getEnv("WEBHOOK_URL", c.Telegram.WebhookURL)
	c.Telegram.WebhookSecret = getEnv("WEBHOOK_SECRET", c.Telegram.WebhookSecret)
	if v := os.Getenv("ADMIN_ID"); v != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("ADMIN_ID must be a numeric telegram user id: %w", err)
		}
		c.Telegram.OperatorID = id
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if c.LLM == nil {
			c.LLM = &LLMConfig{}
		}
		c.LLM.APIKey = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.ServerAddr = ":" + v
	}
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	return nil
}

func (c *Config) applyDefaults() {
	if c.LLM == nil {
		c.LLM = &LLMConfig{}
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o"
	}
	if c.LLM.ImageModel == "" {
		c.LLM.ImageModel = "dall-e-3"
	}
	if len(c.Fetch.UserAgents) == 0 {
		c.Fetch.UserAgents = DefaultUserAgents
	}
	if c.Fetch.Referer == "" {
		c.Fetch.Referer = DefaultReferer
	}
	if c.Fetch.AcceptLanguage == "" {
		c.Fetch.AcceptLanguage = DefaultAcceptLanguage
	}
	if c.Fetch.ArticleTimeout <= 0 {
		c.Fetch.ArticleTimeout = Duration(DefaultArticleTimeout)
	}
	if c.Fetch.ImageTimeout <= 0 {
		c.Fetch.ImageTimeout = Duration(DefaultImageTimeout)
	}
	if c.Fetch.MaxResponseBytes <= 0 {
		c.Fetch.MaxResponseBytes = DefaultMaxResponseSize
	}
	if c.Post.CaptionBudget <= 0 {
		c.Post.CaptionBudget = DefaultCaptionBudget
	}
	if c.Post.MinManualLength <= 0 {
		c.Post.MinManualLength = DefaultMinManualLength
	}
	if c.Post.PublishDelay <= 0 {
		c.Post.PublishDelay = Duration(DefaultPublishDelay)
	}
	if c.Post.ShortTextReply == nil {
		reply := true
		c.Post.ShortTextReply = &reply
	}
	if c.Post.ChannelName == "" {
		c.Post.ChannelName = "Event Horizon"
	}
	if c.Post.Language == "" {
		c.Post.Language = "Russian"
	}
	if c.ServerAddr == "" {
		c.ServerAddr = DefaultServerAddr
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate reports the first missing required setting.
func (c Config) Validate() error {
	var missing []string
	if c.Telegram.Token == "" {
		missing = append(missing, "telegram.token (TELEGRAM_BOT_TOKEN)")
	}
	if c.Telegram.OperatorID == 0 {
		missing = append(missing, "telegram.operator_id (ADMIN_ID)")
	}
	if c.Telegram.ChannelID == "" {
		missing = append(missing, "telegram.channel_id (CHANNEL_ID)")
	}
	if c.LLM == nil || (c.LLM.APIKey == "" && c.LLM.Provider != "mock") {
		missing = append(missing, "llm.api_key (OPENAI_API_KEY)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config incomplete, missing: %s", strings.Join(missing, ", "))
	}
	if c.Post.CaptionBudget > MaxCaptionBudget {
		return fmt.Errorf("post.caption_budget %d exceeds %d (telegram's %d character caption limit minus %d for markers)",
			c.Post.CaptionBudget, MaxCaptionBudget, CaptionLimit, CaptionReserve)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
