// Package config loads msgbar settings from a config file, an optional .env
// file and MSGBAR_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "MSGBAR"

type Config struct {
	MaxLineChars               int           `mapstructure:"max_line_chars"`
	MaxGroupSearchResults      int           `mapstructure:"max_group_search_results"`
	MaxGroupParticipantDisplay int           `mapstructure:"max_group_participant_display"`
	TimestampFontSize          int           `mapstructure:"timestamp_font_size"`
	FetchTimeout               time.Duration `mapstructure:"fetch_timeout"`
	// Sources lists enabled source tags in display order.
	Sources []string `mapstructure:"sources"`

	Store  StoreConfig  `mapstructure:"store"`
	Notify NotifyConfig `mapstructure:"notify"`
	Log    LogConfig    `mapstructure:"log"`
	Text   TextConfig   `mapstructure:"text"`
	Reddit RedditConfig `mapstructure:"reddit"`
	Slack  SlackConfig  `mapstructure:"slack"`
	Gmail  GmailConfig  `mapstructure:"gmail"`

	// Dir is the directory the config was resolved from.
	Dir string `mapstructure:"-"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
}

type NotifyConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	StrictSenders bool `mapstructure:"strict_senders"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type TextConfig struct {
	Username    string `mapstructure:"username"`
	ChatDB      string `mapstructure:"chat_db"`
	ContactsDir string `mapstructure:"contacts_dir"`
	// MaxPreviewBytes caps the size of image attachments rendered inline.
	MaxPreviewBytes int64 `mapstructure:"max_preview_bytes"`
}

type RedditAccount struct {
	Name         string `mapstructure:"name"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
}

type RedditConfig struct {
	Accounts  []RedditAccount `mapstructure:"accounts"`
	UserAgent string          `mapstructure:"user_agent"`
	APIURL    string          `mapstructure:"api_url"`
	TokenURL  string          `mapstructure:"token_url"`
}

type SlackAccount struct {
	Name  string `mapstructure:"name"`
	Token string `mapstructure:"token"`
}

type SlackConfig struct {
	Accounts []SlackAccount `mapstructure:"accounts"`
	APIURL   string         `mapstructure:"api_url"`
}

type GmailConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	CredentialsDir string `mapstructure:"credentials_dir"`
	MaxResults     int64  `mapstructure:"max_results"`
}

// DefaultDir returns $XDG_CONFIG_HOME/msgbar or ~/.config/msgbar.
func DefaultDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "msgbar"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "msgbar"), nil
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("max_line_chars", 50)
	v.SetDefault("max_group_search_results", 10)
	v.SetDefault("max_group_participant_display", 5)
	v.SetDefault("timestamp_font_size", 8)
	v.SetDefault("fetch_timeout", "30s")
	v.SetDefault("sources", []string{"text", "reddit", "slack", "gmail"})

	v.SetDefault("store.backend", "csv")
	v.SetDefault("store.path", filepath.Join(dir, "data", "messages_processed.csv"))
	v.SetDefault("store.dsn", "")

	v.SetDefault("notify.enabled", true)
	v.SetDefault("notify.strict_senders", true)

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.file", "")

	v.SetDefault("text.username", "")
	v.SetDefault("text.chat_db", "")
	v.SetDefault("text.contacts_dir", "")
	v.SetDefault("text.max_preview_bytes", 2<<20)

	v.SetDefault("reddit.user_agent", "msgbar reddit notifier")
	v.SetDefault("reddit.api_url", "https://oauth.reddit.com")
	v.SetDefault("reddit.token_url", "https://www.reddit.com/api/v1/access_token")

	v.SetDefault("slack.api_url", "")

	v.SetDefault("gmail.enabled", false)
	v.SetDefault("gmail.credentials_dir", filepath.Join(dir, "gmail"))
	v.SetDefault("gmail.max_results", 100)
}

// Load reads configuration. An empty path searches dir (DefaultDir when
// empty) for config.{yaml,json,toml}. A missing config file is not an error.
func Load(path, dir string) (Config, error) {
	if dir == "" {
		if path != "" {
			dir = filepath.Dir(path)
		} else {
			d, err := DefaultDir()
			if err != nil {
				return Config{}, err
			}
			dir = d
		}
	}

	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, dir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Dir = dir
	cfg.Text.ChatDB = expandHome(cfg.Text.ChatDB)
	cfg.Text.ContactsDir = expandHome(cfg.Text.ContactsDir)
	cfg.Store.Path = expandHome(cfg.Store.Path)
	cfg.Gmail.CredentialsDir = expandHome(cfg.Gmail.CredentialsDir)
	return cfg, cfg.Validate()
}

// Validate checks values the rest of the program relies on.
func (c Config) Validate() error {
	var errs []error
	if c.MaxLineChars <= 0 {
		errs = append(errs, fmt.Errorf("max_line_chars must be positive, got %d", c.MaxLineChars))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch_timeout must be positive, got %s", c.FetchTimeout))
	}
	for i, a := range c.Reddit.Accounts {
		if a.ClientID == "" || a.RefreshToken == "" {
			errs = append(errs, fmt.Errorf("reddit.accounts[%d]: client_id and refresh_token are required", i))
		}
	}
	for i, a := range c.Slack.Accounts {
		if a.Token == "" {
			errs = append(errs, fmt.Errorf("slack.accounts[%d]: token is required", i))
		}
	}
	return errors.Join(errs...)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
