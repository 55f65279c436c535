package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type GitHubConfig struct {
	APIBaseURL string        `mapstructure:"api_base_url"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

type SyncConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type Config struct {
	DatabaseURL string         `mapstructure:"database_url"`
	ServerPort  string         `mapstructure:"server_port"`
	JWTSecret   string         `mapstructure:"jwt_secret"`
	GitHub      GitHubConfig   `mapstructure:"github"`
	Sync        SyncConfig     `mapstructure:"sync"`
	Email       EmailConfig    `mapstructure:"email"`
	Firebase    FirebaseConfig `mapstructure:"firebase"`
}

type EmailConfig struct {
	From              string   `mapstructure:"from"`
	SMTPHost          string   `mapstructure:"smtp_host"`
	SMTPPort          int      `mapstructure:"smtp_port"`
	Username          string   `mapstructure:"username"`
	Password          string   `mapstructure:"password"`
	InviteURLTemplate string   `mapstructure:"invite_url_template"`
	AlertRecipients   []string `mapstructure:"alert_recipients"`
}

type FirebaseConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Load reads the configuration from a YAML file and returns a Config instance.
func Load() *Config {
	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("Error unmarshalling config: %v", err)
	}

	// Fallback defaults
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}

	if config.JWTSecret == "" {
		log.Fatal("JWT secret must be set in the config file")
	}

	if config.GitHub.APIBaseURL == "" {
		config.GitHub.APIBaseURL = "https://api.github.com"
	}
	if config.GitHub.CacheTTL == 0 {
		config.GitHub.CacheTTL = 5 * time.Minute
	}
	if config.Sync.Interval == 0 {
		config.Sync.Interval = time.Hour
	}

	if config.Email.SMTPPort == 0 {
		config.Email.SMTPPort = 587
	}
	if config.Email.InviteURLTemplate == "" {
		config.Email.InviteURLTemplate = "https://app.cipulse.dev/invite/accept?token=%s"
	}

	return &config
}
