package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port           string
	BaseURL        string
	DatabaseURL    string
	RedisURL       string
	LogFile        string
	LogMaxSizeMB   int
	LogMaxBackups  int
	NoEmailVerify  bool
	SessionTTL     time.Duration
	ChallengeTTL   time.Duration
	TOTPIssuer     string
	Email          EmailConfig
	Google         OAuthProvider
	TrustedProxies []string
}

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (e EmailConfig) Enabled() bool {
	return e.Host != "" && e.Port != 0 && e.From != ""
}

type OAuthProvider struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (p OAuthProvider) Configured() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

func Load() (Config, error) {
	clean := func(val string) string {
		return strings.Trim(val, "\"' \t\r\n")
	}

	smtpPort, err := strconv.Atoi(clean(getenvDefault("SMTP_PORT", "587")))
	if err != nil {
		smtpPort = 587
	}

	cfg := Config{
		Port:           getenvDefault("PORT", "8080"),
		BaseURL:        getenvDefault("APP_BASE_URL", "http://localhost:3000"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       getenvDefault("REDIS_URL", "redis://localhost:6379"),
		LogFile:        getenvDefault("LOG_FILE", "logs/account.log"),
		LogMaxSizeMB:   parseInt(os.Getenv("LOG_MAX_SIZE_MB"), 20),
		LogMaxBackups:  parseInt(os.Getenv("LOG_MAX_BACKUPS"), 3),
		NoEmailVerify:  parseBool(os.Getenv("NO_EMAIL_VERIFY")),
		SessionTTL:     parseDuration(os.Getenv("SESSION_TTL"), 7*24*time.Hour),
		ChallengeTTL:   parseDuration(os.Getenv("VERIFICATION_TTL"), 5*time.Minute),
		TOTPIssuer:     getenvDefault("TOTP_ISSUER", "KapeeShop"),
		TrustedProxies: parseList(os.Getenv("TRUSTED_PROXIES")),
	}

	cfg.Email = EmailConfig{
		Host:     clean(os.Getenv("SMTP_HOST")),
		Port:     smtpPort,
		Username: clean(os.Getenv("SMTP_USERNAME")),
		Password: clean(os.Getenv("SMTP_PASSWORD")),
		From:     clean(os.Getenv("SMTP_FROM")),
	}

	cfg.Google = OAuthProvider{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RedirectURL:  getenvDefault("GOOGLE_CALLBACK_URL", cfg.BaseURL+"/api/oauth/google/callback"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func parseBool(val string) bool {
	if val == "" {
		return false
	}
	val = strings.ToLower(strings.Trim(val, "\"' "))
	return val == "1" || val == "true" || val == "yes"
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func parseDuration(val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(val))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func parseList(val string) []string {
	parts := strings.Split(val, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
