package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Env         string
	DatabaseURL string
	PublicURL   string // External base URL of this control plane (for email links)
	LogLevel    string // debug, info, warn or error; empty defers to Env
	LogFormat   string // "json" or "text"; empty defers to Env

	// Access / refresh tokens
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Password reset / email verification
	PasswordResetTTL time.Duration

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPTLSMode  string // "starttls" or "tls"
	EmailFrom    string
	EmailReplyTo string

	// OAuth (env-configured provider, materialized lazily on first use)
	OAuthEnabled      bool
	OAuthProviderName string
	OAuthIssuerURL    string
	OAuthClientID     string
	OAuthClientSecret string
	OAuthScopes       []string
	OAuthAutoRegister bool
	OAuthSyncUserInfo bool
	OAuthAdminGroups  []string
	OAuthDefaultRole  string // "user" or "admin"

	// Relay capability tokens
	RelayURL           string // WebSocket endpoint of the downstream sync relay
	RelayTokenTTL      time.Duration
	RelayPrivateKey    string // PEM or base64-encoded PEM; generated if empty
	RelayKeyID         string // derived from the public key if empty
	RelayTokenIssuer   string
	DebugAllowHTTPURLs bool // permit http:// webhook targets outside production
}

// Load reads configuration from environment variables.
func Load() Config {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	return Config{
		Env:         env,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		PublicURL:   getEnv("PUBLIC_URL", "http://localhost:8080"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		LogFormat:   os.Getenv("LOG_FORMAT"),

		JWTSecret:       os.Getenv("JWT_SECRET"),
		AccessTokenTTL:  time.Duration(getEnvAsInt("ACCESS_TOKEN_TTL_MINUTES", 60)) * time.Minute,
		RefreshTokenTTL: time.Duration(getEnvAsInt("REFRESH_TOKEN_TTL_DAYS", 30)) * 24 * time.Hour,

		PasswordResetTTL: time.Duration(getEnvAsInt("PASSWORD_RESET_TTL_HOURS", 1)) * time.Hour,

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPTLSMode:  getEnv("SMTP_TLS_MODE", "starttls"),
		EmailFrom:    getEnv("EMAIL_FROM", "noreply@localhost"),
		EmailReplyTo: os.Getenv("EMAIL_REPLY_TO"),

		OAuthEnabled:      getEnvAsBool("OAUTH_ENABLED", false),
		OAuthProviderName: getEnv("OAUTH_PROVIDER_NAME", "oidc"),
		OAuthIssuerURL:    os.Getenv("OAUTH_ISSUER_URL"),
		OAuthClientID:     os.Getenv("OAUTH_CLIENT_ID"),
		OAuthClientSecret: os.Getenv("OAUTH_CLIENT_SECRET"),
		OAuthScopes:       getEnvAsList("OAUTH_SCOPES", []string{"openid", "profile", "email"}),
		OAuthAutoRegister: getEnvAsBool("OAUTH_AUTO_REGISTER", true),
		OAuthSyncUserInfo: getEnvAsBool("OAUTH_SYNC_USER_INFO", true),
		OAuthAdminGroups:  getEnvAsList("OAUTH_ADMIN_GROUPS", nil),
		OAuthDefaultRole:  getEnv("OAUTH_DEFAULT_ROLE", "user"),

		RelayURL:           getEnv("RELAY_URL", "ws://localhost:8081/ws"),
		RelayTokenTTL:      time.Duration(getEnvAsInt("RELAY_TOKEN_TTL_MINUTES", 30)) * time.Minute,
		RelayPrivateKey:    os.Getenv("RELAY_PRIVATE_KEY"),
		RelayKeyID:         os.Getenv("RELAY_KEY_ID"),
		RelayTokenIssuer:   getEnv("RELAY_TOKEN_ISSUER", "relay-control-plane"),
		DebugAllowHTTPURLs: getEnvAsBool("DEBUG_ALLOW_HTTP_URLS", false),
	}
}

// IsProduction reports whether the app runs with production hardening enabled.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(name, defaultVal string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return defaultVal
}

// Helper to read boolean env vars
func getEnvAsBool(name string, defaultVal bool) bool {
	valStr := os.Getenv(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

func getEnvAsInt(name string, defaultVal int) int {
	valStr := os.Getenv(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

// getEnvAsList splits a comma-separated env var, trimming whitespace per item.
func getEnvAsList(name string, defaultVal []string) []string {
	valStr := os.Getenv(name)
	if valStr == "" {
		return defaultVal
	}
	parts := strings.Split(valStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
