package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	SQLitePath  string // used when DATABASE_URL is empty
	RedisURL    string

	// Supabase-issued JWTs are verified with the project's JWT secret.
	JWTSecret string

	// WhatsApp Cloud API
	WhatsAppVerifyToken string
	WhatsAppAppSecret   string // enables X-Hub-Signature-256 checks
	WhatsAppAPIVersion  string
	WhatsAppGraphURL    string
	DefaultPropertyID   string // property for conversations opened by unknown numbers

	// AI
	AIProvider   string // "openai" or "gemini"
	OpenAIAPIKey string
	OpenAIOrgID  string
	OpenAIModel  string
	GeminiAPIKey string
	GeminiModel  string

	// Firebase Cloud Messaging (HTTP v1)
	FCMProjectID       string
	FCMCredentialsFile string

	// SMTP for emergency alerts
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	CORSAllowedOrigins []string

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled   bool     // Enable auto-blocking after repeated violations
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("SQLITE_PATH", "./data/airhost.db")
	v.SetDefault("WHATSAPP_API_VERSION", "v22.0")
	v.SetDefault("WHATSAPP_GRAPH_URL", "https://graph.facebook.com")
	v.SetDefault("AI_PROVIDER", "openai")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")
	v.SetDefault("SMTP_PORT", "465")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("AUTO_BLOCK_ENABLED", false)

	cfg := &Config{
		Port:                v.GetString("PORT"),
		Env:                 v.GetString("ENV"),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		SQLitePath:          v.GetString("SQLITE_PATH"),
		RedisURL:            v.GetString("REDIS_URL"),
		JWTSecret:           v.GetString("SUPABASE_JWT_SECRET"),
		WhatsAppVerifyToken: v.GetString("WHATSAPP_VERIFY_TOKEN"),
		WhatsAppAppSecret:   v.GetString("WHATSAPP_APP_SECRET"),
		WhatsAppAPIVersion:  v.GetString("WHATSAPP_API_VERSION"),
		WhatsAppGraphURL:    strings.TrimSuffix(v.GetString("WHATSAPP_GRAPH_URL"), "/"),
		DefaultPropertyID:   v.GetString("DEFAULT_PROPERTY_ID"),
		AIProvider:          strings.ToLower(v.GetString("AI_PROVIDER")),
		OpenAIAPIKey:        v.GetString("OPENAI_API_KEY"),
		OpenAIOrgID:         v.GetString("OPENAI_ORG_ID"),
		OpenAIModel:         v.GetString("OPENAI_MODEL"),
		GeminiAPIKey:        v.GetString("GEMINI_API_KEY"),
		GeminiModel:         v.GetString("GEMINI_MODEL"),
		FCMProjectID:        v.GetString("FCM_PROJECT_ID"),
		FCMCredentialsFile:  v.GetString("FCM_CREDENTIALS_FILE"),
		SMTPHost:            v.GetString("SMTP_HOST"),
		SMTPPort:            v.GetString("SMTP_PORT"),
		SMTPUser:            v.GetString("SMTP_USER"),
		SMTPPassword:        v.GetString("SMTP_PASSWORD"),
		SMTPFrom:            v.GetString("SMTP_FROM"),
		AutoBlockEnabled:    v.GetBool("AUTO_BLOCK_ENABLED"),
		CORSAllowedOrigins:  splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		RateLimitWhitelist:  splitList(v.GetString("RATE_LIMIT_WHITELIST")),
	}

	// In production, require the hosted services
	if cfg.IsProduction() {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if cfg.RedisURL == "" {
			panic("REDIS_URL is required in production")
		}
		if cfg.JWTSecret == "" {
			panic("SUPABASE_JWT_SECRET is required in production")
		}
		if cfg.WhatsAppVerifyToken == "" {
			panic("WHATSAPP_VERIFY_TOKEN is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AIEnabled reports whether the selected AI provider has credentials.
func (c *Config) AIEnabled() bool {
	switch c.AIProvider {
	case "gemini":
		return c.GeminiAPIKey != ""
	default:
		return c.OpenAIAPIKey != ""
	}
}

// FCMEnabled reports whether push delivery through FCM can be configured.
func (c *Config) FCMEnabled() bool {
	return c.FCMProjectID != "" && c.FCMCredentialsFile != ""
}

// MailEnabled reports whether emergency alerts can be emailed.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

// splitList parses a comma-separated list, dropping empty entries.
func splitList(raw string) []string {
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
