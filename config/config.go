package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Database     DatabaseConfig
	Server       ServerConfig
	Complaint    ComplaintConfig
	Duplicate    DuplicateConfig
	SLA          SLAConfig
	Escalation   EscalationConfig
	Notification NotificationConfig
	Auth         AuthConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver      string // STORE_DRIVER: mysql or sqlite3
	DatabaseURL string // DATABASE_URL - takes precedence over individual vars
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SQLitePath  string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// ComplaintConfig controls complaint id generation
type ComplaintConfig struct {
	IDPrefix   string         // COMPLAINT_ID_PREFIX
	IDLocation *time.Location // COMPLAINT_ID_TIMEZONE: calendar day used for the per-day sequence
}

// DuplicateConfig holds the duplicate detector parameters
type DuplicateConfig struct {
	RadiusMeters float64
	Window       time.Duration
	Timeout      time.Duration
}

// SLAConfig points at the SLA policy
type SLAConfig struct {
	PolicyFile          string // SLA_POLICY_FILE: JSON policy; empty = built-in
	DefaultTargetHours  int
	DefaultWarningHours int
}

// EscalationConfig holds scheduler configuration
type EscalationConfig struct {
	Interval     time.Duration
	StartupDelay time.Duration
	Workers      int
	DryRun       bool // ESCALATION_DRY_RUN: evaluate and report without writing
}

// NotificationConfig holds outbound messaging configuration
type NotificationConfig struct {
	Timeout            time.Duration
	SendGridAPIKey     string
	FromEmail          string
	FromName           string
	EmailShadowAddress string // set only when EMAIL_MODE=shadow
	WhatsAppToken      string
	WhatsAppPhoneID    string
	TelegramBotToken   string
	TelegramChatID     string
	AdminAlertEmail    string
	TranslateEnabled   bool
}

// AuthConfig holds token configuration
type AuthConfig struct {
	JWTSecret        string
	TokenExpiryHours int
}

// LoadConfig loads configuration from environment variables.
// Supports DATABASE_URL or individual DB_* variables (for local dev).
func LoadConfig() (*Config, error) {
	loc, err := time.LoadLocation(getEnv("COMPLAINT_ID_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid COMPLAINT_ID_TIMEZONE: %w", err)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Driver:      getEnv("STORE_DRIVER", "mysql"),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        os.Getenv("DB_HOST"),
			Port:        getEnv("DB_PORT", "3306"),
			User:        os.Getenv("DB_USER"),
			Password:    os.Getenv("DB_PASSWORD"),
			DBName:      os.Getenv("DB_NAME"),
			SQLitePath:  getEnv("SQLITE_PATH", "grievance.db"),
		},
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("PORT", getEnv("SERVER_PORT", "8080")),
		},
		Complaint: ComplaintConfig{
			IDPrefix:   getEnv("COMPLAINT_ID_PREFIX", "GRV"),
			IDLocation: loc,
		},
		Duplicate: DuplicateConfig{
			RadiusMeters: getEnvFloat("DUPLICATE_RADIUS_METERS", 100),
			Window:       time.Duration(getEnvInt("DUPLICATE_WINDOW_HOURS", 24)) * time.Hour,
			Timeout:      getEnvDuration("DUPLICATE_CHECK_TIMEOUT", 10*time.Second),
		},
		SLA: SLAConfig{
			PolicyFile:          os.Getenv("SLA_POLICY_FILE"),
			DefaultTargetHours:  getEnvInt("SLA_DEFAULT_TARGET_HOURS", 72),
			DefaultWarningHours: getEnvInt("SLA_DEFAULT_WARNING_HOURS", 12),
		},
		Escalation: EscalationConfig{
			Interval:     getEnvDuration("ESCALATION_INTERVAL", time.Hour),
			StartupDelay: getEnvDuration("ESCALATION_STARTUP_DELAY", 30*time.Second),
			Workers:      getEnvInt("ESCALATION_WORKERS", 4),
			DryRun:       getEnvBool("ESCALATION_DRY_RUN", false),
		},
		Notification: NotificationConfig{
			Timeout:          getEnvDuration("NOTIFY_TIMEOUT", 10*time.Second),
			SendGridAPIKey:   os.Getenv("SENDGRID_API_KEY"),
			FromEmail:        getEnv("SENDGRID_FROM_EMAIL", "noreply@grievance.local"),
			FromName:         getEnv("SENDGRID_FROM_NAME", "Grievance Desk"),
			WhatsAppToken:    os.Getenv("WHATSAPP_TOKEN"),
			WhatsAppPhoneID:  os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
			TelegramChatID:   os.Getenv("TELEGRAM_ADMIN_CHAT_ID"),
			AdminAlertEmail:  os.Getenv("ADMIN_ALERT_EMAIL"),
			TranslateEnabled: getEnvBool("TRANSLATE_ENABLED", false),
		},
		Auth: AuthConfig{
			JWTSecret:        getEnv("JWT_SECRET", "dev-secret-change-me"),
			TokenExpiryHours: getEnvInt("JWT_EXPIRY_HOURS", 24),
		},
	}

	if getEnv("EMAIL_MODE", "") == "shadow" {
		cfg.Notification.EmailShadowAddress = getEnv("EMAIL_SHADOW_ADDRESS", cfg.Notification.FromEmail)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite3":
	default:
		return fmt.Errorf("STORE_DRIVER must be mysql or sqlite3, got %q", c.Database.Driver)
	}
	if c.Complaint.IDPrefix == "" {
		return fmt.Errorf("COMPLAINT_ID_PREFIX must not be empty")
	}
	if c.Duplicate.RadiusMeters <= 0 {
		return fmt.Errorf("DUPLICATE_RADIUS_METERS must be positive")
	}
	if c.Duplicate.Window <= 0 {
		return fmt.Errorf("DUPLICATE_WINDOW_HOURS must be positive")
	}
	if c.Escalation.Interval <= 0 {
		return fmt.Errorf("ESCALATION_INTERVAL must be positive")
	}
	if c.Escalation.Workers < 1 {
		return fmt.Errorf("ESCALATION_WORKERS must be at least 1")
	}
	if c.SLA.DefaultTargetHours <= 0 {
		return fmt.Errorf("SLA_DEFAULT_TARGET_HOURS must be positive")
	}
	return nil
}

// DSN builds the driver-specific data source name
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite3" {
		return d.SQLitePath + "?_foreign_keys=on&_busy_timeout=5000"
	}
	if d.DatabaseURL != "" {
		return d.DatabaseURL
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable or returns a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s", "1h") or plain seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
