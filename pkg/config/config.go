package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// LoginMethod selects the authentication challenge a channel presents when
// the gate redirects an unauthenticated owner.
type LoginMethod string

const (
	LoginOTP LoginMethod = "otp"
	LoginPIN LoginMethod = "pin"
)

// ChannelCapabilities is the single authoritative description of how a
// channel's sessions behave. Adapters and the dispatcher consume this
// instead of branching on channel names.
type ChannelCapabilities struct {
	// SessionTTL is how long a session may live without activity.
	SessionTTL time.Duration
	// SlidingExpiry extends the TTL on every read; when false the
	// dispatcher enforces an absolute idle window against updated_at.
	SlidingExpiry bool
	// Login is the challenge used when the gate redirects.
	Login LoginMethod
	// DeliveryTimeout bounds outbound provider calls.
	DeliveryTimeout time.Duration
}

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
	}

	// Database configuration
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Timeout  time.Duration
	}

	// Redis configuration (deduplication set)
	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	// Channel capability blocks
	Channels struct {
		WhatsApp ChannelCapabilities
		USSD     ChannelCapabilities
	}

	// Dialogue configuration
	Dialogue struct {
		ExitToken       string
		MainMenuToken   string
		LoginValidity   time.Duration
		OTPExpiry       time.Duration
		OTPLength       int
		MaxPINAttempts  int
		DedupRetention  time.Duration
	}

	// Messaging provider (asynchronous channel) configuration
	Provider struct {
		BaseURL     string
		AccountID   string
		Token       string
		VerifyToken string
	}

	// Core banking / ESB configuration
	ESB struct {
		BaseURL  string
		Username string
		Password string
		Timeout  time.Duration
	}

	// JWT configuration (ops API)
	JWT struct {
		Secret string
		Expiry time.Duration
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables.
// Uses singleton pattern to ensure only one instance exists.
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = &Config{}

		// Server config
		instance.Server.Port = getEnvString("PORT", "8081")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)

		// Database config
		instance.Database.Host = getEnvString("DB_HOST", "localhost")
		instance.Database.Port = getEnvString("DB_PORT", "5432")
		instance.Database.User = getEnvString("DB_USER", "postgres")
		instance.Database.Password = getEnvString("DB_PASSWORD", "postgres")
		instance.Database.Name = getEnvString("DB_NAME", "dialogue-engine")
		instance.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
		instance.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
		instance.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)

		// Redis config
		instance.Redis.Addr = getEnvString("REDIS_ADDR", "localhost:6379")
		instance.Redis.Password = getEnvString("REDIS_PASSWORD", "")
		instance.Redis.DB = getEnvInt("REDIS_DB", 0)

		// Channel capabilities. The webhook channel runs on an absolute
		// idle window checked at dispatch; the synchronous channel slides
		// its short TTL on every read.
		instance.Channels.WhatsApp = ChannelCapabilities{
			SessionTTL:      getEnvDuration("WHATSAPP_SESSION_TTL", 5*time.Minute),
			SlidingExpiry:   false,
			Login:           LoginOTP,
			DeliveryTimeout: getEnvDuration("WHATSAPP_DELIVERY_TIMEOUT", 10*time.Second),
		}
		instance.Channels.USSD = ChannelCapabilities{
			SessionTTL:      getEnvDuration("USSD_SESSION_TTL", 90*time.Second),
			SlidingExpiry:   true,
			Login:           LoginPIN,
			DeliveryTimeout: getEnvDuration("USSD_DELIVERY_TIMEOUT", 5*time.Second),
		}

		// Dialogue config
		instance.Dialogue.ExitToken = getEnvString("DIALOGUE_EXIT_TOKEN", "0")
		instance.Dialogue.MainMenuToken = getEnvString("DIALOGUE_MAIN_MENU_TOKEN", "00")
		instance.Dialogue.LoginValidity = getEnvDuration("LOGIN_VALIDITY", 10*time.Minute)
		instance.Dialogue.OTPExpiry = getEnvDuration("OTP_EXPIRY", 5*time.Minute)
		instance.Dialogue.OTPLength = getEnvInt("OTP_LENGTH", 6)
		instance.Dialogue.MaxPINAttempts = getEnvInt("MAX_PIN_ATTEMPTS", 3)
		instance.Dialogue.DedupRetention = getEnvDuration("DEDUP_RETENTION", 24*time.Hour)

		// Provider config
		instance.Provider.BaseURL = getEnvString("PROVIDER_BASE_URL", "https://graph.facebook.com/v18.0")
		instance.Provider.AccountID = getEnvString("PROVIDER_ACCOUNT_ID", "")
		instance.Provider.Token = getEnvString("PROVIDER_TOKEN", "")
		instance.Provider.VerifyToken = getEnvString("PROVIDER_VERIFY_TOKEN", "")

		// ESB config
		instance.ESB.BaseURL = getEnvString("ESB_BASE_URL", "http://localhost:9090")
		instance.ESB.Username = getEnvString("ESB_USERNAME", "")
		instance.ESB.Password = getEnvString("ESB_PASSWORD", "")
		instance.ESB.Timeout = getEnvDuration("ESB_TIMEOUT", 15*time.Second)

		// JWT config
		instance.JWT.Secret = getEnvString("JWT_SECRET", "default-jwt-secret-do-not-use-in-production")
		instance.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

		// Logging config
		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
