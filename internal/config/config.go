package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment         string
	EncryptionKeyBase64 string
	DBHost              string
	DBPort              string
	DBUsername          string
	DBPassword          string
	DBName              string
	DBSSLMode           string
	Port                string
	LogLevel            string
	LogFormat           string
	// APIToken guards the control API. Empty disables authentication.
	APIToken string

	// IMAP account. When IMAPServer is empty the account is read from the
	// cms_settings row instead.
	IMAPServer      string
	IMAPUsername    string
	IMAPPassword    string
	IMAPUseTLS      bool
	IMAPDialTimeout time.Duration

	RootDirectory             string
	FolderSeparator           string
	SyncInterval              time.Duration
	DataConnectionMinInterval time.Duration
}

func NewConfig() (*Config, error) {
	env := os.Getenv("CMS_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	config := &Config{
		Environment:         env,
		EncryptionKeyBase64: os.Getenv("CMS_ENCRYPTION_KEY_BASE64"),
		DBHost:              getEnvOrDefault("CMS_DB_HOST", "localhost"),
		DBPort:              getEnvOrDefault("CMS_DB_PORT", "5432"),
		DBUsername:          getEnvOrDefault("CMS_DB_USER", "cms"),
		DBPassword:          os.Getenv("CMS_DB_PASSWORD"),
		DBName:              getEnvOrDefault("CMS_DB_NAME", "cms"),
		DBSSLMode:           getEnvOrDefault("CMS_DB_SSLMODE", "disable"),
		Port:                getEnvOrDefault("PORT", "11764"),
		LogLevel:            getEnvOrDefault("CMS_LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("CMS_LOG_FORMAT", "text"),
		APIToken:            os.Getenv("CMS_API_TOKEN"),
		IMAPServer:          os.Getenv("CMS_IMAP_SERVER"),
		IMAPUsername:        os.Getenv("CMS_IMAP_USERNAME"),
		IMAPPassword:        os.Getenv("CMS_IMAP_PASSWORD"),
		RootDirectory:       getEnvOrDefault("CMS_ROOT_DIRECTORY", "Default"),
		FolderSeparator:     getEnvOrDefault("CMS_FOLDER_SEPARATOR", "/"),
	}

	var err error
	if config.IMAPUseTLS, err = getBoolOrDefault("CMS_IMAP_TLS", true); err != nil {
		return nil, err
	}
	if config.IMAPDialTimeout, err = getDurationOrDefault("CMS_IMAP_DIAL_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if config.SyncInterval, err = getDurationOrDefault("CMS_SYNC_INTERVAL", 6*time.Hour); err != nil {
		return nil, err
	}
	if config.DataConnectionMinInterval, err = getDurationOrDefault("CMS_DATA_CONNECTION_MIN_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.EncryptionKeyBase64 == "" {
		return fmt.Errorf("CMS_ENCRYPTION_KEY_BASE64 is required")
	}
	key, err := base64.StdEncoding.DecodeString(c.EncryptionKeyBase64)
	if err != nil {
		return fmt.Errorf("CMS_ENCRYPTION_KEY_BASE64 is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return fmt.Errorf("CMS_ENCRYPTION_KEY_BASE64 must decode to 32 bytes, got %d", len(key))
	}

	if c.DBPassword == "" {
		return fmt.Errorf("CMS_DB_PASSWORD is required")
	}
	if _, err := strconv.Atoi(c.DBPort); err != nil {
		return fmt.Errorf("CMS_DB_PORT must be a number")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be a number")
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("CMS_LOG_FORMAT must be text or json")
	}

	if c.IMAPServer != "" && (c.IMAPUsername == "" || c.IMAPPassword == "") {
		return fmt.Errorf("CMS_IMAP_USERNAME and CMS_IMAP_PASSWORD are required when CMS_IMAP_SERVER is set")
	}
	if c.RootDirectory == "" {
		return fmt.Errorf("CMS_ROOT_DIRECTORY must not be empty")
	}
	if len(c.FolderSeparator) != 1 {
		return fmt.Errorf("CMS_FOLDER_SEPARATOR must be a single character")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("CMS_SYNC_INTERVAL must be positive")
	}
	if c.DataConnectionMinInterval < 0 {
		return fmt.Errorf("CMS_DATA_CONNECTION_MIN_INTERVAL must not be negative")
	}

	return nil
}

func (c *Config) GetDatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUsername, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}

// getDurationOrDefault accepts Go durations ("90s", "6h") or plain seconds.
func getDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
