// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

const (
	StoreRemote   = "remote"
	StorePostgres = "postgres"

	ModeRegenerate = "regenerate"
	ModeReplayDLQ  = "replay-dlq"
)

type Config struct {
	Port     string
	LogLevel string

	SaleCoAPIURL   string
	SaleCoAPIToken string

	TemplateBaseURL string
	TemplateDir     string
	TemplateVersion string
	TemplateFile    string
	FontFile        string
	PDFConfigDir    string

	ArtifactStore string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	PublicBaseURL string

	KafkaBrokers     string
	KafkaGroupID     string
	RegeneratorMode  string
	DLQReplayDelay   time.Duration
	TelegramBotToken string
	TelegramChatIDs  []string
	TelegramAPIURL   string
	AllowedOrigins   []string

	HTTPTimeout time.Duration
}

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		SaleCoAPIURL:   getEnv("SALECO_API_URL", "https://saleco.ruu-d.com"),
		SaleCoAPIToken: getEnv("SALECO_API_TOKEN", ""),

		TemplateBaseURL: getEnv("TEMPLATE_BASE_URL", ""),
		TemplateDir:     getEnv("TEMPLATE_DIR", ""),
		TemplateVersion: getEnv("TEMPLATE_VERSION", "1"),
		TemplateFile:    getEnv("TEMPLATE_FILE", "template.pdf"),
		FontFile:        getEnv("FONT_FILE", "NotoSansThai-Regular.ttf"),
		PDFConfigDir:    getEnv("PDFCPU_CONFIG_DIR", ""),

		ArtifactStore: getEnv("ARTIFACT_STORE", StoreRemote),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "saleco"),
		DBPassword:    getEnv("DB_PASSWORD", "saleco"),
		DBName:        getEnv("DB_NAME", "saleco_docs"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),

		KafkaBrokers:     getEnv("KAFKA_BROKERS", ""),
		KafkaGroupID:     getEnv("KAFKA_GROUP_ID", "document-regenerator"),
		RegeneratorMode:  getEnv("REGENERATOR_MODE", ModeRegenerate),
		DLQReplayDelay:   getEnvAsDuration("DLQ_REPLAY_DELAY", 30*time.Second),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatIDs:  getEnvAsSlice("TELEGRAM_CHAT_IDS", nil),
		TelegramAPIURL:   getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
		AllowedOrigins:   getEnvAsSlice("ALLOWED_ORIGINS", nil),

		HTTPTimeout: getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if _, err := strconv.Atoi(c.Port); err != nil {
		result = multierror.Append(result, fmt.Errorf("PORT must be a number, got %q", c.Port))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		result = multierror.Append(result, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if c.SaleCoAPIURL == "" {
		result = multierror.Append(result, errors.New("SALECO_API_URL is required"))
	}
	if c.TemplateBaseURL == "" && c.TemplateDir == "" {
		result = multierror.Append(result, errors.New("one of TEMPLATE_BASE_URL or TEMPLATE_DIR is required"))
	}
	if c.TemplateFile == "" || c.FontFile == "" {
		result = multierror.Append(result, errors.New("TEMPLATE_FILE and FONT_FILE must not be empty"))
	}
	switch c.ArtifactStore {
	case StoreRemote:
	case StorePostgres:
		if c.PublicBaseURL == "" {
			result = multierror.Append(result, errors.New("PUBLIC_BASE_URL is required for the postgres store"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("ARTIFACT_STORE must be %q or %q, got %q", StoreRemote, StorePostgres, c.ArtifactStore))
	}
	if len(c.TelegramChatIDs) > 0 && c.TelegramBotToken == "" {
		result = multierror.Append(result, errors.New("TELEGRAM_BOT_TOKEN is required when TELEGRAM_CHAT_IDS is set"))
	}
	if c.RegeneratorMode != ModeRegenerate && c.RegeneratorMode != ModeReplayDLQ {
		result = multierror.Append(result, fmt.Errorf("REGENERATOR_MODE must be %q or %q, got %q", ModeRegenerate, ModeReplayDLQ, c.RegeneratorMode))
	}
	if c.HTTPTimeout <= 0 {
		result = multierror.Append(result, errors.New("HTTP_TIMEOUT must be positive"))
	}

	return result.ErrorOrNil()
}

func (c *Config) KafkaEnabled() bool {
	return c.KafkaBrokers != ""
}

// NewLogger builds the JSON logger at the configured level.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
