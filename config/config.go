package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/upb/book-feed/services"
	"github.com/upb/book-feed/utils"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Feed          FeedConfig
	GraphQL       GraphQLConfig
	Observability ObservabilityConfig
	Environment   string `validate:"required"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host               string        `validate:"required"`
	Port               int           `validate:"min=1,max=65535"`
	ReadTimeout        time.Duration `validate:"gt=0"`
	ShutdownTimeout    time.Duration `validate:"gt=0"`
	CORSAllowedOrigins []string      `validate:"dive,required"`
}

// FeedConfig holds the republish timer and topic settings
type FeedConfig struct {
	Topic            string        `validate:"required"`
	Interval         time.Duration `validate:"gt=0"`
	SubscriberBuffer int           `validate:"min=1"`
}

// GraphQLConfig holds schema execution settings
type GraphQLConfig struct {
	MaxParallelism           int           `validate:"min=1"`
	SubscribeResolverTimeout time.Duration `validate:"gt=0"`
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string `validate:"required,oneof=debug info warn error"`
	LogFormat      string `validate:"required,oneof=json text console"`
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables.
// Defaults reproduce the fixed demo behaviour: port 4100, topic "book",
// one publish per second.
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "0.0.0.0"),
			Port:               getPort(),
			ReadTimeout:        getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			ShutdownTimeout:    getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Feed: FeedConfig{
			Topic:            getEnv("REPUBLISH_TOPIC", "book"),
			Interval:         getEnvAsDuration("REPUBLISH_INTERVAL", time.Second),
			SubscriberBuffer: getEnvAsInt("SUBSCRIBER_BUFFER", 16),
		},
		GraphQL: GraphQLConfig{
			MaxParallelism:           getEnvAsInt("GRAPHQL_MAX_PARALLELISM", 10),
			SubscribeResolverTimeout: getEnvAsDuration("SUBSCRIBE_RESOLVER_TIMEOUT", time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
			LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "json")),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration against its struct constraints. The
// returned error matches services.ErrInvalidConfig and carries the failing
// fields under the "fields" detail.
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return services.NewDomainError(services.ErrorTypeValidation, services.ErrInvalidConfig.Message, err).
			WithDetail("fields", utils.GetValidationFields(err))
	}
	return nil
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PublicHost returns the host to advertise in startup URLs.
func (c *ServerConfig) PublicHost() string {
	if c.Host == "" || c.Host == "0.0.0.0" || c.Host == "::" {
		return "localhost"
	}
	return c.Host
}

// HTTPURL returns the advertised base URL of the query endpoint
func (c *ServerConfig) HTTPURL() string {
	return fmt.Sprintf("http://%s:%d/", c.PublicHost(), c.Port)
}

// SubscriptionsURL returns the advertised websocket URL
func (c *ServerConfig) SubscriptionsURL() string {
	return fmt.Sprintf("ws://%s:%d/graphql", c.PublicHost(), c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 4100)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 4100
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated value, dropping empty items
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
