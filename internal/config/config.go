// Package config reads the service configuration from the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/yourorg/klarna-connector/internal/credentials"
	"github.com/yourorg/klarna-connector/internal/klarna"
)

type Config struct {
	Port              string
	LogLevel          string
	CredentialsFile   string
	DefaultCredential string
	Klarna            credentials.Credentials // from KLARNA_* variables; used when Username is set
	WebhookEvent      string
	WebhookFilter     string
	ExecuteSchemaFile string // overrides the built-in execute request schema
	WebhookSchemaFile string // overrides the built-in webhook body schema
	RabbitMQURL       string
	RabbitMQQueue     string
	PrometheusEnabled bool
	TracingEnabled    bool
	Notice            string
}

// Load reads the configuration. Unset variables take their defaults.
func Load() *Config {
	return &Config{
		Port:              getEnv("PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		CredentialsFile:   getEnv("CREDENTIALS_FILE", ""),
		DefaultCredential: getEnv("DEFAULT_CREDENTIAL", "klarnaApi"),
		Klarna: credentials.Credentials{
			Environment: credentials.Environment(strings.ToLower(getEnv("KLARNA_ENVIRONMENT", string(credentials.Playground)))),
			Region:      credentials.Region(strings.ToLower(getEnv("KLARNA_REGION", string(credentials.RegionEU)))),
			Username:    getEnv("KLARNA_USERNAME", ""),
			Password:    getEnv("KLARNA_PASSWORD", ""),
		},
		WebhookEvent:      getEnv("WEBHOOK_EVENT", "*"),
		WebhookFilter:     getEnv("WEBHOOK_FILTER", ""),
		ExecuteSchemaFile: getEnv("EXECUTE_SCHEMA_FILE", ""),
		WebhookSchemaFile: getEnv("WEBHOOK_SCHEMA_FILE", ""),
		RabbitMQURL:       getEnv("RABBITMQ_URL", ""),
		RabbitMQQueue:     getEnv("RABBITMQ_QUEUE", "klarna_webhook_events"),
		PrometheusEnabled: getEnvAsBool("PROMETHEUS_ENABLED", true),
		TracingEnabled:    getEnvAsBool("TRACING_ENABLED", false),
		Notice:            getEnv("NOTICE", klarna.DefaultNotice),
	}
}

// CredentialStore builds the credential store: entries from
// CredentialsFile first, then the KLARNA_* account under DefaultCredential
// when a username is configured.
func (c *Config) CredentialStore() (*credentials.InMemoryStore, error) {
	store := credentials.NewInMemoryStore()
	if c.CredentialsFile != "" {
		loaded, err := credentials.LoadFile(c.CredentialsFile)
		if err != nil {
			return nil, err
		}
		store = loaded
	}
	if c.Klarna.Username != "" {
		if err := store.Add(c.DefaultCredential, c.Klarna); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	if store.Len() == 0 {
		log.Printf("Config: no Klarna credentials configured; execute requests will fail until CREDENTIALS_FILE or KLARNA_USERNAME is set")
	}
	return store, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
