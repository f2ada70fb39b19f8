package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Broker and stores
	NatsURL         string
	PostgresURL     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	FindingStoreURL string

	// Reasoning engine
	GeminiAPIKey     string
	GeminiModel      string
	ReasoningTimeout time.Duration

	// Router settings
	Partitions          int
	AutoCloseThreshold  float64
	AutoVerifyThreshold float64
	HighSamplePercent   int
	SpotCheckPercent    int

	// Background task intervals
	SLASweepInterval  time.Duration
	ReconcileInterval time.Duration

	// SLA/tenant policy file (optional)
	PolicyFile string

	// Health/metrics server
	HealthPort string
}

func Load() (*Config, error) {
	// Try multiple .env locations
	envPaths := []string{
		".env",
		"../.env",
		"/app/.env", // Docker
	}

	envLoaded := false
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			log.Printf("Loaded config from: %s", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		log.Printf("No .env file found, using environment variables")
	}

	config := &Config{
		NatsURL:         getEnvOrDefault("NATS_URL", "nats://localhost:4222"),
		PostgresURL:     os.Getenv("POSTGRES_URL"),
		RedisAddr:       getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		FindingStoreURL: os.Getenv("FINDING_STORE_URL"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),

		PolicyFile: os.Getenv("POLICY_FILE"),
		HealthPort: getEnvOrDefault("HEALTH_PORT", "8080"),
	}

	var err error
	if config.RedisDB, err = parseIntEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if config.Partitions, err = parseIntEnv("ROUTER_PARTITIONS", 4); err != nil {
		return nil, err
	}
	if config.HighSamplePercent, err = parseIntEnv("HIGH_SAMPLE_PERCENT", 20); err != nil {
		return nil, err
	}
	if config.SpotCheckPercent, err = parseIntEnv("SPOT_CHECK_PERCENT", 5); err != nil {
		return nil, err
	}
	if config.AutoCloseThreshold, err = parseFloatEnv("AUTO_CLOSE_THRESHOLD", 0.90); err != nil {
		return nil, err
	}
	if config.AutoVerifyThreshold, err = parseFloatEnv("AUTO_VERIFY_THRESHOLD", 0.70); err != nil {
		return nil, err
	}
	if config.ReasoningTimeout, err = parseDurationEnv("REASONING_TIMEOUT", 120*time.Second); err != nil {
		return nil, err
	}
	if config.SLASweepInterval, err = parseDurationEnv("SLA_SWEEP_INTERVAL", 2*time.Minute); err != nil {
		return nil, err
	}
	if config.ReconcileInterval, err = parseDurationEnv("RECONCILE_INTERVAL", 2*time.Hour); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	// Required fields
	required := map[string]string{
		"NATS_URL":          c.NatsURL,
		"POSTGRES_URL":      c.PostgresURL,
		"REDIS_ADDR":        c.RedisAddr,
		"FINDING_STORE_URL": c.FindingStoreURL,
	}

	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if c.Partitions < 1 {
		return fmt.Errorf("ROUTER_PARTITIONS must be at least 1")
	}
	if c.AutoVerifyThreshold > c.AutoCloseThreshold {
		return fmt.Errorf("AUTO_VERIFY_THRESHOLD must not exceed AUTO_CLOSE_THRESHOLD")
	}
	if c.HighSamplePercent < 0 || c.HighSamplePercent > 100 {
		return fmt.Errorf("HIGH_SAMPLE_PERCENT must be in [0,100]")
	}
	if c.SLASweepInterval < time.Minute || c.SLASweepInterval > 5*time.Minute {
		return fmt.Errorf("SLA_SWEEP_INTERVAL must be between 1m and 5m")
	}
	if c.ReasoningTimeout < time.Second {
		return fmt.Errorf("REASONING_TIMEOUT must be at least 1 second")
	}

	return nil
}

// Helper functions for defaults
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
