// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory SOS store if not set)

	// Data files
	GraphPath    string // node-link JSON road network
	RiskDataPath string // hourly risk CSV

	// Crowd tracking
	RollingWindowMinutes int // visits older than this are pruned
	SyncIntervalSeconds  int // shadow-score recompute interval

	// Monitoring
	HazardLookaheadSteps int
	MaxDeviationMeters   float64
	RiskSpikeThreshold   float64

	// Threat fusion
	FusionStrategy      string // "additive" or "class"
	ModeRiskSensitivity map[string]float64
	StealthCrowdPenalty float64 // cost added per unit of shadow score in stealth mode
	SafetyCrowdBonus    float64 // cost subtracted per unit of shadow score in safe/escort modes
	FeedbackWeight      float64 // scale of the user-feedback cost term
	ClassMultipliers    map[string][5]float64

	// HTTP
	RateLimitRPM   int
	AllowedOrigins []string

	// Tracing
	OTLPEndpoint string
}

// Defaults
const (
	DefaultPort                 = "8080"
	DefaultEnv                  = "development"
	DefaultLogLevel             = "info"
	DefaultGraphPath            = "data/safe_graph.json"
	DefaultRiskDataPath         = "data/hourly_risk_data.csv"
	DefaultRollingWindowMinutes = 30
	DefaultSyncIntervalSeconds  = 60
	DefaultHazardLookahead      = 5
	DefaultMaxDeviationMeters   = 50
	DefaultRiskSpikeThreshold   = 7.0
	DefaultFusionStrategy       = "additive"
	DefaultStealthCrowdPenalty  = 75
	DefaultSafetyCrowdBonus     = 15
	DefaultFeedbackWeight       = 50
	DefaultRateLimit            = 120
)

// Load reads configuration from environment variables.
// It loads a .env file if present (for local development).
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", DefaultPort),
		Env:                  getEnv("ENV", DefaultEnv),
		LogLevel:             getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		GraphPath:            getEnv("GRAPH_PATH", DefaultGraphPath),
		RiskDataPath:         getEnv("RISK_DATA_PATH", DefaultRiskDataPath),
		RollingWindowMinutes: getEnvInt("ROLLING_WINDOW_MINUTES", DefaultRollingWindowMinutes),
		SyncIntervalSeconds:  getEnvInt("SYNC_INTERVAL_SECONDS", DefaultSyncIntervalSeconds),
		HazardLookaheadSteps: getEnvInt("HAZARD_LOOKAHEAD_STEPS", DefaultHazardLookahead),
		MaxDeviationMeters:   getEnvFloat("MAX_DEVIATION_METERS", DefaultMaxDeviationMeters),
		RiskSpikeThreshold:   getEnvFloat("RISK_SPIKE_THRESHOLD", DefaultRiskSpikeThreshold),
		FusionStrategy:       getEnv("FUSION_STRATEGY", DefaultFusionStrategy),
		ModeRiskSensitivity: map[string]float64{
			"safe":     getEnvFloat("MODE_RISK_SAFE", 0.8),
			"balanced": getEnvFloat("MODE_RISK_BALANCED", 0.5),
			"stealth":  getEnvFloat("MODE_RISK_STEALTH", 0.2),
			"escort":   getEnvFloat("MODE_RISK_ESCORT", 1.0),
		},
		StealthCrowdPenalty: getEnvFloat("STEALTH_CROWD_PENALTY", DefaultStealthCrowdPenalty),
		SafetyCrowdBonus:    getEnvFloat("SAFETY_CROWD_BONUS", DefaultSafetyCrowdBonus),
		FeedbackWeight:      getEnvFloat("FEEDBACK_WEIGHT", DefaultFeedbackWeight),
		ClassMultipliers: map[string][5]float64{
			// Per-mode multipliers by road bucket:
			// motorway/trunk, primary, secondary, tertiary/unclassified, residential/service
			"safe":     getEnvClassWeights("CLASS_WEIGHTS_SAFE", [5]float64{10.0, 5.0, 2.0, 1.2, 0.7}),
			"balanced": getEnvClassWeights("CLASS_WEIGHTS_BALANCED", [5]float64{1.0, 1.0, 1.0, 1.0, 1.0}),
			"stealth":  getEnvClassWeights("CLASS_WEIGHTS_STEALTH", [5]float64{20.0, 10.0, 4.0, 1.5, 0.5}),
			"escort":   getEnvClassWeights("CLASS_WEIGHTS_ESCORT", [5]float64{0.5, 0.5, 0.8, 1.5, 3.0}),
		},
		RateLimitRPM:   getEnvInt("RATE_LIMIT_RPM", DefaultRateLimit),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.GraphPath == "" {
		return fmt.Errorf("GRAPH_PATH is required")
	}
	if c.FusionStrategy != "additive" && c.FusionStrategy != "class" {
		return fmt.Errorf("FUSION_STRATEGY must be %q or %q, got %q", "additive", "class", c.FusionStrategy)
	}
	if c.RollingWindowMinutes <= 0 {
		return fmt.Errorf("ROLLING_WINDOW_MINUTES must be positive")
	}
	if c.SyncIntervalSeconds <= 0 {
		return fmt.Errorf("SYNC_INTERVAL_SECONDS must be positive")
	}
	if c.HazardLookaheadSteps <= 0 {
		return fmt.Errorf("HAZARD_LOOKAHEAD_STEPS must be positive")
	}
	if c.MaxDeviationMeters <= 0 {
		return fmt.Errorf("MAX_DEVIATION_METERS must be positive")
	}
	for mode, s := range c.ModeRiskSensitivity {
		if s < 0 {
			return fmt.Errorf("risk sensitivity for mode %q must be non-negative", mode)
		}
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvClassWeights parses a comma-separated list of exactly five multipliers,
// ordered from the largest road bucket to the smallest.
func getEnvClassWeights(key string, defaultValue [5]float64) [5]float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	if len(parts) != 5 {
		return defaultValue
	}
	var out [5]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return defaultValue
		}
		out[i] = f
	}
	return out
}

func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
