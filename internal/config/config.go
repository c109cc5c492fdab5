package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	Environment string
	// LogLevel overrides the environment's default level when set.
	LogLevel string

	OTelServiceName string
	OTelEndpoint    string

	TickRate        float64
	MaxDelta        time.Duration
	Seed            uint64
	Scenario        string
	ScenarioFile    string
	DepartureChance float64
	MaxVehicles     int
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:            envOr("PORT", "8080"),
		Environment:     envOr("ENVIRONMENT", "development"),
		LogLevel:        envOr("LOG_LEVEL", ""),
		OTelServiceName: envOr("OTEL_SERVICE_NAME", "parking-sim"),
		OTelEndpoint:    envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
		TickRate:        envOrFloat("SIM_TICK_RATE", 60),
		Seed:            envOrUint("SIM_SEED", 0),
		Scenario:        envOr("SIM_SCENARIO", "default"),
		ScenarioFile:    envOr("SIM_SCENARIO_FILE", ""),
		DepartureChance: envOrFloat("SIM_DEPARTURE_CHANCE", 0.001),
		MaxVehicles:     envOrInt("SIM_MAX_VEHICLES", 200),
	}

	maxDelta := envOr("SIM_MAX_DELTA", "100ms")
	duration, err := time.ParseDuration(maxDelta)
	if err != nil {
		return nil, fmt.Errorf("invalid SIM_MAX_DELTA: %w", err)
	}
	cfg.MaxDelta = duration

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.TickRate <= 0 {
		return fmt.Errorf("SIM_TICK_RATE must be positive, got %v", c.TickRate)
	}
	if c.MaxDelta <= 0 {
		return fmt.Errorf("SIM_MAX_DELTA must be positive, got %v", c.MaxDelta)
	}
	if c.DepartureChance < 0 || c.DepartureChance > 1 {
		return fmt.Errorf("SIM_DEPARTURE_CHANCE must be within [0,1], got %v", c.DepartureChance)
	}
	if c.MaxVehicles <= 0 {
		return fmt.Errorf("SIM_MAX_VEHICLES must be positive, got %d", c.MaxVehicles)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// TickInterval is the wall-clock period of one simulation tick.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.TickRate)
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envOrFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envOrUint(key string, fallback uint64) uint64 {
	if v, ok := os.LookupEnv(key); ok {
		if u, err := strconv.ParseUint(v, 10, 64); err == nil {
			return u
		}
	}
	return fallback
}
