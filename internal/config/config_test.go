package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	os.Clearenv()
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Empty(t, cfg.LogLevel)
	assert.Equal(t, "parking-sim", cfg.OTelServiceName)
	assert.Equal(t, "http://localhost:4318", cfg.OTelEndpoint)
	assert.InDelta(t, 60, cfg.TickRate, 0.001)
	assert.Equal(t, 100*time.Millisecond, cfg.MaxDelta)
	assert.Equal(t, uint64(0), cfg.Seed)
	assert.Equal(t, "default", cfg.Scenario)
	assert.Empty(t, cfg.ScenarioFile)
	assert.InDelta(t, 0.001, cfg.DepartureChance, 1e-9)
	assert.Equal(t, 200, cfg.MaxVehicles)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("SIM_TICK_RATE", "30")
	t.Setenv("SIM_MAX_DELTA", "250ms")
	t.Setenv("SIM_SEED", "42")
	t.Setenv("SIM_SCENARIO", "rush-hour")
	t.Setenv("SIM_SCENARIO_FILE", "/etc/parking/scenarios.yaml")
	t.Setenv("SIM_DEPARTURE_CHANCE", "0.01")
	t.Setenv("SIM_MAX_VEHICLES", "50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.InDelta(t, 30, cfg.TickRate, 0.001)
	assert.Equal(t, 250*time.Millisecond, cfg.MaxDelta)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, "rush-hour", cfg.Scenario)
	assert.Equal(t, "/etc/parking/scenarios.yaml", cfg.ScenarioFile)
	assert.InDelta(t, 0.01, cfg.DepartureChance, 1e-9)
	assert.Equal(t, 50, cfg.MaxVehicles)
	assert.Equal(t, time.Second/30, cfg.TickInterval())
}

func TestInvalidNumericFallsBackToDefault(t *testing.T) {
	t.Setenv("SIM_TICK_RATE", "fast")
	t.Setenv("SIM_SEED", "-3")
	t.Setenv("SIM_MAX_VEHICLES", "many")

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 60, cfg.TickRate, 0.001)
	assert.Equal(t, uint64(0), cfg.Seed)
	assert.Equal(t, 200, cfg.MaxVehicles)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("SIM_TICK_RATE", "0")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("SIM_TICK_RATE", "60")
	t.Setenv("SIM_DEPARTURE_CHANCE", "2")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("SIM_DEPARTURE_CHANCE", "0.001")
	t.Setenv("SIM_MAX_DELTA", "soon")
	_, err = Load()
	assert.Error(t, err)
}
