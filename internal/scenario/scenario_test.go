package scenario

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-sim/internal/parking"
)

func validScenario() Scenario {
	return Scenario{
		ID:     "tiny",
		Name:   "Tiny",
		Layout: parking.Layout{Rows: 1, Columns: 1, SpaceWidth: 2.5, SpaceLength: 5, AisleWidth: 6},
		Vehicles: []VehicleSpec{
			{Kind: parking.KindCar, X: 0, Z: -40},
		},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validScenario().Validate())

	s := validScenario()
	s.Layout.AisleWidth = 0
	assert.ErrorIs(t, s.Validate(), ErrInvalidLayout)

	s = validScenario()
	s.Layout.Rows = -2
	assert.ErrorIs(t, s.Validate(), ErrInvalidLayout)

	s = validScenario()
	s.Vehicles[0].Kind = "bus"
	assert.ErrorIs(t, s.Validate(), ErrInvalidVehicle)

	s = validScenario()
	s.SpawnRate = -1
	assert.ErrorIs(t, s.Validate(), ErrInvalidRate)

	s = validScenario()
	s.LeaveRate = 1.5
	assert.ErrorIs(t, s.Validate(), ErrInvalidRate)

	s = validScenario()
	s.ID = ""
	assert.Error(t, s.Validate())
}

func TestValidateRejectsNonFinite(t *testing.T) {
	nan, inf := math.NaN(), math.Inf(1)

	for name, mutate := range map[string]func(*Scenario){
		"x":       func(s *Scenario) { s.Vehicles[0].X = nan },
		"z":       func(s *Scenario) { s.Vehicles[0].Z = -inf },
		"heading": func(s *Scenario) { s.Vehicles[0].Heading = inf },
	} {
		s := validScenario()
		mutate(&s)
		assert.ErrorIs(t, s.Validate(), ErrInvalidVehicle, name)
	}

	s := validScenario()
	s.Layout.SpaceWidth = inf
	assert.ErrorIs(t, s.Validate(), ErrInvalidLayout)

	s = validScenario()
	s.SpawnRate = nan
	assert.ErrorIs(t, s.Validate(), ErrInvalidRate)

	s = validScenario()
	s.SpawnRate = inf
	assert.ErrorIs(t, s.Validate(), ErrInvalidRate)

	s = validScenario()
	s.LeaveRate = nan
	assert.ErrorIs(t, s.Validate(), ErrInvalidRate)
}

func TestBuiltinCatalog(t *testing.T) {
	c := Builtin()

	assert.Equal(t, []string{"default", "quiet", "rush-hour", "full"}, c.IDs())
	for _, s := range c.All() {
		assert.NoError(t, s.Validate(), s.ID)
	}

	full, err := c.Get("full")
	require.NoError(t, err)
	assert.Greater(t, len(full.Vehicles), full.TotalSpaces())
}

func TestCatalogGetUnknown(t *testing.T) {
	_, err := Builtin().Get("nope")
	assert.ErrorIs(t, err, ErrUnknownScenario)
}

func TestCatalogMergeReplacesInPlace(t *testing.T) {
	c := Builtin()
	replacement := validScenario()
	replacement.ID = "quiet"

	require.NoError(t, c.Merge(replacement))

	assert.Equal(t, 4, c.Len())
	assert.Equal(t, "quiet", c.IDs()[1])
	got, err := c.Get("quiet")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Layout.Columns)
}

func TestCatalogMergeRejectsInvalid(t *testing.T) {
	c := Builtin()
	bad := validScenario()
	bad.Layout.SpaceWidth = 0

	assert.ErrorIs(t, c.Merge(validScenario(), bad), ErrInvalidLayout)
	assert.Equal(t, 4, c.Len(), "a failed merge must not add anything")
}

const sampleYAML = `
scenarios:
  - id: corner
    name: Corner Lot
    layout:
      rows: 2
      columns: 4
      space_width: 2.5
      space_length: 5
      aisle_width: 6
    vehicles:
      - kind: truck
        x: 1
        z: -30
        heading: 0
        color: orange
    spawn_rate: 0.5
    leave_rate: 0.01
`

func TestParse(t *testing.T) {
	scenarios, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	require.Len(t, scenarios, 1)

	s := scenarios[0]
	assert.Equal(t, "corner", s.ID)
	assert.Equal(t, 16, s.TotalSpaces())
	assert.Equal(t, parking.KindTruck, s.Vehicles[0].Kind)
	assert.Equal(t, "orange", s.Vehicles[0].Color)
	assert.InDelta(t, 0.5, s.SpawnRate, 1e-9)
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte("scenarios: ["))
	assert.Error(t, err)

	_, err = Parse([]byte("scenarios:\n  - id: broken\n    layout: {rows: 0}\n"))
	assert.ErrorIs(t, err, ErrInvalidLayout)

	nanVehicle := strings.Replace(sampleYAML, "x: 1", "x: .nan", 1)
	require.NotEqual(t, sampleYAML, nanVehicle)
	_, err = Parse([]byte(nanVehicle))
	assert.ErrorIs(t, err, ErrInvalidVehicle)
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, 5, c.Len())
	_, err = c.Get("corner")
	assert.NoError(t, err)

	c, err = LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, 4, c.Len())

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
