package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk format: a list of scenarios under a top-level key.
type File struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadFile reads scenarios from a YAML file.
func LoadFile(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML scenario data.
func Parse(data []byte) ([]Scenario, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing scenario YAML: %w", err)
	}
	for _, s := range f.Scenarios {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return f.Scenarios, nil
}

// LoadCatalog returns the builtin catalog extended with the scenarios in path.
// An empty path yields the builtin catalog alone.
func LoadCatalog(path string) (*Catalog, error) {
	c := Builtin()
	if path == "" {
		return c, nil
	}
	scenarios, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := c.Merge(scenarios...); err != nil {
		return nil, err
	}
	return c, nil
}
