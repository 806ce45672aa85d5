package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds the search knobs that may be overridden from a YAML file:
//
//	threshold: 0.35
//	weights:
//	  name: 0.4
//	  keywords: 0.2
type Tuning struct {
	Threshold float64            `yaml:"threshold"`
	Weights   map[string]float64 `yaml:"weights"`
}

// DefaultTuning returns an empty tuning; the index supplies its own defaults for unset knobs.
func DefaultTuning() Tuning {
	return Tuning{}
}

// LoadTuning reads a YAML tuning file.
func LoadTuning(path string) (Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("read tuning file %s: %w", path, err)
	}
	var t Tuning
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tuning{}, fmt.Errorf("parse tuning file %s: %w", path, err)
	}
	if t.Threshold < 0 || t.Threshold > 1 {
		return Tuning{}, fmt.Errorf("tuning threshold %v out of range [0,1]", t.Threshold)
	}
	for field, w := range t.Weights {
		if w < 0 {
			return Tuning{}, fmt.Errorf("tuning weight for %q is negative", field)
		}
	}
	return t, nil
}
