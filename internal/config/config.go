// Package config loads parameter sets for the command-line tools.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/luxfi/lwe"
)

// ErrUnknownPreset is returned for a preset name not in lwe.Presets.
var ErrUnknownPreset = errors.New("unknown parameter preset")

// header is decoded first to find the base preset of a parameter file.
type header struct {
	Preset string `json:"preset" yaml:"preset"`
}

// Preset returns the named parameter literal. An empty name selects
// lwe.DefaultParametersLiteral.
func Preset(name string) (lwe.ParametersLiteral, error) {
	if name == "" {
		return lwe.DefaultParametersLiteral, nil
	}
	lit, ok := lwe.Presets[name]
	if !ok {
		return lwe.ParametersLiteral{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return lit, nil
}

// Parse decodes a parameter file. Files ending in .json are decoded as JSON,
// everything else as YAML. A file may name a preset and override any of its
// fields:
//
//	preset: PN256Q40961
//	std_dev: 3.5
func Parse(name string, data []byte) (lwe.ParametersLiteral, error) {
	unmarshal := yaml.Unmarshal
	if strings.EqualFold(filepath.Ext(name), ".json") {
		unmarshal = json.Unmarshal
	}

	var h header
	if err := unmarshal(data, &h); err != nil {
		return lwe.ParametersLiteral{}, fmt.Errorf("parse %s: %w", name, err)
	}

	lit, err := Preset(h.Preset)
	if err != nil {
		return lwe.ParametersLiteral{}, err
	}
	if err := unmarshal(data, &lit); err != nil {
		return lwe.ParametersLiteral{}, fmt.Errorf("parse %s: %w", name, err)
	}
	return lit, nil
}

// Load reads and validates a parameter file.
func Load(path string) (lwe.Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return lwe.Parameters{}, fmt.Errorf("read params: %w", err)
	}

	lit, err := Parse(path, data)
	if err != nil {
		return lwe.Parameters{}, err
	}
	return lwe.NewParametersFromLiteral(lit)
}

// Resolve returns the parameters from path when set, otherwise from the
// named preset.
func Resolve(path, preset string) (lwe.Parameters, error) {
	if path != "" {
		return Load(path)
	}
	lit, err := Preset(preset)
	if err != nil {
		return lwe.Parameters{}, err
	}
	return lwe.NewParametersFromLiteral(lit)
}
