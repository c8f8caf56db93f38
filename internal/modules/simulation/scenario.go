package simulation

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadScenario reads a simulation request from a YAML or JSON file.
func LoadScenario(path string) (*Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes a simulation request, trying YAML first and falling
// back to JSON.
func ParseScenario(data []byte) (*Request, error) {
	req := &Request{}
	if err := yaml.Unmarshal(data, req); err != nil {
		req = &Request{}
		if jsonErr := json.Unmarshal(data, req); jsonErr != nil {
			return nil, fmt.Errorf("parse scenario (tried YAML and JSON): %w", jsonErr)
		}
	}
	return req, nil
}
