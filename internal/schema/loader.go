package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadInputFile reads raw form values from a YAML or JSON document.
// Format is detected by extension, or by content when the extension is unknown.
func LoadInputFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return ParseInput(data, filepath.Ext(path))
}

// ParseInput parses raw form values. ext is a format hint such as ".yaml".
func ParseInput(data []byte, ext string) (map[string]any, error) {
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	if ext == "" || (ext != ".yaml" && ext != ".json") {
		if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
			ext = ".json"
		} else {
			ext = ".yaml"
		}
	}

	raw := map[string]any{}
	if ext == ".json" {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse input json: %w", err)
		}
		return raw, nil
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse input yaml: %w", err)
	}
	return raw, nil
}
