package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidEntry = errors.New("invalid catalog entry")

// entry mirrors the on-disk provider record.
type entry struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url"  yaml:"url"`
	Key  string `json:"key"  yaml:"key"`
}

// Load reads a catalog file. Files ending in .yaml or .yml are parsed as
// YAML, everything else as JSON.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON parses a JSON array of provider records.
func ParseJSON(data []byte) (*Catalog, error) {
	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	return build(entries)
}

// ParseYAML parses a YAML sequence of provider records.
func ParseYAML(data []byte) (*Catalog, error) {
	var entries []entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	return build(entries)
}

func build(entries []entry) (*Catalog, error) {
	providers := make([]Provider, 0, len(entries))

	for i, e := range entries {
		if e.URL == "" || e.Key == "" {
			return nil, fmt.Errorf("%w: entry %d needs url and key", ErrInvalidEntry, i)
		}

		providers = append(providers, Provider{Name: e.Name, URL: e.URL, Key: e.Key})
	}

	return New(providers), nil
}
