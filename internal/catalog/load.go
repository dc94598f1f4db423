package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadYAML reads an exported entry list from disk.
func LoadYAML(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML decodes YAML bytes into an entry list.
func ParseYAML(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return []Entry{}, nil
	}
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing catalog YAML: %w", err)
	}
	if entries == nil {
		return []Entry{}, nil
	}
	return entries, nil
}
