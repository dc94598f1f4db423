package catalog

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MarshalYAML encodes an entry list to YAML bytes.
func MarshalYAML(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return nil, fmt.Errorf("encoding catalog: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveYAML writes the entry list to a file on disk.
func SaveYAML(path string, entries []Entry) error {
	data, err := MarshalYAML(entries)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Merge adds e to the list and returns the updated slice. An entry with the
// same source URL is replaced.
func Merge(entries []Entry, e Entry) []Entry {
	if existing := BySourceURL(entries, e.SourceURL); existing != nil {
		*existing = e
		return entries
	}
	return append(entries, e)
}
