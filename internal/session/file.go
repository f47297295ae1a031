package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteExport writes exp as indented JSON to path, creating parent directories.
// The write is atomic: a reader sees either the old file or the complete new one.
func WriteExport(path string, exp Export) error {
	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling export: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing export temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming export file: %w", err)
	}
	return nil
}

// ReadExport loads an export written by WriteExport.
func ReadExport(path string) (Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Export{}, fmt.Errorf("reading export: %w", err)
	}
	var exp Export
	if err := json.Unmarshal(data, &exp); err != nil {
		return Export{}, fmt.Errorf("unmarshaling export: %w", err)
	}
	return exp, nil
}
