package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest records what one run wrote.
type Manifest struct {
	RunID       string         `yaml:"run_id"`
	GeneratedAt time.Time      `yaml:"generated_at"`
	Datasets    []DatasetEntry `yaml:"datasets"`
}

// DatasetEntry describes one written dataset.
type DatasetEntry struct {
	Name     string   `yaml:"name"`
	Rows     int      `yaml:"rows"`
	Columns  []string `yaml:"columns"`
	Files    []string `yaml:"files"`
	Uploaded []string `yaml:"uploaded,omitempty"`
}

// WriteManifest encodes m as YAML at path.
func WriteManifest(path string, m Manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest decodes the manifest at path.
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("failed to read manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("failed to decode manifest %s: %w", path, err)
	}
	return m, nil
}
