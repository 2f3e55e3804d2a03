package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExtractSuffix is the suffix of text extracts. Only entries with this exact
// suffix are published in the manifest.
const ExtractSuffix = ".txt"

// BuildManifest rescans dir and writes the names of all visible text extracts, in
// directory order, to the manifest file inside it. Any previous manifest is
// replaced. The returned slice is what was written.
func BuildManifest(dir, manifestName string) ([]string, error) {
	entries, err := Scan(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || hidden(e.Name()) || !strings.HasSuffix(e.Name(), ExtractSuffix) {
			continue
		}
		names = append(names, e.Name())
	}

	if err := WriteManifest(filepath.Join(dir, manifestName), names); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFatal, err)
	}
	return names, nil
}

// WriteManifest serializes names as an indented JSON array. A nil slice is
// written as [].
func WriteManifest(path string, names []string) error {
	if names == nil {
		names = []string{}
	}
	data, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("write manifest %s: %w", path, err)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}
