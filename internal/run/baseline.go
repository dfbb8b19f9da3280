package run

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"apidiff/internal/core"
)

// WriteBaseline writes outcomes as an indented JSON array, creating
// parent directories as needed.
func WriteBaseline(path string, outcomes []core.Outcome) error {
	data, err := json.MarshalIndent(outcomes, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding outcomes: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// LoadBaseline reads a previously recorded outcome file.
func LoadBaseline(path string) ([]core.Outcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var outcomes []core.Outcome
	if err := json.Unmarshal(data, &outcomes); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return outcomes, nil
}
