package dataset

import (
	"encoding/json"
	"fmt"
	"os"
)

// SelectorConfig tells the decoder where records live inside wrapped documents.
type SelectorConfig struct {
	DataScript   string `json:"data_script"`   // e.g., "script#tools-data"
	RecordsKey   string `json:"records_key"`   // e.g., "tools" in {"tools": [...]}
	JSONLDScript string `json:"jsonld_script"` // schema.org fallback
}

// LoadSelectors reads a selector override file from disk.
func LoadSelectors(path string) (SelectorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to read selector config file: %w", err)
	}
	return LoadSelectorsFromBytes(data)
}

// LoadSelectorsFromBytes parses selector configuration from raw JSON bytes.
// Missing fields keep their defaults.
func LoadSelectorsFromBytes(data []byte) (SelectorConfig, error) {
	sel := DefaultSelectors()
	if err := json.Unmarshal(data, &sel); err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to parse selector config JSON: %w", err)
	}
	if sel.DataScript == "" || sel.RecordsKey == "" {
		return SelectorConfig{}, fmt.Errorf("selector config must set data_script and records_key")
	}
	return sel, nil
}

// DefaultSelectors matches the markup the published catalog page uses today.
func DefaultSelectors() SelectorConfig {
	return SelectorConfig{
		DataScript:   "script#tools-data",
		RecordsKey:   "tools",
		JSONLDScript: `script[type="application/ld+json"]`,
	}
}
