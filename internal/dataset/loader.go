package dataset

import (
	"embed"
	"log/slog"
)

//go:embed selectors.json
var embeddedSelectors embed.FS

// LoadSelectorConfig resolves selectors in order: an explicit file (when path
// is set), the embedded selectors.json, then hardcoded defaults.
func LoadSelectorConfig(path string) SelectorConfig {
	if path != "" {
		if sel, err := LoadSelectors(path); err == nil {
			slog.Info("Loaded dataset selectors from file", "path", path)
			return sel
		} else {
			slog.Warn("Failed to load dataset selectors file, trying embedded", "path", path, "error", err)
		}
	}

	data, err := embeddedSelectors.ReadFile("selectors.json")
	if err == nil {
		sel, parseErr := LoadSelectorsFromBytes(data)
		if parseErr == nil {
			return sel
		}
		slog.Warn("Embedded selectors failed to parse, using defaults", "error", parseErr)
	}
	return DefaultSelectors()
}
