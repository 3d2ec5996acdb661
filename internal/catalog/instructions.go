package catalog

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// Instructions is the rendered extra content carried in a section's metadata.
type Instructions struct {
	Instructions string `json:"instructions,omitempty"`
	HTML         string `json:"html,omitempty"`
	AudioURL     string `json:"audioUrl,omitempty"`
}

func (i Instructions) Empty() bool {
	return i == Instructions{}
}

// ParseInstructions decodes section metadata. Malformed metadata is logged and treated
// as no extra content.
func ParseInstructions(logger *slog.Logger, sectionID, metadata string) Instructions {
	metadata = strings.TrimSpace(metadata)
	if metadata == "" {
		return Instructions{}
	}

	var out Instructions
	if err := json.Unmarshal([]byte(metadata), &out); err != nil {
		if logger != nil {
			logger.Warn("Ignoring malformed section metadata",
				"section_id", sectionID,
				"error", err)
		}
		return Instructions{}
	}
	return out
}
