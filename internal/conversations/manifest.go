package conversations

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const manifestFilename = "seed.manifest.json"

// ManifestEntry maps one conversation script to the channel it seeds.
type ManifestEntry struct {
	// Name of the conversation file, without the .json extension.
	Name string `json:"name"`

	// Channel is the guild text channel the conversation is replayed into,
	// created when missing.
	Channel string `json:"channel"`

	// DelayMs optionally overrides the inter-message delay for this entry.
	DelayMs int `json:"delayMs,omitempty"`

	// RecordMessages lists 1-based event indexes to run through the topic
	// recording workflow after seeding.
	RecordMessages []int `json:"recordMessages,omitempty"`
}

// LoadManifest reads the seed manifest from the conversation data directory.
// A missing manifest is not an error; it loads as empty.
func LoadManifest(dir string) ([]ManifestEntry, error) {
	raw, err := os.ReadFile(filepath.Join(dir, manifestFilename))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read seed manifest: %w", err)
	}

	var entries []ManifestEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, validationErrorf("seed manifest contains invalid JSON: %v", err)
	}

	for i, entry := range entries {
		if entry.Name == "" {
			return nil, validationErrorf("seed manifest entry %d is missing a name", i+1)
		}
		if entry.Channel == "" {
			return nil, validationErrorf("seed manifest entry %d is missing a channel", i+1)
		}
	}

	return entries, nil
}
