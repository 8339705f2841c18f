package conversations

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadManifest(t *testing.T) {
	_, dir := newTestLoader(t)
	writeFile(t, dir, "seed.manifest.json", `[
	  {"name": "greeting", "channel": "general", "delayMs": 800, "recordMessages": [1, 3]},
	  {"name": "farewell", "channel": "off-topic"}
	]`)

	entries, err := LoadManifest(dir)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}

	want := []ManifestEntry{
		{Name: "greeting", Channel: "general", DelayMs: 800, RecordMessages: []int{1, 3}},
		{Name: "farewell", Channel: "off-topic"},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("manifest mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadManifestMissingFile(t *testing.T) {
	entries, err := LoadManifest(t.TempDir())
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if entries != nil {
		t.Errorf("missing manifest loaded as %v, want nil", entries)
	}
}

func TestLoadManifestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "invalid json", content: `{not json`},
		{name: "missing name", content: `[{"channel": "general"}]`},
		{name: "missing channel", content: `[{"name": "greeting"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "seed.manifest.json", tt.content)

			_, err := LoadManifest(dir)
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("LoadManifest error = %v, want ValidationError", err)
			}
		})
	}
}
