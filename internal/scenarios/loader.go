package scenarios

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const scenarioExtension = ".json"

var namePattern = regexp.MustCompile(`(?i)^[a-z0-9-]+$`)

// Loader reads scenario definitions from a data directory. Scenario files are
// read on every call so edits are picked up live.
type Loader struct {
	dir    string
	logger *slog.Logger
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{dir: dir, logger: logger}
}

// List enumerates the loadable scenarios, sorted by name. Unreadable files
// are logged and skipped.
func (l *Loader) List() ([]ListItem, error) {
	if err := l.ensureDir(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario directory: %w", err)
	}

	items := make([]ListItem, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), scenarioExtension) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), scenarioExtension)

		file, err := l.readScenarioFile(name)
		if err != nil {
			l.logger.Warn("skipping scenario", "file", entry.Name(), "error", err)
			continue
		}
		items = append(items, ListItem{Name: name, Description: file.Description})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

// Load reads and validates the named scenario.
func (l *Loader) Load(name string) (*Scenario, error) {
	if err := l.ensureDir(); err != nil {
		return nil, err
	}
	if !namePattern.MatchString(name) {
		return nil, validationErrorf("invalid scenario name %q, use alphanumeric characters and dashes only", name)
	}

	file, err := l.readScenarioFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, validationErrorf("scenario %q was not found", name)
		}
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			return nil, validationErrorf("scenario %q contains invalid JSON: %v", name, err)
		}
		return nil, err
	}
	if file.Name == "" {
		file.Name = name
	}

	return resolveScenario(file)
}

func (l *Loader) readScenarioFile(name string) (*scenarioFile, error) {
	raw, err := os.ReadFile(filepath.Join(l.dir, name+scenarioExtension))
	if err != nil {
		return nil, err
	}

	var file scenarioFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

func resolveScenario(file *scenarioFile) (*Scenario, error) {
	if strings.TrimSpace(file.Name) == "" {
		return nil, validationErrorf("scenario must include a name")
	}
	if len(file.Actors) == 0 {
		return nil, validationErrorf("scenario must define at least one actor")
	}
	if len(file.Events) == 0 {
		return nil, validationErrorf("scenario must include at least one event")
	}

	actors := make(map[string]Actor, len(file.Actors))
	for id, actor := range file.Actors {
		actor.ID = id
		actors[id] = actor
	}

	for i, event := range file.Events {
		if event.ActorID == "" {
			return nil, validationErrorf("event %d is missing an actorId", i+1)
		}
		if _, ok := actors[event.ActorID]; !ok {
			return nil, validationErrorf("event %d references unknown actor %q", i+1, event.ActorID)
		}
		if strings.TrimSpace(event.Content) == "" {
			return nil, validationErrorf("event %d has empty content", i+1)
		}
	}

	return &Scenario{
		Name:        file.Name,
		Description: file.Description,
		Actors:      actors,
		Events:      file.Events,
	}, nil
}

func (l *Loader) ensureDir() error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create scenario directory: %w", err)
	}
	return nil
}
