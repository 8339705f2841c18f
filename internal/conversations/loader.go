package conversations

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
	"sync"
)

const (
	conversationExtension = ".json"
	personaFilename       = "personas.json"

	// maxPersonaCount bounds the shared catalog; the replay runner provisions
	// one webhook per persona and channels cap out at a handful.
	maxPersonaCount = 10
)

var namePattern = regexp.MustCompile(`(?i)^[a-z0-9-]+$`)

type personaCatalog struct {
	byID map[string]Persona
	list []Persona
}

// Loader reads persona and conversation definitions from a data directory.
// The persona catalog is loaded once and cached for the life of the process;
// conversation files are read on every call so edits are picked up live.
type Loader struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	catalog *personaCatalog
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{dir: dir, logger: logger}
}

// Personas returns the catalog in file order.
func (l *Loader) Personas() ([]Persona, error) {
	catalog, err := l.personaCatalog()
	if err != nil {
		return nil, err
	}
	return catalog.list, nil
}

// PersonaMap returns the catalog keyed by persona id.
func (l *Loader) PersonaMap() (map[string]Persona, error) {
	catalog, err := l.personaCatalog()
	if err != nil {
		return nil, err
	}
	return catalog.byID, nil
}

// ResetPersonaCache drops the cached catalog so the next call re-reads the
// personas file.
func (l *Loader) ResetPersonaCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.catalog = nil
}

func (l *Loader) personaCatalog() (*personaCatalog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.catalog != nil {
		return l.catalog, nil
	}

	catalog, err := l.loadPersonas()
	if err != nil {
		return nil, err
	}
	l.catalog = catalog
	return catalog, nil
}

func (l *Loader) loadPersonas() (*personaCatalog, error) {
	if err := l.ensureDir(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(filepath.Join(l.dir, personaFilename))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, validationErrorf("personas file was not found")
		}
		return nil, fmt.Errorf("read personas file: %w", err)
	}

	var file personasFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, validationErrorf("personas file contains invalid JSON: %v", err)
	}

	if len(file.Personas) == 0 {
		return nil, validationErrorf("personas file must contain at least one persona")
	}
	if len(file.Personas) > maxPersonaCount {
		return nil, validationErrorf("personas file defines %d personas, exceeding the limit of %d", len(file.Personas), maxPersonaCount)
	}

	byID := make(map[string]Persona, len(file.Personas))
	displayNames := make(map[string]bool, len(file.Personas))
	list := make([]Persona, 0, len(file.Personas))

	for i, persona := range file.Personas {
		if err := validatePersona(persona, i); err != nil {
			return nil, err
		}
		if _, ok := byID[persona.ID]; ok {
			return nil, validationErrorf("duplicate persona id %q detected", persona.ID)
		}
		if displayNames[persona.DisplayName] {
			return nil, validationErrorf("duplicate persona display name %q detected", persona.DisplayName)
		}
		displayNames[persona.DisplayName] = true
		byID[persona.ID] = persona
		list = append(list, persona)
	}

	return &personaCatalog{byID: byID, list: list}, nil
}

func validatePersona(persona Persona, index int) error {
	if persona.ID == "" || !namePattern.MatchString(persona.ID) {
		return validationErrorf("persona %d has invalid id %q, use alphanumeric characters and dashes only", index+1, persona.ID)
	}
	if strings.TrimSpace(persona.DisplayName) == "" {
		return validationErrorf("persona %s is missing a displayName", persona.ID)
	}
	if strings.TrimSpace(persona.Description) == "" {
		return validationErrorf("persona %s is missing a description", persona.ID)
	}
	return nil
}

// List enumerates the loadable conversations in the data directory, sorted by
// name. Unreadable files are logged and skipped rather than failing the whole
// listing.
func (l *Loader) List() ([]ListItem, error) {
	if err := l.ensureDir(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read conversation directory: %w", err)
	}

	items := make([]ListItem, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), conversationExtension) {
			continue
		}
		if entry.Name() == personaFilename {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), conversationExtension)

		file, err := l.readConversationFile(name)
		if err != nil {
			l.logger.Warn("skipping conversation", "file", entry.Name(), "error", err)
			continue
		}
		items = append(items, ListItem{Name: name, Description: file.Description})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

// Load reads and validates the named conversation, resolving every event's
// persona against the catalog.
func (l *Loader) Load(name string) (*Conversation, error) {
	if err := l.ensureDir(); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	catalog, err := l.personaCatalog()
	if err != nil {
		return nil, err
	}

	file, err := l.readConversationFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, validationErrorf("conversation %q was not found", name)
		}
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			return nil, validationErrorf("conversation %q contains invalid JSON: %v", name, err)
		}
		return nil, err
	}
	if file.Name == "" {
		file.Name = name
	}

	return resolveConversation(file, catalog.byID)
}

func validateName(name string) error {
	if !namePattern.MatchString(name) {
		return validationErrorf("invalid conversation name %q, use alphanumeric characters and dashes only", name)
	}
	if name+conversationExtension == personaFilename {
		return validationErrorf("reserved conversation name")
	}
	return nil
}

func (l *Loader) readConversationFile(name string) (*conversationFile, error) {
	if name+conversationExtension == personaFilename {
		return nil, validationErrorf("reserved conversation name")
	}

	raw, err := os.ReadFile(filepath.Join(l.dir, name+conversationExtension))
	if err != nil {
		return nil, err
	}

	var file conversationFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

func resolveConversation(file *conversationFile, catalog map[string]Persona) (*Conversation, error) {
	if strings.TrimSpace(file.Name) == "" {
		return nil, validationErrorf("conversation must include a name")
	}
	if len(file.Events) == 0 {
		return nil, validationErrorf("conversation must include at least one event")
	}

	personas := make(map[string]Persona)
	for i, event := range file.Events {
		if event.PersonaID == "" {
			return nil, validationErrorf("event %d is missing a personaId", i+1)
		}
		persona, ok := catalog[event.PersonaID]
		if !ok {
			return nil, validationErrorf("event %d references unknown persona %q", i+1, event.PersonaID)
		}
		if strings.TrimSpace(event.Content) == "" {
			return nil, validationErrorf("event %d has empty content", i+1)
		}
		personas[persona.ID] = persona
	}

	return &Conversation{
		Name:        file.Name,
		Description: file.Description,
		Personas:    personas,
		Events:      file.Events,
	}, nil
}

func (l *Loader) ensureDir() error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create conversation directory: %w", err)
	}
	return nil
}
