// Package conversations loads scripted multi-persona conversations from disk
// and replays them into Discord channels through persona webhooks.
package conversations

import "fmt"

// Persona is a named simulated speaker. Personas live in a single shared
// catalog file and are referenced by id from conversation events.
type Persona struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Description string `json:"description"`
}

// Event is one scripted message, attributed to a persona from the catalog.
type Event struct {
	PersonaID string `json:"personaId"`
	Content   string `json:"content"`
}

// personasFile is the on-disk shape of the persona catalog.
type personasFile struct {
	Personas []Persona `json:"personas"`
}

// conversationFile is the on-disk shape of a conversation script.
type conversationFile struct {
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
	Events      []Event `json:"events"`
}

// Conversation is a fully resolved script: every event's persona has been
// looked up in the catalog and collected into Personas.
type Conversation struct {
	Name        string
	Description string
	Personas    map[string]Persona
	Events      []Event
}

// ListItem is a lightweight directory listing entry for autocomplete and
// summaries.
type ListItem struct {
	Name        string
	Description string
}

// ValidationError reports a structurally invalid conversation or persona
// definition. Callers surface the message to the invoking user as-is.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}
