// Package scenarios loads self-contained scripted scenes from disk and
// replays them through a single throwaway channel webhook.
//
// Unlike conversations, a scenario carries its own actor roster inline; the
// webhook impersonates each actor per message via username and avatar
// overrides.
package scenarios

import "fmt"

// Actor is a speaker defined inline by the scenario file.
type Actor struct {
	ID          string
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Event is one scripted message, attributed to an inline actor.
type Event struct {
	ActorID string `json:"actorId"`
	Content string `json:"content"`
}

// scenarioFile is the on-disk shape of a scenario script.
type scenarioFile struct {
	Name        string           `json:"name,omitempty"`
	Description string           `json:"description,omitempty"`
	Actors      map[string]Actor `json:"actors"`
	Events      []Event          `json:"events"`
}

// Scenario is a fully resolved script with its actor roster keyed by id.
type Scenario struct {
	Name        string
	Description string
	Actors      map[string]Actor
	Events      []Event
}

// ListItem is a lightweight directory listing entry for autocomplete and
// summaries.
type ListItem struct {
	Name        string
	Description string
}

// ValidationError reports a structurally invalid scenario definition.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}
