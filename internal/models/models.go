// Package models describes the search modes and model preferences the
// downstream provider is known to accept. The catalog is informational:
// the gateway forwards whatever the client asked for and lets the provider
// reject unknown values, so an out-of-date catalog never blocks a request.
package models

// Mode describes one search mode and the model preferences usable with it.
type Mode struct {
	Name   string   `json:"name"`
	Models []string `json:"models,omitempty"`
}

// Catalog is the known mode/model matrix.
var Catalog = []Mode{
	{Name: "auto"},
	{Name: "pro", Models: []string{
		"sonar",
		"gpt-5.2",
		"claude-4.5-sonnet",
		"gemini-2.5-pro",
		"grok-4",
	}},
	{Name: "reasoning", Models: []string{
		"o3",
		"r1",
		"claude-4.5-sonnet-thinking",
	}},
	{Name: "deep research", Models: []string{
		"pplx_alpha",
	}},
}

// KnownMode reports whether a mode tag appears in the catalog. Informational
// only; callers must not reject requests based on it.
func KnownMode(name string) bool {
	for _, m := range Catalog {
		if m.Name == name {
			return true
		}
	}
	return false
}
