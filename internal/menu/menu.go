// Package menu implements the declarative routing table for plain menu
// states. Adding a navigation screen is a table entry, not dispatcher code.
package menu

import (
	"fmt"
	"sort"
	"strings"
)

// Option is one selectable entry in a menu.
type Option struct {
	// Label is the user-visible text for the option.
	Label string
	// Next is the state entered when the option is chosen.
	Next string
}

// Entry is a full menu screen: its prompt and its token → option table.
type Entry struct {
	// Prompt is the header line rendered above the options.
	Prompt string
	// Options maps the numeric token ("1", "2", …) to the option.
	Options map[string]Option
}

// Registry is the static state → menu table, loaded once at startup.
type Registry struct {
	entries map[string]Entry
	// known holds every state name the registry may transition into,
	// including handler-backed states outside the table.
	known map[string]bool
}

// NewRegistry builds a registry over the given table. knownStates lists
// every valid dialogue state so Validate can check that each Next resolves.
func NewRegistry(table map[string]Entry, knownStates []string) *Registry {
	known := make(map[string]bool, len(knownStates))
	for _, s := range knownStates {
		known[s] = true
	}
	return &Registry{entries: table, known: known}
}

// Has reports whether state is menu-driven.
func (r *Registry) Has(state string) bool {
	_, ok := r.entries[state]
	return ok
}

// Render returns the prompt text for a menu state: header plus one line per
// option in token order.
func (r *Registry) Render(state string) string {
	entry, ok := r.entries[state]
	if !ok {
		return ""
	}

	tokens := make([]string, 0, len(entry.Options))
	for t := range entry.Options {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)

	var b strings.Builder
	b.WriteString(entry.Prompt)
	for _, t := range tokens {
		b.WriteString(fmt.Sprintf("\n%s. %s", t, entry.Options[t].Label))
	}
	return b.String()
}

// RenderInvalid re-renders the menu with an invalid-selection prefix.
func (r *Registry) RenderInvalid(state string) string {
	return "Invalid selection.\n" + r.Render(state)
}

// Resolve matches input against the menu for state, case-insensitively, on
// either the numeric token or the option label verbatim. The second return
// is false when nothing matched; callers re-render rather than erroring.
func (r *Registry) Resolve(state, input string) (string, bool) {
	entry, ok := r.entries[state]
	if !ok {
		return "", false
	}

	needle := strings.ToLower(strings.TrimSpace(input))
	if needle == "" {
		return "", false
	}

	if opt, ok := entry.Options[needle]; ok {
		return opt.Next, true
	}
	for _, opt := range entry.Options {
		if strings.ToLower(opt.Label) == needle {
			return opt.Next, true
		}
	}
	return "", false
}

// Validate checks the whole table at startup: every option must point at a
// known state and every menu needs at least one option.
func (r *Registry) Validate() error {
	for state, entry := range r.entries {
		if len(entry.Options) == 0 {
			return fmt.Errorf("menu %q has no options", state)
		}
		if entry.Prompt == "" {
			return fmt.Errorf("menu %q has no prompt", state)
		}
		for token, opt := range entry.Options {
			if opt.Next == "" {
				return fmt.Errorf("menu %q option %q has no next state", state, token)
			}
			if !r.known[opt.Next] {
				return fmt.Errorf("menu %q option %q points at unknown state %q", state, token, opt.Next)
			}
		}
	}
	return nil
}
