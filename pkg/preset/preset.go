// Package preset holds the named persona/format contracts a conversation is
// bound to when its key is issued.
package preset

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultLanguage is used when a principal has no preferred language.
const DefaultLanguage = "English"

// ErrUnknownPreset is returned when a preset name is not registered.
var ErrUnknownPreset = errors.New("unknown preset")

// Resolved is the outcome of expanding a preset for one principal.
type Resolved struct {
	// Topic is the instruction text sent as the handshake question.
	Topic string

	// Model is the model identifier the conversation is bound to.
	Model string
}

// BuildFunc expands a preset's template. It must be pure.
type BuildFunc func(fullname, preferredLang string) Resolved

// Preset is a named instruction template.
type Preset struct {
	Name        string
	Description string
	Build       BuildFunc
}

// Registry maps preset names to presets. The zero value is not usable;
// create one with NewRegistry.
type Registry struct {
	mu      sync.RWMutex
	presets map[string]Preset
	models  map[string]string
}

// NewRegistry returns a registry seeded with the built-in presets.
func NewRegistry() *Registry {
	r := &Registry{
		presets: make(map[string]Preset),
		models:  make(map[string]string),
	}
	for _, p := range builtins() {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a preset.
func (r *Registry) Register(p Preset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presets[p.Name] = p
}

// BindModel overrides the model a preset binds new conversations to.
// An empty model removes the override.
func (r *Registry) BindModel(name, model string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.presets[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	if model == "" {
		delete(r.models, name)
		return nil
	}
	r.models[name] = model
	return nil
}

// Resolve expands the named preset for a principal.
func (r *Registry) Resolve(name, fullname, preferredLang string) (Resolved, error) {
	r.mu.RLock()
	p, ok := r.presets[name]
	model := r.models[name]
	r.mu.RUnlock()

	if !ok {
		return Resolved{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}

	if strings.TrimSpace(preferredLang) == "" {
		preferredLang = DefaultLanguage
	}

	resolved := p.Build(fullname, preferredLang)
	if model != "" {
		resolved.Model = model
	}
	return resolved, nil
}

// Names returns the sorted preset names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.presets))
	for name := range r.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the named preset.
func (r *Registry) Get(name string) (Preset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.presets[name]
	return p, ok
}
