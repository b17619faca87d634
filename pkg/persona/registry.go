package persona

import (
	"fmt"
	"os"
	"sync"

	"github.com/goccy/go-yaml"

	"github.com/fracturedsurvival/npcruntime/internal/apperr"
)

// Registry holds persona documents by agent ID. Unlike the source this was
// distilled from, a lookup miss is an explicit error: the registry never
// falls back to a hardcoded default persona (§9 design note).
type Registry struct {
	mu       sync.RWMutex
	personas map[string]Persona
}

// NewRegistry returns an empty persona registry.
func NewRegistry() *Registry {
	return &Registry{personas: make(map[string]Persona)}
}

// Register adds or replaces a persona document.
func (r *Registry) Register(p Persona) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.personas[p.AgentID] = p
}

// LoadFile registers a persona read from a YAML document at path.
func (r *Registry) LoadFile(path string) (Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, fmt.Errorf("persona: read %s: %w", path, err)
	}
	var p Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Persona{}, fmt.Errorf("persona: parse %s: %w", path, err)
	}
	if p.AgentID == "" {
		return Persona{}, apperr.InvalidArgumentf("persona: document at %s is missing agent_id", path)
	}
	r.Register(p)
	return p, nil
}

// Get returns the persona for agentID, or a NotFound error. Callers must
// handle the error explicitly; there is no implicit substitute persona.
func (r *Registry) Get(agentID string) (Persona, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.personas[agentID]
	if !ok {
		return Persona{}, apperr.NotFoundf("persona: no registered persona for agent %q", agentID)
	}
	return p, nil
}

// Has reports whether a persona is registered for agentID.
func (r *Registry) Has(agentID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.personas[agentID]
	return ok
}
