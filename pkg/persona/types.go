// Package persona defines an agent's identity, personality vector, vitals,
// and emotional state (§3 Agent), and a persona registry with explicit
// defaults (§9: "do not silently substitute" a default persona).
package persona

import "math"

// Trait names the eight personality dimensions, each held in [0, 1].
type Trait string

const (
	Curiosity     Trait = "curiosity"
	Empathy       Trait = "empathy"
	RiskTolerance Trait = "risk_tolerance"
	Aggression    Trait = "aggression"
	Discipline    Trait = "discipline"
	Romanticism   Trait = "romanticism"
	Opportunism   Trait = "opportunism"
	Paranoia      Trait = "paranoia"
)

// AllTraits lists every trait dimension, in a stable order.
var AllTraits = []Trait{Curiosity, Empathy, RiskTolerance, Aggression, Discipline, Romanticism, Opportunism, Paranoia}

// Personality is the eight-trait vector, each value in [0, 1].
type Personality map[Trait]float64

// Clone returns an independent copy of p.
func (p Personality) Clone() Personality {
	out := make(Personality, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Get returns the value of t, defaulting to 0.5 if unset (a neutral trait),
// matching the original's `personality.get(trait_name, 0.5)` fallback.
func (p Personality) Get(t Trait) float64 {
	if v, ok := p[t]; ok {
		return v
	}
	return 0.5
}

// Vitals are the NPC's biological constraints, both in [0, 1].
type Vitals struct {
	Hunger  float64 `yaml:"hunger" json:"hunger"`   // 0 = full, 1 = starving
	Fatigue float64 `yaml:"fatigue" json:"fatigue"` // 0 = rested, 1 = exhausted
}

// Decay advances vitals by deltaSeconds of elapsed wall time: hunger
// saturates in ~4 hours, fatigue in ~6 hours (§4.5 autonomous loop).
func (v *Vitals) Decay(deltaSeconds float64) {
	const hungerSaturationSeconds = 4 * 3600.0
	const fatigueSaturationSeconds = 6 * 3600.0
	v.Hunger = math.Min(1.0, v.Hunger+deltaSeconds/hungerSaturationSeconds)
	v.Fatigue = math.Min(1.0, v.Fatigue+deltaSeconds/fatigueSaturationSeconds)
}

// EmotionalState is the NPC's mood label plus arousal/valence, both in [0, 1].
type EmotionalState struct {
	Mood    string  `yaml:"mood" json:"mood"`
	Arousal float64 `yaml:"arousal" json:"arousal"`
	Valence float64 `yaml:"valence" json:"valence"`
}

// DefaultEmotionalState returns the "Calm" baseline state.
func DefaultEmotionalState() EmotionalState {
	return EmotionalState{Mood: "Calm", Arousal: 0.5, Valence: 0.5}
}

// EventKind tags the two emotional-update heuristics from §4.5 step 5 /
// original_source limbic.py.
type EventKind string

const (
	EventThreat   EventKind = "threat"
	EventPositive EventKind = "positive"
)

// UpdateFromEvent adjusts arousal/valence for intensity in [0, 1] and decays
// both toward their 0.5 baseline, matching limbic.py's EmotionalState.update_from_event.
func (e *EmotionalState) UpdateFromEvent(kind EventKind, intensity float64) {
	switch kind {
	case EventThreat:
		e.Arousal = math.Min(1.0, e.Arousal+intensity)
		e.Valence = math.Max(0.0, e.Valence-intensity)
		if e.Arousal > 0.7 {
			e.Mood = "Paranoid"
		}
	case EventPositive:
		e.Valence = math.Min(1.0, e.Valence+intensity)
		e.Arousal = math.Max(0.0, e.Arousal-intensity*0.5)
		if e.Valence > 0.7 {
			e.Mood = "Happy"
		}
	}
	// Natural decay towards baseline.
	e.Arousal *= 0.95
	e.Valence = 0.5 + (e.Valence-0.5)*0.9
}

// ThinkTime returns the simulated sensory-latency delay for the current
// arousal level (§4.5 step 2): near-instant when panicked, slow when calm.
func (e EmotionalState) ThinkTime() float64 {
	switch {
	case e.Arousal > 0.8:
		return 0.1
	case e.Arousal < 0.3:
		return 2.0
	default:
		return 1.0
	}
}

// InitialMemory seeds an agent's episodic memory table at registration
// (original_source npc_system.py._load_initial_memories).
type InitialMemory struct {
	Kind     string  `yaml:"kind" json:"kind"`
	Content  string  `yaml:"content" json:"content"`
	Strength float64 `yaml:"strength" json:"strength"`
}

// Persona is the immutable document an agent is created from: role,
// location, dialogue style, faction, gender, starting personality, and any
// initial memories to seed.
type Persona struct {
	AgentID        string          `yaml:"agent_id" json:"agent_id"`
	Role           string          `yaml:"role" json:"role"`
	Location       string          `yaml:"location" json:"location"`
	DialogueStyle  string          `yaml:"dialogue_style" json:"dialogue_style"`
	Faction        string          `yaml:"faction" json:"faction"`
	Gender         string          `yaml:"gender" json:"gender"`
	Personality    Personality     `yaml:"personality" json:"personality"`
	InitialMemories []InitialMemory `yaml:"initial_memories" json:"initial_memories"`
}
