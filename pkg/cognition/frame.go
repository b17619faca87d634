// Package cognition implements the Agent Runtime (component E): the
// per-agent reactive cycle and autonomous loop (§4.5). Grounded on
// original_source's core/brain.py (system-prompt construction,
// process_perception, autonomous_reflection), core/limbic.py (vitals decay,
// think-time), and core/meta_mind.py (vitals-override resolution, trait
// drift). Each Agent is a single-goroutine actor: every reactive cycle and
// every autonomous tick runs on that goroutine, so the agent's own state
// (vitals, emotion, live personality) never needs a lock.
package cognition

// Intent is the cognitive frame's chosen course of action (§4.5 step 3).
type Intent string

const (
	IntentInvestigate Intent = "Investigate"
	IntentFlee        Intent = "Flee"
	IntentAssist      Intent = "Assist"
	IntentIgnore      Intent = "Ignore"
	IntentSocialize   Intent = "Socialize"
	IntentGuard       Intent = "Guard"
	IntentTrade       Intent = "Trade"
)

func validIntent(i Intent) bool {
	switch i {
	case IntentInvestigate, IntentFlee, IntentAssist, IntentIgnore, IntentSocialize, IntentGuard, IntentTrade:
		return true
	default:
		return false
	}
}

// CognitiveFrame is the structured decision the language model returns for
// a reactive cycle (§4.5 step 3).
type CognitiveFrame struct {
	InternalReflection string  `json:"internal_reflection"`
	Intent             Intent  `json:"intent"`
	Dialogue           string  `json:"dialogue"`
	Urgency            float64 `json:"urgency"`
	TrustMod           float64 `json:"trust_mod"`
	EmotionalState     string  `json:"emotional_state"`
}

// rawFrame is the wire shape decoded from the model before validation;
// trust_mod is a pointer because §4.5 step 3 marks it optional.
type rawFrame struct {
	InternalReflection string   `json:"internal_reflection"`
	Intent             string   `json:"intent"`
	Dialogue           string   `json:"dialogue"`
	Urgency            float64  `json:"urgency"`
	TrustMod           *float64 `json:"trust_mod"`
	EmotionalState     string   `json:"emotional_state"`
}

func (r rawFrame) validate() bool {
	return r.InternalReflection != "" && validIntent(Intent(r.Intent))
}

func (r rawFrame) toFrame() CognitiveFrame {
	f := CognitiveFrame{
		InternalReflection: r.InternalReflection,
		Intent:             Intent(r.Intent),
		Dialogue:           r.Dialogue,
		Urgency:            clamp01(r.Urgency),
		EmotionalState:     r.EmotionalState,
	}
	if r.TrustMod != nil {
		f.TrustMod = clampTrustMod(*r.TrustMod)
	}
	return f
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampTrustMod(v float64) float64 {
	if v < -0.1 {
		return -0.1
	}
	if v > 0.1 {
		return 0.1
	}
	return v
}

// fallbackFrame is returned when the model call is abandoned before it
// completes, or when its response cannot be repaired into a valid frame —
// never by discarding work already past the persist boundary (§4.5
// Cancellation), but always by substituting a cautious, non-crashing
// response so the caller still gets a usable frame.
func fallbackFrame(reason string) CognitiveFrame {
	return CognitiveFrame{
		InternalReflection: "(fallback: " + reason + ")",
		Intent:             IntentGuard,
		Dialogue:           "I need a moment.",
		Urgency:            0.5,
		EmotionalState:     "Uncertain",
	}
}
