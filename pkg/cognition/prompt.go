package cognition

import (
	"fmt"
	"strings"

	"github.com/fracturedsurvival/npcruntime/pkg/memory"
	"github.com/fracturedsurvival/npcruntime/pkg/persona"
	"github.com/fracturedsurvival/npcruntime/pkg/social"
	"github.com/fracturedsurvival/npcruntime/pkg/topic"
)

// cognitiveFrameSchema is inlined into the system prompt so the model has an
// explicit contract for its JSON response (§4.5 step 3).
const cognitiveFrameSchema = `Respond with a single JSON object and nothing else:
{
  "internal_reflection": "<string, your private reasoning>",
  "intent": "<one of Investigate, Flee, Assist, Ignore, Socialize, Guard, Trade>",
  "dialogue": "<string, what you say aloud, may be empty>",
  "urgency": <number 0.0-1.0>,
  "trust_mod": <number -0.1 to 0.1, optional>,
  "emotional_state": "<string, your mood right now>"
}`

func systemPrompt(p persona.Persona, live persona.Personality) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, a %s living at %s. Your faction is %s. You speak in a %s style.\n",
		p.AgentID, p.Role, p.Location, p.Faction, p.DialogueStyle)
	sb.WriteString("Your personality traits (0=low, 1=high):\n")
	for _, t := range persona.AllTraits {
		fmt.Fprintf(&sb, "  %s: %.2f\n", t, live.Get(t))
	}
	sb.WriteString("\n")
	sb.WriteString(cognitiveFrameSchema)
	return sb.String()
}

func userPrompt(message string, vitals persona.Vitals, emotion persona.EmotionalState, ctx loadedContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current perception: %s\n", message)
	fmt.Fprintf(&sb, "Vitals: hunger=%.2f fatigue=%.2f\n", vitals.Hunger, vitals.Fatigue)
	fmt.Fprintf(&sb, "Mood: %s (arousal=%.2f valence=%.2f)\n", emotion.Mood, emotion.Arousal, emotion.Valence)

	if len(ctx.recentMemories) > 0 {
		sb.WriteString("Recent memories:\n")
		for _, m := range ctx.recentMemories {
			fmt.Fprintf(&sb, "  - %s\n", m.Content)
		}
	}
	if len(ctx.beliefs) > 0 {
		sb.WriteString("Your beliefs:\n")
		for _, b := range ctx.beliefs {
			fmt.Fprintf(&sb, "  - %s\n", b.Content)
		}
	}
	if len(ctx.topics) > 0 {
		sb.WriteString("Things you remember discussing with this player:\n")
		for _, t := range ctx.topics {
			fmt.Fprintf(&sb, "  - [%s, %s] %s\n", t.Category, t.Clarity, t.Content)
		}
	}
	if len(ctx.shared) > 0 {
		sb.WriteString("Things another NPC told you about this player:\n")
		for _, s := range ctx.shared {
			fmt.Fprintf(&sb, "  - [%s] %s\n", s.Category, s.Content)
		}
	}
	if len(ctx.rumors) > 0 {
		sb.WriteString("Rumors you've heard about this player:\n")
		for _, r := range ctx.rumors {
			fmt.Fprintf(&sb, "  - %s\n", r.Text)
		}
	}
	return sb.String()
}

// loadedContext is the step-1 context bundle of §4.5's reactive cycle.
type loadedContext struct {
	recentMemories []memory.Memory
	beliefs        []memory.Memory
	topics         []topic.Scored
	shared         []topic.SharedMemory
	rumors         []social.Rumor
}
