package cognition

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fracturedsurvival/npcruntime/pkg/llm"
	"github.com/fracturedsurvival/npcruntime/pkg/memory"
	"github.com/fracturedsurvival/npcruntime/pkg/persona"
	"github.com/fracturedsurvival/npcruntime/pkg/social"
	"github.com/fracturedsurvival/npcruntime/pkg/store"
	"github.com/fracturedsurvival/npcruntime/pkg/topic"
)

func testPersona() persona.Persona {
	return persona.Persona{
		AgentID:       "npc_1",
		Role:          "guard",
		Location:      "gate",
		DialogueStyle: "terse",
		Faction:       "guards",
		Personality: persona.Personality{
			persona.Paranoia: 0.5,
			persona.Empathy:  0.5,
		},
	}
}

func frameJSON(t *testing.T, f CognitiveFrame) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"internal_reflection": f.InternalReflection,
		"intent":              string(f.Intent),
		"dialogue":            f.Dialogue,
		"urgency":             f.Urgency,
		"trust_mod":           f.TrustMod,
		"emotional_state":     f.EmotionalState,
	})
	require.NoError(t, err)
	return string(b)
}

func newTestAgent(t *testing.T, fake *llm.FakeClient) (*Agent, *memory.Vault, *topic.Vault, *social.Ledger) {
	t.Helper()
	s, err := store.Open(store.Options{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	memVault := memory.New(s)
	topicVault := topic.New(s)
	socialLedger := social.New(s)

	a := New(testPersona(), Deps{
		Memory: memVault,
		Topics: topicVault,
		Social: socialLedger,
		LLM:    fake,
		Model:  "test-model",
	})
	a.Start(context.Background())
	t.Cleanup(a.Stop)
	return a, memVault, topicVault, socialLedger
}

func TestReceivePlayerActionReturnsDecodedFrame(t *testing.T) {
	fake := &llm.FakeClient{}
	a, _, _, _ := newTestAgent(t, fake)
	fake.Responses = []llm.Response{{Text: frameJSON(t, CognitiveFrame{
		InternalReflection: "this player seems friendly",
		Intent:             IntentSocialize,
		Dialogue:           "Welcome, traveler.",
		Urgency:            0.2,
		EmotionalState:     "Calm",
	})}}

	frame, snap, err := a.ReceivePlayerAction(context.Background(), "player_1", "hello there")
	require.NoError(t, err)
	require.Equal(t, IntentSocialize, frame.Intent)
	require.Equal(t, "Welcome, traveler.", frame.Dialogue)
	require.NotNil(t, snap)
}

func TestReceivePlayerActionFallsBackOnBadJSON(t *testing.T) {
	fake := &llm.FakeClient{Responses: []llm.Response{{Text: "not json at all {{{"}}}
	a, _, _, _ := newTestAgent(t, fake)

	frame, _, err := a.ReceivePlayerAction(context.Background(), "player_1", "hello")
	require.NoError(t, err)
	require.Equal(t, IntentGuard, frame.Intent)
}

func TestHungerOverridesIntent(t *testing.T) {
	fake := &llm.FakeClient{Responses: []llm.Response{{Text: frameJSON(t, CognitiveFrame{
		InternalReflection: "I should trade",
		Intent:             IntentTrade,
		Urgency:            0.1,
	})}}}
	a, _, _, _ := newTestAgent(t, fake)
	a.vitals.Hunger = 0.9

	frame, _, err := a.ReceivePlayerAction(context.Background(), "player_1", "hello")
	require.NoError(t, err)
	require.Equal(t, IntentInvestigate, frame.Intent)
	require.GreaterOrEqual(t, frame.Urgency, 0.9)
}

func TestFatigueForcesIgnoreAndRestDialogue(t *testing.T) {
	fake := &llm.FakeClient{Responses: []llm.Response{{Text: frameJSON(t, CognitiveFrame{
		InternalReflection: "I should socialize",
		Intent:             IntentSocialize,
		Urgency:            0.1,
	})}}}
	a, _, _, _ := newTestAgent(t, fake)
	a.vitals.Fatigue = 0.95

	frame, _, err := a.ReceivePlayerAction(context.Background(), "player_1", "hello")
	require.NoError(t, err)
	require.Equal(t, IntentIgnore, frame.Intent)
	require.Equal(t, "I... need to rest...", frame.Dialogue)
	require.Equal(t, 1.0, frame.Urgency)
}

func TestParanoiaAmplifiesTrustMod(t *testing.T) {
	fake := &llm.FakeClient{Responses: []llm.Response{{Text: frameJSON(t, CognitiveFrame{
		InternalReflection: "suspicious",
		Intent:             IntentGuard,
		Urgency:            0.5,
		TrustMod:           -0.05,
	})}}}
	a, _, _, _ := newTestAgent(t, fake)
	a.personality[persona.Paranoia] = 0.9

	frame, _, err := a.ReceivePlayerAction(context.Background(), "player_1", "hello")
	require.NoError(t, err)
	require.InDelta(t, -0.075, frame.TrustMod, 1e-9)
}

func TestReceivePlayerActionPersistsEpisodicMemory(t *testing.T) {
	fake := &llm.FakeClient{Responses: []llm.Response{{Text: frameJSON(t, CognitiveFrame{
		InternalReflection: "noted",
		Intent:             IntentIgnore,
		Urgency:            0.1,
	})}}}
	a, memVault, _, _ := newTestAgent(t, fake)

	_, _, err := a.ReceivePlayerAction(context.Background(), "player_1", "hello there")
	require.NoError(t, err)

	recent, err := memVault.RecentMemories(context.Background(), "npc_1", 5)
	require.NoError(t, err)
	require.NotEmpty(t, recent)
}

func TestReceivePlayerActionAbandonsOnCancelledContext(t *testing.T) {
	fake := &llm.FakeClient{Responses: []llm.Response{{Text: frameJSON(t, CognitiveFrame{
		InternalReflection: "noted",
		Intent:             IntentIgnore,
		Urgency:            0.1,
	})}}}
	a, memVault, _, _ := newTestAgent(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frame, _, err := a.ReceivePlayerAction(ctx, "player_1", "hello")
	require.NoError(t, err)
	require.Equal(t, IntentGuard, frame.Intent)

	recent, err := memVault.RecentMemories(context.Background(), "npc_1", 5)
	require.NoError(t, err)
	require.Empty(t, recent)
}

func TestStartAndStopAutonomousLoop(t *testing.T) {
	fake := &llm.FakeClient{}
	a, _, _, _ := newTestAgent(t, fake)

	ctx := context.Background()
	a.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	a.Stop()
}

func TestHighUrgencyAppliesTraitDrift(t *testing.T) {
	fake := &llm.FakeClient{Responses: []llm.Response{{Text: frameJSON(t, CognitiveFrame{
		InternalReflection: "investigating",
		Intent:             IntentInvestigate,
		Urgency:            0.9,
	})}}}
	a, memVault, _, _ := newTestAgent(t, fake)

	_, _, err := a.ReceivePlayerAction(context.Background(), "player_1", "what was that noise")
	require.NoError(t, err)

	hist, err := memVault.TraitHistory(context.Background(), "npc_1", string(persona.Curiosity), 5)
	require.NoError(t, err)
	require.NotEmpty(t, hist)
}
