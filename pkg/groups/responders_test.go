package groups

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fracturedsurvival/npcruntime/internal/apperr"
	"github.com/fracturedsurvival/npcruntime/internal/config"
	"github.com/fracturedsurvival/npcruntime/pkg/cognition"
	"github.com/fracturedsurvival/npcruntime/pkg/llm"
	"github.com/fracturedsurvival/npcruntime/pkg/persona"
)

type fakeDirectory map[string]*cognition.Agent

func (f fakeDirectory) Agent(id string) (*cognition.Agent, error) {
	a, ok := f[id]
	if !ok {
		return nil, apperr.NotFoundf("no agent %q", id)
	}
	return a, nil
}

func newResponderAgent(t *testing.T, id string, traits persona.Personality, responses []llm.Response) *cognition.Agent {
	t.Helper()
	p := persona.Persona{AgentID: id, Role: "vendor", Location: "market", Personality: traits}
	a := cognition.New(p, cognition.Deps{LLM: &llm.FakeClient{Responses: responses}})
	a.Start(context.Background())
	t.Cleanup(a.Stop)
	return a
}

func frameResponse(dialogue string) llm.Response {
	return llm.Response{Text: `{"internal_reflection":"thinking","intent":"Socialize","dialogue":"` + dialogue + `","urgency":0.4,"emotional_state":"Calm"}`}
}

func TestProcessMessageDirectAddressUsesTargetAsPrimary(t *testing.T) {
	m := New(Deps{Config: config.GroupConfig{ProximityThreshold: 500, MaxGroupSize: 6, Timeout: 300 * time.Second}})
	m.UpdatePlayerLocation("player_1", Location{})
	g, err := m.StartGroup("player_1", "Ava", "market", []string{"npc_a"})
	require.NoError(t, err)

	a := newResponderAgent(t, "npc_a", persona.Personality{}, []llm.Response{frameResponse("Welcome traveler.")})
	dir := fakeDirectory{"npc_a": a}

	msgs, err := m.ProcessMessage(context.Background(), dir, nil, "", g.ID, "npc_a", "hello npc_a")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "npc_a", msgs[0].SpeakerID)
	require.Equal(t, ResponseDirectReply, msgs[0].ResponseType)
	require.Equal(t, "Welcome traveler.", msgs[0].Content)
}

func TestProcessMessageUnknownTargetIsInvalidArgument(t *testing.T) {
	m := New(Deps{Config: config.GroupConfig{ProximityThreshold: 500, MaxGroupSize: 6, Timeout: 300 * time.Second}})
	m.UpdatePlayerLocation("player_1", Location{})
	g, err := m.StartGroup("player_1", "Ava", "market", []string{"npc_a"})
	require.NoError(t, err)

	_, err = m.ProcessMessage(context.Background(), fakeDirectory{}, nil, "", g.ID, "npc_ghost", "hi")
	require.True(t, apperr.Is(err, apperr.InvalidArgument))
}

func TestSecondaryRespondersCappedAtTwo(t *testing.T) {
	m := New(Deps{Config: config.GroupConfig{ProximityThreshold: 500, MaxGroupSize: 6, Timeout: 300 * time.Second}})
	g := &Group{ID: "g1", Participants: map[string]*Participant{
		"primary": {ID: "primary"},
		"b":       {ID: "b"},
		"c":       {ID: "c"},
		"d":       {ID: "d"},
	}}
	dir := fakeDirectory{
		"b": newResponderAgent(t, "b", persona.Personality{persona.Empathy: 0.9, persona.Curiosity: 0.9}, nil),
		"c": newResponderAgent(t, "c", persona.Personality{persona.Empathy: 0.9, persona.Curiosity: 0.9}, nil),
		"d": newResponderAgent(t, "d", persona.Personality{persona.Empathy: 0.9, persona.Curiosity: 0.9}, nil),
	}
	picks := m.secondaryResponders(context.Background(), dir, g, "primary")
	require.LessOrEqual(t, len(picks), MaxChimeIns)
}

func TestDetermineRespondersFallsBackToDefaultWhenOrchestratorNil(t *testing.T) {
	m := New(Deps{Config: config.GroupConfig{ProximityThreshold: 500, MaxGroupSize: 6, Timeout: 300 * time.Second}})
	g := &Group{ID: "g1", Participants: map[string]*Participant{"a": {ID: "a"}}}
	picks, tensionChange, err := m.determineResponders(context.Background(), fakeDirectory{}, nil, "", g, "hey everyone", "")
	require.NoError(t, err)
	require.Equal(t, float64(0), tensionChange)
	require.Len(t, picks, 1)
	require.Equal(t, "a", picks[0].AgentID)
}

func TestDetermineRespondersUsesOrchestratorAndClampsTension(t *testing.T) {
	m := New(Deps{Config: config.GroupConfig{ProximityThreshold: 500, MaxGroupSize: 6, Timeout: 300 * time.Second}})
	g := &Group{ID: "g1", Participants: map[string]*Participant{"a": {ID: "a"}}}
	orchestrator := &llm.FakeClient{Responses: []llm.Response{{
		Text: `{"next_speakers":[{"npc_id":"a","response_type":"elaboration","target_id":"player","urgency":0.6,"should_interrupt":false}],"tension_change":5,"reasoning":"escalating"}`,
	}}}
	picks, tensionChange, err := m.determineResponders(context.Background(), fakeDirectory{}, orchestrator, "gpt-test", g, "what is going on", "")
	require.NoError(t, err)
	require.Equal(t, 0.1, tensionChange) // clamped from 5 to the [-0.1, 0.1] band
	require.Len(t, picks, 1)
	require.Equal(t, ResponseElaboration, picks[0].ResponseType)
}
