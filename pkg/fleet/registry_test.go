package fleet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fracturedsurvival/npcruntime/pkg/cognition"
	"github.com/fracturedsurvival/npcruntime/pkg/llm"
	"github.com/fracturedsurvival/npcruntime/pkg/memory"
	"github.com/fracturedsurvival/npcruntime/pkg/persona"
	"github.com/fracturedsurvival/npcruntime/pkg/social"
	"github.com/fracturedsurvival/npcruntime/pkg/store"
	"github.com/fracturedsurvival/npcruntime/pkg/topic"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *memory.Vault, *topic.Vault, *social.Ledger) {
	t.Helper()
	s, err := store.Open(store.Options{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	memVault := memory.New(s)
	topicVault := topic.New(s)
	socialLedger := social.New(s)

	c := New(Deps{Store: s, Memory: memVault, Topics: topicVault, Social: socialLedger})
	return c, memVault, topicVault, socialLedger
}

func newTestFleetAgent(id, faction string) *cognition.Agent {
	p := persona.Persona{
		AgentID:  id,
		Role:     "guard",
		Location: "gate",
		Faction:  faction,
		Personality: persona.Personality{
			persona.Paranoia: 0.5,
			persona.Empathy:  0.5,
		},
	}
	return cognition.New(p, cognition.Deps{LLM: &llm.FakeClient{}})
}

func TestRegisterInitializesSameFactionTrust(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	a1 := newTestFleetAgent("npc_a", "guards")
	a2 := newTestFleetAgent("npc_b", "guards")
	require.NoError(t, c.Register(ctx, a1, "guards"))
	require.NoError(t, c.Register(ctx, a2, "guards"))
	t.Cleanup(func() { c.Unregister("npc_a"); c.Unregister("npc_b") })

	trust, err := c.Relation(ctx, "npc_a", "npc_b")
	require.NoError(t, err)
	require.Equal(t, SameFactionTrust, trust)
}

func TestRegisterInitializesCrossFactionTrust(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	a1 := newTestFleetAgent("npc_a", "guards")
	a2 := newTestFleetAgent("npc_b", "raiders")
	require.NoError(t, c.Register(ctx, a1, "guards"))
	require.NoError(t, c.Register(ctx, a2, "raiders"))
	t.Cleanup(func() { c.Unregister("npc_a"); c.Unregister("npc_b") })

	trust, err := c.Relation(ctx, "npc_a", "npc_b")
	require.NoError(t, err)
	require.Equal(t, CrossFactionTrust, trust)
}

func TestRegisterDuplicateFails(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	a1 := newTestFleetAgent("npc_a", "guards")
	require.NoError(t, c.Register(ctx, a1, "guards"))
	t.Cleanup(func() { c.Unregister("npc_a") })

	require.Error(t, c.Register(ctx, a1, "guards"))
}

func TestModifyTrustClampsToUnitInterval(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	a1 := newTestFleetAgent("npc_a", "guards")
	a2 := newTestFleetAgent("npc_b", "guards")
	require.NoError(t, c.Register(ctx, a1, "guards"))
	require.NoError(t, c.Register(ctx, a2, "guards"))
	t.Cleanup(func() { c.Unregister("npc_a"); c.Unregister("npc_b") })

	for i := 0; i < 20; i++ {
		_, err := c.ModifyTrust(ctx, "npc_a", "npc_b", 0.5, "many good deeds")
		require.NoError(t, err)
	}
	trust, err := c.Relation(ctx, "npc_a", "npc_b")
	require.NoError(t, err)
	require.Equal(t, 1.0, trust)

	for i := 0; i < 20; i++ {
		_, err := c.ModifyTrust(ctx, "npc_a", "npc_b", -0.5, "betrayal")
		require.NoError(t, err)
	}
	trust, err = c.Relation(ctx, "npc_a", "npc_b")
	require.NoError(t, err)
	require.Equal(t, 0.0, trust)
}

func TestModifyTrustAboveThresholdWritesSocialMemory(t *testing.T) {
	c, memVault, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	a1 := newTestFleetAgent("npc_a", "guards")
	a2 := newTestFleetAgent("npc_b", "guards")
	require.NoError(t, c.Register(ctx, a1, "guards"))
	require.NoError(t, c.Register(ctx, a2, "guards"))
	t.Cleanup(func() { c.Unregister("npc_a"); c.Unregister("npc_b") })

	_, err := c.ModifyTrust(ctx, "npc_a", "npc_b", 0.2, "shared a meal")
	require.NoError(t, err)

	recent, err := memVault.RecentMemories(ctx, "npc_a", 5)
	require.NoError(t, err)
	require.NotEmpty(t, recent)
	require.Equal(t, memory.Social, recent[0].Kind)
}

func TestModifyTrustBelowThresholdSkipsSocialMemory(t *testing.T) {
	c, memVault, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	a1 := newTestFleetAgent("npc_a", "guards")
	a2 := newTestFleetAgent("npc_b", "guards")
	require.NoError(t, c.Register(ctx, a1, "guards"))
	require.NoError(t, c.Register(ctx, a2, "guards"))
	t.Cleanup(func() { c.Unregister("npc_a"); c.Unregister("npc_b") })

	_, err := c.ModifyTrust(ctx, "npc_a", "npc_b", 0.01, "a minor nod")
	require.NoError(t, err)

	recent, err := memVault.RecentMemories(ctx, "npc_a", 5)
	require.NoError(t, err)
	require.Empty(t, recent)
}

func TestRelatedAgentsReturnsBothNeighbors(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	a1 := newTestFleetAgent("npc_a", "guards")
	a2 := newTestFleetAgent("npc_b", "guards")
	a3 := newTestFleetAgent("npc_c", "raiders")
	require.NoError(t, c.Register(ctx, a1, "guards"))
	require.NoError(t, c.Register(ctx, a2, "guards"))
	require.NoError(t, c.Register(ctx, a3, "raiders"))
	t.Cleanup(func() { c.Unregister("npc_a"); c.Unregister("npc_b"); c.Unregister("npc_c") })

	related, err := c.RelatedAgents(ctx, "npc_a")
	require.NoError(t, err)
	require.Len(t, related, 2)
	require.Equal(t, SameFactionTrust, related["npc_b"])
	require.Equal(t, CrossFactionTrust, related["npc_c"])
}

func TestAgentInteractionAppliesTrustMod(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	fake := &llm.FakeClient{Responses: []llm.Response{{Text: `{
		"internal_reflection": "wary of this one",
		"intent": "Guard",
		"dialogue": "State your business.",
		"urgency": 0.4,
		"trust_mod": -0.08,
		"emotional_state": "Wary"
	}`}}}
	p := persona.Persona{AgentID: "npc_b", Role: "guard", Location: "gate", Faction: "guards",
		Personality: persona.Personality{persona.Paranoia: 0.5, persona.Empathy: 0.5}}
	listener := cognition.New(p, cognition.Deps{LLM: fake})

	a1 := newTestFleetAgent("npc_a", "guards")
	require.NoError(t, c.Register(ctx, a1, "guards"))
	require.NoError(t, c.Register(ctx, listener, "guards"))
	t.Cleanup(func() { c.Unregister("npc_a"); c.Unregister("npc_b") })

	before, err := c.Relation(ctx, "npc_b", "npc_a")
	require.NoError(t, err)

	frame, err := c.AgentInteraction(ctx, "npc_a", "npc_b", "Who goes there?")
	require.NoError(t, err)
	require.Equal(t, cognition.IntentGuard, frame.Intent)

	after, err := c.Relation(ctx, "npc_b", "npc_a")
	require.NoError(t, err)
	require.Less(t, after, before)
}
