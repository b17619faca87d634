package surface

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fracturedsurvival/npcruntime/internal/config"
	"github.com/fracturedsurvival/npcruntime/pkg/fleet"
	"github.com/fracturedsurvival/npcruntime/pkg/groups"
	"github.com/fracturedsurvival/npcruntime/pkg/llm"
	"github.com/fracturedsurvival/npcruntime/pkg/memory"
	"github.com/fracturedsurvival/npcruntime/pkg/persona"
	"github.com/fracturedsurvival/npcruntime/pkg/scaling"
	"github.com/fracturedsurvival/npcruntime/pkg/social"
	"github.com/fracturedsurvival/npcruntime/pkg/store"
	"github.com/fracturedsurvival/npcruntime/pkg/topic"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := store.Open(store.Options{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	memVault := memory.New(s)
	topicVault := topic.New(s)
	socialLedger := social.New(s)
	personas := persona.NewRegistry()
	bus := scaling.NewEventBus()

	coordinator := fleet.New(fleet.Deps{Store: s, Memory: memVault, Topics: topicVault, Social: socialLedger, Bus: bus})
	groupManager := groups.New(groups.Deps{Config: config.GroupConfig{ProximityThreshold: 500, MaxGroupSize: 6, Timeout: 300 * time.Second}})

	fake := &llm.FakeClient{Responses: []llm.Response{
		{Text: `{"internal_reflection":"thinking","intent":"Socialize","dialogue":"Welcome, traveler.","urgency":0.4,"emotional_state":"Calm"}`},
	}}

	return New(Deps{
		Fleet: coordinator, Groups: groupManager, Memory: memVault, Topics: topicVault,
		Social: socialLedger, Personas: personas, Bus: bus, Perf: scaling.NewPerfMonitor(),
		LLM: fake, LLMModel: "test-model",
	})
}

func registerTestPersona(t *testing.T, personas *persona.Registry, agentID, faction string) {
	t.Helper()
	personas.Register(persona.Persona{
		AgentID: agentID, Role: "guard", Location: "gate", Faction: faction,
		Personality: persona.Personality{persona.Empathy: 0.5, persona.Aggression: 0.3},
	})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(b))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleInitializeAgentRegistersAndIsIdempotent(t *testing.T) {
	s := newTestServer(t)
	registerTestPersona(t, s.d.Personas, "npc_a", "guards")

	rec := doJSON(t, s, http.MethodPost, "/agents", initializeAgentRequest{AgentID: "npc_a"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "initialized", resp["status"])

	rec2 := doJSON(t, s, http.MethodPost, "/agents", initializeAgentRequest{AgentID: "npc_a"})
	var resp2 map[string]any
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &resp2))
	require.Equal(t, "already_exists", resp2["status"])
}

func TestHandleInitializeAgentMissingIDIsBadRequest(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/agents", initializeAgentRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "invalid_argument", resp["kind"])
}

func TestHandleAgentActionReturnsCognitiveFrame(t *testing.T) {
	s := newTestServer(t)
	registerTestPersona(t, s.d.Personas, "npc_a", "guards")
	doJSON(t, s, http.MethodPost, "/agents", initializeAgentRequest{AgentID: "npc_a"})

	rec := doJSON(t, s, http.MethodPost, "/agents/npc_a/action", agentActionRequest{
		ActionText: "hello there", PlayerID: "player_1", PlayerName: "Ava",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp actionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Welcome, traveler.", resp.CognitiveFrame.Dialogue)
}

func TestHandleAgentActionUnknownAgentIsNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/agents/missing/action", agentActionRequest{PlayerID: "player_1"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleWorldTickAppliesDefaultWallSeconds(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/world/tick", worldTickRequest{})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleListAgentsReturnsRegistered(t *testing.T) {
	s := newTestServer(t)
	registerTestPersona(t, s.d.Personas, "npc_a", "guards")
	doJSON(t, s, http.MethodPost, "/agents", initializeAgentRequest{AgentID: "npc_a"})

	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string][]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp["agents"], 1)
}

func TestHandleConversationLifecycle(t *testing.T) {
	s := newTestServer(t)
	registerTestPersona(t, s.d.Personas, "npc_a", "guards")
	doJSON(t, s, http.MethodPost, "/agents", initializeAgentRequest{AgentID: "npc_a"})

	locRec := doJSON(t, s, http.MethodPost, "/location/agent", locationUpdateRequest{ID: "npc_a", Name: "Garrick"})
	require.Equal(t, http.StatusOK, locRec.Code)
	plocRec := doJSON(t, s, http.MethodPost, "/location/player", locationUpdateRequest{ID: "player_1"})
	require.Equal(t, http.StatusOK, plocRec.Code)

	startRec := doJSON(t, s, http.MethodPost, "/conversations", conversationStartRequest{
		PlayerID: "player_1", PlayerName: "Ava", Location: "market", Participants: []string{"npc_a"},
	})
	require.Equal(t, http.StatusOK, startRec.Code)
	var group groups.Group
	require.NoError(t, json.Unmarshal(startRec.Body.Bytes(), &group))
	require.NotEmpty(t, group.ID)

	msgRec := doJSON(t, s, http.MethodPost, "/conversations/"+group.ID+"/message", conversationMessageRequest{
		TargetAgentID: "npc_a", Message: "hail friend",
	})
	require.Equal(t, http.StatusOK, msgRec.Code)

	statsReq := httptest.NewRequest(http.MethodGet, "/conversations/stats", nil)
	statsRec := httptest.NewRecorder()
	s.ServeHTTP(statsRec, statsReq)
	require.Equal(t, http.StatusOK, statsRec.Code)
}
