package surface

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fracturedsurvival/npcruntime/pkg/cognition"
	"github.com/fracturedsurvival/npcruntime/pkg/fleet"
	"github.com/fracturedsurvival/npcruntime/pkg/groups"
	"github.com/fracturedsurvival/npcruntime/pkg/persona"
)

// --- Agent lifecycle (§6 "Agent lifecycle") ---

type initializeAgentRequest struct {
	AgentID     string `json:"agent_id"`
	PersonaFile string `json:"persona_reference"`
	Faction     string `json:"faction"`
}

func (s *Server) handleInitializeAgent(w http.ResponseWriter, r *http.Request) {
	var req initializeAgentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := requireField(req.AgentID, "agent_id"); err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.d.Fleet.Agent(req.AgentID); err == nil {
		a, _ := s.d.Fleet.Agent(req.AgentID)
		desc, _ := a.Describe(r.Context())
		writeJSON(w, map[string]any{"status": "already_exists", "role": desc.Persona.Role, "location": desc.Persona.Location})
		return
	}

	var p persona.Persona
	var err error
	if req.PersonaFile != "" {
		p, err = s.d.Personas.LoadFile(req.PersonaFile)
	} else {
		p, err = s.d.Personas.Get(req.AgentID)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	agent := cognition.New(p, cognition.Deps{
		Memory: s.d.Memory, Topics: s.d.Topics, Social: s.d.Social,
		LLM: s.d.LLM, Model: s.d.LLMModel, Relations: s.d.Fleet, Log: s.d.Log,
		Store: s.d.Store,
	})
	faction := req.Faction
	if faction == "" {
		faction = p.Faction
	}
	if err := s.d.Fleet.Register(r.Context(), agent, faction); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "initialized", "role": p.Role, "location": p.Location})
}

func (s *Server) handleShutdownAgent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.d.Fleet.Unregister(id)
	writeJSON(w, map[string]string{"status": "stopped"})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	ids := s.d.Fleet.AgentIDs()
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		a, err := s.d.Fleet.Agent(id)
		if err != nil {
			continue
		}
		desc, err := a.Describe(r.Context())
		if err != nil {
			continue
		}
		out = append(out, map[string]any{
			"id": id, "role": desc.Persona.Role, "location": desc.Persona.Location,
			"mood": desc.Snapshot.Emotion.Mood,
		})
	}
	writeJSON(w, map[string]any{"agents": out})
}

func (s *Server) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	a, err := s.d.Fleet.Agent(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	desc, err := a.Describe(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"vitals": desc.Snapshot.Vitals, "emotional_state": desc.Snapshot.Emotion, "personality": desc.Personality,
	})
}

func limitParam(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func (s *Server) handleAgentMemories(w http.ResponseWriter, r *http.Request) {
	mem, err := s.d.Memory.RecentMemories(r.Context(), r.PathValue("id"), limitParam(r, 20))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"memories": mem})
}

func (s *Server) handleAgentBeliefs(w http.ResponseWriter, r *http.Request) {
	beliefs, err := s.d.Memory.TopBeliefs(r.Context(), r.PathValue("id"), limitParam(r, 20))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"beliefs": beliefs})
}

func (s *Server) handleAgentRelationships(w http.ResponseWriter, r *http.Request) {
	rel, err := s.d.Fleet.RelatedAgents(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"relationships": rel})
}

func (s *Server) handleAgentGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.d.Fleet.GoalsByAgent(r.Context(), r.PathValue("id"), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"goals": goals})
}

// --- Interaction (§6 "Interaction") ---

type agentActionRequest struct {
	ActionText string `json:"action_text"`
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

func (s *Server) handleAgentAction(w http.ResponseWriter, r *http.Request) {
	var req agentActionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := requireField(req.PlayerID, "player_id"); err != nil {
		writeError(w, err)
		return
	}
	a, err := s.d.Fleet.Agent(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if req.PlayerName != "" {
		if _, err := s.d.Social.EnsurePlayer(r.Context(), req.PlayerID, req.PlayerName); err != nil {
			writeError(w, err)
			return
		}
	}
	frame, snap, err := a.ReceivePlayerAction(r.Context(), req.PlayerID, req.ActionText)
	if err != nil {
		writeError(w, err)
		return
	}
	rep, _ := s.d.Social.GetReputation(r.Context(), req.PlayerID, a.ID())
	writeJSON(w, map[string]any{
		"cognitive_frame": frame,
		"limbic_snapshot": snap,
		"reputation_now":  rep.Reputation,
	})
}

// --- Player & social (§6 "Player & social") ---

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	p, err := s.d.Social.GetPlayer(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	rumors, _ := s.d.Social.RumorsAbout(r.Context(), p.ID, 20)
	writeJSON(w, map[string]any{"player": p, "rumors": rumors})
}

type gossipRequest struct {
	FromAgentID string `json:"from_agent_id"`
	ToAgentID   string `json:"to_agent_id"`
}

func (s *Server) handleGossip(w http.ResponseWriter, r *http.Request) {
	var req gossipRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	before, err := s.d.Fleet.Relation(r.Context(), req.FromAgentID, req.ToAgentID)
	if err != nil {
		writeError(w, err)
		return
	}
	topics, err := s.d.Topics.TopWeightedAny(r.Context(), req.FromAgentID, 1)
	if err != nil || len(topics) == 0 {
		writeJSON(w, map[string]any{"rumors_shared": 0, "relationship_improved": false})
		return
	}
	if _, err := s.d.Topics.Share(r.Context(), topics[0].ID, req.FromAgentID, req.ToAgentID, before); err != nil {
		writeError(w, err)
		return
	}
	after, _ := s.d.Fleet.Relation(r.Context(), req.FromAgentID, req.ToAgentID)
	writeJSON(w, map[string]any{"rumors_shared": 1, "relationship_improved": after > before})
}

// --- World (§6 "World") ---

type worldTickRequest struct {
	WallSeconds float64 `json:"wall_seconds"`
	TimeScale   float64 `json:"time_scale"`
}

func (s *Server) handleWorldTick(w http.ResponseWriter, r *http.Request) {
	var req worldTickRequest
	_ = decodeBody(r, &req)
	wall := req.WallSeconds
	if wall <= 0 {
		wall = 60
	}
	result, err := s.d.Fleet.Tick(r.Context(), time.Duration(wall*float64(time.Second)), req.TimeScale)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleWorldEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"events": s.d.Fleet.Events()})
}

// --- Quests & economy (§6 "Quests & economy") ---

type questGenerateRequest struct {
	AgentID          string  `json:"agent_id"`
	PlayerID         string  `json:"player_id"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	RewardGold       int     `json:"reward_gold"`
	RewardReputation float64 `json:"reward_reputation"`
	RewardItem       string  `json:"reward_item"`
}

func (s *Server) handleQuestGenerate(w http.ResponseWriter, r *http.Request) {
	var req questGenerateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	q, err := s.d.Fleet.CreateQuest(r.Context(), req.AgentID, req.PlayerID, req.Title, req.Description, req.RewardGold, req.RewardReputation, req.RewardItem)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, q)
}

func (s *Server) handleQuestAccept(w http.ResponseWriter, r *http.Request) {
	if err := s.d.Fleet.AcceptQuest(r.Context(), r.PathValue("id"), 0); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "active"})
}

func (s *Server) handleQuestComplete(w http.ResponseWriter, r *http.Request) {
	q, err := s.d.Fleet.CompleteQuest(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, q)
}

type battleInitiateRequest struct {
	TerritoryID     string `json:"territory_id"`
	AttackerFaction string `json:"attacker_faction"`
	DefenderFaction string `json:"defender_faction"`
}

func (s *Server) handleBattleInitiate(w http.ResponseWriter, r *http.Request) {
	var req battleInitiateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	b, err := s.d.Fleet.StartBattle(r.Context(), req.TerritoryID, req.AttackerFaction, req.DefenderFaction)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, b)
}

func (s *Server) handleBattleResolve(w http.ResponseWriter, r *http.Request) {
	b, err := s.d.Fleet.ResolveBattle(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, b)
}

// --- Groups (§6 "Groups") ---

type locationUpdateRequest struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
	Zone string  `json:"zone"`
}

func (s *Server) handleLocationUpdateAgent(w http.ResponseWriter, r *http.Request) {
	var req locationUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.d.Groups.UpdateAgentLocation(req.ID, groups.Location{X: req.X, Y: req.Y, Z: req.Z, Zone: req.Zone}, req.Name)
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleLocationUpdatePlayer(w http.ResponseWriter, r *http.Request) {
	var req locationUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.d.Groups.UpdatePlayerLocation(req.ID, groups.Location{X: req.X, Y: req.Y, Z: req.Z, Zone: req.Zone})
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	maxDist := 0.0
	if v := r.URL.Query().Get("max_distance"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			maxDist = f
		}
	}
	ids, err := s.d.Groups.Nearby(r.PathValue("playerID"), maxDist)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"nearby": ids})
}

type conversationStartRequest struct {
	PlayerID     string   `json:"player_id"`
	PlayerName   string   `json:"player_name"`
	Location     string   `json:"location"`
	Participants []string `json:"participants"`
}

func (s *Server) handleConversationStart(w http.ResponseWriter, r *http.Request) {
	var req conversationStartRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	g, err := s.d.Groups.StartGroup(req.PlayerID, req.PlayerName, req.Location, req.Participants)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, g)
}

type conversationMessageRequest struct {
	TargetAgentID string `json:"target_agent_id"`
	Message       string `json:"message"`
}

func (s *Server) handleConversationMessage(w http.ResponseWriter, r *http.Request) {
	var req conversationMessageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	msgs, err := s.d.Groups.ProcessMessage(r.Context(), fleetDirectory{s.d.Fleet}, s.d.LLM, s.d.LLMModel, r.PathValue("id"), req.TargetAgentID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"messages": msgs})
}

func (s *Server) handleConversationEnd(w http.ResponseWriter, r *http.Request) {
	g, err := s.d.Groups.EndGroup(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, g)
}

func (s *Server) handleConversationGet(w http.ResponseWriter, r *http.Request) {
	g, err := s.d.Groups.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, g)
}

func (s *Server) handleConversationStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.d.Groups.Stats())
}

// --- Scaling (§6 "Scaling") ---

func (s *Server) handleScalingStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"subscribers": s.d.Bus.SubscriberCount(),
	})
}

// fleetDirectory adapts *fleet.Coordinator to groups.AgentDirectory.
type fleetDirectory struct{ c *fleet.Coordinator }

func (f fleetDirectory) Agent(id string) (*cognition.Agent, error) { return f.c.Agent(id) }
