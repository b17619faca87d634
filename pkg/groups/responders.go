package groups

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/fracturedsurvival/npcruntime/internal/apperr"
	"github.com/fracturedsurvival/npcruntime/pkg/cognition"
	"github.com/fracturedsurvival/npcruntime/pkg/llm"
	"github.com/fracturedsurvival/npcruntime/pkg/persona"
)

// MaxChimeIns bounds how many secondary responders a direct-address turn
// can draw, beyond the directly-addressed primary responder (§4.8 Message
// handling).
const MaxChimeIns = 2

// responderPick is one entry of a responder-selection decision, shared by
// both the direct-address path and the orchestrator LLM path.
type responderPick struct {
	AgentID         string       `json:"npc_id"`
	ResponseType    ResponseType `json:"response_type"`
	TargetID        string       `json:"target_id"`
	Urgency         float64      `json:"urgency"`
	ShouldInterrupt bool         `json:"should_interrupt"`
}

// orchestratorDecision is the JSON contract the group orchestrator LLM call
// must return (§4.8 Message handling, "otherwise" branch).
type orchestratorDecision struct {
	NextSpeakers  []responderPick `json:"next_speakers"`
	TensionChange float64         `json:"tension_change"`
	Reasoning     string          `json:"reasoning"`
}

// ProcessMessage runs one player turn through a group: determines
// responders (direct address or orchestrator LLM), invokes each chosen
// agent's reactive cycle, and appends the resulting turns to history
// (§4.8 Message handling). targetAgentID is "" when the player did not
// address anyone in particular.
func (m *Manager) ProcessMessage(ctx context.Context, directory AgentDirectory, orchestrator llm.Client, orchestratorModel, groupID, targetAgentID, message string) ([]Message, error) {
	g, err := m.Get(groupID)
	if err != nil {
		return nil, err
	}
	if !g.Active {
		return nil, apperr.Conflictf("groups: group %q has ended", groupID)
	}

	picks, tensionChange, err := m.determineResponders(ctx, directory, orchestrator, orchestratorModel, g, message, targetAgentID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	g.TensionLevel = clamp01(g.TensionLevel + tensionChange)
	m.mu.Unlock()

	var produced []Message
	for _, pick := range picks {
		if pick.ResponseType == ResponseSilent {
			continue
		}
		agent, err := directory.Agent(pick.AgentID)
		if err != nil {
			m.log.Debugw("groups: responder agent not found", "agent", pick.AgentID, "err", err)
			continue
		}
		msg, err := m.generateResponse(ctx, g, agent, message, pick)
		if err != nil {
			m.log.Warnw("groups: generate response failed", "agent", pick.AgentID, "err", err)
			continue
		}
		if msg == nil {
			continue
		}
		produced = append(produced, *msg)

		m.mu.Lock()
		g.History = append(g.History, *msg)
		g.LastActivity = time.Now().UTC()
		if p, ok := g.Participants[pick.AgentID]; ok {
			p.LastSpokeAt = msg.At
			p.StatementsCount++
			p.Role = RoleSpeaker
		}
		m.mu.Unlock()
	}
	return produced, nil
}

// determineResponders implements §4.8's two-path selection: direct address
// (plus probabilistic chime-ins) or an orchestrator LLM call.
func (m *Manager) determineResponders(ctx context.Context, directory AgentDirectory, orchestrator llm.Client, orchestratorModel string, g *Group, message, targetAgentID string) ([]responderPick, float64, error) {
	if targetAgentID != "" {
		if _, ok := g.Participants[targetAgentID]; !ok {
			return nil, 0, apperr.InvalidArgumentf("groups: %q is not a participant of group %q", targetAgentID, g.ID)
		}
		primary := responderPick{
			AgentID:      targetAgentID,
			ResponseType: ResponseDirectReply,
			TargetID:     "player",
			Urgency:      1.0,
		}
		secondary := m.secondaryResponders(ctx, directory, g, targetAgentID)
		return append([]responderPick{primary}, secondary...), 0, nil
	}

	if orchestrator == nil {
		return []responderPick{m.defaultResponder(g)}, 0, nil
	}

	prompt := m.buildOrchestratorContext(g, message)
	resp, err := orchestrator.Complete(ctx, llm.Request{
		Model: orchestratorModel,
		Messages: []llm.Message{
			{Role: "system", Content: orchestratorSystemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		m.log.Warnw("groups: orchestrator call failed, falling back to default responder", "err", err)
		return []responderPick{m.defaultResponder(g)}, 0, nil
	}

	var decision orchestratorDecision
	if err := llm.DecodeJSON(resp.Text, &decision); err != nil {
		m.log.Warnw("groups: orchestrator response undecodable, falling back to default responder", "err", err)
		return []responderPick{m.defaultResponder(g)}, 0, nil
	}
	tensionChange := decision.TensionChange
	if tensionChange < -0.1 {
		tensionChange = -0.1
	} else if tensionChange > 0.1 {
		tensionChange = 0.1
	}
	return decision.NextSpeakers, tensionChange, nil
}

// secondaryResponders draws up to MaxChimeIns additional responders around
// a direct-address turn, per §4.8's chime-in probability formula.
func (m *Manager) secondaryResponders(ctx context.Context, directory AgentDirectory, g *Group, primaryID string) []responderPick {
	var out []responderPick
	for id := range g.Participants {
		if id == primaryID {
			continue
		}
		agent, err := directory.Agent(id)
		if err != nil {
			continue
		}
		desc, err := agent.Describe(ctx)
		if err != nil {
			continue
		}
		p := desc.Personality
		curiosity := p.Get(persona.Curiosity)
		empathy := p.Get(persona.Empathy)
		aggression := p.Get(persona.Aggression)

		prob := (curiosity+empathy)/4 + aggression*0.2
		if rand.Float64() >= prob {
			continue
		}

		var rt ResponseType
		switch {
		case aggression > 0.6:
			rt = pickResponseType(ResponseDisagreement, ResponseElaboration)
		case empathy > 0.6:
			rt = pickResponseType(ResponseAgreement, ResponseElaboration)
		default:
			rt = ResponseElaboration
		}
		out = append(out, responderPick{
			AgentID:      id,
			ResponseType: rt,
			TargetID:     primaryID,
			Urgency:      0.5,
		})
		if len(out) >= MaxChimeIns {
			break
		}
	}
	return out
}

func pickResponseType(a, b ResponseType) ResponseType {
	if rand.Intn(2) == 0 {
		return a
	}
	return b
}

// defaultResponder is the fallback pick when the orchestrator is unset or
// errors: the participant who has gone longest without speaking.
func (m *Manager) defaultResponder(g *Group) responderPick {
	var oldestID string
	var oldest time.Time
	first := true
	for id, p := range g.Participants {
		if first || p.LastSpokeAt.Before(oldest) {
			oldestID = id
			oldest = p.LastSpokeAt
			first = false
		}
	}
	return responderPick{AgentID: oldestID, ResponseType: ResponseDirectReply, TargetID: "player", Urgency: 0.7}
}

const orchestratorSystemPrompt = "You direct a multi-NPC group conversation. Given the participants, recent " +
	"history, and the player's message, decide which NPC(s) should respond next, how (response_type), " +
	"and whether the scene's tension should shift. Reply with strict JSON: " +
	`{"next_speakers":[{"npc_id":"...","response_type":"direct_reply|agreement|disagreement|elaboration|interruption|redirect|silent","target_id":"...","urgency":0.0,"should_interrupt":false}],"tension_change":0.0,"reasoning":"..."}`

func (m *Manager) buildOrchestratorContext(g *Group, message string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CONVERSATION CONTEXT:\nLocation: %s\nTension Level: %.2f\n\n", g.Location, g.TensionLevel)
	b.WriteString("PARTICIPANTS:\n")
	for id, p := range g.Participants {
		fmt.Fprintf(&b, "- %s (%s): mood=%s, statements=%d\n", id, m.nameOf(id), p.Mood, p.StatementsCount)
	}
	b.WriteString("\nRECENT HISTORY:\n")
	history := g.History
	if len(history) > 5 {
		history = history[len(history)-5:]
	}
	for _, h := range history {
		fmt.Fprintf(&b, "- %s (%s): %s\n", h.SpeakerName, h.ResponseType, truncate(h.Content, 100))
	}
	fmt.Fprintf(&b, "\nPLAYER MESSAGE:\n%q\n\nDetermine which NPC(s) should respond and how.", message)
	return b.String()
}

// generateResponse invokes agent's reactive cycle with a context describing
// the group scene and the requested response_type, and materializes the
// resulting dialogue as a ConversationMessage. Returns nil (not an error)
// when the agent produced no dialogue.
func (m *Manager) generateResponse(ctx context.Context, g *Group, agent *cognition.Agent, playerMessage string, pick responderPick) (*Message, error) {
	instruction := responseInstruction(pick.ResponseType, pick.TargetID)
	perception := fmt.Sprintf("[Group conversation at %s, tension %s]\n%s\nThe player (%s) says: %q",
		g.Location, tensionLabel(g.TensionLevel), instruction, g.PlayerName, playerMessage)

	frame, _, err := agent.ReceivePlayerAction(ctx, g.PlayerID, perception)
	if err != nil {
		return nil, err
	}
	if frame.Dialogue == "" {
		return nil, nil
	}
	return &Message{
		SpeakerID:    agent.ID(),
		SpeakerName:  m.nameOf(agent.ID()),
		Content:      frame.Dialogue,
		ResponseType: pick.ResponseType,
		TargetID:     pick.TargetID,
		At:           time.Now().UTC(),
	}, nil
}

func responseInstruction(rt ResponseType, targetID string) string {
	switch rt {
	case ResponseDirectReply:
		return "Respond directly to the player."
	case ResponseAgreement:
		return fmt.Sprintf("You agree with what %s said. Express your agreement and maybe add your perspective.", targetID)
	case ResponseDisagreement:
		return fmt.Sprintf("You disagree with %s. Voice your disagreement respectfully but firmly.", targetID)
	case ResponseElaboration:
		return fmt.Sprintf("Build upon what %s said. Add more information or context.", targetID)
	case ResponseInterruption:
		return "You feel compelled to interrupt. Make your point urgently."
	case ResponseRedirect:
		return "Change the topic to something you think is more important."
	default:
		return ""
	}
}

func tensionLabel(t float64) string {
	switch {
	case t > 0.6:
		return "high"
	case t > 0.3:
		return "moderate"
	default:
		return "calm"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
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
