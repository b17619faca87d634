// Package groups implements Conversation Groups (component G): proximity
// discovery, group lifecycle, and multi-party responder selection for
// scenes with more than one NPC and a player. Grounded on
// original_source's core/conversation_groups.py
// (ConversationGroupManager): location model, group/participant/message
// shapes, direct-address vs. orchestrator responder selection, and the
// idle-timeout cleanup sweep. Groups are ephemeral scene state, not
// durable records, so a Manager holds everything in memory guarded by a
// single mutex, matching the Python original's plain dict-of-dataclasses
// design.
package groups

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fracturedsurvival/npcruntime/internal/apperr"
	"github.com/fracturedsurvival/npcruntime/internal/config"
	"github.com/fracturedsurvival/npcruntime/pkg/cognition"
)

// Role is a participant's role within a conversation group.
type Role string

const (
	RoleSpeaker    Role = "speaker"
	RoleListener   Role = "listener"
	RoleInterjector Role = "interjector"
	RoleObserver   Role = "observer"
)

// ResponseType tags how a participant's turn relates to the message that
// prompted it.
type ResponseType string

const (
	ResponseDirectReply  ResponseType = "direct_reply"
	ResponseAgreement    ResponseType = "agreement"
	ResponseDisagreement ResponseType = "disagreement"
	ResponseElaboration  ResponseType = "elaboration"
	ResponseInterruption ResponseType = "interruption"
	ResponseRedirect     ResponseType = "redirect"
	ResponseSilent       ResponseType = "silent"
)

// Location is a 3D position plus a named zone (§4.8 Location model).
type Location struct {
	X, Y, Z float64
	Zone    string
}

// DistanceTo returns the Euclidean distance between two locations.
func (l Location) DistanceTo(o Location) float64 {
	dx, dy, dz := l.X-o.X, l.Y-o.Y, l.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Participant is one member of a conversation group.
type Participant struct {
	ID             string
	Role           Role
	Mood           string
	LastSpokeAt    time.Time
	StatementsCount int
}

// Message is one turn recorded in a group's history.
type Message struct {
	SpeakerID   string
	SpeakerName string
	Content     string
	ResponseType ResponseType
	TargetID    string
	At          time.Time
}

// Group is one active (or ended) conversation scene.
type Group struct {
	ID           string
	PlayerID     string
	PlayerName   string
	Location     string
	TensionLevel float64
	Participants map[string]*Participant
	History      []Message
	Active       bool
	CreatedAt    time.Time
	LastActivity time.Time
}

// Stats summarizes a Manager's current groups, for the scaling/external
// surface's diagnostic endpoint.
type Stats struct {
	TotalGroups  int
	ActiveGroups int
	TotalMessages int
}

// Deps bundles a Manager's collaborators.
type Deps struct {
	Config config.GroupConfig
	Log    *zap.SugaredLogger
}

// AgentDirectory is implemented by the Fleet Coordinator so the Manager can
// look up a participant's runtime without importing pkg/fleet.
type AgentDirectory interface {
	Agent(id string) (*cognition.Agent, error)
}

// Manager owns every conversation group and the agent/player location
// index used for proximity discovery (§4.8).
type Manager struct {
	cfg config.GroupConfig
	log *zap.SugaredLogger

	mu             sync.Mutex
	agentLocations map[string]Location
	playerLocations map[string]Location
	agentNames     map[string]string
	groups         map[string]*Group
}

// New constructs an empty Manager.
func New(d Deps) *Manager {
	cfg := d.Config
	if cfg.ProximityThreshold <= 0 {
		cfg.ProximityThreshold = 500.0
	}
	if cfg.MaxGroupSize <= 0 {
		cfg.MaxGroupSize = 6
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{
		cfg:             cfg,
		log:             log,
		agentLocations:  make(map[string]Location),
		playerLocations: make(map[string]Location),
		agentNames:      make(map[string]string),
		groups:          make(map[string]*Group),
	}
}

// UpdateAgentLocation records where agentID currently is. name is the
// display name used in conversation messages; pass "" to keep agentID.
func (m *Manager) UpdateAgentLocation(agentID string, loc Location, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agentLocations[agentID] = loc
	if name != "" {
		m.agentNames[agentID] = name
	}
}

// UpdatePlayerLocation records where playerID currently is.
func (m *Manager) UpdatePlayerLocation(playerID string, loc Location) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playerLocations[playerID] = loc
}

// Nearby returns every agent ID within maxDistance of playerID (defaulting
// to the Manager's proximity threshold when maxDistance <= 0), capped to
// MaxGroupSize, nearest first.
func (m *Manager) Nearby(playerID string, maxDistance float64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if maxDistance <= 0 {
		maxDistance = m.cfg.ProximityThreshold
	}
	origin, ok := m.playerLocations[playerID]
	if !ok {
		return nil, apperr.NotFoundf("groups: no known location for player %q", playerID)
	}
	type hit struct {
		id   string
		dist float64
	}
	var hits []hit
	for id, loc := range m.agentLocations {
		if d := origin.DistanceTo(loc); d <= maxDistance {
			hits = append(hits, hit{id, d})
		}
	}
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].dist < hits[j-1].dist; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	if len(hits) > m.cfg.MaxGroupSize {
		hits = hits[:m.cfg.MaxGroupSize]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.id
	}
	return out, nil
}

// StartGroup opens a new conversation group for playerID. If participantIDs
// is empty, participants are auto-discovered via Nearby. Every initial
// participant is recorded as role=listener (§4.8 Start).
func (m *Manager) StartGroup(playerID, playerName, location string, participantIDs []string) (*Group, error) {
	ids := participantIDs
	if len(ids) == 0 {
		discovered, err := m.Nearby(playerID, 0)
		if err != nil {
			return nil, err
		}
		ids = discovered
	}
	if len(ids) > m.cfg.MaxGroupSize {
		ids = ids[:m.cfg.MaxGroupSize]
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	g := &Group{
		ID:           uuid.NewString(),
		PlayerID:     playerID,
		PlayerName:   playerName,
		Location:     location,
		TensionLevel: 0.2,
		Participants: make(map[string]*Participant, len(ids)),
		Active:       true,
		CreatedAt:    now,
		LastActivity: now,
	}
	for _, id := range ids {
		g.Participants[id] = &Participant{ID: id, Role: RoleListener}
	}
	m.groups[g.ID] = g
	return g, nil
}

// Get returns the group with id, or a NotFound error.
func (m *Manager) Get(id string) (*Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, apperr.NotFoundf("groups: no group %q", id)
	}
	return g, nil
}

// AddParticipant adds agentID to group id with role=listener, rejecting the
// addition once the group is at MaxGroupSize (§4.8 Lifecycle).
func (m *Manager) AddParticipant(id, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return apperr.NotFoundf("groups: no group %q", id)
	}
	if _, exists := g.Participants[agentID]; exists {
		return nil
	}
	if len(g.Participants) >= m.cfg.MaxGroupSize {
		return apperr.Conflictf("groups: group %q is already at max size %d", id, m.cfg.MaxGroupSize)
	}
	g.Participants[agentID] = &Participant{ID: agentID, Role: RoleListener}
	g.LastActivity = time.Now().UTC()
	return nil
}

// RemoveParticipant drops agentID from group id. Its past turns remain in
// History but it is absent from subsequent activity (§8 invariant).
func (m *Manager) RemoveParticipant(id, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return apperr.NotFoundf("groups: no group %q", id)
	}
	delete(g.Participants, agentID)
	g.LastActivity = time.Now().UTC()
	return nil
}

// EndGroup marks group id inactive and returns its final state.
func (m *Manager) EndGroup(id string) (*Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, apperr.NotFoundf("groups: no group %q", id)
	}
	g.Active = false
	return g, nil
}

// Cleanup marks every group idle for longer than the configured timeout as
// inactive, returning how many it touched (§4.8 Lifecycle periodic sweep).
func (m *Manager) Cleanup(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, g := range m.groups {
		if g.Active && now.Sub(g.LastActivity) > m.cfg.Timeout {
			g.Active = false
			n++
		}
	}
	return n
}

// Stats summarizes every group the Manager has ever held.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Stats{TotalGroups: len(m.groups)}
	for _, g := range m.groups {
		if g.Active {
			s.ActiveGroups++
		}
		s.TotalMessages += len(g.History)
	}
	return s
}

func (m *Manager) nameOf(agentID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.agentNames[agentID]; ok {
		return n
	}
	return agentID
}
