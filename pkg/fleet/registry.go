// Package fleet implements the Fleet Coordinator (component F): agent
// registration and the inter-agent trust matrix, agent-to-agent
// interaction, the world tick, and the auxiliary state machines of §4.7
// (Quest, QuestChain, TradeRoute, TerritorialBattle, NPCGoal). Grounded on
// original_source's core/multi_npc.py (MultiNPCOrchestrator: trust matrix,
// faction initialization, npc_to_npc_interaction).
package fleet

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fracturedsurvival/npcruntime/internal/apperr"
	"github.com/fracturedsurvival/npcruntime/pkg/cognition"
	"github.com/fracturedsurvival/npcruntime/pkg/memory"
	"github.com/fracturedsurvival/npcruntime/pkg/scaling"
	"github.com/fracturedsurvival/npcruntime/pkg/social"
	"github.com/fracturedsurvival/npcruntime/pkg/store"
	"github.com/fracturedsurvival/npcruntime/pkg/topic"
)

// Same/cross-faction initial trust (§4.6 Registry; original_source
// multi_npc.py.register_npc).
const (
	SameFactionTrust  = 0.6
	CrossFactionTrust = 0.3
)

// TrustDeltaMemoryThreshold is the |delta| above which a trust change
// writes a social memory on the affected agent (§4.6 Registry).
const TrustDeltaMemoryThreshold = 0.05

// Coordinator owns every registered agent, the inter-agent trust matrix,
// and the auxiliary economy/quest/territory state machines (§4.6, §4.7).
// It is the single place that composes relation + memory sharing + rumor
// spreading into a coherent gossip step (§9 design note on cyclic
// dependencies).
type Coordinator struct {
	store  *store.Store
	memory *memory.Vault
	topics *topic.Vault
	social *social.Ledger
	bus    *scaling.EventBus
	log    *zap.SugaredLogger

	mu       sync.RWMutex
	agents   map[string]*cognition.Agent
	factions map[string]string // agentID -> faction

	events *ring

	worldSeconds float64 // cumulative simulated world time
}

// Deps bundles a Coordinator's collaborators. Bus is optional: when set,
// every fleet event is additionally published onto it under a "/fleet/..."
// topic so external surfaces can subscribe with trie wildcard patterns.
type Deps struct {
	Store  *store.Store
	Memory *memory.Vault
	Topics *topic.Vault
	Social *social.Ledger
	Bus    *scaling.EventBus
	Log    *zap.SugaredLogger
}

// New constructs an empty Coordinator.
func New(d Deps) *Coordinator {
	log := d.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Coordinator{
		store:    d.Store,
		memory:   d.Memory,
		topics:   d.Topics,
		social:   d.Social,
		bus:      d.Bus,
		log:      log,
		agents:   make(map[string]*cognition.Agent),
		factions: make(map[string]string),
		events:   newRing(50),
	}
}

// Register adds agent to the fleet under faction, starts its runtime, and
// initializes reciprocal trust against every already-registered agent:
// SameFactionTrust within the same faction, CrossFactionTrust otherwise
// (§4.6 Registry).
func (c *Coordinator) Register(ctx context.Context, agent *cognition.Agent, faction string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := agent.ID()
	if _, exists := c.agents[id]; exists {
		return apperr.Conflictf("fleet: agent %q is already registered", id)
	}

	for otherID, otherFaction := range c.factions {
		trust := CrossFactionTrust
		if otherFaction == faction {
			trust = SameFactionTrust
		}
		if err := c.writeRelation(ctx, id, otherID, trust); err != nil {
			return err
		}
	}

	c.agents[id] = agent
	c.factions[id] = faction
	agent.Start(ctx)
	c.publish(Event{Kind: EventAgentRegistered, Subject: id, Detail: faction, At: time.Now().UTC()})
	return nil
}

// Unregister stops agent's runtime and removes it from the fleet. Its
// historical trust relationships are left in place.
func (c *Coordinator) Unregister(id string) {
	c.mu.Lock()
	agent, ok := c.agents[id]
	delete(c.agents, id)
	delete(c.factions, id)
	c.mu.Unlock()
	if ok {
		agent.Stop()
		c.publish(Event{Kind: EventAgentUnregistered, Subject: id, At: time.Now().UTC()})
	}
}

// Agent returns the registered agent with id, or a NotFound error.
func (c *Coordinator) Agent(id string) (*cognition.Agent, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.agents[id]
	if !ok {
		return nil, apperr.NotFoundf("fleet: no registered agent %q", id)
	}
	return a, nil
}

// AgentIDs returns every currently registered agent ID.
func (c *Coordinator) AgentIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.agents))
	for id := range c.agents {
		ids = append(ids, id)
	}
	return ids
}

// relationKey canonicalizes an undirected (a, b) pair, matching the schema's
// agent_a < agent_b convention.
func relationKey(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

func (c *Coordinator) writeRelation(ctx context.Context, a, b string, score float64) error {
	x, y := relationKey(a, b)
	_, err := c.store.DB().ExecContext(ctx,
		`INSERT INTO agent_relations (agent_a, agent_b, score, shared_experience_count) VALUES (?, ?, ?, 0)
		 ON CONFLICT(agent_a, agent_b) DO UPDATE SET score = excluded.score`, x, y, score)
	if err != nil {
		return apperr.Integrityf(err, "fleet: write relation %s-%s", x, y)
	}
	return nil
}

// Relation returns the current trust score between a and b, defaulting to 0
// if they have never been related.
func (c *Coordinator) Relation(ctx context.Context, a, b string) (float64, error) {
	x, y := relationKey(a, b)
	row := c.store.DB().QueryRowContext(ctx, `SELECT score FROM agent_relations WHERE agent_a = ? AND agent_b = ?`, x, y)
	var score float64
	if err := row.Scan(&score); err != nil {
		return 0, nil
	}
	return score, nil
}

// RelatedAgents implements cognition.RelationLookup: every agent related to
// agentID, keyed by relation score.
func (c *Coordinator) RelatedAgents(ctx context.Context, agentID string) (map[string]float64, error) {
	rows, err := c.store.DB().QueryContext(ctx,
		`SELECT agent_a, agent_b, score FROM agent_relations WHERE agent_a = ? OR agent_b = ?`, agentID, agentID)
	if err != nil {
		return nil, apperr.Integrityf(err, "fleet: query related agents")
	}
	defer rows.Close()
	out := make(map[string]float64)
	for rows.Next() {
		var a, b string
		var score float64
		if err := rows.Scan(&a, &b, &score); err != nil {
			return nil, apperr.Integrityf(err, "fleet: scan related agents")
		}
		other := a
		if a == agentID {
			other = b
		}
		out[other] = score
	}
	return out, rows.Err()
}

// ModifyTrust clamp-adjusts the trust between a and b by delta, incrementing
// their shared-experience count, and writes a social memory on both agents
// when |delta| exceeds TrustDeltaMemoryThreshold (§4.6 Registry).
func (c *Coordinator) ModifyTrust(ctx context.Context, a, b string, delta float64, reason string) (float64, error) {
	current, err := c.Relation(ctx, a, b)
	if err != nil {
		return 0, err
	}
	next := math.Max(0, math.Min(1, current+delta))

	x, y := relationKey(a, b)
	_, err = c.store.DB().ExecContext(ctx,
		`INSERT INTO agent_relations (agent_a, agent_b, score, shared_experience_count) VALUES (?, ?, ?, 1)
		 ON CONFLICT(agent_a, agent_b) DO UPDATE SET score = excluded.score, shared_experience_count = shared_experience_count + 1`,
		x, y, next)
	if err != nil {
		return 0, apperr.Integrityf(err, "fleet: modify trust %s-%s", x, y)
	}

	if math.Abs(delta) > TrustDeltaMemoryThreshold && c.memory != nil {
		content := fmt.Sprintf("My trust toward %s shifted by %.2f: %s", otherOf(a, b, a), delta, reason)
		c.memory.StoreMemory(ctx, a, memory.Social, content, math.Min(1.0, math.Abs(delta)*5))
		content = fmt.Sprintf("My trust toward %s shifted by %.2f: %s", otherOf(a, b, b), delta, reason)
		c.memory.StoreMemory(ctx, b, memory.Social, content, math.Min(1.0, math.Abs(delta)*5))
	}
	return next, nil
}

func otherOf(a, b, self string) string {
	if self == a {
		return b
	}
	return a
}

// AgentInteraction composes a perception naming the sender and the
// listener's current trust level, invokes the listener's reactive cycle,
// applies the returned trust_mod, and records the interaction (§4.6
// Agent-to-agent interaction). The player ID used for bookkeeping is the
// sender's agent ID so reputation/topic state stays keyed consistently with
// the reactive cycle's normal (player, agent) shape.
func (c *Coordinator) AgentInteraction(ctx context.Context, fromID, toID, message string) (cognition.CognitiveFrame, error) {
	listener, err := c.Agent(toID)
	if err != nil {
		return cognition.CognitiveFrame{}, err
	}
	trust, err := c.Relation(ctx, fromID, toID)
	if err != nil {
		return cognition.CognitiveFrame{}, err
	}
	perception := fmt.Sprintf("%s approaches you and says: %q (your trust in them is %.2f)", fromID, message, trust)

	frame, _, err := listener.ReceivePlayerAction(ctx, fromID, perception)
	if err != nil {
		return cognition.CognitiveFrame{}, err
	}
	if frame.TrustMod != 0 {
		if _, err := c.ModifyTrust(ctx, toID, fromID, frame.TrustMod, "agent interaction"); err != nil {
			c.log.Warnw("fleet: modify trust after interaction failed", "err", err)
		}
	}
	c.publish(Event{Kind: EventAgentInteraction, Subject: toID, Detail: fromID, At: time.Now().UTC()})
	return frame, nil
}
