// Package social implements Player & Reputation (component D): player
// sessions, clamped reputation edges, the action log, and the rumor
// lifecycle (§4.4). Grounded on the reputation/rumor bookkeeping shape of
// original_source's core/multi_npc.py (clamp-then-recompute pattern, social
// memories on trust change) even though multi_npc.py models NPC-to-NPC
// trust rather than player-to-agent reputation.
package social

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/fracturedsurvival/npcruntime/internal/apperr"
	"github.com/fracturedsurvival/npcruntime/pkg/store"
)

// Player is a tracked player session (§3 Player).
type Player struct {
	ID                string
	DisplayName       string
	FirstSeen         time.Time
	LastSeen          time.Time
	InteractionCount  int
	GlobalReputation  float64
}

// Ledger owns players, reputation_edges, the action log, and rumors.
type Ledger struct {
	store *store.Store
}

// New wraps a Store with the Player & Reputation API.
func New(s *store.Store) *Ledger {
	return &Ledger{store: s}
}

// EnsurePlayer returns the player session for playerID, creating it (with
// displayName) on first reference.
func (l *Ledger) EnsurePlayer(ctx context.Context, playerID, displayName string) (Player, error) {
	if playerID == "" {
		return Player{}, apperr.InvalidArgumentf("social: player_id is required")
	}
	now := time.Now().UTC()
	_, err := l.store.DB().ExecContext(ctx,
		`INSERT INTO players (id, display_name, first_seen, last_seen, interaction_count, global_reputation)
		 VALUES (?, ?, ?, ?, 0, 0)
		 ON CONFLICT(id) DO UPDATE SET last_seen = excluded.last_seen`,
		playerID, displayName, now.Unix(), now.Unix())
	if err != nil {
		return Player{}, apperr.Integrityf(err, "social: ensure player")
	}
	return l.GetPlayer(ctx, playerID)
}

// GetPlayer returns a player session by ID.
func (l *Ledger) GetPlayer(ctx context.Context, playerID string) (Player, error) {
	row := l.store.DB().QueryRowContext(ctx,
		`SELECT id, display_name, first_seen, last_seen, interaction_count, global_reputation FROM players WHERE id = ?`, playerID)
	var p Player
	var firstSeen, lastSeen int64
	if err := row.Scan(&p.ID, &p.DisplayName, &firstSeen, &lastSeen, &p.InteractionCount, &p.GlobalReputation); err != nil {
		return Player{}, apperr.NotFoundf("social: no player %q", playerID)
	}
	p.FirstSeen = time.Unix(firstSeen, 0).UTC()
	p.LastSeen = time.Unix(lastSeen, 0).UTC()
	return p, nil
}

// ReputationEdge is one (player, agent) trust relationship.
type ReputationEdge struct {
	PlayerID        string
	AgentID         string
	Reputation      float64
	LastInteraction time.Time
	Count           int
}

// ApplyReputationDelta clamp-adds delta to the (playerID, agentID) edge,
// recomputes that player's global reputation as the mean of all their
// edges, appends an action-log row, and increments the player's
// interaction counter — the full write path of §4.4's reactive-interaction
// bookkeeping, run as a single transaction so the mean is always consistent
// with the edges it was computed from.
func (l *Ledger) ApplyReputationDelta(ctx context.Context, playerID, agentID, action, response string, delta float64) (ReputationEdge, error) {
	if playerID == "" || agentID == "" {
		return ReputationEdge{}, apperr.InvalidArgumentf("social: player_id and agent_id are required")
	}
	if _, err := l.EnsurePlayer(ctx, playerID, ""); err != nil {
		return ReputationEdge{}, err
	}

	tx, err := l.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return ReputationEdge{}, apperr.Integrityf(err, "social: begin reputation tx")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var current float64
	row := tx.QueryRowContext(ctx, `SELECT reputation FROM reputation_edges WHERE player_id = ? AND agent_id = ?`, playerID, agentID)
	switch err := row.Scan(&current); err {
	case nil:
	default:
		current = 0
	}
	next := math.Max(-1, math.Min(1, current+delta))

	_, err = tx.ExecContext(ctx,
		`INSERT INTO reputation_edges (player_id, agent_id, reputation, last_interaction, count)
		 VALUES (?, ?, ?, ?, 1)
		 ON CONFLICT(player_id, agent_id) DO UPDATE SET
		   reputation = excluded.reputation, last_interaction = excluded.last_interaction, count = count + 1`,
		playerID, agentID, next, now.Unix())
	if err != nil {
		return ReputationEdge{}, apperr.Integrityf(err, "social: upsert reputation edge")
	}

	var mean float64
	row = tx.QueryRowContext(ctx, `SELECT AVG(reputation) FROM reputation_edges WHERE player_id = ?`, playerID)
	if err := row.Scan(&mean); err != nil {
		return ReputationEdge{}, apperr.Integrityf(err, "social: compute global reputation")
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE players SET global_reputation = ?, interaction_count = interaction_count + 1, last_seen = ? WHERE id = ?`,
		mean, now.Unix(), playerID); err != nil {
		return ReputationEdge{}, apperr.Integrityf(err, "social: update player rollup")
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO action_log (id, player_id, agent_id, action, response, reputation_delta, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"act_"+uuid.NewString(), playerID, agentID, action, response, delta, now.Unix()); err != nil {
		return ReputationEdge{}, apperr.Integrityf(err, "social: append action log")
	}

	if err := tx.Commit(); err != nil {
		return ReputationEdge{}, apperr.Integrityf(err, "social: commit reputation tx")
	}

	var count int
	row = l.store.DB().QueryRowContext(ctx, `SELECT count FROM reputation_edges WHERE player_id = ? AND agent_id = ?`, playerID, agentID)
	row.Scan(&count)

	return ReputationEdge{PlayerID: playerID, AgentID: agentID, Reputation: next, LastInteraction: now, Count: count}, nil
}

// GetReputation returns the (playerID, agentID) edge, or a zero edge if
// they have never interacted.
func (l *Ledger) GetReputation(ctx context.Context, playerID, agentID string) (ReputationEdge, error) {
	row := l.store.DB().QueryRowContext(ctx,
		`SELECT player_id, agent_id, reputation, last_interaction, count FROM reputation_edges WHERE player_id = ? AND agent_id = ?`,
		playerID, agentID)
	var e ReputationEdge
	var last int64
	if err := row.Scan(&e.PlayerID, &e.AgentID, &e.Reputation, &last, &e.Count); err != nil {
		return ReputationEdge{PlayerID: playerID, AgentID: agentID}, nil
	}
	e.LastInteraction = time.Unix(last, 0).UTC()
	return e, nil
}

// rumorTemplates are keyed by outcome polarity (§4.4 Rumor lifecycle).
var rumorTemplates = map[string][]string{
	"positive": {
		"They say %s is someone you can trust.",
		"Word is %s did a good turn for the settlement.",
	},
	"negative": {
		"They say %s can't be trusted.",
		"Word is %s caused trouble around here.",
	},
	"neutral": {
		"I heard %s passed through recently.",
		"Someone mentioned %s was asking around.",
	},
}

// Rumor is a piece of gossip about a player, authored by an agent (§3 Rumor).
type Rumor struct {
	ID            string
	AboutPlayerID string
	Text          string
	Truthfulness  float64
	SpreadCount   int
	AuthorAgentID string
	CreatedAt     time.Time
}

// RumorAuthorChance is the probability an interaction spawns a rumor
// (§4.4 Rumor lifecycle).
const RumorAuthorChance = 0.3

// MaybeAuthorRumor rolls §4.4's 0.3 probability and, on success, authors a
// rumor about playerID from authorAgentID with polarity drawn from the
// interaction outcome, registering the author's own belief at 1.0. Returns
// nil, nil when the roll fails.
func (l *Ledger) MaybeAuthorRumor(ctx context.Context, authorAgentID, aboutPlayerID, polarity string) (*Rumor, error) {
	if rand.Float64() > RumorAuthorChance {
		return nil, nil
	}
	templates := rumorTemplates[polarity]
	if len(templates) == 0 {
		templates = rumorTemplates["neutral"]
	}
	text := fmt.Sprintf(templates[rand.Intn(len(templates))], aboutPlayerID)

	r := Rumor{
		ID:            "rumor_" + uuid.NewString(),
		AboutPlayerID: aboutPlayerID,
		Text:          text,
		Truthfulness:  0.7 + rand.Float64()*0.3,
		AuthorAgentID: authorAgentID,
		CreatedAt:     time.Now().UTC(),
	}
	_, err := l.store.DB().ExecContext(ctx,
		`INSERT INTO rumors (id, about_player_id, text, truthfulness, spread_count, author_agent_id, created_at) VALUES (?, ?, ?, ?, 0, ?, ?)`,
		r.ID, r.AboutPlayerID, r.Text, r.Truthfulness, r.AuthorAgentID, r.CreatedAt.Unix())
	if err != nil {
		return nil, apperr.Integrityf(err, "social: author rumor")
	}
	if _, err := l.store.DB().ExecContext(ctx,
		`INSERT INTO rumor_beliefs (rumor_id, listener_agent_id, belief, heard_at) VALUES (?, ?, 1.0, ?)`,
		r.ID, authorAgentID, r.CreatedAt.Unix()); err != nil {
		return nil, apperr.Integrityf(err, "social: register author belief")
	}
	return &r, nil
}

// SpreadRumor has listenerAgentID hear rumorID for the first time, sampling
// a belief in [0.5, 0.9] and incrementing the rumor's spread counter.
// Spreading is idempotent: a listener who has already heard the rumor gets
// back their existing belief unchanged and the counter does not move again
// (§4.4: "Spreading is idempotent per (listener, rumor)").
func (l *Ledger) SpreadRumor(ctx context.Context, rumorID, listenerAgentID string) (belief float64, alreadyHeard bool, err error) {
	row := l.store.DB().QueryRowContext(ctx,
		`SELECT belief FROM rumor_beliefs WHERE rumor_id = ? AND listener_agent_id = ?`, rumorID, listenerAgentID)
	if scanErr := row.Scan(&belief); scanErr == nil {
		return belief, true, nil
	}

	belief = 0.5 + rand.Float64()*0.4
	tx, err := l.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, false, apperr.Integrityf(err, "social: begin spread tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rumor_beliefs (rumor_id, listener_agent_id, belief, heard_at) VALUES (?, ?, ?, ?)`,
		rumorID, listenerAgentID, belief, time.Now().UTC().Unix()); err != nil {
		return 0, false, apperr.Conflictf("social: %q has already heard rumor %q", listenerAgentID, rumorID)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE rumors SET spread_count = spread_count + 1 WHERE id = ?`, rumorID); err != nil {
		return 0, false, apperr.Integrityf(err, "social: increment spread count")
	}
	if err := tx.Commit(); err != nil {
		return 0, false, apperr.Integrityf(err, "social: commit spread tx")
	}
	return belief, false, nil
}

// RumorsAbout returns rumors concerning playerID, newest first.
func (l *Ledger) RumorsAbout(ctx context.Context, playerID string, limit int) ([]Rumor, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := l.store.DB().QueryContext(ctx,
		`SELECT id, about_player_id, text, truthfulness, spread_count, author_agent_id, created_at
		 FROM rumors WHERE about_player_id = ? ORDER BY created_at DESC LIMIT ?`, playerID, limit)
	if err != nil {
		return nil, apperr.Integrityf(err, "social: query rumors about")
	}
	defer rows.Close()
	var out []Rumor
	for rows.Next() {
		var r Rumor
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.AboutPlayerID, &r.Text, &r.Truthfulness, &r.SpreadCount, &r.AuthorAgentID, &createdAt); err != nil {
			return nil, apperr.Integrityf(err, "social: scan rumor")
		}
		r.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// HeardByAgent returns the rumors listenerAgentID has heard about playerID,
// with that agent's own belief value, for the Agent Runtime's context-load
// step (§4.5 step 1: "current rumors the agent has heard about this player").
func (l *Ledger) HeardByAgent(ctx context.Context, listenerAgentID, playerID string) ([]Rumor, error) {
	rows, err := l.store.DB().QueryContext(ctx,
		`SELECT r.id, r.about_player_id, r.text, r.truthfulness, r.spread_count, r.author_agent_id, r.created_at
		 FROM rumors r JOIN rumor_beliefs b ON b.rumor_id = r.id
		 WHERE b.listener_agent_id = ? AND r.about_player_id = ? ORDER BY r.created_at DESC`,
		listenerAgentID, playerID)
	if err != nil {
		return nil, apperr.Integrityf(err, "social: query heard rumors")
	}
	defer rows.Close()
	var out []Rumor
	for rows.Next() {
		var r Rumor
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.AboutPlayerID, &r.Text, &r.Truthfulness, &r.SpreadCount, &r.AuthorAgentID, &createdAt); err != nil {
			return nil, apperr.Integrityf(err, "social: scan heard rumor")
		}
		r.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
