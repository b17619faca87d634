// Package memory implements the Memory Vault (component B): episodic,
// social, and belief memories, plus the trait-drift ledger and its
// humanity-bounding soft clamp. Grounded on original_source's
// database/memory_vault.py (_sigmoid_clamp, save_memory, get_recent_memories,
// get_summary_beliefs, get_trait_history) and core/meta_mind.py
// (apply_trait_drift), persisted through pkg/store.
package memory

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/fracturedsurvival/npcruntime/internal/apperr"
	"github.com/fracturedsurvival/npcruntime/pkg/store"
)

// Kind is a memory's type (§3 Memory).
type Kind string

const (
	Episodic Kind = "episodic"
	Social   Kind = "social"
	Belief   Kind = "belief"
)

// Memory is a single stored recollection.
type Memory struct {
	ID        string
	AgentID   string
	Kind      Kind
	Content   string
	Strength  float64
	Timestamp time.Time
}

// TraitChange is one append to the trait-drift ledger (§4.2).
type TraitChange struct {
	ID             string
	AgentID        string
	Trait          string
	Delta          float64
	Reason         string
	ResultingValue float64
	Timestamp      time.Time
}

// Vault is the Memory Vault: the only component permitted to write memories
// or trait-ledger rows (§3 ownership).
type Vault struct {
	store *store.Store
}

// New wraps a Store with the Memory Vault API.
func New(s *store.Store) *Vault {
	return &Vault{store: s}
}

// StoreMemory appends an episodic/social/belief memory for agentID. Memories
// are append-only; nothing in this package mutates a memory's content once
// written.
func (v *Vault) StoreMemory(ctx context.Context, agentID string, kind Kind, content string, strength float64) (Memory, error) {
	if agentID == "" || content == "" {
		return Memory{}, apperr.InvalidArgumentf("memory: agent_id and content are required")
	}
	if strength < 0 || strength > 1 {
		return Memory{}, apperr.InvalidArgumentf("memory: strength must be in [0,1], got %v", strength)
	}
	m := Memory{
		ID:        "mem_" + uuid.NewString(),
		AgentID:   agentID,
		Kind:      kind,
		Content:   content,
		Strength:  strength,
		Timestamp: time.Now().UTC(),
	}
	_, err := v.store.DB().ExecContext(ctx,
		`INSERT INTO memories (id, agent_id, kind, content, strength, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.AgentID, string(m.Kind), m.Content, m.Strength, m.Timestamp.Unix())
	if err != nil {
		return Memory{}, apperr.Integrityf(err, "memory: insert memory")
	}
	return m, nil
}

// RecentMemories returns an agent's most recent memories of any kind, newest
// first, bounded by limit (original_source: get_recent_memories).
func (v *Vault) RecentMemories(ctx context.Context, agentID string, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := v.store.DB().QueryContext(ctx,
		`SELECT id, agent_id, kind, content, strength, created_at FROM memories
		 WHERE agent_id = ? ORDER BY created_at DESC LIMIT ?`, agentID, limit)
	if err != nil {
		return nil, apperr.Integrityf(err, "memory: query recent")
	}
	return scanMemories(rows)
}

// StoreBelief stores a belief memory with the given strength, the
// autonomous loop's reflection output (§4.5 / original_source
// autonomous_reflection, strength 0.7 by convention of the caller).
func (v *Vault) StoreBelief(ctx context.Context, agentID, belief string, strength float64) (Memory, error) {
	return v.StoreMemory(ctx, agentID, Belief, belief, strength)
}

// TopBeliefs returns an agent's highest-strength beliefs, bounded by limit
// (original_source: get_summary_beliefs).
func (v *Vault) TopBeliefs(ctx context.Context, agentID string, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := v.store.DB().QueryContext(ctx,
		`SELECT id, agent_id, kind, content, strength, created_at FROM memories
		 WHERE agent_id = ? AND kind = ? ORDER BY strength DESC LIMIT ?`, agentID, string(Belief), limit)
	if err != nil {
		return nil, apperr.Integrityf(err, "memory: query beliefs")
	}
	return scanMemories(rows)
}

func scanMemories(rows *sql.Rows) ([]Memory, error) {
	defer rows.Close()
	var out []Memory
	for rows.Next() {
		var m Memory
		var kind string
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.AgentID, &kind, &m.Content, &m.Strength, &createdAt); err != nil {
			return nil, apperr.Integrityf(err, "memory: scan")
		}
		m.Kind = Kind(kind)
		m.Timestamp = time.Unix(createdAt, 0).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// MaxTraitDelta bounds a single trait-ledger write (§4.2 drift policy:
// |delta| <= 0.1 per reactive cycle).
const MaxTraitDelta = 0.1

// sigmoidClamp implements §4.2's humanity bound:
//
//	clamped = 0.05 + 0.9 * sigmoid(10 * (raw - 0.5))
//
// which asymptotes to (0.05, 0.95) regardless of how long the event stream
// runs, matching original_source's _sigmoid_clamp.
func sigmoidClamp(raw float64) float64 {
	x := (raw - 0.5) * 10
	sigmoid := 1.0 / (1.0 + math.Exp(-x))
	// Rounding can push 0.05 + 0.9*1.0 one ulp past 0.95; keep the band closed.
	return math.Min(0.95, 0.05+0.9*sigmoid)
}

// AppendTraitChange appends a trait-ledger row and returns the soft-clamped
// resulting value (§4.2). current is the trait's value before this event;
// delta is the proposed signed change. Callers (pkg/cognition's drift
// policy) are responsible for bounding |delta| to MaxTraitDelta and for
// limiting this to at most one call per reactive cycle; AppendTraitChange
// itself does not enforce either, since replaying history (e.g. a backfill)
// legitimately needs to bypass the per-cycle limit.
func (v *Vault) AppendTraitChange(ctx context.Context, agentID, trait string, current, delta float64, reason string) (TraitChange, error) {
	if agentID == "" || trait == "" {
		return TraitChange{}, apperr.InvalidArgumentf("memory: agent_id and trait are required")
	}
	if reason == "" {
		return TraitChange{}, apperr.InvalidArgumentf("memory: trait change requires a reason")
	}
	clamped := sigmoidClamp(current + delta)
	tc := TraitChange{
		ID:             "trait_" + uuid.NewString(),
		AgentID:        agentID,
		Trait:          trait,
		Delta:          delta,
		Reason:         reason,
		ResultingValue: clamped,
		Timestamp:      time.Now().UTC(),
	}
	_, err := v.store.DB().ExecContext(ctx,
		`INSERT INTO trait_changes (id, agent_id, trait, delta, reason, resulting_value, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tc.ID, tc.AgentID, tc.Trait, tc.Delta, tc.Reason, tc.ResultingValue, tc.Timestamp.Unix())
	if err != nil {
		return TraitChange{}, apperr.Integrityf(err, "memory: insert trait change")
	}
	return tc, nil
}

// TraitHistory returns the most recent trait-ledger rows for (agentID,
// trait), newest first (original_source: get_trait_history).
func (v *Vault) TraitHistory(ctx context.Context, agentID, trait string, limit int) ([]TraitChange, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := v.store.DB().QueryContext(ctx,
		`SELECT id, agent_id, trait, delta, reason, resulting_value, created_at FROM trait_changes
		 WHERE agent_id = ? AND trait = ? ORDER BY created_at DESC LIMIT ?`, agentID, trait, limit)
	if err != nil {
		return nil, apperr.Integrityf(err, "memory: query trait history")
	}
	defer rows.Close()
	var out []TraitChange
	for rows.Next() {
		var tc TraitChange
		var createdAt int64
		if err := rows.Scan(&tc.ID, &tc.AgentID, &tc.Trait, &tc.Delta, &tc.Reason, &tc.ResultingValue, &createdAt); err != nil {
			return nil, apperr.Integrityf(err, "memory: scan trait change")
		}
		tc.Timestamp = time.Unix(createdAt, 0).UTC()
		out = append(out, tc)
	}
	return out, rows.Err()
}

// LatestTraitValue returns the most recent resulting_value for (agentID,
// trait), or falls back to 0.5 (the neutral default, matching
// persona.Personality.Get) if no ledger entry exists yet.
func (v *Vault) LatestTraitValue(ctx context.Context, agentID, trait string) (float64, error) {
	hist, err := v.TraitHistory(ctx, agentID, trait, 1)
	if err != nil {
		return 0, err
	}
	if len(hist) == 0 {
		return 0.5, nil
	}
	return hist[0].ResultingValue, nil
}
