// Package topic implements Topic Memory (component C): keyword-classified
// conversation topics with reinforcement, time-decay, and cross-agent
// sharing (§4.3). Category keyword sets and base weights are this
// expansion's own addition — original_source's distilled files do not
// include a topic-memory module, so the extraction heuristic below is a
// design decision recorded in DESIGN.md rather than a ported one.
package topic

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fracturedsurvival/npcruntime/internal/apperr"
	"github.com/fracturedsurvival/npcruntime/pkg/store"
)

// Category is one of the nine topic classifications (§3 Topic).
type Category string

const (
	CategoryFamily     Category = "family"
	CategoryGoal       Category = "goal"
	CategoryFear       Category = "fear"
	CategoryEvent      Category = "event"
	CategoryPreference Category = "preference"
	CategorySecret     Category = "secret"
	CategoryOrigin     Category = "origin"
	CategoryProfession Category = "profession"
	CategoryCrime      Category = "crime"
)

// keywordSets and baseWeights classify a raw message into candidate topics.
// Secrets and crimes start from a higher base weight since they carry more
// emotional charge per mention than, say, a stated preference.
var keywordSets = map[Category][]string{
	CategoryFamily:     {"mother", "father", "sister", "brother", "son", "daughter", "family", "parents", "wife", "husband"},
	CategoryGoal:       {"want to", "dream", "hope to", "plan to", "someday", "goal", "ambition"},
	CategoryFear:       {"afraid", "scared", "terrified", "fear", "nightmare", "dread"},
	CategoryEvent:      {"happened", "attacked", "raid", "storm", "fire", "earthquake", "war", "battle"},
	CategoryPreference: {"like", "love", "favorite", "enjoy", "prefer", "hate", "dislike"},
	CategorySecret:     {"secret", "don't tell", "between us", "promise not to", "confidential"},
	CategoryOrigin:     {"born in", "grew up", "came from", "homeland", "originally from"},
	CategoryProfession: {"trade", "profession", "craft", "work as", "apprentice", "guild"},
	CategoryCrime:      {"stole", "killed", "murdered", "smuggled", "betrayed", "lied"},
}

var baseWeights = map[Category]float64{
	CategoryFamily:     0.5,
	CategoryGoal:       0.4,
	CategoryFear:       0.6,
	CategoryEvent:      0.5,
	CategoryPreference: 0.3,
	CategorySecret:     0.8,
	CategoryOrigin:     0.4,
	CategoryProfession: 0.35,
	CategoryCrime:      0.85,
}

// StrengthFloor excludes topics below this strength from retrieval (§4.3).
const StrengthFloor = 0.2

// CleanupThreshold is the default strength below which a topic is
// permanently removed (§4.3, §8 scenario 4).
const CleanupThreshold = 0.1

// Topic is a remembered conversation theme (§3 Topic).
type Topic struct {
	ID               string
	PlayerID         string
	AgentID          string
	Category         Category
	Content          string
	EmotionalWeight  float64
	Keywords         []string
	CreatedAt        time.Time
	ReferenceCount   int
	Strength         float64
	DecayRate        float64
	LastReinforcedAt time.Time
}

// Clarity buckets a topic's retrievability for dialogue generation (§4.3).
type Clarity string

const (
	ClarityVivid Clarity = "vivid"
	ClarityClear Clarity = "clear"
	ClarityVague Clarity = "vague"
)

// ClarityOf derives the clarity bucket from a strength value.
func ClarityOf(strength float64) Clarity {
	switch {
	case strength > 0.8:
		return ClarityVivid
	case strength > 0.5:
		return ClarityClear
	case strength > 0.2:
		return ClarityVague
	default:
		return ""
	}
}

// SharedMemory is a topic re-told from one agent to another (§4.3
// cross-agent sharing).
type SharedMemory struct {
	ID            string
	SourceTopicID string
	FromAgentID   string
	ToAgentID     string
	PlayerID      string
	Category      Category
	Content       string
	Weight        float64
	TrustFactor   float64
	Strength      float64
	CreatedAt     time.Time
}

// Vault owns every Topic and SharedMemory row (§3 ownership).
type Vault struct {
	store *store.Store
}

// New wraps a Store with the Topic Memory API.
func New(s *store.Store) *Vault {
	return &Vault{store: s}
}

// candidate is one category that matched during extraction, with the
// keywords that matched.
type candidate struct {
	category Category
	matched  []string
}

// classify scans message for each category's keyword set, case-insensitively.
func classify(message string) []candidate {
	lower := strings.ToLower(message)
	var out []candidate
	for _, cat := range []Category{CategoryFamily, CategoryGoal, CategoryFear, CategoryEvent, CategoryPreference, CategorySecret, CategoryOrigin, CategoryProfession, CategoryCrime} {
		var matched []string
		for _, kw := range keywordSets[cat] {
			if strings.Contains(lower, kw) {
				matched = append(matched, kw)
			}
		}
		if len(matched) > 0 {
			out = append(out, candidate{category: cat, matched: matched})
		}
	}
	return out
}

// ExtractAndStore scans message for topic categories and stores (or
// reinforces) a Topic for each category matched, per §4.3 Extraction.
func (v *Vault) ExtractAndStore(ctx context.Context, playerID, agentID, message string) ([]Topic, error) {
	if playerID == "" || agentID == "" {
		return nil, apperr.InvalidArgumentf("topic: player_id and agent_id are required")
	}
	cands := classify(message)
	out := make([]Topic, 0, len(cands))
	for _, c := range cands {
		weight := math.Min(1.0, baseWeights[c.category]+0.05*float64(len(c.matched)-1))
		decayRate := math.Max(0.02, 0.08-0.05*weight)
		t, err := v.upsertTopic(ctx, playerID, agentID, c.category, message, weight, decayRate, c.matched)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// upsertTopic inserts a new topic, or reinforces an existing one that
// collides on (player, agent, category, content), per §4.3's "collisions
// reinforce instead of duplicating."
func (v *Vault) upsertTopic(ctx context.Context, playerID, agentID string, cat Category, content string, weight, decayRate float64, keywords []string) (Topic, error) {
	now := time.Now().UTC()
	t := Topic{
		ID:               "topic_" + uuid.NewString(),
		PlayerID:         playerID,
		AgentID:          agentID,
		Category:         cat,
		Content:          content,
		EmotionalWeight:  weight,
		Keywords:         keywords,
		CreatedAt:        now,
		ReferenceCount:   1,
		Strength:         1.0,
		DecayRate:        decayRate,
		LastReinforcedAt: now,
	}
	_, err := v.store.DB().ExecContext(ctx,
		`INSERT INTO topics (id, player_id, agent_id, category, content, emotional_weight, keywords, created_at, reference_count, strength, decay_rate, last_reinforced_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(agent_id, player_id, category, content) DO UPDATE SET
		   strength = 1.0,
		   reference_count = reference_count + 1,
		   last_reinforced_at = excluded.last_reinforced_at`,
		t.ID, t.PlayerID, t.AgentID, string(t.Category), t.Content, t.EmotionalWeight, strings.Join(t.Keywords, ","),
		t.CreatedAt.Unix(), t.ReferenceCount, t.Strength, t.DecayRate, t.LastReinforcedAt.Unix())
	if err != nil {
		return Topic{}, apperr.Integrityf(err, "topic: upsert")
	}
	row := v.store.DB().QueryRowContext(ctx,
		`SELECT id, player_id, agent_id, category, content, emotional_weight, keywords, created_at, reference_count, strength, decay_rate, last_reinforced_at
		 FROM topics WHERE agent_id = ? AND player_id = ? AND category = ? AND content = ?`,
		agentID, playerID, string(cat), content)
	got, err := scanTopicRow(row)
	if err != nil {
		return Topic{}, apperr.Integrityf(err, "topic: read back after upsert")
	}
	return got, nil
}

func scanTopicRow(row interface{ Scan(...any) error }) (Topic, error) {
	var t Topic
	var cat, keywords string
	var createdAt, lastReinforced int64
	if err := row.Scan(&t.ID, &t.PlayerID, &t.AgentID, &cat, &t.Content, &t.EmotionalWeight, &keywords,
		&createdAt, &t.ReferenceCount, &t.Strength, &t.DecayRate, &lastReinforced); err != nil {
		return Topic{}, err
	}
	t.Category = Category(cat)
	if keywords != "" {
		t.Keywords = strings.Split(keywords, ",")
	}
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.LastReinforcedAt = time.Unix(lastReinforced, 0).UTC()
	return t, nil
}

// Scored pairs a Topic with its retrieval score and derived clarity.
type Scored struct {
	Topic
	Score   float64
	Clarity Clarity
}

// Retrieve scores every stored topic for (agentID, playerID) against
// message, drops those below StrengthFloor, and returns the top limit,
// highest score first (§4.3 Retrieval).
func (v *Vault) Retrieve(ctx context.Context, agentID, playerID, message string, limit int) ([]Scored, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := v.store.DB().QueryContext(ctx,
		`SELECT id, player_id, agent_id, category, content, emotional_weight, keywords, created_at, reference_count, strength, decay_rate, last_reinforced_at
		 FROM topics WHERE agent_id = ? AND player_id = ?`, agentID, playerID)
	if err != nil {
		return nil, apperr.Integrityf(err, "topic: query for retrieval")
	}
	defer rows.Close()

	lowerMsg := strings.ToLower(message)
	var scored []Scored
	for rows.Next() {
		t, err := scanTopicRow(rows)
		if err != nil {
			return nil, apperr.Integrityf(err, "topic: scan")
		}
		overlap := keywordOverlap(lowerMsg, t.Keywords)
		score := overlap*0.3 + t.Strength*0.5 + t.EmotionalWeight*0.3
		if t.EmotionalWeight >= 0.8 {
			score += t.EmotionalWeight * 0.3
		}
		if t.Strength < StrengthFloor {
			continue
		}
		scored = append(scored, Scored{Topic: t, Score: score, Clarity: ClarityOf(t.Strength)})
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Integrityf(err, "topic: scan rows")
	}

	sortScoredDesc(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func keywordOverlap(lowerMessage string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lowerMessage, kw) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}

func sortScoredDesc(s []Scored) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].Score > s[j-1].Score; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// Reinforce marks a topic as referenced in dialogue: strength resets to 1,
// reference count increments, last-reinforced advances (§4.3 Reinforcement).
func (v *Vault) Reinforce(ctx context.Context, topicID string) error {
	res, err := v.store.DB().ExecContext(ctx,
		`UPDATE topics SET strength = 1.0, reference_count = reference_count + 1, last_reinforced_at = ? WHERE id = ?`,
		time.Now().UTC().Unix(), topicID)
	if err != nil {
		return apperr.Integrityf(err, "topic: reinforce")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Integrityf(err, "topic: reinforce rows affected")
	}
	if n == 0 {
		return apperr.NotFoundf("topic: no topic %q", topicID)
	}
	return nil
}

// MassReinforceByKeyword reinforces every stored topic for (agentID,
// playerID) whose keyword set overlaps message, for a newly arrived player
// message (§4.3).
func (v *Vault) MassReinforceByKeyword(ctx context.Context, agentID, playerID, message string) (int, error) {
	rows, err := v.store.DB().QueryContext(ctx,
		`SELECT id, keywords FROM topics WHERE agent_id = ? AND player_id = ?`, agentID, playerID)
	if err != nil {
		return 0, apperr.Integrityf(err, "topic: query for mass reinforce")
	}
	type hit struct{ id string }
	var hits []hit
	lower := strings.ToLower(message)
	for rows.Next() {
		var id, keywords string
		if err := rows.Scan(&id, &keywords); err != nil {
			rows.Close()
			return 0, apperr.Integrityf(err, "topic: scan for mass reinforce")
		}
		for _, kw := range strings.Split(keywords, ",") {
			if kw != "" && strings.Contains(lower, kw) {
				hits = append(hits, hit{id: id})
				break
			}
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, apperr.Integrityf(err, "topic: mass reinforce rows")
	}
	for _, h := range hits {
		if err := v.Reinforce(ctx, h.id); err != nil {
			return 0, err
		}
	}
	return len(hits), nil
}

// Decay applies §4.3's periodic decay to every topic and shared memory,
// given h hours elapsed since the last decay pass, then permanently removes
// rows whose strength has fallen below threshold (CleanupThreshold if <= 0).
func (v *Vault) Decay(ctx context.Context, h float64, threshold float64) (removed int, err error) {
	if threshold <= 0 {
		threshold = CleanupThreshold
	}
	tx, err := v.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, apperr.Integrityf(err, "topic: begin decay tx")
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id, strength, decay_rate, emotional_weight FROM topics`)
	if err != nil {
		return 0, apperr.Integrityf(err, "topic: query for decay")
	}
	type delta struct {
		id       string
		strength float64
	}
	var deltas []delta
	for rows.Next() {
		var id string
		var strength, decayRate, weight float64
		if err := rows.Scan(&id, &strength, &decayRate, &weight); err != nil {
			rows.Close()
			return 0, apperr.Integrityf(err, "topic: scan for decay")
		}
		next := math.Max(0, strength-decayRate*(h/24.0)*(1.1-weight))
		deltas = append(deltas, delta{id: id, strength: next})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, apperr.Integrityf(err, "topic: decay rows")
	}
	for _, d := range deltas {
		if _, err := tx.ExecContext(ctx, `UPDATE topics SET strength = ? WHERE id = ?`, d.strength, d.id); err != nil {
			return 0, apperr.Integrityf(err, "topic: apply decay")
		}
	}

	const sharedDecayPerDay = 0.08
	sharedRows, err := tx.QueryContext(ctx, `SELECT id, strength FROM shared_memories`)
	if err != nil {
		return 0, apperr.Integrityf(err, "topic: query shared for decay")
	}
	var sharedDeltas []delta
	for sharedRows.Next() {
		var id string
		var strength float64
		if err := sharedRows.Scan(&id, &strength); err != nil {
			sharedRows.Close()
			return 0, apperr.Integrityf(err, "topic: scan shared for decay")
		}
		next := math.Max(0, strength-sharedDecayPerDay*(h/24.0))
		sharedDeltas = append(sharedDeltas, delta{id: id, strength: next})
	}
	sharedRows.Close()
	if err := sharedRows.Err(); err != nil {
		return 0, apperr.Integrityf(err, "topic: shared decay rows")
	}
	for _, d := range sharedDeltas {
		if _, err := tx.ExecContext(ctx, `UPDATE shared_memories SET strength = ? WHERE id = ?`, d.strength, d.id); err != nil {
			return 0, apperr.Integrityf(err, "topic: apply shared decay")
		}
	}

	res1, err := tx.ExecContext(ctx, `DELETE FROM topics WHERE strength < ?`, threshold)
	if err != nil {
		return 0, apperr.Integrityf(err, "topic: cleanup topics")
	}
	n1, _ := res1.RowsAffected()
	res2, err := tx.ExecContext(ctx, `DELETE FROM shared_memories WHERE strength < ?`, threshold)
	if err != nil {
		return 0, apperr.Integrityf(err, "topic: cleanup shared memories")
	}
	n2, _ := res2.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, apperr.Integrityf(err, "topic: commit decay")
	}
	return int(n1 + n2), nil
}

// TopWeighted returns an agent's highest-emotional-weight topics about
// playerID, for proposing as shares (§4.3 cross-agent sharing).
func (v *Vault) TopWeighted(ctx context.Context, agentID, playerID string, limit int) ([]Topic, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := v.store.DB().QueryContext(ctx,
		`SELECT id, player_id, agent_id, category, content, emotional_weight, keywords, created_at, reference_count, strength, decay_rate, last_reinforced_at
		 FROM topics WHERE agent_id = ? AND player_id = ? ORDER BY emotional_weight DESC LIMIT ?`, agentID, playerID, limit)
	if err != nil {
		return nil, apperr.Integrityf(err, "topic: query top weighted")
	}
	defer rows.Close()
	var out []Topic
	for rows.Next() {
		t, err := scanTopicRow(rows)
		if err != nil {
			return nil, apperr.Integrityf(err, "topic: scan top weighted")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TopWeightedAny is TopWeighted without a player filter, for callers (the
// fleet's gossip step) that want an agent's highest-weight topic regardless
// of which player it concerns.
func (v *Vault) TopWeightedAny(ctx context.Context, agentID string, limit int) ([]Topic, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := v.store.DB().QueryContext(ctx,
		`SELECT id, player_id, agent_id, category, content, emotional_weight, keywords, created_at, reference_count, strength, decay_rate, last_reinforced_at
		 FROM topics WHERE agent_id = ? ORDER BY emotional_weight DESC LIMIT ?`, agentID, limit)
	if err != nil {
		return nil, apperr.Integrityf(err, "topic: query top weighted any")
	}
	defer rows.Close()
	var out []Topic
	for rows.Next() {
		t, err := scanTopicRow(rows)
		if err != nil {
			return nil, apperr.Integrityf(err, "topic: scan top weighted any")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Share proposes sharing topicID from fromAgentID to toAgentID, gated by the
// sharer's relation to the listener (§4.3 Cross-agent sharing). relation
// must be >= 0.5 or sharing is refused outright; otherwise the share is
// accepted with probability proportional to relation. Duplicate shares
// (already shared to toAgentID from this source topic) are rejected by the
// schema's unique constraint.
func (v *Vault) Share(ctx context.Context, topicID, fromAgentID, toAgentID string, relation float64) (*SharedMemory, error) {
	if relation < 0.5 {
		return nil, nil
	}
	if rand.Float64() > relation {
		return nil, nil
	}

	row := v.store.DB().QueryRowContext(ctx,
		`SELECT id, player_id, agent_id, category, content, emotional_weight, keywords, created_at, reference_count, strength, decay_rate, last_reinforced_at
		 FROM topics WHERE id = ?`, topicID)
	src, err := scanTopicRow(row)
	if err != nil {
		return nil, apperr.NotFoundf("topic: no topic %q", topicID)
	}

	sm := SharedMemory{
		ID:            "shared_" + uuid.NewString(),
		SourceTopicID: src.ID,
		FromAgentID:   fromAgentID,
		ToAgentID:     toAgentID,
		PlayerID:      src.PlayerID,
		Category:      src.Category,
		Content:       src.Content,
		Weight:        src.EmotionalWeight * 0.8,
		TrustFactor:   0.7,
		Strength:      1.0,
		CreatedAt:     time.Now().UTC(),
	}
	_, err = v.store.DB().ExecContext(ctx,
		`INSERT INTO shared_memories (id, source_topic_id, from_agent_id, to_agent_id, player_id, category, content, weight, trust_factor, strength, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sm.ID, sm.SourceTopicID, sm.FromAgentID, sm.ToAgentID, sm.PlayerID, string(sm.Category), sm.Content,
		sm.Weight, sm.TrustFactor, sm.Strength, sm.CreatedAt.Unix())
	if err != nil {
		// UNIQUE(to_agent_id, source_topic_id) rejects a duplicate share.
		return nil, apperr.Conflictf("topic: share %q -> %q already exists", topicID, toAgentID)
	}
	return &sm, nil
}

// SharedAbout returns shared memories agentID holds about playerID, for the
// Agent Runtime's context-loading step (§4.5 step 1).
func (v *Vault) SharedAbout(ctx context.Context, agentID, playerID string, limit int) ([]SharedMemory, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := v.store.DB().QueryContext(ctx,
		`SELECT id, source_topic_id, from_agent_id, to_agent_id, player_id, category, content, weight, trust_factor, strength, created_at
		 FROM shared_memories WHERE to_agent_id = ? AND player_id = ? ORDER BY created_at DESC LIMIT ?`, agentID, playerID, limit)
	if err != nil {
		return nil, apperr.Integrityf(err, "topic: query shared about")
	}
	defer rows.Close()
	var out []SharedMemory
	for rows.Next() {
		var sm SharedMemory
		var cat string
		var createdAt int64
		if err := rows.Scan(&sm.ID, &sm.SourceTopicID, &sm.FromAgentID, &sm.ToAgentID, &sm.PlayerID, &cat, &sm.Content,
			&sm.Weight, &sm.TrustFactor, &sm.Strength, &createdAt); err != nil {
			return nil, apperr.Integrityf(err, "topic: scan shared about")
		}
		sm.Category = Category(cat)
		sm.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, sm)
	}
	return out, rows.Err()
}
