package fleet

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fracturedsurvival/npcruntime/internal/apperr"
)

// Quest status values (§4.7 Quest).
const (
	QuestAvailable = "available"
	QuestActive    = "active"
	QuestCompleted = "completed"
	QuestExpired   = "expired"
	QuestFailed    = "failed"
)

// Quest is a single-agent offer with an optional deadline and a reward
// bundle credited on completion (§4.7 Quest).
type Quest struct {
	ID               string
	AgentID          string
	PlayerID         string
	Title            string
	Description      string
	Status           string
	Deadline         *time.Time
	RewardGold       int
	RewardReputation float64
	RewardItem       string
	CreatedAt        time.Time
}

// CreateQuest inserts a new available quest offered by agentID. The quest
// has no deadline until AcceptQuest attaches one.
func (c *Coordinator) CreateQuest(ctx context.Context, agentID, playerID, title, description string, rewardGold int, rewardReputation float64, rewardItem string) (Quest, error) {
	q := Quest{
		ID:               uuid.NewString(),
		AgentID:          agentID,
		PlayerID:         playerID,
		Title:            title,
		Description:      description,
		Status:           QuestAvailable,
		RewardGold:       rewardGold,
		RewardReputation: rewardReputation,
		RewardItem:       rewardItem,
		CreatedAt:        time.Now().UTC(),
	}
	var deadline any
	_, err := c.store.DB().ExecContext(ctx,
		`INSERT INTO quests (id, agent_id, player_id, title, description, status, deadline, reward_gold, reward_reputation, reward_item, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.AgentID, nullableString(q.PlayerID), q.Title, q.Description, q.Status, deadline, q.RewardGold, q.RewardReputation, nullableString(q.RewardItem), q.CreatedAt.Unix())
	if err != nil {
		return Quest{}, apperr.Integrityf(err, "fleet: create quest")
	}
	return q, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// AcceptQuest moves an available quest to active, optionally attaching a
// deadline measured from now. A zero deadline attaches none; a negative one
// lies in the past.
func (c *Coordinator) AcceptQuest(ctx context.Context, questID string, deadline time.Duration) error {
	var dl any
	if deadline != 0 {
		dl = time.Now().Add(deadline).UTC().Unix()
	}
	res, err := c.store.DB().ExecContext(ctx,
		`UPDATE quests SET status = ?, deadline = ? WHERE id = ? AND status = ?`,
		QuestActive, dl, questID, QuestAvailable)
	if err != nil {
		return apperr.Integrityf(err, "fleet: accept quest")
	}
	return requireRowsAffected(res, "fleet: quest %q is not available", questID)
}

// CompleteQuest transitions an active quest to completed and credits its
// reward (gold and reputation against playerID, via Social).
func (c *Coordinator) CompleteQuest(ctx context.Context, questID string) (Quest, error) {
	q, err := c.getQuest(ctx, questID)
	if err != nil {
		return Quest{}, err
	}
	if q.Status != QuestActive {
		return Quest{}, apperr.InvalidArgumentf("fleet: quest %q is not active", questID)
	}
	if _, err := c.store.DB().ExecContext(ctx, `UPDATE quests SET status = ? WHERE id = ?`, QuestCompleted, questID); err != nil {
		return Quest{}, apperr.Integrityf(err, "fleet: complete quest")
	}
	if q.PlayerID != "" && c.social != nil && q.RewardReputation != 0 {
		if _, err := c.social.ApplyReputationDelta(ctx, q.PlayerID, q.AgentID, "quest_completed", q.Title, q.RewardReputation); err != nil {
			c.log.Warnw("fleet: quest reward reputation failed", "err", err)
		}
	}
	q.Status = QuestCompleted
	return q, nil
}

// FailQuest transitions an active quest to failed.
func (c *Coordinator) FailQuest(ctx context.Context, questID string) error {
	res, err := c.store.DB().ExecContext(ctx, `UPDATE quests SET status = ? WHERE id = ? AND status = ?`, QuestFailed, questID, QuestActive)
	if err != nil {
		return apperr.Integrityf(err, "fleet: fail quest")
	}
	return requireRowsAffected(res, "fleet: quest %q is not active", questID)
}

func (c *Coordinator) getQuest(ctx context.Context, questID string) (Quest, error) {
	row := c.store.DB().QueryRowContext(ctx,
		`SELECT id, agent_id, player_id, title, description, status, deadline, reward_gold, reward_reputation, reward_item, created_at
		 FROM quests WHERE id = ?`, questID)
	return scanQuest(row)
}

func scanQuest(row interface{ Scan(...any) error }) (Quest, error) {
	var q Quest
	var playerID, rewardItem *string
	var deadline *int64
	var created int64
	if err := row.Scan(&q.ID, &q.AgentID, &playerID, &q.Title, &q.Description, &q.Status, &deadline, &q.RewardGold, &q.RewardReputation, &rewardItem, &created); err != nil {
		return Quest{}, apperr.NotFoundf("fleet: quest not found")
	}
	if playerID != nil {
		q.PlayerID = *playerID
	}
	if rewardItem != nil {
		q.RewardItem = *rewardItem
	}
	if deadline != nil {
		t := time.Unix(*deadline, 0).UTC()
		q.Deadline = &t
	}
	q.CreatedAt = time.Unix(created, 0).UTC()
	return q, nil
}

// expireStaleQuests marks every active quest whose deadline has passed as
// expired (§4.7 Quest: active -> expired is not itself a named transition,
// but available/active quests past deadline must not remain actionable —
// modeled here as expiry same as the available -> expired edge).
func (c *Coordinator) expireStaleQuests(ctx context.Context) (int, error) {
	now := time.Now().UTC().Unix()
	res, err := c.store.DB().ExecContext(ctx,
		`UPDATE quests SET status = ? WHERE status IN (?, ?) AND deadline IS NOT NULL AND deadline < ?`,
		QuestExpired, QuestAvailable, QuestActive, now)
	if err != nil {
		return 0, apperr.Integrityf(err, "fleet: expire quests")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func requireRowsAffected(res interface {
	RowsAffected() (int64, error)
}, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Integrityf(err, "fleet: rows affected")
	}
	if n == 0 {
		return apperr.NotFoundf(format, args...)
	}
	return nil
}
