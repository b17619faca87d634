package fleet

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fracturedsurvival/npcruntime/internal/apperr"
)

// NPCGoal status values (§4.7 NPCGoal).
const (
	GoalActive    = "active"
	GoalCompleted = "completed"
	GoalAbandoned = "abandoned"
)

// NPCGoal is a long-running autonomous objective an agent pursues across
// many ticks, with monotonically non-decreasing progress and a fixed,
// ordered step list (§4.7 NPCGoal).
type NPCGoal struct {
	ID         string
	AgentID    string
	Title      string
	Progress   float64
	Steps      []string
	Status     string
	RewardGold int
	CreatedAt  time.Time
}

// CreateGoal inserts a new active goal for agentID.
func (c *Coordinator) CreateGoal(ctx context.Context, agentID, title string, steps []string, rewardGold int) (NPCGoal, error) {
	g := NPCGoal{
		ID:         uuid.NewString(),
		AgentID:    agentID,
		Title:      title,
		Steps:      steps,
		Status:     GoalActive,
		RewardGold: rewardGold,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := c.store.DB().ExecContext(ctx,
		`INSERT INTO npc_goals (id, agent_id, title, progress, steps, status, reward_gold, created_at)
		 VALUES (?, ?, ?, 0, ?, ?, ?, ?)`,
		g.ID, g.AgentID, g.Title, strings.Join(steps, ","), g.Status, g.RewardGold, g.CreatedAt.Unix())
	if err != nil {
		return NPCGoal{}, apperr.Integrityf(err, "fleet: create goal")
	}
	return g, nil
}

func (c *Coordinator) getGoal(ctx context.Context, id string) (NPCGoal, error) {
	row := c.store.DB().QueryRowContext(ctx,
		`SELECT id, agent_id, title, progress, steps, status, reward_gold, created_at FROM npc_goals WHERE id = ?`, id)
	var g NPCGoal
	var steps string
	var created int64
	if err := row.Scan(&g.ID, &g.AgentID, &g.Title, &g.Progress, &steps, &g.Status, &g.RewardGold, &created); err != nil {
		return NPCGoal{}, apperr.NotFoundf("fleet: goal %q not found", id)
	}
	if steps != "" {
		g.Steps = strings.Split(steps, ",")
	}
	g.CreatedAt = time.Unix(created, 0).UTC()
	return g, nil
}

// AdvanceGoal increments an active goal's progress by delta, clamped to
// [current, 1.0] so progress never decreases (§4.7 NPCGoal), and completes
// the goal once progress reaches 1.0. A non-positive delta is a no-op.
func (c *Coordinator) AdvanceGoal(ctx context.Context, id string, delta float64) (NPCGoal, error) {
	g, err := c.getGoal(ctx, id)
	if err != nil {
		return NPCGoal{}, err
	}
	if g.Status != GoalActive {
		return g, apperr.InvalidArgumentf("fleet: goal %q is not active", id)
	}
	if delta <= 0 {
		return g, nil
	}

	next := g.Progress + delta
	if next > 1.0 {
		next = 1.0
	}
	g.Progress = next
	if g.Progress >= 1.0 {
		g.Status = GoalCompleted
	}

	_, err = c.store.DB().ExecContext(ctx, `UPDATE npc_goals SET progress = ?, status = ? WHERE id = ?`, g.Progress, g.Status, id)
	if err != nil {
		return NPCGoal{}, apperr.Integrityf(err, "fleet: advance goal")
	}
	return g, nil
}

// AbandonGoal transitions an active goal to abandoned.
func (c *Coordinator) AbandonGoal(ctx context.Context, id string) error {
	res, err := c.store.DB().ExecContext(ctx, `UPDATE npc_goals SET status = ? WHERE id = ? AND status = ?`, GoalAbandoned, id, GoalActive)
	if err != nil {
		return apperr.Integrityf(err, "fleet: abandon goal")
	}
	return requireRowsAffected(res, "fleet: goal %q is not active", id)
}

// GoalsByAgent lists agentID's goals, optionally filtered to a single
// status (active/completed/abandoned); an empty status returns all of them.
func (c *Coordinator) GoalsByAgent(ctx context.Context, agentID, status string) ([]NPCGoal, error) {
	query := `SELECT id, agent_id, title, progress, steps, status, reward_gold, created_at FROM npc_goals WHERE agent_id = ?`
	args := []any{agentID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := c.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Integrityf(err, "fleet: list goals for %q", agentID)
	}
	defer rows.Close()

	var out []NPCGoal
	for rows.Next() {
		var g NPCGoal
		var steps string
		var created int64
		if err := rows.Scan(&g.ID, &g.AgentID, &g.Title, &g.Progress, &steps, &g.Status, &g.RewardGold, &created); err != nil {
			return nil, apperr.Integrityf(err, "fleet: scan goal")
		}
		if steps != "" {
			g.Steps = strings.Split(steps, ",")
		}
		g.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, g)
	}
	return out, rows.Err()
}

// CurrentStep returns the step the goal's progress currently falls into,
// dividing [0,1) evenly across Steps.
func (g NPCGoal) CurrentStep() string {
	if len(g.Steps) == 0 {
		return ""
	}
	idx := int(g.Progress * float64(len(g.Steps)))
	if idx >= len(g.Steps) {
		idx = len(g.Steps) - 1
	}
	return g.Steps[idx]
}
