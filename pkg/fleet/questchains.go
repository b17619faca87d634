package fleet

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fracturedsurvival/npcruntime/internal/apperr"
)

// QuestChain status values (§4.7 QuestChain).
const (
	ChainAvailable  = "available"
	ChainInProgress = "in_progress"
	ChainCompleted  = "completed"
)

// QuestChain is an ordered sequence of steps advanced one at a time by an
// external cursor (§4.7 QuestChain).
type QuestChain struct {
	ID        string
	Title     string
	Steps     []string
	Cursor    int
	Status    string
	CreatedAt time.Time
}

// CreateQuestChain inserts a new available chain with the given ordered
// steps.
func (c *Coordinator) CreateQuestChain(ctx context.Context, title string, steps []string) (QuestChain, error) {
	qc := QuestChain{
		ID:        uuid.NewString(),
		Title:     title,
		Steps:     steps,
		Status:    ChainAvailable,
		CreatedAt: time.Now().UTC(),
	}
	_, err := c.store.DB().ExecContext(ctx,
		`INSERT INTO quest_chains (id, title, steps, cursor, status, created_at) VALUES (?, ?, ?, 0, ?, ?)`,
		qc.ID, qc.Title, strings.Join(steps, ","), qc.Status, qc.CreatedAt.Unix())
	if err != nil {
		return QuestChain{}, apperr.Integrityf(err, "fleet: create quest chain")
	}
	return qc, nil
}

func (c *Coordinator) getQuestChain(ctx context.Context, id string) (QuestChain, error) {
	row := c.store.DB().QueryRowContext(ctx, `SELECT id, title, steps, cursor, status, created_at FROM quest_chains WHERE id = ?`, id)
	var qc QuestChain
	var steps string
	var created int64
	if err := row.Scan(&qc.ID, &qc.Title, &steps, &qc.Cursor, &qc.Status, &created); err != nil {
		return QuestChain{}, apperr.NotFoundf("fleet: quest chain %q not found", id)
	}
	if steps != "" {
		qc.Steps = strings.Split(steps, ",")
	}
	qc.CreatedAt = time.Unix(created, 0).UTC()
	return qc, nil
}

// AdvanceQuestChain moves the chain's cursor to its next step, starting it
// (available -> in_progress) on the first advance and completing it
// (-> completed) once the cursor runs past the last step (§4.7 QuestChain).
func (c *Coordinator) AdvanceQuestChain(ctx context.Context, id string) (QuestChain, error) {
	qc, err := c.getQuestChain(ctx, id)
	if err != nil {
		return QuestChain{}, err
	}
	if qc.Status == ChainCompleted {
		return qc, apperr.InvalidArgumentf("fleet: quest chain %q already completed", id)
	}

	qc.Cursor++
	qc.Status = ChainInProgress
	if qc.Cursor >= len(qc.Steps) {
		qc.Status = ChainCompleted
	}

	_, err = c.store.DB().ExecContext(ctx, `UPDATE quest_chains SET cursor = ?, status = ? WHERE id = ?`, qc.Cursor, qc.Status, id)
	if err != nil {
		return QuestChain{}, apperr.Integrityf(err, "fleet: advance quest chain")
	}
	return qc, nil
}

// CurrentStep returns the step identifier the chain's cursor currently
// points at, or "" if the chain has not started or has completed.
func (qc QuestChain) CurrentStep() string {
	if qc.Status == ChainCompleted || qc.Cursor <= 0 || qc.Cursor > len(qc.Steps) {
		return ""
	}
	return qc.Steps[qc.Cursor-1]
}
