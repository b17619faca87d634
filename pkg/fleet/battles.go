package fleet

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/fracturedsurvival/npcruntime/internal/apperr"
)

// TerritorialBattle status values (§4.7 TerritorialBattle).
const (
	BattleInProgress  = "in_progress"
	BattleAttackerWon = "attacker_won"
	BattleDefenderWon = "defender_won"
)

// Attacker/defender strength-roll bands: the defender rolls from a
// narrower, higher-centered band, modeling home-ground advantage (§4.7
// TerritorialBattle).
const (
	attackerRollMin = 0.6
	attackerRollMax = 1.4
	defenderRollMin = 0.9
	defenderRollMax = 1.5
)

// territoryResetStrength is the strength a territory is set to after it
// changes hands (§4.7 TerritorialBattle).
const territoryResetStrength = 0.6

// TerritorialBattle is a one-shot contest between two factions over a
// territory, resolved by comparing randomly rolled strength multipliers
// against the territory's current defensive strength (§4.7
// TerritorialBattle).
type TerritorialBattle struct {
	ID              string
	TerritoryID     string
	AttackerFaction string
	DefenderFaction string
	Status          string
	CreatedAt       time.Time
	ResolvedAt      *time.Time
}

// Territory is a contestable location with a controlling faction and
// defensive strength (§4.7 TerritorialBattle).
type Territory struct {
	ID                 string
	ControllingFaction string
	Strength           float64
}

// EnsureTerritory creates a territory row if it does not already exist.
func (c *Coordinator) EnsureTerritory(ctx context.Context, id, controllingFaction string, strength float64) error {
	_, err := c.store.DB().ExecContext(ctx,
		`INSERT INTO territories (id, controlling_faction, strength) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`, id, controllingFaction, strength)
	if err != nil {
		return apperr.Integrityf(err, "fleet: ensure territory")
	}
	return nil
}

func (c *Coordinator) getTerritory(ctx context.Context, id string) (Territory, error) {
	row := c.store.DB().QueryRowContext(ctx, `SELECT id, controlling_faction, strength FROM territories WHERE id = ?`, id)
	var t Territory
	if err := row.Scan(&t.ID, &t.ControllingFaction, &t.Strength); err != nil {
		return Territory{}, apperr.NotFoundf("fleet: territory %q not found", id)
	}
	return t, nil
}

// StartBattle opens a new in-progress battle for a territory. Attacking a
// territory the attacker's own faction already controls is a conflict, not
// a battle (§8 boundary behavior): no row is inserted in that case.
func (c *Coordinator) StartBattle(ctx context.Context, territoryID, attackerFaction, defenderFaction string) (TerritorialBattle, error) {
	territory, err := c.getTerritory(ctx, territoryID)
	if err != nil {
		return TerritorialBattle{}, err
	}
	if territory.ControllingFaction == attackerFaction {
		return TerritorialBattle{}, apperr.Conflictf("fleet: faction %q already controls territory %q", attackerFaction, territoryID)
	}

	b := TerritorialBattle{
		ID:              uuid.NewString(),
		TerritoryID:     territoryID,
		AttackerFaction: attackerFaction,
		DefenderFaction: defenderFaction,
		Status:          BattleInProgress,
		CreatedAt:       time.Now().UTC(),
	}
	_, err = c.store.DB().ExecContext(ctx,
		`INSERT INTO territorial_battles (id, territory_id, attacker_faction, defender_faction, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.TerritoryID, b.AttackerFaction, b.DefenderFaction, b.Status, b.CreatedAt.Unix())
	if err != nil {
		return TerritorialBattle{}, apperr.Integrityf(err, "fleet: start battle")
	}
	return b, nil
}

// ResolveBattle rolls attacker and defender strength multipliers and
// compares attackerRoll against defenderRoll*territory.Strength: if the
// attacker's roll wins, control transfers and the territory's strength
// resets to territoryResetStrength; otherwise the defender holds and
// strength is unchanged (§4.7 TerritorialBattle).
func (c *Coordinator) ResolveBattle(ctx context.Context, battleID string) (TerritorialBattle, error) {
	row := c.store.DB().QueryRowContext(ctx,
		`SELECT id, territory_id, attacker_faction, defender_faction, status, created_at FROM territorial_battles WHERE id = ?`, battleID)
	var b TerritorialBattle
	var created int64
	if err := row.Scan(&b.ID, &b.TerritoryID, &b.AttackerFaction, &b.DefenderFaction, &b.Status, &created); err != nil {
		return TerritorialBattle{}, apperr.NotFoundf("fleet: battle %q not found", battleID)
	}
	b.CreatedAt = time.Unix(created, 0).UTC()
	if b.Status != BattleInProgress {
		return b, apperr.InvalidArgumentf("fleet: battle %q already resolved", battleID)
	}

	territory, err := c.getTerritory(ctx, b.TerritoryID)
	if err != nil {
		return TerritorialBattle{}, err
	}

	attackerRoll := attackerRollMin + rand.Float64()*(attackerRollMax-attackerRollMin)
	defenderRoll := (defenderRollMin + rand.Float64()*(defenderRollMax-defenderRollMin)) * territory.Strength

	now := time.Now().UTC()
	b.ResolvedAt = &now

	if attackerRoll > defenderRoll {
		b.Status = BattleAttackerWon
		if _, err := c.store.DB().ExecContext(ctx, `UPDATE territories SET controlling_faction = ?, strength = ? WHERE id = ?`,
			b.AttackerFaction, territoryResetStrength, b.TerritoryID); err != nil {
			return TerritorialBattle{}, apperr.Integrityf(err, "fleet: transfer territory")
		}
	} else {
		b.Status = BattleDefenderWon
	}

	if _, err := c.store.DB().ExecContext(ctx, `UPDATE territorial_battles SET status = ?, resolved_at = ? WHERE id = ?`,
		b.Status, now.Unix(), battleID); err != nil {
		return TerritorialBattle{}, apperr.Integrityf(err, "fleet: record battle result")
	}

	c.publish(Event{Kind: EventBattleResolved, Subject: b.TerritoryID, Detail: b.Status, At: now})
	return b, nil
}
