package fleet

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/fracturedsurvival/npcruntime/internal/apperr"
)

// TradeRoute status values (§4.7 TradeRoute).
const (
	RouteActive     = "active"
	RouteDisrupted  = "disrupted"
)

// TradeRoute is a standing agent-to-agent trade lane with a per-run risk of
// disruption and a profit margin applied on success (§4.7 TradeRoute).
type TradeRoute struct {
	ID           string
	FromAgentID  string
	ToAgentID    string
	RiskLevel    float64
	ProfitMargin float64
	Status       string
	TradeCount   int
	CreatedAt    time.Time
}

// OpenTradeRoute inserts a new active route between two agents.
func (c *Coordinator) OpenTradeRoute(ctx context.Context, fromAgentID, toAgentID string, riskLevel, profitMargin float64) (TradeRoute, error) {
	r := TradeRoute{
		ID:           uuid.NewString(),
		FromAgentID:  fromAgentID,
		ToAgentID:    toAgentID,
		RiskLevel:    riskLevel,
		ProfitMargin: profitMargin,
		Status:       RouteActive,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := c.store.DB().ExecContext(ctx,
		`INSERT INTO trade_routes (id, from_agent_id, to_agent_id, risk_level, profit_margin, status, trade_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		r.ID, r.FromAgentID, r.ToAgentID, r.RiskLevel, r.ProfitMargin, r.Status, r.CreatedAt.Unix())
	if err != nil {
		return TradeRoute{}, apperr.Integrityf(err, "fleet: open trade route")
	}
	return r, nil
}

// RunTradeResult is the outcome of one RunTradeRoute call.
type RunTradeResult struct {
	Disrupted bool
	GoldEarned int
}

// RunTradeRoute executes one trade along the route: rolls risk_level for disruption
// (active -> disrupted); on success increments trade_count and returns gold
// proportional to baseGold*profit_margin (§4.7 TradeRoute).
func (c *Coordinator) RunTradeRoute(ctx context.Context, routeID string, baseGold int) (RunTradeResult, error) {
	r, err := c.getTradeRoute(ctx, routeID)
	if err != nil {
		return RunTradeResult{}, err
	}
	if r.Status != RouteActive {
		return RunTradeResult{}, apperr.InvalidArgumentf("fleet: trade route %q is not active", routeID)
	}

	if rand.Float64() < r.RiskLevel {
		if _, err := c.store.DB().ExecContext(ctx, `UPDATE trade_routes SET status = ? WHERE id = ?`, RouteDisrupted, routeID); err != nil {
			return RunTradeResult{}, apperr.Integrityf(err, "fleet: disrupt trade route")
		}
		return RunTradeResult{Disrupted: true}, nil
	}

	earned := int(float64(baseGold) * r.ProfitMargin)
	if _, err := c.store.DB().ExecContext(ctx, `UPDATE trade_routes SET trade_count = trade_count + 1 WHERE id = ?`, routeID); err != nil {
		return RunTradeResult{}, apperr.Integrityf(err, "fleet: record trade run")
	}
	return RunTradeResult{GoldEarned: earned}, nil
}

// ReopenTradeRoute restores a disrupted route to active, e.g. after a
// player escort quest clears the danger.
func (c *Coordinator) ReopenTradeRoute(ctx context.Context, routeID string) error {
	res, err := c.store.DB().ExecContext(ctx, `UPDATE trade_routes SET status = ? WHERE id = ? AND status = ?`, RouteActive, routeID, RouteDisrupted)
	if err != nil {
		return apperr.Integrityf(err, "fleet: reopen trade route")
	}
	return requireRowsAffected(res, "fleet: trade route %q is not disrupted", routeID)
}

func (c *Coordinator) getTradeRoute(ctx context.Context, id string) (TradeRoute, error) {
	row := c.store.DB().QueryRowContext(ctx,
		`SELECT id, from_agent_id, to_agent_id, risk_level, profit_margin, status, trade_count, created_at FROM trade_routes WHERE id = ?`, id)
	var r TradeRoute
	var created int64
	if err := row.Scan(&r.ID, &r.FromAgentID, &r.ToAgentID, &r.RiskLevel, &r.ProfitMargin, &r.Status, &r.TradeCount, &created); err != nil {
		return TradeRoute{}, apperr.NotFoundf("fleet: trade route %q not found", id)
	}
	r.CreatedAt = time.Unix(created, 0).UTC()
	return r, nil
}
