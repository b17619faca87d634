package fleet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTradeRouteSuccessEarnsProfitMargin(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	r, err := c.OpenTradeRoute(ctx, "npc_a", "npc_b", 0.0, 0.5)
	require.NoError(t, err)

	res, err := c.RunTradeRoute(ctx, r.ID, 100)
	require.NoError(t, err)
	require.False(t, res.Disrupted)
	require.Equal(t, 50, res.GoldEarned)
}

func TestTradeRouteGuaranteedDisruption(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	r, err := c.OpenTradeRoute(ctx, "npc_a", "npc_b", 1.0, 0.5)
	require.NoError(t, err)

	res, err := c.RunTradeRoute(ctx, r.ID, 100)
	require.NoError(t, err)
	require.True(t, res.Disrupted)

	_, err = c.RunTradeRoute(ctx, r.ID, 100)
	require.Error(t, err)
}

func TestReopenTradeRouteRestoresActive(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	r, err := c.OpenTradeRoute(ctx, "npc_a", "npc_b", 1.0, 0.5)
	require.NoError(t, err)
	_, err = c.RunTradeRoute(ctx, r.ID, 100)
	require.NoError(t, err)

	require.NoError(t, c.ReopenTradeRoute(ctx, r.ID))
	res, err := c.RunTradeRoute(ctx, r.ID, 100)
	require.NoError(t, err)
	require.True(t, res.Disrupted)
}
