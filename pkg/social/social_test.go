package social

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fracturedsurvival/npcruntime/pkg/store"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	s, err := store.Open(store.Options{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s)
}

func TestEnsurePlayerCreatesOnFirstReference(t *testing.T) {
	l := newTestLedger(t)
	p, err := l.EnsurePlayer(context.Background(), "player_1", "Aria")
	require.NoError(t, err)
	require.Equal(t, "player_1", p.ID)
	require.Equal(t, 0, p.InteractionCount)
}

func TestApplyReputationDeltaClampsToBounds(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_, err := l.ApplyReputationDelta(ctx, "player_1", "npc_1", "help", "thanks", 0.3)
		require.NoError(t, err)
	}
	edge, err := l.GetReputation(ctx, "player_1", "npc_1")
	require.NoError(t, err)
	require.LessOrEqual(t, edge.Reputation, 1.0)

	for i := 0; i < 20; i++ {
		_, err := l.ApplyReputationDelta(ctx, "player_1", "npc_1", "betray", "anger", -0.3)
		require.NoError(t, err)
	}
	edge, err = l.GetReputation(ctx, "player_1", "npc_1")
	require.NoError(t, err)
	require.GreaterOrEqual(t, edge.Reputation, -1.0)
}

func TestGlobalReputationIsMeanOfEdges(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.ApplyReputationDelta(ctx, "player_1", "npc_1", "help", "thanks", 0.6)
	require.NoError(t, err)
	_, err = l.ApplyReputationDelta(ctx, "player_1", "npc_2", "help", "thanks", 0.2)
	require.NoError(t, err)

	p, err := l.GetPlayer(ctx, "player_1")
	require.NoError(t, err)
	require.InDelta(t, 0.4, p.GlobalReputation, 1e-9)
	require.Equal(t, 2, p.InteractionCount)
}

func TestApplyReputationDeltaAppendsActionLog(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.ApplyReputationDelta(ctx, "player_1", "npc_1", "help", "thanks", 0.3)
	require.NoError(t, err)

	row := l.store.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM action_log WHERE player_id = ?`, "player_1")
	var n int
	require.NoError(t, row.Scan(&n))
	require.Equal(t, 1, n)
}

func TestMaybeAuthorRumorRespectsProbability(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	authored := 0
	for i := 0; i < 200; i++ {
		r, err := l.MaybeAuthorRumor(ctx, "npc_1", "player_1", "positive")
		require.NoError(t, err)
		if r != nil {
			authored++
			require.GreaterOrEqual(t, r.Truthfulness, 0.7)
			require.LessOrEqual(t, r.Truthfulness, 1.0)
		}
	}
	require.Greater(t, authored, 0)
	require.Less(t, authored, 200)
}

func TestSpreadRumorIsIdempotent(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	var rumor *Rumor
	for rumor == nil {
		r, err := l.MaybeAuthorRumor(ctx, "npc_1", "player_1", "negative")
		require.NoError(t, err)
		rumor = r
	}

	belief1, already1, err := l.SpreadRumor(ctx, rumor.ID, "npc_2")
	require.NoError(t, err)
	require.False(t, already1)
	require.GreaterOrEqual(t, belief1, 0.5)
	require.LessOrEqual(t, belief1, 0.9)

	belief2, already2, err := l.SpreadRumor(ctx, rumor.ID, "npc_2")
	require.NoError(t, err)
	require.True(t, already2)
	require.Equal(t, belief1, belief2)

	rumors, err := l.RumorsAbout(ctx, "player_1", 10)
	require.NoError(t, err)
	require.Len(t, rumors, 1)
	require.Equal(t, 1, rumors[0].SpreadCount)
}

func TestHeardByAgentReturnsOnlyListenedRumors(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	var rumor *Rumor
	for rumor == nil {
		r, err := l.MaybeAuthorRumor(ctx, "npc_1", "player_1", "neutral")
		require.NoError(t, err)
		rumor = r
	}
	_, _, err := l.SpreadRumor(ctx, rumor.ID, "npc_2")
	require.NoError(t, err)

	heard, err := l.HeardByAgent(ctx, "npc_2", "player_1")
	require.NoError(t, err)
	require.Len(t, heard, 1)

	heardByOther, err := l.HeardByAgent(ctx, "npc_3", "player_1")
	require.NoError(t, err)
	require.Empty(t, heardByOther)
}
