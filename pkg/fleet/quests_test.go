package fleet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQuestLifecycleCompletion(t *testing.T) {
	c, _, _, social := newTestCoordinator(t)
	ctx := context.Background()

	_, err := social.EnsurePlayer(ctx, "player_1", "Ari")
	require.NoError(t, err)

	q, err := c.CreateQuest(ctx, "npc_a", "player_1", "Clear the cellar", "rats have moved in", 20, 0.1, "lantern")
	require.NoError(t, err)
	require.Equal(t, QuestAvailable, q.Status)

	require.NoError(t, c.AcceptQuest(ctx, q.ID, time.Hour))

	done, err := c.CompleteQuest(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, QuestCompleted, done.Status)

	edge, err := social.GetReputation(ctx, "player_1", "npc_a")
	require.NoError(t, err)
	require.InDelta(t, 0.1, edge.Reputation, 1e-9)
}

func TestQuestAcceptRejectsNonAvailable(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	q, err := c.CreateQuest(ctx, "npc_a", "", "Patrol the wall", "keep watch", 0, 0, "")
	require.NoError(t, err)
	require.NoError(t, c.AcceptQuest(ctx, q.ID, 0))

	require.Error(t, c.AcceptQuest(ctx, q.ID, 0))
}

func TestQuestFailTransitionsActiveToFailed(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	q, err := c.CreateQuest(ctx, "npc_a", "", "Deliver the letter", "to the next town", 0, 0, "")
	require.NoError(t, err)
	require.NoError(t, c.AcceptQuest(ctx, q.ID, 0))
	require.NoError(t, c.FailQuest(ctx, q.ID))

	require.Error(t, c.FailQuest(ctx, q.ID))
}

func TestCompleteQuestRejectsNonActive(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	q, err := c.CreateQuest(ctx, "npc_a", "", "Mend the fence", "it's falling apart", 0, 0, "")
	require.NoError(t, err)

	_, err = c.CompleteQuest(ctx, q.ID)
	require.Error(t, err)
}
