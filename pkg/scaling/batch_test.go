package scaling

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fracturedsurvival/npcruntime/pkg/store"
)

func TestBatchWriterFlushesOnExplicitCall(t *testing.T) {
	s, err := store.Open(store.Options{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	bw := NewBatchWriter(s.DB(), 100)
	for i := 0; i < 3; i++ {
		require.NoError(t, bw.Enqueue(context.Background(), Write{
			Query: `INSERT INTO npc_goals (id, agent_id, title, progress, steps, status, reward_gold, created_at) VALUES (?, ?, ?, 0, '', 'active', 0, 0)`,
			Args:  []any{"g" + string(rune('0'+i)), "npc_1", "goal"},
		}))
	}
	require.Equal(t, 3, bw.Pending())
	require.NoError(t, bw.Flush(context.Background()))
	require.Equal(t, 0, bw.Pending())

	var count int
	row := s.DB().QueryRowContext(context.Background(), `SELECT COUNT(*) FROM npc_goals WHERE agent_id = ?`, "npc_1")
	require.NoError(t, row.Scan(&count))
	require.Equal(t, 3, count)
}

func TestBatchWriterAutoFlushesAtSize(t *testing.T) {
	s, err := store.Open(store.Options{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	bw := NewBatchWriter(s.DB(), 2)
	for i := 0; i < 2; i++ {
		require.NoError(t, bw.Enqueue(context.Background(), Write{
			Query: `INSERT INTO npc_goals (id, agent_id, title, progress, steps, status, reward_gold, created_at) VALUES (?, ?, ?, 0, '', 'active', 0, 0)`,
			Args:  []any{"g" + string(rune('0'+i)), "npc_1", "goal"},
		}))
	}
	require.Equal(t, 0, bw.Pending()) // auto-flushed at size 2
}

func TestBatchWriterRollsBackOnFailureAndKeepsQueue(t *testing.T) {
	s, err := store.Open(store.Options{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	bw := NewBatchWriter(s.DB(), 100)
	require.NoError(t, bw.Enqueue(context.Background(), Write{Query: `INSERT INTO no_such_table (x) VALUES (?)`, Args: []any{1}}))
	require.Error(t, bw.Flush(context.Background()))
	require.Equal(t, 1, bw.Pending())
}
