package groups

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fracturedsurvival/npcruntime/internal/apperr"
	"github.com/fracturedsurvival/npcruntime/internal/config"
)

func newTestManager() *Manager {
	return New(Deps{Config: config.GroupConfig{ProximityThreshold: 500, MaxGroupSize: 3, Timeout: 300 * time.Second}})
}

func TestNearbyReturnsWithinThresholdCappedAndSorted(t *testing.T) {
	m := newTestManager()
	m.UpdatePlayerLocation("player_1", Location{X: 0, Y: 0, Z: 0})
	m.UpdateAgentLocation("npc_far", Location{X: 490, Y: 0, Z: 0}, "")
	m.UpdateAgentLocation("npc_near", Location{X: 10, Y: 0, Z: 0}, "")
	m.UpdateAgentLocation("npc_out_of_range", Location{X: 1000, Y: 0, Z: 0}, "")

	ids, err := m.Nearby("player_1", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"npc_near", "npc_far"}, ids)
}

func TestNearbyUnknownPlayerIsNotFound(t *testing.T) {
	m := newTestManager()
	_, err := m.Nearby("ghost", 0)
	require.True(t, apperr.Is(err, apperr.NotFound))
}

func TestStartGroupAutoDiscoversAndCapsSize(t *testing.T) {
	m := newTestManager()
	m.UpdatePlayerLocation("player_1", Location{})
	for i := 0; i < 5; i++ {
		m.UpdateAgentLocation(string(rune('a'+i)), Location{X: float64(i * 10)}, "")
	}
	g, err := m.StartGroup("player_1", "Ava", "market", nil)
	require.NoError(t, err)
	require.LessOrEqual(t, len(g.Participants), 3)
	for _, p := range g.Participants {
		require.Equal(t, RoleListener, p.Role)
	}
}

func TestAddParticipantRejectsPastMaxGroupSize(t *testing.T) {
	m := newTestManager()
	m.UpdatePlayerLocation("player_1", Location{})
	g, err := m.StartGroup("player_1", "Ava", "market", []string{"a", "b", "c"})
	require.NoError(t, err)
	err = m.AddParticipant(g.ID, "d")
	require.True(t, apperr.Is(err, apperr.Conflict))
}

func TestRemoveParticipantDropsFromGroup(t *testing.T) {
	m := newTestManager()
	m.UpdatePlayerLocation("player_1", Location{})
	g, err := m.StartGroup("player_1", "Ava", "market", []string{"a", "b"})
	require.NoError(t, err)
	require.NoError(t, m.RemoveParticipant(g.ID, "a"))
	got, err := m.Get(g.ID)
	require.NoError(t, err)
	_, stillThere := got.Participants["a"]
	require.False(t, stillThere)
}

func TestEndGroupMarksInactive(t *testing.T) {
	m := newTestManager()
	m.UpdatePlayerLocation("player_1", Location{})
	g, err := m.StartGroup("player_1", "Ava", "market", []string{"a"})
	require.NoError(t, err)
	ended, err := m.EndGroup(g.ID)
	require.NoError(t, err)
	require.False(t, ended.Active)
}

func TestCleanupMarksIdleGroupsInactive(t *testing.T) {
	m := newTestManager()
	m.UpdatePlayerLocation("player_1", Location{})
	g, err := m.StartGroup("player_1", "Ava", "market", []string{"a"})
	require.NoError(t, err)

	n := m.Cleanup(time.Now().UTC())
	require.Equal(t, 0, n)

	g.LastActivity = time.Now().UTC().Add(-301 * time.Second)
	n = m.Cleanup(time.Now().UTC())
	require.Equal(t, 1, n)
	got, _ := m.Get(g.ID)
	require.False(t, got.Active)
}

func TestStatsCountsActiveGroupsAndMessages(t *testing.T) {
	m := newTestManager()
	m.UpdatePlayerLocation("player_1", Location{})
	g1, _ := m.StartGroup("player_1", "Ava", "market", []string{"a"})
	g2, _ := m.StartGroup("player_1", "Ava", "docks", []string{"b"})
	g1.History = append(g1.History, Message{Content: "hi"})
	m.EndGroup(g2.ID)

	s := m.Stats()
	require.Equal(t, 2, s.TotalGroups)
	require.Equal(t, 1, s.ActiveGroups)
	require.Equal(t, 1, s.TotalMessages)
}
