package scaling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fracturedsurvival/npcruntime/internal/config"
)

func testTierConfig() config.TierConfig {
	return config.TierConfig{
		ActiveModulo: 1, NearbyModulo: 5, IdleModulo: 20, DormantModulo: 100,
		ActiveWindow: time.Minute, NearbyWindow: 5 * time.Minute, IdleWindow: time.Hour,
	}
}

func TestTouchPromotesToActive(t *testing.T) {
	s := NewScheduler(testTierConfig())
	s.Touch("npc_1")
	require.Equal(t, TierActive, s.TierOf("npc_1"))
}

func TestDemoteBucketsByAge(t *testing.T) {
	s := NewScheduler(testTierConfig())
	now := time.Now().UTC()

	s.mu.Lock()
	s.lastSeen["fresh"] = now
	s.lastSeen["nearby"] = now.Add(-2 * time.Minute)
	s.lastSeen["idle"] = now.Add(-30 * time.Minute)
	s.lastSeen["dormant"] = now.Add(-2 * time.Hour)
	s.mu.Unlock()

	s.Demote(now)
	require.Equal(t, TierActive, s.TierOf("fresh"))
	require.Equal(t, TierNearby, s.TierOf("nearby"))
	require.Equal(t, TierIdle, s.TierOf("idle"))
	require.Equal(t, TierDormant, s.TierOf("dormant"))
}

func TestUntrackedEntityDefaultsDormant(t *testing.T) {
	s := NewScheduler(testTierConfig())
	require.Equal(t, TierDormant, s.TierOf("ghost"))
}

func TestTickHonorsModuli(t *testing.T) {
	s := NewScheduler(testTierConfig())
	s.Touch("active_npc") // modulo 1: due every tick

	s.mu.Lock()
	s.tier["nearby_npc"] = TierNearby // modulo 5
	s.lastSeen["nearby_npc"] = time.Now().UTC()
	s.mu.Unlock()

	for i := 1; i <= 4; i++ {
		due := s.Tick()
		require.Contains(t, due, "active_npc")
		require.NotContains(t, due, "nearby_npc")
	}
	due := s.Tick() // 5th tick
	require.Contains(t, due, "active_npc")
	require.Contains(t, due, "nearby_npc")
}

func TestForgetRemovesEntity(t *testing.T) {
	s := NewScheduler(testTierConfig())
	s.Touch("npc_1")
	s.Forget("npc_1")
	require.Equal(t, TierDormant, s.TierOf("npc_1"))
	due := s.Tick()
	require.NotContains(t, due, "npc_1")
}
