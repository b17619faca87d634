package scaling

import (
	"sync"
	"time"

	"github.com/fracturedsurvival/npcruntime/internal/config"
)

// Tier labels an entity's update frequency bucket in the tiered scheduler.
type Tier int

const (
	TierActive Tier = iota
	TierNearby
	TierIdle
	TierDormant
)

func (t Tier) String() string {
	switch t {
	case TierActive:
		return "active"
	case TierNearby:
		return "nearby"
	case TierIdle:
		return "idle"
	default:
		return "dormant"
	}
}

// Scheduler buckets registered entities (agents, groups, trade routes...)
// into tiers by recency of activity and decides, per world tick, which
// entities are due for an update this tick based on each tier's modulo
// (§4.6/§9: not every NPC needs full-fidelity simulation every tick).
type Scheduler struct {
	cfg config.TierConfig

	mu        sync.Mutex
	lastSeen  map[string]time.Time
	tier      map[string]Tier
	tickCount uint64
}

// NewScheduler constructs a Scheduler from the given tier configuration.
func NewScheduler(cfg config.TierConfig) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		lastSeen: make(map[string]time.Time),
		tier:     make(map[string]Tier),
	}
}

// Touch marks id as active right now, promoting it to TierActive.
func (s *Scheduler) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen[id] = time.Now().UTC()
	s.tier[id] = TierActive
}

// Demote recomputes every tracked entity's tier from its time since last
// activity against the configured windows (§4.6: tiers demote on idleness,
// promotion happens immediately via Touch).
func (s *Scheduler) Demote(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, last := range s.lastSeen {
		age := now.Sub(last)
		switch {
		case age <= s.cfg.ActiveWindow:
			s.tier[id] = TierActive
		case age <= s.cfg.NearbyWindow:
			s.tier[id] = TierNearby
		case age <= s.cfg.IdleWindow:
			s.tier[id] = TierIdle
		default:
			s.tier[id] = TierDormant
		}
	}
}

// TierOf returns id's current tier, defaulting to TierDormant if untracked.
func (s *Scheduler) TierOf(id string) Tier {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tier[id]
	if !ok {
		return TierDormant
	}
	return t
}

func (s *Scheduler) moduloFor(t Tier) int {
	switch t {
	case TierActive:
		return max1(s.cfg.ActiveModulo)
	case TierNearby:
		return max1(s.cfg.NearbyModulo)
	case TierIdle:
		return max1(s.cfg.IdleModulo)
	default:
		return max1(s.cfg.DormantModulo)
	}
}

func max1(v int) int {
	if v <= 0 {
		return 1
	}
	return v
}

// Tick advances the tick counter and returns every tracked entity whose
// tier modulo divides the new tick count — i.e. the entities due for an
// update this tick.
func (s *Scheduler) Tick() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickCount++
	n := s.tickCount
	var due []string
	for id, t := range s.tier {
		if n%uint64(s.moduloFor(t)) == 0 {
			due = append(due, id)
		}
	}
	return due
}

// Forget removes id from scheduling entirely (e.g. on unregister).
func (s *Scheduler) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lastSeen, id)
	delete(s.tier, id)
}
