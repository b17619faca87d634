package fleet

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Gossip/quest-gen base probabilities and caps (§4.6 World tick). Both
// probabilities scale linearly with elapsed world hours and saturate at
// their cap: min(cap, hours*base_rate).
const (
	gossipBaseRate = 0.3
	gossipCap      = 0.5
	questBaseRate  = 0.1
	questCap       = 0.4
)

// TickResult summarizes the side effects of one world tick, for diagnostics
// and the ops CLI.
type TickResult struct {
	WorldSeconds    float64
	TopicsDecayed   int
	QuestsExpired   int
	GossipOccurred  bool
	QuestGenerated  bool
	GossipAgents    [2]string
	QuestGenAgentID string
}

// Tick advances world time by wallElapsed*timeScale, decays topic/shared
// memory strength proportional to the elapsed hours, expires overdue
// quests, and rolls the gossip and quest-generation dice (§4.6 World tick).
func (c *Coordinator) Tick(ctx context.Context, wallElapsed time.Duration, timeScale float64) (TickResult, error) {
	if timeScale <= 0 {
		timeScale = 1
	}
	simulated := wallElapsed.Seconds() * timeScale
	c.mu.Lock()
	c.worldSeconds += simulated
	worldSeconds := c.worldSeconds
	c.mu.Unlock()

	hours := simulated / 3600.0
	result := TickResult{WorldSeconds: worldSeconds}

	if c.topics != nil && hours > 0 {
		removed, err := c.topics.Decay(ctx, hours, 0.1)
		if err != nil {
			return result, err
		}
		result.TopicsDecayed = removed
	}

	expired, err := c.expireStaleQuests(ctx)
	if err != nil {
		return result, err
	}
	result.QuestsExpired = expired

	if hours > 0 {
		gossipChance := math.Min(gossipCap, hours*gossipBaseRate)
		if rand.Float64() < gossipChance {
			a, b, err := c.runGossip(ctx)
			if err != nil {
				return result, err
			}
			if a != "" {
				result.GossipOccurred = true
				result.GossipAgents = [2]string{a, b}
			}
		}

		questChance := math.Min(questCap, hours*questBaseRate)
		if rand.Float64() < questChance {
			agentID, err := c.runQuestGen(ctx)
			if err != nil {
				return result, err
			}
			if agentID != "" {
				result.QuestGenerated = true
				result.QuestGenAgentID = agentID
			}
		}
	}

	c.publish(Event{Kind: EventWorldTick, Detail: formatHours(hours), At: time.Now().UTC()})
	return result, nil
}

func formatHours(h float64) string {
	return time.Duration(h * float64(time.Hour)).String()
}

// runGossip picks two distinct registered agents and, when their relation
// is strong enough (mirrors pkg/topic.Share's gating, §4.6 World tick gossip
// step), shares the first agent's top-weighted topic with the second; the
// first agent may also author a new rumor about that topic's player, which
// is then spread to the second. No previously authored rumor is reused.
func (c *Coordinator) runGossip(ctx context.Context) (string, string, error) {
	ids := c.AgentIDs()
	if len(ids) < 2 {
		return "", "", nil
	}
	from := ids[rand.Intn(len(ids))]
	to := ids[rand.Intn(len(ids))]
	for to == from {
		to = ids[rand.Intn(len(ids))]
	}

	relation, err := c.Relation(ctx, from, to)
	if err != nil {
		return "", "", err
	}
	if relation < 0.5 {
		return "", "", nil
	}

	topics, err := c.topics.TopWeightedAny(ctx, from, 1)
	if err != nil || len(topics) == 0 {
		return "", "", nil
	}
	topic := topics[0]

	if _, err := c.topics.Share(ctx, topic.ID, from, to, relation); err != nil {
		c.log.Debugw("fleet: gossip share skipped", "err", err)
	}

	if c.social != nil {
		polarity := "neutral"
		rumor, err := c.social.MaybeAuthorRumor(ctx, from, topic.PlayerID, polarity)
		if err == nil && rumor != nil {
			if _, _, err := c.social.SpreadRumor(ctx, rumor.ID, to); err != nil {
				c.log.Debugw("fleet: rumor spread failed", "err", err)
			}
		}
	}

	c.publish(Event{Kind: EventGossip, Subject: from, Detail: to, At: time.Now().UTC()})
	return from, to, nil
}

// runQuestGen picks one active agent and generates a simple quest, modeling
// the autonomous-NPC quest-offer behavior of original_source's
// core/multi_npc.py world tick.
func (c *Coordinator) runQuestGen(ctx context.Context) (string, error) {
	ids := c.AgentIDs()
	if len(ids) == 0 {
		return "", nil
	}
	agentID := ids[rand.Intn(len(ids))]

	q, err := c.CreateQuest(ctx, agentID, "", "A task needs doing", "The locals whisper of unfinished business.", 10, 0.02, "")
	if err != nil {
		return "", err
	}
	c.publish(Event{Kind: EventQuestGenerated, Subject: agentID, Detail: q.ID, At: time.Now().UTC()})
	return agentID, nil
}
