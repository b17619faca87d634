package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var tickHours float64

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Force a single world tick (or a deterministic fast-forward) against an existing database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		rt, err := newRuntime(cfg)
		if err != nil {
			return err
		}
		defer rt.close()

		elapsed := time.Duration(tickHours*3600) * time.Second
		if elapsed <= 0 {
			elapsed = cfg.Tick.Interval
		}
		result, err := rt.fleet.Tick(context.Background(), elapsed, cfg.Tick.TimeScale)
		if err != nil {
			return fmt.Errorf("npcworld: tick: %w", err)
		}
		fmt.Printf("world_seconds=%.1f topics_decayed=%d quests_expired=%d gossip=%v quest_generated=%v\n",
			result.WorldSeconds, result.TopicsDecayed, result.QuestsExpired, result.GossipOccurred, result.QuestGenerated)
		return nil
	},
}

func init() {
	tickCmd.Flags().Float64Var(&tickHours, "hours", 0, "simulated hours to advance (world.advance); defaults to one tick-interval's worth")
	rootCmd.AddCommand(tickCmd)
}
