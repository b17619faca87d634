package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fracturedsurvival/npcruntime/pkg/cognition"
	"github.com/fracturedsurvival/npcruntime/pkg/memory"
)

// memoryKind maps a persona document's free-text initial-memory kind onto
// the Memory Vault's typed Kind, defaulting to Episodic for anything
// unrecognized rather than rejecting the persona document outright.
func memoryKind(k string) memory.Kind {
	switch memory.Kind(k) {
	case memory.Social, memory.Belief:
		return memory.Kind(k)
	default:
		return memory.Episodic
	}
}

var (
	personaFaction string
)

var seedPersonaCmd = &cobra.Command{
	Use:   "seed-persona <persona.yaml>",
	Short: "Load a persona document, register its agent with the fleet, and seed its initial memories",
	Args:  cobra.ExactArgs(1),
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

		p, err := rt.personas.LoadFile(args[0])
		if err != nil {
			return err
		}

		ctx := context.Background()
		for _, m := range p.InitialMemories {
			if _, err := rt.memory.StoreMemory(ctx, p.AgentID, memoryKind(m.Kind), m.Content, m.Strength); err != nil {
				return fmt.Errorf("npcworld: seed memory: %w", err)
			}
		}

		agent := cognition.New(p, cognition.Deps{
			Memory: rt.memory, Topics: rt.topics, Social: rt.social,
			LLM: rt.llm, Model: cfg.LLM.Model, Relations: rt.fleet,
			ReflectionInterval: cfg.Reflection.Interval, Log: rt.log,
			Store: rt.store,
		})
		faction := personaFaction
		if faction == "" {
			faction = p.Faction
		}
		if err := rt.fleet.Register(ctx, agent, faction); err != nil {
			return err
		}
		fmt.Printf("npcworld: registered agent %q (faction %q) with %d seeded memories\n", p.AgentID, faction, len(p.InitialMemories))
		return nil
	},
}

func init() {
	seedPersonaCmd.Flags().StringVar(&personaFaction, "faction", "", "faction override; defaults to the persona document's own faction field")
	rootCmd.AddCommand(seedPersonaCmd)
}
