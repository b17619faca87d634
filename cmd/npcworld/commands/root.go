// Package commands implements npcworld's cobra command tree. Grounded on
// the teacher's cmd/giztoy/commands/root.go (single rootCmd var, a package
// init per subcommand calling rootCmd.AddCommand, a persistent
// --config flag instead of re-deriving paths per command).
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/fracturedsurvival/npcruntime/internal/config"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "npcworld",
	Short: "NPC cognitive runtime: agent fleet, world tick, and scaling substrate",
	Long: `npcworld runs the survival game's NPC cognitive runtime: a fleet of
autonomous agents (perception, reflection, trust, quests, territory) driven
by a world tick, scaled across active/nearby/idle/dormant tiers.

Use 'npcworld serve' to run the process, 'npcworld tick' to force a single
world tick against an existing database, and 'npcworld seed-persona' to
register a persona document ahead of time.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "npcworld.yaml", "path to world config YAML")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose (debug-level) logging")
}

// loadConfig reads the world config from configPath, falling back to
// spec-mandated defaults when the file does not exist (a fresh operator
// running npcworld for the first time should not need a config file).
func loadConfig() (config.World, error) {
	if _, err := os.Stat(configPath); err != nil {
		return config.Default(), nil
	}
	return config.Load(configPath)
}
