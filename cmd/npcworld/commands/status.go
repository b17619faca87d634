package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fracturedsurvival/npcruntime/pkg/cli"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a snapshot of the fleet, scaling substrate, and conversation groups",
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

		styles := cli.NewStyles(cli.DefaultTheme)
		agentIDs := rt.fleet.AgentIDs()
		groupStats := rt.groups.Stats()
		events := rt.fleet.Events()

		frame := cli.Frame{
			Styles: styles,
			Title:  "npcworld",
			Status: "running",
			Sections: []cli.Section{
				{Label: "Fleet", Content: func() []string {
					return []string{
						fmt.Sprintf("registered agents: %d", len(agentIDs)),
						fmt.Sprintf("recent events: %d", len(events)),
					}
				}},
				{Label: "Conversation Groups", Content: func() []string {
					return []string{
						fmt.Sprintf("total groups: %d", groupStats.TotalGroups),
						fmt.Sprintf("active groups: %d", groupStats.ActiveGroups),
						fmt.Sprintf("messages exchanged: %d", groupStats.TotalMessages),
					}
				}},
				{Label: "Scaling", Content: func() []string {
					return []string{
						fmt.Sprintf("subscribers on bus: %d", rt.bus.SubscriberCount()),
						fmt.Sprintf("pending batched writes: %d", rt.batch.Pending()),
					}
				}},
			},
			Help: "npcworld status — press Ctrl+C to exit a live serve process",
		}
		fmt.Println(frame.Render(72, 20))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
