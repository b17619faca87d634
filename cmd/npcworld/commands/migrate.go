package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fracturedsurvival/npcruntime/pkg/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the persistent store's schema and analyze it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := store.Open(store.Options{Path: cfg.Store.Path, PoolSize: cfg.Store.PoolSize, PageCacheKB: cfg.Store.PageCacheKB})
		if err != nil {
			return fmt.Errorf("npcworld: migrate: %w", err)
		}
		defer s.Close()
		if err := s.Analyze(context.Background()); err != nil {
			return fmt.Errorf("npcworld: analyze: %w", err)
		}
		fmt.Printf("npcworld: schema ready at %s\n", cfg.Store.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
