package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the NPC runtime: world tick loop, tiered scheduler, batch flush",
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

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt.log.Infow("npcworld: serving", "store", cfg.Store.Path, "tick_interval", cfg.Tick.Interval)

		var httpServer *http.Server
		if cfg.Surface.Addr != "" {
			httpServer = &http.Server{Addr: cfg.Surface.Addr, Handler: rt.surface}
			go func() {
				rt.log.Infow("npcworld: external surface listening", "addr", cfg.Surface.Addr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					rt.log.Errorw("npcworld: surface listener stopped", "err", err)
				}
			}()
		}

		ticker := time.NewTicker(cfg.Tick.Interval)
		defer ticker.Stop()
		cleanupTicker := time.NewTicker(30 * time.Second)
		defer cleanupTicker.Stop()

		last := time.Now()
		for {
			select {
			case <-ctx.Done():
				rt.log.Infow("npcworld: shutting down")
				if httpServer != nil {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = httpServer.Shutdown(shutdownCtx)
				}
				return rt.batch.Flush(context.Background())
			case now := <-ticker.C:
				elapsed := now.Sub(last)
				last = now
				result, err := rt.fleet.Tick(ctx, elapsed, cfg.Tick.TimeScale)
				if err != nil {
					rt.log.Warnw("npcworld: world tick failed", "err", err)
					continue
				}
				rt.sched.Tick()
				rt.log.Debugw("npcworld: tick complete",
					"world_seconds", result.WorldSeconds,
					"topics_decayed", result.TopicsDecayed,
					"quests_expired", result.QuestsExpired,
					"gossip", result.GossipOccurred,
					"quest_generated", result.QuestGenerated)
			case <-cleanupTicker.C:
				n := rt.groups.Cleanup(time.Now().UTC())
				if n > 0 {
					rt.log.Debugw("npcworld: conversation groups idled out", "count", n)
				}
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
