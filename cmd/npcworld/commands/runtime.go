package commands

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	nlog "github.com/fracturedsurvival/npcruntime/internal/log"
	"github.com/fracturedsurvival/npcruntime/internal/config"
	"github.com/fracturedsurvival/npcruntime/pkg/fleet"
	"github.com/fracturedsurvival/npcruntime/pkg/groups"
	"github.com/fracturedsurvival/npcruntime/pkg/llm"
	"github.com/fracturedsurvival/npcruntime/pkg/memory"
	"github.com/fracturedsurvival/npcruntime/pkg/persona"
	"github.com/fracturedsurvival/npcruntime/pkg/scaling"
	"github.com/fracturedsurvival/npcruntime/pkg/social"
	"github.com/fracturedsurvival/npcruntime/pkg/store"
	"github.com/fracturedsurvival/npcruntime/pkg/surface"
	"github.com/fracturedsurvival/npcruntime/pkg/topic"
)

// runtime bundles every wired component (A-H) for a single npcworld
// process. Built once at startup by newRuntime and threaded through every
// command that needs live state.
type runtime struct {
	cfg      config.World
	log      *zap.SugaredLogger
	store    *store.Store
	memory   *memory.Vault
	topics   *topic.Vault
	social   *social.Ledger
	llm      llm.Client
	personas *persona.Registry
	fleet    *fleet.Coordinator
	groups   *groups.Manager
	cache    *scaling.Cache
	sched    *scaling.Scheduler
	batch    *scaling.BatchWriter
	perf     *scaling.PerfMonitor
	bus      *scaling.EventBus
	surface  *surface.Server
}

// newRuntime opens the store and constructs every component against cfg.
func newRuntime(cfg config.World) (*runtime, error) {
	log, err := nlog.New(verbose)
	if err != nil {
		return nil, fmt.Errorf("npcworld: build logger: %w", err)
	}

	s, err := store.Open(store.Options{Path: cfg.Store.Path, PoolSize: cfg.Store.PoolSize, PageCacheKB: cfg.Store.PageCacheKB})
	if err != nil {
		return nil, fmt.Errorf("npcworld: open store: %w", err)
	}

	memVault := memory.New(s)
	topicVault := topic.New(s)
	socialLedger := social.New(s)
	personaRegistry := persona.NewRegistry()

	client, err := newLLMClient(cfg.LLM)
	if err != nil {
		s.Close()
		return nil, err
	}

	cache, err := scaling.NewCache(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("npcworld: construct cache: %w", err)
	}
	bus := scaling.NewEventBus()

	coordinator := fleet.New(fleet.Deps{
		Store: s, Memory: memVault, Topics: topicVault, Social: socialLedger, Bus: bus, Log: log,
	})
	groupManager := groups.New(groups.Deps{Config: cfg.Groups, Log: log})
	perf := scaling.NewPerfMonitor()

	surfaceServer := surface.New(surface.Deps{
		Fleet: coordinator, Groups: groupManager, Memory: memVault, Topics: topicVault,
		Social: socialLedger, Personas: personaRegistry, Bus: bus, Perf: perf,
		LLM: client, LLMModel: cfg.LLM.Model, Log: log, Store: s,
	})

	return &runtime{
		cfg: cfg, log: log, store: s,
		memory: memVault, topics: topicVault, social: socialLedger, llm: client,
		personas: personaRegistry, fleet: coordinator, groups: groupManager,
		cache: cache, sched: scaling.NewScheduler(cfg.Tiers),
		batch:   scaling.NewBatchWriter(s.DB(), cfg.Batch.FlushSize),
		perf:    perf, bus: bus,
		surface: surfaceServer,
	}, nil
}

func (r *runtime) close() {
	r.cache.Close()
	r.store.Close()
}

func newLLMClient(cfg config.LLMConfig) (llm.Client, error) {
	switch cfg.Provider {
	case "genai":
		return llm.NewGenAIClient(context.Background(), cfg.APIKey)
	default:
		return llm.NewOpenAIClient(cfg.APIKey, cfg.BaseURL)
	}
}
