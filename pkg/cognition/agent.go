package cognition

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fracturedsurvival/npcruntime/pkg/llm"
	"github.com/fracturedsurvival/npcruntime/pkg/memory"
	"github.com/fracturedsurvival/npcruntime/pkg/persona"
	"github.com/fracturedsurvival/npcruntime/pkg/social"
	"github.com/fracturedsurvival/npcruntime/pkg/store"
	"github.com/fracturedsurvival/npcruntime/pkg/topic"
)

// RelationLookup is implemented by the Fleet Coordinator so the Agent
// Runtime can opportunistically share memories with related agents (§4.5
// step 6) without importing pkg/fleet (which itself drives agents).
type RelationLookup interface {
	RelatedAgents(ctx context.Context, agentID string) (map[string]float64, error)
}

// Deps bundles an Agent's collaborators. LLM and Model are required; the
// rest default to permissive no-ops so an Agent is usable in isolation
// during tests.
type Deps struct {
	Memory            *memory.Vault
	Topics            *topic.Vault
	Social            *social.Ledger
	LLM               llm.Client
	Model             string
	Relations         RelationLookup // optional
	Log               *zap.SugaredLogger
	ReflectionInterval time.Duration // default 300s
	TimeScale         float64        // default 1.0, world-tick advance per real second

	// Store, if set, bounds this agent's persist writes to one logical
	// worker slot at a time (§4.1/§5's per-worker connection lease). Left
	// nil in isolated tests, where no real contention exists to bound.
	Store *store.Store
}

func (d Deps) withDefaults() Deps {
	if d.ReflectionInterval <= 0 {
		d.ReflectionInterval = 300 * time.Second
	}
	if d.TimeScale <= 0 {
		d.TimeScale = 1.0
	}
	if d.Log == nil {
		d.Log = zap.NewNop().Sugar()
	}
	return d
}

// Snapshot is the limbic state returned alongside a cognitive frame (§4.5
// step 7).
type Snapshot struct {
	Vitals  persona.Vitals
	Emotion persona.EmotionalState
}

// Agent is a single NPC's cognitive runtime. All mutation of its vitals,
// emotional state, and live personality happens on its own goroutine
// (inbox), so reactive cycles and autonomous ticks never race.
type Agent struct {
	id      string
	persona persona.Persona
	deps    Deps

	vitals      persona.Vitals
	emotion     persona.EmotionalState
	personality persona.Personality

	inbox  chan func()
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// New constructs an Agent from a persona document. It does not start the
// autonomous loop; call Start for that.
func New(p persona.Persona, deps Deps) *Agent {
	return &Agent{
		id:          p.AgentID,
		persona:     p,
		deps:        deps.withDefaults(),
		vitals:      persona.Vitals{},
		emotion:     persona.DefaultEmotionalState(),
		personality: p.Personality.Clone(),
		inbox:       make(chan func(), 8),
	}
}

// ID returns the agent's identifier.
func (a *Agent) ID() string { return a.id }

// Start launches the agent's single worker goroutine and its autonomous
// loop, both derived from ctx so a parent cancellation stops both (§4.5
// Cancellation).
func (a *Agent) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		a.cancel = cancel
		a.wg.Add(2)
		go a.runInbox(runCtx)
		go a.autonomousLoop(runCtx)
	})
}

// Stop cancels both execution contexts and waits for them to exit.
// Reactive cycles already past the model boundary are allowed to finish;
// nothing new is accepted once the worker goroutine observes cancellation.
func (a *Agent) Stop() {
	a.stopOnce.Do(func() {
		if a.cancel != nil {
			a.cancel()
		}
		a.wg.Wait()
	})
}

func (a *Agent) runInbox(ctx context.Context) {
	defer a.wg.Done()
	for {
		select {
		case fn := <-a.inbox:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

func (a *Agent) autonomousLoop(ctx context.Context) {
	defer a.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	lastReflection := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.runOnWorker(ctx, func() {
				a.vitals.Decay(1.0 * a.deps.TimeScale)
			})
			if time.Since(lastReflection) >= a.deps.ReflectionInterval {
				lastReflection = time.Now()
				a.reflect(ctx)
			}
		}
	}
}

// runOnWorker submits fn to the agent's own goroutine and blocks until it
// runs, or ctx is cancelled first.
func (a *Agent) runOnWorker(ctx context.Context, fn func()) {
	done := make(chan struct{})
	wrapped := func() {
		fn()
		close(done)
	}
	select {
	case a.inbox <- wrapped:
	case <-ctx.Done():
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// reflect summarizes the last five memories into a single-sentence belief
// (§4.5 autonomous loop; original_source autonomous_reflection).
func (a *Agent) reflect(ctx context.Context) {
	if a.deps.Memory == nil {
		return
	}
	recent, err := a.deps.Memory.RecentMemories(ctx, a.id, 5)
	if err != nil || len(recent) == 0 {
		return
	}
	var lines []string
	for _, m := range recent {
		lines = append(lines, m.Content)
	}
	req := llm.Request{
		Model: a.deps.Model,
		Messages: []llm.Message{
			{Role: "system", Content: "Summarize the following memories into one single-sentence belief about the world, from " + a.id + "'s point of view. Respond with only the sentence."},
			{Role: "user", Content: strings.Join(lines, "\n")},
		},
	}
	resp, err := a.deps.LLM.Complete(ctx, req)
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		return
	}
	if _, err := a.deps.Memory.StoreBelief(ctx, a.id, strings.TrimSpace(resp.Text), 0.7); err != nil {
		a.deps.Log.Warnw("reflection: store belief failed", "agent", a.id, "err", err)
	}
}

// ReceivePlayerAction runs the reactive cycle (§4.5) for a single player
// message and returns the resolved cognitive frame plus a limbic snapshot.
func (a *Agent) ReceivePlayerAction(ctx context.Context, playerID, message string) (CognitiveFrame, Snapshot, error) {
	type result struct {
		frame CognitiveFrame
		snap  Snapshot
		err   error
	}
	resultCh := make(chan result, 1)
	submit := func() {
		f, s, err := a.reactiveCycle(ctx, playerID, message)
		resultCh <- result{f, s, err}
	}
	select {
	case a.inbox <- submit:
	case <-ctx.Done():
		// The submit closure never reached the owning goroutine, so reading
		// live vitals/emotion here would race with it; Snapshot{} stands in
		// for "unknown" rather than risking that.
		return fallbackFrame("context cancelled"), Snapshot{}, nil
	}
	select {
	case r := <-resultCh:
		return r.frame, r.snap, r.err
	case <-ctx.Done():
		return fallbackFrame("context cancelled"), Snapshot{}, nil
	}
}

// Descriptor is a read-only view of an agent's identity and live state, for
// callers (Conversation Groups' responder selection) that need persona and
// personality without driving a reactive cycle.
type Descriptor struct {
	Persona     persona.Persona
	Personality persona.Personality
	Snapshot    Snapshot
}

// Describe returns the agent's current persona, personality, and limbic
// snapshot. Like ReceivePlayerAction, it reads through the agent's own
// goroutine so it never races with a reactive cycle or autonomous tick
// mutating that state (§5 single-owner discipline).
func (a *Agent) Describe(ctx context.Context) (Descriptor, error) {
	resultCh := make(chan Descriptor, 1)
	submit := func() {
		resultCh <- Descriptor{
			Persona:     a.persona,
			Personality: a.personality.Clone(),
			Snapshot:    a.snapshot(),
		}
	}
	select {
	case a.inbox <- submit:
	case <-ctx.Done():
		return Descriptor{}, ctx.Err()
	}
	select {
	case d := <-resultCh:
		return d, nil
	case <-ctx.Done():
		return Descriptor{}, ctx.Err()
	}
}

func (a *Agent) reactiveCycle(ctx context.Context, playerID, message string) (CognitiveFrame, Snapshot, error) {
	// Step 1: load context.
	loaded := loadedContext{}
	if a.deps.Memory != nil {
		loaded.recentMemories, _ = a.deps.Memory.RecentMemories(ctx, a.id, 3)
		loaded.beliefs, _ = a.deps.Memory.TopBeliefs(ctx, a.id, 3)
	}
	if a.deps.Topics != nil {
		loaded.topics, _ = a.deps.Topics.Retrieve(ctx, a.id, playerID, message, 5)
		loaded.shared, _ = a.deps.Topics.SharedAbout(ctx, a.id, playerID, 5)
	}
	if a.deps.Social != nil {
		loaded.rumors, _ = a.deps.Social.HeardByAgent(ctx, a.id, playerID)
	}

	// Step 2: think time, scaled 0.1x to represent sensory latency.
	think := a.emotion.ThinkTime()
	sleepFor := time.Duration(think * 0.1 * float64(time.Second))
	select {
	case <-time.After(sleepFor):
	case <-ctx.Done():
		return fallbackFrame("context cancelled"), a.snapshot(), nil
	}

	// Step 3: call the model.
	sys := systemPrompt(a.persona, a.personality)
	usr := userPrompt(message, a.vitals, a.emotion, loaded)
	resp, err := a.deps.LLM.Complete(ctx, llm.Request{
		Model: a.deps.Model,
		Messages: []llm.Message{
			{Role: "system", Content: sys},
			{Role: "user", Content: usr},
		},
	})

	// Model boundary: if the caller's context is already done, abandon
	// before touching persisted state (§4.5 Cancellation).
	if ctx.Err() != nil {
		return fallbackFrame("context cancelled"), a.snapshot(), nil
	}

	var frame CognitiveFrame
	var usedFallback bool
	if err != nil {
		frame = fallbackFrame("model call failed: " + err.Error())
		usedFallback = true
	} else {
		var raw rawFrame
		if decodeErr := llm.DecodeJSON(resp.Text, &raw); decodeErr != nil || !raw.validate() {
			frame = fallbackFrame("response did not match the cognitive frame contract")
			usedFallback = true
		} else {
			frame = raw.toFrame()
		}
	}

	// Step 4: meta resolution — vitals override cognition.
	a.resolveVitalsOverride(&frame)
	a.resolveTrustAmplification(&frame)

	// Step 5: emotional update from event heuristics.
	a.emotion.UpdateFromEvent(classifyEvent(message), frame.Urgency)

	// Step 6: persist. Skipped for a fallback frame — on LLM failure or an
	// unrepairable response, the caller gets a cautious frame back but
	// nothing about the exchange is written (§7/§8).
	if !usedFallback {
		a.persist(ctx, playerID, message, frame)
	}

	// Trait drift, gated on urgency (original_source: only on significant events).
	if frame.Urgency > 0.7 {
		a.applyTraitDrift(ctx, frame)
	}

	return frame, a.snapshot(), nil
}

func (a *Agent) snapshot() Snapshot {
	return Snapshot{Vitals: a.vitals, Emotion: a.emotion}
}

// resolveVitalsOverride implements §4.5 step 4's biological overrides
// (original_source core/meta_mind.py resolve_intent_conflicts).
func (a *Agent) resolveVitalsOverride(f *CognitiveFrame) {
	if a.vitals.Hunger > 0.8 && f.Intent != IntentFlee && f.Intent != IntentAssist {
		f.Intent = IntentInvestigate
		if f.Urgency < 0.9 {
			f.Urgency = 0.9
		}
	}
	if a.vitals.Fatigue > 0.9 && f.Intent != IntentFlee {
		f.Intent = IntentIgnore
		f.Dialogue = "I... need to rest..."
		f.Urgency = 1.0
	}
}

// resolveTrustAmplification implements §4.5 step 4's paranoia/empathy
// trust_mod scaling.
func (a *Agent) resolveTrustAmplification(f *CognitiveFrame) {
	if a.personality.Get(persona.Paranoia) > 0.7 {
		f.TrustMod = clampTrustMod(f.TrustMod * 1.5)
	}
	if f.TrustMod > 0 && a.personality.Get(persona.Empathy) > 0.7 {
		f.TrustMod = clampTrustMod(f.TrustMod * 1.3)
	}
}

// threatKeywords and positiveKeywords drive the emotional-update heuristic
// (§4.5 step 5; original_source npc_system.py process_player_action).
var threatKeywords = []string{"threat", "weapon", "attack", "danger", "kill"}
var positiveKeywords = []string{"help", "assist", "thank", "gift", "kind"}

func classifyEvent(message string) persona.EventKind {
	lower := strings.ToLower(message)
	for _, kw := range threatKeywords {
		if strings.Contains(lower, kw) {
			return persona.EventThreat
		}
	}
	for _, kw := range positiveKeywords {
		if strings.Contains(lower, kw) {
			return persona.EventPositive
		}
	}
	return ""
}

// persist implements §4.5 step 6: the only point in the reactive cycle that
// writes durable state. Everything it writes happens under one pool lease,
// keyed by the agent's own ID, for the lifetime of this call.
func (a *Agent) persist(ctx context.Context, playerID, message string, f CognitiveFrame) {
	if a.deps.Store != nil {
		lease, err := a.deps.Store.Lease(ctx, a.id)
		if err != nil {
			a.deps.Log.Warnw("persist: pool lease failed", "agent", a.id, "err", err)
			return
		}
		defer lease.Release()
	}

	if a.deps.Memory != nil {
		content := fmt.Sprintf("Player said: %q. I responded with intent=%s.", message, f.Intent)
		if _, err := a.deps.Memory.StoreMemory(ctx, a.id, memory.Episodic, content, 0.6); err != nil {
			a.deps.Log.Warnw("persist: store episodic memory failed", "agent", a.id, "err", err)
		}
	}

	var edge social.ReputationEdge
	if a.deps.Social != nil {
		var err error
		edge, err = a.deps.Social.ApplyReputationDelta(ctx, playerID, a.id, string(f.Intent), f.Dialogue, f.TrustMod)
		if err != nil {
			a.deps.Log.Warnw("persist: reputation update failed", "agent", a.id, "err", err)
		}

		polarity := "neutral"
		switch {
		case f.TrustMod > 0:
			polarity = "positive"
		case f.TrustMod < 0:
			polarity = "negative"
		}
		if _, err := a.deps.Social.MaybeAuthorRumor(ctx, a.id, playerID, polarity); err != nil {
			a.deps.Log.Warnw("persist: author rumor failed", "agent", a.id, "err", err)
		}
	}

	if a.deps.Topics != nil {
		if _, err := a.deps.Topics.ExtractAndStore(ctx, playerID, a.id, message); err != nil {
			a.deps.Log.Warnw("persist: extract topics failed", "agent", a.id, "err", err)
		}
		if _, err := a.deps.Topics.MassReinforceByKeyword(ctx, a.id, playerID, message); err != nil {
			a.deps.Log.Warnw("persist: mass reinforce failed", "agent", a.id, "err", err)
		}
		a.shareWithRelatedAgents(ctx, playerID)
	}

	_ = edge
}

// shareWithRelatedAgents opportunistically proposes this agent's
// top-weighted topics about playerID to agents it has a strong enough
// relationship with (§4.5 step 6, §4.3 cross-agent sharing).
func (a *Agent) shareWithRelatedAgents(ctx context.Context, playerID string) {
	if a.deps.Relations == nil {
		return
	}
	related, err := a.deps.Relations.RelatedAgents(ctx, a.id)
	if err != nil {
		return
	}
	top, err := a.deps.Topics.TopWeighted(ctx, a.id, playerID, 3)
	if err != nil || len(top) == 0 {
		return
	}
	for listener, relation := range related {
		if relation < 0.5 {
			continue
		}
		for _, t := range top {
			a.deps.Topics.Share(ctx, t.ID, a.id, listener, relation)
		}
	}
}

// traitForIntent maps a resolved intent to the personality dimension most
// associated with it, for trait drift (§4.2; the mapping itself is not
// specified beyond "drift happens on significant events" and is this
// expansion's own design decision, recorded in DESIGN.md).
var traitForIntent = map[Intent]persona.Trait{
	IntentInvestigate: persona.Curiosity,
	IntentFlee:        persona.Paranoia,
	IntentAssist:      persona.Empathy,
	IntentIgnore:      persona.Discipline,
	IntentSocialize:   persona.Empathy,
	IntentGuard:       persona.Paranoia,
	IntentTrade:       persona.Opportunism,
}

// applyTraitDrift implements original_source core/meta_mind.py's
// apply_trait_drift: inertia 0.95 means only a small fraction of each
// significant event's impact carries through to the trait ledger.
func (a *Agent) applyTraitDrift(ctx context.Context, f CognitiveFrame) {
	if a.deps.Memory == nil {
		return
	}
	trait, ok := traitForIntent[f.Intent]
	if !ok {
		return
	}
	const inertia = 0.95
	delta := f.Urgency * (1 - inertia) * 0.1
	if delta > memory.MaxTraitDelta {
		delta = memory.MaxTraitDelta
	}
	current := a.personality.Get(trait)
	reason := fmt.Sprintf("reactive cycle resolved intent=%s urgency=%.2f", f.Intent, f.Urgency)
	tc, err := a.deps.Memory.AppendTraitChange(ctx, a.id, string(trait), current, delta, reason)
	if err != nil {
		a.deps.Log.Warnw("trait drift: append failed", "agent", a.id, "trait", trait, "err", err)
		return
	}
	a.personality[trait] = tc.ResultingValue
}
