// Package surface implements the External Surfaces (component I, §6): a
// thin contract-only HTTP/WS layer over components B-H. It owns no
// business logic of its own — every handler decodes a request, calls
// straight through to a collaborator, and encodes the result or the
// collaborator's apperr.Kind as a structured JSON response (§7 "callers
// always receive a structured result"). Grounded on the teacher's
// pkg/cortex HTTP handlers for the decode/call/encode shape and its
// taxonomy-to-status-code mapping; the event-stream transport is grounded
// on the teacher's use of gorilla/websocket for device-facing streaming.
package surface

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/fracturedsurvival/npcruntime/internal/apperr"
	"github.com/fracturedsurvival/npcruntime/pkg/cognition"
	"github.com/fracturedsurvival/npcruntime/pkg/fleet"
	"github.com/fracturedsurvival/npcruntime/pkg/groups"
	"github.com/fracturedsurvival/npcruntime/pkg/llm"
	"github.com/fracturedsurvival/npcruntime/pkg/memory"
	"github.com/fracturedsurvival/npcruntime/pkg/persona"
	"github.com/fracturedsurvival/npcruntime/pkg/scaling"
	"github.com/fracturedsurvival/npcruntime/pkg/social"
	"github.com/fracturedsurvival/npcruntime/pkg/store"
	"github.com/fracturedsurvival/npcruntime/pkg/topic"
)

// Deps bundles every collaborator the surface dispatches to.
type Deps struct {
	Fleet    *fleet.Coordinator
	Groups   *groups.Manager
	Memory   *memory.Vault
	Topics   *topic.Vault
	Social   *social.Ledger
	Personas *persona.Registry
	Bus      *scaling.EventBus
	Perf     *scaling.PerfMonitor
	LLM      llm.Client
	LLMModel string
	Log      *zap.SugaredLogger
	Store    *store.Store
}

// Server is the HTTP/WS entry point for every §6 external operation this
// expansion exposes over a concrete transport.
type Server struct {
	d   Deps
	mux *http.ServeMux
}

// New builds a Server with every route registered.
func New(d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop().Sugar()
	}
	s := &Server{d: d, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /agents", s.handleInitializeAgent)
	s.mux.HandleFunc("DELETE /agents/{id}", s.handleShutdownAgent)
	s.mux.HandleFunc("GET /agents", s.handleListAgents)
	s.mux.HandleFunc("GET /agents/{id}/status", s.handleAgentStatus)
	s.mux.HandleFunc("GET /agents/{id}/memories", s.handleAgentMemories)
	s.mux.HandleFunc("GET /agents/{id}/beliefs", s.handleAgentBeliefs)
	s.mux.HandleFunc("GET /agents/{id}/relationships", s.handleAgentRelationships)
	s.mux.HandleFunc("GET /agents/{id}/goals", s.handleAgentGoals)
	s.mux.HandleFunc("POST /agents/{id}/action", s.handleAgentAction)

	s.mux.HandleFunc("GET /players/{id}", s.handlePlayer)
	s.mux.HandleFunc("POST /gossip", s.handleGossip)

	s.mux.HandleFunc("POST /world/tick", s.handleWorldTick)
	s.mux.HandleFunc("GET /world/events", s.handleWorldEvents)

	s.mux.HandleFunc("POST /quests", s.handleQuestGenerate)
	s.mux.HandleFunc("POST /quests/{id}/accept", s.handleQuestAccept)
	s.mux.HandleFunc("POST /quests/{id}/complete", s.handleQuestComplete)

	s.mux.HandleFunc("POST /battles", s.handleBattleInitiate)
	s.mux.HandleFunc("POST /battles/{id}/resolve", s.handleBattleResolve)

	s.mux.HandleFunc("POST /location/agent", s.handleLocationUpdateAgent)
	s.mux.HandleFunc("POST /location/player", s.handleLocationUpdatePlayer)
	s.mux.HandleFunc("GET /nearby/{playerID}", s.handleNearby)
	s.mux.HandleFunc("POST /conversations", s.handleConversationStart)
	s.mux.HandleFunc("POST /conversations/{id}/message", s.handleConversationMessage)
	s.mux.HandleFunc("POST /conversations/{id}/end", s.handleConversationEnd)
	s.mux.HandleFunc("GET /conversations/{id}", s.handleConversationGet)
	s.mux.HandleFunc("GET /conversations/stats", s.handleConversationStats)

	s.mux.HandleFunc("GET /scaling/stats", s.handleScalingStats)

	s.mux.HandleFunc("GET /events/stream", s.handleEventStream)
}

// writeJSON encodes v as the response body with a 200 status.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an apperr.Kind onto an HTTP status and writes a
// structured {error, kind} body — validation errors are distinguishable
// from unavailability by their taxonomy tag, not by guessing at prose
// (§7 "User-visible behavior").
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.InvalidArgument:
		status = http.StatusBadRequest
	case apperr.Conflict:
		status = http.StatusConflict
	case apperr.Unavailable:
		status = http.StatusServiceUnavailable
	case apperr.Integrity:
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
		"kind":  apperr.KindOf(err).String(),
	})
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return apperr.InvalidArgumentf("surface: request body is required")
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.InvalidArgumentf("surface: malformed request body: %v", err)
	}
	return nil
}

func requireField(v, field string) error {
	if v == "" {
		return apperr.InvalidArgumentf("surface: %s is required", field)
	}
	return nil
}

// actionResponse pairs a raw reactive-cycle frame plus snapshot in the
// action() response shape from §6.
type actionResponse struct {
	CognitiveFrame cognition.CognitiveFrame `json:"cognitive_frame"`
	LimbicSnapshot cognition.Snapshot       `json:"limbic_snapshot"`
}
