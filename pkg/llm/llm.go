// Package llm provides a vendor-agnostic chat-completion client and the
// schema-validated decode step for cognitive frames and orchestrator
// decisions (§4.5 step 3, §4.6). Adapters are grounded on
// pkg/cortex/run_openai.go and pkg/cortex/run_genai.go; the repair-then-parse
// decode step is grounded on pkg/genx/json.go's unmarshalJSON.
package llm

import (
	"context"
	"encoding/json"

	"github.com/kaptinlin/jsonrepair"

	"github.com/fracturedsurvival/npcruntime/internal/apperr"
)

// Message is one chat turn.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Request is a single completion call.
type Request struct {
	Model    string
	Messages []Message
	// MaxTokens bounds the response length; 0 means provider default.
	MaxTokens int
}

// Response is a completed chat turn.
type Response struct {
	Text  string
	Model string
}

// Client is implemented by every vendor adapter (openai, genai). The Agent
// Runtime and Conversation Groups depend on this interface, never on a
// concrete vendor type, so a deployment can swap providers per
// config.LLMConfig.Provider.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// DecodeJSON unmarshals a model's raw text response into v, first trying a
// direct decode and, on a JSON syntax error, repairing the text (models
// routinely emit trailing commas, unterminated strings under deadline
// pressure, or markdown code fences) before retrying once.
func DecodeJSON(raw string, v any) error {
	err := json.Unmarshal([]byte(raw), v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); !ok {
		return apperr.Unavailablef(err, "llm: response is not JSON and not repairable")
	}
	fixed, repairErr := jsonrepair.JSONRepair(raw)
	if repairErr != nil {
		return apperr.Unavailablef(err, "llm: response is malformed JSON and could not be repaired: %v", repairErr)
	}
	if err := json.Unmarshal([]byte(fixed), v); err != nil {
		return apperr.Unavailablef(err, "llm: repaired response still did not parse")
	}
	return nil
}
