package llm

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"github.com/fracturedsurvival/npcruntime/internal/apperr"
)

// GenAIClient adapts Google's genai SDK to Client, grounded on
// pkg/cortex/run_genai.go's runGenaiTextGenerate.
type GenAIClient struct {
	client *genai.Client
}

// NewGenAIClient builds an adapter from an API key.
func NewGenAIClient(ctx context.Context, apiKey string) (*GenAIClient, error) {
	if apiKey == "" {
		return nil, apperr.InvalidArgumentf("llm: genai client requires an api key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, apperr.Unavailablef(err, "llm: genai client init")
	}
	return &GenAIClient{client: client}, nil
}

func (c *GenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	var parts []*genai.Part
	for _, m := range req.Messages {
		// genai has no distinct system role in this minimal usage; fold the
		// system prompt into the leading text part, matching how
		// run_genai.go flattens every message into Parts.
		parts = append(parts, &genai.Part{Text: m.Content})
	}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, []*genai.Content{
		{Parts: parts, Role: "user"},
	}, nil)
	if err != nil {
		return Response{}, apperr.Unavailablef(err, "llm: genai generate")
	}

	var sb strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return Response{Text: sb.String(), Model: req.Model}, nil
}
