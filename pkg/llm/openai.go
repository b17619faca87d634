package llm

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/fracturedsurvival/npcruntime/internal/apperr"
)

// OpenAIClient adapts OpenAI's chat completions API to Client, the pattern
// grounded on pkg/cortex/run_openai.go's runOpenAITextChat.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient builds an adapter from an API key and optional base URL
// (for OpenAI-compatible endpoints).
func NewOpenAIClient(apiKey, baseURL string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, apperr.InvalidArgumentf("llm: openai client requires an api key")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	c := openai.NewClient(opts...)
	return &OpenAIClient{client: &c}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Response{}, apperr.Unavailablef(err, "llm: openai completion")
	}
	text := ""
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	return Response{Text: text, Model: resp.Model}, nil
}
