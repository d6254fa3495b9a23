package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	anyllm "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/parley-ai/parley/pkg/config"
)

// AnyLLMClient implements Client on top of github.com/mozilla-ai/any-llm-go,
// giving the engine vendor-neutral access to OpenAI, Anthropic, Gemini,
// Ollama, DeepSeek, Mistral, and Groq backends.
type AnyLLMClient struct {
	backend     anyllm.Provider
	model       string
	temperature *float64
	maxTokens   *int
}

var _ Client = (*AnyLLMClient)(nil)

// NewAnyLLMClient builds a client from a provider config. The API key is
// read from the environment variable the config names; an empty key falls
// back to the backend's own environment lookup (e.g. OPENAI_API_KEY).
func NewAnyLLMClient(cfg *config.LLMProviderConfig) (*AnyLLMClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("llm: provider config must not be nil")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm: model must not be empty")
	}

	var opts []anyllm.Option
	if cfg.APIKeyEnv != "" {
		if key := os.Getenv(cfg.APIKeyEnv); key != "" {
			opts = append(opts, anyllm.WithAPIKey(key))
		}
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anyllm.WithBaseURL(cfg.BaseURL))
	}

	backend, err := newBackend(cfg.Provider, opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: create %q backend: %w", cfg.Provider, err)
	}

	return &AnyLLMClient{
		backend:     backend,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

func newBackend(provider string, opts ...anyllm.Option) (anyllm.Provider, error) {
	switch strings.ToLower(provider) {
	case "openai", "":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq", provider)
	}
}

// Complete implements Client.
func (c *AnyLLMClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	resp, err := c.backend.Completion(ctx, c.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("llm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm: empty choices in response")
	}

	choice := resp.Choices[0]
	result := &CompletionResponse{
		Content: choice.Message.ContentString(),
	}
	if resp.Usage != nil {
		result.Usage = Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return result, nil
}

// buildParams converts a CompletionRequest into anyllm CompletionParams.
// Request values win over the client's configured defaults.
func (c *AnyLLMClient) buildParams(req CompletionRequest) anyllm.CompletionParams {
	var messages []anyllm.Message

	if req.SystemPrompt != "" {
		messages = append(messages, anyllm.Message{
			Role:    anyllm.RoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, convertMessage(m))
	}

	params := anyllm.CompletionParams{
		Model:    c.model,
		Messages: messages,
	}

	switch {
	case req.Temperature != 0:
		t := req.Temperature
		params.Temperature = &t
	case c.temperature != nil:
		params.Temperature = c.temperature
	}
	switch {
	case req.MaxTokens > 0:
		mt := req.MaxTokens
		params.MaxTokens = &mt
	case c.maxTokens != nil:
		params.MaxTokens = c.maxTokens
	}

	for _, td := range req.Tools {
		params.Tools = append(params.Tools, anyllm.Tool{
			Type: "function",
			Function: anyllm.Function{
				Name:        td.Name,
				Description: td.Description,
				Parameters:  td.Parameters,
			},
		})
	}

	return params
}

func convertMessage(m Message) anyllm.Message {
	msg := anyllm.Message{
		Role:       m.Role,
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, anyllm.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: anyllm.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	return msg
}
