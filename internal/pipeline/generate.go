package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/hxxxer/CheckupAI/internal/config"
	"github.com/hxxxer/CheckupAI/pkg/anthropic"
	"github.com/hxxxer/CheckupAI/pkg/vllm"
)

// Generator produces a completion for a system prompt plus user content.
// Extraction and analysis stages depend on this rather than a concrete
// backend.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// NewGenerator creates a Generator based on config.
func NewGenerator(cfg *config.Config) (Generator, error) {
	switch cfg.LLM.Provider {
	case "vllm", "":
		client := vllm.NewClient(cfg.LLM.BaseURL, cfg.LLM.Key, vllm.WithModel(cfg.LLM.Model))
		return &vllmGenerator{client: client, maxTokens: cfg.LLM.MaxTokens}, nil
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			return nil, eris.New("generate: anthropic provider requires anthropic key")
		}
		return &anthropicGenerator{
			client:    anthropic.NewClient(cfg.Anthropic.Key),
			model:     cfg.Anthropic.Model,
			maxTokens: int64(cfg.LLM.MaxTokens),
		}, nil
	default:
		return nil, eris.Errorf("generate: unknown provider %q", cfg.LLM.Provider)
	}
}

// vllmGenerator runs completions against the local fine-tuned model. The
// sampling parameters and stop tokens match the ones the model was tuned
// with.
type vllmGenerator struct {
	client    vllm.Client
	maxTokens int
}

func (g *vllmGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	temperature := 0.7
	topP := 0.8
	maxTokens := g.maxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	resp, err := g.client.ChatCompletion(ctx, vllm.ChatCompletionRequest{
		Messages: []vllm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: &temperature,
		TopP:        &topP,
		MaxTokens:   &maxTokens,
		Stop:        []string{"<|im_end|>", "<|endoftext|>"},
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// anthropicGenerator runs completions against the Anthropic API.
type anthropicGenerator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func (g *anthropicGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	maxTokens := g.maxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  []anthropic.Message{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
