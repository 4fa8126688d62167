package langchain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

type Generator struct {
	llm         llms.Model
	model       string
	maxTokens   int
	temperature float64
}

func NewGenerator(llm llms.Model, model string, maxTokens int, temperature float64) *Generator {
	return &Generator{llm: llm, model: model, maxTokens: maxTokens, temperature: temperature}
}

func NewOllamaGenerator(serverURL, model string, maxTokens int, temperature float64) (*Generator, error) {
	llm, err := ollama.New(ollama.WithServerURL(serverURL), ollama.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}
	return NewGenerator(llm, model, maxTokens, temperature), nil
}

func NewOpenAIGenerator(baseURL, token, model string, maxTokens int, temperature float64) (*Generator, error) {
	opts := []openai.Option{openai.WithToken(token), openai.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai client: %w", err)
	}
	return NewGenerator(llm, model, maxTokens, temperature), nil
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	slog.DebugContext(ctx, "generating content", "model", g.model, "prompt_length", len(prompt))
	out, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt,
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(g.maxTokens),
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
