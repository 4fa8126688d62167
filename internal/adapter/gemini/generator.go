package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type Generator struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

func NewGenerator(ctx context.Context, apiKey, model string, maxTokens int, temperature float64, opts ...option.ClientOption) (*Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key not configured")
	}
	opts = append(opts, option.WithAPIKey(apiKey))
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	m := client.GenerativeModel(model)
	m.SetTemperature(float32(temperature))
	m.SetMaxOutputTokens(int32(maxTokens)) // #nosec G115 -- bounded by config validation
	m.SetCandidateCount(1)

	return &Generator{client: client, model: m, name: model}, nil
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	slog.DebugContext(ctx, "generating content", "model", g.name, "prompt_length", len(prompt))
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func (g *Generator) Close() error {
	return g.client.Close()
}
