package clients

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// geminiClient wraps the official genai client for single-shot completions.
type geminiClient struct {
	cli   *genai.Client
	model string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (LLMClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init genai client: %w", err)
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &geminiClient{cli: cli, model: model}, nil
}

func (g *geminiClient) Name() string { return "gemini:" + g.model }

func (g *geminiClient) Complete(ctx context.Context, in CompletionRequest) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if in.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(in.MaxTokens)
	}
	if in.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(in.System, genai.RoleUser)
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model, genai.Text(in.Prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
