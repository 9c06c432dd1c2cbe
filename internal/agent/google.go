package agent

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GoogleProvider generates with the Gemini API. Tool calling is not wired
// for this provider; agents that need workspace tools should use openai.
type GoogleProvider struct {
	client *genai.Client
}

var _ Provider = (*GoogleProvider)(nil)

func NewGoogleProvider(ctx context.Context, apiKey string) (*GoogleProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GoogleProvider{client: client}, nil
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	contents := make([]*genai.Content, 0, len(req.Turns))
	for _, turn := range req.Turns {
		var role genai.Role = genai.RoleUser
		if turn.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}

	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("generate content failed: %w", err)
	}

	result := &GenerateResult{Text: resp.Text()}
	if resp.UsageMetadata != nil {
		result.InputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		result.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return result, nil
}
