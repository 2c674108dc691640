package generation

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// =============================================================================
// GOOGLE GENAI BACKEND
// =============================================================================

// GenAIConfig configures the Gemini API connection.
type GenAIConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// GenAIBackend calls the Gemini API through the official SDK.
type GenAIBackend struct {
	client *genai.Client
}

// NewGenAIBackend creates a Gemini API backend.
func NewGenAIBackend(ctx context.Context, cfg GenAIConfig) (*GenAIBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		timeout := cfg.Timeout
		cc.HTTPOptions.Timeout = &timeout
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAIBackend{client: client}, nil
}

// GenerateText sends the stimulus with the system instruction and returns
// the concatenated text of the first candidate.
func (b *GenAIBackend) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(req.Temperature),
		ResponseMIMEType: req.ResponseMIMEType,
	}
	if req.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}

	resp, err := b.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.UserText), config)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// GenerateImage sends the prompt with the target aspect ratio and returns
// every part of the first candidate.
func (b *GenAIBackend) GenerateImage(ctx context.Context, req ImageRequest) ([]Part, error) {
	config := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{
			AspectRatio: string(req.AspectRatio),
		},
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(req.Prompt)}, genai.RoleUser),
	}

	resp, err := b.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, err
	}
	return partsFromResponse(resp), nil
}

func partsFromResponse(resp *genai.GenerateContentResponse) []Part {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	src := resp.Candidates[0].Content.Parts
	parts := make([]Part, 0, len(src))
	for _, p := range src {
		if p == nil {
			continue
		}
		part := Part{Text: p.Text}
		if p.InlineData != nil {
			part.Data = p.InlineData.Data
			part.MIMEType = p.InlineData.MIMEType
		}
		parts = append(parts, part)
	}
	return parts
}
